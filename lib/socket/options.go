package socket

import (
	"fmt"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Options are the host supplied connect options
type Options struct {
	// TLS upgrades the stream after the TCP handshake
	TLS bool `mapstructure:"tls" json:"tls"`
	// ConnectTimeoutMs bounds resolution, TCP and TLS handshake, 0 uses the configured default
	ConnectTimeoutMs int `mapstructure:"connectTimeoutMs" json:"connectTimeoutMs"`
}

// DecodeOptions decodes a loosely typed option record. Unknown keys are ignored and
// values are converted weakly, so a JSON number or a numeric string both decode into
// ConnectTimeoutMs.
func DecodeOptions(raw map[string]any) (Options, error) {
	var opts Options
	if len(raw) == 0 {
		return opts, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &opts,
	})
	if err != nil {
		return opts, fmt.Errorf("failed to create option decoder: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return opts, fmt.Errorf("failed to decode connect options: %w", err)
	}
	if opts.ConnectTimeoutMs < 0 {
		return opts, fmt.Errorf("failed to decode connect options: negative connectTimeoutMs %d", opts.ConnectTimeoutMs)
	}
	return opts, nil
}

// ConnectTimeout returns the effective connect timeout
func (o Options) ConnectTimeout(fallback time.Duration) time.Duration {
	if o.ConnectTimeoutMs > 0 {
		return time.Duration(o.ConnectTimeoutMs) * time.Millisecond
	}
	return fallback
}
