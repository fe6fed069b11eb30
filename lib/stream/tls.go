package stream

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
)

// TLSConfig describes how client TLS sessions are verified
type TLSConfig struct {
	// CAFiles are PEM files trusted in addition to the system pool
	CAFiles []string
	// InsecureSkipVerify disables certificate verification
	InsecureSkipVerify bool
	// MinVersion is "1.2" or "1.3", empty means 1.2
	MinVersion string
}

// LoadClientTLSConfig creates the base tls.Config for client streams.
// Always uses the system CA bundle first, CAFiles are additional trusted CAs.
func LoadClientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	minVersion, err := parseTLSVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}
	tlsConfig := &tls.Config{
		MinVersion: minVersion,
	}

	rootCAs, err := x509.SystemCertPool()
	if err != nil {
		rootCAs = x509.NewCertPool()
	}

	for _, caFile := range cfg.CAFiles {
		caPEM, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file %s: %w", caFile, err)
		}
		if !rootCAs.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("failed to parse CA certificate from %s: invalid PEM data", caFile)
		}
	}
	tlsConfig.RootCAs = rootCAs
	tlsConfig.InsecureSkipVerify = cfg.InsecureSkipVerify

	return tlsConfig, nil
}

// ForHost returns a copy of base with the server name set for host
func ForHost(base *tls.Config, host string) *tls.Config {
	var cfg *tls.Config
	if base == nil {
		cfg = &tls.Config{MinVersion: tls.VersionTLS12}
	} else {
		cfg = base.Clone()
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return cfg
}

// parseTLSVersion converts a version string to the crypto/tls constant
func parseTLSVersion(version string) (uint16, error) {
	switch version {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	default:
		return 0, fmt.Errorf("unsupported TLS minimum version %q (supported: 1.2, 1.3)", version)
	}
}
