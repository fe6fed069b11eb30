package stream

import (
	"time"
)

// Config holds the settings applied to every stream
type Config struct {
	// TCPNoDelay disables Nagle's algorithm
	TCPNoDelay bool
	// TCPKeepAlive enables TCP keep-alive with this period, 0 disables it
	TCPKeepAlive time.Duration
	// TCPLingerSec sets SO_LINGER, a negative value keeps the OS default
	TCPLingerSec int
	// ReadBufferSize and WriteBufferSize set the kernel socket buffers, 0 keeps the OS default
	ReadBufferSize  int
	WriteBufferSize int
	// DualStack prefers IPv6 with one IPv4 fallback when a host resolves to both
	// families. Without it such hosts are dialed over IPv4 only.
	DualStack bool
}

// DefaultConfig returns the settings used when nothing else is configured
func DefaultConfig() Config {
	return Config{
		TCPNoDelay:   true,
		TCPKeepAlive: 0,
		TCPLingerSec: -1,
		DualStack:    true,
	}
}
