package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/ValentinKolb/netstack/lib/stream"
)

// --------------------------------------------------------------------------
// Helper functions to build the socket core configuration
// --------------------------------------------------------------------------

// ToStreamConfig converts the socket settings to a stream.Config
func (c *SocketConfig) ToStreamConfig() stream.Config {
	return stream.Config{
		TCPNoDelay:      c.TCPNoDelay,
		TCPKeepAlive:    time.Duration(c.TCPKeepAliveSec) * time.Second,
		TCPLingerSec:    c.TCPLingerSec,
		ReadBufferSize:  c.ReadBufferKB * 1024,
		WriteBufferSize: c.WriteBufferKB * 1024,
		DualStack:       c.DualStack,
	}
}

// ToRegistryConfig creates the configuration of the registry backing one host
// session. It fails if a CA file cannot be loaded or the TLS minimum version is
// not supported.
func (c *ServerConfig) ToRegistryConfig() (registry.Config, error) {
	config := registry.DefaultConfig()
	config.AutoCleanup = c.Socket.AutoCleanup
	config.Socket.Stream = c.Socket.ToStreamConfig()
	config.Socket.ConnectTimeout = time.Duration(c.Socket.ConnectTimeoutMs) * time.Millisecond

	tlsConfig, err := stream.LoadClientTLSConfig(stream.TLSConfig{
		CAFiles:            c.Socket.TLSCAFiles,
		InsecureSkipVerify: c.Socket.TLSInsecure,
		MinVersion:         c.Socket.TLSMinVersion,
	})
	if err != nil {
		return config, fmt.Errorf("failed to load TLS configuration: %w", err)
	}
	config.Socket.TLS = tlsConfig

	return config, nil
}

// --------------------------------------------------------------------------
// Server configuration structs
// --------------------------------------------------------------------------

// TransportConfig holds the settings of the bridge transport
type TransportConfig struct {
	// Type is one of stdio, tcp, unix or ws
	Type string
	// Endpoint is the listen address (tcp, ws) or socket path (unix), unused for stdio
	Endpoint string
	// WorkersPerConn bounds the concurrently handled requests of one session.
	// 1 keeps the requests of a session strictly ordered.
	WorkersPerConn int
	// BufferSize is the size of pooled frame buffers
	BufferSize int
	// TimeoutSecond bounds frame reads and writes, 0 disables deadlines
	TimeoutSecond int
}

// SocketConfig holds the settings applied to every socket a host opens
type SocketConfig struct {
	TCPNoDelay       bool
	TCPKeepAliveSec  int
	TCPLingerSec     int
	ReadBufferKB     int
	WriteBufferKB    int
	DualStack        bool
	ConnectTimeoutMs int
	AutoCleanup      bool

	TLSInsecure   bool
	TLSCAFiles    []string
	TLSMinVersion string
}

// ServerConfig holds all configuration parameters of the bridge server
type ServerConfig struct {
	Transport  TransportConfig
	Serializer string
	Socket     SocketConfig

	// MetricsEndpoint serves Prometheus metrics over HTTP when set
	MetricsEndpoint string

	// Logging configuration
	LogLevel string
}

// String returns a formatted string representation of the configuration
func (c *ServerConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	// Bridge settings
	addSection("Bridge Server")
	addField("Transport", c.Transport.Type)
	if c.Transport.Type != "stdio" {
		addField("Endpoint", c.Transport.Endpoint)
	}
	addField("Serializer", c.Serializer)
	addField("Workers Per Session", strconv.Itoa(max(1, c.Transport.WorkersPerConn)))
	addField("Timeout", fmt.Sprintf("%d sec", c.Transport.TimeoutSecond))

	// Socket settings
	addSection("Sockets")
	addField("TCP No Delay", strconv.FormatBool(c.Socket.TCPNoDelay))
	addField("TCP Keep Alive", fmt.Sprintf("%d sec", c.Socket.TCPKeepAliveSec))
	addField("TCP Linger", fmt.Sprintf("%d sec", c.Socket.TCPLingerSec))
	addField("Read Buffer", fmt.Sprintf("%d KB", c.Socket.ReadBufferKB))
	addField("Write Buffer", fmt.Sprintf("%d KB", c.Socket.WriteBufferKB))
	addField("Dual Stack", strconv.FormatBool(c.Socket.DualStack))
	addField("Connect Timeout", fmt.Sprintf("%d ms", c.Socket.ConnectTimeoutMs))
	addField("Auto Cleanup", strconv.FormatBool(c.Socket.AutoCleanup))

	// TLS settings
	addSection("TLS")
	addField("Min Version", c.Socket.TLSMinVersion)
	addField("Skip Verify", strconv.FormatBool(c.Socket.TLSInsecure))
	for i, file := range c.Socket.TLSCAFiles {
		addField(fmt.Sprintf("CA File %d", i), file)
	}

	// Logging and metrics
	addSection("Observability")
	addField("Log Level", c.LogLevel)
	if c.MetricsEndpoint != "" {
		addField("Metrics Endpoint", c.MetricsEndpoint)
	}

	return sb.String()
}

// --------------------------------------------------------------------------
// Client configuration struct
// --------------------------------------------------------------------------

// ClientConfig holds the settings of a bridge client
type ClientConfig struct {
	// Transport is tcp, unix or ws
	Transport string
	// Endpoint is the address (tcp, ws) or socket path (unix) of the bridge
	Endpoint string
	// TimeoutSecond bounds a single request, 0 waits forever
	TimeoutSecond int
}

// String returns a formatted string representation of the client configuration
func (c *ClientConfig) String() string {
	var sb strings.Builder

	// Create helper functions for consistent formatting
	addSection := func(title string) {
		sb.WriteString("\n")
		sb.WriteString(fmt.Sprintf("%s\n", strings.ToUpper(title)))
	}

	addField := func(name, value string) {
		sb.WriteString(fmt.Sprintf("  %-22s: %s\n", name, value))
	}

	addSection("Client Configuration")
	addField("Transport", c.Transport)
	addField("Endpoint", c.Endpoint)
	addField("Timeout", fmt.Sprintf("%d sec", c.TimeoutSecond))

	return sb.String()
}
