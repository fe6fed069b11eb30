package util

import (
	"fmt"
	"os"
	"strings"

	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/serializer"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/ValentinKolb/netstack/rpc/transport/stdio"
	"github.com/ValentinKolb/netstack/rpc/transport/tcp"
	"github.com/ValentinKolb/netstack/rpc/transport/unix"
	"github.com/ValentinKolb/netstack/rpc/transport/ws"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50

	// EnvPrefix is the prefix of all environment variables, e.g. NETSTACK_LOG_LEVEL
	EnvPrefix = "netstack"
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	// Add any remaining text
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// SetupSocketFlags adds the flags tuning the sockets a registry opens
func SetupSocketFlags(cmd *cobra.Command) {
	key := "tcp-nodelay"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to enable TCP_NODELAY on every socket"))

	key = "tcp-keepalive"
	cmd.PersistentFlags().Int(key, 0, WrapString("The keepalive interval of every socket (in seconds, 0 disables keepalive)"))

	key = "tcp-linger"
	cmd.PersistentFlags().Int(key, -1, WrapString("The linger time of every socket (in seconds, negative values keep the OS default)"))

	key = "socket-read-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the kernel read buffer of every socket (in KB, 0 keeps the OS default)"))

	key = "socket-write-buffer"
	cmd.PersistentFlags().Int(key, 0, WrapString("The size of the kernel write buffer of every socket (in KB, 0 keeps the OS default)"))

	key = "dual-stack"
	cmd.PersistentFlags().Bool(key, true, WrapString("Whether to prefer IPv6 (with one IPv4 fallback) for hosts resolving to both families. When disabled such hosts are dialed over IPv4 only, IPv6-only hosts still work"))

	key = "connect-timeout"
	cmd.PersistentFlags().Int(key, 10000, WrapString("The connect timeout used when a connect request passes none (in milliseconds)"))

	key = "auto-cleanup"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to release a failed socket immediately instead of waiting for the host to close it. When enabled the host gets no closed event for failed sockets"))

	key = "tls-insecure"
	cmd.PersistentFlags().Bool(key, false, WrapString("Whether to skip the verification of server certificates (testing only)"))

	key = "tls-ca-files"
	cmd.PersistentFlags().StringSlice(key, nil, WrapString("Comma-separated list of PEM files with additional trusted CA certificates"))

	key = "tls-min-version"
	cmd.PersistentFlags().String(key, "1.2", WrapString("The minimum TLS version (1.2, 1.3)"))
}

// InitConfig loads .env files and makes viper read environment variables
func InitConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetSocketConfig reads the socket settings from viper
func GetSocketConfig() common.SocketConfig {
	return common.SocketConfig{
		TCPNoDelay:       viper.GetBool("tcp-nodelay"),
		TCPKeepAliveSec:  viper.GetInt("tcp-keepalive"),
		TCPLingerSec:     viper.GetInt("tcp-linger"),
		ReadBufferKB:     viper.GetInt("socket-read-buffer"),
		WriteBufferKB:    viper.GetInt("socket-write-buffer"),
		DualStack:        viper.GetBool("dual-stack"),
		ConnectTimeoutMs: viper.GetInt("connect-timeout"),
		AutoCleanup:      viper.GetBool("auto-cleanup"),
		TLSInsecure:      viper.GetBool("tls-insecure"),
		TLSCAFiles:       viper.GetStringSlice("tls-ca-files"),
		TLSMinVersion:    viper.GetString("tls-min-version"),
	}
}

// GetSerializer creates a serializer based on configuration
func GetSerializer() (serializer.IRPCSerializer, error) {
	switch viper.GetString("serializer") {
	case "json":
		return serializer.NewJSONSerializer(), nil
	case "gob":
		return serializer.NewGOBSerializer(), nil
	case "binary":
		return serializer.NewBinarySerializer(), nil
	default:
		return nil, fmt.Errorf("invalid serializer %s", viper.GetString("serializer"))
	}
}

// GetClientTransport creates a client transport based on configuration
func GetClientTransport() (transport.IRPCClientTransport, error) {
	switch viper.GetString("transport") {
	case "tcp":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	case "ws":
		return ws.NewWSClientTransport(), nil
	default:
		return nil, fmt.Errorf("invalid client transport %s (expected tcp, unix or ws)", viper.GetString("transport"))
	}
}

// GetServerTransport creates a server transport for the given configuration
func GetServerTransport(config common.TransportConfig) (transport.IRPCServerTransport, error) {
	switch config.Type {
	case "stdio":
		return stdio.NewStreamServerTransport(os.Stdin, os.Stdout, config.WorkersPerConn), nil
	case "tcp":
		if config.BufferSize > 0 {
			return tcp.NewTCPServerTransport(config.BufferSize, config.WorkersPerConn), nil
		}
		return tcp.NewTCPDefaultServerTransport(config.WorkersPerConn), nil
	case "unix":
		if config.BufferSize > 0 {
			return unix.NewUnixServerTransport(config.BufferSize, config.WorkersPerConn), nil
		}
		return unix.NewUnixDefaultServerTransport(config.WorkersPerConn), nil
	case "ws":
		if config.BufferSize > 0 {
			return ws.NewWSServerTransport(config.BufferSize, config.WorkersPerConn), nil
		}
		return ws.NewWSDefaultServerTransport(config.WorkersPerConn), nil
	default:
		return nil, fmt.Errorf("invalid transport %s (expected stdio, tcp, unix or ws)", config.Type)
	}
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
