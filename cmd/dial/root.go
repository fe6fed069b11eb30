package dial

import (
	"fmt"
	"os"
	"strconv"

	"github.com/ValentinKolb/netstack/cmd/util"
	"github.com/ValentinKolb/netstack/rpc/client"
	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

var DialCmd = &cobra.Command{
	Use:   "dial HOST PORT",
	Short: "Connect stdin and stdout to a TCP connection",
	Long: `Connect stdin and stdout to a TCP connection, similar to netcat. Every input line is written to the socket, received data is copied to stdout.

Without --bridge-endpoint the sockets are opened by a registry inside this process. With --bridge-endpoint the commands are sent to a running bridge (see netstack serve) using the configured transport and serializer.`,
	Args:    cobra.ExactArgs(2),
	PreRunE: processConfig,
	RunE:    run,
}

func init() {
	key := "tls"
	DialCmd.Flags().Bool(key, false, util.WrapString("Upgrade the connection to TLS after the TCP handshake"))

	key = "bridge-endpoint"
	DialCmd.Flags().String(key, "", util.WrapString("The address (tcp) or socket path (unix) of a running bridge. Empty uses a local registry"))

	key = "request-timeout"
	DialCmd.Flags().Int(key, 5, util.WrapString("Timeout of a single bridge request in seconds"))

	key = "listen"
	DialCmd.Flags().Bool(key, false, util.WrapString("Listen on HOST:PORT and serve the first peer instead of connecting"))

	key = "close-on-eof"
	DialCmd.Flags().Bool(key, true, util.WrapString("Close the connection once stdin is exhausted and all input was written"))

	key = "log-level"
	DialCmd.Flags().String(key, "warn", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	util.SetupSocketFlags(DialCmd)
}

func processConfig(cmd *cobra.Command, _ []string) error {
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}
	// stdout carries the received data
	return common.InitLoggers(os.Stderr, viper.GetString("log-level"))
}

func run(_ *cobra.Command, args []string) error {
	host := args[0]
	port, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid port %q: %w", args[1], err)
	}

	h, err := newHost()
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Shutdown(); err != nil {
			Logger.Warningf("failed to shut down: %v", err)
		}
	}()

	s := &session{
		host:       h,
		out:        os.Stdout,
		errOut:     os.Stderr,
		closeOnEOF: viper.GetBool("close-on-eof"),
	}

	if viper.GetBool("listen") {
		err = s.listen(host, port)
	} else {
		err = s.connect(host, port, map[string]any{
			"tls":              viper.GetBool("tls"),
			"connectTimeoutMs": viper.GetInt("connect-timeout"),
		})
	}
	if err != nil {
		return err
	}

	return s.run(readLines(os.Stdin))
}

// newHost creates the local registry or connects to the configured bridge
func newHost() (socketHost, error) {
	socketConfig := common.ServerConfig{Socket: util.GetSocketConfig()}

	endpoint := viper.GetString("bridge-endpoint")
	if endpoint == "" {
		registryConfig, err := socketConfig.ToRegistryConfig()
		if err != nil {
			return nil, err
		}
		return newLocalHost(registryConfig), nil
	}

	s, err := util.GetSerializer()
	if err != nil {
		return nil, err
	}
	t, err := util.GetClientTransport()
	if err != nil {
		return nil, err
	}

	config := common.ClientConfig{
		Transport:     viper.GetString("transport"),
		Endpoint:      endpoint,
		TimeoutSecond: viper.GetInt("request-timeout"),
	}
	Logger.Infof(config.String())

	c, err := client.NewHostClient(config, t, s)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bridge: %w", err)
	}
	return c, nil
}
