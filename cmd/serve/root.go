package serve

import (
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ValentinKolb/netstack/cmd/util"
	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/server"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var Logger = logger.GetLogger("cli")

var (
	serveCmdConfig = &common.ServerConfig{}
	ServeCmd       = &cobra.Command{
		Use:     "serve",
		Short:   "Start the socket bridge",
		Long:    `Start the socket bridge with the specified configuration. The configuration can be set via command line flags or environment variables. The format of the environment variables is NETSTACK_<flag> (e.g. NETSTACK_CONNECT_TIMEOUT=5000). With the stdio transport the bridge serves exactly one host on stdin and stdout and logs to stderr.`,
		PreRunE: processConfig,
		RunE:    run,
	}
)

func init() {
	// add flags
	key := "endpoint"
	ServeCmd.PersistentFlags().String(key, "127.0.0.1:7400", util.WrapString("The address on which the bridge will listen (e.g. localhost:7400, /tmp/netstack.sock). The ws transport serves GET /bridge on it. Ignored for stdio"))

	key = "workers"
	ServeCmd.PersistentFlags().Int(key, 1, util.WrapString("The number of concurrently handled requests per session. 1 keeps the commands of a session strictly ordered"))

	key = "buffer-size"
	ServeCmd.PersistentFlags().Int(key, 0, util.WrapString("The size of pooled frame buffers in bytes (0 uses the transport default)"))

	key = "timeout"
	ServeCmd.PersistentFlags().Int(key, 5, util.WrapString("The frame write timeout in seconds (0 disables it)"))

	key = "metrics-endpoint"
	ServeCmd.PersistentFlags().String(key, "", util.WrapString("The address of the HTTP server exposing /metrics, /health and /sessions (empty disables it)"))

	key = "log-level"
	ServeCmd.PersistentFlags().String(key, "info", util.WrapString("LogLevel is the level at which logs will be output (debug, info, warn, error)"))

	util.SetupSocketFlags(ServeCmd)
}

// processConfig reads the configuration from the command line flags and environment variables and converts them to the server configuration
func processConfig(cmd *cobra.Command, _ []string) error {
	// bind the flags to viper
	if err := util.BindCommandFlags(cmd); err != nil {
		return err
	}

	serveCmdConfig.Transport = common.TransportConfig{
		Type:           viper.GetString("transport"),
		Endpoint:       viper.GetString("endpoint"),
		WorkersPerConn: viper.GetInt("workers"),
		BufferSize:     viper.GetInt("buffer-size"),
		TimeoutSecond:  viper.GetInt("timeout"),
	}
	serveCmdConfig.Serializer = viper.GetString("serializer")
	serveCmdConfig.Socket = util.GetSocketConfig()
	serveCmdConfig.MetricsEndpoint = viper.GetString("metrics-endpoint")
	serveCmdConfig.LogLevel = viper.GetString("log-level")

	// stdout carries the frames of the stdio transport
	var out io.Writer = os.Stdout
	if serveCmdConfig.Transport.Type == "stdio" {
		out = os.Stderr
	}
	return common.InitLoggers(out, serveCmdConfig.LogLevel)
}

// run starts the bridge and blocks until it was closed
func run(_ *cobra.Command, _ []string) error {
	s, err := util.GetSerializer()
	if err != nil {
		return err
	}

	t, err := util.GetServerTransport(serveCmdConfig.Transport)
	if err != nil {
		return err
	}

	srv := server.NewRPCServer(*serveCmdConfig, t, s)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		Logger.Infof("received %s, shutting down", sig)
		if err := srv.Close(); err != nil {
			Logger.Errorf("failed to close bridge: %v", err)
		}
	}()

	return srv.Serve()
}
