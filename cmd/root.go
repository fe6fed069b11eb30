package cmd

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/netstack/cmd/dial"
	"github.com/ValentinKolb/netstack/cmd/serve"
	"github.com/ValentinKolb/netstack/cmd/util"
	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
)

var (

	// RootCmd represents the base command when called without any subcommands
	RootCmd = &cobra.Command{
		Use:   "netstack",
		Short: "socket bridge for sandboxed hosts",
		Long: fmt.Sprintf(`netstack (v%s)

A TCP socket bridge written in Go. It exposes connect, listen, read and
write as an asynchronous command/event protocol for hosts that cannot
open sockets themselves.`, Version),
	}
	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of netstack",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("netstack v%s\n", Version)
		},
	}
)

func init() {
	// initialize viper
	cobra.OnInitialize(util.InitConfig)

	// Add Commands
	RootCmd.AddCommand(serve.ServeCmd)
	RootCmd.AddCommand(dial.DialCmd)
	RootCmd.AddCommand(versionCmd)

	// Add Flags
	key := "serializer"
	RootCmd.PersistentFlags().String(key, "binary", util.WrapString("serializer to use (json, gob, binary)"))
	key = "transport"
	RootCmd.PersistentFlags().String(key, "stdio", util.WrapString("transport to use (stdio, tcp, unix, ws). Clients support tcp, unix and ws"))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the RootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
