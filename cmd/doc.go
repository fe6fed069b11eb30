// Package cmd implements the command-line interface of netstack. It provides a
// command to run the socket bridge and a small netcat-like client to try it out.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the bridge on stdio, a TCP address or a unix socket
//   - dial: Connects stdin and stdout to a TCP connection, either through a
//     local registry or through a running bridge
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// All flags can also be set via environment variables prefixed with NETSTACK_
// (e.g. NETSTACK_LOG_LEVEL=debug). See netstack -help for a list of all commands.
package cmd
