// Package unix implements the bridge transport over Unix domain sockets. It is
// the transport of choice when the host runs on the same machine as the bridge.
//
// This package extends the base transport layer with Unix socket-specific connectors
// while inheriting framing, event pushing and error handling from the base package.
//
// Key Components:
//
//   - clientConnector: Establishes connections using Unix domain sockets
//
//   - serverConnector: Creates Unix socket listeners and accepts connections. An
//     existing socket file at the endpoint is removed before listening.
//
// Performance Characteristics:
//
//   - Default buffer size: 64 KB, optimized for local communication patterns
//   - Reduced overhead: Eliminates TCP/IP stack processing for better performance
package unix
