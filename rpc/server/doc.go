// Package server implements the socket bridge: it serves a socket registry to
// every host session of a transport and pushes the registry events back to the
// host.
//
// The package focuses on:
//   - Mapping host commands to registry operations
//   - Pushing socket events to the session that owns the socket
//   - Releasing all sockets of a session when it ends
//   - Optional HTTP endpoint with Prometheus metrics and session statistics
//
// Key Components:
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
//   - sessionHandler: Implementation of transport.IRPCSessionHandler. It creates a
//     registry when a session opens, decodes requests, runs them and encodes the
//     responses, and shuts the registry down when the session closes.
//
//   - pushSink: registry.EventSink serializing events and pushing them to the
//     session.
//
//   - metricsServer: HTTP server (httprouter) serving /metrics, /health, /sessions
//     and /sessions/:id.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Transport: common.TransportConfig{Type: "unix", Endpoint: "/tmp/netstack.sock"},
//	  Socket:    common.SocketConfig{TCPNoDelay: true, DualStack: true, AutoCleanup: true},
//	  LogLevel:  "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  unix.NewUnixDefaultServerTransport(1),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Command Semantics:
//
//	Responses report only whether a command was accepted. Connect and Listen
//	with identifier 0 create the socket and return its identifier; all other
//	commands address an existing socket. Completion, data and failures arrive as
//	pushed events. An event for a new identifier can arrive before the response
//	that announces it.
//
// Thread Safety:
//
//	The server is safe for concurrent use by any number of sessions. Serve must be
//	called only once.
package server
