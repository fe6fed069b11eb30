// Package tcp implements the TCP transport of the socket bridge. It provides
// concrete implementations of the base package's connector interfaces.
//
// This package builds on the base package's transport functionality, inheriting its
// framing, buffer reuse and push channel. See the base package documentation for
// detailed information on the underlying transport mechanisms.
//
// Key Components:
//
//   - clientConnector: TCP-specific implementation of base.IClientConnector
//
//   - serverConnector: TCP-specific implementation of base.IServerConnector. Accepted
//     host connections are tuned with the socket settings of the server
//     configuration (no delay, keep alive, buffer sizes, linger).
//
// The default server buffer size is set to 512 KB, matching the largest read or
// write a socket can carry in one frame.
package tcp
