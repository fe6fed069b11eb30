// Package transport defines the interfaces of the bridge transport layer. It
// provides a common contract that all transport implementations must fulfill,
// enabling protocol-agnostic communication between host and bridge.
//
// The package focuses on:
//   - Defining clear interfaces for client and server transport layers
//   - Session scoped state on the server, a session lives as long as its connection
//   - Server pushed frames next to request and response frames
//   - Enabling multiple transport implementations (TCP, Unix sockets, websockets, stdio)
//
// Key Components:
//
//   - IRPCClientTransport: Interface for client-side transport implementations that
//     handles the connection, request sending and push delivery.
//
//   - IRPCServerTransport: Interface for server-side transport implementations that
//     accepts sessions and routes their requests to the session handler.
//
//   - IRPCSessionHandler / ISession: The server side handler interface and the
//     session it is handed, used to push events back to the host.
package transport
