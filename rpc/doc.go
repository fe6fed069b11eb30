// Package rpc exposes a socket registry to a host over a framed message protocol.
// A host sends commands (create, connect, read, write, ...) and receives their
// results both as direct responses and as asynchronously pushed events.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the bridge, including the Message
//     protocol, configuration structures, and logging.
//
//   - transport: Framed, bidirectional communication with pluggable implementations
//     (TCP, Unix sockets, websockets, standard streams). Besides request and response frames a
//     transport carries pushed event frames from server to client.
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - server: The bridge itself. Every transport session owns one socket registry
//     whose events are pushed back to the session.
//
//   - client: A Go client of the bridge with typed methods for every host command
//     and a channel of decoded events.
package rpc
