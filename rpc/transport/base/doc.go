// Package base provides the foundation of the bridge transports, implementing the
// core client and server functionality independent of the underlying medium (TCP,
// Unix sockets, stdio). Protocol specifics are supplied through connectors.
//
// The package focuses on:
//   - Protocol-agnostic client and server transport implementations
//   - Frame-based message protocol with a channel and a requestID per frame
//   - Request and response correlation on the client
//   - Events pushed by the server at any time on a separate channel
//
// Frame Format:
//
//	8 bytes channel | 8 bytes request id | 4 bytes length | payload
//
//	Channel 1 carries requests and their responses, the response repeats the
//	request id. Channel 2 carries pushed events with request id 0.
//
// Key Components:
//
//   - IClientConnector/IServerConnector: Interfaces for protocol-specific operations
//     that allow extending the base transport with different media.
//
//   - clientTransport: Core client implementation over a single connection. A lost
//     connection fails all waiting requests and is not reestablished, since the
//     session and all its sockets ended with it.
//
//   - serverTransport: Core server implementation that accepts connections, opens
//     a session per connection and routes its requests to the session handler.
//
// Ordering:
//
//	With one worker per connection (the default) requests of a session are handled
//	one after another in frame order. More workers handle requests concurrently and
//	responses may be written out of order.
//
// Performance Optimizations:
//
//   - Buffer Pooling: The server uses a sync.Pool to reuse buffers, reducing
//     GC pressure and memory allocations.
//
//   - Frame Batching: The transport uses net.Buffers to reduce syscalls when
//     writing frames, combining header and payload into a single write operation.
//
// Thread Safety:
//
//	All public methods are thread-safe. Writes to a connection are serialized by a
//	mutex, so responses and pushed events never interleave.
package base
