// Package stream wraps the operating system byte streams behind the sockets of the
// registry. It is the only package that talks to the net package directly.
//
// The package focuses on:
//   - Resolving a host name into at most one IPv6 and one IPv4 candidate
//   - Dialing those candidates in a fixed order (IPv6 first, one IPv4 fallback)
//   - Applying TCP tuning to every established connection
//   - Moving bytes between a connection and a buffer.Buffer
//   - Upgrading an established connection to TLS
//   - Listening for and accepting incoming connections
//
// Key Components:
//
//   - Dialer: resolution and connection establishment. The resolver is injected so
//     tests can serve their own zones.
//
//   - Adapter: one established connection. Reads go through a small bufio.Reader so
//     terminator based reads never lose bytes that arrived after the terminator;
//     writes are retried until the whole buffer is flushed.
//
//   - Listener: a bound listening socket producing Adapters.
//
// Thread Safety:
//
//	An Adapter supports one concurrent reader and one concurrent writer. Close may be
//	called from any goroutine and unblocks pending reads and writes.
package stream
