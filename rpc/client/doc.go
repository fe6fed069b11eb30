// Package client implements a Go client of the socket bridge.
//
// The package focuses on:
//   - Typed methods for every host command
//   - Decoding pushed events into socket.Event values
//   - Preserving the socket error codes reported by the bridge, so errors.Is
//     works against the socket sentinel errors
//
// Key Components:
//
//   - NewHostClient: Factory function that connects a transport and returns a
//     HostClient. All sockets created through it belong to its session.
//
// Usage Example:
//
//	c, err := client.NewHostClient(
//	  common.ClientConfig{Transport: "unix", Endpoint: "/tmp/netstack.sock", TimeoutSecond: 5},
//	  unix.NewUnixClientTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//	if err != nil {
//	  log.Fatal(err)
//	}
//	defer c.Shutdown()
//
//	id, err := c.Connect("example.org", 80, nil)
//	for ev := range c.Events() {
//	  if ev.Identifier == id && ev.Kind == socket.KindConnected {
//	    _ = c.Write(id, []byte("GET / HTTP/1.0\r\n\r\n"))
//	  }
//	}
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Events must be consumed, they are
//	buffered without bound.
package client
