/*
Package registry owns every socket of one host session and addresses them by
integer identifier.

The registry allocates identifiers (the smallest freed identifier first,
otherwise the next unused one), routes host commands to the addressed socket
and forwards socket events to an EventSink. Sockets push their events into a
lock-free queue, a single forwarder goroutine drains it, so events of one
socket reach the sink in the order they happened.

A socket is evicted when it reports closed, or when it fails while
AutoCleanup is enabled. AutoCleanup is off in DefaultConfig, so a failed
socket stays addressable until the host closes it. Eviction happens before the event reaches the sink,
so a host reacting to closed already gets UnknownIdentifier for the old
identifier.

Lifetime is explicit:

	reg := registry.New(sink, registry.DefaultConfig())
	defer reg.Shutdown(ctx)

	id, err := reg.Connect("example.com", 80, socket.Options{})
*/
package registry
