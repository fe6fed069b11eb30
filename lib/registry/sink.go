package registry

import (
	"github.com/ValentinKolb/netstack/lib/socket"
)

// EventSink receives the events of all sockets of a registry. Emit is called from a
// single goroutine, a slow sink delays later events but never blocks a socket.
type EventSink interface {
	Emit(identifier int, event socket.Event)
}

// SinkFunc adapts a function to an EventSink
type SinkFunc func(identifier int, event socket.Event)

// Emit implements EventSink
func (f SinkFunc) Emit(identifier int, event socket.Event) {
	f(identifier, event)
}

// ChannelSink delivers events on a channel
type ChannelSink chan socket.Event

// Emit implements EventSink
func (c ChannelSink) Emit(_ int, event socket.Event) {
	c <- event
}

// discard drops every event
type discard struct{}

func (discard) Emit(int, socket.Event) {}
