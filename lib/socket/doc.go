/*
Package socket implements one identifier-addressed TCP connection: its state
machine, its two fixed-capacity buffers and the stream it owns.

# Lifecycle

A socket starts Idle. Connect moves it through Resolving and Connecting to
Open, Listen turns it into an Open listener directly. Close drives any
non-terminal socket to Closing and, once both lanes are drained and the
buffers are released, to Closed. Unrecoverable transport faults move it to
Failed. Closed and Failed are terminal.

	Idle ──connect──▶ Resolving ──▶ Connecting ──▶ Open ──close/EOF──▶ Closing ──▶ Closed
	  │                   │              │           │
	  └──listen──▶ Open   └──────────────┴───────────┴──fault──▶ Failed

# Lanes

Every socket has a read lane and a write lane. A lane runs one task at a time
in submission order, the two lanes run concurrently. Connect runs on the write
lane, read and accept on the read lane, write on the write lane. At most one
read (or accept) and one write are outstanding at any time, a second request
fails synchronously with ReadInProgress or WriteInProgress.

# Events

Results are reported through the emit hook as Events. Events of one socket are
emitted while holding the socket mutex, so a non-blocking hook (the registry
event queue) sees them in completion order. Nothing is emitted after closed,
and a Failed socket emits nothing after its initial error.
*/
package socket
