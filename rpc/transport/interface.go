package transport

import (
	"github.com/ValentinKolb/netstack/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ISession is one connected host as seen by the server transport
type ISession interface {
	// ID returns the identifier of the session, unique within one server transport
	ID() uint64
	// Push sends an unsolicited frame (an event) to the host. It is safe to call
	// concurrently with responses and fails once the session has ended.
	Push(data []byte) error
}

// IRPCSessionHandler handles the requests of host sessions. The transport calls
// OpenSession before the first request of a session and CloseSession after the
// last response was written.
type IRPCSessionHandler interface {
	// OpenSession prepares the state of a new session. If it fails the session
	// is closed without handling any request.
	OpenSession(s ISession) error
	// Handle handles one request and returns the response
	Handle(s ISession, req []byte) (resp []byte)
	// CloseSession releases the state of a session. Pushes are still delivered
	// while CloseSession runs, if the host is still reading.
	CloseSession(s ISession)
}

// IRPCServerTransport is the interface for the server side of the transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the session handler, it must be called before Listen
	RegisterHandler(handler IRPCSessionHandler)
	// Listen accepts sessions until Close is called or the listener is exhausted.
	// It returns after every session has ended.
	Listen(config common.ServerConfig) error
	// Close stops accepting sessions and ends the active ones
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the client side of the transport layer
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response
	Send(req []byte) (resp []byte, err error)
	// OnPush registers the callback for pushed frames. It must be set before
	// Connect, frames are delivered in order from a single goroutine.
	OnPush(handler func(data []byte))
	// Done is closed once the connection ended, after the last pushed frame was
	// handed to the push handler
	Done() <-chan struct{}
	// Close closes the transport connection
	Close() error
}
