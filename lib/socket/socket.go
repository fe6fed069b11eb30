package socket

import (
	"crypto/tls"
	"sync"
	"time"

	"github.com/ValentinKolb/netstack/lib/buffer"
	"github.com/ValentinKolb/netstack/lib/stream"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("socket")

// Config holds what every socket of a registry shares
type Config struct {
	// Stream tunes every established TCP stream
	Stream stream.Config
	// Resolver is used for host lookups, nil means the system resolver
	Resolver stream.Resolver
	// TLS is the base client configuration for connects with the tls option, nil
	// means the system defaults
	TLS *tls.Config
	// ConnectTimeout applies when the host passes no connectTimeoutMs, 0 means no timeout
	ConnectTimeout time.Duration
}

// DefaultConfig returns the configuration used when nothing else is configured
func DefaultConfig() Config {
	return Config{
		Stream:         stream.DefaultConfig(),
		ConnectTimeout: 10 * time.Second,
	}
}

// Hooks connect a socket to its owner
type Hooks struct {
	// Emit receives every event of the socket. It is called with the socket mutex held
	// and must not block or call back into the socket.
	Emit func(Event)
	// Adopt registers a stream produced by accept as a new socket and returns its
	// descriptor. Only listeners call it.
	Adopt func(*stream.Adapter) (Descriptor, error)
}

type endpoint struct {
	host string
	port int
}

// Socket is one connection or listener
type Socket struct {
	id     int
	config Config
	hooks  Hooks
	dialer *stream.Dialer

	mu        sync.Mutex
	state     State
	listening bool
	reading   bool
	writing   bool
	family    stream.Family
	local     endpoint
	remote    endpoint

	readBuf  *buffer.Buffer
	writeBuf *buffer.Buffer
	stream   *stream.Adapter
	listener *stream.Listener

	cancelConnect func()

	readLane  *lane
	writeLane *lane

	tearingDown   bool
	closedEmitted bool
	done          chan struct{}
}

// New creates an Idle socket
func New(id int, config Config, hooks Hooks) *Socket {
	return &Socket{
		id:        id,
		config:    config,
		hooks:     hooks,
		dialer:    stream.NewDialer(config.Stream, config.Resolver),
		state:     Idle,
		readBuf:   buffer.New(),
		writeBuf:  buffer.New(),
		readLane:  newLane(),
		writeLane: newLane(),
		done:      make(chan struct{}),
	}
}

// NewOpen creates an Open socket around an established stream, used for accepted
// connections
func NewOpen(id int, config Config, hooks Hooks, a *stream.Adapter) *Socket {
	s := New(id, config, hooks)
	s.stream = a
	s.family = a.Family()
	s.local.host, s.local.port = a.LocalEndpoint()
	s.remote.host, s.remote.port = a.RemoteEndpoint()
	s.state = Open
	return s
}

// ID returns the identifier of the socket
func (s *Socket) ID() int {
	return s.id
}

// State returns the current state
func (s *Socket) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed once the socket is torn down: both lanes drained, buffers and
// stream released
func (s *Socket) Done() <-chan struct{} {
	return s.done
}

// Describe returns the current endpoints of the socket
func (s *Socket) Describe() Descriptor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.describeLocked()
}

func (s *Socket) describeLocked() Descriptor {
	return Descriptor{
		Identifier:    s.id,
		LocalAddress:  s.local.host,
		LocalPort:     s.local.port,
		RemoteAddress: s.remote.host,
		RemotePort:    s.remote.port,
		AddressFamily: s.family,
		State:         s.state,
		Listening:     s.listening,
	}
}

// Close is idempotent from any state. A non-terminal socket moves to Closing and
// emits closed once both lanes are drained. A Failed socket emits closed once so the
// owner can release its identifier, a Closed socket does nothing.
func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case Closing, Closed:
		return nil
	case Failed:
		s.emitLocked(Event{Kind: KindClosed})
		return nil
	}

	s.moveLocked(Closing)
	s.teardownLocked()
	return nil
}

// Discard tears the socket down without emitting any event. It is used for sockets
// the host never learned about.
func (s *Socket) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closedEmitted = true
	if s.state.Terminal() || s.state == Closing {
		return
	}
	s.moveLocked(Closing)
	s.teardownLocked()
}

// ------------------------------------------------------------------------------------
// Internal helpers, all called with mu held
// ------------------------------------------------------------------------------------

// moveLocked performs a state transition along an allowed edge
func (s *Socket) moveLocked(next State) bool {
	if !s.state.CanMove(next) {
		Logger.Errorf("socket %d: illegal transition %s -> %s", s.id, s.state, next)
		return false
	}
	Logger.Debugf("socket %d: %s -> %s", s.id, s.state, next)
	s.state = next
	return true
}

// emitLocked hands an event to the owner. Nothing is emitted after closed.
func (s *Socket) emitLocked(ev Event) {
	if s.closedEmitted {
		return
	}
	if ev.Kind == KindClosed {
		s.closedEmitted = true
	}
	ev.Identifier = s.id
	if s.hooks.Emit != nil {
		s.hooks.Emit(ev)
	}
}

// emitErrorLocked reports an error, marked fatal when the socket has failed
func (s *Socket) emitErrorLocked(err *Error) {
	s.emitLocked(Event{Kind: KindError, Err: err, Failed: s.state == Failed})
}

// failLocked reports a transport fault. While closing the fault is the expected
// result of the teardown and is reported as Cancelled, otherwise the socket fails.
func (s *Socket) failLocked(err *Error) {
	switch {
	case s.state == Closing:
		s.emitErrorLocked(NewError(Cancelled, ErrCancelled.Message, err.Err))
	case s.state.Terminal():
	default:
		Logger.Warningf("socket %d failed: %v", s.id, err)
		s.moveLocked(Failed)
		s.emitErrorLocked(err)
		s.teardownLocked()
	}
}

// teardownLocked closes the stream so pending lane tasks return, stops both lanes
// and releases everything once they are drained
func (s *Socket) teardownLocked() {
	if s.tearingDown {
		return
	}
	s.tearingDown = true

	if s.cancelConnect != nil {
		s.cancelConnect()
	}
	if s.stream != nil {
		if err := s.stream.Close(); err != nil {
			Logger.Debugf("socket %d: failed to close stream: %v", s.id, err)
		}
	}
	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			Logger.Debugf("socket %d: failed to close listener: %v", s.id, err)
		}
	}
	s.readLane.close()
	s.writeLane.close()

	go s.finalize()
}

// finalize waits for both lanes and enters the terminal state
func (s *Socket) finalize() {
	<-s.readLane.done
	<-s.writeLane.done

	s.mu.Lock()
	defer s.mu.Unlock()

	s.readBuf.Release()
	s.writeBuf.Release()
	s.stream = nil
	s.listener = nil

	if s.state == Closing {
		s.moveLocked(Closed)
		s.emitLocked(Event{Kind: KindClosed})
	}
	close(s.done)
}
