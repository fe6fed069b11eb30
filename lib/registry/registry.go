package registry

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/lib/stream"
	"github.com/ValentinKolb/netstack/lib/util"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("registry")

var (
	// ErrShutdown is returned for new sockets once Shutdown was called
	ErrShutdown = errors.New("registry is shut down")
)

// Config holds the settings of a registry
type Config struct {
	// Socket is shared by every socket of the registry
	Socket socket.Config
	// AutoCleanup evicts a socket as soon as it fails instead of waiting for the host
	// to close it. It is off by default: a host that never opted in can always close a
	// failed socket and gets its closed event.
	AutoCleanup bool
}

// DefaultConfig returns the configuration used when nothing else is configured
func DefaultConfig() Config {
	return Config{
		Socket:      socket.DefaultConfig(),
		AutoCleanup: false,
	}
}

// Command names a socket operation routed by Dispatch
type Command string

const (
	CmdConnect  Command = "connect"
	CmdRead     Command = "read"
	CmdWrite    Command = "write"
	CmdClose    Command = "close"
	CmdDescribe Command = "describe"
	CmdListen   Command = "listen"
	CmdAccept   Command = "accept"
)

// Args carries the arguments of a command, each command reads only its own fields
type Args struct {
	Host      string
	Port      int
	Options   map[string]any
	MaxLength int
	Exact     bool
	Until     []byte
	Skip      bool
	Data      []byte
}

// Result is the synchronous outcome of a command
type Result struct {
	Identifier int
	Descriptor *socket.Descriptor
}

// Registry maps identifiers to sockets
type Registry struct {
	config Config
	sink   EventSink

	sockets    *xsync.MapOf[int, *socket.Socket]
	connecting *xsync.MapOf[int, time.Time]
	ids        *idAllocator

	events    *util.MPSC[socket.Event]
	forwarded chan struct{}

	stats    *stats
	shutdown atomic.Bool
}

// New creates a registry delivering events to sink. A nil sink drops all events.
func New(sink EventSink, config Config) *Registry {
	if sink == nil {
		sink = discard{}
	}
	r := &Registry{
		config:     config,
		sink:       sink,
		sockets:    xsync.NewMapOf[int, *socket.Socket](),
		connecting: xsync.NewMapOf[int, time.Time](),
		ids:        newIDAllocator(),
		events:     util.NewMPSC[socket.Event](),
		forwarded:  make(chan struct{}),
		stats:      newStats(),
	}
	go r.forward()
	return r
}

// Len returns the number of registered sockets
func (r *Registry) Len() int {
	return r.sockets.Size()
}

// Create registers a fresh Idle socket
func (r *Registry) Create() (int, error) {
	if r.shutdown.Load() {
		return 0, ErrShutdown
	}
	id := r.ids.take()
	r.register(socket.New(id, r.config.Socket, r.hooks()))
	return id, nil
}

// Connect creates a socket and starts connecting it. If the connect is rejected
// synchronously the identifier is released again.
func (r *Registry) Connect(host string, port int, opts socket.Options) (int, error) {
	id, err := r.Create()
	if err != nil {
		return 0, err
	}
	if err := r.connect(id, host, port, opts); err != nil {
		r.discard(id)
		return 0, err
	}
	return id, nil
}

// Listen creates a listening socket bound to host:port
func (r *Registry) Listen(host string, port int) (int, error) {
	id, err := r.Create()
	if err != nil {
		return 0, err
	}
	if _, err := r.Dispatch(id, CmdListen, Args{Host: host, Port: port}); err != nil {
		r.discard(id)
		return 0, err
	}
	return id, nil
}

// Read starts a read of at most maxLength bytes
func (r *Registry) Read(id int, maxLength int) error {
	_, err := r.Dispatch(id, CmdRead, Args{MaxLength: maxLength})
	return err
}

// Write starts writing p
func (r *Registry) Write(id int, p []byte) error {
	_, err := r.Dispatch(id, CmdWrite, Args{Data: p})
	return err
}

// Close closes a socket
func (r *Registry) Close(id int) error {
	_, err := r.Dispatch(id, CmdClose, Args{})
	return err
}

// Accept waits for the next connection on a listener
func (r *Registry) Accept(id int) error {
	_, err := r.Dispatch(id, CmdAccept, Args{})
	return err
}

// Describe returns the descriptor of a socket
func (r *Registry) Describe(id int) (socket.Descriptor, error) {
	res, err := r.Dispatch(id, CmdDescribe, Args{})
	if err != nil {
		return socket.Descriptor{}, err
	}
	return *res.Descriptor, nil
}

// Dispatch routes a command to the socket with the given identifier
func (r *Registry) Dispatch(id int, cmd Command, args Args) (Result, error) {
	s, ok := r.sockets.Load(id)
	if !ok {
		return Result{}, socket.NewError(socket.UnknownIdentifier, fmt.Sprintf("no socket with identifier %d", id), nil)
	}

	res := Result{Identifier: id}
	var err error
	switch cmd {
	case CmdConnect:
		var opts socket.Options
		if opts, err = socket.DecodeOptions(args.Options); err != nil {
			return res, socket.NewError(socket.StreamError, "invalid connect options", err)
		}
		err = r.connect(id, args.Host, args.Port, opts)
	case CmdRead:
		req := socket.ReadRequest{MaxLength: args.MaxLength, Skip: args.Skip}
		switch {
		case len(args.Until) > 0:
			req.Mode, req.Terminator = socket.ReadUntil, args.Until
		case args.Exact:
			req.Mode = socket.ReadExact
		}
		err = s.ReadWith(req)
	case CmdWrite:
		err = s.Write(args.Data)
	case CmdClose:
		err = s.Close()
	case CmdDescribe:
		desc := s.Describe()
		res.Descriptor = &desc
	case CmdListen:
		err = s.Listen(args.Host, args.Port)
	case CmdAccept:
		err = s.Accept()
	default:
		err = socket.NewError(socket.StreamError, fmt.Sprintf("unknown command %q", cmd), nil)
	}
	if err != nil {
		Logger.Debugf("%s on socket %d rejected: %v", cmd, id, err)
	}
	return res, err
}

// Shutdown closes every socket and waits until all of them are torn down and their
// events were delivered, or ctx expires
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.shutdown.Swap(true) {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	r.sockets.Range(func(id int, s *socket.Socket) bool {
		_ = s.Close()
		g.Go(func() error {
			select {
			case <-s.Done():
				return nil
			case <-gctx.Done():
				return fmt.Errorf("failed to tear down socket %d: %w", id, gctx.Err())
			}
		})
		return true
	})
	err := g.Wait()

	r.events.Close()
	select {
	case <-r.forwarded:
	case <-ctx.Done():
		if err == nil {
			err = fmt.Errorf("failed to drain events: %w", ctx.Err())
		}
	}
	r.stats.stop()

	if err != nil {
		Logger.Warningf("registry shutdown incomplete: %v", err)
	}
	return err
}

// ------------------------------------------------------------------------------------
// Internal helpers
// ------------------------------------------------------------------------------------

// hooks returns the hooks wiring a socket to this registry
func (r *Registry) hooks() socket.Hooks {
	return socket.Hooks{
		Emit: func(ev socket.Event) {
			if !r.events.Push(ev) {
				Logger.Debugf("dropped %s after shutdown", ev)
			}
		},
		Adopt: r.adopt,
	}
}

func (r *Registry) register(s *socket.Socket) {
	r.sockets.Store(s.ID(), s)
	r.stats.created.Inc(1)
	socketsCreated.Inc()
	socketsOpen.Add(1)
}

// adopt registers an accepted stream as a new Open socket
func (r *Registry) adopt(a *stream.Adapter) (socket.Descriptor, error) {
	if r.shutdown.Load() {
		return socket.Descriptor{}, ErrShutdown
	}
	s := socket.NewOpen(r.ids.take(), r.config.Socket, r.hooks(), a)
	r.register(s)
	return s.Describe(), nil
}

func (r *Registry) connect(id int, host string, port int, opts socket.Options) error {
	s, ok := r.sockets.Load(id)
	if !ok {
		return socket.NewError(socket.UnknownIdentifier, fmt.Sprintf("no socket with identifier %d", id), nil)
	}
	r.connecting.Store(id, time.Now())
	if err := s.Connect(host, port, opts); err != nil {
		r.connecting.Delete(id)
		return err
	}
	return nil
}

// discard removes a socket the host never learned about, without any event
func (r *Registry) discard(id int) {
	if s, ok := r.sockets.LoadAndDelete(id); ok {
		s.Discard()
		r.ids.release(id)
		socketsOpen.Add(-1)
	}
}

// evict removes a socket whose life ended and frees its identifier
func (r *Registry) evict(id int) {
	if _, ok := r.sockets.LoadAndDelete(id); ok {
		r.ids.release(id)
		r.connecting.Delete(id)
		socketsOpen.Add(-1)
		Logger.Debugf("socket %d evicted", id)
	}
}

// forward drains the event queue into the sink
func (r *Registry) forward() {
	defer close(r.forwarded)

	for ev := range r.events.Recv() {
		r.observe(ev)
		if ev.Kind == socket.KindClosed || (ev.Fatal() && r.config.AutoCleanup) {
			r.evict(ev.Identifier)
		}
		r.sink.Emit(ev.Identifier, ev)
	}
}
