package socket

import (
	"context"
	"errors"
	"net"
	"syscall"

	"github.com/ValentinKolb/netstack/lib/stream"
)

// Connect starts connecting an Idle socket. The result is reported by a connected or
// an error event, only contract violations are returned.
func (s *Socket) Connect(host string, port int, opts Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrAlreadyConnected
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := opts.ConnectTimeout(s.config.ConnectTimeout); timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	s.cancelConnect = cancel
	s.remote = endpoint{host: host, port: port}
	s.moveLocked(Resolving)

	s.writeLane.submit(func() {
		defer cancel()
		s.runConnect(ctx, host, port, opts)
	})
	return nil
}

func (s *Socket) runConnect(ctx context.Context, host string, port int, opts Options) {
	candidates, err := s.dialer.Resolve(ctx, host)

	s.mu.Lock()
	if err != nil {
		s.connectFailedLocked(ctx, resolveError(ctx, err))
		s.mu.Unlock()
		return
	}
	if s.state != Resolving {
		s.connectFailedLocked(ctx, nil)
		s.mu.Unlock()
		return
	}
	s.moveLocked(Connecting)
	s.mu.Unlock()

	a, err := s.dialer.Dial(ctx, candidates, port)
	if err == nil && opts.TLS {
		if err = a.StartTLS(ctx, stream.ForHost(s.config.TLS, host)); err != nil {
			_ = a.Close()
			a = nil
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.connectFailedLocked(ctx, dialError(ctx, err))
		return
	}
	if s.state != Connecting {
		_ = a.Close()
		s.connectFailedLocked(ctx, nil)
		return
	}

	s.stream = a
	s.family = a.Family()
	s.local.host, s.local.port = a.LocalEndpoint()
	s.remote.host, s.remote.port = a.RemoteEndpoint()
	s.moveLocked(Open)
	Logger.Debugf("socket %d: connected to %s:%d over %s", s.id, s.remote.host, s.remote.port, s.family)

	desc := s.describeLocked()
	s.emitLocked(Event{Kind: KindConnected, Descriptor: &desc})
}

// connectFailedLocked reports a failed connect. A nil error means the socket left
// the connect path because it is closing.
func (s *Socket) connectFailedLocked(ctx context.Context, err *Error) {
	if s.state == Closing || err == nil {
		var cause error
		if err != nil {
			cause = err.Err
		}
		s.emitErrorLocked(NewError(Cancelled, "connect aborted by close", cause))
		return
	}
	s.failLocked(err)
}

// resolveError classifies a failed lookup
func resolveError(ctx context.Context, err error) *Error {
	switch {
	case ctx.Err() == context.Canceled:
		return NewError(Cancelled, "connect aborted by close", err)
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return NewError(ConnectTimeout, "resolution timed out", err)
	default:
		return NewError(ResolutionFailed, "", err)
	}
}

// dialError classifies a failed TCP or TLS handshake
func dialError(ctx context.Context, err error) *Error {
	var netErr net.Error
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return NewError(ConnectionRefused, "", err)
	case ctx.Err() == context.Canceled:
		return NewError(Cancelled, "connect aborted by close", err)
	case errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded:
		return NewError(ConnectTimeout, "", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return NewError(ConnectTimeout, "", err)
	case errors.Is(err, stream.ErrNoAddress):
		return NewError(ResolutionFailed, "", err)
	default:
		return NewError(StreamError, "failed to connect", err)
	}
}

// ------------------------------------------------------------------------------------
// Listener sockets
// ------------------------------------------------------------------------------------

// Listen binds an Idle socket to host:port and turns it into an Open listener.
// An empty host binds all interfaces, port 0 picks a free port. A failed bind leaves
// the socket Idle.
func (s *Socket) Listen(host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return ErrAlreadyConnected
	}

	l, err := stream.Listen(context.Background(), host, port, s.config.Stream)
	if err != nil {
		return NewError(StreamError, "", err)
	}

	s.listener = l
	s.listening = true
	s.family = l.Family()
	s.local.host, s.local.port = l.LocalEndpoint()
	s.moveLocked(Open)
	Logger.Infof("socket %d: listening on %s:%d", s.id, s.local.host, s.local.port)
	return nil
}

// Accept waits for the next connection on the read lane. The new socket is
// registered through the Adopt hook and reported by an accepted event.
func (s *Socket) Accept() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return ErrNotConnected
	}
	if !s.listening {
		return ErrNotListening
	}
	if s.reading {
		return ErrReadInProgress
	}

	s.reading = true
	l := s.listener
	s.readLane.submit(func() {
		a, err := l.Accept()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.reading = false

		if err != nil {
			s.failLocked(NewError(StreamError, "failed to accept", err))
			return
		}
		if s.state != Open {
			_ = a.Close()
			if s.state == Closing {
				s.emitErrorLocked(NewError(Cancelled, "accept aborted by close", nil))
			}
			return
		}
		if s.hooks.Adopt == nil {
			_ = a.Close()
			s.failLocked(NewError(StreamError, "socket cannot adopt accepted streams", nil))
			return
		}

		desc, err := s.hooks.Adopt(a)
		if err != nil {
			_ = a.Close()
			Logger.Warningf("socket %d: failed to adopt accepted stream: %v", s.id, err)
			s.emitErrorLocked(NewError(StreamError, "failed to register accepted stream", err))
			return
		}
		s.emitLocked(Event{Kind: KindAccepted, Descriptor: &desc})
	})
	return nil
}
