package dial

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/ValentinKolb/netstack/lib/socket"
)

// ErrHostGone is returned when the event stream ends before the socket closed
var ErrHostGone = errors.New("event stream ended")

// session pipes input lines to one socket and the data it receives to out
type session struct {
	host       socketHost
	out        io.Writer
	errOut     io.Writer
	closeOnEOF bool

	// id is the data socket, listener the listening socket in listen mode
	id       int
	listener int
	open     bool
	writing  bool
	inputEOF bool
	pending  [][]byte
	failed   error
}

// readLines sends the lines of r (newline included) and closes the channel at EOF
func readLines(r io.Reader) <-chan []byte {
	lines := make(chan []byte, 16)
	go func() {
		defer close(lines)
		reader := bufio.NewReader(r)
		for {
			line, err := reader.ReadBytes('\n')
			if len(line) > 0 {
				lines <- line
			}
			if err != nil {
				return
			}
		}
	}()
	return lines
}

// connect opens the data socket to host:port
func (s *session) connect(host string, port int, options map[string]any) error {
	id, err := s.host.Connect(host, port, options)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	s.id = id
	s.listener = -1
	return nil
}

// listen binds host:port and waits for a single peer
func (s *session) listen(host string, port int) error {
	id, err := s.host.Listen(host, port)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	if err := s.host.Accept(id); err != nil {
		return fmt.Errorf("failed to accept: %w", err)
	}
	s.listener = id
	s.id = -1
	return nil
}

// run processes events and input until the data socket closed
func (s *session) run(lines <-chan []byte) error {
	events := s.host.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return ErrHostGone
			}
			done, err := s.handle(ev)
			if err != nil {
				return err
			}
			if done {
				return s.failed
			}

		case line, ok := <-lines:
			if !ok {
				lines = nil
				s.inputEOF = true
			} else {
				s.pending = append(s.pending, line)
			}
			if err := s.flush(); err != nil {
				return err
			}
		}
	}
}

// handle applies one event, reporting whether the session is over
func (s *session) handle(ev socket.Event) (bool, error) {
	if ev.Identifier == s.listener && s.listener >= 0 {
		return s.handleListener(ev)
	}
	if ev.Identifier != s.id {
		return false, nil
	}

	switch ev.Kind {
	case socket.KindConnected:
		s.open = true
		if err := s.host.Read(s.id, 0); err != nil {
			return false, fmt.Errorf("failed to read: %w", err)
		}
		return false, s.flush()

	case socket.KindDataAvailable:
		if len(ev.Data) == 0 {
			return false, nil
		}
		if _, err := s.out.Write(ev.Data); err != nil {
			return false, fmt.Errorf("failed to write output: %w", err)
		}
		if err := s.host.Read(s.id, 0); err != nil && !closing(err) {
			return false, fmt.Errorf("failed to read: %w", err)
		}

	case socket.KindBytesWritten:
		s.writing = false
		return false, s.flush()

	case socket.KindError:
		fmt.Fprintf(s.errOut, "error: %v\n", ev.Err)
		if ev.Fatal() {
			s.failed = ev.Err
			// an evicted socket reports no closed event
			if err := s.host.Close(s.id); err != nil {
				return true, nil
			}
		}

	case socket.KindClosed:
		return true, nil
	}
	return false, nil
}

func (s *session) handleListener(ev socket.Event) (bool, error) {
	switch ev.Kind {
	case socket.KindAccepted:
		if ev.Descriptor == nil {
			return false, nil
		}
		s.id = ev.Descriptor.Identifier
		fmt.Fprintf(s.errOut, "accepted %s:%d\n", ev.Descriptor.RemoteAddress, ev.Descriptor.RemotePort)
		// a single peer is served
		_ = s.host.Close(s.listener)
		return s.handle(socket.Event{Identifier: s.id, Kind: socket.KindConnected})

	case socket.KindError:
		fmt.Fprintf(s.errOut, "listener error: %v\n", ev.Err)
		if ev.Fatal() {
			return true, ev.Err
		}
	}
	return false, nil
}

// flush writes the next pending line once the previous write completed
func (s *session) flush() error {
	if !s.open || s.writing {
		return nil
	}
	if len(s.pending) == 0 {
		if s.inputEOF && s.closeOnEOF {
			s.open = false
			if err := s.host.Close(s.id); err != nil && !closing(err) {
				return fmt.Errorf("failed to close: %w", err)
			}
		}
		return nil
	}

	line := s.pending[0]
	s.pending = s.pending[1:]
	if err := s.host.Write(s.id, line); err != nil {
		return fmt.Errorf("failed to write: %w", err)
	}
	s.writing = true
	return nil
}

// closing reports whether err only says the socket is already going away
func closing(err error) bool {
	switch socket.CodeOf(err) {
	case socket.NotConnected, socket.Cancelled, socket.UnknownIdentifier:
		return true
	}
	return false
}
