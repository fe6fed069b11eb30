package socket

import (
	"errors"
	"io"

	"github.com/ValentinKolb/netstack/lib/buffer"
	"github.com/ValentinKolb/netstack/lib/stream"
)

// ReadMode selects how a read completes
type ReadMode uint8

const (
	// ReadAny completes with whatever a single read returns
	ReadAny ReadMode = iota
	// ReadExact completes once exactly maxLength bytes arrived
	ReadExact
	// ReadUntil completes after the terminator (included in the data) or maxLength bytes
	ReadUntil
)

// String returns the string representation of a ReadMode
func (m ReadMode) String() string {
	switch m {
	case ReadExact:
		return "exact"
	case ReadUntil:
		return "until"
	default:
		return "any"
	}
}

// ReadRequest describes one read. MaxLength <= 0 means the buffer capacity.
type ReadRequest struct {
	MaxLength  int
	Mode       ReadMode
	Terminator []byte
	// Skip discards the bytes read and reports only their count
	Skip bool
}

// Read starts reading at most maxLength bytes
func (s *Socket) Read(maxLength int) error {
	return s.ReadWith(ReadRequest{MaxLength: maxLength})
}

// ReadWith starts a read on the read lane. The result is reported by a
// dataAvailable or an error event.
func (s *Socket) ReadWith(req ReadRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return ErrNotConnected
	}
	if s.listening {
		return ErrListening
	}
	if req.MaxLength > s.readBuf.Cap() {
		return ErrPayloadTooLarge
	}
	if s.reading {
		return ErrReadInProgress
	}
	if req.Mode == ReadUntil && len(req.Terminator) == 0 {
		req.Mode = ReadAny
	}

	s.reading = true
	a, buf := s.stream, s.readBuf
	s.readLane.submit(func() {
		s.runRead(a, buf, req)
	})
	return nil
}

func (s *Socket) runRead(a *stream.Adapter, buf *buffer.Buffer, req ReadRequest) {
	var (
		n   int
		err error
	)
	switch req.Mode {
	case ReadExact:
		n, err = a.ReadFull(buf, req.MaxLength)
	case ReadUntil:
		n, err = a.ReadUntil(buf, req.MaxLength, req.Terminator)
	default:
		n, err = a.ReadInto(buf, req.MaxLength)
		if n == 0 && err == nil {
			err = io.EOF
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = false

	switch {
	case s.state == Closing:
		s.emitErrorLocked(NewError(Cancelled, "read aborted by close", err))
	case s.state != Open:
	case err == nil:
		s.emitLocked(dataEvent(buf, req.Skip))
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		// the peer closed its write side, deliver what arrived and close
		Logger.Debugf("socket %d: peer closed after %d bytes", s.id, n)
		s.emitLocked(dataEvent(buf, req.Skip))
		s.moveLocked(Closing)
		s.teardownLocked()
	default:
		s.failLocked(NewError(StreamError, "failed to read", err))
	}
}

func dataEvent(buf *buffer.Buffer, skip bool) Event {
	if skip {
		return Event{Kind: KindDataAvailable, Data: []byte{}, Count: buf.Len()}
	}
	data := buf.Copy()
	return Event{Kind: KindDataAvailable, Data: data, Count: len(data)}
}

// Write starts writing p on the write lane. p is copied into the write buffer before
// Write returns. The result is reported by a bytesWritten or an error event.
func (s *Socket) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Open {
		return ErrNotConnected
	}
	if s.listening {
		return ErrListening
	}
	if len(p) > s.writeBuf.Cap() {
		return ErrPayloadTooLarge
	}
	if s.writing {
		return ErrWriteInProgress
	}
	if err := s.writeBuf.Load(p); err != nil {
		return NewError(PayloadTooLarge, "", err)
	}

	s.writing = true
	a, buf := s.stream, s.writeBuf
	s.writeLane.submit(func() {
		n, err := a.WriteFrom(buf)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.writing = false

		switch {
		case s.state == Closing:
			s.emitErrorLocked(NewError(Cancelled, "write aborted by close", err))
		case s.state != Open:
		case err != nil:
			s.failLocked(NewError(StreamError, "failed to write", err))
		default:
			s.emitLocked(Event{Kind: KindBytesWritten, Count: n})
		}
	})
	return nil
}
