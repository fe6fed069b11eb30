package socket

import (
	"bytes"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ValentinKolb/netstack/lib/buffer"
	"github.com/ValentinKolb/netstack/lib/stream"
	"github.com/foxcpp/go-mockdns"
)

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

type recorder struct {
	events chan Event
}

func newRecorder() *recorder {
	return &recorder{events: make(chan Event, 256)}
}

func (r *recorder) hooks() Hooks {
	return Hooks{Emit: func(ev Event) { r.events <- ev }}
}

// next waits for the next event
func (r *recorder) next(t *testing.T) Event {
	t.Helper()
	select {
	case ev := <-r.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for an event")
		return Event{}
	}
}

// expect waits for the next event and checks its kind
func (r *recorder) expect(t *testing.T, kind Kind) Event {
	t.Helper()
	ev := r.next(t)
	if ev.Kind != kind {
		t.Fatalf("Expected %s event, got %s", kind, ev)
	}
	return ev
}

// quiet checks that no event arrives for a short while
func (r *recorder) quiet(t *testing.T) {
	t.Helper()
	select {
	case ev := <-r.events:
		t.Fatalf("Unexpected event %s", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

// startServer runs handle for every accepted connection on an IPv4 loopback port
func startServer(t *testing.T, handle func(net.Conn)) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go handle(conn)
		}
	}()
	return ln.Addr().(*net.TCPAddr).Port
}

func echo(conn net.Conn) {
	defer conn.Close()
	_, _ = io.Copy(conn, conn)
}

func silent(conn net.Conn) {
	defer conn.Close()
	_, _ = io.Copy(io.Discard, conn)
}

func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// connectOpen returns an Open socket connected to port
func connectOpen(t *testing.T, id int, port int) (*Socket, *recorder) {
	t.Helper()
	r := newRecorder()
	s := New(id, DefaultConfig(), r.hooks())
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Connect("127.0.0.1", port, Options{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	ev := r.expect(t, KindConnected)
	if ev.Identifier != id {
		t.Fatalf("Expected identifier %d, got %d", id, ev.Identifier)
	}
	return s, r
}

// --------------------------------------------------------------------------
// State machine
// --------------------------------------------------------------------------

func TestStateTransitions(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{Idle, Resolving, true},
		{Idle, Open, true},
		{Resolving, Connecting, true},
		{Resolving, Failed, true},
		{Connecting, Open, true},
		{Connecting, Failed, true},
		{Open, Closing, true},
		{Open, Failed, true},
		{Closing, Closed, true},
		{Idle, Connecting, false},
		{Open, Resolving, false},
		{Open, Closed, false},
		{Closing, Open, false},
		{Closed, Idle, false},
		{Closed, Failed, false},
		{Failed, Closed, false},
		{Failed, Open, false},
	}

	for _, tc := range tests {
		if got := tc.from.CanMove(tc.to); got != tc.allowed {
			t.Errorf("%s -> %s: expected allowed=%v, got %v", tc.from, tc.to, tc.allowed, got)
		}
	}
	if !Closed.Terminal() || !Failed.Terminal() || Open.Terminal() {
		t.Error("Unexpected terminal states")
	}
}

// --------------------------------------------------------------------------
// Contract violations
// --------------------------------------------------------------------------

func TestOperationsBeforeOpen(t *testing.T) {
	r := newRecorder()
	s := New(1, DefaultConfig(), r.hooks())
	defer s.Close()

	if err := s.Read(0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected NotConnected for read, got %v", err)
	}
	if err := s.Write([]byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected NotConnected for write, got %v", err)
	}
	if err := s.Accept(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected NotConnected for accept, got %v", err)
	}
	if s.State() != Idle {
		t.Errorf("Expected Idle, got %s", s.State())
	}

	desc := s.Describe()
	if desc.Identifier != 1 || desc.State != Idle || desc.RemotePort != 0 {
		t.Errorf("Unexpected descriptor %+v", desc)
	}
	r.quiet(t)
}

func TestWriteBeforeConnected(t *testing.T) {
	port := startServer(t, silent)
	r := newRecorder()
	s := New(1, DefaultConfig(), r.hooks())
	defer s.Close()

	if err := s.Connect("127.0.0.1", port, Options{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if s.State() != Open {
		if err := s.Write([]byte("early")); !errors.Is(err, ErrNotConnected) {
			t.Errorf("Expected NotConnected before connected, got %v", err)
		}
	}
	if err := s.Connect("127.0.0.1", port, Options{}); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Expected AlreadyConnected, got %v", err)
	}
	r.expect(t, KindConnected)
}

func TestPayloadTooLarge(t *testing.T) {
	port := startServer(t, silent)
	s, r := connectOpen(t, 1, port)

	if err := s.Write(make([]byte, buffer.Capacity+1)); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected PayloadTooLarge for write, got %v", err)
	}
	if err := s.Read(buffer.Capacity + 1); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected PayloadTooLarge for read, got %v", err)
	}
	if s.State() != Open {
		t.Errorf("Expected state to stay Open, got %s", s.State())
	}
	r.quiet(t)
}

func TestReadInProgress(t *testing.T) {
	port := startServer(t, silent)
	s, _ := connectOpen(t, 1, port)

	if err := s.Read(0); err != nil {
		t.Fatalf("First read failed: %v", err)
	}
	if err := s.Read(0); !errors.Is(err, ErrReadInProgress) {
		t.Errorf("Expected ReadInProgress, got %v", err)
	}
	// the write lane is independent of the read lane
	if err := s.Write([]byte("ping")); err != nil {
		t.Errorf("Write next to a pending read failed: %v", err)
	}
}

func TestWriteInProgress(t *testing.T) {
	// the peer never reads, so a large write stays on the lane
	stop := make(chan struct{})
	port := startServer(t, func(conn net.Conn) {
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetReadBuffer(4096)
		}
		<-stop
		conn.Close()
	})
	t.Cleanup(func() { close(stop) })

	config := DefaultConfig()
	config.Stream.WriteBufferSize = 4096
	r := newRecorder()
	s := New(1, config, r.hooks())
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Connect("127.0.0.1", port, Options{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	r.expect(t, KindConnected)

	if err := s.Write(make([]byte, buffer.Capacity)); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := s.Write([]byte("second")); !errors.Is(err, ErrWriteInProgress) {
		t.Errorf("Expected WriteInProgress, got %v", err)
	}
	if s.State() != Open {
		t.Errorf("Expected state to stay Open, got %s", s.State())
	}
	r.quiet(t)
}

// --------------------------------------------------------------------------
// Data path
// --------------------------------------------------------------------------

func TestRoundTrip(t *testing.T) {
	port := startServer(t, echo)

	for _, size := range []int{1, 1024, buffer.Capacity} {
		s, r := connectOpen(t, 1, port)
		payload := bytes.Repeat([]byte{'a', 'b', 'c', 'd'}, size/4+1)[:size]

		if err := s.Write(payload); err != nil {
			t.Fatalf("Write of %d bytes failed: %v", size, err)
		}
		if err := s.ReadWith(ReadRequest{MaxLength: size, Mode: ReadExact}); err != nil {
			t.Fatalf("Read of %d bytes failed: %v", size, err)
		}

		var written int
		var data []byte
		for written == 0 || data == nil {
			ev := r.next(t)
			switch ev.Kind {
			case KindBytesWritten:
				written = ev.Count
			case KindDataAvailable:
				data = ev.Data
			default:
				t.Fatalf("Unexpected event %s", ev)
			}
		}
		if written != size {
			t.Errorf("Expected %d bytes written, got %d", size, written)
		}
		if !bytes.Equal(data, payload) {
			t.Errorf("Round trip of %d bytes returned different data (%d bytes)", size, len(data))
		}
		_ = s.Close()
	}
}

func TestReadUntilTerminator(t *testing.T) {
	port := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = conn.Write([]byte("HELLO\r\nWORLD\r\n"))
		time.Sleep(time.Second)
	})
	s, r := connectOpen(t, 1, port)

	for _, want := range []string{"HELLO\r\n", "WORLD\r\n"} {
		if err := s.ReadWith(ReadRequest{Mode: ReadUntil, Terminator: []byte("\r\n")}); err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if got := string(r.expect(t, KindDataAvailable).Data); got != want {
			t.Errorf("Expected %q, got %q", want, got)
		}
	}
}

func TestReadSkip(t *testing.T) {
	port := startServer(t, func(conn net.Conn) {
		defer conn.Close()
		_, _ = conn.Write([]byte("HEADERbody"))
		time.Sleep(time.Second)
	})
	s, r := connectOpen(t, 1, port)

	if err := s.ReadWith(ReadRequest{MaxLength: 6, Mode: ReadExact, Skip: true}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	ev := r.expect(t, KindDataAvailable)
	if ev.Count != 6 || len(ev.Data) != 0 {
		t.Errorf("Expected a count of 6 without data, got count %d and %q", ev.Count, ev.Data)
	}

	// the skipped bytes are gone, the next read starts after them
	if err := s.ReadWith(ReadRequest{MaxLength: 4, Mode: ReadExact}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	ev = r.expect(t, KindDataAvailable)
	if string(ev.Data) != "body" || ev.Count != 4 {
		t.Errorf("Expected 'body' with count 4, got %q with count %d", ev.Data, ev.Count)
	}
}

func TestPeerShutdown(t *testing.T) {
	port := startServer(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("bye"))
		conn.Close()
	})
	s, r := connectOpen(t, 1, port)

	if err := s.ReadWith(ReadRequest{MaxLength: 3, Mode: ReadExact}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := string(r.expect(t, KindDataAvailable).Data); got != "bye" {
		t.Errorf("Expected 'bye', got %q", got)
	}

	if err := s.Read(0); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if ev := r.expect(t, KindDataAvailable); len(ev.Data) != 0 {
		t.Errorf("Expected an empty read at EOF, got %d bytes", len(ev.Data))
	}
	r.expect(t, KindClosed)
	<-s.Done()
	if s.State() != Closed {
		t.Errorf("Expected Closed, got %s", s.State())
	}
}

// --------------------------------------------------------------------------
// Close
// --------------------------------------------------------------------------

func TestCloseCancelsPendingRead(t *testing.T) {
	port := startServer(t, silent)
	s, r := connectOpen(t, 1, port)

	if err := s.Read(0); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Second close failed: %v", err)
	}

	ev := r.expect(t, KindError)
	if ev.Err.Code != Cancelled || ev.Fatal() {
		t.Errorf("Expected non-fatal Cancelled, got %v", ev.Err)
	}
	r.expect(t, KindClosed)
	r.quiet(t)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatal("Socket was not torn down")
	}
	if s.State() != Closed {
		t.Errorf("Expected Closed, got %s", s.State())
	}
	if err := s.Read(0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected NotConnected after close, got %v", err)
	}
}

func TestCloseIdle(t *testing.T) {
	r := newRecorder()
	s := New(7, DefaultConfig(), r.hooks())

	_ = s.Close()
	if ev := r.expect(t, KindClosed); ev.Identifier != 7 {
		t.Errorf("Expected identifier 7, got %d", ev.Identifier)
	}
	_ = s.Close()
	r.quiet(t)
}

// --------------------------------------------------------------------------
// Connect failures
// --------------------------------------------------------------------------

func TestConnectRefused(t *testing.T) {
	r := newRecorder()
	s := New(1, DefaultConfig(), r.hooks())

	if err := s.Connect("127.0.0.1", closedPort(t), Options{}); err != nil {
		t.Fatalf("Connect failed synchronously: %v", err)
	}

	ev := r.expect(t, KindError)
	if ev.Err.Code != ConnectionRefused || !ev.Fatal() {
		t.Errorf("Expected fatal ConnectionRefused, got %v", ev.Err)
	}
	<-s.Done()
	r.quiet(t)
	if s.State() != Failed {
		t.Errorf("Expected Failed, got %s", s.State())
	}

	// closing a failed socket reports closed exactly once
	_ = s.Close()
	r.expect(t, KindClosed)
	_ = s.Close()
	r.quiet(t)
	if s.State() != Failed {
		t.Errorf("Expected Failed to stay terminal, got %s", s.State())
	}
}

func TestConnectTimeout(t *testing.T) {
	// the peer accepts TCP but never answers the TLS handshake
	port := startServer(t, silent)
	r := newRecorder()
	s := New(1, DefaultConfig(), r.hooks())

	start := time.Now()
	if err := s.Connect("127.0.0.1", port, Options{TLS: true, ConnectTimeoutMs: 50}); err != nil {
		t.Fatalf("Connect failed synchronously: %v", err)
	}

	ev := r.expect(t, KindError)
	if ev.Err.Code != ConnectTimeout || !ev.Fatal() {
		t.Errorf("Expected fatal ConnectTimeout, got %v", ev.Err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Timeout of 50ms took %s", elapsed)
	}
	<-s.Done()
	r.quiet(t)
	if s.State() != Failed {
		t.Errorf("Expected Failed, got %s", s.State())
	}
}

func TestConnectResolutionFailed(t *testing.T) {
	srv, err := mockdns.NewServer(map[string]mockdns.Zone{}, false)
	if err != nil {
		t.Fatalf("Failed to start mock DNS server: %v", err)
	}
	defer srv.Close()
	resolver := &net.Resolver{}
	srv.PatchNet(resolver)

	config := DefaultConfig()
	config.Resolver = resolver

	r := newRecorder()
	s := New(1, config, r.hooks())
	if err := s.Connect("missing.test", 80, Options{}); err != nil {
		t.Fatalf("Connect failed synchronously: %v", err)
	}
	ev := r.expect(t, KindError)
	if ev.Err.Code != ResolutionFailed {
		t.Errorf("Expected ResolutionFailed, got %v", ev.Err)
	}
	<-s.Done()
	if s.State() != Failed {
		t.Errorf("Expected Failed, got %s", s.State())
	}
}

// TestConnectIPv6OnlyWithoutDualStack tests that disabling dual-stack only drops
// IPv6 when an IPv4 address exists
func TestConnectIPv6OnlyWithoutDualStack(t *testing.T) {
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skipf("IPv6 loopback not available: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			silent(conn)
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	config := DefaultConfig()
	config.Stream.DualStack = false
	r := newRecorder()
	s := New(1, config, r.hooks())
	defer s.Close()

	if err := s.Connect("::1", port, Options{}); err != nil {
		t.Fatalf("Connect failed synchronously: %v", err)
	}
	ev := r.expect(t, KindConnected)
	if ev.Descriptor == nil || ev.Descriptor.AddressFamily != stream.FamilyIPv6 {
		t.Fatalf("Expected an IPv6 descriptor, got %v", ev.Descriptor)
	}
	if s.State() != Open {
		t.Errorf("Expected Open, got %s", s.State())
	}
}

func TestCloseWhileConnecting(t *testing.T) {
	srv, err := mockdns.NewServer(map[string]mockdns.Zone{
		"slow.test.": {A: []string{"127.0.0.1"}},
	}, false)
	if err != nil {
		t.Fatalf("Failed to start mock DNS server: %v", err)
	}
	defer srv.Close()
	resolver := &net.Resolver{}
	srv.PatchNet(resolver)

	config := DefaultConfig()
	config.Resolver = resolver
	r := newRecorder()
	s := New(1, config, r.hooks())

	if err := s.Connect("slow.test", closedPort(t), Options{}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	_ = s.Close()

	// the connect either already failed or is aborted, no connected event either way
	ev := r.expect(t, KindError)
	if ev.Err.Code != Cancelled && ev.Err.Code != ConnectionRefused {
		t.Errorf("Unexpected error %v", ev.Err)
	}
	r.expect(t, KindClosed)
	r.quiet(t)
}

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

func TestListenAccept(t *testing.T) {
	r := newRecorder()
	adopted := make(chan *Socket, 1)
	peerEvents := newRecorder()

	hooks := r.hooks()
	hooks.Adopt = func(a *stream.Adapter) (Descriptor, error) {
		s := NewOpen(2, DefaultConfig(), peerEvents.hooks(), a)
		adopted <- s
		return s.Describe(), nil
	}

	l := New(1, DefaultConfig(), hooks)
	defer l.Close()

	if err := l.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	desc := l.Describe()
	if !desc.Listening || desc.State != Open || desc.LocalPort == 0 {
		t.Fatalf("Unexpected listener descriptor %+v", desc)
	}
	if err := l.Read(0); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected NotConnected for read on a listener, got %v", err)
	}
	if err := l.Listen("127.0.0.1", 0); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("Expected AlreadyConnected for a second listen, got %v", err)
	}

	if err := l.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	if err := l.Accept(); !errors.Is(err, ErrReadInProgress) {
		t.Errorf("Expected ReadInProgress for a second accept, got %v", err)
	}

	client, _ := connectOpen(t, 3, desc.LocalPort)

	ev := r.expect(t, KindAccepted)
	if ev.Identifier != 1 || ev.Descriptor == nil || ev.Descriptor.Identifier != 2 {
		t.Fatalf("Unexpected accepted event %s", ev)
	}
	server := <-adopted
	defer server.Close()

	if err := client.Write([]byte("over the listener")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := server.ReadWith(ReadRequest{MaxLength: 17, Mode: ReadExact}); err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got := string(peerEvents.expect(t, KindDataAvailable).Data); got != "over the listener" {
		t.Errorf("Unexpected data %q", got)
	}

	// closing the listener cancels nothing and reports closed
	_ = l.Close()
	r.expect(t, KindClosed)
}

func TestListenerCloseCancelsAccept(t *testing.T) {
	r := newRecorder()
	l := New(1, DefaultConfig(), r.hooks())
	if err := l.Listen("127.0.0.1", 0); err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	if err := l.Accept(); err != nil {
		t.Fatalf("Accept failed: %v", err)
	}
	_ = l.Close()

	if ev := r.expect(t, KindError); ev.Err.Code != Cancelled {
		t.Errorf("Expected Cancelled, got %v", ev.Err)
	}
	r.expect(t, KindClosed)
}
