package base

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/puzpuzpuz/xsync/v3"
)

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IServerConnector defines the interface for transport-specific server operations
type IServerConnector interface {
	// Listen creates a listener and returns it
	Listen(config common.ServerConfig) (net.Listener, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string

	// UpgradeConnection applies protocol-specific settings to an accepted connection
	UpgradeConnection(conn net.Conn, config common.ServerConfig) error
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// serverTransport implements the core server transport functionality
type serverTransport struct {
	connector         IServerConnector
	handler           transport.IRPCSessionHandler
	config            common.ServerConfig
	bufferPool        *sync.Pool
	bufferSize        int
	maxWorkersPerConn int

	mu       sync.Mutex
	listener net.Listener
	closed   bool

	nextSessionID atomic.Uint64
	sessions      *xsync.MapOf[uint64, *session]
	active        sync.WaitGroup
}

// session is one accepted connection
type session struct {
	id      uint64
	conn    net.Conn
	timeout time.Duration

	connMu sync.Mutex // Protects writes to the connection
	ended  atomic.Bool
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseServerTransport creates a new base server transport with per-connection worker pool
func NewBaseServerTransport(connector IServerConnector, bufferSize int, maxWorkersPerConn int) transport.IRPCServerTransport {
	// minimum one worker per connection
	maxWorkersPerConn = max(maxWorkersPerConn, 1)
	if bufferSize < headerSize {
		bufferSize = headerSize
	}

	return &serverTransport{
		connector:         connector,
		bufferSize:        bufferSize,
		maxWorkersPerConn: maxWorkersPerConn,
		sessions:          xsync.NewMapOf[uint64, *session](),
		bufferPool: &sync.Pool{
			New: func() interface{} {
				return make([]byte, bufferSize)
			},
		},
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) RegisterHandler(handler transport.IRPCSessionHandler) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) error {
	if t.handler == nil {
		return fmt.Errorf("no session handler registered")
	}
	t.config = config

	// Create listener using the connector
	listener, err := t.connector.Listen(config)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = listener.Close()
		return nil
	}
	t.listener = listener
	t.mu.Unlock()

	Logger.Infof("Starting %s server on %s with %d workers per connection",
		t.connector.GetName(), listener.Addr(), t.maxWorkersPerConn)

	// Accept connections
	for {
		conn, err := listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			break
		}
		if err != nil {
			Logger.Errorf("Accept error: %v", err)
			continue
		}

		if err := t.connector.UpgradeConnection(conn, config); err != nil {
			Logger.Warningf("Failed to upgrade connection from %s: %v", conn.RemoteAddr(), err)
			_ = conn.Close()
			continue
		}

		// Handle the connection in a goroutine
		t.active.Add(1)
		go t.handleConnection(conn)
	}

	// Wait for all sessions, their handlers may still push events
	t.active.Wait()
	Logger.Infof("Stopped %s server", t.connector.GetName())
	return nil
}

func (t *serverTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	listener := t.listener
	t.mu.Unlock()

	var err error
	if listener != nil {
		err = listener.Close()
	}

	// Closing the connections ends the read loops of all sessions
	t.sessions.Range(func(_ uint64, s *session) bool {
		_ = s.conn.Close()
		return true
	})
	return err
}

// --------------------------------------------------------------------------
// Session Methods (docu see transport.ISession)
// --------------------------------------------------------------------------

func (s *session) ID() uint64 {
	return s.id
}

func (s *session) Push(data []byte) error {
	if s.ended.Load() {
		return fmt.Errorf("session %d has ended", s.id)
	}
	return s.write(channelPush, 0, data)
}

// write writes one frame, serialized with all other writes of the session
func (s *session) write(channel, requestID uint64, data []byte) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	if s.timeout > 0 {
		if err := s.conn.SetWriteDeadline(time.Now().Add(s.timeout)); err != nil {
			return fmt.Errorf("failed to set write deadline: %w", err)
		}
	}
	return writeFrame(s.conn, channel, requestID, data)
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection handles incoming requests for one connection
func (t *serverTransport) handleConnection(conn net.Conn) {
	defer t.active.Done()
	defer conn.Close()

	s := &session{
		id:      t.nextSessionID.Add(1),
		conn:    conn,
		timeout: time.Duration(t.config.Transport.TimeoutSecond) * time.Second,
	}

	if err := t.handler.OpenSession(s); err != nil {
		Logger.Errorf("Failed to open session %d: %v", s.id, err)
		return
	}
	t.sessions.Store(s.id, s)
	t.mu.Lock()
	if t.closed {
		_ = conn.Close()
	}
	t.mu.Unlock()
	Logger.Infof("Session %d opened (%s)", s.id, conn.RemoteAddr())

	// Create a semaphore to limit concurrent workers for this connection
	// The buffered channel acts as a counting semaphore
	workerSemaphore := make(chan struct{}, t.maxWorkersPerConn)

	// Create a wait group to wait for all workers to finish
	var wg sync.WaitGroup

	// Handler function that processes requests in worker goroutines
	handleResponse := func(requestID uint64, data []byte) {
		// When done, release the semaphore and mark worker as done
		defer func() {
			<-workerSemaphore // Release semaphore slot
			wg.Done()         // Mark worker as done
		}()

		start := time.Now()
		resp := t.handler.Handle(s, data)
		Logger.Debugf("Processed request %d of session %d took %s", requestID, s.id, time.Since(start))

		// Write the response with the same requestID
		if err := s.write(channelRequest, requestID, resp); err != nil {
			Logger.Errorf("Failed to write response: %v", err)
		}
	}

	// Function to handle incoming requests
	handleRequest := func() error {
		// No read deadline, hosts may stay idle while their sockets wait for data
		buf := t.bufferPool.Get().([]byte)

		channel, requestID, data, err := readFrame(conn, buf)
		if err != nil {
			t.bufferPool.Put(buf)
			return err
		}
		if channel != channelRequest {
			t.bufferPool.Put(buf)
			Logger.Warningf("Session %d sent a frame on channel %d, ignoring it", s.id, channel)
			return nil
		}

		// Acquire a slot in the semaphore (blocks if maxWorkersPerConn is reached)
		workerSemaphore <- struct{}{}
		wg.Add(1)

		if t.maxWorkersPerConn == 1 {
			// Handle in place so requests are answered strictly in frame order
			handleResponse(requestID, data)
			t.bufferPool.Put(buf)
			return nil
		}

		go func() {
			defer t.bufferPool.Put(buf)
			handleResponse(requestID, data)
		}()

		return nil
	}

	// Handle requests in a loop
	for {
		err := handleRequest()

		// Case EOF: Connection closed by client
		if err == io.EOF {
			Logger.Infof("Session %d closed by client", s.id)
			break
		}

		// Case closed: the transport is shutting down
		if errors.Is(err, net.ErrClosed) {
			Logger.Infof("Session %d closed by server", s.id)
			break
		}

		// Case error: log and close connection
		if err != nil {
			Logger.Errorf("Error handling request of session %d: %v", s.id, err)
			break
		}
	}

	// Wait for all workers to finish before releasing the session
	wg.Wait()
	t.handler.CloseSession(s)
	s.ended.Store(true)
	t.sessions.Delete(s.id)
}
