package base

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/rpc")

// ErrClientClosed is returned for requests after the connection was lost or closed
var ErrClientClosed = errors.New("transport connection is closed")

// -----------------------------------------------------------
// Interface Definitions for dependency injection
// -----------------------------------------------------------

// IClientConnector defines the interface for transport-specific connection operations
type IClientConnector interface {
	// Connect establishes a single connection to the endpoint
	Connect(endpoint string) (net.Conn, error)

	// GetName returns the name of the transport type (e.g., "unix", "tcp")
	GetName() string
}

// -----------------------------------------------------------
// Helper Types
// -----------------------------------------------------------

// responseResult contains the result of a request
type responseResult struct {
	data []byte
	err  error
}

// clientTransport implements the core client transport functionality
// independent of the specific transport medium (unix, tcp, etc.).
//
// A bridge session lives exactly as long as its connection, so the client uses a
// single connection and never reconnects: the sockets of a lost session are gone.
type clientTransport struct {
	connector     IClientConnector
	config        common.ClientConfig
	conn          net.Conn
	connMu        sync.Mutex // Protects writes to the connection
	requestChans  *xsync.MapOf[uint64, chan responseResult]
	nextRequestID atomic.Uint64
	onPush        func([]byte)

	closed    atomic.Bool
	closeOnce sync.Once
	readDone  chan struct{}
}

// -----------------------------------------------------------
// Transport Factory Method (used for tcp, unix, etc.)
// -----------------------------------------------------------

// NewBaseClientTransport creates a new base client transport with the specified connector
func NewBaseClientTransport(connector IClientConnector) transport.IRPCClientTransport {
	return &clientTransport{
		connector:    connector,
		requestChans: xsync.NewMapOf[uint64, chan responseResult](),
		readDone:     make(chan struct{}),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *clientTransport) OnPush(handler func(data []byte)) {
	t.onPush = handler
}

func (t *clientTransport) Done() <-chan struct{} {
	return t.readDone
}

func (t *clientTransport) Connect(config common.ClientConfig) error {
	if config.Endpoint == "" {
		return fmt.Errorf("no endpoint provided")
	}
	if t.conn != nil {
		return fmt.Errorf("transport is already connected")
	}
	t.config = config

	conn, err := t.connector.Connect(config.Endpoint)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", config.Endpoint, err)
	}
	t.conn = conn

	Logger.Infof("Connected to %s using %s transport", config.Endpoint, t.connector.GetName())

	// Start the frame reader
	go t.readFrames()
	return nil
}

func (t *clientTransport) Send(req []byte) (resp []byte, err error) {
	if t.conn == nil || t.closed.Load() {
		return nil, ErrClientClosed
	}

	// Generate a unique request ID
	requestID := t.nextRequestID.Add(1)

	// Register the request before writing so the response cannot be missed
	respCh := make(chan responseResult, 1)
	t.requestChans.Store(requestID, respCh)
	defer t.requestChans.Delete(requestID)

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second

	// Lock the connection only for writing
	t.connMu.Lock()
	if timeout > 0 {
		_ = t.conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err = writeFrame(t.conn, channelRequest, requestID, req)
	t.connMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to write request: %w", err)
	}

	// Wait for response or timeout
	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case result := <-respCh:
		return result.data, result.err
	case <-t.readDone:
		// the reader may have delivered the response right before it stopped
		select {
		case result := <-respCh:
			return result.data, result.err
		default:
			return nil, ErrClientClosed
		}
	case <-timeoutCh:
		return nil, fmt.Errorf("request timed out")
	}
}

func (t *clientTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		if t.conn == nil {
			close(t.readDone)
			return
		}
		err = t.conn.Close()
		<-t.readDone
	})
	return err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// readFrames reads frames in a loop, distributes responses to waiting requests
// and hands pushed frames to the push handler
func (t *clientTransport) readFrames() {
	defer close(t.readDone)

	for {
		channel, requestID, data, err := readFrame(t.conn, nil)
		if err != nil {
			if !t.closed.Load() {
				Logger.Warningf("Connection to %s lost: %v", t.config.Endpoint, err)
			}
			t.closed.Store(true)
			_ = t.conn.Close()
			return
		}

		if channel == channelPush {
			if t.onPush != nil {
				t.onPush(data)
			}
			continue
		}

		// Find the corresponding request channel
		respCh, found := t.requestChans.Load(requestID)
		if !found {
			Logger.Warningf("Received response for unknown request ID %d", requestID)
			continue
		}
		respCh <- responseResult{data: data, err: nil}
	}
}
