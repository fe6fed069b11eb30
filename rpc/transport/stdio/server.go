package stdio

import (
	"io"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/ValentinKolb/netstack/rpc/transport/base"
)

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// serverConnector implements the IServerConnector interface for a single session
// over a pair of byte streams
type serverConnector struct {
	in  io.ReadCloser
	out io.Writer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "stdio"
}

func (c *serverConnector) Listen(common.ServerConfig) (net.Listener, error) {
	return newListener(&conn{in: c.in, out: c.out}), nil
}

func (c *serverConnector) UpgradeConnection(net.Conn, common.ServerConfig) error {
	return nil
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewStdioServerTransport creates a server transport serving exactly one session
// over the standard input and output of the process. Listen returns once the host
// closes standard input. Log output must not go to standard output.
func NewStdioServerTransport() transport.IRPCServerTransport {
	return NewStreamServerTransport(os.Stdin, os.Stdout, 1)
}

// NewStreamServerTransport creates a server transport serving exactly one session
// reading requests from in and writing frames to out
func NewStreamServerTransport(in io.ReadCloser, out io.Writer, workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{in: in, out: out}, defaultBufferSize, workersPerConn)
}

// --------------------------------------------------------------------------
// Listener yielding a single connection
// --------------------------------------------------------------------------

// listener hands out its connection once, later calls to Accept block until the
// connection or the listener is closed
type listener struct {
	conn *conn

	mu       sync.Mutex
	accepted bool
	done     chan struct{}
	once     sync.Once
}

func newListener(c *conn) *listener {
	l := &listener{conn: c, done: make(chan struct{})}
	c.onClose = l.closeDone
	return l
}

func (l *listener) Accept() (net.Conn, error) {
	l.mu.Lock()
	if !l.accepted {
		l.accepted = true
		l.mu.Unlock()
		return l.conn, nil
	}
	l.mu.Unlock()

	<-l.done
	return nil, net.ErrClosed
}

// Close stops the listener, a running session is ended by the transport
func (l *listener) Close() error {
	l.closeDone()
	return nil
}

func (l *listener) Addr() net.Addr {
	return addr{}
}

func (l *listener) closeDone() {
	l.once.Do(func() { close(l.done) })
}

// --------------------------------------------------------------------------
// Connection over two byte streams
// --------------------------------------------------------------------------

// conn adapts the byte streams to net.Conn. Deadlines are not supported and
// silently ignored.
type conn struct {
	in      io.ReadCloser
	out     io.Writer
	onClose func()

	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func (c *conn) Read(p []byte) (int, error) {
	n, err := c.in.Read(p)
	if err != nil && err != io.EOF && c.closed.Load() {
		return n, net.ErrClosed
	}
	return n, err
}

func (c *conn) Write(p []byte) (int, error) {
	return c.out.Write(p)
}

func (c *conn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.closeErr = c.in.Close()
		if c.onClose != nil {
			c.onClose()
		}
	})
	return c.closeErr
}

func (c *conn) LocalAddr() net.Addr                { return addr{} }
func (c *conn) RemoteAddr() net.Addr               { return addr{} }
func (c *conn) SetDeadline(t time.Time) error      { return nil }
func (c *conn) SetReadDeadline(t time.Time) error  { return nil }
func (c *conn) SetWriteDeadline(t time.Time) error { return nil }

// addr is the address of both ends of a stdio session
type addr struct{}

func (addr) Network() string { return "stdio" }
func (addr) String() string  { return "stdio" }
