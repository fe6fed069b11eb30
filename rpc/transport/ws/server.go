package ws

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/ValentinKolb/netstack/rpc/transport/base"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("transport/rpc")

const (
	defaultBufferSize = 64 * 1024 // 64 KB
)

// serverConnector implements the IServerConnector interface for websockets
type serverConnector struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IServerConnector)
// --------------------------------------------------------------------------

func (c *serverConnector) GetName() string {
	return "ws"
}

func (c *serverConnector) Listen(config common.ServerConfig) (net.Listener, error) {
	ln, err := net.Listen("tcp", config.Transport.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create websocket listener: %w", err)
	}
	return newListener(ln), nil
}

// UpgradeConnection starts the keepalive of the session, the HTTP upgrade already
// happened in the listener
func (c *serverConnector) UpgradeConnection(nc net.Conn, _ common.ServerConfig) error {
	wsConn, ok := nc.(*conn)
	if !ok {
		return fmt.Errorf("unexpected connection type %T", nc)
	}
	ping := wsConn.keepAlive()
	go ping()
	return nil
}

// --------------------------------------------------------------------------
// Listener
// --------------------------------------------------------------------------

// listener accepts websocket upgrades on GET /bridge and hands the upgraded
// connections to Accept
type listener struct {
	ln       net.Listener
	server   *http.Server
	upgrader websocket.Upgrader
	conns    chan *conn

	done      chan struct{}
	closeOnce sync.Once
}

func newListener(ln net.Listener) *listener {
	l := &listener{
		ln:    ln,
		conns: make(chan *conn),
		done:  make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// hosts are sandboxed pages of arbitrary origins
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	router := httprouter.New()
	router.GET(path, l.handleUpgrade)
	l.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			Logger.Errorf("websocket listener stopped: %v", err)
		}
	}()
	return l
}

func (l *listener) handleUpgrade(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error
		Logger.Warningf("failed to upgrade %s: %v", r.RemoteAddr, err)
		return
	}

	c := newConn(ws)
	select {
	case l.conns <- c:
	case <-l.done:
		_ = c.Close()
	}
}

func (l *listener) Accept() (net.Conn, error) {
	select {
	case c := <-l.conns:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

// Close stops the HTTP server. Upgraded connections are owned by their sessions.
func (l *listener) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.done)
		err = l.server.Close()
	})
	return err
}

func (l *listener) Addr() net.Addr {
	return l.ln.Addr()
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewWSDefaultServerTransport creates a new websocket server transport with default buffer size
func NewWSDefaultServerTransport(workersPerConn int) transport.IRPCServerTransport {
	return NewWSServerTransport(defaultBufferSize, workersPerConn)
}

// NewWSServerTransport creates a new websocket server transport with specified buffer size
func NewWSServerTransport(bufferSize int, workersPerConn int) transport.IRPCServerTransport {
	return base.NewBaseServerTransport(&serverConnector{}, bufferSize, workersPerConn)
}
