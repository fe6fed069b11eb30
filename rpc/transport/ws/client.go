package ws

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/ValentinKolb/netstack/rpc/transport/base"
	"github.com/gorilla/websocket"
)

// clientConnector implements the IClientConnector interface for websockets
type clientConnector struct {
	dialer *websocket.Dialer
}

// --------------------------------------------------------------------------
// Interface Methods (docu see base.IClientConnector)
// --------------------------------------------------------------------------

func (c *clientConnector) GetName() string {
	return "ws"
}

// Connect dials the bridge. The endpoint is either host:port or a full ws:// or
// wss:// URL.
func (c *clientConnector) Connect(endpoint string) (net.Conn, error) {
	ws, resp, err := c.dialer.Dial(bridgeURL(endpoint), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to upgrade connection (HTTP %d): %w", resp.StatusCode, err)
		}
		return nil, err
	}
	return newConn(ws), nil
}

// bridgeURL completes a host:port endpoint to the websocket URL of the bridge
func bridgeURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "ws://") || strings.HasPrefix(endpoint, "wss://") {
		return endpoint
	}
	return "ws://" + endpoint + path
}

// --------------------------------------------------------------------------
// Client Transport Factory Method
// --------------------------------------------------------------------------

// NewWSClientTransport creates a new websocket client transport
func NewWSClientTransport() transport.IRPCClientTransport {
	return base.NewBaseClientTransport(&clientConnector{
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
	})
}
