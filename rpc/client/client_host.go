package client

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/lib/util"
	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/serializer"
	"github.com/ValentinKolb/netstack/rpc/transport"
)

// NewHostClient connects to a bridge and returns a client for its socket commands.
// Events pushed by the bridge are decoded and delivered on Events.
func NewHostClient(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (*HostClient, error) {
	c := &HostClient{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
		events: util.NewMPSC[socket.Event](),
	}

	// The push handler must be in place before the first frame can arrive
	transport.OnPush(c.handlePush)
	if err := transport.Connect(config); err != nil {
		c.events.Close()
		return nil, err
	}

	go func() {
		<-transport.Done()
		c.events.Close()
	}()

	return c, nil
}

// HostClient is a bridge client. Its methods report whether the bridge accepted a
// command, the outcome arrives on Events.
type HostClient struct {
	rpcClientAdapter
	events    *util.MPSC[socket.Event]
	closeOnce sync.Once
}

// Events returns the channel of events pushed by the bridge. It is closed after the
// connection to the bridge ended.
func (c *HostClient) Events() <-chan socket.Event {
	return c.events.Recv()
}

// Create creates an Idle socket
func (c *HostClient) Create() (int, error) {
	resp, err := invokeRPCRequest(common.NewCreateRequest(), c.transport, c.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Identifier, nil
}

// Connect creates a socket and starts connecting it to host:port. Options are
// passed as-is, e.g. {"tls": true, "connectTimeoutMs": 2000}.
func (c *HostClient) Connect(host string, port int, options map[string]any) (int, error) {
	resp, err := invokeRPCRequest(common.NewConnectRequest(0, host, port, options), c.transport, c.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Identifier, nil
}

// ConnectSocket starts connecting a socket created with Create
func (c *HostClient) ConnectSocket(id int, host string, port int, options map[string]any) error {
	_, err := invokeRPCRequest(common.NewConnectRequest(id, host, port, options), c.transport, c.serializer)
	return err
}

// Listen creates a socket listening on host:port
func (c *HostClient) Listen(host string, port int) (int, error) {
	resp, err := invokeRPCRequest(common.NewListenRequest(0, host, port), c.transport, c.serializer)
	if err != nil {
		return 0, err
	}
	return resp.Identifier, nil
}

// Accept starts waiting for the next connection of a listener
func (c *HostClient) Accept(id int) error {
	_, err := invokeRPCRequest(common.NewAcceptRequest(id), c.transport, c.serializer)
	return err
}

// Read starts a read of at most maxLength bytes
func (c *HostClient) Read(id int, maxLength int) error {
	_, err := invokeRPCRequest(common.NewReadRequest(id, maxLength, false, nil), c.transport, c.serializer)
	return err
}

// ReadExact starts a read of exactly n bytes
func (c *HostClient) ReadExact(id int, n int) error {
	_, err := invokeRPCRequest(common.NewReadRequest(id, n, true, nil), c.transport, c.serializer)
	return err
}

// ReadUntil starts a read up to and including the terminator, at most maxLength bytes
func (c *HostClient) ReadUntil(id int, maxLength int, terminator []byte) error {
	_, err := invokeRPCRequest(common.NewReadRequest(id, maxLength, false, terminator), c.transport, c.serializer)
	return err
}

// Skip starts a read that discards at most maxLength bytes and reports only their count
func (c *HostClient) Skip(id int, maxLength int) error {
	_, err := invokeRPCRequest(common.NewSkipRequest(id, maxLength), c.transport, c.serializer)
	return err
}

// Write starts writing data
func (c *HostClient) Write(id int, data []byte) error {
	_, err := invokeRPCRequest(common.NewWriteRequest(id, data), c.transport, c.serializer)
	return err
}

// Close closes a socket
func (c *HostClient) Close(id int) error {
	_, err := invokeRPCRequest(common.NewCloseRequest(id), c.transport, c.serializer)
	return err
}

// Describe returns the descriptor of a socket
func (c *HostClient) Describe(id int) (socket.Descriptor, error) {
	resp, err := invokeRPCRequest(common.NewDescribeRequest(id), c.transport, c.serializer)
	if err != nil {
		return socket.Descriptor{}, err
	}
	if resp.Descriptor == nil {
		return socket.Descriptor{}, fmt.Errorf("describe response without descriptor")
	}
	return *resp.Descriptor, nil
}

// Stats returns the statistics of the session registry
func (c *HostClient) Stats() (registry.Stats, error) {
	var stats registry.Stats
	resp, err := invokeRPCRequest(common.NewStatsRequest(), c.transport, c.serializer)
	if err != nil {
		return stats, err
	}
	if err := json.Unmarshal(resp.Meta, &stats); err != nil {
		return stats, fmt.Errorf("failed to decode stats: %w", err)
	}
	return stats, nil
}

// Shutdown ends the session. The bridge closes every socket of the session.
func (c *HostClient) Shutdown() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.transport.Close()
	})
	return err
}

// handlePush decodes a pushed frame into an event
func (c *HostClient) handlePush(data []byte) {
	var msg common.Message
	if err := c.serializer.Deserialize(data, &msg); err != nil {
		Logger.Errorf("failed to deserialize pushed frame: %v", err)
		return
	}
	ev, err := msg.Event()
	if err != nil {
		Logger.Warningf("ignoring pushed frame: %v", err)
		return
	}
	c.events.Push(ev)
}
