package dial

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/lib/util"
	"github.com/ValentinKolb/netstack/rpc/client"
)

// socketHost is the command surface dial drives. It is served either by a registry
// in this process or by a bridge.
type socketHost interface {
	Connect(host string, port int, options map[string]any) (int, error)
	Listen(host string, port int) (int, error)
	Accept(id int) error
	Read(id int, maxLength int) error
	Write(id int, data []byte) error
	Close(id int) error
	Events() <-chan socket.Event
	Shutdown() error
}

var (
	_ socketHost = (*localHost)(nil)
	_ socketHost = (*client.HostClient)(nil)
)

// localHost runs a registry in process
type localHost struct {
	registry *registry.Registry
	events   *util.MPSC[socket.Event]
}

func newLocalHost(config registry.Config) *localHost {
	h := &localHost{events: util.NewMPSC[socket.Event]()}
	h.registry = registry.New(registry.SinkFunc(func(_ int, ev socket.Event) {
		h.events.Push(ev)
	}), config)
	return h
}

func (h *localHost) Connect(host string, port int, options map[string]any) (int, error) {
	opts, err := socket.DecodeOptions(options)
	if err != nil {
		return 0, socket.NewError(socket.StreamError, "invalid connect options", err)
	}
	return h.registry.Connect(host, port, opts)
}

func (h *localHost) Listen(host string, port int) (int, error) {
	return h.registry.Listen(host, port)
}

func (h *localHost) Accept(id int) error              { return h.registry.Accept(id) }
func (h *localHost) Read(id int, maxLength int) error { return h.registry.Read(id, maxLength) }
func (h *localHost) Write(id int, data []byte) error  { return h.registry.Write(id, data) }
func (h *localHost) Close(id int) error               { return h.registry.Close(id) }
func (h *localHost) Events() <-chan socket.Event      { return h.events.Recv() }

func (h *localHost) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	defer h.events.Close()
	if err := h.registry.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down registry: %w", err)
	}
	return nil
}
