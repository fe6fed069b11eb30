package server

import (
	"errors"
	"fmt"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/netstack/lib/registry"
	"github.com/ValentinKolb/netstack/rpc/common"
	"github.com/ValentinKolb/netstack/rpc/serializer"
	"github.com/ValentinKolb/netstack/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("bridge")

const (
	// shutdownTimeout bounds the teardown of the sockets of one session
	shutdownTimeout = 5 * time.Second
)

// NewRPCServer creates a new bridge server
// It takes a config, transport and serializer as parameters
//
// Usage:
//
//	s := server.NewRPCServer(
//		*config,
//		unix.NewUnixDefaultServerTransport(1),
//		serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//		panic(err)
//	}
func NewRPCServer(
	config common.ServerConfig,
	transport transport.IRPCServerTransport,
	serializer serializer.IRPCSerializer,
) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	Logger.Infof("Created bridge server")
	Logger.Infof(config.String())

	return &RPCServer{
		config:     config,
		transport:  transport,
		serializer: serializer,
		sessions:   xsync.NewMapOf[uint64, *registry.Registry](),
	}
}

// RPCServer serves socket registries to hosts. Every transport session gets a
// registry of its own, so identifiers are scoped to a session and all sockets of a
// host are closed when its session ends.
type RPCServer struct {
	config     common.ServerConfig
	transport  transport.IRPCServerTransport
	serializer serializer.IRPCSerializer

	registryConfig registry.Config
	sessions       *xsync.MapOf[uint64, *registry.Registry]

	metrics   *metricsServer
	closeOnce sync.Once
}

// Serve initializes the server and runs the transport until it is closed
func (s *RPCServer) Serve() error {
	if err := s.init(); err != nil {
		return err
	}

	if s.config.MetricsEndpoint != "" {
		s.metrics = newMetricsServer(s.config.MetricsEndpoint, s)
		go func() {
			if err := s.metrics.start(); err != nil {
				Logger.Errorf("metrics server stopped: %v", err)
			}
		}()
	}

	err := s.transport.Listen(s.config)
	if s.metrics != nil {
		_ = s.metrics.stop()
	}
	return err
}

// Close stops accepting sessions and ends all active ones. Serve returns once the
// sockets of every session are torn down.
func (s *RPCServer) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.transport.Close()
	})
	return err
}

// Sessions returns the number of active host sessions
func (s *RPCServer) Sessions() int {
	return s.sessions.Size()
}

// Stats returns the registry statistics of every active session
func (s *RPCServer) Stats() map[uint64]registry.Stats {
	stats := make(map[uint64]registry.Stats)
	s.sessions.Range(func(id uint64, r *registry.Registry) bool {
		stats[id] = r.Stats()
		return true
	})
	return stats
}

func (s *RPCServer) init() error {
	if s.serializer == nil {
		return errors.New("no serializer configured")
	}

	config, err := s.config.ToRegistryConfig()
	if err != nil {
		return fmt.Errorf("failed to create registry configuration: %w", err)
	}
	s.registryConfig = config

	s.transport.RegisterHandler(&sessionHandler{server: s})
	return nil
}
