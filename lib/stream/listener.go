package stream

import (
	"context"
	"fmt"
	"net"
	"strconv"
)

// Listener is a bound listening socket
type Listener struct {
	ln     net.Listener
	config Config
	family Family
}

// Listen binds host:port. An empty host listens on all interfaces, port 0 picks a free port.
func Listen(ctx context.Context, host string, port int, config Config) (*Listener, error) {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", net.JoinHostPort(host, strconv.Itoa(port)), err)
	}

	family := FamilyIPv6
	if addr, ok := ln.Addr().(*net.TCPAddr); ok && !addr.IP.IsUnspecified() {
		family = familyOf(addr.IP)
	}

	return &Listener{ln: ln, config: config, family: family}, nil
}

// Family returns the family of the bound address. Wildcard binds report IPv6
// because they accept both families on a dual-stack host.
func (l *Listener) Family() Family {
	return l.family
}

// LocalEndpoint returns the bound host and port
func (l *Listener) LocalEndpoint() (string, int) {
	return splitAddr(l.ln.Addr())
}

// Accept blocks until a connection arrives or the listener is closed
func (l *Listener) Accept() (*Adapter, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	if err := Tune(conn, l.config); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to tune accepted connection: %w", err)
	}
	return NewAdapter(conn, FamilyUnknown), nil
}

// Close stops listening. A pending Accept returns with an error.
func (l *Listener) Close() error {
	return l.ln.Close()
}
