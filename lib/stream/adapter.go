package stream

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"

	"github.com/ValentinKolb/netstack/lib/buffer"
)

const (
	// readerSize is kept small: reads larger than it bypass the bufio.Reader and go
	// straight into the socket buffer
	readerSize = 4 * 1024
)

// Adapter is one established bidirectional byte stream
type Adapter struct {
	conn   net.Conn
	reader *bufio.Reader
	family Family

	closeOnce sync.Once
	closeErr  error
}

// NewAdapter wraps an established connection
func NewAdapter(conn net.Conn, family Family) *Adapter {
	if family == FamilyUnknown {
		if addr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
			family = familyOf(addr.IP)
		}
	}
	return &Adapter{
		conn:   conn,
		reader: bufio.NewReaderSize(conn, readerSize),
		family: family,
	}
}

// Family returns the address family the stream was established with
func (a *Adapter) Family() Family {
	return a.family
}

// LocalEndpoint returns the local host and port
func (a *Adapter) LocalEndpoint() (string, int) {
	return splitAddr(a.conn.LocalAddr())
}

// RemoteEndpoint returns the remote host and port
func (a *Adapter) RemoteEndpoint() (string, int) {
	return splitAddr(a.conn.RemoteAddr())
}

// StartTLS upgrades the stream to TLS and runs the handshake. It must be called
// before the first read.
func (a *Adapter) StartTLS(ctx context.Context, config *tls.Config) error {
	tlsConn := tls.Client(a.conn, config)
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		return fmt.Errorf("failed to complete TLS handshake: %w", err)
	}
	a.conn = tlsConn
	a.reader = bufio.NewReaderSize(tlsConn, readerSize)
	return nil
}

// ReadInto fills the buffer with whatever a single read returns, at most max bytes
func (a *Adapter) ReadInto(b *buffer.Buffer, max int) (int, error) {
	return b.FillFrom(a.reader, max)
}

// ReadFull fills the buffer with exactly max bytes
func (a *Adapter) ReadFull(b *buffer.Buffer, max int) (int, error) {
	return b.FillFull(a.reader, max)
}

// ReadUntil fills the buffer up to and including delim, at most max bytes
func (a *Adapter) ReadUntil(b *buffer.Buffer, max int, delim []byte) (int, error) {
	return b.FillUntil(a.reader, max, delim)
}

// WriteFrom writes the valid bytes of the buffer. Short writes are retried until
// everything is flushed or an error occurs.
func (a *Adapter) WriteFrom(b *buffer.Buffer) (int, error) {
	data := b.Bytes()
	written := 0
	for written < len(data) {
		n, err := a.conn.Write(data[written:])
		written += n
		if err != nil && err != io.ErrShortWrite {
			return written, err
		}
		if n == 0 {
			return written, io.ErrNoProgress
		}
	}
	return written, nil
}

// CloseWrite shuts down the write side if the connection supports it
func (a *Adapter) CloseWrite() error {
	if cw, ok := a.conn.(interface{ CloseWrite() error }); ok {
		return cw.CloseWrite()
	}
	return nil
}

// Close closes the stream. Pending reads and writes return with an error.
// Calling Close more than once returns the result of the first call.
func (a *Adapter) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.conn.Close()
	})
	return a.closeErr
}

// splitAddr returns host and port of a network address
func splitAddr(addr net.Addr) (string, int) {
	if addr == nil {
		return "", 0
	}
	if tcpAddr, ok := addr.(*net.TCPAddr); ok {
		return tcpAddr.IP.String(), tcpAddr.Port
	}
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
