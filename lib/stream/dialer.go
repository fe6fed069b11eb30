package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("stream")

var (
	// ErrNoAddress is returned when a host resolves to no usable address
	ErrNoAddress = errors.New("no usable address")
)

// Resolver looks up the addresses of a host. *net.Resolver implements it.
type Resolver interface {
	LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error)
}

// Candidate is one address the dialer will try
type Candidate struct {
	Addr   net.IPAddr
	Family Family
}

// String returns the address in dialable form (with zone for link-local IPv6)
func (c Candidate) String() string {
	return c.Addr.String()
}

// Dialer resolves hosts and establishes tuned TCP streams
type Dialer struct {
	config   Config
	resolver Resolver
	dialer   net.Dialer
}

// NewDialer creates a dialer. A nil resolver means net.DefaultResolver.
func NewDialer(config Config, resolver Resolver) *Dialer {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	return &Dialer{
		config:   config,
		resolver: resolver,
	}
}

// Resolve returns the ordered candidates for a host: the first IPv6 address followed
// by the first IPv4 address. The list has at most two entries, so a failed IPv6
// attempt is followed by exactly one IPv4 attempt. Without dual-stack a host that
// resolves to both families is dialed over IPv4 only, a single-family host keeps
// its family.
func (d *Dialer) Resolve(ctx context.Context, host string) ([]Candidate, error) {
	addrs, err := d.resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, err)
	}

	var v4, v6 *Candidate
	for _, addr := range addrs {
		switch familyOf(addr.IP) {
		case FamilyIPv4:
			if v4 == nil {
				v4 = &Candidate{Addr: net.IPAddr{IP: addr.IP.To4()}, Family: FamilyIPv4}
			}
		case FamilyIPv6:
			if v6 == nil {
				v6 = &Candidate{Addr: addr, Family: FamilyIPv6}
			}
		}
	}

	if !d.config.DualStack && v4 != nil {
		v6 = nil
	}

	candidates := make([]Candidate, 0, 2)
	if v6 != nil {
		candidates = append(candidates, *v6)
	}
	if v4 != nil {
		candidates = append(candidates, *v4)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("failed to resolve %s: %w", host, ErrNoAddress)
	}
	return candidates, nil
}

// Dial tries the candidates in order and returns the first established stream.
// A cancelled or expired context stops the fallback.
func (d *Dialer) Dial(ctx context.Context, candidates []Candidate, port int) (*Adapter, error) {
	if len(candidates) == 0 {
		return nil, ErrNoAddress
	}

	var lastErr error
	for i, candidate := range candidates {
		address := net.JoinHostPort(candidate.String(), strconv.Itoa(port))

		conn, err := d.dialer.DialContext(ctx, candidate.Family.network(), address)
		if err == nil {
			if err := Tune(conn, d.config); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to tune connection to %s: %w", address, err)
			}
			return NewAdapter(conn, candidate.Family), nil
		}

		lastErr = fmt.Errorf("failed to connect to %s: %w", address, err)
		if ctx.Err() != nil {
			break
		}
		if i < len(candidates)-1 {
			Logger.Debugf("%v, falling back to %s", lastErr, candidates[i+1].Family)
		}
	}
	return nil, lastErr
}
