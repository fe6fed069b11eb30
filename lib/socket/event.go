package socket

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/netstack/lib/stream"
)

// Kind identifies what an Event reports
type Kind uint8

const (
	KindConnected Kind = iota + 1
	KindDataAvailable
	KindBytesWritten
	KindError
	KindClosed
	KindAccepted
)

var kindNames = map[Kind]string{
	KindConnected:     "connected",
	KindDataAvailable: "dataAvailable",
	KindBytesWritten:  "bytesWritten",
	KindError:         "error",
	KindClosed:        "closed",
	KindAccepted:      "accepted",
}

// String returns the string representation of a Kind
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// MarshalJSON serializes a Kind as its string form
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseKind returns the Kind with the given name
func ParseKind(s string) (Kind, bool) {
	for k, name := range kindNames {
		if name == s {
			return k, true
		}
	}
	return 0, false
}

// Descriptor describes the endpoints of a socket. Before Open only the fields known
// so far are populated.
type Descriptor struct {
	Identifier    int           `json:"identifier"`
	LocalAddress  string        `json:"localAddress"`
	LocalPort     int           `json:"localPort"`
	RemoteAddress string        `json:"remoteAddress"`
	RemotePort    int           `json:"remotePort"`
	AddressFamily stream.Family `json:"addressFamily"`
	State         State         `json:"state"`
	Listening     bool          `json:"listening"`
}

// Event is one asynchronous result of a socket.
//
// Payload by kind:
//   - connected, accepted: Descriptor (for accepted, the descriptor of the new socket)
//   - dataAvailable: Data, a copy owned by the receiver (empty when the peer closed),
//     and Count. A skip read leaves Data empty and only sets Count.
//   - bytesWritten: Count
//   - error: Err
//   - closed: none
type Event struct {
	Identifier int
	Kind       Kind
	Descriptor *Descriptor
	Data       []byte
	Count      int
	Err        *Error
	// Failed is set on the error that moved the socket to Failed
	Failed bool
}

// String returns a short human readable form of the event
func (e Event) String() string {
	switch e.Kind {
	case KindDataAvailable:
		return fmt.Sprintf("%d %s (%d bytes)", e.Identifier, e.Kind, e.Count)
	case KindBytesWritten:
		return fmt.Sprintf("%d %s (%d bytes)", e.Identifier, e.Kind, e.Count)
	case KindError:
		return fmt.Sprintf("%d %s: %v", e.Identifier, e.Kind, e.Err)
	case KindConnected, KindAccepted:
		if e.Descriptor != nil {
			return fmt.Sprintf("%d %s %s:%d -> %s:%d", e.Identifier, e.Kind,
				e.Descriptor.LocalAddress, e.Descriptor.LocalPort, e.Descriptor.RemoteAddress, e.Descriptor.RemotePort)
		}
	}
	return fmt.Sprintf("%d %s", e.Identifier, e.Kind)
}

// Fatal reports whether the event is an error that left the socket Failed
func (e Event) Fatal() bool {
	return e.Kind == KindError && e.Failed
}
