package common

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/netstack/lib/socket"
)

// --------------------------------------------------------------------------
// Message Structure
// --------------------------------------------------------------------------

// Message represents a single message used for requests, responses and pushed events.
// Which fields are used depends on the type of message.
type Message struct {
	// Type of message
	MsgType MessageType `json:"msg_type"`

	// Addressing
	Identifier int `json:"identifier,omitempty"` // Used for: every per-socket request, responses and events

	// Request fields
	Host      string         `json:"host,omitempty"`      // Used for: Connect, Listen
	Port      int            `json:"port,omitempty"`      // Used for: Connect, Listen
	Options   map[string]any `json:"options,omitempty"`   // Used for: Connect
	MaxLength int            `json:"maxLength,omitempty"` // Used for: Read
	Exact     bool           `json:"exact,omitempty"`     // Used for: Read
	Until     []byte         `json:"until,omitempty"`     // Used for: Read
	Skip      bool           `json:"skip,omitempty"`      // Used for: Read, discards the bytes and reports the count
	Data      []byte         `json:"data,omitempty"`      // Used for: Write (request), DataAvailable (event)

	// Response and event fields
	Count      int                `json:"count,omitempty"`      // Used for: BytesWritten and DataAvailable (event)
	Descriptor *socket.Descriptor `json:"descriptor,omitempty"` // Used for: Describe (response), Connected and Accepted (event)
	ErrKind    string             `json:"errKind,omitempty"`    // Error code name, empty if no error
	Err        string             `json:"err,omitempty"`        // Empty if no error, otherwise contains the error message
	Fatal      bool               `json:"fatal,omitempty"`      // Used for: Error (event), set when the socket failed

	// Meta information
	Meta []byte `json:"meta,omitempty"` // Used for: Stats (response, JSON encoded)
}

// --------------------------------------------------------------------------
// Message Factory Functions
// --------------------------------------------------------------------------

// NewCreateRequest creates a request for a fresh Idle socket
func NewCreateRequest() *Message {
	return &Message{MsgType: MsgTCreate}
}

// NewConnectRequest creates a new Connect request. An identifier of 0 creates the
// socket as part of the request.
func NewConnectRequest(id int, host string, port int, options map[string]any) *Message {
	return &Message{
		MsgType:    MsgTConnect,
		Identifier: id,
		Host:       host,
		Port:       port,
		Options:    options,
	}
}

// NewListenRequest creates a new Listen request
func NewListenRequest(id int, host string, port int) *Message {
	return &Message{
		MsgType:    MsgTListen,
		Identifier: id,
		Host:       host,
		Port:       port,
	}
}

// NewReadRequest creates a new Read request
func NewReadRequest(id int, maxLength int, exact bool, until []byte) *Message {
	return &Message{
		MsgType:    MsgTRead,
		Identifier: id,
		MaxLength:  maxLength,
		Exact:      exact,
		Until:      until,
	}
}

// NewSkipRequest creates a Read request that discards up to maxLength bytes
func NewSkipRequest(id int, maxLength int) *Message {
	return &Message{
		MsgType:    MsgTRead,
		Identifier: id,
		MaxLength:  maxLength,
		Skip:       true,
	}
}

// NewWriteRequest creates a new Write request
func NewWriteRequest(id int, data []byte) *Message {
	return &Message{
		MsgType:    MsgTWrite,
		Identifier: id,
		Data:       data,
	}
}

// NewCloseRequest creates a new Close request
func NewCloseRequest(id int) *Message {
	return &Message{MsgType: MsgTClose, Identifier: id}
}

// NewDescribeRequest creates a new Describe request
func NewDescribeRequest(id int) *Message {
	return &Message{MsgType: MsgTDescribe, Identifier: id}
}

// NewAcceptRequest creates a new Accept request
func NewAcceptRequest(id int) *Message {
	return &Message{MsgType: MsgTAccept, Identifier: id}
}

// NewStatsRequest creates a new Stats request
func NewStatsRequest() *Message {
	return &Message{MsgType: MsgTStats}
}

// NewResponse creates the response to a request of type t
func NewResponse(t MessageType, id int, err error) *Message {
	msg := &Message{
		MsgType:    t,
		Identifier: id,
	}
	msg.SetError(err)
	return msg
}

// NewErrorResponse creates a new Error response
func NewErrorResponse(err string) *Message {
	return &Message{
		MsgType: MsgTError,
		ErrKind: socket.StreamError.String(),
		Err:     err,
	}
}

// SetError stores err in the ErrKind and Err fields
func (m *Message) SetError(err error) {
	if err == nil {
		return
	}
	e := socket.AsError(err)
	m.ErrKind = e.Code.String()
	m.Err = e.Detail()
}

// Error returns the error carried by the message, nil if there is none. The result
// matches the socket sentinel errors with errors.Is.
func (m *Message) Error() error {
	if m.Err == "" && m.ErrKind == "" && m.MsgType != MsgTError {
		return nil
	}
	code, ok := socket.ParseErrorCode(m.ErrKind)
	if !ok {
		code = socket.StreamError
	}
	return socket.NewError(code, m.Err, nil)
}

// --------------------------------------------------------------------------
// Event conversion
// --------------------------------------------------------------------------

// NewEventMessage converts a socket event into a pushed message
func NewEventMessage(ev socket.Event) (*Message, error) {
	msg := &Message{Identifier: ev.Identifier}

	switch ev.Kind {
	case socket.KindConnected:
		msg.MsgType = MsgTEvtConnected
		msg.Descriptor = ev.Descriptor
	case socket.KindAccepted:
		msg.MsgType = MsgTEvtAccepted
		msg.Descriptor = ev.Descriptor
	case socket.KindDataAvailable:
		msg.MsgType = MsgTEvtData
		msg.Data = ev.Data
		if msg.Data == nil {
			msg.Data = []byte{}
		}
		msg.Count = ev.Count
	case socket.KindBytesWritten:
		msg.MsgType = MsgTEvtWritten
		msg.Count = ev.Count
	case socket.KindError:
		msg.MsgType = MsgTEvtError
		if ev.Err != nil {
			msg.SetError(ev.Err)
		}
		msg.Fatal = ev.Failed
	case socket.KindClosed:
		msg.MsgType = MsgTEvtClosed
	default:
		return nil, fmt.Errorf("unknown event kind %s", ev.Kind)
	}
	return msg, nil
}

// Event converts a pushed message back into a socket event
func (m *Message) Event() (socket.Event, error) {
	ev := socket.Event{Identifier: m.Identifier}

	switch m.MsgType {
	case MsgTEvtConnected:
		ev.Kind = socket.KindConnected
		ev.Descriptor = m.Descriptor
	case MsgTEvtAccepted:
		ev.Kind = socket.KindAccepted
		ev.Descriptor = m.Descriptor
	case MsgTEvtData:
		ev.Kind = socket.KindDataAvailable
		ev.Data = m.Data
		if ev.Data == nil {
			ev.Data = []byte{}
		}
		ev.Count = m.Count
		if ev.Count == 0 {
			ev.Count = len(ev.Data)
		}
	case MsgTEvtWritten:
		ev.Kind = socket.KindBytesWritten
		ev.Count = m.Count
	case MsgTEvtError:
		ev.Kind = socket.KindError
		ev.Err = socket.AsError(m.Error())
		ev.Failed = m.Fatal
	case MsgTEvtClosed:
		ev.Kind = socket.KindClosed
	default:
		return ev, fmt.Errorf("message type %s is not an event", m.MsgType)
	}
	return ev, nil
}

// --------------------------------------------------------------------------
// Message Type Definition
// --------------------------------------------------------------------------

// MessageType defines the type of message used in bridge communication.
type MessageType uint8

var messageTypeNames = map[MessageType]string{
	MsgTUnknown:      "unknown",
	MsgTSuccess:      "success",
	MsgTError:        "error",
	MsgTCreate:       "create",
	MsgTConnect:      "connect",
	MsgTListen:       "listen",
	MsgTRead:         "read",
	MsgTWrite:        "write",
	MsgTClose:        "close",
	MsgTDescribe:     "describe",
	MsgTAccept:       "accept",
	MsgTStats:        "stats",
	MsgTEvtConnected: "connected",
	MsgTEvtData:      "dataAvailable",
	MsgTEvtWritten:   "bytesWritten",
	MsgTEvtError:     "errorEvent",
	MsgTEvtClosed:    "closed",
	MsgTEvtAccepted:  "accepted",
}

// String returns the string representation of a MessageType.
func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return "unknown"
}

// IsEvent reports whether messages of this type are pushed events
func (t MessageType) IsEvent() bool {
	return t >= MsgTEvtConnected && t <= MsgTEvtAccepted
}

// MarshalJSON implements the json.Marshaller interface for MessageType.
// This allows MessageType to be serialized as a string in JSON.
func (t MessageType) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

// UnmarshalJSON implements the json.Unmarshaler interface for MessageType.
// This allows MessageType to be deserialized from a string in JSON.
func (t *MessageType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	// Convert string back to MessageType
	for msgType, name := range messageTypeNames {
		if name == s {
			*t = msgType
			return nil
		}
	}
	return fmt.Errorf("unknown message type: %s", s)
}

// --------------------------------------------------------------------------
// Message Type Constants
// --------------------------------------------------------------------------

const (
	// General message types

	MsgTUnknown MessageType = iota
	MsgTSuccess             // Indicates a successful operation
	MsgTError               // Indicates an error occurred

	// Host commands

	MsgTCreate   // Create an Idle socket
	MsgTConnect  // Connect a socket (creating it if no identifier is given)
	MsgTListen   // Bind a listening socket (creating it if no identifier is given)
	MsgTRead     // Start a read
	MsgTWrite    // Start a write
	MsgTClose    // Close a socket
	MsgTDescribe // Describe a socket
	MsgTAccept   // Accept the next connection of a listener
	MsgTStats    // Statistics of the session registry

	// Pushed events

	MsgTEvtConnected // Socket is open
	MsgTEvtData      // Read completed
	MsgTEvtWritten   // Write completed
	MsgTEvtError     // Operation failed
	MsgTEvtClosed    // Socket is closed
	MsgTEvtAccepted  // Listener produced a connection
)
