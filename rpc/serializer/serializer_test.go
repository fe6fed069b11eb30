package serializer

import (
	"reflect"
	"testing"

	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/lib/stream"
	"github.com/ValentinKolb/netstack/rpc/common"
)

// testSerializers is a map of serializer name to factory function
var testSerializers = map[string]func() IRPCSerializer{
	"JSON":   NewJSONSerializer,
	"GOB":    NewGOBSerializer,
	"Binary": NewBinarySerializer,
}

func testDescriptor() *socket.Descriptor {
	return &socket.Descriptor{
		Identifier:    3,
		LocalAddress:  "192.168.1.10",
		LocalPort:     50342,
		RemoteAddress: "2001:db8::1",
		RemotePort:    443,
		AddressFamily: stream.FamilyIPv6,
		State:         socket.Open,
	}
}

// testMessages creates a set of test messages with different fields filled. Option
// values are limited to float64, bool and string since JSON decodes every number
// as float64.
func testMessages() []common.Message {
	return []common.Message{
		// Basic message with just a type
		{MsgType: common.MsgTSuccess},

		// Connect request
		{
			MsgType: common.MsgTConnect,
			Host:    "example.org",
			Port:    443,
			Options: map[string]any{"tls": true, "connectTimeoutMs": float64(2500)},
		},

		// Read request
		{
			MsgType:    common.MsgTRead,
			Identifier: 7,
			MaxLength:  4096,
			Exact:      true,
		},

		// Read until request
		{
			MsgType:    common.MsgTRead,
			Identifier: 7,
			Until:      []byte("\r\n"),
		},

		// Skip read request
		{
			MsgType:    common.MsgTRead,
			Identifier: 7,
			MaxLength:  512,
			Skip:       true,
		},

		// Describe response
		{
			MsgType:    common.MsgTDescribe,
			Identifier: 3,
			Descriptor: testDescriptor(),
		},

		// Listener descriptor
		{
			MsgType:    common.MsgTEvtAccepted,
			Identifier: 9,
			Descriptor: &socket.Descriptor{
				Identifier:    9,
				LocalAddress:  "127.0.0.1",
				LocalPort:     8080,
				RemoteAddress: "127.0.0.1",
				RemotePort:    51000,
				AddressFamily: stream.FamilyIPv4,
				State:         socket.Open,
			},
		},

		// Data event
		{
			MsgType:    common.MsgTEvtData,
			Identifier: 1,
			Data:       []byte("GET / HTTP/1.1\r\n\r\n"),
		},

		// Written event
		{
			MsgType:    common.MsgTEvtWritten,
			Identifier: 1,
			Count:      18,
		},

		// Fatal error event
		{
			MsgType:    common.MsgTEvtError,
			Identifier: 2,
			ErrKind:    socket.ConnectionRefused.String(),
			Err:        "dial tcp 127.0.0.1:1: connect: connection refused",
			Fatal:      true,
		},

		// Error response
		{
			MsgType: common.MsgTError,
			ErrKind: socket.StreamError.String(),
			Err:     "test error message",
		},

		// Stats response
		{
			MsgType: common.MsgTStats,
			Meta:    []byte(`{"open":1}`),
		},
	}
}

// TestSerializerRoundTrip tests that messages can be serialized and deserialized correctly
func TestSerializerRoundTrip(t *testing.T) {
	messages := testMessages()

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for i, msg := range messages {
				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message %d: %v", i, err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message %d: %v", i, err)
					continue
				}

				if !reflect.DeepEqual(msg, result) {
					t.Errorf("Message %d doesn't match after round trip:\nOriginal: %+v\nResult: %+v",
						i, msg, result)
				}
			}
		})
	}
}

// TestMessageTypes tests each message type with each serializer
func TestMessageTypes(t *testing.T) {
	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for msgType := common.MsgTSuccess; msgType <= common.MsgTEvtAccepted; msgType++ {
				msg := common.Message{MsgType: msgType}

				data, err := serializer.Serialize(msg)
				if err != nil {
					t.Errorf("Failed to serialize message type %s: %v", msgType.String(), err)
					continue
				}

				var result common.Message
				err = serializer.Deserialize(data, &result)
				if err != nil {
					t.Errorf("Failed to deserialize message type %s: %v", msgType.String(), err)
					continue
				}

				if result.MsgType != msgType {
					t.Errorf("Message type doesn't match after round trip: Expected %s, got %s",
						msgType.String(), result.MsgType.String())
				}
			}
		})
	}
}

// TestEventMessages checks that socket events survive the conversion to a message,
// the wire and back
func TestEventMessages(t *testing.T) {
	events := []socket.Event{
		{Identifier: 1, Kind: socket.KindConnected, Descriptor: testDescriptor()},
		{Identifier: 1, Kind: socket.KindDataAvailable, Data: []byte("pong"), Count: 4},
		{Identifier: 1, Kind: socket.KindDataAvailable, Data: []byte{}, Count: 512},
		{Identifier: 1, Kind: socket.KindBytesWritten, Count: 4},
		{Identifier: 1, Kind: socket.KindError, Err: socket.NewError(socket.ReadInProgress, "read already pending", nil)},
		{Identifier: 1, Kind: socket.KindError, Err: socket.NewError(socket.ConnectTimeout, "no answer", nil), Failed: true},
		{Identifier: 1, Kind: socket.KindClosed},
	}

	for name, factory := range testSerializers {
		t.Run(name, func(t *testing.T) {
			serializer := factory()

			for _, ev := range events {
				msg, err := common.NewEventMessage(ev)
				if err != nil {
					t.Fatalf("Failed to convert event %s: %v", ev, err)
				}
				if !msg.MsgType.IsEvent() {
					t.Fatalf("Message type %s is not an event type", msg.MsgType)
				}

				data, err := serializer.Serialize(*msg)
				if err != nil {
					t.Fatalf("Failed to serialize event %s: %v", ev, err)
				}
				var decoded common.Message
				if err := serializer.Deserialize(data, &decoded); err != nil {
					t.Fatalf("Failed to deserialize event %s: %v", ev, err)
				}

				got, err := decoded.Event()
				if err != nil {
					t.Fatalf("Failed to convert message back: %v", err)
				}
				if got.Kind != ev.Kind || got.Identifier != ev.Identifier || got.Count != ev.Count || got.Failed != ev.Failed {
					t.Errorf("Event mismatch: expected %s, got %s", ev, got)
				}
				if ev.Kind == socket.KindDataAvailable && string(got.Data) != string(ev.Data) {
					t.Errorf("Data mismatch: expected %q, got %q", ev.Data, got.Data)
				}
				if ev.Descriptor != nil && !reflect.DeepEqual(ev.Descriptor, got.Descriptor) {
					t.Errorf("Descriptor mismatch: expected %+v, got %+v", ev.Descriptor, got.Descriptor)
				}
				if ev.Err != nil {
					if got.Err == nil || got.Err.Code != ev.Err.Code || got.Err.Message != ev.Err.Message {
						t.Errorf("Error mismatch: expected %v, got %v", ev.Err, got.Err)
					}
				}
			}
		})
	}
}

// TestBinarySerializerSpecific tests specific edge cases for the binary serializer
func TestBinarySerializerSpecific(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name string
		msg  common.Message
	}{
		{
			name: "Empty message",
			msg:  common.Message{},
		},
		{
			name: "Empty data slice but not nil",
			msg: common.Message{
				MsgType:    common.MsgTEvtData,
				Identifier: 4,
				Data:       []byte{},
			},
		},
		{
			name: "Empty terminator but not nil",
			msg: common.Message{
				MsgType: common.MsgTRead,
				Until:   []byte{},
			},
		},
		{
			name: "Empty meta slice but not nil",
			msg: common.Message{
				MsgType: common.MsgTStats,
				Meta:    []byte{},
			},
		},
		{
			name: "Negative numbers",
			msg: common.Message{
				MsgType:   common.MsgTRead,
				MaxLength: -1,
				Count:     -42,
			},
		},
		{
			name: "Zero descriptor",
			msg: common.Message{
				MsgType:    common.MsgTDescribe,
				Descriptor: &socket.Descriptor{},
			},
		},
		{
			name: "Listening descriptor",
			msg: common.Message{
				MsgType: common.MsgTDescribe,
				Descriptor: &socket.Descriptor{
					Identifier:   1,
					LocalAddress: "::",
					LocalPort:    9000,
					State:        socket.Open,
					Listening:    true,
				},
			},
		},
		{
			name: "Empty options",
			msg: common.Message{
				MsgType: common.MsgTConnect,
				Options: map[string]any{},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := serializer.Serialize(tc.msg)
			if err != nil {
				t.Fatalf("Failed to serialize: %v", err)
			}

			var result common.Message
			if err := serializer.Deserialize(data, &result); err != nil {
				t.Fatalf("Failed to deserialize: %v", err)
			}

			// the binary format keeps the difference between nil and empty slices
			if !reflect.DeepEqual(tc.msg, result) {
				t.Errorf("Message mismatch:\nOriginal: %+v\nResult: %+v", tc.msg, result)
			}
		})
	}
}

// TestBinaryDeserializeResets checks that decoding into a used message clears old fields
func TestBinaryDeserializeResets(t *testing.T) {
	serializer := NewBinarySerializer()

	data, err := serializer.Serialize(common.Message{MsgType: common.MsgTClose, Identifier: 2})
	if err != nil {
		t.Fatalf("Failed to serialize: %v", err)
	}

	msg := common.Message{Host: "stale", Data: []byte("stale"), Fatal: true}
	if err := serializer.Deserialize(data, &msg); err != nil {
		t.Fatalf("Failed to deserialize: %v", err)
	}
	if !reflect.DeepEqual(msg, common.Message{MsgType: common.MsgTClose, Identifier: 2}) {
		t.Errorf("Old fields survived decoding: %+v", msg)
	}
}

// TestInvalidBinaryData tests how the binary serializer handles corrupt or invalid data
func TestInvalidBinaryData(t *testing.T) {
	serializer := NewBinarySerializer()

	testCases := []struct {
		name        string
		data        []byte
		expectError bool
	}{
		{
			name:        "Empty data",
			data:        []byte{},
			expectError: true,
		},
		{
			name:        "Too short header",
			data:        []byte{1, 0}, // Message type and half of the flags
			expectError: true,
		},
		{
			name:        "Valid header only",
			data:        []byte{1, 0, 0}, // Message type 1, no flags
			expectError: false,
		},
		{
			name:        "Invalid identifier",
			data:        []byte{1, 0, 1, 0, 0, 0}, // Identifier needs 8 bytes
			expectError: true,
		},
		{
			name:        "Invalid length for host",
			data:        []byte{1, 0, 2, 0, 0, 0, 5, 'a', 'b', 'c'}, // Claims host length 5 but only 3 bytes provided
			expectError: true,
		},
		{
			name:        "Invalid length for data",
			data:        []byte{1, 0, 128, 0, 0, 0, 10}, // Claims data length 10 but no bytes provided
			expectError: true,
		},
		{
			name:        "Invalid options document",
			data:        []byte{1, 0, 8, 0, 0, 0, 1, '{'},
			expectError: true,
		},
		{
			name:        "Truncated descriptor",
			data:        []byte{1, 2, 0, 0, 0, 0, 0, 0, 0, 0, 1},
			expectError: true,
		},
		{
			name:        "Flag only fields",
			data:        []byte{1, 0x10, 0x20}, // Fatal and Exact
			expectError: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var msg common.Message
			err := serializer.Deserialize(tc.data, &msg)

			if tc.expectError && err == nil {
				t.Errorf("Expected error but got none")
			} else if !tc.expectError && err != nil {
				t.Errorf("Did not expect error but got: %v", err)
			}
		})
	}
}
