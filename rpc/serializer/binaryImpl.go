package serializer

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/netstack/lib/socket"
	"github.com/ValentinKolb/netstack/lib/stream"
	"github.com/ValentinKolb/netstack/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: MsgType (1 byte), flags (2 bytes, big endian), then every present field
// in flag order. Integers are 8 bytes, strings and byte slices carry a 4 byte
// length prefix. Exact and Fatal are encoded in the flags only. Options are
// stored as a JSON document since their values are dynamically typed.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasIdentifier uint16 = 1 << iota
	hasHost
	hasPort
	hasOptions
	hasMaxLength
	hasExact
	hasUntil
	hasData
	hasCount
	hasDescriptor
	hasErrKind
	hasErr
	hasFatal
	hasMeta
	hasSkip
)

const headerSize = 3

// descriptorSize is the fixed part of an encoded descriptor: identifier, two
// ports, two string lengths and three single bytes (family, state, listening)
const descriptorSize = 8 + 8 + 8 + 4 + 4 + 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var options []byte
	if msg.Options != nil {
		encoded, err := json.Marshal(msg.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		options = encoded
	}

	// Calculate total size needed
	result := make([]byte, b.sizeBytes(msg, options))

	// Write message type
	result[0] = byte(msg.MsgType)

	var flags uint16 = 0
	pos := headerSize // Start after MsgType and flags

	if msg.Identifier != 0 {
		flags |= hasIdentifier
		pos = putInt(result, pos, msg.Identifier)
	}
	if msg.Host != "" {
		flags |= hasHost
		pos = putBytes(result, pos, []byte(msg.Host))
	}
	if msg.Port != 0 {
		flags |= hasPort
		pos = putInt(result, pos, msg.Port)
	}
	if options != nil {
		flags |= hasOptions
		pos = putBytes(result, pos, options)
	}
	if msg.MaxLength != 0 {
		flags |= hasMaxLength
		pos = putInt(result, pos, msg.MaxLength)
	}
	if msg.Exact {
		flags |= hasExact
	}
	if msg.Until != nil {
		flags |= hasUntil
		pos = putBytes(result, pos, msg.Until)
	}
	if msg.Data != nil {
		flags |= hasData
		pos = putBytes(result, pos, msg.Data)
	}
	if msg.Count != 0 {
		flags |= hasCount
		pos = putInt(result, pos, msg.Count)
	}
	if msg.Descriptor != nil {
		flags |= hasDescriptor
		pos = putDescriptor(result, pos, msg.Descriptor)
	}
	if msg.ErrKind != "" {
		flags |= hasErrKind
		pos = putBytes(result, pos, []byte(msg.ErrKind))
	}
	if msg.Err != "" {
		flags |= hasErr
		pos = putBytes(result, pos, []byte(msg.Err))
	}
	if msg.Fatal {
		flags |= hasFatal
	}
	if msg.Skip {
		flags |= hasSkip
	}
	if msg.Meta != nil {
		flags |= hasMeta
		putBytes(result, pos, msg.Meta)
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(result[1:3], flags)

	return result, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	// Check minimum size (MsgType + flags)
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := &binaryReader{data: data, pos: headerSize}

	var err error
	if flags&hasIdentifier != 0 {
		if msg.Identifier, err = r.int("identifier"); err != nil {
			return err
		}
	}
	if flags&hasHost != 0 {
		if msg.Host, err = r.string("host"); err != nil {
			return err
		}
	}
	if flags&hasPort != 0 {
		if msg.Port, err = r.int("port"); err != nil {
			return err
		}
	}
	if flags&hasOptions != 0 {
		raw, err := r.bytes("options")
		if err != nil {
			return err
		}
		if err := json.Unmarshal(raw, &msg.Options); err != nil {
			return fmt.Errorf("failed to decode options: %w", err)
		}
	}
	if flags&hasMaxLength != 0 {
		if msg.MaxLength, err = r.int("max length"); err != nil {
			return err
		}
	}
	msg.Exact = flags&hasExact != 0
	if flags&hasUntil != 0 {
		if msg.Until, err = r.bytes("terminator"); err != nil {
			return err
		}
	}
	if flags&hasData != 0 {
		if msg.Data, err = r.bytes("data"); err != nil {
			return err
		}
	}
	if flags&hasCount != 0 {
		if msg.Count, err = r.int("count"); err != nil {
			return err
		}
	}
	if flags&hasDescriptor != 0 {
		if msg.Descriptor, err = r.descriptor(); err != nil {
			return err
		}
	}
	if flags&hasErrKind != 0 {
		if msg.ErrKind, err = r.string("error kind"); err != nil {
			return err
		}
	}
	if flags&hasErr != 0 {
		if msg.Err, err = r.string("error"); err != nil {
			return err
		}
	}
	msg.Fatal = flags&hasFatal != 0
	msg.Skip = flags&hasSkip != 0
	if flags&hasMeta != 0 {
		if msg.Meta, err = r.bytes("meta"); err != nil {
			return err
		}
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message, options []byte) int {
	size := headerSize

	if msg.Identifier != 0 {
		size += 8
	}
	if msg.Host != "" {
		size += 4 + len(msg.Host)
	}
	if msg.Port != 0 {
		size += 8
	}
	if options != nil {
		size += 4 + len(options)
	}
	if msg.MaxLength != 0 {
		size += 8
	}
	if msg.Until != nil {
		size += 4 + len(msg.Until)
	}
	if msg.Data != nil {
		size += 4 + len(msg.Data)
	}
	if msg.Count != 0 {
		size += 8
	}
	if msg.Descriptor != nil {
		size += descriptorSize + len(msg.Descriptor.LocalAddress) + len(msg.Descriptor.RemoteAddress)
	}
	if msg.ErrKind != "" {
		size += 4 + len(msg.ErrKind)
	}
	if msg.Err != "" {
		size += 4 + len(msg.Err)
	}
	if msg.Meta != nil {
		size += 4 + len(msg.Meta)
	}

	return size
}

// putInt writes v as 8 byte big endian integer and returns the next position
func putInt(buf []byte, pos int, v int) int {
	binary.BigEndian.PutUint64(buf[pos:pos+8], uint64(int64(v)))
	return pos + 8
}

// putBytes writes a length prefixed byte slice and returns the next position
func putBytes(buf []byte, pos int, v []byte) int {
	binary.BigEndian.PutUint32(buf[pos:pos+4], uint32(len(v)))
	pos += 4
	copy(buf[pos:pos+len(v)], v)
	return pos + len(v)
}

func putDescriptor(buf []byte, pos int, d *socket.Descriptor) int {
	pos = putInt(buf, pos, d.Identifier)
	pos = putBytes(buf, pos, []byte(d.LocalAddress))
	pos = putInt(buf, pos, d.LocalPort)
	pos = putBytes(buf, pos, []byte(d.RemoteAddress))
	pos = putInt(buf, pos, d.RemotePort)
	buf[pos] = byte(d.AddressFamily)
	buf[pos+1] = byte(d.State)
	if d.Listening {
		buf[pos+2] = 1
	}
	return pos + 3
}

// binaryReader reads fields from an encoded message, failing on truncated input
type binaryReader struct {
	data []byte
	pos  int
}

func (r *binaryReader) int(name string) (int, error) {
	if r.pos+8 > len(r.data) {
		return 0, fmt.Errorf("data too short for %s", name)
	}
	v := int64(binary.BigEndian.Uint64(r.data[r.pos : r.pos+8]))
	r.pos += 8
	return int(v), nil
}

// bytes returns a copy of a length prefixed field. An empty field decodes to an
// empty, non-nil slice.
func (r *binaryReader) bytes(name string) ([]byte, error) {
	if r.pos+4 > len(r.data) {
		return nil, fmt.Errorf("data too short for %s length", name)
	}
	n := int(binary.BigEndian.Uint32(r.data[r.pos : r.pos+4]))
	r.pos += 4
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("data too short for %s data", name)
	}
	v := make([]byte, n)
	copy(v, r.data[r.pos:r.pos+n])
	r.pos += n
	return v, nil
}

func (r *binaryReader) string(name string) (string, error) {
	v, err := r.bytes(name)
	return string(v), err
}

func (r *binaryReader) descriptor() (*socket.Descriptor, error) {
	d := &socket.Descriptor{}
	var err error
	if d.Identifier, err = r.int("descriptor identifier"); err != nil {
		return nil, err
	}
	if d.LocalAddress, err = r.string("local address"); err != nil {
		return nil, err
	}
	if d.LocalPort, err = r.int("local port"); err != nil {
		return nil, err
	}
	if d.RemoteAddress, err = r.string("remote address"); err != nil {
		return nil, err
	}
	if d.RemotePort, err = r.int("remote port"); err != nil {
		return nil, err
	}
	if r.pos+3 > len(r.data) {
		return nil, fmt.Errorf("data too short for descriptor flags")
	}
	d.AddressFamily = stream.Family(r.data[r.pos])
	d.State = socket.State(r.data[r.pos+1])
	d.Listening = r.data[r.pos+2] != 0
	r.pos += 3
	return d, nil
}
