package buffer

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

const (
	// Capacity is the default capacity of a socket buffer
	Capacity = 512 * 1024 // 512 KB
)

var (
	// ErrPayloadTooLarge is returned when data does not fit into the buffer
	ErrPayloadTooLarge = errors.New("payload exceeds buffer capacity")
	// ErrReleased is returned when a released buffer is used
	ErrReleased = errors.New("buffer has been released")
)

// Buffer is a fixed-capacity single-slot byte store
type Buffer struct {
	data   []byte
	length int
}

// New allocates a buffer with the default capacity
func New() *Buffer {
	return NewWithCapacity(Capacity)
}

// NewWithCapacity allocates a buffer with the given capacity
func NewWithCapacity(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = Capacity
	}
	return &Buffer{data: make([]byte, capacity)}
}

// Cap returns the capacity, 0 once the buffer has been released
func (b *Buffer) Cap() int {
	return len(b.data)
}

// Len returns the number of valid bytes
func (b *Buffer) Len() int {
	return b.length
}

// Bytes returns the valid bytes. The slice aliases the buffer and is only valid
// until the next operation on it.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.length]
}

// Copy returns a freshly allocated copy of the valid bytes
func (b *Buffer) Copy() []byte {
	out := make([]byte, b.length)
	copy(out, b.data[:b.length])
	return out
}

// Reset marks the buffer as empty without touching its storage
func (b *Buffer) Reset() {
	b.length = 0
}

// Release drops the storage. Every later operation fails with ErrReleased.
func (b *Buffer) Release() {
	b.data = nil
	b.length = 0
}

// Released reports whether Release has been called
func (b *Buffer) Released() bool {
	return b.data == nil
}

// Load overwrites the buffer with p
func (b *Buffer) Load(p []byte) error {
	if b.Released() {
		return ErrReleased
	}
	if len(p) > len(b.data) {
		return fmt.Errorf("%w: %d bytes, capacity is %d", ErrPayloadTooLarge, len(p), len(b.data))
	}
	b.length = copy(b.data, p)
	return nil
}

// limit validates a requested length, max <= 0 means the whole capacity
func (b *Buffer) limit(max int) (int, error) {
	if b.Released() {
		return 0, ErrReleased
	}
	if max <= 0 {
		return len(b.data), nil
	}
	if max > len(b.data) {
		return 0, fmt.Errorf("%w: %d bytes requested, capacity is %d", ErrPayloadTooLarge, max, len(b.data))
	}
	return max, nil
}

// FillFrom overwrites the buffer with the result of a single Read of at most max bytes.
// A read of 0 bytes together with io.EOF means the peer closed its side.
func (b *Buffer) FillFrom(r io.Reader, max int) (int, error) {
	max, err := b.limit(max)
	if err != nil {
		return 0, err
	}
	b.length = 0

	n, err := r.Read(b.data[:max])
	b.length = n
	return n, err
}

// FillFull overwrites the buffer with exactly max bytes. If the stream ends early the
// bytes received so far stay in the buffer and io.ErrUnexpectedEOF (or io.EOF when
// nothing arrived) is returned.
func (b *Buffer) FillFull(r io.Reader, max int) (int, error) {
	max, err := b.limit(max)
	if err != nil {
		return 0, err
	}
	b.length = 0

	n, err := io.ReadFull(r, b.data[:max])
	b.length = n
	return n, err
}

// FillUntil overwrites the buffer with bytes up to and including delim, reading at
// most max bytes. If max bytes arrive without delim the call returns with a full
// buffer and no error, the caller reads again for the rest.
func (b *Buffer) FillUntil(r io.ByteReader, max int, delim []byte) (int, error) {
	if len(delim) == 0 {
		return 0, errors.New("empty terminator")
	}
	max, err := b.limit(max)
	if err != nil {
		return 0, err
	}
	b.length = 0

	for b.length < max {
		c, err := r.ReadByte()
		if err != nil {
			if err == io.EOF && b.length > 0 {
				err = io.ErrUnexpectedEOF
			}
			return b.length, err
		}
		b.data[b.length] = c
		b.length++

		if c == delim[len(delim)-1] && bytes.HasSuffix(b.data[:b.length], delim) {
			break
		}
	}
	return b.length, nil
}
