package buffer

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
)

// TestNewBuffer tests the default capacity and empty state
func TestNewBuffer(t *testing.T) {
	b := New()
	if b.Cap() != Capacity {
		t.Errorf("Expected capacity %d, got %d", Capacity, b.Cap())
	}
	if b.Len() != 0 {
		t.Errorf("New buffer should be empty, has %d bytes", b.Len())
	}
	if Capacity != 512*1024 {
		t.Errorf("Default capacity should be 512 KiB, is %d", Capacity)
	}
}

// TestLoadOverwrites tests that Load replaces the previous content instead of appending
func TestLoadOverwrites(t *testing.T) {
	b := NewWithCapacity(16)

	if err := b.Load([]byte("hello world")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if err := b.Load([]byte("bye")); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got := string(b.Bytes()); got != "bye" {
		t.Errorf("Expected %q, got %q", "bye", got)
	}
}

// TestLoadTooLarge tests the capacity limit in the write direction
func TestLoadTooLarge(t *testing.T) {
	b := NewWithCapacity(4)
	_ = b.Load([]byte("abc"))

	err := b.Load([]byte("abcde"))
	if !errors.Is(err, ErrPayloadTooLarge) {
		t.Fatalf("Expected ErrPayloadTooLarge, got %v", err)
	}
	// previous content is untouched
	if got := string(b.Bytes()); got != "abc" {
		t.Errorf("Buffer content changed after rejected load: %q", got)
	}

	// exactly the capacity fits
	if err := b.Load([]byte("abcd")); err != nil {
		t.Errorf("Payload of exactly the capacity should fit: %v", err)
	}
}

// TestFillFrom tests single reads with and without a limit
func TestFillFrom(t *testing.T) {
	tests := []struct {
		name  string
		input string
		max   int
		want  string
	}{
		{"whole capacity", "0123456789", 0, "01234567"},
		{"limited", "0123456789", 3, "012"},
		{"short input", "01", 5, "01"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := NewWithCapacity(8)
			n, err := b.FillFrom(strings.NewReader(tc.input), tc.max)
			if err != nil {
				t.Fatalf("FillFrom failed: %v", err)
			}
			if n != len(tc.want) || string(b.Bytes()) != tc.want {
				t.Errorf("Expected %q, got %q (n=%d)", tc.want, b.Bytes(), n)
			}
		})
	}
}

// TestFillFromTooLarge tests that a read larger than the capacity is rejected
func TestFillFromTooLarge(t *testing.T) {
	b := NewWithCapacity(8)
	if _, err := b.FillFrom(strings.NewReader("x"), 9); !errors.Is(err, ErrPayloadTooLarge) {
		t.Errorf("Expected ErrPayloadTooLarge, got %v", err)
	}
}

// TestFillFromEOF tests that the end of the stream is reported as zero bytes plus io.EOF
func TestFillFromEOF(t *testing.T) {
	b := NewWithCapacity(8)
	n, err := b.FillFrom(strings.NewReader(""), 0)
	if n != 0 || err != io.EOF {
		t.Errorf("Expected (0, EOF), got (%d, %v)", n, err)
	}
}

// TestFillFull tests exact reads and short streams
func TestFillFull(t *testing.T) {
	b := NewWithCapacity(8)

	n, err := b.FillFull(strings.NewReader("abcdefgh"), 6)
	if err != nil || n != 6 || string(b.Bytes()) != "abcdef" {
		t.Fatalf("Expected 6 bytes 'abcdef', got %d %q err=%v", n, b.Bytes(), err)
	}

	n, err = b.FillFull(strings.NewReader("ab"), 6)
	if err != io.ErrUnexpectedEOF || n != 2 || string(b.Bytes()) != "ab" {
		t.Errorf("Expected short read with ErrUnexpectedEOF, got %d %q err=%v", n, b.Bytes(), err)
	}
}

// TestFillUntil tests terminator reads
func TestFillUntil(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("GET / HTTP/1.0\r\nHost: x\r\n\r\nbody"))
	b := NewWithCapacity(64)

	n, err := b.FillUntil(r, 0, []byte("\r\n"))
	if err != nil {
		t.Fatalf("FillUntil failed: %v", err)
	}
	if got := string(b.Bytes()); got != "GET / HTTP/1.0\r\n" || n != len(got) {
		t.Errorf("Unexpected first line %q", got)
	}

	_, _ = b.FillUntil(r, 0, []byte("\r\n\r\n"))
	if got := string(b.Bytes()); got != "Host: x\r\n\r\n" {
		t.Errorf("Unexpected header block %q", got)
	}

	// the rest of the stream is left for the next read
	rest, _ := io.ReadAll(r)
	if !bytes.Equal(rest, []byte("body")) {
		t.Errorf("Bytes after the terminator were consumed: %q", rest)
	}
}

// TestFillUntilLimit tests that FillUntil stops at the limit without error
func TestFillUntilLimit(t *testing.T) {
	r := bufio.NewReader(strings.NewReader("aaaaaaaaaa\n"))
	b := NewWithCapacity(4)

	n, err := b.FillUntil(r, 0, []byte("\n"))
	if err != nil || n != 4 {
		t.Errorf("Expected a full buffer without error, got n=%d err=%v", n, err)
	}

	if _, err := b.FillUntil(r, 0, nil); err == nil {
		t.Error("Expected an error for an empty terminator")
	}
}

// TestRelease tests that a released buffer rejects every operation
func TestRelease(t *testing.T) {
	b := NewWithCapacity(8)
	_ = b.Load([]byte("data"))
	b.Release()

	if !b.Released() || b.Cap() != 0 || b.Len() != 0 {
		t.Fatalf("Buffer should be released and empty")
	}
	if err := b.Load([]byte("x")); !errors.Is(err, ErrReleased) {
		t.Errorf("Load: expected ErrReleased, got %v", err)
	}
	if _, err := b.FillFrom(strings.NewReader("x"), 0); !errors.Is(err, ErrReleased) {
		t.Errorf("FillFrom: expected ErrReleased, got %v", err)
	}
}

// TestCopyDoesNotAlias tests that Copy survives a later overwrite
func TestCopyDoesNotAlias(t *testing.T) {
	b := NewWithCapacity(8)
	_ = b.Load([]byte("first"))
	c := b.Copy()
	_ = b.Load([]byte("second"))

	if string(c) != "first" {
		t.Errorf("Copy was modified by a later load: %q", c)
	}
}

// BenchmarkLoad benchmarks loading a full buffer
func BenchmarkLoad(b *testing.B) {
	buf := New()
	payload := bytes.Repeat([]byte{'x'}, Capacity)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = buf.Load(payload)
	}
}
