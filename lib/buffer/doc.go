// Package buffer implements the fixed-capacity scratch storage used by every
// socket, one Buffer per direction.
//
// A Buffer is a single slot, not a ring: every fill or load overwrites what was
// there before. The capacity is fixed when the buffer is created (512 KiB by
// default) and never grows. Payloads that do not fit are rejected with
// ErrPayloadTooLarge instead of being truncated.
//
// Key Components:
//
//   - Buffer: the storage itself, with Load (write direction) and the Fill* family
//     (read direction).
//
// Thread Safety:
//
//	A Buffer is not safe for concurrent use. The owning socket only touches it from
//	the lane that runs the single in-flight operation of that direction.
package buffer
