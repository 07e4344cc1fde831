// Package bytescan decodes the little-endian, variable-length fields used
// throughout the block-file wire format: fixed-width integers, Bitcoin
// varints, and raw byte slices, all bounds-checked against an in-memory
// buffer.
package bytescan

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Reader is a cursor over a contiguous byte buffer. It never panics on a
// short read; every primitive returns io.ErrUnexpectedEOF once the cursor
// would run past the end of the buffer.
type Reader struct {
	buf []byte
	pos int
}

// New wraps buf for sequential decoding starting at offset 0.
func New(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Pos returns the current cursor offset within the buffer.
func (r *Reader) Pos() int { return r.pos }

// Len returns the number of unread bytes remaining.
func (r *Reader) Len() int { return len(r.buf) - r.pos }

// Bytes returns the full underlying buffer (not just the unread tail).
func (r *Reader) Bytes() []byte { return r.buf }

// Seek repositions the cursor to an absolute offset. It does not validate
// that the offset lies within the buffer; the next read will fail if it
// doesn't.
func (r *Reader) Seek(pos int) { r.pos = pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.buf) {
		return io.ErrUnexpectedEOF
	}
	return nil
}

// Slice returns the next n bytes without copying and advances the cursor.
func (r *Reader) Slice(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	return s, nil
}

// Skip advances the cursor by n bytes, discarding them.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// U32 loads a little-endian uint32 and advances the cursor by 4.
func (r *Reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

// U64 loads a little-endian uint64 and advances the cursor by 8.
func (r *Reader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

// Hash256 loads the next 32 bytes as-is (no endianness to apply).
func (r *Reader) Hash256() ([32]byte, error) {
	var h [32]byte
	s, err := r.Slice(32)
	if err != nil {
		return h, err
	}
	copy(h[:], s)
	return h, nil
}

// VarInt decodes a Bitcoin-style compact size integer:
//
//	b < 0xfd:  value is b
//	b == 0xfd: next 2 bytes LE
//	b == 0xfe: next 4 bytes LE
//	b == 0xff: next 8 bytes LE
func (r *Reader) VarInt() (uint64, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.buf[r.pos]
	r.pos++

	switch b {
	case 0xfd:
		if err := r.need(2); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint16(r.buf[r.pos:]))
		r.pos += 2
		return v, nil
	case 0xfe:
		if err := r.need(4); err != nil {
			return 0, err
		}
		v := uint64(binary.LittleEndian.Uint32(r.buf[r.pos:]))
		r.pos += 4
		return v, nil
	case 0xff:
		if err := r.need(8); err != nil {
			return 0, err
		}
		v := binary.LittleEndian.Uint64(r.buf[r.pos:])
		r.pos += 8
		return v, nil
	default:
		return uint64(b), nil
	}
}

// PutVarInt appends val to dst in Bitcoin varint encoding. Used by tests to
// build varint-encoded fixtures and to round-trip VarInt.
func PutVarInt(dst []byte, val uint64) []byte {
	switch {
	case val < 0xfd:
		return append(dst, byte(val))
	case val <= 0xffff:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(val))
		return append(append(dst, 0xfd), buf...)
	case val <= 0xffffffff:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(val))
		return append(append(dst, 0xfe), buf...)
	default:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, val)
		return append(append(dst, 0xff), buf...)
	}
}

// ErrTruncated wraps a short read with the offset at which it occurred, for
// the "truncated reads within a block are fatal" handling in pass 4.
type ErrTruncated struct {
	Offset int
	Err    error
}

func (e *ErrTruncated) Error() string {
	return fmt.Sprintf("truncated read at offset %d: %v", e.Offset, e.Err)
}

func (e *ErrTruncated) Unwrap() error { return e.Err }

// Truncated wraps err with the reader's current offset if err is non-nil.
func (r *Reader) Truncated(err error) error {
	if err == nil {
		return nil
	}
	return &ErrTruncated{Offset: r.pos, Err: err}
}
