package mrt

import "encoding/binary"

// Cursor is a bounds-checked reader over a single in-memory MRT record
// payload. Every read either succeeds and advances the offset or leaves
// the offset untouched and returns ErrTruncated.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor wraps buf. The cursor never copies buf on construction; reads
// that hand data back to the caller (ReadExact, ReadRest) copy, so the
// caller may retain the returned slice after buf is reused or discarded.
func NewCursor(buf []byte) *Cursor {
	return &Cursor{buf: buf}
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.buf) - c.off
}

// Offset returns the current read position.
func (c *Cursor) Offset() int {
	return c.off
}

func (c *Cursor) require(n int) error {
	if n < 0 || c.Remaining() < n {
		return ErrTruncated
	}
	return nil
}

// Skip advances the cursor by n bytes without returning them.
func (c *Cursor) Skip(n int) error {
	if err := c.require(n); err != nil {
		return err
	}
	c.off += n
	return nil
}

// ReadU8 consumes one byte.
func (c *Cursor) ReadU8() (uint8, error) {
	if err := c.require(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// ReadU16 consumes a big-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	if err := c.require(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off : c.off+2])
	c.off += 2
	return v, nil
}

// ReadU32 consumes a big-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	if err := c.require(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off : c.off+4])
	c.off += 4
	return v, nil
}

// ReadU64 consumes a big-endian uint64.
func (c *Cursor) ReadU64() (uint64, error) {
	if err := c.require(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.off : c.off+8])
	c.off += 8
	return v, nil
}

// ReadExact consumes and returns a copy of the next n bytes. The returned
// slice is independently owned and safe to retain, satisfying the
// OwnedModel invariant that decoded values outlive the source buffer.
func (c *Cursor) ReadExact(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

// ReadRest consumes and returns a copy of everything left in the cursor.
func (c *Cursor) ReadRest() []byte {
	out := make([]byte, c.Remaining())
	copy(out, c.buf[c.off:])
	c.off = len(c.buf)
	return out
}

// PeekExact returns a copy of the next n bytes without advancing the
// cursor. Used where a field's declared length and the width actually
// consumed from the wire diverge (see the BGP4MP_ENTRY next-hop quirk in
// rib.go).
func (c *Cursor) PeekExact(n int) ([]byte, error) {
	if err := c.require(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	return out, nil
}
