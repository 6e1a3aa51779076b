// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"io"

	"github.com/pkg/errors"
)

// MaxVarIntPayload is the maximum payload size for a variable length integer.
const MaxVarIntPayload = 9

// ReadVarInt reads a variable length integer from r and returns it as a uint64.
func ReadVarInt(r io.Reader) (uint64, error) {
	var buf [9]byte
	if _, err := io.ReadFull(r, buf[:1]); err != nil {
		return 0, errors.Wrap(err, "read varint discriminant")
	}
	switch buf[0] {
	case 0xff:
		if _, err := io.ReadFull(r, buf[1:9]); err != nil {
			return 0, errors.Wrap(err, "read varint u64")
		}
		return UnpackLEUint64(buf[1:9]), nil
	case 0xfe:
		if _, err := io.ReadFull(r, buf[1:5]); err != nil {
			return 0, errors.Wrap(err, "read varint u32")
		}
		return uint64(UnpackLEUint32(buf[1:5])), nil
	case 0xfd:
		if _, err := io.ReadFull(r, buf[1:3]); err != nil {
			return 0, errors.Wrap(err, "read varint u16")
		}
		return uint64(UnpackLEUint16(buf[1:3])), nil
	default:
		return uint64(buf[0]), nil
	}
}

// WriteVarInt serializes val as a variable length integer.
func WriteVarInt(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= 0xffff:
		_, err := w.Write(append([]byte{0xfd}, PackLEUint16(uint16(val))...))
		return err
	case val <= 0xffffffff:
		_, err := w.Write(append([]byte{0xfe}, PackLEUint32(uint32(val))...))
		return err
	default:
		_, err := w.Write(append([]byte{0xff}, PackLEUint64(val)...))
		return err
	}
}

// VarIntSerializeSize returns the number of bytes it would take to serialize
// val as a variable length integer.
func VarIntSerializeSize(val uint64) int {
	switch {
	case val < 0xfd:
		return 1
	case val <= 0xffff:
		return 3
	case val <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// Cursor reads sequentially through an in-memory buffer. It is the Go
// analogue of the ElectrumX Deserializer's self.binary/self.cursor pair:
// transaction parsing runs millions of times during sync, so it operates
// directly on a byte slice rather than through io.Reader indirection.
type Cursor struct {
	Buf []byte
	Pos int
}

// NewCursor wraps buf for sequential reading starting at start.
func NewCursor(buf []byte, start int) *Cursor {
	return &Cursor{Buf: buf, Pos: start}
}

// ErrTruncated is returned when a read runs past the end of the buffer.
var ErrTruncated = errors.New("truncated transaction data")

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int { return len(c.Buf) - c.Pos }

// ReadByte reads and returns the next byte.
func (c *Cursor) ReadByte() (byte, error) {
	if c.Remaining() < 1 {
		return 0, ErrTruncated
	}
	b := c.Buf[c.Pos]
	c.Pos++
	return b, nil
}

// PeekByte returns the byte at offset off from the cursor without advancing it.
func (c *Cursor) PeekByte(off int) (byte, error) {
	if c.Pos+off >= len(c.Buf) {
		return 0, ErrTruncated
	}
	return c.Buf[c.Pos+off], nil
}

// ReadNBytes reads and returns the next n bytes.
func (c *Cursor) ReadNBytes(n int) ([]byte, error) {
	if c.Remaining() < n {
		return nil, ErrTruncated
	}
	b := c.Buf[c.Pos : c.Pos+n]
	c.Pos += n
	return b, nil
}

// ReadLEUint16 reads a little-endian uint16.
func (c *Cursor) ReadLEUint16() (uint16, error) {
	b, err := c.ReadNBytes(2)
	if err != nil {
		return 0, err
	}
	return UnpackLEUint16(b), nil
}

// ReadLEUint32 reads a little-endian uint32.
func (c *Cursor) ReadLEUint32() (uint32, error) {
	b, err := c.ReadNBytes(4)
	if err != nil {
		return 0, err
	}
	return UnpackLEUint32(b), nil
}

// ReadLEInt32 reads a little-endian int32.
func (c *Cursor) ReadLEInt32() (int32, error) {
	v, err := c.ReadLEUint32()
	return int32(v), err
}

// ReadLEUint64 reads a little-endian uint64.
func (c *Cursor) ReadLEUint64() (uint64, error) {
	b, err := c.ReadNBytes(8)
	if err != nil {
		return 0, err
	}
	return UnpackLEUint64(b), nil
}

// ReadLEInt64 reads a little-endian int64.
func (c *Cursor) ReadLEInt64() (int64, error) {
	v, err := c.ReadLEUint64()
	return int64(v), err
}

// ReadVarInt reads a Bitcoin-style varint from the cursor.
func (c *Cursor) ReadVarInt() (uint64, error) {
	n, err := c.ReadByte()
	if err != nil {
		return 0, err
	}
	switch {
	case n < 253:
		return uint64(n), nil
	case n == 253:
		v, err := c.ReadLEUint16()
		return uint64(v), err
	case n == 254:
		v, err := c.ReadLEUint32()
		return uint64(v), err
	default:
		return c.ReadLEUint64()
	}
}

// ReadVarBytes reads a varint-length-prefixed byte string.
func (c *Cursor) ReadVarBytes() ([]byte, error) {
	n, err := c.ReadVarInt()
	if err != nil {
		return nil, err
	}
	return c.ReadNBytes(int(n))
}

// PackVarInt returns val encoded as a Bitcoin-style varint.
func PackVarInt(val uint64) []byte {
	switch {
	case val < 253:
		return []byte{byte(val)}
	case val <= 0xffff:
		return append([]byte{253}, PackLEUint16(uint16(val))...)
	case val <= 0xffffffff:
		return append([]byte{254}, PackLEUint32(uint32(val))...)
	default:
		return append([]byte{255}, PackLEUint64(val)...)
	}
}

// PackVarBytes length-prefixes b with a varint.
func PackVarBytes(b []byte) []byte {
	return append(PackVarInt(uint64(len(b))), b...)
}
