package xdr

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrShortBuffer is returned when a decode runs past the end of the input.
var ErrShortBuffer = errors.New("xdr: short buffer")

// pad returns the number of zero bytes needed to align n to 4
func pad(n int) int {
	return (4 - n%4) % 4
}

// --------------------------------------------------------------------------
// Encoder
// --------------------------------------------------------------------------

// Encoder serializes values into the XDR wire representation (RFC 4506).
// All items are 4-byte aligned, integers are big endian.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder creates an empty encoder
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Uint32 appends an unsigned 32-bit integer
func (e *Encoder) Uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// Int32 appends a signed 32-bit integer
func (e *Encoder) Int32(v int32) {
	e.Uint32(uint32(v))
}

// Bool appends a boolean as a 4-byte 0/1 word
func (e *Encoder) Bool(v bool) {
	if v {
		e.Uint32(1)
	} else {
		e.Uint32(0)
	}
}

// Opaque appends variable-length opaque data: length word, bytes, zero
// padding up to the next 4-byte boundary
func (e *Encoder) Opaque(b []byte) {
	e.Uint32(uint32(len(b)))
	e.buf.Write(b)
	for i := 0; i < pad(len(b)); i++ {
		e.buf.WriteByte(0)
	}
}

// String appends a string with the same layout as variable-length opaque data
func (e *Encoder) String(s string) {
	e.Opaque([]byte(s))
}

// Raw appends bytes verbatim, without length word or padding. Used to splice
// pre-encoded payloads (e.g. packed call arguments) behind a header.
func (e *Encoder) Raw(b []byte) {
	e.buf.Write(b)
}

// Len returns the number of bytes encoded so far
func (e *Encoder) Len() int {
	return e.buf.Len()
}

// Bytes returns the encoded buffer
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// --------------------------------------------------------------------------
// Decoder
// --------------------------------------------------------------------------

// Decoder reads XDR encoded values from a byte slice. It keeps a cursor so
// callers can consume a structured prefix and then take the unread rest
// via Remaining.
type Decoder struct {
	buf []byte
	off int
}

// NewDecoder creates a decoder reading from b
func NewDecoder(b []byte) *Decoder {
	return &Decoder{buf: b}
}

// Uint32 reads an unsigned 32-bit integer
func (d *Decoder) Uint32() (uint32, error) {
	if d.off+4 > len(d.buf) {
		return 0, fmt.Errorf("%w: need 4 bytes at offset %d, have %d", ErrShortBuffer, d.off, len(d.buf)-d.off)
	}
	v := binary.BigEndian.Uint32(d.buf[d.off:])
	d.off += 4
	return v, nil
}

// Int32 reads a signed 32-bit integer
func (d *Decoder) Int32() (int32, error) {
	v, err := d.Uint32()
	return int32(v), err
}

// Bool reads a boolean word
func (d *Decoder) Bool() (bool, error) {
	v, err := d.Uint32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Opaque reads variable-length opaque data and skips its padding.
// The returned slice aliases the decoder's buffer.
func (d *Decoder) Opaque() ([]byte, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	total := int(n) + pad(int(n))
	if d.off+total > len(d.buf) {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrShortBuffer, total, d.off, len(d.buf)-d.off)
	}
	b := d.buf[d.off : d.off+int(n)]
	d.off += total
	return b, nil
}

// String reads a string with the same layout as variable-length opaque data
func (d *Decoder) String() (string, error) {
	b, err := d.Opaque()
	return string(b), err
}

// Remaining returns the unread tail of the buffer without consuming it
func (d *Decoder) Remaining() []byte {
	return d.buf[d.off:]
}
