package xdr

import (
	"errors"
	"fmt"
)

// ErrBadValue is returned when a codec is asked to pack a value of the
// wrong dynamic type.
var ErrBadValue = errors.New("xdr: value does not match codec type")

// Codec is a paired serializer/deserializer for one data type. Procedure
// tables reference codecs for each argument and for the return value; the
// engine itself never interprets the values it moves around.
//
// A stub layer produced by an interface compiler supplies composite codecs
// (structs, unions, arrays) by implementing this interface. The primitive
// codecs below cover the types used by the RPC header and the tests.
type Codec interface {
	// Name returns a short type name used in error messages
	Name() string
	// Pack serializes v into e. Fails with ErrBadValue if v has the
	// wrong dynamic type.
	Pack(e *Encoder, v any) error
	// Unpack deserializes one value from d
	Unpack(d *Decoder) (any, error)
}

func badValue(c Codec, v any) error {
	return fmt.Errorf("%w: %s codec got %T", ErrBadValue, c.Name(), v)
}

// Stock primitive codecs
var (
	Uint32C Codec = uint32Codec{}
	Int32C  Codec = int32Codec{}
	BoolC   Codec = boolCodec{}
	StringC Codec = stringCodec{}
	OpaqueC Codec = opaqueCodec{}
	VoidC   Codec = voidCodec{}
)

type uint32Codec struct{}

func (uint32Codec) Name() string { return "uint32" }

func (c uint32Codec) Pack(e *Encoder, v any) error {
	u, ok := v.(uint32)
	if !ok {
		return badValue(c, v)
	}
	e.Uint32(u)
	return nil
}

func (uint32Codec) Unpack(d *Decoder) (any, error) {
	return d.Uint32()
}

type int32Codec struct{}

func (int32Codec) Name() string { return "int32" }

func (c int32Codec) Pack(e *Encoder, v any) error {
	i, ok := v.(int32)
	if !ok {
		return badValue(c, v)
	}
	e.Int32(i)
	return nil
}

func (int32Codec) Unpack(d *Decoder) (any, error) {
	return d.Int32()
}

type boolCodec struct{}

func (boolCodec) Name() string { return "bool" }

func (c boolCodec) Pack(e *Encoder, v any) error {
	b, ok := v.(bool)
	if !ok {
		return badValue(c, v)
	}
	e.Bool(b)
	return nil
}

func (boolCodec) Unpack(d *Decoder) (any, error) {
	return d.Bool()
}

type stringCodec struct{}

func (stringCodec) Name() string { return "string" }

func (c stringCodec) Pack(e *Encoder, v any) error {
	s, ok := v.(string)
	if !ok {
		return badValue(c, v)
	}
	e.String(s)
	return nil
}

func (stringCodec) Unpack(d *Decoder) (any, error) {
	return d.String()
}

type opaqueCodec struct{}

func (opaqueCodec) Name() string { return "opaque" }

func (c opaqueCodec) Pack(e *Encoder, v any) error {
	b, ok := v.([]byte)
	if !ok {
		return badValue(c, v)
	}
	e.Opaque(b)
	return nil
}

func (opaqueCodec) Unpack(d *Decoder) (any, error) {
	return d.Opaque()
}

// voidCodec encodes nothing. It accepts nil on pack and yields nil on unpack.
type voidCodec struct{}

func (voidCodec) Name() string { return "void" }

func (c voidCodec) Pack(e *Encoder, v any) error {
	if v != nil {
		return badValue(c, v)
	}
	return nil
}

func (voidCodec) Unpack(d *Decoder) (any, error) {
	return nil, nil
}
