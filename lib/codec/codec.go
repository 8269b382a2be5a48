package codec

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Encoder builds a canonical protobuf wire encoding by hand
// Fields are written in the order the caller appends them and zero values are always written,
// so two encoders given the same calls produce byte identical output
// The output is used as a hash preimage and never needs a schema to decode
type Encoder struct {
	buf []byte
}

// NewEncoder() returns an empty encoder
func NewEncoder() *Encoder { return &Encoder{} }

// Uint64() appends a varint field
func (e *Encoder) Uint64(field protowire.Number, v uint64) *Encoder {
	e.buf = protowire.AppendTag(e.buf, field, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, v)
	return e
}

// Bool() appends a varint field holding 0 or 1
func (e *Encoder) Bool(field protowire.Number, v bool) *Encoder {
	return e.Uint64(field, protowire.EncodeBool(v))
}

// Bytes() appends a length delimited field
func (e *Encoder) Bytes(field protowire.Number, v []byte) *Encoder {
	e.buf = protowire.AppendTag(e.buf, field, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, v)
	return e
}

// Message() appends a nested message as a length delimited field
func (e *Encoder) Message(field protowire.Number, nested *Encoder) *Encoder {
	return e.Bytes(field, nested.Encode())
}

// Encode() returns the accumulated bytes
func (e *Encoder) Encode() []byte { return e.buf }

// Field is a decoded (number, value) pair
type Field struct {
	Number protowire.Number
	Varint uint64
	Bytes  []byte
}

// Decode() splits a canonical encoding back into its fields
func Decode(bz []byte) (fields []Field, err error) {
	for len(bz) > 0 {
		num, typ, n := protowire.ConsumeTag(bz)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		bz = bz[n:]
		f := Field{Number: num}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(bz)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.Varint, bz = v, bz[m:]
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(bz)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			f.Bytes, bz = v, bz[m:]
		default:
			m := protowire.ConsumeFieldValue(num, typ, bz)
			if m < 0 {
				return nil, protowire.ParseError(m)
			}
			bz = bz[m:]
		}
		fields = append(fields, f)
	}
	return
}
