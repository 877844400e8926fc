package dbtype

import (
	"encoding/binary"
	"fmt"

	"github.com/shopspring/decimal"
)

// Encode writes a self-describing tagged binary encoding of a single Value:
// one Kind byte followed by a kind-specific payload. This replaces the
// reference implementation's language-native pickling.
func Encode(v Value) []byte {
	switch v.kind {
	case KindNull:
		return []byte{byte(KindNull)}
	case KindInt64:
		buf := make([]byte, 9)
		buf[0] = byte(KindInt64)
		binary.LittleEndian.PutUint64(buf[1:], uint64(v.i))
		return buf
	case KindDecimal:
		s := v.d.String()
		buf := make([]byte, 1+2+len(s))
		buf[0] = byte(KindDecimal)
		binary.LittleEndian.PutUint16(buf[1:3], uint16(len(s)))
		copy(buf[3:], s)
		return buf
	case KindText:
		buf := make([]byte, 1+4+len(v.s))
		buf[0] = byte(KindText)
		binary.LittleEndian.PutUint32(buf[1:5], uint32(len(v.s)))
		copy(buf[5:], v.s)
		return buf
	case KindBool:
		b := byte(0)
		if v.b {
			b = 1
		}
		return []byte{byte(KindBool), b}
	default:
		panic(fmt.Sprintf("dbtype: encode: unknown kind %d", v.kind))
	}
}

// Decode reads one Value from the front of b and returns it along with
// the number of bytes consumed.
func Decode(b []byte) (Value, int, error) {
	if len(b) == 0 {
		return Value{}, 0, fmt.Errorf("dbtype: decode: empty input")
	}
	switch Kind(b[0]) {
	case KindNull:
		return Null(), 1, nil
	case KindInt64:
		if len(b) < 9 {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated int64")
		}
		return Int64(int64(binary.LittleEndian.Uint64(b[1:9]))), 9, nil
	case KindDecimal:
		if len(b) < 3 {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated decimal header")
		}
		n := int(binary.LittleEndian.Uint16(b[1:3]))
		if len(b) < 3+n {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated decimal payload")
		}
		d, err := decimal.NewFromString(string(b[3 : 3+n]))
		if err != nil {
			return Value{}, 0, fmt.Errorf("dbtype: decode: invalid decimal: %w", err)
		}
		return Decimal(d), 3 + n, nil
	case KindText:
		if len(b) < 5 {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated text header")
		}
		n := int(binary.LittleEndian.Uint32(b[1:5]))
		if len(b) < 5+n {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated text payload")
		}
		return Text(string(b[5 : 5+n])), 5 + n, nil
	case KindBool:
		if len(b) < 2 {
			return Value{}, 0, fmt.Errorf("dbtype: decode: truncated bool")
		}
		return Bool(b[1] != 0), 2, nil
	default:
		return Value{}, 0, fmt.Errorf("dbtype: decode: unknown kind %d", b[0])
	}
}

// EncodeTuple concatenates the tagged encoding of every value, prefixed by
// a 2-byte column count.
func EncodeTuple(t Tuple) []byte {
	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(len(t)))
	for _, v := range t {
		out = append(out, Encode(v)...)
	}
	return out
}

// DecodeTuple is the inverse of EncodeTuple.
func DecodeTuple(b []byte) (Tuple, error) {
	if len(b) < 2 {
		return nil, fmt.Errorf("dbtype: decode tuple: truncated header")
	}
	n := int(binary.LittleEndian.Uint16(b[:2]))
	b = b[2:]
	t := make(Tuple, 0, n)
	for i := 0; i < n; i++ {
		v, used, err := Decode(b)
		if err != nil {
			return nil, err
		}
		t = append(t, v)
		b = b[used:]
	}
	return t, nil
}
