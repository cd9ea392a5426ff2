package register

import (
	"encoding/binary"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Value is a serialized register constant in the hex form reported by the node
// (for example "0e03313233" for Coll[Byte] "123").
type Value string

// Sigma type codes understood by the codec.
const (
	TypeShort        byte = 0x03
	TypeInt          byte = 0x04
	TypeLong         byte = 0x05
	TypeGroupElement byte = 0x07
	TypeCollByte     byte = 0x0e
)

const groupElementSize = 33

// DecodeString decodes a Coll[Byte] register holding UTF-8 text.
func DecodeString(v Value) (string, bool) {
	data, ok := DecodeBytes(v)
	if !ok || !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}

// DecodeBytes decodes a Coll[Byte] register.
func DecodeBytes(v Value) ([]byte, bool) {
	r, typeCode, ok := open(v)
	if !ok || typeCode != TypeCollByte {
		return nil, false
	}
	n, ok := r.uvarint()
	if !ok || n > uint64(r.remaining()) {
		return nil, false
	}
	data, ok := r.take(int(n))
	if !ok || !r.done() {
		return nil, false
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, true
}

// DecodeInteger decodes a Short, Int or Long register into an int64.
func DecodeInteger(v Value) (int64, bool) {
	r, typeCode, ok := open(v)
	if !ok {
		return 0, false
	}

	u, ok := r.uvarint()
	if !ok || !r.done() {
		return 0, false
	}

	switch typeCode {
	case TypeShort, TypeInt:
		if u > math.MaxUint32 {
			return 0, false
		}
		n := int64(zigzagDecode32(uint32(u)))
		if typeCode == TypeShort && (n < math.MinInt16 || n > math.MaxInt16) {
			return 0, false
		}
		return n, true
	case TypeLong:
		return zigzagDecode64(u), true
	default:
		return 0, false
	}
}

// EncodeString encodes text as a Coll[Byte] register.
func EncodeString(s string) Value {
	return EncodeBytes([]byte(s))
}

// EncodeBytes encodes raw bytes as a Coll[Byte] register.
func EncodeBytes(data []byte) Value {
	buf := make([]byte, 0, len(data)+binary.MaxVarintLen64+1)
	buf = append(buf, TypeCollByte)
	buf = binary.AppendUvarint(buf, uint64(len(data)))
	buf = append(buf, data...)
	return fromBytes(buf)
}

// EncodeInt encodes a 32-bit integer register.
func EncodeInt(n int32) Value {
	buf := []byte{TypeInt}
	buf = binary.AppendUvarint(buf, uint64(zigzagEncode32(n)))
	return fromBytes(buf)
}

// EncodeLong encodes a 64-bit integer register.
func EncodeLong(n int64) Value {
	buf := []byte{TypeLong}
	buf = binary.AppendUvarint(buf, zigzagEncode64(n))
	return fromBytes(buf)
}

// EncodeGroupElement encodes a compressed secp256k1 point.
func EncodeGroupElement(point []byte) (Value, bool) {
	if len(point) != groupElementSize {
		return "", false
	}
	buf := append([]byte{TypeGroupElement}, point...)
	return fromBytes(buf), true
}

func open(v Value) (*reader, byte, bool) {
	s := strings.TrimSpace(string(v))
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	data, err := hexutil.Decode(s)
	if err != nil || len(data) == 0 {
		return nil, 0, false
	}
	r := &reader{buf: data}
	typeCode, _ := r.byte()
	return r, typeCode, true
}

func fromBytes(data []byte) Value {
	return Value(strings.TrimPrefix(hexutil.Encode(data), "0x"))
}

func zigzagEncode32(n int32) uint32 {
	return uint32((n << 1) ^ (n >> 31))
}

func zigzagDecode32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}

func zigzagEncode64(n int64) uint64 {
	return uint64((n << 1) ^ (n >> 63))
}

func zigzagDecode64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

type reader struct {
	buf []byte
	pos int
}

func (r *reader) byte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *reader) uvarint() (uint64, bool) {
	u, n := binary.Uvarint(r.buf[r.pos:])
	if n <= 0 {
		return 0, false
	}
	r.pos += n
	return u, true
}

func (r *reader) take(n int) ([]byte, bool) {
	if n < 0 || n > r.remaining() {
		return nil, false
	}
	out := r.buf[r.pos : r.pos+n]
	r.pos += n
	return out, true
}

func (r *reader) remaining() int {
	return len(r.buf) - r.pos
}

func (r *reader) done() bool {
	return r.pos == len(r.buf)
}
