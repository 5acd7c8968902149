package calbin

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType identifies one of the closed set of storage types used by
// calibration parameters. Size, signedness and codec behavior are fixed
// properties and never vary at runtime.
type DataType int

const (
	UByte DataType = iota
	SByte
	UWord
	SWord
	ULong
	SLong
	Float32
)

type typeProps struct {
	name   string
	size   int
	signed bool
	float  bool
	decode func(b []byte, order binary.ByteOrder) float64
	encode func(b []byte, order binary.ByteOrder, raw float64)
}

var typeTable = [...]typeProps{
	UByte: {
		name: "UBYTE", size: 1,
		decode: func(b []byte, _ binary.ByteOrder) float64 { return float64(b[0]) },
		encode: func(b []byte, _ binary.ByteOrder, raw float64) {
			b[0] = byte(clampInt(raw, 0, math.MaxUint8))
		},
	},
	SByte: {
		name: "SBYTE", size: 1, signed: true,
		decode: func(b []byte, _ binary.ByteOrder) float64 { return float64(int8(b[0])) },
		encode: func(b []byte, _ binary.ByteOrder, raw float64) {
			b[0] = byte(int8(clampInt(raw, math.MinInt8, math.MaxInt8)))
		},
	},
	UWord: {
		name: "UWORD", size: 2,
		decode: func(b []byte, order binary.ByteOrder) float64 { return float64(order.Uint16(b)) },
		encode: func(b []byte, order binary.ByteOrder, raw float64) {
			order.PutUint16(b, uint16(clampInt(raw, 0, math.MaxUint16)))
		},
	},
	SWord: {
		name: "SWORD", size: 2, signed: true,
		decode: func(b []byte, order binary.ByteOrder) float64 { return float64(int16(order.Uint16(b))) },
		encode: func(b []byte, order binary.ByteOrder, raw float64) {
			order.PutUint16(b, uint16(int16(clampInt(raw, math.MinInt16, math.MaxInt16))))
		},
	},
	ULong: {
		name: "ULONG", size: 4,
		decode: func(b []byte, order binary.ByteOrder) float64 { return float64(order.Uint32(b)) },
		encode: func(b []byte, order binary.ByteOrder, raw float64) {
			// Unsigned 32-bit truncation, not clamping: negative and
			// oversized values wrap the way a >>>0 conversion does.
			order.PutUint32(b, uint32(int64(math.Round(raw))))
		},
	},
	SLong: {
		name: "SLONG", size: 4, signed: true,
		decode: func(b []byte, order binary.ByteOrder) float64 { return float64(int32(order.Uint32(b))) },
		encode: func(b []byte, order binary.ByteOrder, raw float64) {
			// Stored as-is with 32-bit wraparound, no clamping.
			order.PutUint32(b, uint32(int32(int64(math.Round(raw)))))
		},
	},
	Float32: {
		name: "FLOAT32", size: 4, float: true,
		decode: func(b []byte, order binary.ByteOrder) float64 {
			return float64(math.Float32frombits(order.Uint32(b)))
		},
		encode: func(b []byte, order binary.ByteOrder, raw float64) {
			order.PutUint32(b, math.Float32bits(float32(raw)))
		},
	},
}

func clampInt(raw, min, max float64) int64 {
	v := math.Round(raw)
	if v < min {
		v = min
	}
	if v > max {
		v = max
	}
	return int64(v)
}

// Size returns the storage width in bytes.
func (t DataType) Size() int { return typeTable[t].size }

// Signed reports whether the type stores signed integers.
func (t DataType) Signed() bool { return typeTable[t].signed }

// Float reports whether the type stores IEEE-754 values.
func (t DataType) Float() bool { return typeTable[t].float }

func (t DataType) String() string { return typeTable[t].name }

// ParseDataType maps a definition's data type name to its DataType.
func ParseDataType(name string) (DataType, error) {
	for i := range typeTable {
		if typeTable[i].name == name {
			return DataType(i), nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}
