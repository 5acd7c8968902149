package calbin

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestParseDataType(t *testing.T) {
	tests := []struct {
		name    string
		want    DataType
		wantErr bool
	}{
		{name: "UBYTE", want: UByte},
		{name: "SBYTE", want: SByte},
		{name: "UWORD", want: UWord},
		{name: "SWORD", want: SWord},
		{name: "ULONG", want: ULong},
		{name: "SLONG", want: SLong},
		{name: "FLOAT32", want: Float32},
		{name: "ubyte", wantErr: true},
		{name: "DOUBLE", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDataType(tc.name)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q, got %v", tc.name, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDataType(%q) returned error: %v", tc.name, err)
			}
			if got != tc.want {
				t.Fatalf("ParseDataType(%q) = %v, want %v", tc.name, got, tc.want)
			}
		})
	}
}

func TestEncodeClamping(t *testing.T) {
	tests := []struct {
		name string
		dt   DataType
		in   float64
		want float64
	}{
		{name: "ubyte over", dt: UByte, in: 300, want: 255},
		{name: "ubyte under", dt: UByte, in: -5, want: 0},
		{name: "ubyte rounds", dt: UByte, in: 99.6, want: 100},
		{name: "sbyte over", dt: SByte, in: 200, want: 127},
		{name: "sbyte under", dt: SByte, in: -200, want: -128},
		{name: "uword over", dt: UWord, in: 70000, want: 65535},
		{name: "uword under", dt: UWord, in: -1, want: 0},
		{name: "sword over", dt: SWord, in: 40000, want: 32767},
		{name: "sword under", dt: SWord, in: -40000, want: -32768},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, tc.dt.Size())
			typeTable[tc.dt].encode(buf, binary.LittleEndian, tc.in)
			got := typeTable[tc.dt].decode(buf, binary.LittleEndian)
			if got != tc.want {
				t.Fatalf("%v encode(%g) decodes to %g, want %g", tc.dt, tc.in, got, tc.want)
			}
		})
	}
}

// ULONG does not clamp: values convert through a 64-bit integer and keep
// only the low 32 bits, so negatives wrap to the top of the range.
func TestULongTruncation(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: 123456789, want: 123456789},
		{name: "max", in: math.MaxUint32, want: math.MaxUint32},
		{name: "negative wraps", in: -1, want: math.MaxUint32},
		{name: "over wraps", in: math.MaxUint32 + 2, want: 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 4)
			typeTable[ULong].encode(buf, binary.LittleEndian, tc.in)
			got := typeTable[ULong].decode(buf, binary.LittleEndian)
			if got != tc.want {
				t.Fatalf("ULONG encode(%g) decodes to %g, want %g", tc.in, got, tc.want)
			}
		})
	}
}

func TestSLongWraparound(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{name: "in range", in: -123456, want: -123456},
		{name: "max", in: math.MaxInt32, want: math.MaxInt32},
		{name: "min", in: math.MinInt32, want: math.MinInt32},
		{name: "over wraps negative", in: math.MaxInt32 + 1, want: math.MinInt32},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 4)
			typeTable[SLong].encode(buf, binary.LittleEndian, tc.in)
			got := typeTable[SLong].decode(buf, binary.LittleEndian)
			if got != tc.want {
				t.Fatalf("SLONG encode(%g) decodes to %g, want %g", tc.in, got, tc.want)
			}
		})
	}
}

func TestRoundTripBothOrders(t *testing.T) {
	values := map[DataType]float64{
		UByte:   200,
		SByte:   -100,
		UWord:   51234,
		SWord:   -20000,
		ULong:   4000000000,
		SLong:   -2000000000,
		Float32: 0.25,
	}
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for dt, v := range values {
			buf := make([]byte, dt.Size())
			typeTable[dt].encode(buf, order, v)
			got := typeTable[dt].decode(buf, order)
			if got != v {
				t.Fatalf("%v/%v round trip = %g, want %g", dt, order, got, v)
			}
		}
	}
}

func TestEndiannessMatters(t *testing.T) {
	buf := make([]byte, 2)
	typeTable[UWord].encode(buf, binary.BigEndian, 0x1234)
	if buf[0] != 0x12 || buf[1] != 0x34 {
		t.Fatalf("big endian UWORD bytes = % X, want 12 34", buf)
	}
	if got := typeTable[UWord].decode(buf, binary.LittleEndian); got != 0x3412 {
		t.Fatalf("little endian decode of big endian bytes = %g, want %d", got, 0x3412)
	}
}

func TestTypeProps(t *testing.T) {
	tests := []struct {
		dt     DataType
		size   int
		signed bool
		float  bool
		name   string
	}{
		{UByte, 1, false, false, "UBYTE"},
		{SByte, 1, true, false, "SBYTE"},
		{UWord, 2, false, false, "UWORD"},
		{SWord, 2, true, false, "SWORD"},
		{ULong, 4, false, false, "ULONG"},
		{SLong, 4, true, false, "SLONG"},
		{Float32, 4, false, true, "FLOAT32"},
	}
	for _, tc := range tests {
		if got := tc.dt.Size(); got != tc.size {
			t.Fatalf("%s Size = %d, want %d", tc.name, got, tc.size)
		}
		if got := tc.dt.Signed(); got != tc.signed {
			t.Fatalf("%s Signed = %v, want %v", tc.name, got, tc.signed)
		}
		if got := tc.dt.Float(); got != tc.float {
			t.Fatalf("%s Float = %v, want %v", tc.name, got, tc.float)
		}
		if got := tc.dt.String(); got != tc.name {
			t.Fatalf("String = %q, want %q", got, tc.name)
		}
	}
}
