package calbin

import (
	"math"
	"testing"
)

func TestAddressToOffset(t *testing.T) {
	tests := []struct {
		name        string
		address     uint32
		calOffset   uint32
		baseAddress uint32
		want        int64
	}{
		{name: "zero everything", want: 0},
		{name: "plain base", address: 0x801000, baseAddress: 0x800000, want: 0x1000},
		{name: "base plus cal", address: 0x812000, baseAddress: 0x800000, calOffset: 0x10000, want: 0x2000},
		{name: "before window", address: 0x800100, baseAddress: 0x800000, calOffset: 0x10000, want: -0xFF00},
		{name: "address below base", address: 0x100, baseAddress: 0x800000, want: -0x7FFF00},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AddressToOffset(tc.address, tc.calOffset, tc.baseAddress)
			if got != tc.want {
				t.Fatalf("offset = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestReadWriteValue(t *testing.T) {
	env := Env{BaseAddress: 0x800000}
	buf := make([]byte, 0x100)

	if !WriteValue(buf, 0x800010, UWord, 830, env) {
		t.Fatal("in-range write reported no-op")
	}
	if got := ReadValue(buf, 0x800010, UWord, env); got != 830 {
		t.Fatalf("read back %g, want 830", got)
	}
	if buf[0x10] != 0x3E || buf[0x11] != 0x03 {
		t.Fatalf("little endian layout = % X, want 3E 03", buf[0x10:0x12])
	}

	env.BigEndian = true
	WriteValue(buf, 0x800010, UWord, 830, env)
	if buf[0x10] != 0x03 || buf[0x11] != 0x3E {
		t.Fatalf("big endian layout = % X, want 03 3E", buf[0x10:0x12])
	}
}

func TestReadValueOutOfRange(t *testing.T) {
	env := Env{BaseAddress: 0x800000}
	buf := make([]byte, 16)
	buf[0] = 0xFF

	tests := []struct {
		name    string
		address uint32
		dt      DataType
	}{
		{name: "below buffer", address: 0x7FFFFF, dt: UByte},
		{name: "past end", address: 0x800010, dt: UByte},
		{name: "straddles end", address: 0x80000E, dt: ULong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReadValue(buf, tc.address, tc.dt, env); got != 0 {
				t.Fatalf("out-of-range read = %g, want 0", got)
			}
			if WriteValue(buf, tc.address, tc.dt, 0xAA, env) {
				t.Fatal("out-of-range write reported success")
			}
		})
	}
	// The no-op writes must not have touched adjacent bytes.
	if buf[0] != 0xFF || buf[15] != 0 {
		t.Fatalf("buffer modified by out-of-range writes: % X", buf)
	}
}

func TestConversions(t *testing.T) {
	tests := []struct {
		name           string
		raw            float64
		factor, offset float64
		physical       float64
	}{
		{name: "identity", raw: 42, factor: 1, offset: 0, physical: 42},
		{name: "rpm quarter steps", raw: 3320, factor: 0.25, offset: 0, physical: 830},
		{name: "negative offset", raw: 400, factor: 1.5, offset: -500, physical: 100},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ApplyConversion(tc.raw, tc.factor, tc.offset); got != tc.physical {
				t.Fatalf("ApplyConversion = %g, want %g", got, tc.physical)
			}
			if got := ReverseConversion(tc.physical, tc.factor, tc.offset); math.Abs(got-tc.raw) > 1e-9 {
				t.Fatalf("ReverseConversion = %g, want %g", got, tc.raw)
			}
		})
	}
}
