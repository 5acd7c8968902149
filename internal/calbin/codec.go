package calbin

import "encoding/binary"

// Env is the resolved addressing environment for one loaded binary: the
// combination of definition overrides and mode detection output.
type Env struct {
	CalOffset   uint32
	BaseAddress uint32
	BigEndian   bool
}

func (e Env) order() binary.ByteOrder {
	if e.BigEndian {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// AddressToOffset translates a logical parameter address into a byte offset
// within the image buffer. Every read and write goes through this single
// formula; mode detection only ever adjusts its inputs.
func AddressToOffset(address, calOffset, baseAddress uint32) int64 {
	return int64(address) - int64(baseAddress) - int64(calOffset)
}

// ReadValue decodes one typed value at the given logical address. An offset
// resolving outside the buffer yields 0 rather than an error: callers render
// unknown state instead of failing.
func ReadValue(buf []byte, address uint32, dt DataType, env Env) float64 {
	off := AddressToOffset(address, env.CalOffset, env.BaseAddress)
	size := int64(dt.Size())
	if off < 0 || off+size > int64(len(buf)) {
		return 0
	}
	return typeTable[dt].decode(buf[off:off+size], env.order())
}

// WriteValue encodes one typed raw value at the given logical address.
// Out-of-range writes are silent no-ops, mirroring ReadValue. The return
// value reports whether the buffer was touched.
func WriteValue(buf []byte, address uint32, dt DataType, raw float64, env Env) bool {
	off := AddressToOffset(address, env.CalOffset, env.BaseAddress)
	size := int64(dt.Size())
	if off < 0 || off+size > int64(len(buf)) {
		return false
	}
	typeTable[dt].encode(buf[off:off+size], env.order(), raw)
	return true
}

// ApplyConversion maps a raw stored value to its physical representation.
func ApplyConversion(raw, factor, offset float64) float64 {
	return raw*factor + offset
}

// ReverseConversion maps a physical value back to raw storage units. A zero
// factor is not guarded here; definitions are validated upstream.
func ReverseConversion(physical, factor, offset float64) float64 {
	return (physical - offset) / factor
}
