package calbin

import (
	"bytes"
	"regexp"
	"strings"

	"example.com/calbin/internal/caldef"
)

// BinaryMode classifies how a loaded image is addressed.
type BinaryMode string

const (
	// ModeFull is a full firmware dump whose addressing already subsumes
	// the CAL offset.
	ModeFull BinaryMode = "full"
	// ModeCal is a CAL-block-only dump (also the fallback when detection
	// fails, and the mode of transmission-unit images).
	ModeCal BinaryMode = "cal"
)

// DetectResult reports the outcome of probing an image against a
// definition's verification descriptor.
type DetectResult struct {
	Mode      BinaryMode
	CalOffset uint32
	Valid     bool
	// Found carries whatever marker bytes the probe read, for diagnostics
	// only. Never used for addressing decisions.
	Found string
}

// tcuMarkerPattern matches the 4-character transmission-unit identifiers
// used by DSG/TCU definitions.
var tcuMarkerPattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

// tcuSearchWindows are the fixed regions a transmission marker may appear
// in, given as [start, length).
var tcuSearchWindows = [][2]int{
	{0x0, 0x1000},
	{0x4FF00, 0x200},
	{0x30000, 0x1000},
}

const markerProbeOffset = 8

// DetectBinaryMode classifies buf against the definition's verification
// descriptor and returns the effective CAL offset for subsequent reads.
// Detection never fails hard: an unrecognized image falls back to CAL-only
// addressing with Valid=false.
func DetectBinaryMode(buf []byte, verify *caldef.Verification) DetectResult {
	if verify == nil {
		return DetectResult{Mode: ModeCal, Valid: true}
	}
	res := DetectResult{Mode: ModeCal, CalOffset: verify.CalOffset}
	expected := verify.Expected
	if expected == "" {
		res.Valid = true
		return res
	}

	if tcuMarkerPattern.MatchString(expected) {
		res.Valid = searchTCUMarker(buf, expected)
		if res.Valid {
			res.Found = expected
		}
		return res
	}

	n := verify.Length
	if n <= 0 {
		n = len(expected)
	}
	probe := probeAt(buf, markerProbeOffset, n)
	if probe == expected {
		res.Valid = true
		res.Found = probe
		return res
	}
	full := probeAt(buf, int(verify.CalOffset)+markerProbeOffset, n)
	if full == expected {
		return DetectResult{Mode: ModeFull, CalOffset: 0, Valid: true, Found: full}
	}
	res.Found = printable(probe)
	return res
}

// searchTCUMarker scans the fixed candidate windows for the identifier next
// to a space or underscore delimiter.
func searchTCUMarker(buf []byte, marker string) bool {
	needle := []byte(marker)
	for _, win := range tcuSearchWindows {
		start, length := win[0], win[1]
		if start >= len(buf) {
			continue
		}
		end := start + length
		if end > len(buf) {
			end = len(buf)
		}
		window := buf[start:end]
		for from := 0; ; {
			idx := bytes.Index(window[from:], needle)
			if idx < 0 {
				break
			}
			idx += from
			if hasDelimiter(window, idx, len(needle)) {
				return true
			}
			from = idx + 1
		}
	}
	return false
}

func hasDelimiter(window []byte, idx, n int) bool {
	if idx > 0 && isDelim(window[idx-1]) {
		return true
	}
	if idx+n < len(window) && isDelim(window[idx+n]) {
		return true
	}
	return false
}

func isDelim(b byte) bool { return b == ' ' || b == '_' }

func probeAt(buf []byte, offset, n int) string {
	if offset < 0 || n <= 0 || offset+n > len(buf) {
		return ""
	}
	return string(buf[offset : offset+n])
}

func printable(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= 0x20 && r < 0x7F {
			b.WriteRune(r)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// ResolveEnv combines a definition's global overrides with a detection
// result into the addressing environment used by all reads and writes.
func ResolveEnv(def *caldef.Definition, det DetectResult) Env {
	env := Env{BigEndian: def.BigEndian, BaseAddress: def.BaseAddress}
	if def.Verification != nil {
		env.CalOffset = det.CalOffset
	} else {
		env.CalOffset = def.Offset
	}
	return env
}
