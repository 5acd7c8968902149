// Package btp reads and applies BinToolz Patch containers: pre-packaged
// binary diffs with a CRC32-protected block list that can be applied to and
// reverted from a calibration image in place.
package btp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the fixed container header length.
	HeaderSize = 100
	// MagicTag is the literal the version field must start with.
	MagicTag = "BinToolz Patch"

	tagFieldLen      = 20
	softCodeFieldLen = 8
	blockHeaderLen   = 8
)

var (
	ErrBadMagic  = errors.New("btp: version tag mismatch")
	ErrTruncated = errors.New("btp: container truncated")
)

// Header is the fixed 100-byte container prefix.
type Header struct {
	Version        string
	SoftCode       string
	BlockCount     uint32
	StoredChecksum uint32
	FileSize       uint32
}

// Block is one contiguous patch region. OriginalData and ModifiedData are
// always the same length.
type Block struct {
	FileOffset   uint32
	Length       uint32
	OriginalData []byte
	ModifiedData []byte
}

// PatchStatus classifies a target binary against a whole patch.
type PatchStatus int

const (
	// StatusReady means every patched byte still holds its original value.
	StatusReady PatchStatus = iota
	// StatusApplied means every patched byte holds its modified value.
	StatusApplied
	// StatusIncompatible means the target matches neither side in full; a
	// partially applied patch is always incompatible.
	StatusIncompatible
)

func (s PatchStatus) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusApplied:
		return "applied"
	case StatusIncompatible:
		return "incompatible"
	}
	return fmt.Sprintf("PatchStatus(%d)", int(s))
}

// Patch is a fully parsed container. CrcValid is advisory: a bad checksum
// never blocks inspection or, at the caller's discretion, application.
type Patch struct {
	Header   Header
	Blocks   []Block
	CrcValid bool
}

// Parse decodes a BTP container. Structural problems (short buffer, bad
// magic, block overrun) are hard failures and nothing partially constructed
// is returned. A checksum mismatch only clears CrcValid.
func Parse(data []byte) (*Patch, error) {
	if len(data) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d header bytes", ErrTruncated, len(data), HeaderSize)
	}
	version := trimField(data[0:tagFieldLen])
	if !strings.HasPrefix(version, MagicTag) {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, version)
	}
	hdr := Header{
		Version:        version,
		SoftCode:       trimField(data[tagFieldLen : tagFieldLen+softCodeFieldLen]),
		BlockCount:     binary.LittleEndian.Uint32(data[28:32]),
		StoredChecksum: binary.LittleEndian.Uint32(data[32:36]),
		FileSize:       binary.LittleEndian.Uint32(data[36:40]),
	}

	blocks := make([]Block, 0, hdr.BlockCount)
	cursor := HeaderSize
	for i := uint32(0); i < hdr.BlockCount; i++ {
		if cursor+blockHeaderLen > len(data) {
			return nil, fmt.Errorf("%w: block %d header at %d", ErrTruncated, i, cursor)
		}
		offset := binary.LittleEndian.Uint32(data[cursor : cursor+4])
		length := binary.LittleEndian.Uint32(data[cursor+4 : cursor+8])
		cursor += blockHeaderLen
		end := cursor + 2*int(length)
		if end < cursor || end > len(data) {
			return nil, fmt.Errorf("%w: block %d data (%d bytes) at %d", ErrTruncated, i, length, cursor)
		}
		original := make([]byte, length)
		modified := make([]byte, length)
		copy(original, data[cursor:cursor+int(length)])
		copy(modified, data[cursor+int(length):end])
		cursor = end
		blocks = append(blocks, Block{
			FileOffset:   offset,
			Length:       length,
			OriginalData: original,
			ModifiedData: modified,
		})
	}

	return &Patch{
		Header:   hdr,
		Blocks:   blocks,
		CrcValid: VerifyCrc32(data, hdr.StoredChecksum),
	}, nil
}

func trimField(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

// Check classifies target against the whole block set. Both running flags
// span every block: one block matching original while another matches
// modified is incompatible, not partially applied.
func (p *Patch) Check(target []byte) PatchStatus {
	allOriginal, allModified := true, true
	for _, blk := range p.Blocks {
		base := int64(blk.FileOffset)
		for d := 0; d < int(blk.Length); d++ {
			off := base + int64(d)
			if off < 0 || off >= int64(len(target)) {
				return StatusIncompatible
			}
			b := target[off]
			if b != blk.OriginalData[d] {
				allOriginal = false
			}
			if b != blk.ModifiedData[d] {
				allModified = false
			}
			if !allOriginal && !allModified {
				return StatusIncompatible
			}
		}
	}
	if allModified {
		return StatusApplied
	}
	if allOriginal {
		return StatusReady
	}
	return StatusIncompatible
}

// Apply copies every block's modified bytes into target. There is no state
// guard: callers gate on Check returning StatusReady, otherwise the target
// is silently corrupted. That contract is the engine's, not a bug.
func (p *Patch) Apply(target []byte) {
	for _, blk := range p.Blocks {
		writeBlock(target, blk.FileOffset, blk.ModifiedData)
	}
}

// Remove copies every block's original bytes into target, reverting an
// applied patch. Same caller contract as Apply: gate on StatusApplied.
func (p *Patch) Remove(target []byte) {
	for _, blk := range p.Blocks {
		writeBlock(target, blk.FileOffset, blk.OriginalData)
	}
}

func writeBlock(target []byte, offset uint32, data []byte) {
	off := int64(offset)
	if off >= int64(len(target)) {
		return
	}
	copy(target[off:], data)
}

// MatchesTargetSize reports whether the target length equals the size the
// patch was built for. Advisory, like CrcValid.
func (p *Patch) MatchesTargetSize(target []byte) bool {
	return uint32(len(target)) == p.Header.FileSize
}
