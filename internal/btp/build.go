package btp

import (
	"encoding/binary"
	"fmt"
)

// Build assembles a container from block definitions, filling in the block
// count, body checksum and expected target size. It exists for the sample
// generators and tests; production patches come from external tooling.
func Build(softCode string, fileSize uint32, blocks []Block) ([]byte, error) {
	if len(softCode) > softCodeFieldLen {
		return nil, fmt.Errorf("btp: soft code %q longer than %d bytes", softCode, softCodeFieldLen)
	}
	bodyLen := 0
	for i, blk := range blocks {
		if len(blk.OriginalData) != len(blk.ModifiedData) {
			return nil, fmt.Errorf("btp: block %d original/modified length mismatch", i)
		}
		bodyLen += blockHeaderLen + 2*len(blk.OriginalData)
	}

	out := make([]byte, HeaderSize+bodyLen)
	copy(out[0:tagFieldLen], MagicTag)
	copy(out[tagFieldLen:tagFieldLen+softCodeFieldLen], softCode)
	binary.LittleEndian.PutUint32(out[28:32], uint32(len(blocks)))
	binary.LittleEndian.PutUint32(out[36:40], fileSize)

	cursor := HeaderSize
	for _, blk := range blocks {
		binary.LittleEndian.PutUint32(out[cursor:cursor+4], blk.FileOffset)
		binary.LittleEndian.PutUint32(out[cursor+4:cursor+8], uint32(len(blk.OriginalData)))
		cursor += blockHeaderLen
		cursor += copy(out[cursor:], blk.OriginalData)
		cursor += copy(out[cursor:], blk.ModifiedData)
	}

	binary.LittleEndian.PutUint32(out[32:36], Crc32Body(out))
	return out, nil
}
