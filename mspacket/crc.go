package mspacket

import (
	"encoding/binary"
	"hash/crc32"
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// checksum computes the packet CRC-32C: the header with its CRC field
// treated as zero, followed by the payload. The packet slice is not
// modified.
func checksum(packet []byte) uint32 {
	var zero [4]byte
	s := crc32.Checksum(packet[:crcOff], castagnoli)
	s = crc32.Update(s, castagnoli, zero[:])
	return crc32.Update(s, castagnoli, packet[crcOff+4:])
}

// VerifyCRC reports whether a candidate packet large enough to hold a
// header carries a matching checksum.
func VerifyCRC(packet []byte) bool {
	if len(packet) < HeaderSize {
		return false
	}
	return checksum(packet) == binary.LittleEndian.Uint32(packet[crcOff:])
}
