// Package mspacket defines the on-wire packet format exchanged with the
// video codec layer: a fixed-size little-endian header followed by one
// erasure-coded symbol, protected end to end by a CRC-32C checksum.
package mspacket

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// MagicID identifies a v2 packet. Any blob pulled out of a video frame
// that does not start with this value is not one of ours.
const MagicID uint32 = 0x5346_5459

// VersionV2 is the only header version this codec reads or writes.
const VersionV2 byte = 2

// Flag bits carried in the header flags byte.
const (
	// FlagRepairSymbol is set when the payload is a repair symbol,
	// i.e. block_id > num_source.
	FlagRepairSymbol byte = 1 << 0

	// FlagLastChunk is set on every packet of the final chunk of a file.
	FlagLastChunk byte = 1 << 1

	// FlagEncrypted is set on every packet of a session that used
	// per-chunk encryption.
	FlagEncrypted byte = 1 << 2
)

// v2 header field offsets. All multi-byte fields are little-endian.
const (
	magicOff        = 0
	versionOff      = 4
	flagsOff        = 5
	fileIDOff       = 6
	chunkIndexOff   = 22
	chunkSizeOff    = 26
	originalSizeOff = 30
	symbolSizeOff   = 34
	numSourceOff    = 36
	blockIDOff      = 40
	payloadLenOff   = 44
	crcOff          = 46

	// HeaderSize is the fixed size of the v2 packet header.
	HeaderSize = 50
)

// FileID is the 16-byte identifier bound to one encoded file. It appears
// in every packet header, salts key derivation, and is part of the AEAD
// associated data.
type FileID [16]byte

var (
	// ErrShortPacket is returned for blobs too small to hold a header.
	ErrShortPacket = errors.New("packet shorter than header")

	// ErrBadMagic is returned when the magic field does not match.
	ErrBadMagic = errors.New("bad packet magic")

	// ErrBadVersion is returned for an unsupported header version.
	ErrBadVersion = errors.New("unsupported packet version")

	// ErrChecksum is returned when the CRC over header and payload
	// does not match the stored checksum.
	ErrChecksum = errors.New("packet checksum mismatch")

	// ErrMalformed is returned when the header fields are internally
	// inconsistent despite a valid checksum.
	ErrMalformed = errors.New("malformed packet header")
)

// Header holds the decoded fields of a v2 packet header.
// The magic, version, and CRC are implicit: they are produced on marshal
// and verified on parse.
type Header struct {
	Flags        byte
	FileID       FileID
	ChunkIndex   uint32
	ChunkSize    uint32
	OriginalSize uint32
	SymbolSize   uint16
	NumSource    uint32
	BlockID      uint32
	PayloadLen   uint16
}

// IsRepair reports whether the repair-symbol flag is set.
func (h Header) IsRepair() bool { return h.Flags&FlagRepairSymbol != 0 }

// IsLastChunk reports whether the last-chunk flag is set.
func (h Header) IsLastChunk() bool { return h.Flags&FlagLastChunk != 0 }

// IsEncrypted reports whether the encrypted flag is set.
func (h Header) IsEncrypted() bool { return h.Flags&FlagEncrypted != 0 }

// Build serializes the header followed by the payload into a single
// packet, computing the CRC over the header (with the CRC field zeroed)
// and the payload. The payload length must already be set in h.
func Build(h Header, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))

	binary.LittleEndian.PutUint32(out[magicOff:], MagicID)
	out[versionOff] = VersionV2
	out[flagsOff] = h.Flags
	copy(out[fileIDOff:], h.FileID[:])
	binary.LittleEndian.PutUint32(out[chunkIndexOff:], h.ChunkIndex)
	binary.LittleEndian.PutUint32(out[chunkSizeOff:], h.ChunkSize)
	binary.LittleEndian.PutUint32(out[originalSizeOff:], h.OriginalSize)
	binary.LittleEndian.PutUint16(out[symbolSizeOff:], h.SymbolSize)
	binary.LittleEndian.PutUint32(out[numSourceOff:], h.NumSource)
	binary.LittleEndian.PutUint32(out[blockIDOff:], h.BlockID)
	binary.LittleEndian.PutUint16(out[payloadLenOff:], h.PayloadLen)
	// CRC field is still zero here; the checksum is computed over
	// exactly that state.
	copy(out[HeaderSize:], payload)

	crc := checksum(out)
	binary.LittleEndian.PutUint32(out[crcOff:], crc)

	return out
}

// Parse validates a candidate packet and splits it into header and
// payload. The returned payload aliases raw. Verification order: length,
// magic, version, CRC, then field self-consistency.
func Parse(raw []byte) (Header, []byte, error) {
	if len(raw) < HeaderSize {
		return Header{}, nil, ErrShortPacket
	}
	if binary.LittleEndian.Uint32(raw[magicOff:]) != MagicID {
		return Header{}, nil, ErrBadMagic
	}
	if raw[versionOff] != VersionV2 {
		return Header{}, nil, fmt.Errorf("%w: %d", ErrBadVersion, raw[versionOff])
	}

	stored := binary.LittleEndian.Uint32(raw[crcOff:])
	if checksum(raw) != stored {
		return Header{}, nil, ErrChecksum
	}

	h := Header{
		Flags:        raw[flagsOff],
		ChunkIndex:   binary.LittleEndian.Uint32(raw[chunkIndexOff:]),
		ChunkSize:    binary.LittleEndian.Uint32(raw[chunkSizeOff:]),
		OriginalSize: binary.LittleEndian.Uint32(raw[originalSizeOff:]),
		SymbolSize:   binary.LittleEndian.Uint16(raw[symbolSizeOff:]),
		NumSource:    binary.LittleEndian.Uint32(raw[numSourceOff:]),
		BlockID:      binary.LittleEndian.Uint32(raw[blockIDOff:]),
		PayloadLen:   binary.LittleEndian.Uint16(raw[payloadLenOff:]),
	}
	copy(h.FileID[:], raw[fileIDOff:])

	if err := h.validate(len(raw)); err != nil {
		return Header{}, nil, err
	}

	payload := raw[HeaderSize : HeaderSize+int(h.PayloadLen)]
	return h, payload, nil
}

// validate checks field self-consistency for a header whose checksum has
// already passed.
func (h Header) validate(packetLen int) error {
	if h.BlockID < 1 {
		return fmt.Errorf("%w: block id 0", ErrMalformed)
	}
	if h.SymbolSize == 0 || h.NumSource == 0 {
		return fmt.Errorf("%w: zero symbol size or source count", ErrMalformed)
	}
	if h.PayloadLen > h.SymbolSize {
		return fmt.Errorf("%w: payload %d exceeds symbol size %d", ErrMalformed, h.PayloadLen, h.SymbolSize)
	}
	if packetLen < HeaderSize+int(h.PayloadLen) {
		return fmt.Errorf("%w: truncated payload", ErrMalformed)
	}
	if h.OriginalSize > h.ChunkSize {
		return fmt.Errorf("%w: original size %d exceeds chunk size %d", ErrMalformed, h.OriginalSize, h.ChunkSize)
	}
	if uint64(h.ChunkSize) > uint64(h.NumSource)*uint64(h.SymbolSize) {
		return fmt.Errorf("%w: chunk size %d exceeds %d symbols of %d bytes", ErrMalformed, h.ChunkSize, h.NumSource, h.SymbolSize)
	}
	return nil
}
