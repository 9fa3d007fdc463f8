package mscodec

import (
	"math"

	"github.com/fiveangle/yt-media-storage/mscrypto"
)

// Build-time pipeline constants. ChunkBytes bounds the buffer fed to
// the erasure encoder, so an encrypted chunk's plaintext allowance is
// reduced by the AEAD overhead to keep the sealed blob within bounds.
const (
	// ChunkBytes is the erasure-coded unit size. With SymbolSize 1024
	// this yields at most 64 source symbols per chunk, comfortably
	// inside the 256-shard field of the Reed-Solomon codec.
	ChunkBytes = 64 * 1024

	// SymbolSize is the payload size T of one packet.
	SymbolSize = 1024

	// RepairOverhead is the fraction of extra repair symbols emitted
	// per chunk: R = ceil(N * RepairOverhead).
	RepairOverhead = 0.1

	// IncludeSource controls whether source symbols are emitted
	// alongside repair symbols. With Reed-Solomon coding the source
	// symbols are the cheap path, so they are always sent.
	IncludeSource = true

	// PlainChunkBytesEncrypted is the plaintext chunk ceiling when
	// encryption is on.
	PlainChunkBytesEncrypted = ChunkBytes - mscrypto.AEADOverhead

	// minEncodeBytes is the erasure coder's minimum message size;
	// smaller buffers are zero-padded up to it.
	minEncodeBytes = 2 * SymbolSize
)

// repairCount returns R for a chunk of numSource source symbols.
func repairCount(numSource int) int {
	return int(math.Ceil(float64(numSource) * RepairOverhead))
}
