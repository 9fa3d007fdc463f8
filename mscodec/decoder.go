package mscodec

import (
	"log/slog"

	"github.com/bits-and-blooms/bitset"

	"github.com/fiveangle/yt-media-storage/mscrypto"
	"github.com/fiveangle/yt-media-storage/mserasure/msreedsolomon"
	"github.com/fiveangle/yt-media-storage/mspacket"
	"github.com/fiveangle/yt-media-storage/mssecret"
)

type chunkStatus int

const (
	chunkAccumulating chunkStatus = iota
	chunkRecovered
	chunkFailed
)

// chunkState tracks one chunk's progress through recovery. The erasure
// parameters are pinned by the first accepted packet for the chunk;
// later packets that disagree are dropped.
type chunkState struct {
	symbolSize   uint16
	numSource    uint32
	chunkSize    uint32
	originalSize uint32

	// consumed marks block ids already fed to the symbol decoder.
	consumed *bitset.BitSet

	dec    *msreedsolomon.Decoder
	status chunkStatus

	// data holds the recovered plaintext once decrypted (or trimmed,
	// for unencrypted sessions); until a key is available it holds the
	// raw recovered buffer.
	data      []byte
	decrypted bool
}

// Decoder consumes candidate packets from the video layer and drives
// per-chunk recovery. Packets arrive in no particular order; corrupted,
// foreign, duplicate, and inconsistent packets are the expected debris
// of a lossy channel and are dropped without error.
//
// A Decoder is for single-goroutine use: state for a chunk is mutated
// only by the caller feeding packets.
type Decoder struct {
	log *slog.Logger

	chunks map[uint32]*chunkState

	fileID     mspacket.FileID
	haveFileID bool

	// encrypted is fixed by the first accepted packet; packets whose
	// flag disagrees are dropped as outliers.
	encrypted    bool
	haveBaseline bool

	key *mssecret.Buffer

	maxChunkIndex  uint32
	lastChunkIndex uint32
	sawLastChunk   bool
	sawPacket      bool

	recovered int
}

// NewDecoder returns an empty Decoder logging through log.
func NewDecoder(log *slog.Logger) *Decoder {
	return &Decoder{
		log:    log,
		chunks: make(map[uint32]*chunkState),
	}
}

// SetKey supplies the session key for encrypted streams. The buffer is
// borrowed; call ClearKey before closing it. Chunks already recovered
// as ciphertext are decrypted lazily at assembly.
func (d *Decoder) SetKey(key *mssecret.Buffer) { d.key = key }

// ClearKey drops the borrowed key reference.
func (d *Decoder) ClearKey() { d.key = nil }

// IsEncrypted reports whether accepted packets carry the encrypted
// flag. Meaningful only after at least one packet was accepted.
func (d *Decoder) IsEncrypted() bool { return d.encrypted }

// FileID returns the session file id observed on the first accepted
// packet, and whether one has been observed.
func (d *Decoder) FileID() (mspacket.FileID, bool) { return d.fileID, d.haveFileID }

// RecoveredChunks returns how many chunks have been recovered so far.
func (d *Decoder) RecoveredChunks() int { return d.recovered }

// ExpectedChunks estimates the chunk count of the file: the index of
// the chunk flagged as last if one was seen, otherwise the highest
// chunk index observed, plus one. Zero until any packet is accepted.
func (d *Decoder) ExpectedChunks() uint32 {
	if !d.sawPacket {
		return 0
	}
	if d.sawLastChunk {
		return d.lastChunkIndex + 1
	}
	return d.maxChunkIndex + 1
}

// ProcessPacket feeds one candidate packet blob. It returns true when
// this packet completed recovery of its chunk. All rejection paths
// return false silently.
func (d *Decoder) ProcessPacket(raw []byte) bool {
	h, payload, err := mspacket.Parse(raw)
	if err != nil {
		return false
	}

	if d.haveFileID {
		if h.FileID != d.fileID {
			return false
		}
	} else {
		d.fileID = h.FileID
		d.haveFileID = true
	}

	if d.haveBaseline {
		if h.IsEncrypted() != d.encrypted {
			return false
		}
	} else {
		d.encrypted = h.IsEncrypted()
		d.haveBaseline = true
	}

	d.sawPacket = true
	if h.ChunkIndex > d.maxChunkIndex {
		d.maxChunkIndex = h.ChunkIndex
	}
	if h.IsLastChunk() {
		d.sawLastChunk = true
		d.lastChunkIndex = h.ChunkIndex
	}

	st, ok := d.chunks[h.ChunkIndex]
	if !ok {
		st = d.initChunk(h)
		if st == nil {
			return false
		}
	} else if st.symbolSize != h.SymbolSize || st.numSource != h.NumSource ||
		st.chunkSize != h.ChunkSize || st.originalSize != h.OriginalSize {
		return false
	}

	if st.status != chunkAccumulating {
		return false
	}
	if st.consumed.Test(uint(h.BlockID)) {
		return false
	}
	st.consumed.Set(uint(h.BlockID))

	err = st.dec.Absorb(h.BlockID, payload)
	if err != nil {
		// ErrNeedMoreSymbols keeps accumulating; anything else means
		// the symbol was unusable and is treated as lost.
		return false
	}

	return d.finishChunk(h.ChunkIndex, st)
}

// initChunk creates the per-chunk state from the first accepted header.
// Returns nil if the header's parameters cannot build a decoder.
func (d *Decoder) initChunk(h mspacket.Header) *chunkState {
	dec, err := msreedsolomon.NewDecoder(int(h.ChunkSize), int(h.SymbolSize), repairCount(int(h.NumSource)))
	if err != nil {
		return nil
	}

	st := &chunkState{
		symbolSize:   h.SymbolSize,
		numSource:    h.NumSource,
		chunkSize:    h.ChunkSize,
		originalSize: h.OriginalSize,
		consumed:     bitset.New(uint(h.NumSource) + uint(repairCount(int(h.NumSource))) + 1),
		dec:          dec,
	}
	d.chunks[h.ChunkIndex] = st
	return st
}

// finishChunk runs recovery and, when possible, decryption and
// trimming for a chunk whose decoder just reported completion.
func (d *Decoder) finishChunk(chunkIndex uint32, st *chunkState) bool {
	buf, err := st.dec.Recover(nil)
	if err != nil {
		d.log.Warn("chunk recovery failed", "chunk", chunkIndex, "err", err)
		st.status = chunkFailed
		return false
	}
	st.dec = nil // recovery is one-shot; free the shard buffers

	if !d.encrypted {
		st.data = buf[:st.originalSize]
		st.decrypted = true
		st.status = chunkRecovered
		d.recovered++
		return true
	}

	if d.key == nil {
		// No key yet: hold the ciphertext and decrypt at assembly.
		st.data = buf
		st.status = chunkRecovered
		d.recovered++
		return true
	}

	if !d.decryptChunk(chunkIndex, st, buf) {
		return false
	}
	st.status = chunkRecovered
	d.recovered++
	d.log.Debug("chunk recovered", "chunk", chunkIndex, "size", len(st.data))
	return true
}

// decryptChunk opens a recovered ciphertext buffer in place of st.data.
// On authentication failure the chunk is marked failed; the error
// surfaces at assembly time.
func (d *Decoder) decryptChunk(chunkIndex uint32, st *chunkState, buf []byte) bool {
	blobLen := int(st.originalSize) + mscrypto.AEADOverhead
	if blobLen > len(buf) {
		st.status = chunkFailed
		return false
	}

	plain, err := mscrypto.DecryptChunk(d.key, d.fileID, chunkIndex, buf[:blobLen])
	if err != nil {
		d.log.Warn("chunk decryption failed", "chunk", chunkIndex, "err", err)
		st.status = chunkFailed
		return false
	}

	st.data = plain
	st.decrypted = true
	return true
}
