package mscodec

import (
	"crypto/sha256"
	"fmt"
	"io"
	"runtime"
	"sync"

	"github.com/fiveangle/yt-media-storage/mschunk"
	"github.com/fiveangle/yt-media-storage/mscrypto"
	"github.com/fiveangle/yt-media-storage/mserasure/msreedsolomon"
	"github.com/fiveangle/yt-media-storage/mspacket"
	"github.com/fiveangle/yt-media-storage/mssecret"
	"github.com/fiveangle/yt-media-storage/msvideo"
)

// Encoder turns file chunks into packet groups for one encode session.
// A nil key means the session is unencrypted. The key buffer is
// borrowed for the Encoder's lifetime and closed by the caller.
//
// Methods are safe for concurrent use across distinct chunks: the
// Encoder itself is read-only after construction and every chunk gets
// its own erasure-coder handle.
type Encoder struct {
	fileID mspacket.FileID
	key    *mssecret.Buffer
}

// NewEncoder returns an Encoder bound to a file id and optional key.
func NewEncoder(fileID mspacket.FileID, key *mssecret.Buffer) *Encoder {
	return &Encoder{fileID: fileID, key: key}
}

// Encrypted reports whether this session seals chunks.
func (e *Encoder) Encrypted() bool { return e.key != nil }

// PlainChunkBytes returns the plaintext chunk size for this session.
func (e *Encoder) PlainChunkBytes() int {
	if e.Encrypted() {
		return PlainChunkBytesEncrypted
	}
	return ChunkBytes
}

// EncodeChunk expands one plaintext chunk into its packet group.
// Packets come out in increasing block-id order, each a self-contained
// header+symbol blob ready for the video layer.
func (e *Encoder) EncodeChunk(chunkIndex uint32, chunk []byte, isLast bool) ([][]byte, ManifestEntry, error) {
	if len(chunk) > e.PlainChunkBytes() {
		return nil, ManifestEntry{}, fmt.Errorf("chunk %d of %d bytes exceeds chunk size %d", chunkIndex, len(chunk), e.PlainChunkBytes())
	}

	data := chunk
	if e.Encrypted() {
		sealed, err := mscrypto.EncryptChunk(e.key, e.fileID, chunkIndex, chunk)
		if err != nil {
			return nil, ManifestEntry{}, fmt.Errorf("failed to encrypt chunk %d: %w", chunkIndex, err)
		}
		data = sealed
	}

	// The erasure coder needs at least two symbols of input.
	if len(data) < minEncodeBytes {
		padded := make([]byte, minEncodeBytes)
		copy(padded, data)
		data = padded
	}

	chunkSize := uint32(len(data))
	numSource := uint32((len(data) + SymbolSize - 1) / SymbolSize)
	repair := repairCount(int(numSource))

	entry := ManifestEntry{
		ChunkIndex:   chunkIndex,
		ChunkSize:    chunkSize,
		OriginalSize: uint32(len(chunk)),
		SymbolSize:   SymbolSize,
		NumSource:    numSource,
		Sum:          sha256.Sum256(chunk),
	}

	enc, err := msreedsolomon.NewEncoder(data, SymbolSize, repair)
	if err != nil {
		return nil, ManifestEntry{}, fmt.Errorf("failed to create symbol encoder for chunk %d: %w", chunkIndex, err)
	}

	firstBlock := uint32(1)
	if !IncludeSource {
		firstBlock = numSource + 1
	}
	lastBlock := numSource + uint32(repair)

	packets := make([][]byte, 0, lastBlock-firstBlock+1)
	var payload [SymbolSize]byte
	for blockID := firstBlock; blockID <= lastBlock; blockID++ {
		n, err := enc.Encode(blockID, payload[:])
		if err != nil {
			return nil, ManifestEntry{}, fmt.Errorf("failed to encode block %d of chunk %d: %w", blockID, chunkIndex, err)
		}

		h := mspacket.Header{
			Flags:        e.packetFlags(blockID, numSource, isLast),
			FileID:       e.fileID,
			ChunkIndex:   chunkIndex,
			ChunkSize:    chunkSize,
			OriginalSize: entry.OriginalSize,
			SymbolSize:   SymbolSize,
			NumSource:    numSource,
			BlockID:      blockID,
			PayloadLen:   uint16(n),
		}
		packets = append(packets, mspacket.Build(h, payload[:n]))
	}

	return packets, entry, nil
}

func (e *Encoder) packetFlags(blockID, numSource uint32, isLast bool) byte {
	var flags byte
	if blockID > numSource {
		flags |= mspacket.FlagRepairSymbol
	}
	if isLast {
		flags |= mspacket.FlagLastChunk
	}
	if e.Encrypted() {
		flags |= mspacket.FlagEncrypted
	}
	return flags
}

// EncodeFile chunks r, encodes every chunk, and hands the packet groups
// to w in chunk-index order. Chunks are encoded by a bounded worker
// pool; each worker owns its erasure-coder handle for the duration of
// one chunk, and out-of-order completions are reordered through a
// per-chunk slot array before reaching w.
func (e *Encoder) EncodeFile(r io.Reader, fileSize int64, w msvideo.PacketWriter) ([]ManifestEntry, error) {
	plainSize := e.PlainChunkBytes()
	numChunks := mschunk.Count(fileSize, plainSize)
	if numChunks == 0 {
		return nil, fmt.Errorf("refusing to encode an empty input")
	}

	chunker, err := mschunk.New(r, plainSize)
	if err != nil {
		return nil, err
	}

	chunks := make([][]byte, 0, numChunks)
	for {
		chunk, _, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
	}
	if uint32(len(chunks)) != numChunks {
		return nil, fmt.Errorf("expected %d chunks, read %d", numChunks, len(chunks))
	}

	slots := make([][][]byte, numChunks)
	manifest := make([]ManifestEntry, numChunks)

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	sem := make(chan struct{}, runtime.GOMAXPROCS(0))

	for i := range chunks {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()

			isLast := i == len(chunks)-1
			packets, entry, err := e.EncodeChunk(uint32(i), chunks[i], isLast)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			slots[i] = packets
			manifest[i] = entry
		}(i)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}

	for i, packets := range slots {
		if err := w.EncodePackets(packets); err != nil {
			return nil, fmt.Errorf("failed to write packets for chunk %d: %w", i, err)
		}
		// Encoded packets for large files dominate memory; release each
		// group as soon as it is handed off.
		slots[i] = nil
	}

	return manifest, nil
}
