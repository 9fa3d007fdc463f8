package mscodec

import (
	"errors"
	"fmt"

	"github.com/fiveangle/yt-media-storage/mscrypto"
)

// ErrIncompleteFile is returned by AssembleFile when some chunk in the
// expected range never reached the recovered state.
var ErrIncompleteFile = errors.New("not all chunks could be recovered")

// ErrKeyRequired is returned when assembling an encrypted stream
// without a key having been set.
var ErrKeyRequired = errors.New("content is encrypted and no key is set")

// AssembleFile concatenates the plaintext of chunks [0, expectedChunks)
// in index order. Encrypted chunks that were recovered before the key
// was available are decrypted here; an authentication failure on any of
// them means a wrong password or corrupted data and fails the assembly.
func (d *Decoder) AssembleFile(expectedChunks uint32) ([]byte, error) {
	if expectedChunks == 0 {
		return nil, fmt.Errorf("%w: no chunks expected", ErrIncompleteFile)
	}
	if d.encrypted && d.key == nil {
		return nil, ErrKeyRequired
	}

	var total int
	for i := uint32(0); i < expectedChunks; i++ {
		st, ok := d.chunks[i]
		if !ok || st.status != chunkRecovered {
			return nil, fmt.Errorf("%w: chunk %d missing", ErrIncompleteFile, i)
		}

		if !st.decrypted {
			if !d.decryptChunk(i, st, st.data) {
				return nil, fmt.Errorf("failed to decrypt chunk %d (wrong password or corrupted data): %w", i, mscrypto.ErrAuthFailed)
			}
		}
		total += len(st.data)
	}

	out := make([]byte, 0, total)
	for i := uint32(0); i < expectedChunks; i++ {
		out = append(out, d.chunks[i].data...)
	}
	return out, nil
}
