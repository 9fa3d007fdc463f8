// Package mscrypto provides password-based key derivation and the
// per-chunk authenticated encryption used by the chunk pipelines.
//
// Keys are derived with Argon2id salted by the file id, so the same
// password yields unrelated keys for different files. Each chunk is
// sealed with ChaCha20-Poly1305 under a nonce and associated data bound
// to (file id, chunk index); a chunk replayed under another index or
// another file fails authentication.
package mscrypto

import (
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fiveangle/yt-media-storage/mspacket"
	"github.com/fiveangle/yt-media-storage/mssecret"
)

// KeyBytes is the size of a derived encryption key.
const KeyBytes = 32

// NonceBytes and TagBytes are the AEAD framing sizes; an encrypted
// chunk is nonce ∥ ciphertext ∥ tag.
const (
	NonceBytes = chacha20poly1305.NonceSize
	TagBytes   = chacha20poly1305.Overhead

	// AEADOverhead is the total expansion of an encrypted chunk.
	AEADOverhead = NonceBytes + TagBytes
)

// Argon2id parameters. These are fixed for the life of the format:
// both sides must derive with identical settings or every chunk fails
// authentication.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// ErrAuthFailed is returned when a chunk fails AEAD authentication,
// meaning a wrong key (wrong password) or corrupted ciphertext.
var ErrAuthFailed = errors.New("chunk authentication failed")

// DeriveKey derives the 32-byte session key from a password, salted by
// the file id. The returned buffer must be closed by the caller; the
// password buffer is borrowed and left intact.
func DeriveKey(password *mssecret.Buffer, fileID mspacket.FileID) (*mssecret.Buffer, error) {
	raw := argon2.IDKey(password.Bytes(), fileID[:], argonTime, argonMemory, argonThreads, KeyBytes)

	// NewFromBytes zeroes raw, leaving the only copy in locked memory.
	key, err := mssecret.NewFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to protect derived key: %w", err)
	}
	return key, nil
}

// EncryptChunk seals one plaintext chunk, returning
// nonce(12) ∥ ciphertext ∥ tag(16). The output is deterministic for a
// fixed (key, fileID, chunkIndex, plain).
func EncryptChunk(key *mssecret.Buffer, fileID mspacket.FileID, chunkIndex uint32, plain []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to construct AEAD: %w", err)
	}

	nonce := chunkNonce(fileID, chunkIndex)

	out := make([]byte, NonceBytes, NonceBytes+len(plain)+TagBytes)
	copy(out, nonce[:])
	return aead.Seal(out, nonce[:], plain, chunkAAD(fileID, chunkIndex)), nil
}

// DecryptChunk opens a blob produced by EncryptChunk for the same
// (fileID, chunkIndex). The nonce is taken from the blob itself.
// Returns ErrAuthFailed on tag mismatch or wrong key.
func DecryptChunk(key *mssecret.Buffer, fileID mspacket.FileID, chunkIndex uint32, blob []byte) ([]byte, error) {
	if len(blob) < AEADOverhead {
		return nil, fmt.Errorf("%w: blob of %d bytes shorter than AEAD overhead", ErrAuthFailed, len(blob))
	}

	aead, err := chacha20poly1305.New(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to construct AEAD: %w", err)
	}

	plain, err := aead.Open(nil, blob[:NonceBytes], blob[NonceBytes:], chunkAAD(fileID, chunkIndex))
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plain, nil
}

// chunkNonce builds the deterministic 96-bit nonce
// file_id[0:8] ∥ chunk_index_LE. Injective per (file id, chunk index),
// so no two chunks of a file reuse a nonce under the same key.
func chunkNonce(fileID mspacket.FileID, chunkIndex uint32) [NonceBytes]byte {
	var nonce [NonceBytes]byte
	copy(nonce[:8], fileID[:8])
	binary.LittleEndian.PutUint32(nonce[8:], chunkIndex)
	return nonce
}

// chunkAAD builds the associated data file_id ∥ chunk_index_LE.
func chunkAAD(fileID mspacket.FileID, chunkIndex uint32) []byte {
	aad := make([]byte, len(fileID)+4)
	copy(aad, fileID[:])
	binary.LittleEndian.PutUint32(aad[len(fileID):], chunkIndex)
	return aad
}
