package mscrypto_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiveangle/yt-media-storage/mscrypto"
	"github.com/fiveangle/yt-media-storage/mspacket"
	"github.com/fiveangle/yt-media-storage/mssecret"
)

var testFileID = mspacket.FileID{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}

func deriveTestKey(t *testing.T, password string, fileID mspacket.FileID) *mssecret.Buffer {
	t.Helper()

	pw, err := mssecret.NewFromBytes([]byte(password))
	require.NoError(t, err)
	defer pw.Close()

	key, err := mscrypto.DeriveKey(pw, fileID)
	require.NoError(t, err)
	t.Cleanup(func() { key.Close() })
	return key
}

func TestDeriveKeyDeterministic(t *testing.T) {
	k1 := deriveTestKey(t, "hunter2", testFileID)
	k2 := deriveTestKey(t, "hunter2", testFileID)
	require.Equal(t, k1.Bytes(), k2.Bytes())
	require.Len(t, k1.Bytes(), mscrypto.KeyBytes)
}

func TestDeriveKeySensitivity(t *testing.T) {
	base := deriveTestKey(t, "hunter2", testFileID)

	otherPw := deriveTestKey(t, "hunter3", testFileID)
	require.NotEqual(t, base.Bytes(), otherPw.Bytes())

	otherID := testFileID
	otherID[0] ^= 1
	otherSalt := deriveTestKey(t, "hunter2", otherID)
	require.NotEqual(t, base.Bytes(), otherSalt.Bytes())
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	plain := make([]byte, 10_000)
	chacha := rand.NewChaCha8([32]byte{7})
	_, _ = chacha.Read(plain)

	blob, err := mscrypto.EncryptChunk(key, testFileID, 3, plain)
	require.NoError(t, err)
	require.Len(t, blob, len(plain)+mscrypto.AEADOverhead)

	got, err := mscrypto.DecryptChunk(key, testFileID, 3, blob)
	require.NoError(t, err)
	require.Equal(t, plain, got)
}

func TestEncryptDeterministic(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)
	plain := []byte("same bytes in, same bytes out")

	b1, err := mscrypto.EncryptChunk(key, testFileID, 1, plain)
	require.NoError(t, err)
	b2, err := mscrypto.EncryptChunk(key, testFileID, 1, plain)
	require.NoError(t, err)
	require.Equal(t, b1, b2)
}

func TestNonceUniqueAcrossChunks(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	seen := make(map[string]uint32)
	for idx := uint32(0); idx < 100; idx++ {
		blob, err := mscrypto.EncryptChunk(key, testFileID, idx, []byte("x"))
		require.NoError(t, err)

		nonce := string(blob[:mscrypto.NonceBytes])
		prev, dup := seen[nonce]
		require.Falsef(t, dup, "chunks %d and %d share a nonce", prev, idx)
		seen[nonce] = idx
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)
	wrong := deriveTestKey(t, "wrong", testFileID)

	blob, err := mscrypto.EncryptChunk(key, testFileID, 0, []byte("secret"))
	require.NoError(t, err)

	_, err = mscrypto.DecryptChunk(wrong, testFileID, 0, blob)
	require.ErrorIs(t, err, mscrypto.ErrAuthFailed)
}

// A chunk replayed under a different index or file id must fail
// authentication: both are bound into the associated data.
func TestDecryptContextBinding(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	blob, err := mscrypto.EncryptChunk(key, testFileID, 5, []byte("secret"))
	require.NoError(t, err)

	_, err = mscrypto.DecryptChunk(key, testFileID, 6, blob)
	require.ErrorIs(t, err, mscrypto.ErrAuthFailed)

	otherID := testFileID
	otherID[15] ^= 1
	_, err = mscrypto.DecryptChunk(key, otherID, 5, blob)
	require.ErrorIs(t, err, mscrypto.ErrAuthFailed)
}

func TestDecryptTamperedBlobFails(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	blob, err := mscrypto.EncryptChunk(key, testFileID, 0, []byte("secret"))
	require.NoError(t, err)

	blob[len(blob)-1] ^= 1
	_, err = mscrypto.DecryptChunk(key, testFileID, 0, blob)
	require.ErrorIs(t, err, mscrypto.ErrAuthFailed)
}

func TestDecryptShortBlobFails(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	_, err := mscrypto.DecryptChunk(key, testFileID, 0, make([]byte, mscrypto.AEADOverhead-1))
	require.ErrorIs(t, err, mscrypto.ErrAuthFailed)
}

func TestEncryptEmptyChunk(t *testing.T) {
	key := deriveTestKey(t, "hunter2", testFileID)

	blob, err := mscrypto.EncryptChunk(key, testFileID, 0, nil)
	require.NoError(t, err)
	require.Len(t, blob, mscrypto.AEADOverhead)

	got, err := mscrypto.DecryptChunk(key, testFileID, 0, blob)
	require.NoError(t, err)
	require.Empty(t, got)
}
