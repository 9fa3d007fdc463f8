package msvideo_test

import (
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiveangle/yt-media-storage/msvideo"
)

func TestFrameFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.ffv")

	chacha := rand.NewChaCha8([32]byte{3})
	var packets [][]byte
	for i := 0; i < 37; i++ {
		p := make([]byte, 50+i*13)
		_, _ = chacha.Read(p)
		packets = append(packets, p)
	}

	w, err := msvideo.NewFrameFileWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.EncodePackets(packets[:20]))
	require.NoError(t, w.EncodePackets(packets[20:]))
	require.NoError(t, w.Finalize())

	r, err := msvideo.NewFrameFileReader(path)
	require.NoError(t, err)
	defer r.Close()

	var got [][]byte
	for {
		blobs, err := r.DecodeNextFrame()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, blobs...)
	}

	require.Equal(t, packets, got)
}

func TestFrameFileEmptyBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.ffv")

	w, err := msvideo.NewFrameFileWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.EncodePackets(nil))
	require.NoError(t, w.Finalize())

	r, err := msvideo.NewFrameFileReader(path)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.DecodeNextFrame()
	require.ErrorIs(t, err, io.EOF)
}

func TestFrameFileReaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a framefile"), 0o644))

	_, err := msvideo.NewFrameFileReader(path)
	require.Error(t, err)
}
