package msreedsolomon_test

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiveangle/yt-media-storage/mserasure"
	"github.com/fiveangle/yt-media-storage/mserasure/msreedsolomon"
)

func TestEncoderShortFinalSymbol(t *testing.T) {
	const symbolSize = 256

	// 3 symbols with a 100-byte tail in the last one.
	message := make([]byte, 2*symbolSize+100)
	chacha := rand.NewChaCha8([32]byte{1})
	_, _ = chacha.Read(message)

	enc, err := msreedsolomon.NewEncoder(message, symbolSize, 2)
	require.NoError(t, err)
	require.Equal(t, 3, enc.NumSource())

	buf := make([]byte, symbolSize)

	n, err := enc.Encode(1, buf)
	require.NoError(t, err)
	require.Equal(t, symbolSize, n)
	require.Equal(t, message[:symbolSize], buf[:n])

	n, err = enc.Encode(3, buf)
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.Equal(t, message[2*symbolSize:], buf[:n])

	// Repair symbols are always full size.
	n, err = enc.Encode(4, buf)
	require.NoError(t, err)
	require.Equal(t, symbolSize, n)
}

func TestEncoderRejectsBadParams(t *testing.T) {
	message := make([]byte, 1024)

	_, err := msreedsolomon.NewEncoder(message, 0, 2)
	require.Error(t, err)

	_, err = msreedsolomon.NewEncoder(message, 1024, 2)
	require.Error(t, err, "message shorter than two symbols")

	_, err = msreedsolomon.NewEncoder(message, 256, 0)
	require.Error(t, err)
}

func TestEncoderRejectsBlockIDOutOfRange(t *testing.T) {
	enc, err := msreedsolomon.NewEncoder(make([]byte, 1024), 256, 2)
	require.NoError(t, err)

	buf := make([]byte, 256)
	_, err = enc.Encode(0, buf)
	require.Error(t, err)
	_, err = enc.Encode(7, buf)
	require.Error(t, err)
}

func TestDecoderDuplicateAbsorbIsHarmless(t *testing.T) {
	const symbolSize = 256
	message := make([]byte, 4*symbolSize)
	chacha := rand.NewChaCha8([32]byte{2})
	_, _ = chacha.Read(message)

	enc, err := msreedsolomon.NewEncoder(message, symbolSize, 2)
	require.NoError(t, err)
	dec, err := msreedsolomon.NewDecoder(len(message), symbolSize, 2)
	require.NoError(t, err)

	buf := make([]byte, symbolSize)
	for i := 0; i < 3; i++ {
		n, err := enc.Encode(1, buf)
		require.NoError(t, err)
		err = dec.Absorb(1, buf[:n])
		require.ErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
	}

	// Three more unique symbols complete the set of four.
	for blockID := uint32(2); blockID <= 4; blockID++ {
		n, err := enc.Encode(blockID, buf)
		require.NoError(t, err)
		err = dec.Absorb(blockID, buf[:n])
		if blockID < 4 {
			require.ErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
		} else {
			require.NoError(t, err)
		}
	}

	got, err := dec.Recover(nil)
	require.NoError(t, err)
	require.Equal(t, message, got)
}

func TestRecoverBeforeDoneFails(t *testing.T) {
	dec, err := msreedsolomon.NewDecoder(1024, 256, 2)
	require.NoError(t, err)

	_, err = dec.Recover(nil)
	require.ErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
}

func TestDecoderRejectsOversizedSymbol(t *testing.T) {
	dec, err := msreedsolomon.NewDecoder(1024, 256, 2)
	require.NoError(t, err)

	err = dec.Absorb(1, make([]byte, 257))
	require.Error(t, err)
	require.NotErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
}

func TestDecoderRejectsShortNonFinalSymbol(t *testing.T) {
	dec, err := msreedsolomon.NewDecoder(1024, 256, 2)
	require.NoError(t, err)

	err = dec.Absorb(1, make([]byte, 100))
	require.Error(t, err)
	require.NotErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
}
