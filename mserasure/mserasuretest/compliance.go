// Package mserasuretest provides a reusable compliance test for
// implementations of the mserasure symbol codec contract.
package mserasuretest

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiveangle/yt-media-storage/mserasure"
)

// Factory produces a paired encoder and decoder for one message.
// repairCount is the number of repair symbols the pairing must support.
type Factory func(
	message []byte,
	symbolSize, repairCount int,
) (mserasure.SymbolEncoder, mserasure.SymbolDecoder)

// TestSymbolCodecCompliance verifies that a codec pairing recovers the
// original message from symbols arriving in arbitrary order, including
// runs where up to repairCount symbols never arrive at all.
func TestSymbolCodecCompliance(t *testing.T, f Factory) {
	t.Helper()

	for _, symbolSize := range []int{64, 256, 1024} {
		for _, messageSize := range []int{
			// Whole multiples of the smallest symbol size:
			128, 1024, 4096,

			// And sizes leaving a short final symbol:
			129, 1000, 5000, 65_537,
		} {
			if messageSize < 2*symbolSize {
				continue
			}
			// Stay within the 256-shard field of GF(2^8) codecs.
			if n := mserasure.NumSource(messageSize, symbolSize); n+n/5 > 250 {
				continue
			}
			t.Run(fmt.Sprintf("T=%d size=%d", symbolSize, messageSize), func(t *testing.T) {
				t.Parallel()

				// Seed an RNG from the case parameters so every case
				// sees different but reproducible data.
				var seed [32]byte
				binary.LittleEndian.PutUint64(seed[:8], uint64(symbolSize))
				binary.LittleEndian.PutUint64(seed[8:16], uint64(messageSize))
				chacha := rand.NewChaCha8(seed)

				message := make([]byte, messageSize)
				_, _ = chacha.Read(message) // ChaCha8 reads don't error.

				numSource := mserasure.NumSource(messageSize, symbolSize)
				repairCount := (numSource + 9) / 10
				if repairCount < 2 {
					repairCount = 2
				}

				enc, dec := f(message, symbolSize, repairCount)
				require.Equal(t, numSource, enc.NumSource())

				total := numSource + repairCount
				symbols := make([][]byte, total)
				for b := 1; b <= total; b++ {
					buf := make([]byte, symbolSize)
					n, err := enc.Encode(uint32(b), buf)
					require.NoError(t, err)
					if b == numSource {
						require.LessOrEqual(t, n, symbolSize)
					} else {
						require.Equal(t, symbolSize, n)
					}
					symbols[b-1] = buf[:n]
				}

				// Feed in random order, dropping the first repairCount
				// ids of the permutation entirely.
				rng := rand.New(chacha)
				perm := rng.Perm(total)

				var err error
				recovered := false
				for _, idx := range perm[repairCount:] {
					err = dec.Absorb(uint32(idx+1), symbols[idx])
					if err == nil {
						recovered = true
						break
					}
					require.ErrorIs(t, err, mserasure.ErrNeedMoreSymbols)
				}
				require.True(t, recovered, "decoder never signalled recovery")

				got, err := dec.Recover(nil)
				require.NoError(t, err)
				require.Equal(t, message, got)
			})
		}
	}
}
