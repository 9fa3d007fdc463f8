package msreedsolomon_test

import (
	"testing"

	"github.com/fiveangle/yt-media-storage/mserasure"
	"github.com/fiveangle/yt-media-storage/mserasure/msreedsolomon"
	"github.com/fiveangle/yt-media-storage/mserasure/mserasuretest"
)

func TestSymbolCodecCompliance(t *testing.T) {
	mserasuretest.TestSymbolCodecCompliance(
		t,
		func(message []byte, symbolSize, repairCount int) (mserasure.SymbolEncoder, mserasure.SymbolDecoder) {
			enc, err := msreedsolomon.NewEncoder(message, symbolSize, repairCount)
			if err != nil {
				panic(err)
			}

			dec, err := msreedsolomon.NewDecoder(len(message), symbolSize, repairCount)
			if err != nil {
				panic(err)
			}

			return enc, dec
		},
	)
}
