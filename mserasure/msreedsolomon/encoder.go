// Package msreedsolomon implements the mserasure contract on top of
// Reed-Solomon coding from github.com/klauspost/reedsolomon.
//
// Block ids map onto shard indices: block id b in [1, N] is data shard
// b-1, and b in (N, N+R] is parity shard b-1-N. Unlike a true rateless
// code the repair budget R is fixed at construction, but any N unique
// symbols out of the N+R emitted are sufficient to recover the message.
package msreedsolomon

import (
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/fiveangle/yt-media-storage/mserasure"
)

// Encoder produces the symbols for one message.
// It satisfies [mserasure.SymbolEncoder].
type Encoder struct {
	// shards holds data shards first and in order, then parity shards,
	// following the reedsolomon library's organization. Every shard is
	// exactly symbolSize long.
	shards [][]byte

	numSource   int
	symbolSize  int
	messageSize int
}

// NewEncoder builds the full shard set for message up front.
// The message length need not be a multiple of symbolSize; the final
// data shard is zero-padded internally. repairCount determines how many
// parity shards are computed and therefore the highest valid block id.
func NewEncoder(message []byte, symbolSize, repairCount int) (*Encoder, error) {
	if symbolSize <= 0 {
		return nil, fmt.Errorf("symbol size must be > 0")
	}
	if len(message) < 2*symbolSize {
		return nil, fmt.Errorf("message of %d bytes shorter than two symbols", len(message))
	}
	if repairCount <= 0 {
		return nil, fmt.Errorf("repair count must be > 0")
	}

	numSource := mserasure.NumSource(len(message), symbolSize)

	rs, err := reedsolomon.New(numSource, repairCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create reed-solomon encoder: %w", err)
	}

	// Pad the message to a whole number of symbols before splitting,
	// so every shard comes out exactly symbolSize long regardless of
	// the message length.
	padded := message
	if len(message) != numSource*symbolSize {
		padded = make([]byte, numSource*symbolSize)
		copy(padded, message)
	}

	allShards, err := rs.Split(padded)
	if err != nil {
		return nil, fmt.Errorf("failed to split message: %w", err)
	}

	// Splitting alone leaves the parity shards unpopulated.
	if err := rs.Encode(allShards); err != nil {
		return nil, fmt.Errorf("failed to encode parity: %w", err)
	}

	return &Encoder{
		shards:      allShards,
		numSource:   numSource,
		symbolSize:  symbolSize,
		messageSize: len(message),
	}, nil
}

// NumSource satisfies [mserasure.SymbolEncoder].
func (e *Encoder) NumSource() int { return e.numSource }

// Encode satisfies [mserasure.SymbolEncoder]. The final source symbol
// carries only the message tail and reports a short length; its zero
// padding is reproduced by the decoder, not transmitted.
func (e *Encoder) Encode(blockID uint32, dst []byte) (int, error) {
	if blockID < 1 || int(blockID) > len(e.shards) {
		return 0, fmt.Errorf("block id %d out of range [1, %d]", blockID, len(e.shards))
	}
	if len(dst) < e.symbolSize {
		return 0, fmt.Errorf("destination of %d bytes shorter than symbol size %d", len(dst), e.symbolSize)
	}

	n := e.symbolSize
	if int(blockID) == e.numSource {
		if tail := e.messageSize - (e.numSource-1)*e.symbolSize; tail < n {
			n = tail
		}
	}

	copy(dst[:n], e.shards[blockID-1])
	return n, nil
}
