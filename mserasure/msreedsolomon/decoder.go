package msreedsolomon

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/klauspost/reedsolomon"

	"github.com/fiveangle/yt-media-storage/mserasure"
)

// Decoder accumulates symbols for one message and recovers the original
// bytes once any numSource unique symbols have arrived.
// It satisfies [mserasure.SymbolDecoder].
type Decoder struct {
	rs reedsolomon.Encoder

	// allShards is allocated at full size with optimized byte alignment.
	// Shards are kept zero-length until their symbol arrives; the
	// reedsolomon implementation treats empty shards as missing.
	allShards [][]byte

	numSource   int
	symbolSize  int
	messageSize int

	received int
	done     bool
}

// NewDecoder prepares a decoder for a message of messageSize bytes split
// into symbolSize-byte symbols with repairCount parity symbols. These
// parameters must match the encoder's; they travel in the packet header.
func NewDecoder(messageSize, symbolSize, repairCount int) (*Decoder, error) {
	if symbolSize <= 0 {
		return nil, fmt.Errorf("symbol size must be > 0")
	}
	if messageSize < 2*symbolSize {
		return nil, fmt.Errorf("message of %d bytes shorter than two symbols", messageSize)
	}
	if repairCount <= 0 {
		return nil, fmt.Errorf("repair count must be > 0")
	}

	numSource := mserasure.NumSource(messageSize, symbolSize)

	rs, err := reedsolomon.New(numSource, repairCount)
	if err != nil {
		return nil, fmt.Errorf("failed to create reed-solomon decoder: %w", err)
	}

	// All reedsolomon.Encoder instances satisfy reedsolomon.Extensions.
	allShards := rs.(reedsolomon.Extensions).AllocAligned(symbolSize)
	for i, s := range allShards {
		allShards[i] = s[:0]
	}

	return &Decoder{
		rs:          rs,
		allShards:   allShards,
		numSource:   numSource,
		symbolSize:  symbolSize,
		messageSize: messageSize,
	}, nil
}

// Absorb satisfies [mserasure.SymbolDecoder]. A short symbol is assumed
// to be the final source symbol and is zero-extended to the full symbol
// size. Re-absorbing an id the decoder already holds wastes cycles but
// does not corrupt state.
func (d *Decoder) Absorb(blockID uint32, symbol []byte) error {
	if d.done {
		return nil
	}
	if blockID < 1 || int(blockID) > len(d.allShards) {
		return fmt.Errorf("block id %d out of range [1, %d]", blockID, len(d.allShards))
	}
	if len(symbol) > d.symbolSize {
		return fmt.Errorf("symbol of %d bytes exceeds symbol size %d", len(symbol), d.symbolSize)
	}
	if len(symbol) < d.symbolSize && int(blockID) != d.numSource {
		return fmt.Errorf("short symbol for block id %d", blockID)
	}

	idx := int(blockID) - 1
	fresh := len(d.allShards[idx]) == 0

	shard := d.allShards[idx][:d.symbolSize]
	n := copy(shard, symbol)
	for i := n; i < d.symbolSize; i++ {
		shard[i] = 0
	}
	d.allShards[idx] = shard

	if fresh {
		d.received++
	}
	if d.received < d.numSource {
		return mserasure.ErrNeedMoreSymbols
	}

	if err := d.rs.ReconstructData(d.allShards); err != nil {
		if errors.Is(err, reedsolomon.ErrTooFewShards) {
			return mserasure.ErrNeedMoreSymbols
		}
		return fmt.Errorf("failed to reconstruct message: %w", err)
	}

	d.done = true
	return nil
}

// Recover satisfies [mserasure.SymbolDecoder].
func (d *Decoder) Recover(dst []byte) ([]byte, error) {
	if !d.done {
		return nil, mserasure.ErrNeedMoreSymbols
	}

	if cap(dst)-len(dst) < d.messageSize {
		grown := make([]byte, len(dst), len(dst)+d.messageSize)
		copy(grown, dst)
		dst = grown
	}

	// Join needs an io.Writer; wrapping dst in a bytes.Buffer lets the
	// caller's allocation be reused. No other reference to the buffer
	// survives this call.
	buf := bytes.NewBuffer(dst)
	if err := d.rs.Join(buf, d.allShards, d.messageSize); err != nil {
		return nil, fmt.Errorf("failed to join recovered message: %w", err)
	}
	return buf.Bytes(), nil
}
