// Package mserasure defines the capability contract for the erasure
// codes used by the chunk pipelines. A symbol encoder expands one
// message into identified fixed-size symbols; a symbol decoder rebuilds
// the message from any sufficient subset of them.
package mserasure

import "errors"

// SymbolEncoder produces erasure-coded symbols for a single message.
//
// Symbols are identified by a block id in [1, NumSource+NumRepair]:
// ids up to NumSource are source symbols carrying message bytes in
// order, higher ids are repair symbols. Implementations are constructed
// per message; an encoder is not safe for concurrent use and is owned
// by one worker for the duration of one chunk.
type SymbolEncoder interface {
	// Encode writes the symbol for blockID into dst and returns the
	// number of bytes written. dst must be at least the symbol size.
	// Every symbol is exactly the symbol size except possibly the final
	// source symbol, which may be short.
	Encode(blockID uint32, dst []byte) (int, error)

	// NumSource returns the number of source symbols for the message.
	NumSource() int
}

// SymbolDecoder accumulates symbols for a single message and recovers
// the original bytes once enough unique symbols have been absorbed.
//
// Callers must track which block ids have been passed in; feeding the
// same id twice wastes work but must not corrupt the decoder.
type SymbolDecoder interface {
	// Absorb feeds one symbol. It returns ErrNeedMoreSymbols while the
	// accumulated set is still insufficient, nil once the message can be
	// recovered, and any other error for an invalid symbol.
	Absorb(blockID uint32, symbol []byte) error

	// Recover appends the recovered message to dst and returns the
	// resulting slice. It must only be called after Absorb returned nil.
	Recover(dst []byte) ([]byte, error)
}

// ErrNeedMoreSymbols is returned by [SymbolDecoder.Absorb] when a symbol
// was accepted but the message is not yet recoverable.
var ErrNeedMoreSymbols = errors.New("insufficient symbols received to recover message")

// NumSource returns the source-symbol count for a message of the given
// size split into symbolSize-byte symbols.
func NumSource(messageSize, symbolSize int) int {
	return (messageSize + symbolSize - 1) / symbolSize
}
