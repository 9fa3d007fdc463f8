// Package mschunk splits an input stream into the ordered fixed-size
// chunks the encode pipeline works on.
package mschunk

import (
	"errors"
	"fmt"
	"io"
)

// Chunker yields consecutive chunks of exactly chunkSize bytes, with a
// final short chunk holding the remainder. It is a forward-only,
// non-restartable sequence over the underlying reader.
type Chunker struct {
	r         io.Reader
	chunkSize int
	index     uint32
	done      bool
}

// New returns a Chunker reading chunkSize-byte chunks from r.
func New(r io.Reader, chunkSize int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be > 0, got %d", chunkSize)
	}
	return &Chunker{r: r, chunkSize: chunkSize}, nil
}

// Next returns the next chunk and its index. The returned slice is
// owned by the caller. After the final chunk, Next returns io.EOF.
// Read failures are wrapped and terminate the sequence.
func (c *Chunker) Next() ([]byte, uint32, error) {
	if c.done {
		return nil, 0, io.EOF
	}

	buf := make([]byte, c.chunkSize)
	n, err := io.ReadFull(c.r, buf)
	switch {
	case err == nil:
		// Full chunk; the next read decides whether it was the last.
	case errors.Is(err, io.ErrUnexpectedEOF):
		c.done = true
		buf = buf[:n]
	case errors.Is(err, io.EOF):
		c.done = true
		return nil, 0, io.EOF
	default:
		c.done = true
		return nil, 0, fmt.Errorf("failed to read chunk %d: %w", c.index, err)
	}

	idx := c.index
	c.index++
	return buf, idx, nil
}

// Count returns the number of chunks a file of fileSize bytes splits
// into at the given chunk size. A zero-size file has zero chunks.
func Count(fileSize int64, chunkSize int) uint32 {
	if fileSize <= 0 {
		return 0
	}
	return uint32((fileSize + int64(chunkSize) - 1) / int64(chunkSize))
}
