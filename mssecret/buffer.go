// Package mssecret holds passwords and derived keys in memory that is
// locked against swapping, excluded from core dumps, and zeroed on
// release.
//
// The backing memory is allocated with mmap(MAP_ANONYMOUS) outside the
// Go heap, so the garbage collector never copies or relocates it. That
// is the only way to guarantee key material does not linger in memory
// after Close.
package mssecret

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer holds sensitive bytes. It must not be copied after creation.
// After Close, any access to the contents panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a zeroed secret buffer of the given size, mlocked and
// marked MADV_DONTDUMP. The caller must Close it when the secret is no
// longer needed, on every exit path.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("mssecret: buffer size must be positive, got %d", size)
	}

	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("mssecret: mmap failed: %w", err)
	}

	if err := unix.Mlock(data); err != nil {
		unix.Munmap(data)
		return nil, fmt.Errorf("mssecret: mlock failed: %w", err)
	}

	if err := unix.Madvise(data, unix.MADV_DONTDUMP); err != nil {
		unix.Munlock(data)
		unix.Munmap(data)
		return nil, fmt.Errorf("mssecret: madvise(MADV_DONTDUMP) failed: %w", err)
	}

	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies source into a new protected buffer and zeroes the
// source in place, so the caller's slice no longer holds the secret.
func NewFromBytes(source []byte) (*Buffer, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("mssecret: cannot create buffer from empty source")
	}

	b, err := New(len(source))
	if err != nil {
		return nil, err
	}

	copy(b.data, source)
	Zero(source)
	return b, nil
}

// Bytes returns the secret data. The slice points directly into the
// mmap region; do not retain it beyond the buffer's lifetime.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		panic("mssecret: read from closed buffer")
	}
	return b.data[:b.length]
}

// Len returns the size of the secret data.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.length
}

// Close zeroes the contents, unlocks, and unmaps the memory. Closing an
// already-closed buffer is a no-op, so Close is safe to defer alongside
// an explicit early Close on error paths.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	Zero(b.data)
	if err := unix.Munlock(b.data); err != nil {
		unix.Munmap(b.data)
		return fmt.Errorf("mssecret: munlock failed: %w", err)
	}
	if err := unix.Munmap(b.data); err != nil {
		return fmt.Errorf("mssecret: munmap failed: %w", err)
	}
	b.data = nil
	return nil
}

// Zero overwrites data with zero bytes. The loop is simple assignment;
// the compiler does not elide stores to a live slice.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
