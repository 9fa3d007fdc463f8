package mssecret_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fiveangle/yt-media-storage/mssecret"
)

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("hunter2")

	b, err := mssecret.NewFromBytes(source)
	require.NoError(t, err)
	defer b.Close()

	require.Equal(t, []byte("hunter2"), b.Bytes())
	require.Equal(t, make([]byte, 7), source)
}

func TestNewFromBytesRejectsEmpty(t *testing.T) {
	_, err := mssecret.NewFromBytes(nil)
	require.Error(t, err)
}

func TestNewRejectsNonPositiveSize(t *testing.T) {
	_, err := mssecret.New(0)
	require.Error(t, err)
	_, err = mssecret.New(-1)
	require.Error(t, err)
}

func TestLen(t *testing.T) {
	b, err := mssecret.New(32)
	require.NoError(t, err)
	defer b.Close()
	require.Equal(t, 32, b.Len())
	require.Len(t, b.Bytes(), 32)
}

func TestCloseIsIdempotent(t *testing.T) {
	b, err := mssecret.New(16)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
}

func TestBytesAfterClosePanics(t *testing.T) {
	b, err := mssecret.New(16)
	require.NoError(t, err)
	require.NoError(t, b.Close())
	require.Panics(t, func() { b.Bytes() })
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	mssecret.Zero(data)
	require.Equal(t, make([]byte, 4), data)
}

func TestWritableThroughBytes(t *testing.T) {
	b, err := mssecret.New(4)
	require.NoError(t, err)
	defer b.Close()

	copy(b.Bytes(), []byte{9, 9, 9, 9})
	require.Equal(t, []byte{9, 9, 9, 9}, b.Bytes())
}
