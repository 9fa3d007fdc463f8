// Package msvideo defines the boundary to the video codec layer and
// ships a reference container for it.
//
// The codec pipelines treat video as a best-effort byte-framed channel:
// the writer decides how packets map onto frames, and the reader hands
// back whatever candidate packet blobs survive, per frame, in any
// order. Frames may come back empty or not at all; every blob is
// verified by CRC downstream, never trusted.
package msvideo

// PacketWriter accepts packet groups for rendering into a video
// container. EncodePackets may be called many times; Finalize flushes
// and closes the container.
type PacketWriter interface {
	EncodePackets(packets [][]byte) error
	Finalize() error
}

// FrameReader yields candidate packet blobs frame by frame.
// A nil or empty slice with a nil error is a lost or empty frame.
// io.EOF signals the end of the container.
type FrameReader interface {
	DecodeNextFrame() ([][]byte, error)
	Close() error
}
