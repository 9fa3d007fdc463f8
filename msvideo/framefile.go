package msvideo

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// The framefile container is the stand-in for a real video codec: a
// zstd-compressed stream of frames, each frame a length-prefixed batch
// of packet blobs. A production deployment swaps this for a renderer
// that draws packets into pixels; both sides of the pipeline only see
// the PacketWriter and FrameReader interfaces.
//
// Layout: magic (u32 LE) ∥ version (u8) ∥ zstd stream of frames.
// Frame: u32 LE byte length ∥ body. Body: repeated u16 LE packet
// length ∥ packet bytes.

const (
	frameFileMagic   uint32 = 0x4646_5459
	frameFileVersion byte   = 1

	// packetsPerFrame caps how many packets share one frame.
	packetsPerFrame = 8

	// maxFrameBytes bounds a frame declared by a (possibly corrupt)
	// container before we allocate for it.
	maxFrameBytes = 1 << 22
)

// FrameFileWriter writes packets into a framefile container.
type FrameFileWriter struct {
	f   *os.File
	zw  *zstd.Encoder
	buf []byte
}

// NewFrameFileWriter creates or truncates the container at path.
func NewFrameFileWriter(path string) (*FrameFileWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}

	var preamble [5]byte
	binary.LittleEndian.PutUint32(preamble[:], frameFileMagic)
	preamble[4] = frameFileVersion
	if _, err := f.Write(preamble[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write container preamble: %w", err)
	}

	zw, err := zstd.NewWriter(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	return &FrameFileWriter{f: f, zw: zw}, nil
}

// EncodePackets packs the given packets into frames and writes them.
func (w *FrameFileWriter) EncodePackets(packets [][]byte) error {
	for len(packets) > 0 {
		n := len(packets)
		if n > packetsPerFrame {
			n = packetsPerFrame
		}
		if err := w.writeFrame(packets[:n]); err != nil {
			return err
		}
		packets = packets[n:]
	}
	return nil
}

func (w *FrameFileWriter) writeFrame(packets [][]byte) error {
	w.buf = w.buf[:0]
	for _, p := range packets {
		if len(p) > int(^uint16(0)) {
			return fmt.Errorf("packet of %d bytes too large for frame encoding", len(p))
		}
		w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(p)))
		w.buf = append(w.buf, p...)
	}

	var hdr [4]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(w.buf)))
	if _, err := w.zw.Write(hdr[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.zw.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write frame body: %w", err)
	}
	return nil
}

// Finalize flushes the compressed stream and closes the container.
func (w *FrameFileWriter) Finalize() error {
	if err := w.zw.Close(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to finish zstd stream: %w", err)
	}
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("failed to close container: %w", err)
	}
	return nil
}

// FrameFileReader reads packets back out of a framefile container.
type FrameFileReader struct {
	f  *os.File
	zr *zstd.Decoder
}

// NewFrameFileReader opens the container at path and checks the
// preamble.
func NewFrameFileReader(path string) (*FrameFileReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open container: %w", err)
	}

	var preamble [5]byte
	if _, err := io.ReadFull(f, preamble[:]); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read container preamble: %w", err)
	}
	if binary.LittleEndian.Uint32(preamble[:]) != frameFileMagic {
		f.Close()
		return nil, fmt.Errorf("not a framefile container")
	}
	if preamble[4] != frameFileVersion {
		f.Close()
		return nil, fmt.Errorf("unsupported framefile version %d", preamble[4])
	}

	zr, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}

	return &FrameFileReader{f: f, zr: zr}, nil
}

// DecodeNextFrame returns the packet blobs of the next frame. A frame
// whose body cannot be split cleanly is reported as lost (nil, nil)
// rather than failing the whole read; io.EOF ends the stream.
func (r *FrameFileReader) DecodeNextFrame() ([][]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r.zr, hdr[:]); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	frameLen := binary.LittleEndian.Uint32(hdr[:])
	if frameLen > maxFrameBytes {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", frameLen)
	}

	body := make([]byte, frameLen)
	if _, err := io.ReadFull(r.zr, body); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}

	var packets [][]byte
	for off := 0; off < len(body); {
		if off+2 > len(body) {
			return nil, nil // truncated split marker; treat frame as lost
		}
		n := int(binary.LittleEndian.Uint16(body[off:]))
		off += 2
		if off+n > len(body) {
			return nil, nil
		}
		packets = append(packets, body[off:off+n])
		off += n
	}
	return packets, nil
}

// Close releases the reader.
func (r *FrameFileReader) Close() error {
	r.zr.Close()
	return r.f.Close()
}
