package mscodec

// ManifestEntry records the encode-time parameters of one chunk. The
// manifest is produced alongside the packet stream for validation; it
// is not persisted on the wire, where every packet header carries the
// fields needed for recovery.
type ManifestEntry struct {
	ChunkIndex uint32

	// ChunkSize is the byte count fed to the erasure encoder, after
	// any encryption and minimum-size padding.
	ChunkSize uint32

	// OriginalSize is the plaintext chunk size before encryption.
	OriginalSize uint32

	SymbolSize uint16
	NumSource  uint32

	// Sum is the SHA-256 of the plaintext chunk.
	Sum [32]byte
}
