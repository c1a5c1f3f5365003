package wire

// StorageValue is a self-describing value that knows how to serialize and deserialize
// itself against a Buffer, the way Version and other storage-layer types do.
type StorageValue interface {
	WriteTo(b *Buffer)
	ReadFrom(b *Buffer) error
}
