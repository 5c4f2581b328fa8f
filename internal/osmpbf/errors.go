package osmpbf

import "errors"

// Error kinds returned by Decode. All are wrapped with position context, so
// match with errors.Is.
var (
	// ErrTruncated means a length prefix, blob header or blob payload
	// extends past the end of the file.
	ErrTruncated = errors.New("truncated input")

	// ErrBadHeader means a BlobHeader had a zero or oversized length, or
	// carried an unexpected type string or a zero or oversized datasize.
	ErrBadHeader = errors.New("bad blob header")

	// ErrMalformedWire means the protobuf wire data could not be walked:
	// unknown wire type, varint overflow, or a field length exceeding its
	// container.
	ErrMalformedWire = errors.New("malformed protobuf data")

	// ErrInflate means zlib inflation failed or produced a size different
	// from the blob's raw_size.
	ErrInflate = errors.New("inflate failed")

	// ErrUnsupportedCompression means the blob uses a compression scheme
	// other than raw or zlib.
	ErrUnsupportedCompression = errors.New("unsupported blob compression")

	// ErrArity means parallel packed arrays that must line up did not.
	ErrArity = errors.New("parallel array length mismatch")

	// ErrHandlerStop means a handler returned false.
	ErrHandlerStop = errors.New("stopped by handler")
)

// errOutOfCapacity classifies an arena growth detected while an entity was
// being decoded. It never escapes the package; the group decode loop catches
// it and replays the entity against the grown arena.
var errOutOfCapacity = errors.New("arena grew during decode")
