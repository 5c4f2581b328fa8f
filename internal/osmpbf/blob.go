package osmpbf

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// The PBF format caps a BlobHeader at 64 KiB and a Blob at 32 MiB; anything
// larger means a corrupt or hostile file.
const (
	maxBlobHeaderSize = 64 * 1024
	maxBlobSize       = 32 * 1024 * 1024
)

type blobKind uint8

const (
	headerBlob blobKind = iota
	dataBlob
)

// workItem is one framed blob: a payload slice into the mapped file, which
// parser to run on it, and the file-order block ordinal. It is produced by
// the framer and owned exclusively by the worker that pops it.
type workItem struct {
	data       []byte
	kind       blobKind
	blockIndex uint64
}

// frameBlobs walks the mapped file and cuts it into work items. For each
// block it reads the 4-byte big-endian length prefix, decodes the BlobHeader
// it covers, checks the type string ("OSMHeader" for the first block,
// "OSMData" for every one after), and records the following datasize bytes
// as the blob payload. No inflation or payload parsing happens here.
func frameBlobs(data []byte) ([]workItem, error) {
	var items []workItem
	var blockIndex uint64
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, fmt.Errorf("%w: %d stray bytes where a length prefix should be (block %d)", ErrTruncated, len(data), blockIndex)
		}
		headerSize := binary.BigEndian.Uint32(data)
		data = data[4:]
		if headerSize == 0 || headerSize >= maxBlobHeaderSize {
			return nil, fmt.Errorf("%w: header size %d (block %d)", ErrBadHeader, headerSize, blockIndex)
		}
		if uint64(len(data)) < uint64(headerSize) {
			return nil, fmt.Errorf("%w: blob header runs past end of file (block %d)", ErrTruncated, blockIndex)
		}
		typ, datasize, err := parseBlobHeader(data[:headerSize])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", blockIndex, err)
		}
		data = data[headerSize:]

		want, kind := "OSMData", dataBlob
		if blockIndex == 0 {
			want, kind = "OSMHeader", headerBlob
		}
		if typ != want {
			return nil, fmt.Errorf("%w: block %d has type %q, want %q", ErrBadHeader, blockIndex, typ, want)
		}
		if datasize == 0 {
			return nil, fmt.Errorf("%w: block %d has zero datasize", ErrBadHeader, blockIndex)
		}
		if datasize > maxBlobSize {
			return nil, fmt.Errorf("%w: block %d datasize %d exceeds %d", ErrBadHeader, blockIndex, datasize, maxBlobSize)
		}
		if uint64(len(data)) < datasize {
			return nil, fmt.Errorf("%w: blob payload runs past end of file (block %d)", ErrTruncated, blockIndex)
		}
		items = append(items, workItem{data: data[:datasize], kind: kind, blockIndex: blockIndex})
		data = data[datasize:]
		blockIndex++
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no blocks", ErrTruncated)
	}
	return items, nil
}

// parseBlobHeader extracts type (field 1) and datasize (field 3) from a
// BlobHeader message. Field 2 (indexdata) is skipped.
func parseBlobHeader(buf []byte) (typ string, datasize uint64, err error) {
	err = iterateFields(buf, func(f *field) error {
		switch {
		case f.num == 1 && f.wire == wireBytes:
			typ = string(f.data)
		case f.num == 3 && f.wire == wireVarint:
			datasize = f.value
		}
		return nil
	})
	return typ, datasize, err
}

// blobData decodes the Blob wire message and returns the inflated payload.
// Raw payloads alias the mapped file directly; zlib payloads are inflated
// into the worker's reusable buffer, valid until the worker's next blob.
func (w *Worker) blobData(blob []byte) ([]byte, error) {
	var raw, zlibData []byte
	var rawSize uint64
	err := iterateFields(blob, func(f *field) error {
		switch {
		case f.num == 1 && f.wire == wireBytes:
			raw = f.data
		case f.num == 2 && f.wire == wireVarint:
			rawSize = f.value
		case f.num == 3 && f.wire == wireBytes:
			zlibData = f.data
		case f.wire == wireBytes:
			// lzma (4), bzip2 (5), lz4 (6), zstd (7)
			return fmt.Errorf("%w: blob field %d", ErrUnsupportedCompression, f.num)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch {
	case raw != nil:
		return raw, nil
	case zlibData != nil:
		if rawSize == 0 || rawSize > maxBlobSize {
			return nil, fmt.Errorf("%w: implausible raw_size %d", ErrInflate, rawSize)
		}
		return w.inflate(zlibData, int(rawSize))
	default:
		return nil, fmt.Errorf("%w: blob carries no payload", ErrMalformedWire)
	}
}

// inflate decompresses src into the worker's buffer and insists the stream
// holds exactly size bytes.
func (w *Worker) inflate(src []byte, size int) ([]byte, error) {
	if cap(w.inflateBuf) < size {
		w.inflateBuf = make([]byte, size)
	}
	w.inflateBuf = w.inflateBuf[:size]

	w.zlibSrc.Reset(src)
	if w.zlibReader == nil {
		zr, err := zlib.NewReader(&w.zlibSrc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInflate, err)
		}
		w.zlibReader = zr
	} else if err := w.zlibReader.(zlib.Resetter).Reset(&w.zlibSrc, nil); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInflate, err)
	}

	if _, err := io.ReadFull(w.zlibReader, w.inflateBuf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInflate, err)
	}
	var overrun [1]byte
	if n, _ := w.zlibReader.Read(overrun[:]); n != 0 {
		return nil, fmt.Errorf("%w: stream longer than raw_size %d", ErrInflate, size)
	}
	return w.inflateBuf, nil
}
