package osmpbf

import (
	"bytes"
	"fmt"
	"io"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// Worker owns all per-block decode state for one pool slot: the string
// table, the inflate buffer, the entity accumulators and the child arenas.
// Nothing in here is shared between workers, so none of it is locked. The
// embedded osm.Context is what handlers see; ThreadIndex is fixed at pool
// start, BlockIndex is rewritten before each blob.
type Worker struct {
	osm.Context

	dec *Decoder

	// blob stage
	inflateBuf []byte
	zlibSrc    bytes.Reader
	zlibReader io.ReadCloser

	// block stage
	st              stringTable
	granularity     int64
	dateGranularity int64
	latOffset       int64
	lonOffset       int64

	// group payloads collected in field order
	denseData []byte
	wayData   [][]byte
	relData   [][]byte

	// packed-array scratch
	ids        []int64
	lats       []int64
	lons       []int64
	itags      []uint32
	versions   []uint32
	timestamps []int64
	changesets []int64
	ikeys      []uint32
	ivals      []uint32
	iroles     []uint32
	itypes     []uint32
	memberIDs  []int64

	// accumulators and shared child arenas
	nodes        []osm.Node
	ways         []osm.Way
	relations    []osm.Relation
	tags         arena[osm.Tag]
	refs         arena[int64]
	members      arena[osm.Member]
	nodeTagSpans []span
	wayTagSpans  []span
	wayRefSpans  []span
	relTagSpans  []span
	relMemSpans  []span
}

func newWorker(dec *Decoder, index int) *Worker {
	return &Worker{
		Context: osm.Context{ThreadIndex: index},
		dec:     dec,
	}
}

// processItem runs one framed blob through inflate and the parser matching
// its kind.
func (w *Worker) processItem(item workItem) error {
	w.BlockIndex = item.blockIndex
	data, err := w.blobData(item.data)
	if err != nil {
		return fmt.Errorf("block %d: %w", item.blockIndex, err)
	}
	switch item.kind {
	case headerBlob:
		err = w.readHeaderBlock(data)
	default:
		err = w.readPrimitiveBlock(data)
	}
	if err != nil {
		return fmt.Errorf("block %d: %w", item.blockIndex, err)
	}
	return nil
}

// lookup resolves a string-table index, failing the block on out-of-range
// indices.
func (w *Worker) lookup(i uint32) (string, error) {
	return w.st.get(i)
}
