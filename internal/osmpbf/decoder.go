// Package osmpbf decodes OSM PBF files into batches of nodes, ways and
// relations delivered to caller handlers.
//
// The input file is memory-mapped and framed into blob work items by a
// single sequential pass, then a pool of workers pops items from a shared
// queue and runs each through zlib inflation and the PrimitiveBlock parser.
// All per-block state (string table, accumulators, inflate buffer) is owned
// by the worker, so the only synchronization is the queue mutex and a stop
// flag. Block order is not preserved across workers; handlers see batches
// in whatever order workers finish them.
package osmpbf

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// Options configures a decode. The zero value decodes entity positions
// only, delivers nothing, and runs with the package thread-count setting.
type Options struct {
	// DecodeMetadata populates version/timestamp/changeset on entities.
	DecodeMetadata bool

	// Handlers receive the decoded batches. Nil handlers skip delivery of
	// that kind; the data is still scanned.
	Handlers osm.Handlers

	// Workers overrides the package-level thread count when positive.
	Workers int

	// Logger receives diagnostics, worker goroutines included. Nil means
	// silent.
	Logger *zap.Logger
}

// Decoder is the per-decode state shared by all workers.
type Decoder struct {
	handlers       osm.Handlers
	decodeMetadata bool
	log            *zap.Logger
	header         atomic.Pointer[HeaderBlock]
	stop           atomic.Bool
}

// Header returns the parsed OSMHeader block, or nil before a worker has
// decoded it.
func (d *Decoder) Header() *HeaderBlock {
	return d.header.Load()
}

// Decode runs the full pipeline over the file at path. It returns nil only
// if every block decoded and no handler asked to stop. A false-returning
// handler surfaces as ErrHandlerStop.
func Decode(path string, opts Options) error {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	m, err := openMapped(path)
	if err != nil {
		log.Error("map input", zap.String("path", path), zap.Error(err))
		return err
	}
	defer m.Close()

	items, err := frameBlobs(m.data)
	if err != nil {
		log.Error("frame blobs", zap.String("path", path), zap.Error(err))
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = ThreadCount()
	}
	workers = clampThreads(workers)
	if workers > len(items) {
		workers = len(items)
	}
	log.Debug("decode start",
		zap.String("path", path),
		zap.Int("blocks", len(items)),
		zap.Int("workers", workers),
	)

	d := &Decoder{
		handlers:       opts.Handlers,
		decodeMetadata: opts.DecodeMetadata,
		log:            log,
	}
	queue := &workQueue{items: items}

	if workers == 1 {
		err = d.drain(queue, newWorker(d, 0))
	} else {
		g := new(errgroup.Group)
		for i := 0; i < workers; i++ {
			w := newWorker(d, i)
			g.Go(func() error {
				return d.drain(queue, w)
			})
		}
		err = g.Wait()
	}
	if err != nil {
		log.Error("decode failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// drain pops and processes work items until the queue is empty or another
// worker has failed. The stop flag is what turns one worker's failure into
// a prompt halt for its peers; without it they would keep draining blocks
// whose results nobody wants.
func (d *Decoder) drain(q *workQueue, w *Worker) error {
	for !d.stop.Load() {
		item, ok := q.pop()
		if !ok {
			return nil
		}
		if err := w.processItem(item); err != nil {
			d.stop.Store(true)
			return err
		}
	}
	return nil
}
