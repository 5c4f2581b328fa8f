package osmpbf

import (
	"fmt"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// readDenseInfo decodes the nested DenseInfo message: versions are plain
// packed varints, timestamps and changesets are packed delta-encoded
// zig-zags.
func (w *Worker) readDenseInfo(buf []byte) error {
	return iterateFields(buf, func(f *field) error {
		if f.wire != wireBytes {
			return nil
		}
		var err error
		switch f.num {
		case 1:
			w.versions, err = appendPackedUint32(w.versions, f.data)
		case 2:
			w.timestamps, err = appendPackedSint64(w.timestamps, f.data)
		case 3:
			w.changesets, err = appendPackedSint64(w.changesets, f.data)
		}
		return err
	})
}

// readDenseNodes decodes one DenseNodes message: parallel delta-encoded
// id/lat/lon columns, the optional DenseInfo, and the interleaved
// key/value tag-index stream with a zero sentinel after each node's tags.
// The batch is emitted once, covering every node in the group.
func (w *Worker) readDenseNodes(buf []byte) error {
	meta := w.dec.decodeMetadata
	w.ids = w.ids[:0]
	w.lats = w.lats[:0]
	w.lons = w.lons[:0]
	w.itags = w.itags[:0]
	w.versions = w.versions[:0]
	w.timestamps = w.timestamps[:0]
	w.changesets = w.changesets[:0]

	err := iterateFields(buf, func(f *field) error {
		if f.wire != wireBytes {
			return nil
		}
		var err error
		switch f.num {
		case 1:
			w.ids, err = appendPackedSint64(w.ids, f.data)
		case 5:
			if meta {
				err = w.readDenseInfo(f.data)
			}
		case 8:
			w.lats, err = appendPackedSint64(w.lats, f.data)
		case 9:
			w.lons, err = appendPackedSint64(w.lons, f.data)
		case 10:
			w.itags, err = appendPackedUint32(w.itags, f.data)
		}
		return err
	})
	if err != nil {
		return err
	}

	n := len(w.ids)
	if len(w.lats) != n || len(w.lons) != n {
		return fmt.Errorf("%w: dense nodes %d ids, %d lats, %d lons", ErrArity, n, len(w.lats), len(w.lons))
	}
	if meta && (len(w.versions) != n || len(w.timestamps) != n || len(w.changesets) != n) {
		return fmt.Errorf("%w: dense info %d/%d/%d entries for %d nodes",
			ErrArity, len(w.versions), len(w.timestamps), len(w.changesets), n)
	}

	// Run the delta sums; the accumulators reset per group, not per node.
	// Coordinates stay in granularity units; block offsets (nanodegrees)
	// are folded in after converting to the same units. Dense timestamps
	// are in date-granularity millisecond units and exposed as seconds.
	latBase := w.latOffset / w.granularity
	lonBase := w.lonOffset / w.granularity
	w.nodes = w.nodes[:0]
	var id, lat, lon, ts, cs int64
	for i := 0; i < n; i++ {
		id += w.ids[i]
		lat += w.lats[i]
		lon += w.lons[i]
		node := osm.Node{ID: id, RawLatitude: latBase + lat, RawLongitude: lonBase + lon}
		if meta {
			ts += w.timestamps[i]
			cs += w.changesets[i]
			node.Version = int32(w.versions[i])
			node.Timestamp = ts * w.dateGranularity / 1000
			node.Changeset = cs
		}
		w.nodes = append(w.nodes, node)
	}

	// Walk the interleaved tag-index stream into the tag arena. If the
	// arena grows mid-scan the whole stream is redone from an empty arena;
	// the second pass cannot grow it again, so this settles in at most two
	// passes per group.
	for {
		w.tags.reset()
		w.nodeTagSpans = w.nodeTagSpans[:0]
		it := 0
		for range w.nodes {
			begin := w.tags.len()
			for it < len(w.itags) {
				k := w.itags[it]
				if k == 0 {
					it++
					break
				}
				if it+1 >= len(w.itags) {
					return fmt.Errorf("%w: dense tag stream ends inside a pair", ErrMalformedWire)
				}
				v := w.itags[it+1]
				it += 2
				key, err := w.lookup(k)
				if err != nil {
					return err
				}
				val, err := w.lookup(v)
				if err != nil {
					return err
				}
				w.tags.add(osm.Tag{Key: key, Value: val})
			}
			w.nodeTagSpans = append(w.nodeTagSpans, span{begin, w.tags.len()})
		}
		if !w.tags.grown() {
			break
		}
	}
	for i := range w.nodes {
		w.nodes[i].Tags = w.tags.span(w.nodeTagSpans[i])
	}

	if h := w.dec.handlers.Node; h != nil && len(w.nodes) > 0 {
		if !h(&w.Context, w.nodes) {
			return ErrHandlerStop
		}
	}
	return nil
}
