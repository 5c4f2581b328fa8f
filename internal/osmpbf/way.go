package osmpbf

import (
	"errors"
	"fmt"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// parseInfo decodes the nested Info message shared by ways and relations.
// All three fields are plain varints.
func parseInfo(buf []byte) (version int32, timestamp int64, changeset int64, err error) {
	err = iterateFields(buf, func(f *field) error {
		if f.wire != wireVarint {
			return nil
		}
		switch f.num {
		case 1:
			version = int32(f.value)
		case 2:
			timestamp = int64(f.value)
		case 3:
			changeset = int64(f.value)
		}
		return nil
	})
	return version, timestamp, changeset, err
}

// readWays decodes every way payload collected from the group, then emits
// one batch. Tags and node refs go into arenas shared across the group's
// ways; each way records spans that are bound to subslices only after the
// retry loop settles, so a mid-group arena reallocation can never leave a
// batch pointing into freed memory.
func (w *Worker) readWays() error {
	w.ways = w.ways[:0]
	w.wayTagSpans = w.wayTagSpans[:0]
	w.wayRefSpans = w.wayRefSpans[:0]
	w.tags.reset()
	w.refs.reset()

	// waysRead survives retries: decoded ways stay accumulated, only the
	// entity that tripped the capacity check is replayed.
	waysRead := 0
	for waysRead < len(w.wayData) {
		err := w.readWay(w.wayData[waysRead])
		if errors.Is(err, errOutOfCapacity) {
			w.tags.rearm()
			w.refs.rearm()
			continue
		}
		if err != nil {
			return err
		}
		waysRead++
	}

	for i := range w.ways {
		w.ways[i].Tags = w.tags.span(w.wayTagSpans[i])
		w.ways[i].NodeRefs = w.refs.span(w.wayRefSpans[i])
	}

	if h := w.dec.handlers.Way; h != nil && len(w.ways) > 0 {
		if !h(&w.Context, w.ways) {
			return ErrHandlerStop
		}
	}
	return nil
}

// readWay decodes a single way into the accumulators. On a detected arena
// growth it rolls its partial appends back and reports errOutOfCapacity so
// the caller can replay it against the rearmed arenas.
func (w *Worker) readWay(buf []byte) error {
	tagBegin := w.tags.len()
	refBegin := w.refs.len()
	w.ikeys = w.ikeys[:0]
	w.ivals = w.ivals[:0]

	var way osm.Way
	err := iterateFields(buf, func(f *field) error {
		var err error
		switch {
		case f.num == 1 && f.wire == wireVarint:
			way.ID = int64(f.value)
		case f.num == 2 && f.wire == wireBytes:
			w.ikeys, err = appendPackedUint32(w.ikeys, f.data)
		case f.num == 3 && f.wire == wireBytes:
			w.ivals, err = appendPackedUint32(w.ivals, f.data)
		case f.num == 4 && f.wire == wireBytes:
			if w.dec.decodeMetadata {
				way.Version, way.Timestamp, way.Changeset, err = parseInfo(f.data)
			}
		case f.num == 8 && f.wire == wireBytes:
			w.refs.items, err = appendPackedSint64(w.refs.items, f.data)
		}
		return err
	})
	if err != nil {
		return err
	}
	if len(w.ikeys) != len(w.ivals) {
		return fmt.Errorf("%w: way %d has %d tag keys, %d values", ErrArity, way.ID, len(w.ikeys), len(w.ivals))
	}

	// resolve deltas in place
	var current int64
	refs := w.refs.items[refBegin:]
	for i := range refs {
		current += refs[i]
		refs[i] = current
	}

	for i := range w.ikeys {
		key, err := w.lookup(w.ikeys[i])
		if err != nil {
			return err
		}
		val, err := w.lookup(w.ivals[i])
		if err != nil {
			return err
		}
		w.tags.add(osm.Tag{Key: key, Value: val})
	}

	if w.tags.grown() || w.refs.grown() {
		w.tags.truncate(tagBegin)
		w.refs.truncate(refBegin)
		return errOutOfCapacity
	}

	w.ways = append(w.ways, way)
	w.wayTagSpans = append(w.wayTagSpans, span{tagBegin, w.tags.len()})
	w.wayRefSpans = append(w.wayRefSpans, span{refBegin, w.refs.len()})
	return nil
}
