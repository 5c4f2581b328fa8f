package osmpbf

import (
	"errors"
	"fmt"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// readRelations mirrors readWays: decode every relation payload from the
// group with the arena retry protocol, bind spans, emit one batch.
func (w *Worker) readRelations() error {
	w.relations = w.relations[:0]
	w.relTagSpans = w.relTagSpans[:0]
	w.relMemSpans = w.relMemSpans[:0]
	w.tags.reset()
	w.members.reset()

	relationsRead := 0
	for relationsRead < len(w.relData) {
		err := w.readRelation(w.relData[relationsRead])
		if errors.Is(err, errOutOfCapacity) {
			w.tags.rearm()
			w.members.rearm()
			continue
		}
		if err != nil {
			return err
		}
		relationsRead++
	}

	for i := range w.relations {
		w.relations[i].Tags = w.tags.span(w.relTagSpans[i])
		w.relations[i].Members = w.members.span(w.relMemSpans[i])
	}

	if h := w.dec.handlers.Relation; h != nil && len(w.relations) > 0 {
		if !h(&w.Context, w.relations) {
			return ErrHandlerStop
		}
	}
	return nil
}

func (w *Worker) readRelation(buf []byte) error {
	tagBegin := w.tags.len()
	memBegin := w.members.len()
	w.ikeys = w.ikeys[:0]
	w.ivals = w.ivals[:0]
	w.iroles = w.iroles[:0]
	w.itypes = w.itypes[:0]
	w.memberIDs = w.memberIDs[:0]

	var rel osm.Relation
	err := iterateFields(buf, func(f *field) error {
		var err error
		switch {
		case f.num == 1 && f.wire == wireVarint:
			rel.ID = int64(f.value)
		case f.num == 2 && f.wire == wireBytes:
			w.ikeys, err = appendPackedUint32(w.ikeys, f.data)
		case f.num == 3 && f.wire == wireBytes:
			w.ivals, err = appendPackedUint32(w.ivals, f.data)
		case f.num == 4 && f.wire == wireBytes:
			if w.dec.decodeMetadata {
				rel.Version, rel.Timestamp, rel.Changeset, err = parseInfo(f.data)
			}
		case f.num == 8 && f.wire == wireBytes:
			w.iroles, err = appendPackedUint32(w.iroles, f.data)
		case f.num == 9 && f.wire == wireBytes:
			w.memberIDs, err = appendPackedSint64(w.memberIDs, f.data)
		case f.num == 10 && f.wire == wireBytes:
			w.itypes, err = appendPackedUint32(w.itypes, f.data)
		}
		return err
	})
	if err != nil {
		return err
	}
	if len(w.ikeys) != len(w.ivals) {
		return fmt.Errorf("%w: relation %d has %d tag keys, %d values", ErrArity, rel.ID, len(w.ikeys), len(w.ivals))
	}
	if len(w.memberIDs) != len(w.iroles) || len(w.memberIDs) != len(w.itypes) {
		return fmt.Errorf("%w: relation %d members %d ids, %d roles, %d types",
			ErrArity, rel.ID, len(w.memberIDs), len(w.iroles), len(w.itypes))
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

	var current int64
	for i := range w.memberIDs {
		if w.itypes[i] > uint32(osm.RelationMember) {
			return fmt.Errorf("%w: relation %d member type %d", ErrMalformedWire, rel.ID, w.itypes[i])
		}
		role, err := w.lookup(w.iroles[i])
		if err != nil {
			return err
		}
		current += w.memberIDs[i]
		w.members.add(osm.Member{
			Type: osm.MemberType(w.itypes[i]),
			ID:   current,
			Role: role,
		})
	}

	if w.tags.grown() || w.members.grown() {
		w.tags.truncate(tagBegin)
		w.members.truncate(memBegin)
		return errOutOfCapacity
	}

	w.relations = append(w.relations, rel)
	w.relTagSpans = append(w.relTagSpans, span{tagBegin, w.tags.len()})
	w.relMemSpans = append(w.relMemSpans, span{memBegin, w.members.len()})
	return nil
}
