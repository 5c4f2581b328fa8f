package osmpbf

import "fmt"

// PrimitiveBlock field numbers.
const (
	blockStringTable     = 1
	blockPrimitiveGroup  = 2
	blockGranularity     = 17
	blockDateGranularity = 18
	blockLatOffset       = 19
	blockLonOffset       = 20
)

// readPrimitiveBlock drives one OSMData payload: it clears the worker's
// string table, then walks the block's fields in a single pass, ingesting
// string-table entries as they appear and decoding groups in place. The PBF
// contract puts field 1 before field 2, so the table is complete before the
// first group needs it.
func (w *Worker) readPrimitiveBlock(buf []byte) error {
	w.st.init(len(buf))
	w.granularity = 100
	w.dateGranularity = 1000
	w.latOffset = 0
	w.lonOffset = 0
	return iterateFields(buf, func(f *field) error {
		switch {
		case f.num == blockStringTable && f.wire == wireBytes:
			return w.readStringTable(f.data)
		case f.num == blockPrimitiveGroup && f.wire == wireBytes:
			return w.readPrimitiveGroup(f.data)
		case f.num == blockGranularity && f.wire == wireVarint:
			if f.value != 0 {
				w.granularity = int64(f.value)
			}
		case f.num == blockDateGranularity && f.wire == wireVarint:
			if f.value != 0 {
				w.dateGranularity = int64(f.value)
			}
		case f.num == blockLatOffset && f.wire == wireVarint:
			w.latOffset = int64(f.value)
		case f.num == blockLonOffset && f.wire == wireVarint:
			w.lonOffset = int64(f.value)
		}
		return nil
	})
}

// readStringTable ingests the nested string-table message: repeated bytes
// at field 1, indexed in file order.
func (w *Worker) readStringTable(buf []byte) error {
	return iterateFields(buf, func(f *field) error {
		if f.num == 1 && f.wire == wireBytes {
			w.st.add(f.data)
		}
		return nil
	})
}

// readPrimitiveGroup collects the group's sub-payloads in one field pass,
// then decodes kinds in their file order: dense nodes, ways, relations.
// Each kind emits its batch before the next kind starts, so the shared tag
// arena can be reset between kinds. Sparse nodes (field 1) and changesets
// (field 5) are not produced.
func (w *Worker) readPrimitiveGroup(buf []byte) error {
	w.denseData = nil
	w.wayData = w.wayData[:0]
	w.relData = w.relData[:0]
	err := iterateFields(buf, func(f *field) error {
		if f.wire != wireBytes {
			return fmt.Errorf("%w: group field %d has wire type %d", ErrMalformedWire, f.num, f.wire)
		}
		switch f.num {
		case 2:
			w.denseData = f.data
		case 3:
			w.wayData = append(w.wayData, f.data)
		case 4:
			w.relData = append(w.relData, f.data)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if w.denseData != nil {
		if err := w.readDenseNodes(w.denseData); err != nil {
			return err
		}
	}
	if len(w.wayData) > 0 {
		if err := w.readWays(); err != nil {
			return err
		}
	}
	if len(w.relData) > 0 {
		if err := w.readRelations(); err != nil {
			return err
		}
	}
	return nil
}
