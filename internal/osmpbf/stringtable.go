package osmpbf

import (
	"fmt"
	"unsafe"
)

// stringTable holds one block's strings in a single append-only byte buffer
// with a parallel offset index. get returns views into the buffer without
// copying, which is why the table must be fully ingested before the first
// get: the buffer stops moving once adds are done, and entry 0 is the empty
// string per the PBF convention.
//
// The table is worker-owned and reused; init clears it for the next block,
// invalidating every string handed out for the previous one.
type stringTable struct {
	buf []byte
	off []uint32
	end []uint32
}

func (st *stringTable) init(hint int) {
	st.buf = st.buf[:0]
	st.off = st.off[:0]
	st.end = st.end[:0]
	if hint > cap(st.buf) {
		st.buf = make([]byte, 0, hint)
	}
}

func (st *stringTable) add(b []byte) {
	st.off = append(st.off, uint32(len(st.buf)))
	st.buf = append(st.buf, b...)
	st.end = append(st.end, uint32(len(st.buf)))
}

func (st *stringTable) count() int {
	return len(st.off)
}

// get returns entry i as a string aliasing the table's buffer.
func (st *stringTable) get(i uint32) (string, error) {
	if int(i) >= len(st.off) {
		return "", fmt.Errorf("%w: string index %d not below table size %d", ErrMalformedWire, i, len(st.off))
	}
	o, e := st.off[i], st.end[i]
	if o == e {
		return "", nil
	}
	return unsafe.String(&st.buf[o], int(e-o)), nil
}
