package osmpbf

import (
	"errors"
	"testing"
)

func TestStringTable(t *testing.T) {
	var st stringTable
	st.init(64)
	st.add(nil) // index 0 is the reserved empty entry
	st.add([]byte("name"))
	st.add([]byte("Test"))
	st.add([]byte(""))

	if st.count() != 4 {
		t.Fatalf("count = %d, want 4", st.count())
	}
	for i, want := range []string{"", "name", "Test", ""} {
		got, err := st.get(uint32(i))
		if err != nil {
			t.Fatalf("get(%d): %v", i, err)
		}
		if got != want {
			t.Errorf("get(%d) = %q, want %q", i, got, want)
		}
	}

	if _, err := st.get(4); !errors.Is(err, ErrMalformedWire) {
		t.Errorf("out-of-range get: %v, want ErrMalformedWire", err)
	}
}

func TestStringTableInitClears(t *testing.T) {
	var st stringTable
	st.init(0)
	st.add([]byte("stale"))
	st.init(16)
	if st.count() != 0 {
		t.Fatalf("count after init = %d, want 0", st.count())
	}
	st.add([]byte("fresh"))
	got, err := st.get(0)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "fresh" {
		t.Errorf("get(0) = %q, want %q", got, "fresh")
	}
}

func TestReadStringTableMessage(t *testing.T) {
	w := &Worker{}
	if err := w.readStringTable(msg(
		stringField(1, ""),
		stringField(1, "highway"),
		stringField(1, "residential"),
	)); err != nil {
		t.Fatalf("readStringTable: %v", err)
	}
	if w.st.count() != 3 {
		t.Fatalf("count = %d, want 3", w.st.count())
	}
	got, err := w.st.get(1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != "highway" {
		t.Errorf("get(1) = %q", got)
	}
}
