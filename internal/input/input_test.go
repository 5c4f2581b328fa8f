package input

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stefankarschti/inputosm/internal/osm"
)

func TestDetectType(t *testing.T) {
	cases := []struct {
		path string
		want FileType
		ok   bool
	}{
		{"map.osm", TypeXML, true},
		{"changes.osc", TypeXML, true},
		{"changes.osc.gz", TypeXML, true},
		{"planet.pbf", TypePBF, true},
		{"planet.osm.pbf", TypePBF, true},
		{"data.txt", TypeUnknown, false},
		{"noextension", TypeUnknown, false},
	}
	for _, tc := range cases {
		got, err := DetectType(tc.path)
		if got != tc.want {
			t.Errorf("DetectType(%q) = %d, want %d", tc.path, got, tc.want)
		}
		if (err == nil) != tc.ok {
			t.Errorf("DetectType(%q) err = %v", tc.path, err)
		}
	}
}

func TestFileUnknownType(t *testing.T) {
	if File("somewhere/data.txt", Options{}) {
		t.Error("File accepted an unknown extension")
	}
}

func TestFileMissingInput(t *testing.T) {
	if File(filepath.Join(t.TempDir(), "missing.pbf"), Options{}) {
		t.Error("File accepted a missing input")
	}
}

func TestFileRoutesXML(t *testing.T) {
	doc := `<osm><node id="7" lat="1.0" lon="2.0"/></osm>`
	path := filepath.Join(t.TempDir(), "tiny.osm")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	var ids []int64
	ok := File(path, Options{
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, nodes []osm.Node) bool {
				for _, n := range nodes {
					ids = append(ids, n.ID)
				}
				return true
			},
		},
	})
	if !ok {
		t.Fatal("File returned false")
	}
	if len(ids) != 1 || ids[0] != 7 {
		t.Errorf("ids = %v", ids)
	}
}

func TestFileHandlerStop(t *testing.T) {
	doc := `<osm><node id="7" lat="1.0" lon="2.0"/></osm>`
	path := filepath.Join(t.TempDir(), "tiny.osm")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}
	ok := File(path, Options{
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, nodes []osm.Node) bool { return false },
		},
	})
	if ok {
		t.Error("File reported success after a handler stop")
	}
}
