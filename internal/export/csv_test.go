package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"github.com/stefankarschti/inputosm/internal/osm"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestCSVWriter(t *testing.T) {
	dir := t.TempDir()
	w, err := NewCSVWriter(dir)
	if err != nil {
		t.Fatalf("NewCSVWriter: %v", err)
	}
	h := w.Handlers()
	ctx := &osm.Context{}

	nodes := []osm.Node{
		{ID: 100, RawLatitude: 407128000, RawLongitude: -740060000, Tags: []osm.Tag{{Key: "name", Value: "Test"}}},
		{ID: 101, RawLatitude: 407129000, RawLongitude: -740058000},
	}
	if !h.Node(ctx, nodes) {
		t.Fatal("node handler returned false")
	}
	ways := []osm.Way{
		{ID: 10, NodeRefs: []int64{1, 3, 2}, Tags: []osm.Tag{{Key: "highway", Value: "residential"}}},
	}
	if !h.Way(ctx, ways) {
		t.Fatal("way handler returned false")
	}
	relations := []osm.Relation{
		{ID: 20, Members: []osm.Member{
			{Type: osm.NodeMember, ID: 1, Role: "stop"},
			{Type: osm.WayMember, ID: 10, Role: "route"},
		}},
	}
	if !h.Relation(ctx, relations) {
		t.Fatal("relation handler returned false")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	nodeRows := readCSV(t, filepath.Join(dir, "nodes.csv"))
	if len(nodeRows) != 3 {
		t.Fatalf("nodes.csv has %d rows, want 3", len(nodeRows))
	}
	if nodeRows[1][0] != "100" || nodeRows[1][1] != "40.7128000" || nodeRows[1][2] != "-74.0060000" {
		t.Errorf("node row = %v", nodeRows[1])
	}
	if nodeRows[1][6] != "name=Test" {
		t.Errorf("node tags column = %q", nodeRows[1][6])
	}
	if nodeRows[2][6] != "" {
		t.Errorf("untagged node tags column = %q", nodeRows[2][6])
	}

	wayRows := readCSV(t, filepath.Join(dir, "ways.csv"))
	if len(wayRows) != 2 {
		t.Fatalf("ways.csv has %d rows, want 2", len(wayRows))
	}
	if wayRows[1][0] != "10" || wayRows[1][1] != "1 3 2" || wayRows[1][5] != "highway=residential" {
		t.Errorf("way row = %v", wayRows[1])
	}

	relRows := readCSV(t, filepath.Join(dir, "relations.csv"))
	if len(relRows) != 2 {
		t.Fatalf("relations.csv has %d rows, want 2", len(relRows))
	}
	if relRows[1][0] != "20" || relRows[1][1] != "node:1:stop way:10:route" {
		t.Errorf("relation row = %v", relRows[1])
	}

	if w.Nodes.Load() != 2 || w.Ways.Load() != 1 || w.Relations.Load() != 1 {
		t.Errorf("counters = %d/%d/%d", w.Nodes.Load(), w.Ways.Load(), w.Relations.Load())
	}
}
