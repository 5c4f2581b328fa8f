package osmxml

import (
	"errors"
	"strings"
	"testing"

	"github.com/stefankarschti/inputosm/internal/osm"
)

func TestParseOSM(t *testing.T) {
	osmData := `<?xml version="1.0" encoding="UTF-8"?>
<osm version="0.6" generator="test">
  <node id="1" lat="43.7384" lon="7.4246" version="2" changeset="123" timestamp="2024-01-15T12:00:00Z">
    <tag k="name" v="Test Node"/>
    <tag k="amenity" v="cafe"/>
  </node>
  <node id="2" lat="-1.5" lon="100.25"/>
  <way id="100" version="1" changeset="124">
    <nd ref="1"/>
    <nd ref="2"/>
    <nd ref="3"/>
    <tag k="highway" v="primary"/>
  </way>
  <relation id="200" version="3">
    <member type="node" ref="1" role="stop"/>
    <member type="way" ref="100" role=""/>
    <tag k="type" v="route"/>
  </relation>
</osm>`

	var nodes []osm.Node
	var ways []osm.Way
	var relations []osm.Relation
	parser := NewParser(Options{
		DecodeMetadata: true,
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, batch []osm.Node) bool {
				if ctx.Mode != osm.ModeBulk {
					t.Errorf("node mode = %d, want bulk", ctx.Mode)
				}
				for _, n := range batch {
					n.Tags = append([]osm.Tag(nil), n.Tags...)
					nodes = append(nodes, n)
				}
				return true
			},
			Way: func(ctx *osm.Context, batch []osm.Way) bool {
				for _, w := range batch {
					w.Tags = append([]osm.Tag(nil), w.Tags...)
					w.NodeRefs = append([]int64(nil), w.NodeRefs...)
					ways = append(ways, w)
				}
				return true
			},
			Relation: func(ctx *osm.Context, batch []osm.Relation) bool {
				for _, r := range batch {
					r.Tags = append([]osm.Tag(nil), r.Tags...)
					r.Members = append([]osm.Member(nil), r.Members...)
					relations = append(relations, r)
				}
				return true
			},
		},
	})

	if err := parser.Parse(strings.NewReader(osmData)); err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if len(nodes) != 2 {
		t.Fatalf("got %d nodes, want 2", len(nodes))
	}
	n := nodes[0]
	if n.ID != 1 {
		t.Errorf("node id = %d", n.ID)
	}
	if n.RawLatitude != 437384000 || n.RawLongitude != 74246000 {
		t.Errorf("node position = %d, %d", n.RawLatitude, n.RawLongitude)
	}
	if n.Version != 2 || n.Changeset != 123 {
		t.Errorf("node metadata = %d/%d", n.Version, n.Changeset)
	}
	if n.Timestamp != 1705320000 { // 2024-01-15T12:00:00Z
		t.Errorf("node timestamp = %d", n.Timestamp)
	}
	if len(n.Tags) != 2 || n.Tags[0].Key != "name" || n.Tags[1].Value != "cafe" {
		t.Errorf("node tags = %v", n.Tags)
	}
	if nodes[1].RawLatitude != -15000000 || nodes[1].RawLongitude != 1002500000 {
		t.Errorf("node 2 position = %d, %d", nodes[1].RawLatitude, nodes[1].RawLongitude)
	}

	if len(ways) != 1 {
		t.Fatalf("got %d ways, want 1", len(ways))
	}
	w := ways[0]
	if w.ID != 100 || len(w.NodeRefs) != 3 || w.NodeRefs[2] != 3 {
		t.Errorf("way = %+v", w)
	}
	if len(w.Tags) != 1 || w.Tags[0].Key != "highway" {
		t.Errorf("way tags = %v", w.Tags)
	}

	if len(relations) != 1 {
		t.Fatalf("got %d relations, want 1", len(relations))
	}
	r := relations[0]
	if r.ID != 200 || len(r.Members) != 2 {
		t.Fatalf("relation = %+v", r)
	}
	if r.Members[0].Type != osm.NodeMember || r.Members[0].ID != 1 || r.Members[0].Role != "stop" {
		t.Errorf("member 0 = %+v", r.Members[0])
	}
	if r.Members[1].Type != osm.WayMember || r.Members[1].Role != "" {
		t.Errorf("member 1 = %+v", r.Members[1])
	}

	stats := parser.Stats()
	if stats.Nodes != 2 || stats.Ways != 1 || stats.Relations != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestParseOSCModes(t *testing.T) {
	oscData := `<?xml version="1.0" encoding="UTF-8"?>
<osmChange version="0.6" generator="test">
  <create>
    <node id="1" lat="1.0" lon="2.0"/>
  </create>
  <modify>
    <node id="2" lat="3.0" lon="4.0"/>
  </modify>
  <delete>
    <node id="3" lat="0.0" lon="0.0"/>
  </delete>
</osmChange>`

	var modes []osm.Mode
	parser := NewParser(Options{
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, batch []osm.Node) bool {
				modes = append(modes, ctx.Mode)
				return true
			},
		},
	})
	if err := parser.Parse(strings.NewReader(oscData)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []osm.Mode{osm.ModeCreate, osm.ModeModify, osm.ModeDelete}
	if len(modes) != len(want) {
		t.Fatalf("modes = %v, want %v", modes, want)
	}
	for i := range want {
		if modes[i] != want[i] {
			t.Errorf("modes[%d] = %d, want %d", i, modes[i], want[i])
		}
	}
}

func TestParseMetadataSkipped(t *testing.T) {
	doc := `<osm><node id="1" lat="1.0" lon="2.0" version="5" changeset="9" timestamp="2024-01-15T12:00:00Z"/></osm>`
	parser := NewParser(Options{
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, batch []osm.Node) bool {
				n := batch[0]
				if n.Version != 0 || n.Timestamp != 0 || n.Changeset != 0 {
					t.Errorf("metadata populated without request: %+v", n)
				}
				return true
			},
		},
	})
	if err := parser.Parse(strings.NewReader(doc)); err != nil {
		t.Fatalf("Parse: %v", err)
	}
}

func TestHandlerStops(t *testing.T) {
	doc := `<osm>
  <node id="1" lat="1.0" lon="2.0"/>
  <node id="2" lat="1.0" lon="2.0"/>
</osm>`
	calls := 0
	parser := NewParser(Options{
		Handlers: osm.Handlers{
			Node: func(ctx *osm.Context, batch []osm.Node) bool {
				calls++
				return false
			},
		},
	})
	err := parser.Parse(strings.NewReader(doc))
	if !errors.Is(err, ErrStopped) {
		t.Fatalf("got %v, want ErrStopped", err)
	}
	if calls != 1 {
		t.Errorf("handler called %d times, want 1", calls)
	}
}
