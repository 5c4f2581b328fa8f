package osmpbf

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"google.golang.org/protobuf/encoding/protowire"
)

// Test fixtures are assembled bottom-up with protowire append helpers:
// messages are built as byte slices and nested with bytesField.

func varintField(num int, v uint64) []byte {
	b := protowire.AppendTag(nil, protowire.Number(num), protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func bytesField(num int, payload []byte) []byte {
	b := protowire.AppendTag(nil, protowire.Number(num), protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func stringField(num int, s string) []byte {
	return bytesField(num, []byte(s))
}

func packedSint(vals ...int64) []byte {
	var b []byte
	for _, v := range vals {
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v))
	}
	return b
}

func packedUint(vals ...uint64) []byte {
	var b []byte
	for _, v := range vals {
		b = protowire.AppendVarint(b, v)
	}
	return b
}

func msg(fields ...[]byte) []byte {
	var b []byte
	for _, f := range fields {
		b = append(b, f...)
	}
	return b
}

func buildStringTable(entries ...string) []byte {
	var fields [][]byte
	for _, s := range entries {
		fields = append(fields, stringField(1, s))
	}
	return bytesField(1, msg(fields...))
}

// buildDenseGroup wires the dense-node columns into a PrimitiveGroup
// message (field 2).
func buildDenseGroup(ids, lats, lons []int64, itags []uint64, info []byte) []byte {
	dense := msg(
		bytesField(1, packedSint(ids...)),
		bytesField(8, packedSint(lats...)),
		bytesField(9, packedSint(lons...)),
	)
	if info != nil {
		dense = append(dense, bytesField(5, info)...)
	}
	if len(itags) > 0 {
		dense = append(dense, bytesField(10, packedUint(itags...))...)
	}
	return bytesField(2, dense)
}

func buildDenseInfo(versions []uint64, timestamps, changesets []int64) []byte {
	return msg(
		bytesField(1, packedUint(versions...)),
		bytesField(2, packedSint(timestamps...)),
		bytesField(3, packedSint(changesets...)),
	)
}

func buildInfo(version uint64, timestamp, changeset uint64) []byte {
	return msg(
		varintField(1, version),
		varintField(2, timestamp),
		varintField(3, changeset),
	)
}

type wayFixture struct {
	id    uint64
	keys  []uint64
	vals  []uint64
	refs  []int64 // delta-encoded, as on the wire
	info  []byte
}

func buildWayGroup(ways ...wayFixture) []byte {
	var fields [][]byte
	for _, w := range ways {
		way := varintField(1, w.id)
		if len(w.keys) > 0 {
			way = append(way, bytesField(2, packedUint(w.keys...))...)
		}
		if len(w.vals) > 0 {
			way = append(way, bytesField(3, packedUint(w.vals...))...)
		}
		if w.info != nil {
			way = append(way, bytesField(4, w.info)...)
		}
		if len(w.refs) > 0 {
			way = append(way, bytesField(8, packedSint(w.refs...))...)
		}
		fields = append(fields, bytesField(3, way))
	}
	return msg(fields...)
}

type relationFixture struct {
	id    uint64
	keys  []uint64
	vals  []uint64
	roles []uint64
	refs  []int64 // delta-encoded
	types []uint64
	info  []byte
}

func buildRelationGroup(rels ...relationFixture) []byte {
	var fields [][]byte
	for _, r := range rels {
		rel := varintField(1, r.id)
		if len(r.keys) > 0 {
			rel = append(rel, bytesField(2, packedUint(r.keys...))...)
		}
		if len(r.vals) > 0 {
			rel = append(rel, bytesField(3, packedUint(r.vals...))...)
		}
		if r.info != nil {
			rel = append(rel, bytesField(4, r.info)...)
		}
		if len(r.roles) > 0 {
			rel = append(rel, bytesField(8, packedUint(r.roles...))...)
		}
		if len(r.refs) > 0 {
			rel = append(rel, bytesField(9, packedSint(r.refs...))...)
		}
		if len(r.types) > 0 {
			rel = append(rel, bytesField(10, packedUint(r.types...))...)
		}
		fields = append(fields, bytesField(4, rel))
	}
	return msg(fields...)
}

func buildPrimitiveBlock(stringTable []byte, groups ...[]byte) []byte {
	block := append([]byte{}, stringTable...)
	for _, g := range groups {
		block = append(block, bytesField(2, g)...)
	}
	block = append(block, varintField(17, 100)...)
	block = append(block, varintField(18, 1000)...)
	return block
}

func buildHeaderBlockMsg(features ...string) []byte {
	var fields [][]byte
	for _, f := range features {
		fields = append(fields, stringField(4, f))
	}
	fields = append(fields, stringField(16, "inputosm-test"))
	return msg(fields...)
}

// rawBlob frames a payload as an uncompressed Blob behind a BlobHeader of
// the given type.
func rawBlob(typ string, payload []byte) []byte {
	blob := msg(
		bytesField(1, payload),
		varintField(2, uint64(len(payload))),
	)
	return frameBlob(typ, blob)
}

// zlibBlob frames a payload as a zlib-compressed Blob.
func zlibBlob(t *testing.T, typ string, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		t.Fatalf("compress fixture: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("compress fixture: %v", err)
	}
	blob := msg(
		varintField(2, uint64(len(payload))),
		bytesField(3, buf.Bytes()),
	)
	return frameBlob(typ, blob)
}

func frameBlob(typ string, blob []byte) []byte {
	header := msg(
		stringField(1, typ),
		varintField(3, uint64(len(blob))),
	)
	out := make([]byte, 4, 4+len(header)+len(blob))
	binary.BigEndian.PutUint32(out, uint32(len(header)))
	out = append(out, header...)
	out = append(out, blob...)
	return out
}

// writePBF writes a complete file: a header block followed by the given
// framed data blocks.
func writePBF(t *testing.T, blocks ...[]byte) string {
	t.Helper()
	file := msg(rawBlob("OSMHeader", buildHeaderBlockMsg("OsmSchema-V0.6", "DenseNodes")))
	for _, b := range blocks {
		file = append(file, b...)
	}
	path := filepath.Join(t.TempDir(), "test.osm.pbf")
	if err := os.WriteFile(path, file, 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

// scenarioDenseBlock is the minimal two-node dense block used by several
// tests: ids 100 and 101, node 100 tagged name=Test.
func scenarioDenseBlock() []byte {
	st := buildStringTable("", "name", "Test")
	group := buildDenseGroup(
		[]int64{100, 1},
		[]int64{407128000, 1000},
		[]int64{-740060000, 2000},
		[]uint64{1, 2, 0, 0},
		nil,
	)
	return buildPrimitiveBlock(st, group)
}
