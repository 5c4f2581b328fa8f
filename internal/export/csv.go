// Package export provides downstream consumers for decoded OSM entities:
// per-kind CSV files and a PostgreSQL loader. Both plug into the input
// handler contract and tolerate being called from multiple decode workers.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// rawScale converts raw coordinates (granularity units of 100 nanodegrees)
// to degrees.
const rawScale = 1e-7

// CSVWriter streams entities into nodes.csv, ways.csv and relations.csv
// under a directory. Each file has its own lock, so node and way batches
// from different workers do not serialize against each other.
type CSVWriter struct {
	nodeFile *os.File
	wayFile  *os.File
	relFile  *os.File

	nodeMu sync.Mutex
	wayMu  sync.Mutex
	relMu  sync.Mutex

	nodeCSV *csv.Writer
	wayCSV  *csv.Writer
	relCSV  *csv.Writer

	Nodes     atomic.Int64
	Ways      atomic.Int64
	Relations atomic.Int64
}

// NewCSVWriter creates the output directory and the three files with
// header rows.
func NewCSVWriter(dir string) (*CSVWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	w := &CSVWriter{}
	var err error
	open := func(name string, header []string) (*os.File, *csv.Writer, error) {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, fmt.Errorf("create %s: %w", name, err)
		}
		cw := csv.NewWriter(f)
		if err := cw.Write(header); err != nil {
			f.Close()
			return nil, nil, err
		}
		return f, cw, nil
	}
	if w.nodeFile, w.nodeCSV, err = open("nodes.csv", []string{"id", "lat", "lon", "version", "timestamp", "changeset", "tags"}); err != nil {
		return nil, err
	}
	if w.wayFile, w.wayCSV, err = open("ways.csv", []string{"id", "node_refs", "version", "timestamp", "changeset", "tags"}); err != nil {
		w.Close()
		return nil, err
	}
	if w.relFile, w.relCSV, err = open("relations.csv", []string{"id", "members", "version", "timestamp", "changeset", "tags"}); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Handlers returns the handler set feeding this writer.
func (w *CSVWriter) Handlers() osm.Handlers {
	return osm.Handlers{
		Node:     w.writeNodes,
		Way:      w.writeWays,
		Relation: w.writeRelations,
	}
}

// Close flushes and closes all three files.
func (w *CSVWriter) Close() error {
	var firstErr error
	for _, pair := range []struct {
		cw *csv.Writer
		f  *os.File
	}{{w.nodeCSV, w.nodeFile}, {w.wayCSV, w.wayFile}, {w.relCSV, w.relFile}} {
		if pair.f == nil {
			continue
		}
		if pair.cw != nil {
			pair.cw.Flush()
			if err := pair.cw.Error(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		if err := pair.f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func formatTags(tags []osm.Tag) string {
	if len(tags) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, t := range tags {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(t.Key)
		sb.WriteByte('=')
		sb.WriteString(t.Value)
	}
	return sb.String()
}

func (w *CSVWriter) writeNodes(_ *osm.Context, nodes []osm.Node) bool {
	w.nodeMu.Lock()
	defer w.nodeMu.Unlock()
	for i := range nodes {
		n := &nodes[i]
		rec := []string{
			strconv.FormatInt(n.ID, 10),
			strconv.FormatFloat(float64(n.RawLatitude)*rawScale, 'f', 7, 64),
			strconv.FormatFloat(float64(n.RawLongitude)*rawScale, 'f', 7, 64),
			strconv.FormatInt(int64(n.Version), 10),
			strconv.FormatInt(n.Timestamp, 10),
			strconv.FormatInt(n.Changeset, 10),
			formatTags(n.Tags),
		}
		if err := w.nodeCSV.Write(rec); err != nil {
			return false
		}
	}
	w.Nodes.Add(int64(len(nodes)))
	return true
}

func (w *CSVWriter) writeWays(_ *osm.Context, ways []osm.Way) bool {
	w.wayMu.Lock()
	defer w.wayMu.Unlock()
	var sb strings.Builder
	for i := range ways {
		way := &ways[i]
		sb.Reset()
		for j, ref := range way.NodeRefs {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(strconv.FormatInt(ref, 10))
		}
		rec := []string{
			strconv.FormatInt(way.ID, 10),
			sb.String(),
			strconv.FormatInt(int64(way.Version), 10),
			strconv.FormatInt(way.Timestamp, 10),
			strconv.FormatInt(way.Changeset, 10),
			formatTags(way.Tags),
		}
		if err := w.wayCSV.Write(rec); err != nil {
			return false
		}
	}
	w.Ways.Add(int64(len(ways)))
	return true
}

func (w *CSVWriter) writeRelations(_ *osm.Context, relations []osm.Relation) bool {
	w.relMu.Lock()
	defer w.relMu.Unlock()
	var sb strings.Builder
	for i := range relations {
		rel := &relations[i]
		sb.Reset()
		for j, m := range rel.Members {
			if j > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(m.Type.String())
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatInt(m.ID, 10))
			sb.WriteByte(':')
			sb.WriteString(m.Role)
		}
		rec := []string{
			strconv.FormatInt(rel.ID, 10),
			sb.String(),
			strconv.FormatInt(int64(rel.Version), 10),
			strconv.FormatInt(rel.Timestamp, 10),
			strconv.FormatInt(rel.Changeset, 10),
			formatTags(rel.Tags),
		}
		if err := w.relCSV.Write(rec); err != nil {
			return false
		}
	}
	w.Relations.Add(int64(len(relations)))
	return true
}
