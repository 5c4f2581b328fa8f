// Package osmxml reads .osm and .osc XML documents and feeds them through
// the same handler contract as the PBF path. It is a deliberately simple
// single-goroutine adapter: entities are delivered in one-element batches,
// in document order, from the calling goroutine.
package osmxml

import (
	"compress/gzip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/osm"
)

// ErrStopped is returned when a handler asked to stop the parse.
var ErrStopped = errors.New("stopped by handler")

// Options configures a parse.
type Options struct {
	DecodeMetadata bool
	Handlers       osm.Handlers
	Logger         *zap.Logger
}

// Stats counts parsed entities, including those of kinds with no handler.
type Stats struct {
	Nodes     int64
	Ways      int64
	Relations int64
}

// Parser parses OSM XML and OSC change documents.
type Parser struct {
	opts  Options
	ctx   osm.Context
	stats Stats

	node osm.Node
	way  osm.Way
	rel  osm.Relation
	tags []osm.Tag
	refs []int64
	mems []osm.Member
}

// NewParser creates a parser for the given options.
func NewParser(opts Options) *Parser {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Parser{opts: opts}
}

// Stats returns parsing statistics.
func (p *Parser) Stats() Stats {
	return p.stats
}

// ParseFile parses an .osm or .osc file, transparently ungzipping
// .gz-suffixed inputs.
func (p *Parser) ParseFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("open OSM XML file: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if strings.HasSuffix(filename, ".gz") {
		gzReader, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("gzip reader: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}
	return p.Parse(reader)
}

// Parse parses OSM XML from a reader.
func (p *Parser) Parse(reader io.Reader) error {
	decoder := xml.NewDecoder(reader)
	p.ctx = osm.Context{Mode: osm.ModeBulk}

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("XML parse error: %w", err)
		}

		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "create":
				p.ctx.Mode = osm.ModeCreate
			case "modify":
				p.ctx.Mode = osm.ModeModify
			case "delete":
				p.ctx.Mode = osm.ModeDelete
			case "node":
				if err := p.parseNode(decoder, se); err != nil {
					return err
				}
			case "way":
				if err := p.parseWay(decoder, se); err != nil {
					return err
				}
			case "relation":
				if err := p.parseRelation(decoder, se); err != nil {
					return err
				}
			}
		case xml.EndElement:
			switch se.Name.Local {
			case "create", "modify", "delete":
				p.ctx.Mode = osm.ModeBulk
			}
		}
	}
}

func (p *Parser) parseNode(decoder *xml.Decoder, se xml.StartElement) error {
	p.node = osm.Node{}
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "id":
			p.node.ID, _ = strconv.ParseInt(attr.Value, 10, 64)
		case "lat":
			lat, _ := strconv.ParseFloat(attr.Value, 64)
			p.node.RawLatitude = int64(lat * 1e7)
		case "lon":
			lon, _ := strconv.ParseFloat(attr.Value, 64)
			p.node.RawLongitude = int64(lon * 1e7)
		case "version":
			v, _ := strconv.ParseInt(attr.Value, 10, 32)
			p.setVersion32(&p.node.Version, v)
		case "changeset":
			p.setMeta64(&p.node.Changeset, attr.Value)
		case "timestamp":
			p.setTimestamp(&p.node.Timestamp, attr.Value)
		}
	}
	if err := p.parseChildren(decoder, "node"); err != nil {
		return err
	}
	p.node.Tags = p.tags
	p.stats.Nodes++
	if h := p.opts.Handlers.Node; h != nil {
		if !h(&p.ctx, []osm.Node{p.node}) {
			return ErrStopped
		}
	}
	return nil
}

func (p *Parser) parseWay(decoder *xml.Decoder, se xml.StartElement) error {
	p.way = osm.Way{}
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "id":
			p.way.ID, _ = strconv.ParseInt(attr.Value, 10, 64)
		case "version":
			v, _ := strconv.ParseInt(attr.Value, 10, 32)
			p.setVersion32(&p.way.Version, v)
		case "changeset":
			p.setMeta64(&p.way.Changeset, attr.Value)
		case "timestamp":
			p.setTimestamp(&p.way.Timestamp, attr.Value)
		}
	}
	if err := p.parseChildren(decoder, "way"); err != nil {
		return err
	}
	p.way.Tags = p.tags
	p.way.NodeRefs = p.refs
	p.stats.Ways++
	if h := p.opts.Handlers.Way; h != nil {
		if !h(&p.ctx, []osm.Way{p.way}) {
			return ErrStopped
		}
	}
	return nil
}

func (p *Parser) parseRelation(decoder *xml.Decoder, se xml.StartElement) error {
	p.rel = osm.Relation{}
	for _, attr := range se.Attr {
		switch attr.Name.Local {
		case "id":
			p.rel.ID, _ = strconv.ParseInt(attr.Value, 10, 64)
		case "version":
			v, _ := strconv.ParseInt(attr.Value, 10, 32)
			p.setVersion32(&p.rel.Version, v)
		case "changeset":
			p.setMeta64(&p.rel.Changeset, attr.Value)
		case "timestamp":
			p.setTimestamp(&p.rel.Timestamp, attr.Value)
		}
	}
	if err := p.parseChildren(decoder, "relation"); err != nil {
		return err
	}
	p.rel.Tags = p.tags
	p.rel.Members = p.mems
	p.stats.Relations++
	if h := p.opts.Handlers.Relation; h != nil {
		if !h(&p.ctx, []osm.Relation{p.rel}) {
			return ErrStopped
		}
	}
	return nil
}

// parseChildren consumes tag, nd and member children until the enclosing
// element ends. The child slices are reused between entities; batches are
// only valid during the handler call, same as the PBF path.
func (p *Parser) parseChildren(decoder *xml.Decoder, parent string) error {
	p.tags = p.tags[:0]
	p.refs = p.refs[:0]
	p.mems = p.mems[:0]
	for {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("XML parse error inside %s: %w", parent, err)
		}
		switch se := token.(type) {
		case xml.StartElement:
			switch se.Name.Local {
			case "tag":
				var tag osm.Tag
				for _, attr := range se.Attr {
					switch attr.Name.Local {
					case "k":
						tag.Key = attr.Value
					case "v":
						tag.Value = attr.Value
					}
				}
				p.tags = append(p.tags, tag)
			case "nd":
				for _, attr := range se.Attr {
					if attr.Name.Local == "ref" {
						ref, _ := strconv.ParseInt(attr.Value, 10, 64)
						p.refs = append(p.refs, ref)
					}
				}
			case "member":
				var mem osm.Member
				for _, attr := range se.Attr {
					switch attr.Name.Local {
					case "type":
						switch attr.Value {
						case "node":
							mem.Type = osm.NodeMember
						case "way":
							mem.Type = osm.WayMember
						case "relation":
							mem.Type = osm.RelationMember
						}
					case "ref":
						mem.ID, _ = strconv.ParseInt(attr.Value, 10, 64)
					case "role":
						mem.Role = attr.Value
					}
				}
				p.mems = append(p.mems, mem)
			}
		case xml.EndElement:
			if se.Name.Local == parent {
				return nil
			}
		}
	}
}

func (p *Parser) setVersion32(dst *int32, v int64) {
	if p.opts.DecodeMetadata {
		*dst = int32(v)
	}
}

func (p *Parser) setMeta64(dst *int64, s string) {
	if p.opts.DecodeMetadata {
		*dst, _ = strconv.ParseInt(s, 10, 64)
	}
}

func (p *Parser) setTimestamp(dst *int64, s string) {
	if !p.opts.DecodeMetadata {
		return
	}
	t, err := time.Parse("2006-01-02T15:04:05Z", s)
	if err != nil {
		p.opts.Logger.Debug("bad timestamp", zap.String("value", s))
		return
	}
	*dst = t.Unix()
}
