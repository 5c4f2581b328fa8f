// Package input is the public entry point: it sniffs the file type from
// the extension and routes to the PBF or XML reader, wiring the caller's
// handlers through either path unchanged.
package input

import (
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/stefankarschti/inputosm/internal/osm"
	"github.com/stefankarschti/inputosm/internal/osmpbf"
	"github.com/stefankarschti/inputosm/internal/osmxml"
)

// FileType identifies an input format.
type FileType uint8

const (
	TypeUnknown FileType = iota
	TypePBF
	TypeXML
)

// ErrUnknownType is returned by DetectType for extensions that are neither
// XML nor PBF.
var ErrUnknownType = errors.New("can't detect type")

// DetectType sniffs the input format from the file extension: .osm and
// .osc are XML, .pbf is PBF. A trailing .gz is allowed on XML inputs.
func DetectType(path string) (FileType, error) {
	p := path
	if filepath.Ext(p) == ".gz" {
		p = p[:len(p)-len(".gz")]
	}
	switch filepath.Ext(p) {
	case ".osm", ".osc":
		return TypeXML, nil
	case ".pbf":
		if p == path {
			return TypePBF, nil
		}
	}
	return TypeUnknown, fmt.Errorf("%w from: %s", ErrUnknownType, path)
}

// Options configures a File run.
type Options struct {
	// DecodeMetadata populates version/timestamp/changeset on entities.
	DecodeMetadata bool

	// Handlers receive batches of decoded entities. PBF inputs invoke them
	// concurrently from the decode workers; XML inputs invoke them from
	// the calling goroutine with one-entity batches.
	Handlers osm.Handlers

	// Workers overrides the osmpbf thread-count setting when positive.
	// Ignored for XML inputs.
	Workers int

	// Logger receives diagnostics. Nil means silent.
	Logger *zap.Logger
}

// File decodes the file at path and reports whether the full input was
// delivered. Failures, including a handler returning false, are logged and
// reported as false.
func File(path string, opts Options) bool {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	t, err := DetectType(path)
	if err != nil {
		log.Error("detect input type", zap.String("path", path), zap.Error(err))
		return false
	}
	switch t {
	case TypePBF:
		err = osmpbf.Decode(path, osmpbf.Options{
			DecodeMetadata: opts.DecodeMetadata,
			Handlers:       opts.Handlers,
			Workers:        opts.Workers,
			Logger:         log,
		})
	default:
		parser := osmxml.NewParser(osmxml.Options{
			DecodeMetadata: opts.DecodeMetadata,
			Handlers:       opts.Handlers,
			Logger:         log,
		})
		err = parser.ParseFile(path)
		if err != nil {
			log.Error("parse XML", zap.String("path", path), zap.Error(err))
		}
	}
	return err == nil
}
