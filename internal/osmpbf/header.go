package osmpbf

import (
	"go.uber.org/zap"
)

// HeaderBlock carries the file-level metadata from the first blob: bounding
// box in nanodegrees, feature strings and osmosis replication state.
type HeaderBlock struct {
	BBox struct {
		Left, Right, Top, Bottom int64
	}
	RequiredFeatures     []string
	OptionalFeatures     []string
	WritingProgram       string
	Source               string
	ReplicationTimestamp int64
	ReplicationSequence  int64
	ReplicationBaseURL   string
}

func parseHeaderBlock(buf []byte) (*HeaderBlock, error) {
	h := &HeaderBlock{}
	err := iterateFields(buf, func(f *field) error {
		switch {
		case f.num == 1 && f.wire == wireBytes:
			return iterateFields(f.data, func(b *field) error {
				if b.wire != wireVarint {
					return nil
				}
				switch b.num {
				case 1:
					h.BBox.Left = unzigzag(b.value)
				case 2:
					h.BBox.Right = unzigzag(b.value)
				case 3:
					h.BBox.Top = unzigzag(b.value)
				case 4:
					h.BBox.Bottom = unzigzag(b.value)
				}
				return nil
			})
		case f.num == 4 && f.wire == wireBytes:
			h.RequiredFeatures = append(h.RequiredFeatures, string(f.data))
		case f.num == 5 && f.wire == wireBytes:
			h.OptionalFeatures = append(h.OptionalFeatures, string(f.data))
		case f.num == 16 && f.wire == wireBytes:
			h.WritingProgram = string(f.data)
		case f.num == 17 && f.wire == wireBytes:
			h.Source = string(f.data)
		case f.num == 32 && f.wire == wireVarint:
			h.ReplicationTimestamp = int64(f.value)
		case f.num == 33 && f.wire == wireVarint:
			h.ReplicationSequence = int64(f.value)
		case f.num == 34 && f.wire == wireBytes:
			h.ReplicationBaseURL = string(f.data)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// readHeaderBlock parses the OSMHeader blob. Required features are
// informational: real planet extracts carry HistoricalInformation and
// similar strings, and rejecting unknown ones would refuse valid files.
func (w *Worker) readHeaderBlock(buf []byte) error {
	h, err := parseHeaderBlock(buf)
	if err != nil {
		return err
	}
	w.dec.header.Store(h)
	w.dec.log.Info("header block",
		zap.Strings("required_features", h.RequiredFeatures),
		zap.Strings("optional_features", h.OptionalFeatures),
		zap.String("writing_program", h.WritingProgram),
		zap.Int64("replication_sequence", h.ReplicationSequence),
	)
	return nil
}
