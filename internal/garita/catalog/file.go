package catalog

import (
	"bytes"
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/BrandonDHaskell/garita/internal/garita/model"
)

type fileDoc struct {
	ControlPoints []filePoint `yaml:"control_points"`
}

type filePoint struct {
	ID            int    `yaml:"id"`
	Name          string `yaml:"name"`
	Kind          string `yaml:"kind"`
	TrackPresence bool   `yaml:"track_presence"`
	Priority      int    `yaml:"priority"`
}

// File is a Source reading a YAML document of the form
//
//	control_points:
//	  - id: 1
//	    name: Main Gate
//	    kind: gate
//	  - id: 2
//	    name: Dining Hall
//	    kind: internal_zone
//	    track_presence: true
//	    priority: 1
//
// The file is re-read on every Load so Refresh picks up edits.
type File struct {
	Path string
}

func (f File) Load(ctx context.Context) ([]model.ControlPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. Unknown fields are rejected so typos in
// the file surface at startup.
func Parse(data []byte) ([]model.ControlPoint, error) {
	var doc fileDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %v", ErrInvalidCatalog, err)
	}

	points := make([]model.ControlPoint, 0, len(doc.ControlPoints))
	for _, fp := range doc.ControlPoints {
		kind, err := model.ParsePointKind(fp.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: point %d: %v", ErrInvalidCatalog, fp.ID, err)
		}
		points = append(points, model.ControlPoint{
			ID:            model.ControlPointID(fp.ID),
			Name:          fp.Name,
			Kind:          kind,
			TrackPresence: fp.TrackPresence,
			Priority:      fp.Priority,
		})
	}
	return points, nil
}

// Default is the site layout used when no catalog file is configured.
func Default() Static {
	return Static{
		{ID: 1, Name: "Gate", Kind: model.KindGate},
		{ID: 2, Name: "Dining Hall", Kind: model.KindInternalZone, TrackPresence: true, Priority: 1},
		{ID: 3, Name: "Chemical Storage", Kind: model.KindInternalZone, TrackPresence: true, Priority: 2},
	}
}
