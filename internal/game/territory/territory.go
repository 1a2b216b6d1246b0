// Package territory implements capture and control of fixed world regions.
package territory

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/subjugate/internal/game/character"
	"github.com/cory-johannsen/subjugate/internal/game/world"
)

// Point is a YAML-friendly world position.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
	Z float64 `yaml:"z" json:"z"`
}

// Definition is the static description of a territory loaded from content.
type Definition struct {
	ID             int            `yaml:"id" json:"id"`
	Name           string         `yaml:"name" json:"name"`
	Center         Point          `yaml:"center" json:"center"`
	Radius         float64        `yaml:"radius" json:"radius"`
	RequiredPoints int            `yaml:"capture_points" json:"capture_points"`
	Buff           character.Buff `yaml:"buff" json:"buff"`
}

// Validate checks the definition's invariants.
func (d *Definition) Validate() error {
	switch {
	case d.ID < 0:
		return fmt.Errorf("territory %d: id must be >= 0", d.ID)
	case d.Name == "":
		return fmt.Errorf("territory %d: name must not be empty", d.ID)
	case d.Radius <= 0:
		return fmt.Errorf("territory %d: radius must be > 0", d.ID)
	case d.RequiredPoints < 0:
		return fmt.Errorf("territory %d: capture_points must be >= 0", d.ID)
	}
	return nil
}

// LoadDefinitions reads every *.yaml file in dir as one territory definition.
//
// Postcondition: Returns the definitions ordered by id, or the first read,
// parse, validate, or duplicate-id error.
func LoadDefinitions(dir string) ([]Definition, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading territory dir %q: %w", dir, err)
	}
	seen := make(map[int]bool)
	var defs []Definition
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var d Definition
		if err := yaml.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := d.Validate(); err != nil {
			return nil, fmt.Errorf("loading %q: %w", path, err)
		}
		if seen[d.ID] {
			return nil, fmt.Errorf("loading %q: duplicate territory id %d", path, d.ID)
		}
		seen[d.ID] = true
		defs = append(defs, d)
	}
	slices.SortFunc(defs, func(a, b Definition) int { return cmp.Compare(a.ID, b.ID) })
	return defs, nil
}

// Territory is a capturable region and its control state.
type Territory struct {
	Definition

	ControllerID   int64
	ControllerName string
	CapturePoints  int
	LastCapture    time.Time

	CapturingID   int64
	CapturingName string
	CaptureStart  time.Time
}

// CenterVector returns the territory center as a world position.
func (t *Territory) CenterVector() world.Vector3 {
	return world.Vector3{X: t.Center.X, Y: t.Center.Y, Z: t.Center.Z}
}

// Capturing reports whether a capture attempt is in progress.
func (t *Territory) Capturing() bool { return t.CapturingID != 0 }

// Progress returns the completed fraction of the current capture attempt in [0, 1].
func (t *Territory) Progress(now time.Time, duration time.Duration) float64 {
	if !t.Capturing() {
		return 0
	}
	if duration <= 0 {
		return 1
	}
	return min(float64(now.Sub(t.CaptureStart))/float64(duration), 1)
}

// Control returns the persistent control record of t.
func (t *Territory) Control() Control {
	return Control{
		TerritoryID:    t.ID,
		ControllerID:   t.ControllerID,
		ControllerName: t.ControllerName,
		CapturePoints:  t.CapturePoints,
		CapturedAt:     t.LastCapture,
	}
}
