package formats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// TileEntry describes one tile in a Manifest.
type TileEntry struct {
	TID    string     `json:"tid"`
	TIDInt int        `json:"tid_int"`
	MinXYZ [3]float64 `json:"min_xyz"`
	MaxXYZ [3]float64 `json:"max_xyz"`
}

// Manifest lists the tiles of a terrain together with their bounds.
// MinXYZ is the origin that scene coordinates are relative to.
type Manifest struct {
	EPSG   int         `json:"epsg"`
	MinXYZ [3]float64  `json:"min_xyz"`
	MaxXYZ [3]float64  `json:"max_xyz"`
	Tiles  []TileEntry `json:"tiles"`
}

// ParseManifest decodes and validates a manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// ParseManifestFile reads a manifest from disk.
func ParseManifestFile(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()
	return ParseManifest(f)
}

// Validate checks the manifest for duplicate ids and inverted bounds.
func (m *Manifest) Validate() error {
	if len(m.Tiles) == 0 {
		return fmt.Errorf("%w: no tiles", ErrInvalidManifest)
	}
	seen := make(map[string]bool, len(m.Tiles))
	for i, t := range m.Tiles {
		if t.TID == "" {
			return fmt.Errorf("%w: tile %d has no tid", ErrInvalidManifest, i)
		}
		if seen[t.TID] {
			return fmt.Errorf("%w: duplicate tid %q", ErrInvalidManifest, t.TID)
		}
		seen[t.TID] = true
		for k := 0; k < 3; k++ {
			if t.MinXYZ[k] > t.MaxXYZ[k] {
				return fmt.Errorf("%w: tile %q has inverted bounds", ErrInvalidManifest, t.TID)
			}
		}
	}
	for k := 0; k < 3; k++ {
		if m.MinXYZ[k] > m.MaxXYZ[k] {
			return fmt.Errorf("%w: inverted global bounds", ErrInvalidManifest)
		}
	}
	return nil
}

// Write encodes the manifest as indented JSON.
func (m *Manifest) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(m)
}
