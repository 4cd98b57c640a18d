package formats

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestSTLRoundTrip(t *testing.T) {
	// Coordinates near the origin, as tilestore writes them.
	m := sampleMesh().Translate([3]float64{-2600000, -1200000, -400})

	var buf bytes.Buffer
	if err := WriteSTL(&buf, m); err != nil {
		t.Fatalf("WriteSTL failed: %v", err)
	}

	got, err := ParseSTL(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseSTL failed: %v", err)
	}

	// Shared corners are merged back into four vertices.
	if len(got.Vertices) != 4 {
		t.Fatalf("expected 4 vertices after de-duplication, got %d", len(got.Vertices))
	}
	if len(got.Faces) != 2 {
		t.Fatalf("expected 2 faces, got %d", len(got.Faces))
	}

	for fi, f := range m.Faces {
		for k := 0; k < 3; k++ {
			want := m.Vertices[f[k]]
			have := got.Vertices[got.Faces[fi][k]]
			for a := 0; a < 3; a++ {
				if math.Abs(want[a]-have[a]) > 1e-4 {
					t.Errorf("face %d corner %d axis %d: expected %f, got %f", fi, k, a, want[a], have[a])
				}
			}
		}
	}
}

func TestWriteSTL_InvalidMesh(t *testing.T) {
	m := &Mesh{Vertices: [][3]float64{{0, 0, 0}}, Faces: [][3]uint32{{0, 1, 2}}}
	var buf bytes.Buffer
	if err := WriteSTL(&buf, m); err == nil {
		t.Error("expected error for out of range face")
	}
}

func TestReadMeshFile(t *testing.T) {
	dir := t.TempDir()
	m := sampleMesh().Translate([3]float64{-2600000, -1200000, -400})

	for _, f := range []Format{FormatPLY, FormatSTL} {
		path := filepath.Join(dir, "tile"+f.Ext())
		var buf bytes.Buffer
		if err := WriteMesh(&buf, m, f); err != nil {
			t.Fatalf("WriteMesh(%s) failed: %v", f, err)
		}
		if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", path, err)
		}

		got, err := ReadMeshFile(path)
		if err != nil {
			t.Fatalf("ReadMeshFile(%s) failed: %v", path, err)
		}
		if len(got.Faces) != 2 {
			t.Errorf("%s: expected 2 faces, got %d", f, len(got.Faces))
		}
	}

	if _, err := ReadMeshFile(filepath.Join(dir, "tile.obj")); err == nil {
		t.Error("expected error for unknown extension")
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"ply", FormatPLY, false},
		{".PLY", FormatPLY, false},
		{"stl", FormatSTL, false},
		{".stl", FormatSTL, false},
		{"obj", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseFormat(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMeshBounds(t *testing.T) {
	min, max := sampleMesh().Bounds()
	if min != [3]float64{2600000.125, 1200000.5, 0.000001} {
		t.Errorf("unexpected min %v", min)
	}
	if max != [3]float64{2600010.0, 1200010.75, 440.5} {
		t.Errorf("unexpected max %v", max)
	}

	empty := &Mesh{}
	min, max = empty.Bounds()
	if min != [3]float64{} || max != [3]float64{} {
		t.Errorf("expected zero bounds for empty mesh, got %v %v", min, max)
	}
}
