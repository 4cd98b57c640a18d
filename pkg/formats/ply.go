package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// PLY errors.
var (
	ErrInvalidPLYMagic  = fmt.Errorf("%w: missing 'ply' magic", ErrInvalidMesh)
	ErrInvalidPLYHeader = fmt.Errorf("%w: malformed PLY header", ErrInvalidMesh)
	ErrUnsupportedPLY   = fmt.Errorf("%w: PLY", ErrUnsupported)
)

// plyScalar describes one PLY scalar type.
type plyScalar struct {
	size int
}

var plyScalars = map[string]plyScalar{
	"char": {1}, "int8": {1}, "uchar": {1}, "uint8": {1},
	"short": {2}, "int16": {2}, "ushort": {2}, "uint16": {2},
	"int": {4}, "int32": {4}, "uint": {4}, "uint32": {4},
	"float": {4}, "float32": {4}, "double": {8}, "float64": {8},
}

type plyProperty struct {
	name      string
	typ       string
	list      bool
	countType string
}

type plyElement struct {
	name  string
	count int
	props []plyProperty
}

type plyHeader struct {
	format   string // ascii, binary_little_endian, binary_big_endian
	elements []plyElement
}

// ParsePLY parses a PLY mesh from raw bytes. ASCII and binary encodings are
// accepted; only vertex x, y, z and face vertex indices are kept.
func ParsePLY(data []byte) (*Mesh, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	hdr, err := readPLYHeader(r)
	if err != nil {
		return nil, err
	}

	var order binary.ByteOrder
	switch hdr.format {
	case "ascii":
	case "binary_little_endian":
		order = binary.LittleEndian
	case "binary_big_endian":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("%w encoding %q", ErrUnsupportedPLY, hdr.format)
	}

	var vr plyValueReader
	if order == nil {
		vr = &plyASCIIReader{r: r}
	} else {
		vr = &plyBinaryReader{r: r, order: order}
	}

	mesh := &Mesh{}
	for _, el := range hdr.elements {
		switch el.name {
		case "vertex":
			if err := readPLYVertices(vr, el, mesh); err != nil {
				return nil, err
			}
		case "face":
			if err := readPLYFaces(vr, el, mesh); err != nil {
				return nil, err
			}
		default:
			if err := skipPLYElement(vr, el); err != nil {
				return nil, err
			}
		}
	}

	if err := mesh.Validate(); err != nil {
		return nil, err
	}
	return mesh, nil
}

// ParsePLYFile reads and parses a PLY file from disk.
func ParsePLYFile(path string) (*Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading PLY file: %w", err)
	}
	return ParsePLY(data)
}

func readPLYHeader(r *bufio.Reader) (*plyHeader, error) {
	line, err := r.ReadString('\n')
	if err != nil || strings.TrimSpace(line) != "ply" {
		return nil, ErrInvalidPLYMagic
	}

	hdr := &plyHeader{}
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("%w: reading header", ErrTruncated)
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "end_header":
			if hdr.format == "" {
				return nil, fmt.Errorf("%w: no format line", ErrInvalidPLYHeader)
			}
			return hdr, nil
		case "comment", "obj_info":
		case "format":
			if len(fields) < 2 {
				return nil, ErrInvalidPLYHeader
			}
			hdr.format = fields[1]
		case "element":
			if len(fields) != 3 {
				return nil, ErrInvalidPLYHeader
			}
			n, err := strconv.Atoi(fields[2])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("%w: element count %q", ErrInvalidPLYHeader, fields[2])
			}
			hdr.elements = append(hdr.elements, plyElement{name: fields[1], count: n})
		case "property":
			if len(hdr.elements) == 0 {
				return nil, fmt.Errorf("%w: property before element", ErrInvalidPLYHeader)
			}
			el := &hdr.elements[len(hdr.elements)-1]
			var p plyProperty
			if len(fields) == 5 && fields[1] == "list" {
				p = plyProperty{name: fields[4], typ: fields[3], list: true, countType: fields[2]}
			} else if len(fields) == 3 {
				p = plyProperty{name: fields[2], typ: fields[1]}
			} else {
				return nil, ErrInvalidPLYHeader
			}
			if _, ok := plyScalars[p.typ]; !ok {
				return nil, fmt.Errorf("%w property type %q", ErrUnsupportedPLY, p.typ)
			}
			if p.list {
				if _, ok := plyScalars[p.countType]; !ok {
					return nil, fmt.Errorf("%w list count type %q", ErrUnsupportedPLY, p.countType)
				}
			}
			el.props = append(el.props, p)
		default:
			return nil, fmt.Errorf("%w: unexpected keyword %q", ErrInvalidPLYHeader, fields[0])
		}
	}
}

func readPLYVertices(vr plyValueReader, el plyElement, mesh *Mesh) error {
	axis := map[string]int{"x": 0, "y": 1, "z": 2}
	mesh.Vertices = make([][3]float64, el.count)
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if p.list {
				if err := skipPLYList(vr, p); err != nil {
					return fmt.Errorf("reading vertex %d: %w", i, err)
				}
				continue
			}
			v, err := vr.read(p.typ)
			if err != nil {
				return fmt.Errorf("%w: reading vertex %d", ErrTruncated, i)
			}
			if a, ok := axis[p.name]; ok {
				mesh.Vertices[i][a] = v
			}
		}
	}
	return nil
}

func readPLYFaces(vr plyValueReader, el plyElement, mesh *Mesh) error {
	mesh.Faces = make([][3]uint32, 0, el.count)
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if !p.list || (p.name != "vertex_indices" && p.name != "vertex_index") {
				if err := skipPLYProperty(vr, p); err != nil {
					return fmt.Errorf("reading face %d: %w", i, err)
				}
				continue
			}
			n, err := vr.read(p.countType)
			if err != nil {
				return fmt.Errorf("%w: reading face %d", ErrTruncated, i)
			}
			idx := make([]uint32, int(n))
			for k := range idx {
				v, err := vr.read(p.typ)
				if err != nil {
					return fmt.Errorf("%w: reading face %d index %d", ErrTruncated, i, k)
				}
				if v < 0 {
					return fmt.Errorf("%w: face %d has negative index", ErrInvalidMesh, i)
				}
				idx[k] = uint32(v)
			}
			// Polygons are fanned into triangles.
			for k := 1; k+1 < len(idx); k++ {
				mesh.Faces = append(mesh.Faces, [3]uint32{idx[0], idx[k], idx[k+1]})
			}
		}
	}
	return nil
}

func skipPLYElement(vr plyValueReader, el plyElement) error {
	for i := 0; i < el.count; i++ {
		for _, p := range el.props {
			if err := skipPLYProperty(vr, p); err != nil {
				return fmt.Errorf("skipping %s %d: %w", el.name, i, err)
			}
		}
	}
	return nil
}

func skipPLYProperty(vr plyValueReader, p plyProperty) error {
	if p.list {
		return skipPLYList(vr, p)
	}
	if _, err := vr.read(p.typ); err != nil {
		return ErrTruncated
	}
	return nil
}

func skipPLYList(vr plyValueReader, p plyProperty) error {
	n, err := vr.read(p.countType)
	if err != nil {
		return ErrTruncated
	}
	for k := 0; k < int(n); k++ {
		if _, err := vr.read(p.typ); err != nil {
			return ErrTruncated
		}
	}
	return nil
}

// plyValueReader yields the next scalar of the body as float64.
type plyValueReader interface {
	read(typ string) (float64, error)
}

type plyBinaryReader struct {
	r     io.Reader
	order binary.ByteOrder
	buf   [8]byte
}

func (b *plyBinaryReader) read(typ string) (float64, error) {
	s := plyScalars[typ]
	buf := b.buf[:s.size]
	if _, err := io.ReadFull(b.r, buf); err != nil {
		return 0, err
	}
	switch typ {
	case "char", "int8":
		return float64(int8(buf[0])), nil
	case "uchar", "uint8":
		return float64(buf[0]), nil
	case "short", "int16":
		return float64(int16(b.order.Uint16(buf))), nil
	case "ushort", "uint16":
		return float64(b.order.Uint16(buf)), nil
	case "int", "int32":
		return float64(int32(b.order.Uint32(buf))), nil
	case "uint", "uint32":
		return float64(b.order.Uint32(buf)), nil
	case "float", "float32":
		return float64(math.Float32frombits(b.order.Uint32(buf))), nil
	default:
		return math.Float64frombits(b.order.Uint64(buf)), nil
	}
}

type plyASCIIReader struct {
	r      *bufio.Reader
	fields []string
}

func (a *plyASCIIReader) read(string) (float64, error) {
	for len(a.fields) == 0 {
		line, err := a.r.ReadString('\n')
		if line == "" && err != nil {
			return 0, err
		}
		a.fields = strings.Fields(line)
	}
	tok := a.fields[0]
	a.fields = a.fields[1:]
	return strconv.ParseFloat(tok, 64)
}

// WritePLY writes m as binary little endian PLY with double precision
// coordinates.
func WritePLY(w io.Writer, m *Mesh) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintf(bw, "ply\nformat binary_little_endian 1.0\n")
	fmt.Fprintf(bw, "element vertex %d\n", len(m.Vertices))
	fmt.Fprintf(bw, "property double x\nproperty double y\nproperty double z\n")
	fmt.Fprintf(bw, "element face %d\n", len(m.Faces))
	fmt.Fprintf(bw, "property list uchar uint vertex_indices\nend_header\n")

	var buf [8]byte
	for _, v := range m.Vertices {
		for _, c := range v {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(c))
			if _, err := bw.Write(buf[:]); err != nil {
				return err
			}
		}
	}
	for _, f := range m.Faces {
		if err := bw.WriteByte(3); err != nil {
			return err
		}
		for _, idx := range f {
			binary.LittleEndian.PutUint32(buf[:4], idx)
			if _, err := bw.Write(buf[:4]); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}
