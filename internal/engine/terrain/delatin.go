package terrain

import (
	"fmt"
	"math"
)

// delatin is a Delaunay triangulation over a height grid, refined by
// inserting the sample with the largest vertical error until the error bound
// holds. Triangles are stored as flat index triples with a matching
// half-edge array; -1 marks a hull edge.
type delatin struct {
	data          []float64
	width, height int

	coords    []int // x0, y0, x1, y1, ...
	triangles []int // three point indices per triangle
	halfedges []int // opposite half-edge or -1

	candidates   []int // worst sample per triangle (x, y)
	queueIndices []int // heap slot per triangle, -1 when not queued

	queue  []int     // max-heap of triangles keyed by errors
	errors []float64 // parallel to queue

	pending []int // triangles whose candidate is stale

	index map[[2]int]bool
}

func newDelatin(data []float64, width, height int) *delatin {
	d := &delatin{
		data:   data,
		width:  width,
		height: height,
		index:  make(map[[2]int]bool),
	}

	x1, y1 := width-1, height-1
	p0 := d.addPoint(0, 0)
	p1 := d.addPoint(x1, 0)
	p2 := d.addPoint(0, y1)
	p3 := d.addPoint(x1, y1)

	t0 := d.addTriangle(p3, p0, p2, -1, -1, -1, -1)
	d.addTriangle(p0, p3, p1, t0, -1, -1, -1)
	d.flush()
	return d
}

func (d *delatin) run(maxError float64) {
	for len(d.queue) > 0 && d.maxError() > maxError {
		d.step()
		d.flush()
	}
}

func (d *delatin) maxError() float64 {
	if len(d.errors) == 0 {
		return 0
	}
	return d.errors[0]
}

func (d *delatin) heightAt(x, y int) float64 {
	return d.data[d.width*y+x]
}

// Points implements Triangulation.
func (d *delatin) Points() [][2]int {
	pts := make([][2]int, len(d.coords)/2)
	for i := range pts {
		pts[i] = [2]int{d.coords[2*i], d.coords[2*i+1]}
	}
	return pts
}

// Faces implements Triangulation.
func (d *delatin) Faces() [][3]uint32 {
	faces := make([][3]uint32, len(d.triangles)/3)
	for i := range faces {
		faces[i] = [3]uint32{
			uint32(d.triangles[3*i]),
			uint32(d.triangles[3*i+1]),
			uint32(d.triangles[3*i+2]),
		}
	}
	return faces
}

// HasPoint implements Triangulation.
func (d *delatin) HasPoint(x, y int) bool {
	return d.index[[2]int{x, y}]
}

// InsertBoundary implements Triangulation.
func (d *delatin) InsertBoundary(x, y int) error {
	if d.HasPoint(x, y) {
		return nil
	}
	e := d.hullEdgeAt(x, y)
	if e < 0 {
		return fmt.Errorf("point (%d,%d) is not on the hull", x, y)
	}
	d.queueRemove(e / 3)
	pn := d.addPoint(x, y)
	d.handleCollinear(pn, e)
	d.flush()
	return nil
}

// hullEdgeAt returns the hull half-edge whose segment strictly contains
// (x, y), or -1.
func (d *delatin) hullEdgeAt(x, y int) int {
	for e := range d.halfedges {
		if d.halfedges[e] != -1 {
			continue
		}
		a := d.triangles[e]
		b := d.triangles[nextHalfedge(e)]
		ax, ay := d.coords[2*a], d.coords[2*a+1]
		bx, by := d.coords[2*b], d.coords[2*b+1]
		if orient(ax, ay, bx, by, x, y) != 0 {
			continue
		}
		// Strictly between a and b.
		if (x-ax)*(x-bx)+(y-ay)*(y-by) < 0 {
			return e
		}
	}
	return -1
}

func nextHalfedge(e int) int {
	if e%3 == 2 {
		return e - 2
	}
	return e + 1
}

// flush computes candidates for triangles added since the last flush.
func (d *delatin) flush() {
	for _, t := range d.pending {
		a := 2 * d.triangles[3*t]
		b := 2 * d.triangles[3*t+1]
		c := 2 * d.triangles[3*t+2]
		d.findCandidate(
			d.coords[a], d.coords[a+1],
			d.coords[b], d.coords[b+1],
			d.coords[c], d.coords[c+1],
			t)
	}
	d.pending = d.pending[:0]
}

// findCandidate rasterizes triangle t and records its worst sample.
func (d *delatin) findCandidate(p0x, p0y, p1x, p1y, p2x, p2y, t int) {
	minX, minY := min(p0x, p1x, p2x), min(p0y, p1y, p2y)
	maxX, maxY := max(p0x, p1x, p2x), max(p0y, p1y, p2y)

	// Edge functions at the bbox origin, stepped incrementally.
	w00 := orient(p1x, p1y, p2x, p2y, minX, minY)
	w01 := orient(p2x, p2y, p0x, p0y, minX, minY)
	w02 := orient(p0x, p0y, p1x, p1y, minX, minY)

	a01, b01 := p1y-p0y, p0x-p1x
	a12, b12 := p2y-p1y, p1x-p2x
	a20, b20 := p0y-p2y, p2x-p0x

	a := float64(orient(p0x, p0y, p1x, p1y, p2x, p2y))
	z0 := d.heightAt(p0x, p0y) / a
	z1 := d.heightAt(p1x, p1y) / a
	z2 := d.heightAt(p2x, p2y) / a

	maxErr := 0.0
	mx, my := 0, 0

	for y := minY; y <= maxY; y++ {
		// Skip to the first column that can be inside.
		dx := 0
		if w00 < 0 && a12 != 0 {
			dx = max(dx, floorDiv(-w00, a12))
		}
		if w01 < 0 && a20 != 0 {
			dx = max(dx, floorDiv(-w01, a20))
		}
		if w02 < 0 && a01 != 0 {
			dx = max(dx, floorDiv(-w02, a01))
		}

		w0 := w00 + a12*dx
		w1 := w01 + a20*dx
		w2 := w02 + a01*dx

		inside := false
		for x := minX + dx; x <= maxX; x++ {
			if w0 >= 0 && w1 >= 0 && w2 >= 0 {
				inside = true
				z := z0*float64(w0) + z1*float64(w1) + z2*float64(w2)
				dz := math.Abs(z - d.heightAt(x, y))
				if dz > maxErr {
					maxErr = dz
					mx, my = x, y
				}
			} else if inside {
				break
			}
			w0 += a12
			w1 += a20
			w2 += a01
		}

		w00 += b12
		w01 += b20
		w02 += b01
	}

	if (mx == p0x && my == p0y) || (mx == p1x && my == p1y) || (mx == p2x && my == p2y) {
		maxErr = 0
	}

	d.candidates[2*t] = mx
	d.candidates[2*t+1] = my
	d.queuePush(t, maxErr)
}

// step splits the triangle with the largest error at its candidate.
func (d *delatin) step() {
	t := d.queuePop()

	e0, e1, e2 := 3*t, 3*t+1, 3*t+2
	p0, p1, p2 := d.triangles[e0], d.triangles[e1], d.triangles[e2]

	ax, ay := d.coords[2*p0], d.coords[2*p0+1]
	bx, by := d.coords[2*p1], d.coords[2*p1+1]
	cx, cy := d.coords[2*p2], d.coords[2*p2+1]
	px, py := d.candidates[2*t], d.candidates[2*t+1]

	pn := d.addPoint(px, py)

	switch {
	case orient(ax, ay, bx, by, px, py) == 0:
		d.handleCollinear(pn, e0)
	case orient(bx, by, cx, cy, px, py) == 0:
		d.handleCollinear(pn, e1)
	case orient(cx, cy, ax, ay, px, py) == 0:
		d.handleCollinear(pn, e2)
	default:
		h0, h1, h2 := d.halfedges[e0], d.halfedges[e1], d.halfedges[e2]
		t0 := d.addTriangle(p0, p1, pn, h0, -1, -1, e0)
		t1 := d.addTriangle(p1, p2, pn, h1, -1, t0+1, -1)
		t2 := d.addTriangle(p2, p0, pn, h2, t0+2, t1+1, -1)
		d.legalize(t0)
		d.legalize(t1)
		d.legalize(t2)
	}
}

func (d *delatin) addPoint(x, y int) int {
	i := len(d.coords) / 2
	d.coords = append(d.coords, x, y)
	d.index[[2]int{x, y}] = true
	return i
}

// addTriangle writes a triangle at half-edge slot e, or appends it when
// e < 0, and links the given opposite half-edges back to it.
func (d *delatin) addTriangle(a, b, c, ab, bc, ca, e int) int {
	if e < 0 {
		e = len(d.triangles)
		d.triangles = append(d.triangles, 0, 0, 0)
		d.halfedges = append(d.halfedges, 0, 0, 0)
		d.candidates = append(d.candidates, 0, 0)
		d.queueIndices = append(d.queueIndices, 0)
	}
	t := e / 3

	d.triangles[e], d.triangles[e+1], d.triangles[e+2] = a, b, c
	d.halfedges[e], d.halfedges[e+1], d.halfedges[e+2] = ab, bc, ca

	if ab >= 0 {
		d.halfedges[ab] = e
	}
	if bc >= 0 {
		d.halfedges[bc] = e + 1
	}
	if ca >= 0 {
		d.halfedges[ca] = e + 2
	}

	d.candidates[2*t], d.candidates[2*t+1] = 0, 0
	d.queueIndices[t] = -1
	d.pending = append(d.pending, t)
	return e
}

// legalize flips half-edge a and its twin when they violate the empty
// circumcircle condition, recursing into the new outer edges.
func (d *delatin) legalize(a int) {
	b := d.halfedges[a]
	if b < 0 {
		return
	}

	a0 := a - a%3
	b0 := b - b%3
	al := a0 + (a+1)%3
	ar := a0 + (a+2)%3
	bl := b0 + (b+2)%3
	br := b0 + (b+1)%3

	p0 := d.triangles[ar]
	pr := d.triangles[a]
	pl := d.triangles[al]
	p1 := d.triangles[bl]

	c := d.coords
	if !inCircle(
		c[2*p0], c[2*p0+1],
		c[2*pr], c[2*pr+1],
		c[2*pl], c[2*pl+1],
		c[2*p1], c[2*p1+1]) {
		return
	}

	hal := d.halfedges[al]
	har := d.halfedges[ar]
	hbl := d.halfedges[bl]
	hbr := d.halfedges[br]

	d.queueRemove(a0 / 3)
	d.queueRemove(b0 / 3)

	t0 := d.addTriangle(p0, p1, pl, -1, hbl, hal, a0)
	t1 := d.addTriangle(p1, p0, pr, t0, har, hbr, b0)

	d.legalize(t0 + 1)
	d.legalize(t1 + 2)
}

// handleCollinear splits the edge a at point pn, which lies on it.
func (d *delatin) handleCollinear(pn, a int) {
	a0 := a - a%3
	al := a0 + (a+1)%3
	ar := a0 + (a+2)%3
	p0 := d.triangles[ar]
	pr := d.triangles[a]
	pl := d.triangles[al]
	hal := d.halfedges[al]
	har := d.halfedges[ar]

	b := d.halfedges[a]

	if b < 0 {
		// Hull edge: split one triangle into two.
		t0 := d.addTriangle(pn, p0, pr, -1, har, -1, a0)
		t1 := d.addTriangle(p0, pn, pl, t0, -1, hal, -1)
		d.legalize(t0 + 1)
		d.legalize(t1 + 2)
		return
	}

	b0 := b - b%3
	bl := b0 + (b+2)%3
	br := b0 + (b+1)%3
	p1 := d.triangles[bl]
	hbl := d.halfedges[bl]
	hbr := d.halfedges[br]

	d.queueRemove(b0 / 3)

	t0 := d.addTriangle(p0, pr, pn, har, -1, -1, a0)
	t1 := d.addTriangle(pr, p1, pn, hbr, -1, t0+1, b0)
	t2 := d.addTriangle(p1, pl, pn, hbl, -1, t1+1, -1)
	t3 := d.addTriangle(pl, p0, pn, hal, t0+2, t2+1, -1)

	d.legalize(t0)
	d.legalize(t1)
	d.legalize(t2)
	d.legalize(t3)
}

// Priority queue of triangles, largest error first.

func (d *delatin) queuePush(t int, err float64) {
	i := len(d.queue)
	d.queueIndices[t] = i
	d.queue = append(d.queue, t)
	d.errors = append(d.errors, err)
	d.queueUp(i)
}

func (d *delatin) queuePop() int {
	n := len(d.queue) - 1
	d.queueSwap(0, n)
	d.queueDown(0, n)
	return d.queuePopBack()
}

func (d *delatin) queuePopBack() int {
	n := len(d.queue) - 1
	t := d.queue[n]
	d.queue = d.queue[:n]
	d.errors = d.errors[:n]
	d.queueIndices[t] = -1
	return t
}

func (d *delatin) queueRemove(t int) {
	i := d.queueIndices[t]
	if i < 0 {
		for k, p := range d.pending {
			if p == t {
				last := len(d.pending) - 1
				d.pending[k] = d.pending[last]
				d.pending = d.pending[:last]
				return
			}
		}
		panic("terrain: broken triangulation")
	}

	n := len(d.queue) - 1
	if n != i {
		d.queueSwap(i, n)
		if !d.queueDown(i, n) {
			d.queueUp(i)
		}
	}
	d.queuePopBack()
}

func (d *delatin) queueLess(i, j int) bool {
	return d.errors[i] > d.errors[j]
}

func (d *delatin) queueSwap(i, j int) {
	pi, pj := d.queue[i], d.queue[j]
	d.queue[i], d.queue[j] = pj, pi
	d.queueIndices[pi] = j
	d.queueIndices[pj] = i
	d.errors[i], d.errors[j] = d.errors[j], d.errors[i]
}

func (d *delatin) queueUp(j int) {
	for j > 0 {
		i := (j - 1) / 2
		if !d.queueLess(j, i) {
			break
		}
		d.queueSwap(i, j)
		j = i
	}
}

func (d *delatin) queueDown(i0, n int) bool {
	i := i0
	for {
		j1 := 2*i + 1
		if j1 >= n || j1 < 0 {
			break
		}
		j := j1
		if j2 := j1 + 1; j2 < n && d.queueLess(j2, j1) {
			j = j2
		}
		if !d.queueLess(j, i) {
			break
		}
		d.queueSwap(i, j)
		i = j
	}
	return i > i0
}

func orient(ax, ay, bx, by, cx, cy int) int {
	return (bx-cx)*(ay-cy) - (by-cy)*(ax-cx)
}

func inCircle(ax, ay, bx, by, cx, cy, px, py int) bool {
	dx, dy := float64(ax-px), float64(ay-py)
	ex, ey := float64(bx-px), float64(by-py)
	fx, fy := float64(cx-px), float64(cy-py)

	ap := dx*dx + dy*dy
	bp := ex*ex + ey*ey
	cp := fx*fx + fy*fy

	return dx*(ey*cp-bp*fy)-dy*(ex*cp-bp*fx)+ap*(ex*fy-ey*fx) < 0
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
