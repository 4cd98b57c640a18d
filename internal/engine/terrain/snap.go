package terrain

import (
	"fmt"
	"sort"
)

// snapBoundaries makes every shared tile edge carry the same vertices on
// both sides. Missing positions are inserted into the hull of the tile that
// lacks them, so the union along each edge ends up in both tiles.
func snapBoundaries(g *Grid, tris []Triangulation) (int, error) {
	inserted := 0
	for r := 0; r < g.Rows; r++ {
		for c := 0; c < g.Cols; c++ {
			t := g.Tile(r, c)
			i := r*g.Cols + c

			if right := g.Tile(r, c+1); right != nil {
				j := r*g.Cols + c + 1
				lx := t.Col1 - t.Col0
				ys := unionSorted(
					edgeCoords(tris[i], func(p [2]int) (int, bool) { return p[1], p[0] == lx }),
					edgeCoords(tris[j], func(p [2]int) (int, bool) { return p[1], p[0] == 0 }),
				)
				for _, y := range ys {
					n, err := insertMissing(tris[i], lx, y)
					if err != nil {
						return inserted, fmt.Errorf("snapping %s to %s: %w", t.ID, right.ID, err)
					}
					inserted += n
					n, err = insertMissing(tris[j], 0, y)
					if err != nil {
						return inserted, fmt.Errorf("snapping %s to %s: %w", right.ID, t.ID, err)
					}
					inserted += n
				}
			}

			if below := g.Tile(r+1, c); below != nil {
				j := (r+1)*g.Cols + c
				ly := t.Row1 - t.Row0
				xs := unionSorted(
					edgeCoords(tris[i], func(p [2]int) (int, bool) { return p[0], p[1] == ly }),
					edgeCoords(tris[j], func(p [2]int) (int, bool) { return p[0], p[1] == 0 }),
				)
				for _, x := range xs {
					n, err := insertMissing(tris[i], x, ly)
					if err != nil {
						return inserted, fmt.Errorf("snapping %s to %s: %w", t.ID, below.ID, err)
					}
					inserted += n
					n, err = insertMissing(tris[j], x, 0)
					if err != nil {
						return inserted, fmt.Errorf("snapping %s to %s: %w", below.ID, t.ID, err)
					}
					inserted += n
				}
			}
		}
	}
	return inserted, nil
}

func insertMissing(tri Triangulation, x, y int) (int, error) {
	if tri.HasPoint(x, y) {
		return 0, nil
	}
	if err := tri.InsertBoundary(x, y); err != nil {
		return 0, err
	}
	return 1, nil
}

// edgeCoords returns the coordinate along an edge for every point that sel
// accepts.
func edgeCoords(tri Triangulation, sel func([2]int) (int, bool)) []int {
	var out []int
	for _, p := range tri.Points() {
		if v, ok := sel(p); ok {
			out = append(out, v)
		}
	}
	return out
}

func unionSorted(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, s := range [][]int{a, b} {
		for _, v := range s {
			if !seen[v] {
				seen[v] = true
				out = append(out, v)
			}
		}
	}
	sort.Ints(out)
	return out
}
