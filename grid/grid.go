// Package grid provides a uniform-grid spatial index over a bounded 2D domain.
//
// Entities are bucketed into fixed-size cells laid out as a flat
// cols*rows slice indexed by row*cols+col. A side map from entity handle to
// cell index keeps removal and update O(bucket) instead of O(cells).
package grid

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidDimensions is returned by New for non-positive or non-finite sizes.
	ErrInvalidDimensions = errors.New("grid: invalid dimensions")
	// ErrAlreadyTracked is returned by Add when the entity is already registered.
	ErrAlreadyTracked = errors.New("grid: entity already tracked")
)

// Entity is anything the grid can index. GridID must be stable for the
// lifetime of the entity and unique among entities stored in one grid.
type Entity interface {
	GridID() int
	Position() (x, y float64)
}

// Grid buckets entities into cells of CellSize. Cells are square when built
// with New and may be rectangular when built with NewTiled.
// The grid never owns the entities it indexes.
type Grid[T Entity] struct {
	width, height float64
	cellW, cellH  float64
	cols, rows    int
	toroidal      bool

	cells  [][]T
	cellOf map[int]int // GridID -> flat cell index
}

// New allocates an empty grid covering [0,width)x[0,height) with
// ceil(width/cellSize) x ceil(height/cellSize) square cells. The last
// column and row are partial when the sizes do not divide evenly.
func New[T Entity](width, height, cellSize float64, toroidal bool) (*Grid[T], error) {
	for _, v := range []float64{width, height, cellSize} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: width=%v height=%v cellSize=%v", ErrInvalidDimensions, width, height, cellSize)
		}
	}
	cols := int(math.Ceil(width / cellSize))
	rows := int(math.Ceil(height / cellSize))
	return newGrid[T](width, height, cellSize, cellSize, cols, rows, toroidal), nil
}

// NewTiled allocates an empty grid of exactly cols x rows equal cells, each
// width/cols by height/rows. Every cell is full sized, so on a torus the
// cells on either side of the seam are true neighbours.
func NewTiled[T Entity](width, height float64, cols, rows int, toroidal bool) (*Grid[T], error) {
	for _, v := range []float64{width, height} {
		if !(v > 0) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: width=%v height=%v", ErrInvalidDimensions, width, height)
		}
	}
	if cols <= 0 || rows <= 0 {
		return nil, fmt.Errorf("%w: cols=%d rows=%d", ErrInvalidDimensions, cols, rows)
	}
	return newGrid[T](width, height, width/float64(cols), height/float64(rows), cols, rows, toroidal), nil
}

func newGrid[T Entity](width, height, cellW, cellH float64, cols, rows int, toroidal bool) *Grid[T] {
	cells := make([][]T, cols*rows)
	for i := range cells {
		cells[i] = make([]T, 0, 4)
	}

	return &Grid[T]{
		width:    width,
		height:   height,
		cellW:    cellW,
		cellH:    cellH,
		cols:     cols,
		rows:     rows,
		toroidal: toroidal,
		cells:    cells,
		cellOf:   make(map[int]int),
	}
}

// Cols is the number of cell columns
func (g *Grid[T]) Cols() int { return g.cols }

// Rows is the number of cell rows
func (g *Grid[T]) Rows() int { return g.rows }

// CellSize returns the width and height of one cell
func (g *Grid[T]) CellSize() (w, h float64) { return g.cellW, g.cellH }

// Toroidal reports whether neighbour queries wrap around the edges
func (g *Grid[T]) Toroidal() bool { return g.toroidal }

// Bounds returns the domain size the grid covers
func (g *Grid[T]) Bounds() (w, h float64) { return g.width, g.height }

// Len returns the number of tracked entities.
func (g *Grid[T]) Len() int { return len(g.cellOf) }

// CellCoordinates maps a point to its cell. Points outside the domain are
// clamped into the nearest edge cell.
func (g *Grid[T]) CellCoordinates(x, y float64) (col, row int) {
	return clampAxis(x, g.cellW, g.cols), clampAxis(y, g.cellH, g.rows)
}

func clampAxis(v, size float64, n int) int {
	f := math.Floor(v / size)
	switch {
	case math.IsNaN(f) || f < 0:
		return 0
	case f >= float64(n):
		return n - 1
	}
	return int(f)
}

// CellIndex flattens (col, row). The caller keeps both in range.
func (g *Grid[T]) CellIndex(col, row int) int {
	return row*g.cols + col
}

func (g *Grid[T]) cellIndexAt(x, y float64) int {
	col, row := g.CellCoordinates(x, y)
	return g.CellIndex(col, row)
}

// CellOf reports the cell index recorded for p.
func (g *Grid[T]) CellOf(p T) (int, bool) {
	idx, ok := g.cellOf[p.GridID()]
	return idx, ok
}

// Add registers p in the cell of its current position.
func (g *Grid[T]) Add(p T) error {
	id := p.GridID()
	if _, ok := g.cellOf[id]; ok {
		return fmt.Errorf("%w: id %d", ErrAlreadyTracked, id)
	}
	g.insert(p, g.cellIndexAt(p.Position()))
	return nil
}

func (g *Grid[T]) insert(p T, idx int) {
	g.cells[idx] = append(g.cells[idx], p)
	g.cellOf[p.GridID()] = idx
}

// Remove drops p from the grid. Removing an untracked entity is a no-op.
func (g *Grid[T]) Remove(p T) {
	id := p.GridID()
	idx, ok := g.cellOf[id]
	if !ok {
		return
	}
	g.detach(id, idx)
	delete(g.cellOf, id)
}

// detach swap-deletes id from bucket idx.
func (g *Grid[T]) detach(id, idx int) {
	bucket := g.cells[idx]
	for i := range bucket {
		if bucket[i].GridID() != id {
			continue
		}
		last := len(bucket) - 1
		bucket[i] = bucket[last]
		var zero T
		bucket[last] = zero
		g.cells[idx] = bucket[:last]
		return
	}
}

// Update moves p to the cell of its live position. Untracked entities are
// added.
func (g *Grid[T]) Update(p T) {
	id := p.GridID()
	next := g.cellIndexAt(p.Position())
	cur, ok := g.cellOf[id]
	if !ok {
		g.insert(p, next)
		return
	}
	if cur == next {
		return
	}
	g.detach(id, cur)
	g.insert(p, next)
}

// Nearby returns the members of the 3x3 block of cells around p's current
// position, excluding p itself.
//
// On a toroidal grid each axis wraps independently. Corner neighbours are
// therefore only approximately those of a true torus; callers that need an
// exact metric filter by distance afterwards.
func (g *Grid[T]) Nearby(p T) []T {
	x, y := p.Position()
	return g.collect(x, y, p.GridID(), true)
}

// NearbyPoint is Nearby for an arbitrary point; nothing is excluded.
func (g *Grid[T]) NearbyPoint(x, y float64) []T {
	return g.collect(x, y, 0, false)
}

func (g *Grid[T]) collect(x, y float64, self int, exclude bool) []T {
	col, row := g.CellCoordinates(x, y)

	var visited [9]int
	n := 0
	var result []T

	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			c, r := col+dc, row+dr
			if g.toroidal {
				c = (c + g.cols) % g.cols
				r = (r + g.rows) % g.rows
			} else if c < 0 || c >= g.cols || r < 0 || r >= g.rows {
				continue
			}

			idx := g.CellIndex(c, r)
			if seen(visited[:n], idx) {
				continue
			}
			visited[n] = idx
			n++

			for _, e := range g.cells[idx] {
				if exclude && e.GridID() == self {
					continue
				}
				result = append(result, e)
			}
		}
	}
	return result
}

func seen(list []int, idx int) bool {
	for _, v := range list {
		if v == idx {
			return true
		}
	}
	return false
}

// Within returns the members of every cell that the circle of radius r at
// (x, y) touches. Unlike NearbyPoint it is not limited to the 3x3 block, so
// r may exceed the cell size. Callers filter by exact distance.
func (g *Grid[T]) Within(x, y, r float64) []T {
	r = math.Max(r, 0)
	c0, c1 := g.span(x, r, g.cellW, g.cols)
	r0, r1 := g.span(y, r, g.cellH, g.rows)

	var result []T
	for row := r0; row <= r1; row++ {
		for col := c0; col <= c1; col++ {
			c, rr := col, row
			if g.toroidal {
				c = ((c % g.cols) + g.cols) % g.cols
				rr = ((rr % g.rows) + g.rows) % g.rows
			}
			result = append(result, g.cells[g.CellIndex(c, rr)]...)
		}
	}
	return result
}

// span returns the inclusive cell range one axis of a query covers. On a
// torus the range may run past either edge but never covers a cell twice.
func (g *Grid[T]) span(v, r, size float64, n int) (int, int) {
	lo := math.Floor((v - r) / size)
	hi := math.Floor((v + r) / size)
	if g.toroidal {
		if math.IsNaN(lo) || math.IsNaN(hi) || hi-lo+1 >= float64(n) {
			return 0, n - 1
		}
		return int(lo), int(hi)
	}
	return clampAxis(v-r, size, n), clampAxis(v+r, size, n)
}

// Bucket returns a copy of the members of cell idx.
func (g *Grid[T]) Bucket(idx int) []T {
	if idx < 0 || idx >= len(g.cells) {
		return nil
	}
	out := make([]T, len(g.cells[idx]))
	copy(out, g.cells[idx])
	return out
}

// Occupancy calls fn for every non-empty cell with its member count.
func (g *Grid[T]) Occupancy(fn func(col, row, count int)) {
	for idx, bucket := range g.cells {
		if len(bucket) == 0 {
			continue
		}
		fn(idx%g.cols, idx/g.cols, len(bucket))
	}
}

// Clear empties every bucket and forgets all entities.
func (g *Grid[T]) Clear() {
	var zero T
	for i := range g.cells {
		for j := range g.cells[i] {
			g.cells[i][j] = zero
		}
		g.cells[i] = g.cells[i][:0]
	}
	clear(g.cellOf)
}
