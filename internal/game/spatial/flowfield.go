// Package spatial provides navigation fields over the tile grid.
//
// Fields use preallocated slices with integer indices (not pointers)
// so regenerating one allocates nothing.
package spatial

import (
	"bone-crawler/internal/game/maze"
)

// Unreachable is the cost of a wall tile or one no goal can be reached from.
const Unreachable = -1

// Grid is the walkability view a field is built over.
type Grid interface {
	Width() int
	Height() int
	IsWall(x, y int) bool
}

// 4-way connectivity; maze corridors are one tile wide, so diagonal steps
// would cut through wall corners.
var (
	stepX = [4]int{0, 1, 0, -1}
	stepY = [4]int{-1, 0, 1, 0}
)

// FlowField holds, for every tile, the number of steps to the nearest goal
// and which neighbour leads there. One field serves any number of queries.
type FlowField struct {
	cols, rows int
	cost       []int32 // Steps to the nearest goal, Unreachable otherwise
	queue      []int32 // Reusable BFS queue
}

// NewFlowField allocates a field sized for g. Every tile starts unreachable.
func NewFlowField(g Grid) *FlowField {
	cols, rows := g.Width(), g.Height()
	size := cols * rows
	f := &FlowField{
		cols:  cols,
		rows:  rows,
		cost:  make([]int32, size),
		queue: make([]int32, 0, size),
	}
	for i := range f.cost {
		f.cost[i] = Unreachable
	}
	return f
}

// Generate recomputes the field toward the nearest of goals with a
// multi-source breadth-first search. Goals on walls or off the grid are
// ignored. g must have the dimensions the field was created with.
//
// Time complexity: O(cols × rows)
func (f *FlowField) Generate(g Grid, goals []maze.Point) {
	for i := range f.cost {
		f.cost[i] = Unreachable
	}

	f.queue = f.queue[:0]
	for _, p := range goals {
		if !f.inBounds(p.X, p.Y) || g.IsWall(p.X, p.Y) {
			continue
		}
		idx := int32(p.Y*f.cols + p.X)
		if f.cost[idx] == 0 {
			continue
		}
		f.cost[idx] = 0
		f.queue = append(f.queue, idx)
	}

	for head := 0; head < len(f.queue); head++ {
		current := f.queue[head]
		col, row := int(current)%f.cols, int(current)/f.cols
		next := f.cost[current] + 1

		for i := range stepX {
			nc, nr := col+stepX[i], row+stepY[i]
			if !f.inBounds(nc, nr) || g.IsWall(nc, nr) {
				continue
			}
			nidx := int32(nr*f.cols + nc)
			if f.cost[nidx] != Unreachable {
				continue
			}
			f.cost[nidx] = next
			f.queue = append(f.queue, nidx)
		}
	}
}

func (f *FlowField) inBounds(x, y int) bool {
	return x >= 0 && x < f.cols && y >= 0 && y < f.rows
}

// Cost returns the steps from (x, y) to the nearest goal, or Unreachable.
func (f *FlowField) Cost(x, y int) int {
	if !f.inBounds(x, y) {
		return Unreachable
	}
	return int(f.cost[y*f.cols+x])
}

// Step returns the unit move from (x, y) toward the nearest goal. ok is
// false on a goal tile and on unreachable tiles. Ties go to the first
// neighbour in north, east, south, west order.
func (f *FlowField) Step(x, y int) (dx, dy int, ok bool) {
	c := f.Cost(x, y)
	if c <= 0 {
		return 0, 0, false
	}
	for i := range stepX {
		if f.Cost(x+stepX[i], y+stepY[i]) == c-1 {
			return stepX[i], stepY[i], true
		}
	}
	return 0, 0, false
}

// Dimensions returns the grid dimensions.
func (f *FlowField) Dimensions() (cols, rows int) {
	return f.cols, f.rows
}
