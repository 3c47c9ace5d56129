package maze

import (
	"math/rand"

	"github.com/pkg/errors"
)

// ErrInvalidDimensions is returned when a maze is requested with a
// non-positive width or height.
var ErrInvalidDimensions = errors.New("maze: width and height must be at least 1")

// ErrNilRNG is returned when Generate is called without a random source.
var ErrNilRNG = errors.New("maze: nil random source")

// Side identifies one wall of a cell. Values are bit flags so a cell can
// store all four walls in a single byte.
type Side uint8

const (
	Top Side = 1 << iota
	Right
	Bottom
	Left
)

// AllSides is the wall set of an untouched cell.
const AllSides = Top | Right | Bottom | Left

var opposites = [...]Side{
	Top:    Bottom,
	Right:  Left,
	Bottom: Top,
	Left:   Right,
}

// Opposite returns the side facing s across a shared wall.
func (s Side) Opposite() Side {
	if int(s) >= len(opposites) {
		return 0
	}
	return opposites[s]
}

// delta returns the grid offset of the neighbour across s.
func (s Side) delta() (dx, dy int) {
	switch s {
	case Top:
		return 0, -1
	case Right:
		return 1, 0
	case Bottom:
		return 0, 1
	case Left:
		return -1, 0
	}
	return 0, 0
}

func (s Side) String() string {
	switch s {
	case Top:
		return "top"
	case Right:
		return "right"
	case Bottom:
		return "bottom"
	case Left:
		return "left"
	}
	return "none"
}

// Cell is one room of the logical maze.
type Cell struct {
	walls   Side
	visited bool
}

// HasWall reports whether the given side is still closed.
func (c Cell) HasWall(s Side) bool { return c.walls&s != 0 }

// Walls returns the set of closed sides.
func (c Cell) Walls() Side { return c.walls }

// Visited reports whether generation reached this cell.
func (c Cell) Visited() bool { return c.visited }

// FullyWalled reports whether no passage leaves the cell.
func (c Cell) FullyWalled() bool { return c.walls&AllSides == AllSides }

// Point is an integer grid coordinate.
type Point struct {
	X, Y int
}

// Maze is a perfect maze: every pair of cells is joined by exactly one path.
type Maze struct {
	width  int
	height int
	cells  []Cell
	start  Point
}

// Width returns the number of cell columns.
func (m *Maze) Width() int { return m.width }

// Height returns the number of cell rows.
func (m *Maze) Height() int { return m.height }

// Start returns the cell generation began from.
func (m *Maze) Start() Point { return m.start }

// Cell returns the cell at (x, y). Out-of-range coordinates yield a fully
// walled cell.
func (m *Maze) Cell(x, y int) Cell {
	if !m.inBounds(x, y) {
		return Cell{walls: AllSides}
	}
	return m.cells[y*m.width+x]
}

// OpenPassages counts the carved walls between neighbouring cells. A
// perfect maze has exactly width*height-1 of them.
func (m *Maze) OpenPassages() int {
	n := 0
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			c := m.cells[y*m.width+x]
			if x+1 < m.width && !c.HasWall(Right) {
				n++
			}
			if y+1 < m.height && !c.HasWall(Bottom) {
				n++
			}
		}
	}
	return n
}

// String renders the maze as its tile map, '#' for walls.
func (m *Maze) String() string {
	return Build(m).String()
}

func (m *Maze) inBounds(x, y int) bool {
	return x >= 0 && x < m.width && y >= 0 && y < m.height
}

// carve removes the wall on side s of (x, y) and the matching wall of the
// neighbour, keeping both cells consistent.
func (m *Maze) carve(x, y int, s Side) {
	dx, dy := s.delta()
	m.cells[y*m.width+x].walls &^= s
	m.cells[(y+dy)*m.width+x+dx].walls &^= s.Opposite()
}

// searchOrder is the neighbour order before shuffling.
var searchOrder = [4]Side{Left, Top, Right, Bottom}

// frame is one level of the explicit depth-first stack.
type frame struct {
	x, y  int
	sides [4]Side
	next  int
}

func (m *Maze) enter(x, y int, rng *rand.Rand) frame {
	m.cells[y*m.width+x].visited = true
	f := frame{x: x, y: y, sides: searchOrder}
	rng.Shuffle(len(f.sides), func(i, j int) {
		f.sides[i], f.sides[j] = f.sides[j], f.sides[i]
	})
	return f
}

// Generate carves a perfect maze with a depth-first recursive backtracker.
// The walk uses an explicit stack, so arbitrarily large mazes cannot
// overflow the goroutine stack, while the visiting order stays identical to
// the recursive formulation for the same random sequence. The start cell
// and every neighbour shuffle are drawn from rng.
func Generate(width, height int, rng *rand.Rand) (*Maze, error) {
	if width < 1 || height < 1 {
		return nil, errors.Wrapf(ErrInvalidDimensions, "got %dx%d", width, height)
	}
	if rng == nil {
		return nil, ErrNilRNG
	}

	m := &Maze{
		width:  width,
		height: height,
		cells:  make([]Cell, width*height),
	}
	for i := range m.cells {
		m.cells[i].walls = AllSides
	}

	m.start = Point{X: rng.Intn(width), Y: rng.Intn(height)}
	stack := []frame{m.enter(m.start.X, m.start.Y, rng)}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next == len(top.sides) {
			stack = stack[:len(stack)-1]
			continue
		}

		side := top.sides[top.next]
		top.next++

		dx, dy := side.delta()
		nx, ny := top.x+dx, top.y+dy
		if !m.inBounds(nx, ny) || m.cells[ny*m.width+nx].visited {
			continue
		}

		m.carve(top.x, top.y, side)
		stack = append(stack, m.enter(nx, ny, rng))
	}

	return m, nil
}
