package maze

import (
	"strings"

	"github.com/pkg/errors"
)

// ErrMalformedTileMap reports a tile map that breaks the grid contract.
var ErrMalformedTileMap = errors.New("maze: malformed tile map")

// Tile glyphs used by String and Parse.
const (
	WallGlyph = '#'
	OpenGlyph = '.'
)

// TileMap is the occupancy grid consumed by the raycaster. Tile (2x+1, 2y+1)
// is the centre of maze cell (x, y); even rows and columns hold walls and
// the passages carved between cells.
type TileMap struct {
	width  int
	height int
	walls  []bool
}

func newTileMap(width, height int) *TileMap {
	tm := &TileMap{
		width:  width,
		height: height,
		walls:  make([]bool, width*height),
	}
	for i := range tm.walls {
		tm.walls[i] = true
	}
	return tm
}

// Build expands a maze into its (2w+1)x(2h+1) tile map. The result depends
// only on the maze.
func Build(m *Maze) *TileMap {
	tm := newTileMap(2*m.width+1, 2*m.height+1)

	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			tx, ty := 2*x+1, 2*y+1
			tm.open(tx, ty)

			c := m.cells[y*m.width+x]
			for _, s := range searchOrder {
				if c.HasWall(s) {
					continue
				}
				dx, dy := s.delta()
				// Border tiles stay solid even if a border wall was cleared.
				if !m.inBounds(x+dx, y+dy) {
					continue
				}
				tm.open(tx+dx, ty+dy)
			}
		}
	}

	return tm
}

// Parse reads a tile map from text rows, '#' for wall and '.' for open.
// All rows must have the same length.
func Parse(rows ...string) (*TileMap, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, errors.Wrap(ErrMalformedTileMap, "empty")
	}

	tm := newTileMap(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != tm.width {
			return nil, errors.Wrapf(ErrMalformedTileMap, "row %d has width %d, want %d", y, len(row), tm.width)
		}
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case WallGlyph:
			case OpenGlyph:
				tm.open(x, y)
			default:
				return nil, errors.Wrapf(ErrMalformedTileMap, "unknown glyph %q at (%d,%d)", row[x], x, y)
			}
		}
	}
	return tm, nil
}

func (t *TileMap) open(x, y int) { t.walls[y*t.width+x] = false }

// Width returns the number of tile columns.
func (t *TileMap) Width() int { return t.width }

// Height returns the number of tile rows.
func (t *TileMap) Height() int { return t.height }

// IsWall reports whether (x, y) blocks movement and rays. Everything
// outside the grid counts as wall.
func (t *TileMap) IsWall(x, y int) bool {
	if x < 0 || x >= t.width || y < 0 || y >= t.height {
		return true
	}
	return t.walls[y*t.width+x]
}

// OpenTiles lists open tiles in row-major order.
func (t *TileMap) OpenTiles() []Point {
	var out []Point
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			if !t.walls[y*t.width+x] {
				out = append(out, Point{X: x, Y: y})
			}
		}
	}
	return out
}

// Validate checks that t is the tile map of m: matching size, a solid
// border and an open centre for every cell.
func (t *TileMap) Validate(m *Maze) error {
	if t.width != 2*m.width+1 || t.height != 2*m.height+1 {
		return errors.Wrapf(ErrMalformedTileMap, "size %dx%d does not match maze %dx%d",
			t.width, t.height, m.width, m.height)
	}
	for x := 0; x < t.width; x++ {
		if !t.IsWall(x, 0) || !t.IsWall(x, t.height-1) {
			return errors.Wrapf(ErrMalformedTileMap, "open border at column %d", x)
		}
	}
	for y := 0; y < t.height; y++ {
		if !t.IsWall(0, y) || !t.IsWall(t.width-1, y) {
			return errors.Wrapf(ErrMalformedTileMap, "open border at row %d", y)
		}
	}
	for y := 0; y < m.height; y++ {
		for x := 0; x < m.width; x++ {
			if t.IsWall(2*x+1, 2*y+1) {
				return errors.Wrapf(ErrMalformedTileMap, "cell (%d,%d) centre is solid", x, y)
			}
		}
	}
	return nil
}

// String renders one text row per tile row.
func (t *TileMap) String() string {
	var sb strings.Builder
	sb.Grow((t.width + 1) * t.height)
	for y := 0; y < t.height; y++ {
		for x := 0; x < t.width; x++ {
			if t.walls[y*t.width+x] {
				sb.WriteByte(WallGlyph)
			} else {
				sb.WriteByte(OpenGlyph)
			}
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}
