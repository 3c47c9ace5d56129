package raycast

import "math"

// Sentinel stands in for 1/0 when a ray component is exactly zero, so the
// axis it guards is never stepped.
const Sentinel = 1e30

// Grid is the occupancy map a ray marches through. Coordinates outside the
// grid must report a wall so every ray terminates.
type Grid interface {
	Width() int
	Height() int
	IsWall(x, y int) bool
}

// Axis names the grid line a ray crossed when it hit.
type Axis uint8

const (
	// AxisX means the ray crossed a vertical grid line (x boundary).
	AxisX Axis = iota
	// AxisY means the ray crossed a horizontal grid line (y boundary).
	AxisY
)

func (a Axis) String() string {
	if a == AxisY {
		return "y"
	}
	return "x"
}

// Hit is the result of casting one screen column.
type Hit struct {
	// Distance is the perpendicular distance to the camera plane, which
	// keeps straight walls straight on screen.
	Distance float64 `json:"distance"`
	Axis     Axis    `json:"axis"`
	MapX     int     `json:"mapX"`
	MapY     int     `json:"mapY"`
}

// CastColumn marches the ray for one column through grid with a DDA and
// returns the first wall it enters.
func CastColumn(cam Camera, column, screenWidth int, grid Grid) Hit {
	ray := cam.RayDir(column, screenWidth)
	rayX, rayY := ray[0], ray[1]
	posX, posY := cam.Pos[0], cam.Pos[1]

	mapX := int(math.Floor(posX))
	mapY := int(math.Floor(posY))

	deltaX, deltaY := Sentinel, Sentinel
	if rayX != 0 {
		deltaX = math.Abs(1 / rayX)
	}
	if rayY != 0 {
		deltaY = math.Abs(1 / rayY)
	}

	var stepX, stepY int
	var sideX, sideY float64

	switch {
	case rayX < 0:
		stepX = -1
		sideX = (posX - float64(mapX)) * deltaX
	case rayX > 0:
		stepX = 1
		sideX = (float64(mapX) + 1 - posX) * deltaX
	default:
		sideX = Sentinel
	}
	switch {
	case rayY < 0:
		stepY = -1
		sideY = (posY - float64(mapY)) * deltaY
	case rayY > 0:
		stepY = 1
		sideY = (float64(mapY) + 1 - posY) * deltaY
	default:
		sideY = Sentinel
	}

	// Out-of-range cells are walls, so the march is bounded by the grid
	// size; the limit only matters for a Grid that breaks that contract.
	limit := grid.Width() + grid.Height() + 2
	axis := AxisX
	for i := 0; i < limit; i++ {
		if sideX < sideY {
			sideX += deltaX
			mapX += stepX
			axis = AxisX
		} else {
			sideY += deltaY
			mapY += stepY
			axis = AxisY
		}
		if grid.IsWall(mapX, mapY) {
			break
		}
	}

	var dist float64
	if axis == AxisX {
		dist = (float64(mapX) - posX + float64(1-stepX)/2) / rayX
	} else {
		dist = (float64(mapY) - posY + float64(1-stepY)/2) / rayY
	}

	return Hit{Distance: dist, Axis: axis, MapX: mapX, MapY: mapY}
}

// DepthBuffer holds one perpendicular wall distance per screen column.
type DepthBuffer []float64

// NewDepthBuffer allocates a buffer for width columns.
func NewDepthBuffer(width int) DepthBuffer {
	return make(DepthBuffer, width)
}

// At returns the wall distance for column, or +Inf outside the buffer.
func (d DepthBuffer) At(column int) float64 {
	if column < 0 || column >= len(d) {
		return math.Inf(1)
	}
	return d[column]
}

// CastFrame casts every column in order, filling hits and depth. Both
// slices must have one entry per column.
func CastFrame(cam Camera, grid Grid, hits []Hit, depth DepthBuffer) {
	castRange(cam, grid, hits, depth, 0, len(hits))
}

func castRange(cam Camera, grid Grid, hits []Hit, depth DepthBuffer, lo, hi int) {
	width := len(hits)
	for col := lo; col < hi; col++ {
		h := CastColumn(cam, col, width, grid)
		hits[col] = h
		depth[col] = h.Distance
	}
}
