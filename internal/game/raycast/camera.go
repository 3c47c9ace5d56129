package raycast

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

var (
	// ErrDegenerateDirection is returned for a zero-length view direction.
	ErrDegenerateDirection = errors.New("raycast: camera direction has zero length")
	// ErrInvalidFOV is returned for a field of view outside (0, pi).
	ErrInvalidFOV = errors.New("raycast: field of view must be in (0, pi)")
)

const minDirLen = 1e-9

// Camera is the player's viewpoint on the map plane. Dir is a unit vector;
// Plane is perpendicular to Dir and its length sets the field of view.
// Map rows grow downward, so Plane points to the viewer's right.
type Camera struct {
	Pos   mgl64.Vec2
	Dir   mgl64.Vec2
	Plane mgl64.Vec2
}

// NewCamera builds a camera at pos looking along dir with the given
// horizontal field of view in radians.
func NewCamera(pos, dir mgl64.Vec2, fov float64) (Camera, error) {
	if dir.Len() < minDirLen || math.IsNaN(dir.Len()) {
		return Camera{}, ErrDegenerateDirection
	}
	if !(fov > 0 && fov < math.Pi) {
		return Camera{}, errors.Wrapf(ErrInvalidFOV, "got %.4f", fov)
	}

	d := dir.Normalize()
	return Camera{
		Pos:   pos,
		Dir:   d,
		Plane: mgl64.Vec2{-d[1], d[0]}.Mul(math.Tan(fov / 2)),
	}, nil
}

// FOV returns the horizontal field of view in radians.
func (c Camera) FOV() float64 {
	return 2 * math.Atan(c.Plane.Len())
}

// Rotate turns the camera by angle radians, positive to the right. Dir is
// renormalised and Plane keeps its length, so repeated small turns do not
// drift the field of view.
func (c Camera) Rotate(angle float64) Camera {
	rot := mgl64.Rotate2D(angle)
	planeLen := c.Plane.Len()

	dir := rot.Mul2x1(c.Dir)
	if l := dir.Len(); l > minDirLen {
		dir = dir.Mul(1 / l)
	} else {
		return c
	}

	c.Dir = dir
	c.Plane = mgl64.Vec2{-dir[1], dir[0]}.Mul(planeLen)
	return c
}

// RayDir returns the ray direction through the given column.
func (c Camera) RayDir(column, screenWidth int) mgl64.Vec2 {
	if screenWidth < 1 {
		screenWidth = 1
	}
	cameraX := 2*float64(column)/float64(screenWidth) - 1
	return c.Dir.Add(c.Plane.Mul(cameraX))
}
