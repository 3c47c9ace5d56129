// Package sprite projects world-space entities onto the screen and culls
// them against the frame's wall depth buffer.
package sprite

import (
	"math"

	"bone-crawler/internal/game/raycast"
	"bone-crawler/internal/game/skeleton"

	"github.com/go-gl/mathgl/mgl64"
)

// DefaultNearPlane is the camera-space depth below which points are culled.
const DefaultNearPlane = 0.05

// minDet guards the camera basis inverse.
const minDet = 1e-12

// Projector maps world points to screen coordinates for one screen size.
type Projector struct {
	Width     int
	Height    int
	NearPlane float64
}

// NewProjector returns a projector for a width x height screen.
func NewProjector(width, height int) Projector {
	return Projector{Width: width, Height: height, NearPlane: DefaultNearPlane}
}

// Projection is a visible world point in screen space.
type Projection struct {
	// ScreenX is the column the point lands in.
	ScreenX int `json:"screenX"`
	// Lateral is the camera-space sideways offset.
	Lateral float64 `json:"lateral"`
	// Depth is the camera-space distance along the view direction.
	Depth float64 `json:"depth"`
	// Scale is the on-screen height of one world unit at Depth.
	Scale float64 `json:"scale"`
}

// toCamera maps a world point into camera space by inverting the basis
// whose columns are the camera plane and direction.
func toCamera(point mgl64.Vec2, cam raycast.Camera) (lateral, depth float64, ok bool) {
	basis := mgl64.Mat2{cam.Plane[0], cam.Plane[1], cam.Dir[0], cam.Dir[1]}
	if math.Abs(basis.Det()) < minDet {
		return 0, 0, false
	}
	t := basis.Inv().Mul2x1(point.Sub(cam.Pos))
	return t[0], t[1], true
}

// Project maps point to the screen. It reports false when the point is at
// or behind the near plane, lands off-screen, or is hidden behind a wall,
// checked in that order.
func (p Projector) Project(point mgl64.Vec2, cam raycast.Camera, depth raycast.DepthBuffer) (Projection, bool) {
	tx, ty, ok := toCamera(point, cam)
	// NaN fails every comparison below, so it has to be culled here
	if !ok || math.IsNaN(tx) || math.IsNaN(ty) || ty <= p.NearPlane {
		return Projection{}, false
	}

	sx := math.Floor(float64(p.Width) / 2 * (1 + tx/ty))
	if sx < 0 || sx >= float64(p.Width) {
		return Projection{}, false
	}
	col := int(sx)

	if ty >= depth.At(col) {
		return Projection{}, false
	}

	return Projection{
		ScreenX: col,
		Lateral: tx,
		Depth:   ty,
		Scale:   float64(p.Height) / ty,
	}, true
}

// horizon is the screen row at eye level.
func (p Projector) horizon() float64 { return float64(p.Height) / 2 }

// Segment is a bone drawn as a screen-space line.
type Segment struct {
	X0        float64 `json:"x0"`
	Y0        float64 `json:"y0"`
	X1        float64 `json:"x1"`
	Y1        float64 `json:"y1"`
	Thickness float64 `json:"thickness"`
	Depth     float64 `json:"depth"`
	Broken    bool    `json:"broken"`
}

// Sprite is the projected form of one skeletal enemy.
type Sprite struct {
	// AnchorVisible is false when the body centre was culled; attached
	// bones are then skipped while detached bones may still show.
	AnchorVisible bool       `json:"anchorVisible"`
	Anchor        Projection `json:"anchor"`
	Segments      []Segment  `json:"segments"`
}

// ProjectSkeleton projects every bone of body anchored at pos. Attached
// bones are laid out inside the anchor's square bounding box; detached
// bones are projected from their own world position with each endpoint
// culled on its own column. A body with no bones yields an empty sprite.
func (p Projector) ProjectSkeleton(pos mgl64.Vec2, body *skeleton.Body, cam raycast.Camera, depth raycast.DepthBuffer) Sprite {
	var s Sprite
	if body == nil || body.Len() == 0 {
		return s
	}

	s.Anchor, s.AnchorVisible = p.Project(pos, cam, depth)
	bones := body.Bones()
	s.Segments = make([]Segment, 0, len(bones))

	for i := range bones {
		bone := &bones[i]
		if bone.Broken() {
			if seg, ok := p.detached(bone, cam, depth); ok {
				s.Segments = append(s.Segments, seg)
			}
			continue
		}
		if !s.AnchorVisible {
			continue
		}
		s.Segments = append(s.Segments, p.attached(bone, s.Anchor))
	}

	return s
}

func (p Projector) attached(bone *skeleton.Bone, anchor Projection) Segment {
	cx := float64(anchor.ScreenX)
	size := anchor.Scale
	return Segment{
		X0:        cx + bone.LocalStart[0]*size,
		Y0:        p.horizon() + bone.LocalStart[1]*size,
		X1:        cx + bone.LocalEnd[0]*size,
		Y1:        p.horizon() + bone.LocalEnd[1]*size,
		Thickness: bone.Thickness * size,
		Depth:     anchor.Depth,
	}
}

func (p Projector) detached(bone *skeleton.Bone, cam raycast.Camera, depth raycast.DepthBuffer) (Segment, bool) {
	a, ok := p.Project(bone.WorldStart.Vec2(), cam, depth)
	if !ok {
		return Segment{}, false
	}
	b, ok := p.Project(bone.WorldEnd.Vec2(), cam, depth)
	if !ok {
		return Segment{}, false
	}

	return Segment{
		X0:        float64(a.ScreenX),
		Y0:        p.horizon() + bone.WorldStart[2]*a.Scale,
		X1:        float64(b.ScreenX),
		Y1:        p.horizon() + bone.WorldEnd[2]*b.Scale,
		Thickness: bone.Thickness * (a.Scale + b.Scale) / 2,
		Depth:     (a.Depth + b.Depth) / 2,
		Broken:    true,
	}, true
}
