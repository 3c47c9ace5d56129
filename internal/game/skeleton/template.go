package skeleton

import "github.com/go-gl/mathgl/mgl64"

// templateScale converts template units to the unit sprite box.
const templateScale = 64.0

// BoneSpec describes one rigid segment of a body template in template
// units: x grows to the body's right, y grows downward, origin at the
// sprite centre.
type BoneSpec struct {
	Name      string
	Start     [2]float64
	End       [2]float64
	Thickness float64
	Core      bool
}

// Anatomy is the humanoid skeleton every enemy is built from.
var Anatomy = []BoneSpec{
	// Spine
	{"neck", [2]float64{0, -18}, [2]float64{0, -10}, 3, true},
	{"upper spine", [2]float64{0, -10}, [2]float64{0, -2}, 3, true},
	{"mid spine", [2]float64{0, -2}, [2]float64{0, 6}, 3, true},
	{"lower spine", [2]float64{0, 6}, [2]float64{0, 14}, 3, true},
	{"pelvis", [2]float64{-3, 14}, [2]float64{3, 14}, 3, true},

	// Ribs, the top one carries the spine link
	{"rib spine-link", [2]float64{-6, -10}, [2]float64{6, -10}, 2, true},
	{"rib", [2]float64{-5, -6}, [2]float64{5, -6}, 2, false},
	{"rib", [2]float64{-4, -2}, [2]float64{4, -2}, 2, false},

	// Skull
	{"skull", [2]float64{-4, -22}, [2]float64{4, -22}, 2, true},
	{"jaw", [2]float64{0, -22}, [2]float64{0, -18}, 2, true},

	// Left arm
	{"left upper arm", [2]float64{-6, -8}, [2]float64{-14, -2}, 3, false},
	{"left forearm", [2]float64{-14, -2}, [2]float64{-22, 4}, 3, false},
	{"left club", [2]float64{-22, 4}, [2]float64{-26, 8}, 4, false},

	// Right arm
	{"right upper arm", [2]float64{6, -8}, [2]float64{14, -4}, 3, false},
	{"right forearm", [2]float64{14, -4}, [2]float64{20, 0}, 2, false},
	{"right hand", [2]float64{20, 0}, [2]float64{22, 2}, 1, false},

	// Legs
	{"left thigh", [2]float64{-3, 14}, [2]float64{-6, 28}, 3, false},
	{"right thigh", [2]float64{3, 14}, [2]float64{6, 28}, 3, false},
	{"left shin", [2]float64{-6, 28}, [2]float64{-8, 32}, 2, false},
	{"right shin", [2]float64{6, 28}, [2]float64{8, 32}, 2, false},
}

func instantiate(specs []BoneSpec) []Bone {
	bones := make([]Bone, len(specs))
	for i, s := range specs {
		bones[i] = Bone{
			Name:       s.Name,
			LocalStart: mgl64.Vec2{s.Start[0], s.Start[1]}.Mul(1 / templateScale),
			LocalEnd:   mgl64.Vec2{s.End[0], s.End[1]}.Mul(1 / templateScale),
			Thickness:  s.Thickness / templateScale,
			Core:       s.Core,
		}
	}
	return bones
}
