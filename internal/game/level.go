package game

import (
	"math/rand"

	"bone-crawler/internal/game/maze"
	"bone-crawler/internal/game/skeleton"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
)

// LevelConfig sizes a dungeon and its population.
type LevelConfig struct {
	MazeWidth    int
	MazeHeight   int
	Skeletons    int
	PlainEnemies int
	// SafeRadius keeps enemies at least this far from the spawn point.
	SafeRadius float64
}

// DefaultLevelConfig returns a small dungeon.
func DefaultLevelConfig() LevelConfig {
	return LevelConfig{
		MazeWidth:  12,
		MazeHeight: 12,
		Skeletons:  10,
		SafeRadius: 2,
	}
}

// Level is one generated dungeon. The maze and tile map are read-only once
// built; only the enemies change.
type Level struct {
	Maze    *maze.Maze
	Tiles   *maze.TileMap
	Spawn   mgl64.Vec2
	Enemies []*Enemy
}

// NewLevel generates a maze, builds its tile map and populates it. All
// randomness comes from rng.
func NewLevel(cfg LevelConfig, body skeleton.Config, rng *rand.Rand) (*Level, error) {
	m, err := maze.Generate(cfg.MazeWidth, cfg.MazeHeight, rng)
	if err != nil {
		return nil, errors.Wrap(err, "generate maze")
	}

	tiles := maze.Build(m)
	if err := tiles.Validate(m); err != nil {
		return nil, errors.Wrap(err, "build tile map")
	}

	open := tiles.OpenTiles()
	lvl := &Level{
		Maze:  m,
		Tiles: tiles,
		Spawn: tileCentre(open[0]),
	}

	// Candidate enemy tiles in row-major order, then shuffled.
	candidates := make([]maze.Point, 0, len(open))
	for _, p := range open {
		if tileCentre(p).Sub(lvl.Spawn).Len() >= cfg.SafeRadius {
			candidates = append(candidates, p)
		}
	}
	rng.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	id := 0
	for i := 0; i < cfg.Skeletons && id < len(candidates); i++ {
		lvl.Enemies = append(lvl.Enemies, NewSkeleton(id, tileCentre(candidates[id]), body))
		id++
	}
	for i := 0; i < cfg.PlainEnemies && id < len(candidates); i++ {
		lvl.Enemies = append(lvl.Enemies, NewEnemy(id, tileCentre(candidates[id])))
		id++
	}

	return lvl, nil
}

// AliveCount returns the number of living enemies.
func (l *Level) AliveCount() int {
	n := 0
	for _, e := range l.Enemies {
		if e.Alive() {
			n++
		}
	}
	return n
}

// SpawnFacing picks an initial view direction down an open corridor.
func (l *Level) SpawnFacing() mgl64.Vec2 {
	x, y := int(l.Spawn[0]), int(l.Spawn[1])
	switch {
	case !l.Tiles.IsWall(x+1, y):
		return mgl64.Vec2{1, 0}
	case !l.Tiles.IsWall(x, y+1):
		return mgl64.Vec2{0, 1}
	case !l.Tiles.IsWall(x-1, y):
		return mgl64.Vec2{-1, 0}
	}
	return mgl64.Vec2{0, -1}
}

func tileCentre(p maze.Point) mgl64.Vec2 {
	return mgl64.Vec2{float64(p.X) + 0.5, float64(p.Y) + 0.5}
}
