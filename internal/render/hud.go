package render

import (
	"fmt"

	"bone-crawler/internal/game"
)

// hudLine is the status text drawn in the corner of every frame.
func hudLine(snap *game.GameSnapshot) string {
	ready := "READY"
	if snap.Player.Cooldown > 0 {
		ready = fmt.Sprintf("CD %d", snap.Player.Cooldown)
	}
	near := ""
	if snap.AliveCount > 0 && snap.Nearest.Steps >= 0 {
		near = fmt.Sprintf("  NEAR %d%s", snap.Nearest.Steps, Heading(snap.Nearest.DX, snap.Nearest.DY))
	}
	return fmt.Sprintf("KILLS %d  LEFT %d/%d%s  %s", snap.TotalKills, snap.AliveCount, snap.EnemyCount, near, ready)
}

// Heading names a unit map step as a compass letter; north is -y.
func Heading(dx, dy int) string {
	switch {
	case dy < 0:
		return "N"
	case dx > 0:
		return "E"
	case dy > 0:
		return "S"
	case dx < 0:
		return "W"
	}
	return ""
}
