package terminal

import (
	"fmt"
	"image/color"

	"bone-crawler/internal/game"
	"bone-crawler/internal/render"

	"github.com/gdamore/tcell/v2"
)

// Keymap turns key presses into commands. Step and Angle are the amounts
// one press asks for; the engine clamps them to a frame's worth.
type Keymap struct {
	Step  float64
	Angle float64
}

// Action is what a key press asks for.
type Action struct {
	Command game.Command
	Valid   bool
	Quit    bool
	Music   bool // toggle the soundtrack
}

// Translate maps one key event:
//
//	w/up    forward       s/down  back
//	a       strafe left   d       strafe right
//	q/left  turn left     e/right turn right
//	space   attack        esc/^C  quit
//	m       music on/off
func (k Keymap) Translate(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return Action{Quit: true}
	case tcell.KeyUp:
		return k.cmd(game.CommandMove, k.Step)
	case tcell.KeyDown:
		return k.cmd(game.CommandMove, -k.Step)
	case tcell.KeyLeft:
		return k.cmd(game.CommandTurn, -k.Angle)
	case tcell.KeyRight:
		return k.cmd(game.CommandTurn, k.Angle)
	case tcell.KeyRune:
	default:
		return Action{}
	}

	switch ev.Rune() {
	case 'w', 'W':
		return k.cmd(game.CommandMove, k.Step)
	case 's', 'S':
		return k.cmd(game.CommandMove, -k.Step)
	case 'a', 'A':
		return k.cmd(game.CommandStrafe, -k.Step)
	case 'd', 'D':
		return k.cmd(game.CommandStrafe, k.Step)
	case 'q', 'Q':
		return k.cmd(game.CommandTurn, -k.Angle)
	case 'e', 'E':
		return k.cmd(game.CommandTurn, k.Angle)
	case ' ':
		return k.cmd(game.CommandAttack, 0)
	case 'm', 'M':
		return Action{Music: true}
	}
	return Action{}
}

func (k Keymap) cmd(kind game.CommandKind, v float64) Action {
	return Action{Command: game.Command{Kind: kind, Value: v}, Valid: true}
}

func hudText(snap *game.GameSnapshot) string {
	status := "ready"
	if snap.Player.Cooldown > 0 {
		status = fmt.Sprintf("cooldown %d", snap.Player.Cooldown)
	}
	if snap.AliveCount == 0 && snap.EnemyCount > 0 {
		status = "level clear"
	} else if snap.Nearest.Steps >= 0 {
		status = fmt.Sprintf("nearest %d%s | %s", snap.Nearest.Steps, render.Heading(snap.Nearest.DX, snap.Nearest.DY), status)
	}
	return fmt.Sprintf(" kills %d | skeletons %d/%d | %s | wasd move, q/e turn, space swing, m music, esc quit",
		snap.TotalKills, snap.AliveCount, snap.EnemyCount, status)
}

func rgb(c color.RGBA) tcell.Color {
	return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
}
