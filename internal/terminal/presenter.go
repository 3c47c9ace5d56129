// Package terminal draws engine snapshots as text and maps key presses to
// engine commands.
package terminal

import (
	"math"

	"bone-crawler/internal/game"
	"bone-crawler/internal/game/raycast"
	"bone-crawler/internal/render"

	"github.com/gdamore/tcell/v2"
)

// shades run from near to far.
var shades = []rune{'█', '▓', '▒', '░'}

// Presenter rasterizes snapshots onto a tcell screen. The bottom row holds
// the HUD; the rest is the view.
type Presenter struct {
	screen  tcell.Screen
	palette render.Palette
}

// NewPresenter creates a presenter for screen.
func NewPresenter(screen tcell.Screen) *Presenter {
	return &Presenter{screen: screen, palette: render.DefaultPalette}
}

// Draw renders snap and shows it.
func (p *Presenter) Draw(snap *game.GameSnapshot) {
	p.screen.Clear()
	cols, rows := p.screen.Size()
	if cols < 1 || rows < 2 || snap.Width < 1 || snap.Height < 1 {
		p.screen.Show()
		return
	}
	view := rows - 1

	p.drawWalls(snap, cols, view)
	p.drawBones(snap, cols, view)
	p.drawText(0, view, hudText(snap), tcell.StyleDefault.Foreground(rgb(p.palette.Text)).Bold(true))
	p.screen.Show()
}

func (p *Presenter) drawWalls(snap *game.GameSnapshot, cols, view int) {
	sky := tcell.StyleDefault.Background(rgb(p.palette.SkyTop))
	floor := tcell.StyleDefault.Foreground(rgb(p.palette.Grid)).Background(rgb(p.palette.Floor))

	for cx := 0; cx < cols; cx++ {
		col := cx * len(snap.Columns) / cols
		if col >= len(snap.Columns) {
			continue
		}
		hit := snap.Columns[col]
		top, bottom := render.WallSpan(hit.Distance, view)

		base := p.palette.WallX
		if hit.Axis == raycast.AxisY {
			base = p.palette.WallY
		}
		wall := tcell.StyleDefault.Foreground(rgb(render.WallColor(base, hit.Distance)))
		glyph := shade(hit.Distance)

		for y := 0; y < view; y++ {
			switch {
			case y < top:
				p.screen.SetContent(cx, y, ' ', nil, sky)
			case y <= bottom:
				p.screen.SetContent(cx, y, glyph, nil, wall)
			default:
				p.screen.SetContent(cx, y, '.', nil, floor)
			}
		}
	}
}

// drawBones scales segments from snapshot pixels to cells.
func (p *Presenter) drawBones(snap *game.GameSnapshot, cols, view int) {
	sx := float64(cols) / float64(snap.Width)
	sy := float64(view) / float64(snap.Height)
	style := tcell.StyleDefault.Foreground(rgb(p.palette.Bone)).Bold(true)

	for _, e := range snap.Enemies {
		if e.Kind == "plain" {
			if e.Alive && e.Sprite.AnchorVisible {
				x := int(float64(e.Sprite.Anchor.ScreenX) * sx)
				p.setCell(x, view/2, '@', tcell.StyleDefault.Foreground(rgb(p.palette.Plain)), cols, view)
			}
			continue
		}
		for _, seg := range e.Sprite.Segments {
			line(int(seg.X0*sx), int(seg.Y0*sy), int(seg.X1*sx), int(seg.Y1*sy), func(x, y int) {
				p.setCell(x, y, '#', style, cols, view)
			})
		}
	}
}

func (p *Presenter) setCell(x, y int, r rune, style tcell.Style, cols, view int) {
	if x < 0 || x >= cols || y < 0 || y >= view {
		return
	}
	p.screen.SetContent(x, y, r, nil, style)
}

func (p *Presenter) drawText(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		p.screen.SetContent(x, y, r, nil, style)
		x++
	}
}

// shade picks a denser glyph for nearer walls.
func shade(dist float64) rune {
	i := int(math.Max(0, dist-1) / 2)
	if i >= len(shades) {
		i = len(shades) - 1
	}
	return shades[i]
}

// line walks the cells between two points (Bresenham).
func line(x0, y0, x1, y1 int, plot func(x, y int)) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		plot(x0, y0)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
