// Package render paints engine snapshots into images: a synthwave sky and
// floor grid, ray-cast wall columns, glowing bone sprites, the axe swing
// and a minimap HUD.
package render

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"math"
	"sort"
	"sync"

	"bone-crawler/internal/game"
	"bone-crawler/internal/game/maze"
	"bone-crawler/internal/game/raycast"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/opentype"
)

// Palette holds every colour the painter uses.
type Palette struct {
	SkyTop    color.RGBA
	SkyBottom color.RGBA
	Floor     color.RGBA
	Grid      color.RGBA
	WallX     color.RGBA // faces hit crossing a vertical grid line
	WallY     color.RGBA // faces hit crossing a horizontal grid line
	Bone      color.RGBA
	Plain     color.RGBA
	Haft      color.RGBA
	Blade     color.RGBA
	MapWall   color.RGBA
	MapFloor  color.RGBA
	MapPlayer color.RGBA
	MapEnemy  color.RGBA
	Text      color.RGBA
}

// DefaultPalette is the ember-and-neon look.
var DefaultPalette = Palette{
	SkyTop:    color.RGBA{20, 0, 50, 255},
	SkyBottom: color.RGBA{255, 20, 120, 255},
	Floor:     color.RGBA{20, 0, 40, 255},
	Grid:      color.RGBA{0, 200, 0, 180},
	WallX:     color.RGBA{180, 80, 20, 255},
	WallY:     color.RGBA{120, 20, 0, 255},
	Bone:      color.RGBA{255, 140, 0, 255},
	Plain:     color.RGBA{200, 200, 255, 255},
	Haft:      color.RGBA{139, 69, 19, 255},
	Blade:     color.RGBA{255, 165, 0, 255},
	MapWall:   color.RGBA{0, 0, 0, 255},
	MapFloor:  color.RGBA{211, 211, 211, 255},
	MapPlayer: color.RGBA{255, 0, 0, 255},
	MapEnemy:  color.RGBA{255, 140, 0, 255},
	Text:      color.RGBA{255, 255, 255, 255},
}

// Options tunes the painter.
type Options struct {
	// Scale upsamples the finished frame with nearest-neighbour filtering.
	Scale int
	// MinimapCell is the minimap tile size in pixels; 0 hides the minimap.
	MinimapCell int
	Palette     Palette
}

// DefaultOptions returns a 2x frame with a small minimap.
func DefaultOptions() Options {
	return Options{Scale: 2, MinimapCell: 2, Palette: DefaultPalette}
}

// minFade keeps distant walls visible.
const minFade = 0.2

// Painter renders snapshots. One painter reuses one drawing context, so
// calls are serialized.
type Painter struct {
	mu     sync.Mutex
	opts   Options
	width  int
	height int
	dc     *gg.Context
	face   font.Face
}

// NewPainter creates a painter for a width x height view.
func NewPainter(width, height int, opts Options) *Painter {
	if opts.Scale < 1 {
		opts.Scale = 1
	}
	p := &Painter{
		opts:   opts,
		width:  width,
		height: height,
		dc:     gg.NewContext(width, height),
	}
	p.loadFont()
	return p
}

// loadFont parses the embedded Go Mono face once. Text falls back to gg's
// built-in face on failure.
func (p *Painter) loadFont() {
	parsed, err := opentype.Parse(gomono.TTF)
	if err != nil {
		log.Printf("⚠️ Failed to parse HUD font: %v", err)
		return
	}
	size := math.Max(6, float64(p.height)/25)
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		log.Printf("⚠️ Failed to create HUD font face: %v", err)
		return
	}
	p.face = face
	p.dc.SetFontFace(face)
}

// Size returns the output image size after scaling.
func (p *Painter) Size() (int, int) {
	return p.width * p.opts.Scale, p.height * p.opts.Scale
}

// Render paints snap and returns a new image the caller owns. tiles may be
// nil, which hides the minimap.
func (p *Painter) Render(snap *game.GameSnapshot, tiles *maze.TileMap) *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.paint(snap, tiles)

	src := p.dc.Image()
	w, h := p.Size()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if p.opts.Scale == 1 {
		xdraw.Draw(dst, dst.Bounds(), src, image.Point{}, xdraw.Src)
		return dst
	}
	xdraw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

// WritePNG paints snap and encodes it as PNG.
func (p *Painter) WritePNG(w io.Writer, snap *game.GameSnapshot, tiles *maze.TileMap) error {
	img := p.Render(snap, tiles)
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	return errors.Wrap(enc.Encode(w, img), "encode png")
}

func (p *Painter) paint(snap *game.GameSnapshot, tiles *maze.TileMap) {
	dc := p.dc
	dc.Identity()

	p.drawSky(dc)
	p.drawFloor(dc)
	p.drawWalls(dc, snap.Columns)
	p.drawEnemies(dc, snap.Enemies)
	p.drawAxe(dc, snap.Player.Swing)
	if tiles != nil && p.opts.MinimapCell > 0 {
		p.drawMinimap(dc, tiles, snap)
	}
	p.drawHUD(dc, snap)
}

func (p *Painter) drawSky(dc *gg.Context) {
	pal := p.opts.Palette
	horizon := float64(p.height) / 2

	grad := gg.NewLinearGradient(0, 0, 0, horizon)
	grad.AddColorStop(0, pal.SkyTop)
	grad.AddColorStop(1, pal.SkyBottom)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(p.width), horizon)
	dc.Fill()
}

// drawFloor lays a perspective grid below the horizon: rows at 1/d and
// rails converging on the view centre.
func (p *Painter) drawFloor(dc *gg.Context) {
	pal := p.opts.Palette
	w, h := float64(p.width), float64(p.height)
	horizon := h / 2

	dc.SetColor(pal.Floor)
	dc.DrawRectangle(0, horizon, w, h-horizon)
	dc.Fill()

	for d := 1.0; d <= 16; d *= 1.5 {
		y := horizon + horizon/d
		glowLine(dc, 0, y, w, y, 1, pal.Grid)
	}
	for x := -w; x <= 2*w; x += w / 8 {
		glowLine(dc, x, h, w/2, horizon, 1, pal.Grid)
	}
}

// WallSpan returns the rows covered by a wall slice at distance dist on a
// screen of the given height, clamped to the screen.
func WallSpan(dist float64, height int) (top, bottom int) {
	if dist <= 0 {
		return 0, height - 1
	}
	line := int(float64(height) / dist)
	top = max(0, height/2-line/2)
	bottom = min(height-1, height/2+line/2)
	return top, bottom
}

// WallColor shades base by distance, never dimmer than minFade.
func WallColor(base color.RGBA, dist float64) color.RGBA {
	fade := 1.0
	if dist > 0 {
		fade = math.Max(minFade, math.Min(1, 1/dist))
	}
	return color.RGBA{
		R: uint8(float64(base.R) * fade),
		G: uint8(float64(base.G) * fade),
		B: uint8(float64(base.B) * fade),
		A: 255,
	}
}

func (p *Painter) drawWalls(dc *gg.Context, cols []raycast.Hit) {
	pal := p.opts.Palette
	dc.SetLineCapButt()
	for x, hit := range cols {
		if x >= p.width || math.IsInf(hit.Distance, 0) || hit.Distance >= raycast.Sentinel {
			continue
		}
		base := pal.WallX
		if hit.Axis == raycast.AxisY {
			base = pal.WallY
		}
		top, bottom := WallSpan(hit.Distance, p.height)
		dc.SetColor(WallColor(base, hit.Distance))
		cx := float64(x) + 0.5
		dc.DrawLine(cx, float64(top), cx, float64(bottom)+1)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

// drawEnemies paints far enemies first so near bones overlap them.
func (p *Painter) drawEnemies(dc *gg.Context, enemies []game.EnemySnapshot) {
	pal := p.opts.Palette
	order := make([]int, len(enemies))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return enemies[order[a]].Distance > enemies[order[b]].Distance
	})

	dc.SetLineCapRound()
	for _, i := range order {
		e := enemies[i]
		if e.Kind == "plain" {
			if e.Alive && e.Sprite.AnchorVisible {
				a := e.Sprite.Anchor
				r := a.Scale / 4
				dc.SetColor(pal.Plain)
				dc.DrawCircle(float64(a.ScreenX), float64(p.height)/2, r)
				dc.Fill()
			}
			continue
		}
		for _, seg := range e.Sprite.Segments {
			glowLine(dc, seg.X0, seg.Y0, seg.X1, seg.Y1, math.Max(1, seg.Thickness), pal.Bone)
		}
	}
}

// drawAxe sweeps the weapon across the lower screen while a swing plays.
func (p *Painter) drawAxe(dc *gg.Context, swing int) {
	if swing <= 0 {
		return
	}
	pal := p.opts.Palette
	w, h := float64(p.width), float64(p.height)

	t := 1 - float64(swing)/float64(game.SwingFrames)
	angle := -1.2 + 2.4*t
	dx, dy := math.Sin(angle), -math.Cos(angle)
	px, py := -dy, dx

	pivotX, pivotY := w/2, h-h/12
	length := h * 0.6
	headX, headY := pivotX+dx*length, pivotY+dy*length

	dc.SetLineCapRound()
	dc.SetColor(pal.Haft)
	dc.SetLineWidth(h / 30)
	dc.DrawLine(pivotX, pivotY, headX, headY)
	dc.Stroke()

	blade := h / 6
	dc.MoveTo(headX+px*blade-dx*blade/4, headY+py*blade-dy*blade/4)
	dc.LineTo(headX+px*blade/2-dx*blade*0.8, headY+py*blade/2-dy*blade*0.8)
	dc.LineTo(headX-px*blade/2-dx*blade*0.8, headY-py*blade/2-dy*blade*0.8)
	dc.LineTo(headX-px*blade-dx*blade/4, headY-py*blade-dy*blade/4)
	dc.LineTo(headX, headY)
	dc.ClosePath()
	dc.SetColor(pal.Blade)
	dc.Fill()
}

func (p *Painter) drawMinimap(dc *gg.Context, tiles *maze.TileMap, snap *game.GameSnapshot) {
	pal := p.opts.Palette
	cell := float64(p.opts.MinimapCell)
	const pad = 2.0

	for y := 0; y < tiles.Height(); y++ {
		for x := 0; x < tiles.Width(); x++ {
			if tiles.IsWall(x, y) {
				dc.SetColor(pal.MapWall)
			} else {
				dc.SetColor(pal.MapFloor)
			}
			dc.DrawRectangle(pad+float64(x)*cell, pad+float64(y)*cell, cell, cell)
			dc.Fill()
		}
	}

	dc.SetColor(pal.MapEnemy)
	for _, e := range snap.Enemies {
		if e.Alive {
			dc.DrawRectangle(pad+e.X*cell-cell/4, pad+e.Y*cell-cell/4, cell/2, cell/2)
			dc.Fill()
		}
	}

	cam := snap.Camera
	px, py := pad+cam.X*cell, pad+cam.Y*cell
	dc.SetColor(pal.MapPlayer)
	dc.DrawCircle(px, py, math.Max(1, cell/2))
	dc.Fill()
	dc.SetLineWidth(1)
	dc.DrawLine(px, py, px+cam.DirX*cell*2, py+cam.DirY*cell*2)
	dc.Stroke()
}

func (p *Painter) drawHUD(dc *gg.Context, snap *game.GameSnapshot) {
	dc.SetColor(p.opts.Palette.Text)
	line := hudLine(snap)
	dc.DrawStringAnchored(line, float64(p.width)-2, float64(p.height)-2, 1, 0)
}

// glowLine draws a line with a soft halo of widening translucent strokes.
func glowLine(dc *gg.Context, x0, y0, x1, y1, width float64, c color.RGBA) {
	for i := 3; i >= 1; i-- {
		halo := c
		halo.A = uint8(int(c.A) / (i + 1))
		dc.SetColor(halo)
		dc.SetLineWidth(width + float64(i*2))
		dc.DrawLine(x0, y0, x1, y1)
		dc.Stroke()
	}
	dc.SetColor(c)
	dc.SetLineWidth(width)
	dc.DrawLine(x0, y0, x1, y1)
	dc.Stroke()
}
