// Package preview draws session snapshots as PNG images for spectators.
package preview

import (
	"fmt"
	"image/color"
	"io"
	"log"
	"sort"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"rain-dodge/internal/game"
)

const (
	playerHeight = 40.0
	dropRadius   = 6.0
)

var (
	colorSky       = color.RGBA{12, 12, 28, 255}
	colorBand      = color.RGBA{255, 62, 62, 40}
	colorDrop      = color.RGBA{90, 170, 255, 255}
	colorAlive     = color.RGBA{83, 255, 69, 255}
	colorDead      = color.RGBA{90, 90, 100, 255}
	colorLabel     = color.RGBA{230, 230, 240, 255}
	colorHUD       = color.RGBA{255, 149, 0, 255}
	colorHUDShadow = color.RGBA{0, 0, 0, 160}
)

// Renderer draws a snapshot onto a field-sized canvas.
// A Renderer is safe for concurrent use.
type Renderer struct {
	width  int
	height int
	scale  float64

	mu        sync.Mutex // font faces are not safe for concurrent use
	fontSmall font.Face
	fontLarge font.Face
}

// NewRenderer creates a renderer that outputs scale times the field size.
// Scale values <= 0 mean 1.
func NewRenderer(scale float64) *Renderer {
	if scale <= 0 {
		scale = 1
	}
	r := &Renderer{
		width:  int(game.FieldWidth * scale),
		height: int(game.FieldHeight * scale),
		scale:  scale,
	}
	r.loadFonts()
	return r
}

// loadFonts parses the embedded Go font once. Text is skipped if it fails.
func (r *Renderer) loadFonts() {
	parsed, err := opentype.Parse(goregular.TTF)
	if err != nil {
		log.Printf("⚠️ Failed to parse preview font: %v", err)
		return
	}

	r.fontSmall, err = opentype.NewFace(parsed, &opentype.FaceOptions{Size: 12, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Printf("⚠️ Failed to create small font face: %v", err)
	}
	r.fontLarge, err = opentype.NewFace(parsed, &opentype.FaceOptions{Size: 18, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Printf("⚠️ Failed to create large font face: %v", err)
	}
}

// Size returns the output image dimensions.
func (r *Renderer) Size() (width, height int) {
	return r.width, r.height
}

// Render draws snap and returns the context holding the image.
func (r *Renderer) Render(snap *game.SessionSnapshot) *gg.Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	dc := gg.NewContext(r.width, r.height)
	dc.Scale(r.scale, r.scale)

	r.drawBackground(dc)
	if snap != nil {
		r.drawRaindrops(dc, snap.World.Raindrops)
		r.drawPlayers(dc, snap.World.Players)
		r.drawHUD(dc, snap)
	}
	return dc
}

// EncodePNG renders snap and writes it to w as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.SessionSnapshot) error {
	return r.Render(snap).EncodePNG(w)
}

func (r *Renderer) drawBackground(dc *gg.Context) {
	dc.SetColor(colorSky)
	dc.DrawRectangle(0, 0, game.FieldWidth, game.FieldHeight)
	dc.Fill()

	// Catch band where drops can hit
	dc.SetColor(colorBand)
	dc.DrawRectangle(0, game.CatchBandTop, game.FieldWidth, game.CatchBandBottom-game.CatchBandTop)
	dc.Fill()
}

func (r *Renderer) drawRaindrops(dc *gg.Context, drops []game.Obstacle) {
	dc.SetColor(colorDrop)
	for _, d := range drops {
		dc.DrawEllipse(d.X, d.Y, dropRadius*0.7, dropRadius)
		dc.Fill()
	}
}

func (r *Renderer) drawPlayers(dc *gg.Context, players map[string]game.PlayerView) {
	// Stable draw order so overlapping players render the same every frame
	ids := make([]string, 0, len(players))
	for id := range players {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	top := game.FieldHeight - playerHeight
	for _, id := range ids {
		p := players[id]

		if p.Alive {
			dc.SetColor(colorAlive)
		} else {
			dc.SetColor(colorDead)
		}
		dc.DrawRoundedRectangle(p.X, top, game.PlayerWidth, playerHeight, 6)
		dc.Fill()

		if r.fontSmall != nil {
			dc.SetFontFace(r.fontSmall)
			dc.SetColor(colorLabel)
			dc.DrawStringAnchored(p.Name, p.X+game.PlayerWidth/2, top-10, 0.5, 0.5)
		}
	}
}

func (r *Renderer) drawHUD(dc *gg.Context, snap *game.SessionSnapshot) {
	if r.fontLarge == nil {
		return
	}
	dc.SetFontFace(r.fontLarge)

	status := "Waiting for start"
	if snap.Round.Active {
		status = fmt.Sprintf("Round %d  %.1fs", snap.Round.Round, float64(snap.Round.ElapsedMs)/1000)
	} else if snap.Round.Round > 0 {
		status = fmt.Sprintf("Round %d over", snap.Round.Round)
	}
	line := fmt.Sprintf("%s  |  %d/%d alive", status, snap.AliveCount, snap.PlayerCount)

	dc.SetColor(colorHUDShadow)
	dc.DrawString(line, 17, 31)
	dc.SetColor(colorHUD)
	dc.DrawString(line, 16, 30)
}
