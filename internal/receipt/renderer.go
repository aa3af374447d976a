// Package receipt renders the doom receipt image delivered when a
// conversation terminates.
package receipt

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/google/uuid"
	"github.com/spiralhq/doomspiral/internal/domain"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	canvasWidth  = 720
	canvasHeight = 1280
	margin       = 56

	serifFontFile = "PlayfairDisplay-Regular.ttf"
	monoFontFile  = "CourierPrime-Regular.ttf"
)

// Renderer draws doom receipts as PNG files under outputDir.
type Renderer struct {
	outputDir string
	fontDir   string

	// Embedded fallbacks for when the font dir is missing or unreadable.
	// Font trouble is never fatal; the receipt renders either way.
	fallbackSerif *truetype.Font
	fallbackMono  *truetype.Font
}

// NewRenderer creates a renderer writing to outputDir, loading fonts from
// fontDir when present.
func NewRenderer(outputDir, fontDir string) *Renderer {
	serif, _ := truetype.Parse(goregular.TTF)
	mono, _ := truetype.Parse(gomono.TTF)
	return &Renderer{
		outputDir:     outputDir,
		fontDir:       fontDir,
		fallbackSerif: serif,
		fallbackMono:  mono,
	}
}

func (r *Renderer) setSerif(dc *gg.Context, points float64) {
	r.setFace(dc, serifFontFile, r.fallbackSerif, points)
}

func (r *Renderer) setMono(dc *gg.Context, points float64) {
	r.setFace(dc, monoFontFile, r.fallbackMono, points)
}

func (r *Renderer) setFace(dc *gg.Context, name string, fallback *truetype.Font, points float64) {
	path := filepath.Join(r.fontDir, name)
	if err := dc.LoadFontFace(path, points); err == nil {
		return
	}
	slog.Debug("Font load failed, using embedded fallback", "font", path)
	if fallback != nil {
		dc.SetFontFace(truetype.NewFace(fallback, &truetype.Options{Size: points}))
	}
}

func drawGlitch(dc *gg.Context) {
	const glitches = 40
	dc.SetRGBA(34/255.0, 197/255.0, 94/255.0, 0.12)
	for i := 0; i < glitches; i++ {
		x := rand.Float64() * canvasWidth
		y := rand.Float64() * canvasHeight
		w := 20 + rand.Float64()*120
		h := 2 + rand.Float64()*8
		dc.DrawRectangle(x, y, w, h)
		dc.Fill()
	}
}

func drawDashedRule(dc *gg.Context, y float64) {
	dc.SetRGBA(248/255.0, 250/255.0, 252/255.0, 0.2)
	dc.SetLineWidth(1)
	dc.SetDash(8, 10)
	dc.DrawLine(margin, y, canvasWidth-margin, y)
	dc.Stroke()
	dc.SetDash()
}

// Render draws the receipt and returns the path of the written PNG. The
// caller owns the file and is expected to delete it after delivery.
func (r *Renderer) Render(data domain.Receipt) (string, error) {
	dc := gg.NewContext(canvasWidth, canvasHeight)

	dc.SetHexColor("#0f172a")
	dc.Clear()
	drawGlitch(dc)

	cursorY := 80.0

	dc.SetHexColor("#f8fafc")
	r.setSerif(dc, 42)
	dc.DrawString("THE SPIRAL", margin, cursorY)

	r.setSerif(dc, 24)
	dc.DrawString("Doom Receipt", margin, cursorY+38)
	cursorY += 90

	drawDashedRule(dc, cursorY)
	cursorY += 40

	name := data.UserName
	if name == "" {
		name = "Friend"
	}
	dc.SetHexColor("#22c55e")
	r.setMono(dc, 22)
	dc.DrawString(fmt.Sprintf("Name: %s", name), margin, cursorY)
	cursorY += 38
	dc.DrawString(fmt.Sprintf("Doom Score: %d", data.DoomScore), margin, cursorY)
	cursorY += 52

	cursorY = r.drawSection(dc, "Summary", data.Summary, cursorY)
	cursorY += 26
	cursorY = r.drawSection(dc, "Reality Check", data.RealityCheck, cursorY)

	cursorY += 40
	drawDashedRule(dc, cursorY)

	cursorY += 50
	dc.SetHexColor("#f8fafc")
	r.setSerif(dc, 20)
	dc.DrawString("Intent", margin, cursorY)

	dc.SetRGBA(34/255.0, 197/255.0, 94/255.0, 0.5)
	r.setMono(dc, 16)
	dc.DrawString("share your doom on instagram", margin, cursorY+30)

	if err := os.MkdirAll(r.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create receipt output dir: %w", err)
	}
	path := filepath.Join(r.outputDir, fmt.Sprintf("doom-receipt-%s.png", uuid.NewString()))
	if err := dc.SavePNG(path); err != nil {
		return "", fmt.Errorf("write receipt image: %w", err)
	}
	return path, nil
}

func (r *Renderer) drawSection(dc *gg.Context, title, body string, cursorY float64) float64 {
	dc.SetHexColor("#f8fafc")
	r.setSerif(dc, 26)
	dc.DrawString(title, margin, cursorY)
	cursorY += 34

	dc.SetHexColor("#22c55e")
	r.setMono(dc, 20)
	for _, line := range dc.WordWrap(body, canvasWidth-margin*2) {
		dc.DrawString(line, margin, cursorY)
		cursorY += 28
	}
	return cursorY
}
