package renderer

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/vidzoom/internal/timeline"
	"github.com/ivlev/vidzoom/internal/zoom"
)

var (
	dominantColor  = color.NRGBA{R: 0, G: 168, B: 255}
	secondaryColor = color.NRGBA{R: 255, G: 170, B: 0}
	overlayFill    = color.NRGBA{R: 255, G: 255, B: 255}
	overlayStroke  = color.NRGBA{R: 0, G: 0, B: 0}
	placeholderBG  = color.NRGBA{R: 0x1a, G: 0x1a, B: 0x1a, A: 0xff}
	placeholderFG  = color.NRGBA{R: 0x66, G: 0x66, B: 0x66, A: 0xff}
)

const (
	margin          = 20
	readoutSize     = 16
	indicatorSize   = 14
	indicatorStep   = 25
	placeholderSize = 16
	placeholderText = "Loading video..."
)

// Fallback is returned when a frame had to be drawn unzoomed. The frame is
// still complete; callers may log the error and carry on.
type Fallback struct {
	Instant float64
	Level   float64
	Err     error
}

func (f *Fallback) Error() string {
	return fmt.Sprintf("render fallback at %.3fs (level %.2f): %v", f.Instant, f.Level, f.Err)
}

func (f *Fallback) Unwrap() error {
	return f.Err
}

type faceKey struct {
	bold bool
	size float64
}

// Renderer composites zoom plans onto RGBA canvases. It is safe for
// concurrent use: faces are cached per size and shared, so text drawing is
// serialized by textMu.
type Renderer struct {
	logger  *slog.Logger
	bold    *opentype.Font
	regular *opentype.Font

	mu    sync.Mutex
	faces map[faceKey]font.Face

	// textMu guards glyph rendering on the cached faces.
	textMu sync.Mutex
}

// New parses the embedded fonts. A nil logger discards output.
func New(logger *slog.Logger) (*Renderer, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse bold font: %w", err)
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse regular font: %w", err)
	}
	return &Renderer{
		logger:  logger,
		bold:    bold,
		regular: regular,
		faces:   make(map[faceKey]font.Face),
	}, nil
}

// NewCanvas allocates a canvas of the given size.
func NewCanvas(width, height int) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, width, height))
}

// Render draws the frame for one instant onto dst. A nil frame means the
// source is not ready yet. The returned error, if any, is a *Fallback.
func (r *Renderer) Render(dst *image.RGBA, plan zoom.Plan, frame image.Image, instant float64) error {
	if frame == nil || frame.Bounds().Empty() {
		r.drawPlaceholder(dst)
		return r.fallback(instant, plan.Level, ErrSourceNotReady)
	}

	var err error
	switch plan.Kind {
	case zoom.KindIdle:
		r.drawFrame(dst, frame)
		return nil
	case zoom.KindSingle, zoom.KindTransition, zoom.KindMultiple:
		b := frame.Bounds()
		vp, verr := ComputeViewport(plan.Region, plan.Level, b.Dx(), b.Dy())
		if verr != nil {
			r.drawFrame(dst, frame)
			err = r.fallback(instant, plan.Level, verr)
		} else {
			r.drawViewport(dst, frame, vp)
		}
	default:
		r.drawFrame(dst, frame)
		return r.fallback(instant, plan.Level, fmt.Errorf("unknown plan kind %v", plan.Kind))
	}

	r.textMu.Lock()
	defer r.textMu.Unlock()
	if plan.Kind != zoom.KindTransition && plan.Overlay.Visible() {
		r.drawOverlay(dst, plan.Overlay, plan.EaseProgress)
	}
	if plan.Kind == zoom.KindMultiple {
		r.drawIndicators(dst, plan.Indicators)
	} else {
		r.drawReadout(dst, plan.Level, plan.EaseProgress)
	}
	return err
}

func (r *Renderer) fallback(instant, level float64, err error) error {
	r.logger.Warn("render fallback", "instant", instant, "level", level, "reason", err)
	return &Fallback{Instant: instant, Level: level, Err: err}
}

func (r *Renderer) drawFrame(dst *image.RGBA, frame image.Image) {
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)
}

// drawViewport scales the viewport of frame to cover dst, keeping the
// fractional part of the viewport origin.
func (r *Renderer) drawViewport(dst *image.RGBA, frame image.Image, vp Viewport) {
	b, db := frame.Bounds(), dst.Bounds()
	sx := float64(db.Dx()) / vp.Width
	sy := float64(db.Dy()) / vp.Height
	ox := float64(b.Min.X) + vp.X
	oy := float64(b.Min.Y) + vp.Y

	s2d := f64.Aff3{
		sx, 0, float64(db.Min.X) - ox*sx,
		0, sy, float64(db.Min.Y) - oy*sy,
	}
	sr := image.Rect(
		int(math.Floor(ox)), int(math.Floor(oy)),
		int(math.Ceil(ox+vp.Width)), int(math.Ceil(oy+vp.Height)),
	).Intersect(b)

	draw.Draw(dst, db, image.Black, image.Point{}, draw.Src)
	xdraw.ApproxBiLinear.Transform(dst, s2d, frame, sr, xdraw.Src, nil)
}

func (r *Renderer) drawPlaceholder(dst *image.RGBA) {
	b := dst.Bounds()
	draw.Draw(dst, b, image.NewUniform(placeholderBG), image.Point{}, draw.Src)

	r.textMu.Lock()
	defer r.textMu.Unlock()
	face := r.face(false, placeholderSize)
	tw := measure(face, placeholderText)
	m := face.Metrics()
	ascent, descent := toFloat(m.Ascent), toFloat(m.Descent)
	x := float64(b.Min.X) + (float64(b.Dx())-tw)/2
	y := float64(b.Min.Y) + float64(b.Dy())/2 + (ascent-descent)/2
	drawString(dst, face, placeholderText, x, y, placeholderFG)
}

// drawOverlay draws outlined text anchored at one of the overlay positions.
// (x, y) is the baseline origin.
func (r *Renderer) drawOverlay(dst *image.RGBA, o timeline.TextOverlay, progress float64) {
	b := dst.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	size := math.Max(16, math.Min(48, w/20))
	face := r.face(true, size)
	tw, th := measure(face, o.Text), size

	var x, y float64
	switch o.Position {
	case timeline.PositionTop:
		x, y = (w-tw)/2, th+margin
	case timeline.PositionBottom:
		x, y = (w-tw)/2, h-margin
	case timeline.PositionTopLeft:
		x, y = margin, th+margin
	case timeline.PositionTopRight:
		x, y = w-tw-margin, th+margin
	case timeline.PositionBottomLeft:
		x, y = margin, h-margin
	case timeline.PositionBottomRight:
		x, y = w-tw-margin, h-margin
	default:
		x, y = (w-tw)/2, (h+th)/2
	}
	x += float64(b.Min.X)
	y += float64(b.Min.Y)

	stroke := withAlpha(overlayStroke, 0.7*progress)
	for dy := -1.0; dy <= 1; dy++ {
		for dx := -1.0; dx <= 1; dx++ {
			if dx != 0 || dy != 0 {
				drawString(dst, face, o.Text, x+dx, y+dy, stroke)
			}
		}
	}
	drawString(dst, face, o.Text, x, y, withAlpha(overlayFill, 0.9*progress))
}

// drawReadout draws the current zoom level in the top-right corner.
func (r *Renderer) drawReadout(dst *image.RGBA, level, progress float64) {
	r.drawTopRight(dst, r.face(true, readoutSize), levelLabel(level), margin,
		withAlpha(dominantColor, 0.8*progress))
}

// drawIndicators stacks one label per active event under each other.
func (r *Renderer) drawIndicators(dst *image.RGBA, indicators []zoom.Indicator) {
	face := r.face(true, indicatorSize)
	for i, ind := range indicators {
		c, alpha := secondaryColor, 0.4
		if ind.Dominant {
			c, alpha = dominantColor, 0.8
		}
		r.drawTopRight(dst, face, levelLabel(ind.Level), float64(margin+i*indicatorStep),
			withAlpha(c, alpha*ind.Progress))
	}
}

func (r *Renderer) drawTopRight(dst *image.RGBA, face font.Face, text string, top float64, c color.Color) {
	b := dst.Bounds()
	x := float64(b.Max.X) - margin - measure(face, text)
	y := float64(b.Min.Y) + top + toFloat(face.Metrics().Ascent)
	drawString(dst, face, text, x, y, c)
}

func (r *Renderer) face(bold bool, size float64) font.Face {
	key := faceKey{bold: bold, size: size}
	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.faces[key]; ok {
		return f
	}
	src := r.regular
	if bold {
		src = r.bold
	}
	f, err := opentype.NewFace(src, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		// Only non-positive sizes fail here.
		panic(fmt.Sprintf("renderer: font face %.1f: %v", size, err))
	}
	r.faces[key] = f
	return f
}

func levelLabel(level float64) string {
	return fmt.Sprintf("%.1fx", level)
}

func drawString(dst draw.Image, face font.Face, text string, x, y float64, c color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(x * 64), Y: fixed.Int26_6(y * 64)},
	}
	d.DrawString(text)
}

func measure(face font.Face, text string) float64 {
	return toFloat(font.MeasureString(face, text))
}

func toFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}

func withAlpha(c color.NRGBA, alpha float64) color.NRGBA {
	c.A = uint8(math.Round(math.Max(0, math.Min(1, alpha)) * 255))
	return c
}
