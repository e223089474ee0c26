package service

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"

	_ "image/gif"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/agrilens/leafsight/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// Renderer draws detection boxes and confidence labels onto an image.
type Renderer struct {
	font *opentype.Font
}

func NewRenderer() (*Renderer, error) {
	f, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse label font: %w", err)
	}
	return &Renderer{font: f}, nil
}

var (
	boxColor   = color.NRGBA{R: 255, G: 0, B: 0, A: 255}
	labelBG    = color.NRGBA{R: 255, G: 0, B: 0, A: 217}
	labelColor = color.NRGBA{R: 255, G: 255, B: 255, A: 255}
)

// renderMetrics scales stroke and font size with image resolution so boxes
// stay legible on both phone photos and thumbnails. Sizes are tuned
// against a 300px reference edge and clamped to sane bounds.
type renderMetrics struct {
	stroke   int
	fontSize float64
}

func metricsFor(width, height int) renderMetrics {
	edge := width
	if height > edge {
		edge = height
	}
	scale := float64(edge) / 300.0

	stroke := clamp(2.5*scale, 4, 8)
	fontSize := clamp(14*scale, 12, 28)

	return renderMetrics{stroke: int(stroke), fontSize: fontSize}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Annotate decodes an image, draws every prediction's bounding box with a
// class/confidence label, and re-encodes as JPEG. Predictions carry center
// coordinates; boxes are drawn from the derived corners. Drawing clips at
// the image bounds, so boxes partially outside the frame are safe.
func (r *Renderer) Annotate(img []byte, preds []domain.Prediction) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := src.Bounds()
	canvas := image.NewRGBA(bounds)
	draw.Draw(canvas, bounds, src, bounds.Min, draw.Src)

	m := metricsFor(bounds.Dx(), bounds.Dy())

	face, err := opentype.NewFace(r.font, &opentype.FaceOptions{
		Size:    m.fontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build label face: %w", err)
	}
	defer face.Close()

	for _, p := range preds {
		x0 := int(p.X - p.Width/2)
		y0 := int(p.Y - p.Height/2)
		x1 := int(p.X + p.Width/2)
		y1 := int(p.Y + p.Height/2)

		strokeRect(canvas, x0, y0, x1, y1, m.stroke)
		drawLabel(canvas, face, x0, y0, fmt.Sprintf("%s (%.1f%%)", p.Class, p.Confidence*100))
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode annotated image: %w", err)
	}
	return buf.Bytes(), nil
}

// strokeRect draws an unfilled rectangle as four filled edge bars.
func strokeRect(dst *image.RGBA, x0, y0, x1, y1, stroke int) {
	fill := image.NewUniform(boxColor)
	draw.Draw(dst, image.Rect(x0, y0, x1, y0+stroke), fill, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(x0, y1-stroke, x1, y1), fill, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(x0, y0, x0+stroke, y1), fill, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(x1-stroke, y0, x1, y1), fill, image.Point{}, draw.Over)
}

// drawLabel paints the label text on a filled background sitting above the
// box's top-left corner.
func drawLabel(dst *image.RGBA, face font.Face, x, y int, text string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelColor),
		Face: face,
	}

	textW := d.MeasureString(text).Ceil()
	metrics := face.Metrics()
	textH := (metrics.Ascent + metrics.Descent).Ceil()

	bg := image.Rect(x, y-textH-4, x+textW+6, y)
	draw.Draw(dst, bg, image.NewUniform(labelBG), image.Point{}, draw.Over)

	d.Dot = fixed.P(x+3, y-4)
	d.DrawString(text)
}
