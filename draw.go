package facecam

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/esimov/facecam/utils"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ShapeType is the marker shape used for landmark points.
type ShapeType string

const (
	Circle ShapeType = "circle"
	Cross  ShapeType = "cross"
)

var (
	boxColor      = color.NRGBA{R: 0x00, G: 0xff, B: 0x00, A: 0xff}
	landmarkColor = color.NRGBA{R: 0xff, G: 0x32, B: 0x32, A: 0xff}
	textColor     = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

const (
	boxThickness   = 2
	landmarkRadius = 2
	labelPadding   = 2
)

var labelFace = basicfont.Face7x13

// DrawRect draws the outline of the rectangle with the provided line thickness.
// The parts falling outside the image are ignored.
func DrawRect(dst draw.Image, r image.Rectangle, col color.Color, thickness int) {
	src := image.NewUniform(col)
	t := utils.Max(thickness, 1)

	edges := []image.Rectangle{
		image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+t),
		image.Rect(r.Min.X, r.Max.Y-t, r.Max.X, r.Max.Y),
		image.Rect(r.Min.X, r.Min.Y, r.Min.X+t, r.Max.Y),
		image.Rect(r.Max.X-t, r.Min.Y, r.Max.X, r.Max.Y),
	}
	for _, e := range edges {
		draw.Draw(dst, e.Intersect(dst.Bounds()), src, image.Point{}, draw.Over)
	}
}

// DrawMarker draws a landmark marker of the given shape centered on p.
func DrawMarker(dst draw.Image, shape ShapeType, p Point, size int, col color.Color) {
	bounds := dst.Bounds()
	switch shape {
	case Cross:
		for d := -size; d <= size; d++ {
			if pt := image.Pt(p.X+d, p.Y); pt.In(bounds) {
				dst.Set(pt.X, pt.Y, col)
			}
			if pt := image.Pt(p.X, p.Y+d); pt.In(bounds) {
				dst.Set(pt.X, pt.Y, col)
			}
		}
	default:
		for y := -size; y <= size; y++ {
			for x := -size; x <= size; x++ {
				if x*x+y*y > size*size {
					continue
				}
				if pt := image.Pt(p.X+x, p.Y+y); pt.In(bounds) {
					dst.Set(pt.X, pt.Y, col)
				}
			}
		}
	}
}

// DrawLabel writes the text on a filled background above the rectangle. When
// there is no room above, the label is placed inside the top edge.
func DrawLabel(dst draw.Image, r image.Rectangle, text string, bg, fg color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(fg),
		Face: labelFace,
	}
	metrics := labelFace.Metrics()
	height := (metrics.Ascent + metrics.Descent).Ceil() + 2*labelPadding
	width := d.MeasureString(text).Ceil() + 2*labelPadding

	top := r.Min.Y - height
	if top < dst.Bounds().Min.Y {
		top = r.Min.Y
	}
	bgRect := image.Rect(r.Min.X, top, r.Min.X+width, top+height)
	draw.Draw(dst, bgRect.Intersect(dst.Bounds()), image.NewUniform(bg), image.Point{}, draw.Over)

	d.Dot = fixed.P(r.Min.X+labelPadding, top+labelPadding+metrics.Ascent.Ceil())
	d.DrawString(text)
}

// drawFace draws the face box, its caption and the landmark points.
func drawFace(dst draw.Image, face DetectedFace, caption string, col color.Color) {
	rect := face.Box.Rect()
	DrawRect(dst, rect, col, boxThickness)
	DrawLabel(dst, rect, caption, col, textColor)
	for _, p := range face.Landmarks {
		DrawMarker(dst, Circle, p, landmarkRadius, landmarkColor)
	}
}
