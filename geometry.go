package facecam

import (
	"image"

	"github.com/esimov/facecam/utils"
	pigo "github.com/esimov/pigo/core"
)

// BoundingBox is a face rectangle with the origin in the top-left corner.
type BoundingBox struct {
	X      int
	Y      int
	Width  int
	Height int
}

// Rect returns the box as an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height)
}

// Empty reports whether the box has no area.
func (b BoundingBox) Empty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// Center returns the center of the box.
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Translate returns the box moved by d.
func (b BoundingBox) Translate(d image.Point) BoundingBox {
	b.X += d.X
	b.Y += d.Y
	return b
}

// Point is a single landmark coordinate.
type Point struct {
	X int
	Y int
}

// LandmarkSet is an ordered set of landmark points. The order is defined
// by the predictor which produced it and must be preserved.
type LandmarkSet []Point

// Translate returns a copy of the set with every point moved by d.
func (ls LandmarkSet) Translate(d image.Point) LandmarkSet {
	if ls == nil {
		return nil
	}
	out := make(LandmarkSet, len(ls))
	for i, p := range ls {
		out[i] = Point{X: p.X + d.X, Y: p.Y + d.Y}
	}
	return out
}

// DetectedFace holds the detection results of a single face on a single frame.
type DetectedFace struct {
	Group     string
	Box       BoundingBox
	Score     float32
	Landmarks LandmarkSet
}

// ClampBox trims the box to the provided bounds. The returned box is empty
// in case the two rectangles do not overlap.
func ClampBox(b BoundingBox, bounds image.Rectangle) BoundingBox {
	x0 := utils.Max(b.X, bounds.Min.X)
	y0 := utils.Max(b.Y, bounds.Min.Y)
	x1 := utils.Min(b.X+b.Width, bounds.Max.X)
	y1 := utils.Min(b.Y+b.Height, bounds.Max.Y)

	if x1 <= x0 || y1 <= y0 {
		return BoundingBox{X: x0, Y: y0}
	}
	return BoundingBox{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// boxFromDetection converts pigo's center based (row, col, scale) detection
// into a bounding box clamped to the image bounds.
func boxFromDetection(det pigo.Detection, bounds image.Rectangle) BoundingBox {
	half := det.Scale / 2
	box := BoundingBox{
		X:      det.Col - half,
		Y:      det.Row - half,
		Width:  det.Scale,
		Height: det.Scale,
	}
	return ClampBox(box, bounds)
}

// pointFromPuploc converts a pupil or landmark point localization result.
// It returns false when the localizer did not land inside the image.
func pointFromPuploc(p *pigo.Puploc, bounds image.Rectangle) (Point, bool) {
	if p == nil {
		return Point{}, false
	}
	pt := Point{X: p.Col, Y: p.Row}
	if !image.Pt(pt.X, pt.Y).In(bounds) {
		return pt, false
	}
	return pt, true
}
