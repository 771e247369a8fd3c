package facecam

import (
	"image"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
)

func TestClampBox(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 50)
	testCases := []struct {
		name string
		box  BoundingBox
		want BoundingBox
	}{
		{"inside", BoundingBox{10, 10, 20, 20}, BoundingBox{10, 10, 20, 20}},
		{"top left overflow", BoundingBox{-5, -5, 20, 20}, BoundingBox{0, 0, 15, 15}},
		{"bottom right overflow", BoundingBox{90, 40, 20, 20}, BoundingBox{90, 40, 10, 10}},
		{"covering", BoundingBox{-10, -10, 200, 200}, BoundingBox{0, 0, 100, 50}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := ClampBox(tc.box, bounds)
			assert.Equal(t, tc.want, got)
			assert.True(t, got.Rect().In(bounds))
		})
	}

	outside := ClampBox(BoundingBox{200, 10, 20, 20}, bounds)
	assert.True(t, outside.Empty())
}

func TestBoxFromDetection(t *testing.T) {
	bounds := image.Rect(0, 0, 100, 100)

	box := boxFromDetection(pigo.Detection{Row: 50, Col: 40, Scale: 20, Q: 10}, bounds)
	assert.Equal(t, BoundingBox{X: 30, Y: 40, Width: 20, Height: 20}, box)
	assert.Equal(t, Point{X: 40, Y: 50}, box.Center())

	box = boxFromDetection(pigo.Detection{Row: 5, Col: 95, Scale: 30, Q: 10}, bounds)
	assert.True(t, box.Rect().In(bounds))
	assert.Equal(t, BoundingBox{X: 80, Y: 0, Width: 20, Height: 20}, box)
}

func TestPointFromPuploc(t *testing.T) {
	bounds := image.Rect(0, 0, 10, 10)

	p, ok := pointFromPuploc(&pigo.Puploc{Row: 3, Col: 4}, bounds)
	assert.True(t, ok)
	assert.Equal(t, Point{X: 4, Y: 3}, p)

	_, ok = pointFromPuploc(&pigo.Puploc{Row: -1, Col: 4}, bounds)
	assert.False(t, ok)

	_, ok = pointFromPuploc(nil, bounds)
	assert.False(t, ok)
}
