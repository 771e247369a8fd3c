package facecam

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/draw"
	"os"
	"path/filepath"
	"testing"

	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brightSquare is the region the squareCascade fires on in brightSquareImage.
var brightSquare = image.Rect(30, 30, 70, 70)

// squareCascade builds a single tree face cascade which fires on the windows
// whose center is brighter than their top-left corner.
func squareCascade() []byte {
	buf := new(bytes.Buffer)
	buf.Write(make([]byte, 8))
	binary.Write(buf, binary.LittleEndian, uint32(1)) // tree depth
	binary.Write(buf, binary.LittleEndian, uint32(1)) // number of trees
	// The center pixel is compared with the pixel half a window up and left.
	buf.Write([]byte{0x00, 0x00, 0x80, 0x80})
	binary.Write(buf, binary.LittleEndian, float32(10))
	binary.Write(buf, binary.LittleEndian, float32(-10))
	binary.Write(buf, binary.LittleEndian, float32(0)) // threshold
	return buf.Bytes()
}

// stillCascade builds a localization cascade with no stages: the points stay
// where the initial estimate placed them.
func stillCascade() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(0))  // stages
	binary.Write(buf, binary.LittleEndian, float32(1)) // scale multiplier
	binary.Write(buf, binary.LittleEndian, uint32(0))  // trees per stage
	binary.Write(buf, binary.LittleEndian, uint32(0))  // tree depth
	return buf.Bytes()
}

// writeCascades lays out the cascade files the way the resources directory does.
func writeCascades(t *testing.T, root string) {
	t.Helper()
	lps := filepath.Join(root, "lps")
	require.NoError(t, os.MkdirAll(lps, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "facefinder"), squareCascade(), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "puploc"), stillCascade(), 0644))
	for _, name := range append(eyeCascades[:], mouthCascades[:]...) {
		require.NoError(t, os.WriteFile(filepath.Join(lps, name), stillCascade(), 0644))
	}
}

func brightSquareImage() *image.Gray {
	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	draw.Draw(gray, brightSquare, image.NewUniform(color.Gray{Y: 0xff}), image.Point{}, draw.Src)
	return gray
}

func TestCascadeDetector_Detect(t *testing.T) {
	cd, err := NewCascadeDetector(squareCascade(), DefaultCascadeParams())
	require.NoError(t, err)

	gray := brightSquareImage()
	regions := cd.Detect(gray)
	require.NotEmpty(t, regions)

	for _, r := range regions {
		assert.True(t, r.Box.Rect().In(gray.Bounds()), "region %v is out of bounds", r.Box)
		assert.Equal(t, r.Box.Width, r.Box.Height)
		assert.GreaterOrEqual(t, r.Score, DefaultCascadeParams().QThreshold)

		c := r.Box.Center()
		assert.True(t, image.Pt(c.X, c.Y).In(brightSquare.Inset(-1)), "region %v is centered off the square", r.Box)
	}

	uniform := image.NewGray(image.Rect(0, 0, 100, 100))
	assert.Empty(t, cd.Detect(uniform))
}

func TestCascadeDetector_Load(t *testing.T) {
	root := t.TempDir()
	writeCascades(t, root)

	cd, err := LoadCascadeDetector(filepath.Join(root, "facefinder"), DefaultCascadeParams())
	require.NoError(t, err)
	assert.NotEmpty(t, cd.Detect(brightSquareImage()))
}

func TestBoxFromDetection_Cascade(t *testing.T) {
	cd, err := NewCascadeDetector(squareCascade(), DefaultCascadeParams())
	require.NoError(t, err)

	gray := brightSquareImage()
	dets := cd.classifier.RunCascade(pigo.CascadeParams{
		MinSize:     20,
		MaxSize:     60,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: gray.Pix,
			Rows:   100,
			Cols:   100,
			Dim:    gray.Stride,
		},
	}, 0.0)
	require.NotEmpty(t, dets)

	// The sliding window never leaves the image, so the boxes are not clamped.
	for _, det := range dets {
		box := boxFromDetection(det, gray.Bounds())
		assert.Equal(t, BoundingBox{
			X:      det.Col - det.Scale/2,
			Y:      det.Row - det.Scale/2,
			Width:  det.Scale,
			Height: det.Scale,
		}, box)
		assert.True(t, image.Pt(det.Col, det.Row).In(brightSquare))
	}
}

func TestLandmarkPredictor_Predict(t *testing.T) {
	root := t.TempDir()
	writeCascades(t, root)

	lp, err := LoadLandmarkPredictor(filepath.Join(root, "puploc"), filepath.Join(root, "lps"), 0)
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	box := BoundingBox{X: 20, Y: 20, Width: 60, Height: 60}

	points := lp.Predict(gray, box)
	require.Len(t, points, LandmarkCount)
	for _, p := range points {
		assert.True(t, image.Pt(p.X, p.Y).In(gray.Bounds()), "point %v is out of bounds", p)
	}

	// The pupils are estimated left and right of the center, a bit above it.
	left, right := points[0], points[1]
	assert.InDelta(t, 40, left.X, 2)
	assert.InDelta(t, 46, left.Y, 2)
	assert.InDelta(t, 61, right.X, 2)
	assert.InDelta(t, 46, right.Y, 2)
}

func TestLandmarkPredictor_SmallFace(t *testing.T) {
	root := t.TempDir()
	writeCascades(t, root)

	lp, err := LoadLandmarkPredictor(filepath.Join(root, "puploc"), filepath.Join(root, "lps"), 0)
	require.NoError(t, err)

	gray := image.NewGray(image.Rect(0, 0, 100, 100))
	assert.Nil(t, lp.Predict(gray, BoundingBox{X: 20, Y: 20, Width: minLandmarkScale - 1, Height: minLandmarkScale - 1}))
	assert.Len(t, lp.Predict(gray, BoundingBox{X: 20, Y: 20, Width: minLandmarkScale, Height: minLandmarkScale}), LandmarkCount)
}

func TestLandmarkPredictor_MissingCascade(t *testing.T) {
	root := t.TempDir()
	writeCascades(t, root)
	require.NoError(t, os.Remove(filepath.Join(root, "lps", mouthCorner)))

	_, err := LoadLandmarkPredictor(filepath.Join(root, "puploc"), filepath.Join(root, "lps"), 0)
	assert.Error(t, err)
}
