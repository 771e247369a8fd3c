package facecam

import (
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
)

// DefaultFaceSize is the side of the square face crops the recognizer works on.
const DefaultFaceSize = 32

// ToGray converts the image to a single channel intensity image with
// min-point at (0, 0).
func ToGray(src image.Image) *image.Gray {
	bounds := src.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	dst := image.NewGray(image.Rect(0, 0, width, height))

	if g, ok := src.(*image.Gray); ok {
		for y := 0; y < height; y++ {
			si := g.PixOffset(bounds.Min.X, bounds.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+width], g.Pix[si:si+width])
		}
		return dst
	}

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := src.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			dst.Pix[y*dst.Stride+x] = uint8(
				(0.299*float64(r) +
					0.587*float64(g) +
					0.114*float64(b)) / 256,
			)
		}
	}
	return dst
}

// NormalizeFace crops the box out of the grayscale image and resizes it to
// a size x size square. It returns false in case the box clamps to an empty
// region, which happens on detections touching the image edges.
func NormalizeFace(gray *image.Gray, box BoundingBox, size int) (*image.Gray, bool) {
	box = ClampBox(box, gray.Bounds())
	if box.Empty() || size <= 0 {
		return nil, false
	}

	crop := imaging.Crop(gray, box.Rect())
	// imaging.Box averages the source pixels covered by the destination pixel (area resampling).
	resized := imaging.Resize(crop, size, size, imaging.Box)

	face := image.NewGray(image.Rect(0, 0, size, size))
	draw.Draw(face, face.Bounds(), resized, resized.Bounds().Min, draw.Src)
	return face, true
}
