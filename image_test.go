package facecam

import (
	"bytes"
	"image"
	"image/color"
	"image/color/palette"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/esimov/facecam/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImage_ImgToNRGBA(t *testing.T) {
	rect := image.Rect(-1, -1, 15, 15)
	colors := palette.Plan9
	testCases := []struct {
		name string
		img  image.Image
	}{
		{
			name: "NRGBA",
			img:  makeNRGBAImage(rect, colors),
		},
		{
			name: "YCbCr-444",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio444),
		},
		{
			name: "YCbCr-420",
			img:  makeYCbCrImage(rect, colors, image.YCbCrSubsampleRatio420),
		},
		{
			name: "Gray",
			img:  makeGrayImage(rect, colors),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := imgToNRGBA(tc.img)
			r := tc.img.Bounds()

			assert.Equal(t, image.Pt(0, 0), got.Bounds().Min)
			assert.Equal(t, r.Size(), got.Bounds().Size())
			for y := r.Min.Y; y < r.Max.Y; y++ {
				wantBuf := readRow(tc.img, y)
				buf := readRow(got, y-r.Min.Y)
				if !compareBytes(buf, wantBuf, 1) {
					t.Errorf("row %d: got %v want %v", y, buf, wantBuf)
				}
			}
		})
	}
}

func TestImage_IsImageFile(t *testing.T) {
	testCases := []struct {
		name string
		want bool
	}{
		{"face.jpg", true},
		{"face.JPEG", true},
		{"face.png", true},
		{"face.bmp", true},
		{"face.webp", true},
		{"face.gif", true},
		{"face.mp4", false},
		{"labels.yml", false},
		{"noext", false},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, IsImageFile(tc.name), tc.name)
	}
}

func TestImage_SaveAndDecode(t *testing.T) {
	dir := t.TempDir()
	img := makeNRGBAImage(image.Rect(0, 0, 16, 16), palette.Plan9)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 0xff
	}

	for _, name := range []string{"out.png", "out.bmp"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveImage(path, img))

		got, err := DecodeImage(path)
		require.NoError(t, err, name)
		assert.Equal(t, img.Pix, got.Pix, name)
	}

	// jpeg is lossy, only the geometry is checked
	path := filepath.Join(dir, "out.jpg")
	require.NoError(t, SaveImage(path, img))
	got, err := DecodeImage(path)
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), got.Bounds())
}

func TestImage_EncodeUnsupported(t *testing.T) {
	var buf bytes.Buffer
	err := EncodeImage(&buf, "out.tiff", image.NewNRGBA(image.Rect(0, 0, 1, 1)))
	assert.Error(t, err)
}

func TestImage_DecodeMissing(t *testing.T) {
	_, err := DecodeImage(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)
}

func makeYCbCrImage(rect image.Rectangle, colors []color.Color, sr image.YCbCrSubsampleRatio) *image.YCbCr {
	img := image.NewYCbCr(rect, sr)
	j := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			iy := img.YOffset(x, y)
			ic := img.COffset(x, y)
			c := color.NRGBAModel.Convert(colors[j]).(color.NRGBA)
			img.Y[iy], img.Cb[ic], img.Cr[ic] = color.RGBToYCbCr(c.R, c.G, c.B)
			j++
		}
	}
	return img
}

func makeNRGBAImage(rect image.Rectangle, colors []color.Color) *image.NRGBA {
	img := image.NewNRGBA(rect)
	fillDrawImage(img, colors)
	return img
}

func makeGrayImage(rect image.Rectangle, colors []color.Color) *image.Gray {
	img := image.NewGray(rect)
	fillDrawImage(img, colors)
	return img
}

func fillDrawImage(img draw.Image, colors []color.Color) {
	colorsNRGBA := make([]color.NRGBA, len(colors))
	for i, c := range colors {
		nrgba := color.NRGBAModel.Convert(c).(color.NRGBA)
		nrgba.A = uint8(i % 256)
		colorsNRGBA[i] = nrgba
	}
	rect := img.Bounds()
	i := 0
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, y, colorsNRGBA[i])
			i++
		}
	}
}

func readRow(img image.Image, y int) []uint8 {
	row := make([]byte, img.Bounds().Dx()*4)
	i := 0
	for x := img.Bounds().Min.X; x < img.Bounds().Max.X; x++ {
		c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
		row[i+0] = c.R
		row[i+1] = c.G
		row[i+2] = c.B
		row[i+3] = c.A
		i += 4
	}
	return row
}

func compareBytes(a, b []uint8, delta int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if utils.Abs(int(a[i])-int(b[i])) > delta {
			return false
		}
	}
	return true
}
