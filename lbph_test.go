package facecam

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	horizontalStripes = iota
	verticalStripes
)

// stripedFace generates a size x size face with two level stripes. The
// phase shifts the stripes so samples of the same kind differ.
func stripedFace(kind, phase, size int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := y
			if kind == verticalStripes {
				v = x
			}
			if ((v+phase)/3)%2 == 0 {
				img.SetGray(x, y, color.Gray{Y: 60})
			} else {
				img.SetGray(x, y, color.Gray{Y: 190})
			}
		}
	}
	return img
}

func trainAliceBob(t *testing.T, params LBPHParams) *LBPH {
	t.Helper()

	faces := []*image.Gray{
		stripedFace(horizontalStripes, 0, params.FaceSize),
		stripedFace(horizontalStripes, 1, params.FaceSize),
		stripedFace(horizontalStripes, 2, params.FaceSize),
		stripedFace(verticalStripes, 0, params.FaceSize),
		stripedFace(verticalStripes, 1, params.FaceSize),
	}
	labels := []int{0, 0, 0, 1, 1}

	model, err := NewLBPH(params)
	require.NoError(t, err)
	require.NoError(t, model.Train(faces, labels))
	return model
}

func TestLBPH_Predict(t *testing.T) {
	for _, index := range []string{IndexLinear, IndexHNSW} {
		t.Run(index, func(t *testing.T) {
			params := DefaultLBPHParams()
			params.Index = index
			model := trainAliceBob(t, params)

			assert.Equal(t, 5, model.Len())
			assert.NotEmpty(t, model.RunID)

			label, conf, err := model.Predict(stripedFace(horizontalStripes, 4, params.FaceSize))
			require.NoError(t, err)
			assert.Equal(t, 0, label)
			assert.GreaterOrEqual(t, conf, 0.0)

			label, _, err = model.Predict(stripedFace(verticalStripes, 5, params.FaceSize))
			require.NoError(t, err)
			assert.Equal(t, 1, label)
		})
	}
}

func TestLBPH_Distances(t *testing.T) {
	model := trainAliceBob(t, DefaultLBPHParams())

	dist, err := model.Distances(stripedFace(horizontalStripes, 4, DefaultFaceSize))
	require.NoError(t, err)
	require.Len(t, dist, 2)
	assert.Less(t, dist[0], dist[1], "an alice face should be closer to alice than to bob")

	// A training sample is at zero distance from itself.
	dist, err = model.Distances(stripedFace(verticalStripes, 0, DefaultFaceSize))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, dist[1], 1e-9)
}

func TestLBPH_TrainErrors(t *testing.T) {
	model, err := NewLBPH(DefaultLBPHParams())
	require.NoError(t, err)

	err = model.Train(nil, nil)
	assert.True(t, errors.Is(err, ErrEmptyTrainingSet))

	faces := []*image.Gray{stripedFace(horizontalStripes, 0, DefaultFaceSize)}
	err = model.Train(faces, []int{0, 1})
	assert.True(t, errors.Is(err, ErrLengthMismatch))

	err = model.Train([]*image.Gray{stripedFace(horizontalStripes, 0, 20)}, []int{0})
	assert.True(t, errors.Is(err, ErrFaceSize))

	_, _, err = model.Predict(faces[0])
	assert.True(t, errors.Is(err, ErrNotTrained))

	err = model.Update(faces, []int{0})
	assert.True(t, errors.Is(err, ErrNotTrained))
}

func TestLBPH_Update(t *testing.T) {
	model := trainAliceBob(t, DefaultLBPHParams())
	run := model.RunID

	faces := []*image.Gray{stripedFace(verticalStripes, 3, DefaultFaceSize)}
	require.NoError(t, model.Update(faces, []int{1}))
	assert.Equal(t, 6, model.Len())
	assert.Equal(t, run, model.RunID)

	err := model.Update(faces, []int{1, 1})
	assert.True(t, errors.Is(err, ErrLengthMismatch))
}

func TestLBPH_InvalidParams(t *testing.T) {
	params := DefaultLBPHParams()
	params.Neighbors = 0
	_, err := NewLBPH(params)
	assert.Error(t, err)

	params = DefaultLBPHParams()
	params.Index = "kdtree"
	_, err = NewLBPH(params)
	assert.Error(t, err)
}

func TestLBPH_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognitions.yml")
	model := trainAliceBob(t, DefaultLBPHParams())
	require.NoError(t, model.Save(path))

	loaded, err := LoadLBPH(path)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, model.RunID, loaded.RunID)
	assert.Equal(t, model.Params(), loaded.Params())
	assert.Equal(t, model.Len(), loaded.Len())

	for _, face := range []*image.Gray{
		stripedFace(horizontalStripes, 4, DefaultFaceSize),
		stripedFace(verticalStripes, 2, DefaultFaceSize),
	} {
		wantLabel, wantConf, err := model.Predict(face)
		require.NoError(t, err)
		gotLabel, gotConf, err := loaded.Predict(face)
		require.NoError(t, err)
		assert.Equal(t, wantLabel, gotLabel)
		assert.Equal(t, wantConf, gotConf)
	}
}

func TestLBPH_LoadMissing(t *testing.T) {
	model, err := LoadLBPH(filepath.Join(t.TempDir(), "missing.yml"))
	assert.NoError(t, err)
	assert.Nil(t, model)
}

func TestLBPH_LoadCorrupted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recognitions.yml")
	data := "run: x\nparams: {radius: 1, neighbors: 8, grid_x: 8, grid_y: 8, face_size: 32}\nsamples:\n  - {label: 0, histogram: [0.5, 0.5]}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	_, err := LoadLBPH(path)
	assert.Error(t, err)
}

func TestLBPH_DistancesWrongSize(t *testing.T) {
	model := trainAliceBob(t, DefaultLBPHParams())
	_, err := model.Distances(nil)
	assert.True(t, errors.Is(err, ErrFaceSize))
}
