package facecam

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLabelMap(t *testing.T) {
	assert := assert.New(t)

	lm := NewLabelMap()
	assert.Equal(0, lm.Add("alice"))
	assert.Equal(1, lm.Add("bob"))
	assert.Equal(0, lm.Add("alice"))
	assert.Equal(2, lm.Len())

	id, ok := lm.ID("bob")
	assert.True(ok)
	assert.Equal(1, id)
	_, ok = lm.ID("carol")
	assert.False(ok)

	assert.Equal("alice", lm.Name(0))
	assert.Equal("7", lm.Name(7))
	assert.Equal("-1", lm.Name(-1))
	assert.Equal([]string{"alice", "bob"}, lm.Names())
	assert.Equal(map[string]int{"alice": 0, "bob": 1}, lm.Map())

	var empty *LabelMap
	assert.Equal("3", empty.Name(3))
	assert.Equal(0, empty.Len())
}

func TestLabelMap_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yml")

	lm := NewLabelMap()
	for _, name := range []string{"carol", "alice", "bob"} {
		lm.Add(name)
	}
	require.NoError(t, lm.Save(path, "run-1"))

	loaded, run, err := LoadLabelMap(path)
	require.NoError(t, err)
	assert.Equal(t, "run-1", run)
	assert.Equal(t, lm.Names(), loaded.Names())
}

func TestLabelMap_LoadMissing(t *testing.T) {
	lm, run, err := LoadLabelMap(filepath.Join(t.TempDir(), "labels.yml"))
	assert.NoError(t, err)
	assert.Nil(t, lm)
	assert.Empty(t, run)
}

func TestLabelMap_LoadNotDense(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.yml")
	require.NoError(t, os.WriteFile(path, []byte("run: r\nlabels:\n  alice: 0\n  bob: 2\n"), 0644))

	_, _, err := LoadLabelMap(path)
	assert.Error(t, err)
}

func TestModelStore(t *testing.T) {
	dir := t.TempDir()
	store := ModelStore{
		ModelPath:  filepath.Join(dir, "recognitions.yml"),
		LabelsPath: filepath.Join(dir, "labels.yml"),
	}

	model, labels, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, model, "a missing model means recognition is unavailable")
	assert.Nil(t, labels)

	trained := trainAliceBob(t, DefaultLBPHParams())
	names := NewLabelMap()
	names.Add("alice")
	names.Add("bob")
	require.NoError(t, store.Save(trained, names))

	model, labels, err = store.Load()
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, trained.RunID, model.RunID)
	assert.Equal(t, []string{"alice", "bob"}, labels.Names())

	// A label map written by another training run must not be paired with the model.
	require.NoError(t, names.Save(store.LabelsPath, "another-run"))
	_, _, err = store.Load()
	assert.True(t, errors.Is(err, ErrModelMismatch))
}

func TestModelStore_ModelWithoutLabels(t *testing.T) {
	dir := t.TempDir()
	store := ModelStore{
		ModelPath:  filepath.Join(dir, "recognitions.yml"),
		LabelsPath: filepath.Join(dir, "labels.yml"),
	}
	require.NoError(t, trainAliceBob(t, DefaultLBPHParams()).Save(store.ModelPath))

	model, labels, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, "1", labels.Name(1))
}

func TestModelStore_FailedSaveKeepsPair(t *testing.T) {
	dir := t.TempDir()
	store := ModelStore{
		ModelPath:  filepath.Join(dir, "recognitions.yml"),
		LabelsPath: filepath.Join(dir, "labels.yml"),
	}
	names := NewLabelMap()
	names.Add("alice")
	names.Add("bob")

	trained := trainAliceBob(t, DefaultLBPHParams())
	require.NoError(t, store.Save(trained, names))

	// The label map cannot be written, the model must not be replaced either.
	broken := ModelStore{
		ModelPath:  store.ModelPath,
		LabelsPath: filepath.Join(dir, "missing", "labels.yml"),
	}
	retrained := trainAliceBob(t, DefaultLBPHParams())
	require.NotEqual(t, trained.RunID, retrained.RunID)
	assert.Error(t, broken.Save(retrained, names))

	untrained, err := NewLBPH(DefaultLBPHParams())
	require.NoError(t, err)
	assert.True(t, errors.Is(store.Save(untrained, names), ErrNotTrained))

	model, labels, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, model)
	assert.Equal(t, trained.RunID, model.RunID)
	assert.Equal(t, []string{"alice", "bob"}, labels.Names())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "no temporary files are left behind")
}
