package facecam

import (
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// FaceSampler extracts the normalized faces of an image.
type FaceSampler interface {
	ExtractAndAdjustFaces(img image.Image) []*image.Gray
}

// Dataset is a set of labeled face samples read from a directory tree of
// the form <root>/<person>/<image>.
type Dataset struct {
	Faces  []*image.Gray
	Labels []int
	Names  *LabelMap
}

// Len returns the number of samples.
func (ds *Dataset) Len() int {
	return len(ds.Faces)
}

// person is a subdirectory of the dataset with its image files.
type person struct {
	name  string
	files []string
}

// scanDataset lists the people of the dataset and their image files, both
// in lexical order.
func scanDataset(root string) ([]person, int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, 0, errors.Wrap(err, "could not read the dataset directory")
	}

	var (
		people []person
		total  int
	)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(root, e.Name()))
		if err != nil {
			return nil, 0, errors.Wrapf(err, "could not read the directory of %s", e.Name())
		}
		p := person{name: e.Name()}
		for _, f := range files {
			if f.Type().IsRegular() && IsImageFile(f.Name()) {
				p.files = append(p.files, filepath.Join(root, e.Name(), f.Name()))
			}
		}
		total += len(p.files)
		people = append(people, p)
	}
	return people, total, nil
}

// LoadDataset reads the face samples of the directory tree. A person gets
// the next label id when the first image file of its directory is seen,
// and every face found on the person's images becomes a sample with that
// id. Images which cannot be decoded are skipped.
func LoadDataset(root string, sampler FaceSampler, progress io.Writer) (*Dataset, error) {
	people, total, err := scanDataset(root)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = io.Discard
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetDescription("Loading "+filepath.Base(root)),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)
	defer bar.Finish()

	ds := &Dataset{Names: NewLabelMap()}
	for _, p := range people {
		for _, file := range p.files {
			bar.Add(1)
			id := ds.Names.Add(p.name)

			img, err := DecodeImage(file)
			if err != nil {
				log.WithError(err).WithField("file", file).Warn("skipping unreadable image")
				continue
			}
			faces := sampler.ExtractAndAdjustFaces(img)
			log.WithFields(log.Fields{
				"file":  file,
				"faces": len(faces),
			}).Debug("image loaded")

			for _, f := range faces {
				ds.Faces = append(ds.Faces, f)
				ds.Labels = append(ds.Labels, id)
			}
		}
	}
	return ds, nil
}
