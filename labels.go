package facecam

import (
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LabelMap maps person names to dense, zero based label ids assigned in
// first-seen order.
type LabelMap struct {
	ids   map[string]int
	names []string
}

// NewLabelMap returns an empty label map.
func NewLabelMap() *LabelMap {
	return &LabelMap{ids: make(map[string]int)}
}

// Add returns the id of name, assigning the next free id on first sight.
func (lm *LabelMap) Add(name string) int {
	if id, ok := lm.ids[name]; ok {
		return id
	}
	id := len(lm.names)
	lm.ids[name] = id
	lm.names = append(lm.names, name)
	return id
}

// ID returns the id assigned to name.
func (lm *LabelMap) ID(name string) (int, bool) {
	if lm == nil {
		return 0, false
	}
	id, ok := lm.ids[name]
	return id, ok
}

// Name resolves an id back to the person name. Unknown ids resolve to
// their decimal representation.
func (lm *LabelMap) Name(id int) string {
	if lm == nil || id < 0 || id >= len(lm.names) {
		return strconv.Itoa(id)
	}
	return lm.names[id]
}

// Names returns the person names ordered by id.
func (lm *LabelMap) Names() []string {
	if lm == nil {
		return nil
	}
	return append([]string(nil), lm.names...)
}

// Len returns the number of labels.
func (lm *LabelMap) Len() int {
	if lm == nil {
		return 0
	}
	return len(lm.names)
}

// Map returns a copy of the name to id mapping.
func (lm *LabelMap) Map() map[string]int {
	m := make(map[string]int, lm.Len())
	if lm == nil {
		return m
	}
	for k, v := range lm.ids {
		m[k] = v
	}
	return m
}

type labelFile struct {
	Run    string         `yaml:"run"`
	Labels map[string]int `yaml:"labels"`
}

// Save writes the label map tagged with the training run it belongs to.
func (lm *LabelMap) Save(path, run string) error {
	return writeFile(path, func(w io.Writer) error {
		return lm.Encode(w, run)
	})
}

// Encode writes the label map and its run id as a YAML document.
func (lm *LabelMap) Encode(w io.Writer, run string) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(labelFile{Run: run, Labels: lm.Map()}); err != nil {
		return errors.Wrap(err, "could not encode the label map")
	}
	return enc.Close()
}

// LoadLabelMap reads a label map written by Save together with its run id.
// A missing file returns a nil map and no error.
func LoadLabelMap(path string) (*LabelMap, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}
		return nil, "", errors.Wrap(err, "could not read the label map")
	}

	var doc labelFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, "", errors.Wrap(err, "could not decode the label map")
	}

	// Rebuild the first-seen order from the ids, which must be dense and unique.
	names := make([]string, 0, len(doc.Labels))
	for name := range doc.Labels {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return doc.Labels[names[i]] < doc.Labels[names[j]] })

	lm := NewLabelMap()
	for i, name := range names {
		if doc.Labels[name] != i {
			return nil, "", errors.Errorf("label map ids are not dense: %q has id %d", name, doc.Labels[name])
		}
		lm.Add(name)
	}
	return lm, doc.Run, nil
}
