package facecam

import (
	"math"

	"github.com/coder/hnsw"
	"github.com/pkg/errors"
)

// Supported nearest neighbour index kinds.
const (
	IndexLinear = "linear"
	IndexHNSW   = "hnsw"
)

// Index answers nearest neighbour queries over the training histograms.
type Index interface {
	Add(label int, hist []float32)
	Nearest(hist []float32) (label int, dist float64, ok bool)
	Len() int
}

// NewIndex returns an empty index of the requested kind.
func NewIndex(kind string) (Index, error) {
	switch kind {
	case "", IndexLinear:
		return &LinearIndex{}, nil
	case IndexHNSW:
		return NewHNSWIndex(), nil
	default:
		return nil, errors.Errorf("unknown index type %q", kind)
	}
}

// chiSquare is the symmetric chi-square histogram distance.
func chiSquare(a, b []float32) float64 {
	var sum float64
	for i := range a {
		s := float64(a[i]) + float64(b[i])
		if s > 0 {
			d := float64(a[i]) - float64(b[i])
			sum += 2 * d * d / s
		}
	}
	return sum
}

// LinearIndex compares the query against every stored histogram.
type LinearIndex struct {
	labels []int
	hists  [][]float32
}

// Add stores a labeled histogram.
func (li *LinearIndex) Add(label int, hist []float32) {
	li.labels = append(li.labels, label)
	li.hists = append(li.hists, hist)
}

// Nearest returns the label of the closest histogram. Ties keep the earliest sample.
func (li *LinearIndex) Nearest(hist []float32) (int, float64, bool) {
	if len(li.hists) == 0 {
		return -1, math.MaxFloat64, false
	}
	label, best := -1, math.MaxFloat64
	for i, h := range li.hists {
		if d := chiSquare(h, hist); d < best {
			label, best = li.labels[i], d
		}
	}
	return label, best, true
}

// Len returns the number of stored histograms.
func (li *LinearIndex) Len() int {
	return len(li.hists)
}

// HNSWIndex is an approximate nearest neighbour index backed by a
// hierarchical navigable small world graph using the chi-square distance.
type HNSWIndex struct {
	graph  *hnsw.Graph[int]
	labels []int
}

// hnswMaxNeighbors is the maximum number of neighbors per graph node.
const hnswMaxNeighbors = 16

// NewHNSWIndex creates an empty HNSW index.
func NewHNSWIndex() *HNSWIndex {
	g := hnsw.NewGraph[int]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors)
	g.EfSearch = 64
	g.Distance = func(a, b []float32) float32 {
		return float32(chiSquare(a, b))
	}
	return &HNSWIndex{graph: g}
}

// Add inserts a labeled histogram into the graph.
func (hi *HNSWIndex) Add(label int, hist []float32) {
	key := len(hi.labels)
	hi.labels = append(hi.labels, label)
	hi.graph.Add(hnsw.MakeNode(key, hist))
}

// Nearest searches the graph and recomputes the exact distance of the best candidate.
func (hi *HNSWIndex) Nearest(hist []float32) (int, float64, bool) {
	if len(hi.labels) == 0 {
		return -1, math.MaxFloat64, false
	}
	neighbors := hi.graph.Search(hist, 1)
	if len(neighbors) == 0 {
		return -1, math.MaxFloat64, false
	}
	n := neighbors[0]
	return hi.labels[n.Key], chiSquare(n.Value, hist), true
}

// Len returns the number of nodes in the graph.
func (hi *HNSWIndex) Len() int {
	return len(hi.labels)
}
