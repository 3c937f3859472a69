package model

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
)

// Neighbor is a row of the indexed set and its Euclidean distance to a query.
type Neighbor struct {
	Row  int
	Dist float64
}

// Index answers k-nearest-neighbour queries over a fixed set of rows using a
// kd-tree. It is safe for concurrent queries once built.
type Index struct {
	tree *kdtree.Tree
	n    int
}

// NewIndex builds a kd-tree over X. Rows are referenced, not copied.
func NewIndex(X [][]float64) *Index {
	pts := make(indexedPoints, len(X))
	for i, row := range X {
		pts[i] = indexed{p: kdtree.Point(row), row: i}
	}
	idx := &Index{n: len(X)}
	if len(X) > 0 {
		idx.tree = kdtree.New(pts, false)
	}
	return idx
}

// Len is the number of indexed rows.
func (x *Index) Len() int { return x.n }

// Nearest returns up to k neighbours of q ordered by increasing distance.
// Rows listed in exclude are skipped.
func (x *Index) Nearest(q []float64, k int, exclude ...int) []Neighbor {
	if x.tree == nil || k <= 0 {
		return nil
	}
	keeper := kdtree.NewNKeeper(k + len(exclude))
	x.tree.NearestSet(keeper, indexed{p: kdtree.Point(q), row: -1})

	out := make([]Neighbor, 0, len(keeper.Heap))
	for _, c := range keeper.Heap {
		if c.Comparable == nil {
			continue
		}
		row := c.Comparable.(indexed).row
		if contains(exclude, row) {
			continue
		}
		out = append(out, Neighbor{Row: row, Dist: math.Sqrt(c.Dist)})
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].Dist != out[b].Dist {
			return out[a].Dist < out[b].Dist
		}
		return out[a].Row < out[b].Row
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// indexed is a kd-tree point that remembers its source row.
type indexed struct {
	p   kdtree.Point
	row int
}

func (a indexed) Compare(b kdtree.Comparable, d kdtree.Dim) float64 {
	return a.p[d] - b.(indexed).p[d]
}

func (a indexed) Dims() int { return len(a.p) }

// Distance is the squared Euclidean distance.
func (a indexed) Distance(b kdtree.Comparable) float64 {
	return a.p.Distance(b.(indexed).p)
}

type indexedPoints []indexed

func (p indexedPoints) Index(i int) kdtree.Comparable         { return p[i] }
func (p indexedPoints) Len() int                              { return len(p) }
func (p indexedPoints) Pivot(d kdtree.Dim) int                { return plane{Dim: d, indexedPoints: p}.Pivot() }
func (p indexedPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// plane sorts indexedPoints along one dimension for median partitioning.
type plane struct {
	kdtree.Dim
	indexedPoints
}

func (p plane) Less(i, j int) bool {
	return p.indexedPoints[i].p[p.Dim] < p.indexedPoints[j].p[p.Dim]
}
func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.indexedPoints = p.indexedPoints[start:end]
	return p
}
func (p plane) Swap(i, j int) {
	p.indexedPoints[i], p.indexedPoints[j] = p.indexedPoints[j], p.indexedPoints[i]
}
