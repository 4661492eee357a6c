package gmm

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Unlabeled marks a pixel excluded from every cluster.
const Unlabeled = -1

// LabelMap tracks one signed cluster index per pixel plus a per-cluster
// membership bitmap. The bitmaps let split relabeling walk only the pixels of
// the chosen cluster instead of rescanning the whole image.
//
// The slice is the source of truth; bitmaps are kept in sync by Move.
type LabelMap struct {
	labels  []int32
	members []*roaring.Bitmap
}

// NewLabelMap copies initial into a label map with room for clusterCount
// clusters. Initial values must already be valid cluster indices or
// Unlabeled; the caller validates ranges.
func NewLabelMap(initial []int32, clusterCount int) *LabelMap {
	lm := &LabelMap{
		labels:  make([]int32, len(initial)),
		members: make([]*roaring.Bitmap, clusterCount),
	}
	copy(lm.labels, initial)

	for c := range lm.members {
		lm.members[c] = roaring.New()
	}
	for i, l := range lm.labels {
		if l >= 0 {
			lm.members[l].Add(uint32(i))
		}
	}
	return lm
}

// At returns the cluster index of pixel i, or Unlabeled.
func (lm *LabelMap) At(i int) int32 {
	return lm.labels[i]
}

// Raw exposes the underlying label slice for read-only tile scans.
func (lm *LabelMap) Raw() []int32 {
	return lm.labels
}

// Count returns the number of pixels assigned to cluster c.
func (lm *LabelMap) Count(c int) uint64 {
	return lm.members[c].GetCardinality()
}

// Members returns the membership bitmap of cluster c. Callers must not
// mutate it.
func (lm *LabelMap) Members(c int) *roaring.Bitmap {
	return lm.members[c]
}

// Move reassigns the given pixels from cluster `from` to cluster `to`.
// Every index must currently belong to `from`; each pixel is owned by
// exactly one relabel decision, so bulk application cannot race.
func (lm *LabelMap) Move(pixels []uint32, from, to int) {
	if len(pixels) == 0 {
		return
	}
	moved := roaring.BitmapOf(pixels...)
	lm.members[from].AndNot(moved)
	lm.members[to].Or(moved)
	for _, p := range pixels {
		lm.labels[p] = int32(to)
	}
}
