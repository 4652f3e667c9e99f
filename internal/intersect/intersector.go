package intersect

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"
)

// Intersector bundles one choice of intersection routines.
type Intersector struct {
	lanes int
}

// New returns lane-block routines of the given width when useLanes is set,
// and scalar merges otherwise. A width of 0 is detected from the CPU.
func New(useLanes bool, lanes int) (Intersector, error) {
	if !useLanes {
		return Intersector{}, nil
	}
	if lanes == 0 {
		lanes = DetectLanes()
	}
	switch lanes {
	case 4, 8, 16:
		return Intersector{lanes: lanes}, nil
	default:
		return Intersector{}, fmt.Errorf("unsupported lane width %d", lanes)
	}
}

// DetectLanes maps the widest available integer vector unit to the number of
// 32-bit lanes it holds.
func DetectLanes() int {
	switch {
	case cpuid.CPU.Supports(cpuid.AVX512F):
		return 16
	case cpuid.CPU.Supports(cpuid.AVX2):
		return 8
	default:
		return 4
	}
}

// Lanes is 0 for the scalar merge.
func (x Intersector) Lanes() int { return x.lanes }

func (x Intersector) CountMatches(a, b []uint32) int {
	if x.lanes == 0 {
		return countMerge(a, b)
	}
	return countLanes(a, b, x.lanes)
}

func (x Intersector) Intersect(a, b []uint32) []uint32 {
	if x.lanes == 0 {
		return intersectMerge(a, b)
	}
	return intersectLanes(a, b, x.lanes)
}

func (x Intersector) FindOneMatch(a, b []uint32) bool {
	if x.lanes == 0 {
		return findOneMerge(a, b)
	}
	return findOneLanes(a, b, x.lanes)
}

// IntersectInto copies the shorter of a and b into dst and intersects it in
// place with the other, leaving both inputs untouched.
func (x Intersector) IntersectInto(dst, a, b []uint32) []uint32 {
	if len(b) < len(a) {
		a, b = b, a
	}
	dst = append(dst[:0], a...)
	return x.Intersect(dst, b)
}
