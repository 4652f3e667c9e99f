// Package intersect implements sorted-set intersection over ascending row
// number lists.
//
// The lane routines follow the broadcast-compare scheme of the AVX2 kernels
// they replace: one value of the first list is compared against a lane-width
// block of the second list. If every lane is smaller the block is skipped,
// otherwise the block is scanned for an exact match and the first list
// advances. Block reads are bounded by the end of the second list, so input
// buffers need no padding.
package intersect

// DefaultLanes is the lane width used by the package level functions.
const DefaultLanes = 8

// CountMatches returns the number of elements of a also present in b.
// Both lists must be sorted ascending; passing the shorter list first is
// faster but not required.
func CountMatches(a, b []uint32) int {
	return countLanes(a, b, DefaultLanes)
}

// Intersect compacts the elements of a that are present in b into the front
// of a and returns that prefix. The tail of a is left in an unspecified state.
func Intersect(a, b []uint32) []uint32 {
	return intersectLanes(a, b, DefaultLanes)
}

// FindOneMatch reports whether a and b share at least one element.
func FindOneMatch(a, b []uint32) bool {
	return findOneLanes(a, b, DefaultLanes)
}

// blockBelow reports whether every lane of block is smaller than v.
func blockBelow(block []uint32, v uint32) bool {
	var mask uint32
	for i, x := range block {
		if x < v {
			mask |= 1 << uint(i)
		}
	}
	return mask == 1<<uint(len(block))-1
}

func blockContains(block []uint32, v uint32) bool {
	for _, x := range block {
		if x == v {
			return true
		}
	}
	return false
}

func countLanes(a, b []uint32, lanes int) int {
	count := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		end := min(j+lanes, len(b))
		block := b[j:end]
		if blockBelow(block, a[i]) {
			j += lanes
			continue
		}
		if blockContains(block, a[i]) {
			count++
		}
		i++
	}
	return count
}

func intersectLanes(a, b []uint32, lanes int) []uint32 {
	out := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		end := min(j+lanes, len(b))
		block := b[j:end]
		if blockBelow(block, a[i]) {
			j += lanes
			continue
		}
		if blockContains(block, a[i]) {
			a[out] = a[i]
			out++
		}
		i++
	}
	return a[:out]
}

func findOneLanes(a, b []uint32, lanes int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		end := min(j+lanes, len(b))
		block := b[j:end]
		if blockBelow(block, a[i]) {
			j += lanes
			continue
		}
		if blockContains(block, a[i]) {
			return true
		}
		i++
	}
	return false
}

// Scalar two-pointer merges, used when lane intersection is disabled.

func countMerge(a, b []uint32) int {
	count := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			count++
			i++
		}
	}
	return count
}

func intersectMerge(a, b []uint32) []uint32 {
	out := 0
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			a[out] = a[i]
			out++
			i++
		}
	}
	return a[:out]
}

func findOneMerge(a, b []uint32) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			return true
		}
	}
	return false
}
