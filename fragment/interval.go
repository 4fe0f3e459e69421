package fragment

// Range is a half-open interval of token positions.
type Range struct {
	Start int
	End   int
}

// Len returns the number of positions in the range.
func (r Range) Len() int {
	return max(r.End-r.Start, 0)
}

// Empty reports whether the range holds no positions.
func (r Range) Empty() bool {
	return r.Len() == 0
}

// LongestCommonRun returns the longest contiguous run of equal elements shared
// by a and b, as a range into a. The search stops as soon as a run of maxLen
// is found; maxLen <= 0 disables the early exit. When several runs share the
// maximum length the first one found in a wins. No common element yields an
// empty range.
func LongestCommonRun(a, b []string, maxLen int) Range {
	if len(a) == 0 || len(b) == 0 {
		return Range{}
	}

	// Row i holds, for each j, the length of the run ending at a[i-1], b[j-1].
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	bestLen, bestEnd := 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] != b[j-1] {
				cur[j] = 0
				continue
			}
			cur[j] = prev[j-1] + 1
			if cur[j] > bestLen {
				bestLen, bestEnd = cur[j], i
				if maxLen > 0 && bestLen >= maxLen {
					return Range{Start: bestEnd - bestLen, End: bestEnd}
				}
			}
		}
		prev, cur = cur, prev
	}
	return Range{Start: bestEnd - bestLen, End: bestEnd}
}

// SplitIntoContinuousIntervals partitions a sorted sequence into maximal runs
// of consecutive integers.
func SplitIntoContinuousIntervals(seq []int) [][]int {
	var out [][]int
	start := 0
	for i := 1; i <= len(seq); i++ {
		if i == len(seq) || seq[i] != seq[i-1]+1 {
			out = append(out, seq[start:i:i])
			start = i
		}
	}
	return out
}

// FillSmallGaps inserts the missing integers between neighbours prev, next of
// a sorted sequence whenever next - prev <= threshold.
//
//	FillSmallGaps([1 2 5], 2) = [1 2 5]
//	FillSmallGaps([1 2 5], 3) = [1 2 3 4 5]
func FillSmallGaps(seq []int, threshold int) []int {
	if len(seq) == 0 {
		return nil
	}
	out := make([]int, 0, len(seq))
	out = append(out, seq[0])
	for i := 1; i < len(seq); i++ {
		prev, next := seq[i-1], seq[i]
		if next-prev <= threshold {
			for v := prev + 1; v < next; v++ {
				out = append(out, v)
			}
		}
		out = append(out, next)
	}
	return out
}

// ExtendInterval returns up to prefixLen positions immediately before r and
// up to suffixLen positions immediately after it, clamped to [0, maxIndex].
// maxIndex is the last valid position.
func ExtendInterval(r Range, prefixLen, suffixLen, maxIndex int) (prefix, suffix Range) {
	prefix = Range{Start: max(r.Start-max(prefixLen, 0), 0), End: max(r.Start, 0)}
	suffixEnd := min(r.End+max(suffixLen, 0), maxIndex+1)
	suffix = Range{Start: min(r.End, suffixEnd), End: suffixEnd}
	return prefix, suffix
}

// rangesFromIntervals converts runs of consecutive positions into ranges.
func rangesFromIntervals(intervals [][]int) []Range {
	out := make([]Range, 0, len(intervals))
	for _, run := range intervals {
		out = append(out, Range{Start: run[0], End: run[len(run)-1] + 1})
	}
	return out
}
