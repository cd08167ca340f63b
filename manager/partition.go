package manager

// partition splits data into at most n contiguous, near-equal chunks.
// The chunk count is min(n, len(data)) so no chunk is ever empty; the
// first len(data)%count chunks carry one extra element. The chunks are
// sub-slices of data, exhaustive and non-overlapping.
func partition(data []uint64, n int) [][]uint64 {
	if len(data) == 0 || n <= 0 {
		return nil
	}
	count := n
	if len(data) < count {
		count = len(data)
	}

	base := len(data) / count
	extra := len(data) % count

	chunks := make([][]uint64, 0, count)
	start := 0
	for i := 0; i < count; i++ {
		size := base
		if i < extra {
			size++
		}
		chunks = append(chunks, data[start:start+size])
		start += size
	}
	return chunks
}
