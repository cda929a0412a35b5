package retrieve

// PartitionDatasets splits the identifier list into consecutive batches
// of at most size elements. Ordering is preserved and every identifier
// lands in exactly one batch; the batch count is ceil(len(ids)/size).
func PartitionDatasets(ids []string, size int) [][]string {
	if size < 1 {
		size = 1
	}

	var batches [][]string
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches
}
