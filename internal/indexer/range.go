package indexer

import "fmt"

// IndexRange is a half-open range of event indices [From, To).
type IndexRange struct {
	From uint64
	To   uint64
}

// Len returns the number of indices in the range.
func (r IndexRange) Len() uint64 { return r.To - r.From }

// SplitRange splits [from, to) into batches of at most batchSize indices.
func SplitRange(from, to, batchSize uint64) ([]IndexRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to index must be >= from index")
	}

	ranges := make([]IndexRange, 0, (to-from+batchSize-1)/batchSize)
	for start := from; start < to; {
		end := to
		if to-start > batchSize {
			end = start + batchSize
		}
		ranges = append(ranges, IndexRange{From: start, To: end})
		start = end
	}

	return ranges, nil
}
