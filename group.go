package rscache

import "fmt"

// SplitGroup splits a decoded, multi-entry group payload into its entryCount
// individual files. The trailing byte of data holds the chunk count; that
// is followed, working backwards, by chunkCount*entryCount big-endian i32
// per-entry chunk-size deltas, one chunk's worth of entries at a time; within
// each chunk the deltas accumulate into a running size that starts at 0, and
// the running value after entry e's delta is entry e's size in that chunk.
// Grounded on
// the group trailer format in original_source/rune-fs/src/archive.rs.
func SplitGroup(data []byte, entryCount int) ([][]byte, error) {
	if entryCount <= 0 {
		return nil, fmt.Errorf("rscache: split group: entryCount must be positive, got %d", entryCount)
	}
	if entryCount == 1 {
		return [][]byte{data}, nil
	}
	if len(data) < 1 {
		return nil, fmt.Errorf("rscache: split group: empty payload")
	}

	chunks := int(data[len(data)-1])
	trailerLen := chunks*entryCount*4 + 1
	if trailerLen > len(data) {
		return nil, fmt.Errorf("rscache: split group: trailer (%d bytes) longer than payload (%d bytes)", trailerLen, len(data))
	}

	readPtr := len(data) - trailerLen
	chunkSizes := make([][]int, entryCount)
	entrySizes := make([]int, entryCount)
	for e := range chunkSizes {
		chunkSizes[e] = make([]int, chunks)
	}

	for c := 0; c < chunks; c++ {
		var chunkSize int32
		for e := 0; e < entryCount; e++ {
			delta := int32(uint32(data[readPtr])<<24 | uint32(data[readPtr+1])<<16 | uint32(data[readPtr+2])<<8 | uint32(data[readPtr+3]))
			readPtr += 4
			chunkSize += delta
			if chunkSize < 0 {
				return nil, fmt.Errorf("rscache: split group: negative chunk size for entry %d chunk %d", e, c)
			}
			chunkSizes[e][c] = int(chunkSize)
			entrySizes[e] += int(chunkSize)
		}
	}

	entries := make([][]byte, entryCount)
	for e := range entries {
		entries[e] = make([]byte, 0, entrySizes[e])
	}

	dataPtr := 0
	for c := 0; c < chunks; c++ {
		for e := 0; e < entryCount; e++ {
			n := chunkSizes[e][c]
			if dataPtr+n > readPtr {
				return nil, fmt.Errorf("rscache: split group: entry %d chunk %d overruns trailer at offset %d", e, c, dataPtr)
			}
			entries[e] = append(entries[e], data[dataPtr:dataPtr+n]...)
			dataPtr += n
		}
	}

	return entries, nil
}
