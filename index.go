package rscache

import (
	"fmt"
	"os"
)

// indexRecordSize is the fixed size of a single entry in a main_file_cache.idxN
// file: a 24-bit big-endian length followed by a 24-bit big-endian sector.
const indexRecordSize = 6

// ArchiveRef locates one archive's sector chain in the main data file.
type ArchiveRef struct {
	// ID is the archive id, equal to its record's offset within the index
	// file (record i describes archive i).
	ID uint32
	// IndexID is the id of the index (0-254) this archive belongs to; it is
	// cross-checked against every sector header in the chain.
	IndexID uint8
	// Sector is the first sector of the archive's chain in the data file.
	Sector int
	// Length is the total size, in bytes, of the archive's payload across
	// the whole chain.
	Length int
}

// IndexFile is a parsed main_file_cache.idxN file: one ArchiveRef per
// archive id present in the index.
type IndexFile struct {
	IndexID uint8
	Refs    []ArchiveRef
}

// OpenIndexFile reads and parses the index file at path, which must hold a
// whole number of 6-byte records.
func OpenIndexFile(path string, indexID uint8) (*IndexFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseIndexFile(data, indexID)
}

// ParseIndexFile parses the raw contents of an index file already held in
// memory.
func ParseIndexFile(data []byte, indexID uint8) (*IndexFile, error) {
	if len(data)%indexRecordSize != 0 {
		return nil, fmt.Errorf("rscache: index %d: length %d is not a multiple of %d", indexID, len(data), indexRecordSize)
	}

	count := len(data) / indexRecordSize
	refs := make([]ArchiveRef, count)
	for i := 0; i < count; i++ {
		off := i * indexRecordSize
		rec := data[off : off+indexRecordSize]
		length := int(uint32(rec[0])<<16 | uint32(rec[1])<<8 | uint32(rec[2]))
		sector := int(uint32(rec[3])<<16 | uint32(rec[4])<<8 | uint32(rec[5]))
		refs[i] = ArchiveRef{
			ID:      uint32(i),
			IndexID: indexID,
			Sector:  sector,
			Length:  length,
		}
	}

	return &IndexFile{IndexID: indexID, Refs: refs}, nil
}

// Ref looks up the ArchiveRef for archiveID, reporting ArchiveNotFoundError
// if it is absent or its record is empty (zero length and sector).
func (f *IndexFile) Ref(archiveID uint32) (ArchiveRef, error) {
	if int(archiveID) >= len(f.Refs) {
		return ArchiveRef{}, &ArchiveNotFoundError{Index: f.IndexID, Archive: archiveID}
	}
	ref := f.Refs[archiveID]
	if ref.Length == 0 && ref.Sector == 0 {
		return ArchiveRef{}, &ArchiveNotFoundError{Index: f.IndexID, Archive: archiveID}
	}
	return ref, nil
}

// encodeIndexRecord renders ref back to its 6-byte on-disk form.
func encodeIndexRecord(ref ArchiveRef) [indexRecordSize]byte {
	var rec [indexRecordSize]byte
	rec[0] = byte(ref.Length >> 16)
	rec[1] = byte(ref.Length >> 8)
	rec[2] = byte(ref.Length)
	rec[3] = byte(ref.Sector >> 16)
	rec[4] = byte(ref.Sector >> 8)
	rec[5] = byte(ref.Sector)
	return rec
}
