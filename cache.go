package rscache

import (
	"fmt"
	"os"
	"path/filepath"
)

// masterIndexID is the reserved index (idx255) whose own index file maps
// each normal index's id to the ArchiveRef of that index's reference table,
// stored as an archive in the main data file.
const masterIndexID = 255

// huffmanIndexID and huffmanArchiveName locate the Huffman coding table
// used to decompress in-game chat text, a fixed well-known archive rather
// than something callers look up themselves.
const (
	huffmanIndexID     = 10
	huffmanArchiveName = "huffman"
)

// Cache is a read-only handle onto an on-disk RuneScape-family cache
// directory: the main data file plus every index file present, with their
// reference tables pre-parsed.
type Cache struct {
	dataFile   *DataFile
	master     *IndexFile   // idx255, the master index listing every other index's reference-table archive
	indexFiles []*IndexFile // indexed by index id, nil where absent
	refTables  map[uint8]*ReferenceTable
}

// indexCount reports the number of archive-id slots in the master index,
// i.e. the size of a checksum manifest built from this cache.
func (c *Cache) indexCount() int {
	return len(c.master.Refs)
}

// Open opens the cache rooted at dir, which must contain main_file_cache.dat2,
// main_file_cache.idx255 (the master index), and zero or more
// main_file_cache.idxN files.
func Open(dir string) (*Cache, error) {
	dataFile, err := OpenDataFile(filepath.Join(dir, "main_file_cache.dat2"))
	if err != nil {
		return nil, fmt.Errorf("rscache: open: %w", err)
	}

	idx255Path := filepath.Join(dir, "main_file_cache.idx255")
	if _, err := os.Stat(idx255Path); err != nil {
		dataFile.Close()
		return nil, ErrReferenceTableNotFound
	}
	master, err := OpenIndexFile(idx255Path, masterIndexID)
	if err != nil {
		dataFile.Close()
		return nil, fmt.Errorf("rscache: open master index: %w", err)
	}

	c := &Cache{
		dataFile:   dataFile,
		master:     master,
		indexFiles: make([]*IndexFile, masterIndexID),
		refTables:  make(map[uint8]*ReferenceTable),
	}

	for id := 0; id < masterIndexID; id++ {
		path := filepath.Join(dir, fmt.Sprintf("main_file_cache.idx%d", id))
		if _, err := os.Stat(path); err != nil {
			continue
		}

		idx, err := OpenIndexFile(path, uint8(id))
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("rscache: open index %d: %w", id, err)
		}
		c.indexFiles[id] = idx

		ref, err := master.Ref(uint32(id))
		if err != nil {
			// Index exists on disk but the master index has no reference
			// table entry for it; leave refTables[id] unset.
			continue
		}
		rt, err := c.readReferenceTable(ref)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("rscache: parse reference table %d: %w", id, err)
		}
		c.refTables[uint8(id)] = rt
	}

	return c, nil
}

func (c *Cache) readReferenceTable(ref ArchiveRef) (*ReferenceTable, error) {
	raw, err := c.dataFile.ReadChain(ref)
	if err != nil {
		return nil, err
	}
	payload, err := Decode(raw, nil)
	if err != nil {
		return nil, err
	}
	return ParseReferenceTable(payload.Data)
}

// Close releases the cache's open file handles.
func (c *Cache) Close() error {
	return c.dataFile.Close()
}

// Read decodes and returns the logical payload of a single archive.
// Entries within a multi-file group are not split; call ReadGroup for that.
func (c *Cache) Read(indexID uint8, archiveID uint32) ([]byte, error) {
	idx, err := c.indexFile(indexID)
	if err != nil {
		return nil, err
	}
	ref, err := idx.Ref(archiveID)
	if err != nil {
		return nil, err
	}
	raw, err := c.dataFile.ReadChain(ref)
	if err != nil {
		return nil, err
	}
	payload, err := Decode(raw, nil)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ReadEncrypted is Read for archives enciphered with XTEA (typically
// map location data).
func (c *Cache) ReadEncrypted(indexID uint8, archiveID uint32, keys XTEAKeys) ([]byte, error) {
	idx, err := c.indexFile(indexID)
	if err != nil {
		return nil, err
	}
	ref, err := idx.Ref(archiveID)
	if err != nil {
		return nil, err
	}
	raw, err := c.dataFile.ReadChain(ref)
	if err != nil {
		return nil, err
	}
	payload, err := Decode(raw, &keys)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ReadGroup reads and splits a multi-entry archive's payload into its
// individual files, using the entry count recorded in the index's
// reference table.
func (c *Cache) ReadGroup(indexID uint8, archiveID uint32) ([][]byte, error) {
	rt, ok := c.refTables[indexID]
	if !ok {
		return nil, &IndexNotFoundError{Index: indexID}
	}
	group, ok := rt.Group(archiveID)
	if !ok {
		return nil, &ArchiveNotFoundError{Index: indexID, Archive: archiveID}
	}

	raw, err := c.Read(indexID, archiveID)
	if err != nil {
		return nil, err
	}
	return SplitGroup(raw, len(group.EntryIDs))
}

// ArchiveRefByName resolves name to an ArchiveRef via the index's reference
// table, without reading the archive's payload. This mirrors
// archive_by_name in the original cache implementation, which returns an
// Archive handle and leaves the read to the caller.
func (c *Cache) ArchiveRefByName(indexID uint8, name string) (ArchiveRef, error) {
	rt, ok := c.refTables[indexID]
	if !ok {
		return ArchiveRef{}, &IndexNotFoundError{Index: indexID}
	}
	group, err := rt.GroupByName(name)
	if err != nil {
		return ArchiveRef{}, err
	}
	idx, err := c.indexFile(indexID)
	if err != nil {
		return ArchiveRef{}, err
	}
	return idx.Ref(group.ID)
}

// ArchiveByName resolves name to an archive via ArchiveRefByName, then
// reads and decodes it.
func (c *Cache) ArchiveByName(indexID uint8, name string) ([]byte, error) {
	ref, err := c.ArchiveRefByName(indexID, name)
	if err != nil {
		return nil, err
	}
	raw, err := c.dataFile.ReadChain(ref)
	if err != nil {
		return nil, err
	}
	payload, err := Decode(raw, nil)
	if err != nil {
		return nil, err
	}
	return payload.Data, nil
}

// ReferenceTable returns the parsed reference table for indexID, if any.
func (c *Cache) ReferenceTable(indexID uint8) (*ReferenceTable, bool) {
	rt, ok := c.refTables[indexID]
	return rt, ok
}

// HuffmanTable returns the raw Huffman coding table used to decompress
// in-game chat text. It is a fixed, well-known archive rather than
// something callers look up by id or name.
func (c *Cache) HuffmanTable() ([]byte, error) {
	return c.ArchiveByName(huffmanIndexID, huffmanArchiveName)
}

func (c *Cache) indexFile(indexID uint8) (*IndexFile, error) {
	if int(indexID) >= len(c.indexFiles) || c.indexFiles[indexID] == nil {
		return nil, &IndexNotFoundError{Index: indexID}
	}
	return c.indexFiles[indexID], nil
}
