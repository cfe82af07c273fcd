package rscache

import "encoding/binary"

// SectorSize is the fixed on-disk size, in bytes, of every sector in the
// main data file.
const SectorSize = 520

const (
	sectorHeaderSize    = 8
	sectorDataSize      = 512
	sectorExpHeaderSize = 10
	sectorExpDataSize   = 510
)

// sectorLayout returns the header and data sizes for the sector chain
// backing an archive with the given id. The variant is decided solely by
// the archive id, never by which index it belongs to.
func sectorLayout(archiveID uint32) (headerLen, dataLen int) {
	if archiveID <= 0xFFFF {
		return sectorHeaderSize, sectorDataSize
	}
	return sectorExpHeaderSize, sectorExpDataSize
}

// sectorHeader is the per-sector chain-validation record at the front of
// every sector's data block.
type sectorHeader struct {
	archiveID uint32
	chunk     uint16
	next      int
	indexID   uint8
}

// parseSectorHeader decodes a sector header from the first headerLen bytes
// of buf. expanded selects the 4-byte archive id / 10-byte header variant.
func parseSectorHeader(buf []byte, expanded bool) sectorHeader {
	if expanded {
		return sectorHeader{
			archiveID: binary.BigEndian.Uint32(buf[0:4]),
			chunk:     binary.BigEndian.Uint16(buf[4:6]),
			next:      int(uint32(buf[6])<<16 | uint32(buf[7])<<8 | uint32(buf[8])),
			indexID:   buf[9],
		}
	}
	return sectorHeader{
		archiveID: uint32(binary.BigEndian.Uint16(buf[0:2])),
		chunk:     binary.BigEndian.Uint16(buf[2:4]),
		next:      int(uint32(buf[4])<<16 | uint32(buf[5])<<8 | uint32(buf[6])),
		indexID:   buf[7],
	}
}

// dataSource is the abstraction a DataFile reads sectors through. It is
// satisfied by either a memory-mapped file (mmap_unix.go) or a seek-free
// ReadAt-backed file handle (mmap_other.go); the choice never leaks past
// DataFile's own API.
type dataSource interface {
	sliceAt(offset, length int) ([]byte, error)
	Close() error
}

// DataFile is the main cache data blob: a flat array of SectorSize-byte
// sectors, addressed by sector index. It is opened once and held
// read-only for the Cache's lifetime.
type DataFile struct {
	src dataSource
}

// OpenDataFile opens the main data file at path using the best available
// storage strategy for the current platform (memory-mapped where
// supported, a ReadAt-backed file handle otherwise).
func OpenDataFile(path string) (*DataFile, error) {
	src, err := openDataSource(path)
	if err != nil {
		return nil, err
	}
	return &DataFile{src: src}, nil
}

// Close releases the underlying file resources.
func (d *DataFile) Close() error {
	return d.src.Close()
}

// ReadChain walks the sector chain for ref and returns its exact
// ref.Length bytes of raw (still compression-framed) payload. Any header
// mismatch or truncated chain returns an error without a partial result.
func (d *DataFile) ReadChain(ref ArchiveRef) ([]byte, error) {
	headerLen, dataLen := sectorLayout(ref.ID)

	out := make([]byte, ref.Length)
	cur := ref.Sector
	remaining := ref.Length
	written := 0
	var chunk uint16

	for remaining > 0 {
		take := dataLen
		if remaining < take {
			take = remaining
		}

		offset := cur * SectorSize
		raw, err := d.src.sliceAt(offset, headerLen+take)
		if err != nil {
			return nil, &ParseError{Kind: ParseErrorSector, ID: cur}
		}

		hdr := parseSectorHeader(raw[:headerLen], headerLen == sectorExpHeaderSize)
		if hdr.archiveID != ref.ID {
			return nil, &SectorArchiveMismatchError{Got: hdr.archiveID, Want: ref.ID}
		}
		if hdr.chunk != chunk {
			return nil, &SectorChunkMismatchError{Got: hdr.chunk, Want: chunk}
		}
		if hdr.indexID != ref.IndexID {
			return nil, &SectorIndexMismatchError{Got: hdr.indexID, Want: ref.IndexID}
		}

		copy(out[written:written+take], raw[headerLen:headerLen+take])
		written += take
		remaining -= take
		chunk++

		if remaining > 0 && hdr.next == 0 {
			return nil, &SectorNextMismatchError{Sector: cur}
		}
		cur = hdr.next
	}

	return out, nil
}
