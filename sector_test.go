package rscache

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// memSource is an in-memory dataSource for tests, avoiding any dependency
// on real cache files on disk.
type memSource struct {
	data []byte
}

func (m *memSource) sliceAt(offset, length int) ([]byte, error) {
	if offset < 0 || length < 0 || offset+length > len(m.data) {
		return nil, &ParseError{Kind: ParseErrorSector, ID: offset / SectorSize}
	}
	return m.data[offset : offset+length], nil
}

func (m *memSource) Close() error { return nil }

// buildNormalSector writes one 520-byte normal-header sector at sector
// index idx within buf, which must already be large enough.
func buildNormalSector(buf []byte, idx int, archiveID uint32, chunk uint16, next int, indexID uint8, data []byte) {
	off := idx * SectorSize
	binary.BigEndian.PutUint16(buf[off:off+2], uint16(archiveID))
	binary.BigEndian.PutUint16(buf[off+2:off+4], chunk)
	buf[off+4] = byte(next >> 16)
	buf[off+5] = byte(next >> 8)
	buf[off+6] = byte(next)
	buf[off+7] = indexID
	copy(buf[off+8:off+8+len(data)], data)
}

func TestDataFileReadChainSingleSector(t *testing.T) {
	payload := []byte("hello, cache")
	buf := make([]byte, SectorSize)
	buildNormalSector(buf, 0, 7, 0, 0, 3, payload)

	df := &DataFile{src: &memSource{data: buf}}
	out, err := df.ReadChain(ArchiveRef{ID: 7, IndexID: 3, Sector: 0, Length: len(payload)})
	require.NoError(t, err)
	require.Equal(t, payload, out)
}

func TestDataFileReadChainMultiSector(t *testing.T) {
	part1 := make([]byte, sectorDataSize)
	for i := range part1 {
		part1[i] = byte(i)
	}
	part2 := []byte("tail bytes")
	total := len(part1) + len(part2)

	buf := make([]byte, SectorSize*2)
	buildNormalSector(buf, 0, 9, 0, 1, 5, part1)
	buildNormalSector(buf, 1, 9, 1, 0, 5, part2)

	df := &DataFile{src: &memSource{data: buf}}
	out, err := df.ReadChain(ArchiveRef{ID: 9, IndexID: 5, Sector: 0, Length: total})
	require.NoError(t, err)
	require.Equal(t, append(append([]byte(nil), part1...), part2...), out)
}

func TestDataFileReadChainArchiveMismatch(t *testing.T) {
	buf := make([]byte, SectorSize)
	buildNormalSector(buf, 0, 999, 0, 0, 1, []byte("x"))

	df := &DataFile{src: &memSource{data: buf}}
	_, err := df.ReadChain(ArchiveRef{ID: 7, IndexID: 1, Sector: 0, Length: 1})
	require.Error(t, err)
	var mismatch *SectorArchiveMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestDataFileReadChainTruncatedChain(t *testing.T) {
	buf := make([]byte, SectorSize)
	buildNormalSector(buf, 0, 7, 0, 0, 1, []byte("short"))

	df := &DataFile{src: &memSource{data: buf}}
	_, err := df.ReadChain(ArchiveRef{ID: 7, IndexID: 1, Sector: 0, Length: sectorDataSize + 10})
	require.Error(t, err)
	var mismatch *SectorNextMismatchError
	require.ErrorAs(t, err, &mismatch)
}

func TestSectorLayoutChoosesExpandedForLargeArchiveIDs(t *testing.T) {
	h, d := sectorLayout(0x10000)
	require.Equal(t, sectorExpHeaderSize, h)
	require.Equal(t, sectorExpDataSize, d)

	h, d = sectorLayout(0xFFFF)
	require.Equal(t, sectorHeaderSize, h)
	require.Equal(t, sectorDataSize, d)
}
