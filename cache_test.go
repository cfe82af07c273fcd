package rscache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildNamedProtocol5Table(t *testing.T, archiveID uint32, name string, crc, version uint32) []byte {
	t.Helper()
	var buf []byte
	buf = append(buf, 5)                    // protocol
	buf = append(buf, byte(refFlagIdentified))
	buf = append(buf, 0x00, 0x01) // archive count = 1
	buf = append(buf, byte(archiveID>>8), byte(archiveID)) // id delta (from 0)

	h := NameHash(name)
	buf = append(buf, byte(h>>24), byte(h>>16), byte(h>>8), byte(h))

	buf = append(buf, byte(crc>>24), byte(crc>>16), byte(crc>>8), byte(crc))
	buf = append(buf, byte(version>>24), byte(version>>16), byte(version>>8), byte(version))
	buf = append(buf, 0x00, 0x01) // entry count = 1
	buf = append(buf, 0x00, 0x00) // entry id delta = 0
	buf = append(buf, 0x00, 0x00, 0x00, 0x00) // entry name hash (unused)
	return buf
}

// writeSectorChain writes data (already framed) into buf as a chain of
// consecutive normal-header sectors starting at sector startSector.
func writeSectorChain(buf []byte, startSector int, archiveID uint32, indexID uint8, data []byte) {
	remaining := len(data)
	written := 0
	chunk := uint16(0)
	sector := startSector
	for remaining > 0 {
		take := sectorDataSize
		if remaining < take {
			take = remaining
		}
		next := 0
		if remaining-take > 0 {
			next = sector + 1
		}
		buildNormalSector(buf, sector, archiveID, chunk, next, indexID, data[written:written+take])
		written += take
		remaining -= take
		chunk++
		sector++
	}
}

func TestCacheOpenReadAndArchiveByName(t *testing.T) {
	dir := t.TempDir()

	payload := []byte("archive data for id 3")
	dataFrame, err := Encode(payload, CompressionNone, nil, nil)
	require.NoError(t, err)

	reftableBytes := buildNamedProtocol5Table(t, 3, "foo", 0x11111111, 1)
	reftableFrame, err := Encode(reftableBytes, CompressionNone, nil, nil)
	require.NoError(t, err)

	// Lay out two single-sector chains: sector 0 for the index-0 reference
	// table (stored under index 255, archive id 0), sector 1 for archive 3
	// of index 0.
	dat := make([]byte, SectorSize*2)
	writeSectorChain(dat, 0, 0, masterIndexID, reftableFrame)
	writeSectorChain(dat, 1, 3, 0, dataFrame)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_file_cache.dat2"), dat, 0o644))

	idx255Rec := encodeIndexRecord(ArchiveRef{Length: len(reftableFrame), Sector: 0})
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_file_cache.idx255"), idx255Rec[:], 0o644))

	var idx0 []byte
	for i := 0; i < 3; i++ {
		rec := encodeIndexRecord(ArchiveRef{})
		idx0 = append(idx0, rec[:]...)
	}
	rec3 := encodeIndexRecord(ArchiveRef{Length: len(dataFrame), Sector: 1})
	idx0 = append(idx0, rec3[:]...)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main_file_cache.idx0"), idx0, 0o644))

	cache, err := Open(dir)
	require.NoError(t, err)
	defer cache.Close()

	got, err := cache.Read(0, 3)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	got, err = cache.ArchiveByName(0, "foo")
	require.NoError(t, err)
	require.Equal(t, payload, got)

	_, err = cache.ArchiveByName(0, "not-there")
	require.Error(t, err)

	// ArchiveRefByName resolves the same lookup without paying for a read:
	// the ref alone identifies the chain ArchiveByName went on to decode.
	ref, err := cache.ArchiveRefByName(0, "foo")
	require.NoError(t, err)
	require.Equal(t, uint32(3), ref.ID)
	require.Equal(t, uint8(0), ref.IndexID)
	require.Equal(t, len(dataFrame), ref.Length)
	require.Equal(t, 1, ref.Sector)

	_, err = cache.ArchiveRefByName(0, "not-there")
	require.Error(t, err)

	rt, ok := cache.ReferenceTable(0)
	require.True(t, ok)
	require.Len(t, rt.Groups, 1)

	_, err = cache.Read(1, 0)
	require.Error(t, err)
	var notFound *IndexNotFoundError
	require.ErrorAs(t, err, &notFound)
}
