package rscache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func buildIndexRecord(length, sector int) [indexRecordSize]byte {
	return encodeIndexRecord(ArchiveRef{Length: length, Sector: sector})
}

func TestParseIndexFile(t *testing.T) {
	var buf []byte
	rec0 := buildIndexRecord(100, 5)
	rec1 := buildIndexRecord(0, 0) // absent archive
	rec2 := buildIndexRecord(42, 9)
	buf = append(buf, rec0[:]...)
	buf = append(buf, rec1[:]...)
	buf = append(buf, rec2[:]...)

	idx, err := ParseIndexFile(buf, 3)
	require.NoError(t, err)
	require.Len(t, idx.Refs, 3)

	ref, err := idx.Ref(0)
	require.NoError(t, err)
	require.Equal(t, ArchiveRef{ID: 0, IndexID: 3, Sector: 5, Length: 100}, ref)

	ref, err = idx.Ref(2)
	require.NoError(t, err)
	require.Equal(t, ArchiveRef{ID: 2, IndexID: 3, Sector: 9, Length: 42}, ref)

	_, err = idx.Ref(1)
	require.Error(t, err)
	var notFound *ArchiveNotFoundError
	require.ErrorAs(t, err, &notFound)

	_, err = idx.Ref(5)
	require.Error(t, err)
	require.ErrorAs(t, err, &notFound)
}

func TestParseIndexFileRejectsMisalignedLength(t *testing.T) {
	_, err := ParseIndexFile(make([]byte, 7), 1)
	require.Error(t, err)
}

func TestEncodeIndexRecordRoundTrip(t *testing.T) {
	ref := ArchiveRef{Length: 0xABCDEF, Sector: 0x123456}
	rec := encodeIndexRecord(ref)

	idx, err := ParseIndexFile(rec[:], 0)
	require.NoError(t, err)
	got, err := idx.Ref(0)
	require.NoError(t, err)
	require.Equal(t, ref.Length, got.Length)
	require.Equal(t, ref.Sector, got.Sector)
}
