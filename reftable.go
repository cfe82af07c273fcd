package rscache

import "fmt"

// Reference table flag bits (§4.5): which optional per-archive fields are
// present after the archive id list.
const (
	refFlagIdentified = 1 << 0 // per-archive name hash
	refFlagWhirlpool  = 1 << 1 // per-archive whirlpool-512 digest
	refFlagCodecSizes = 1 << 2 // per-archive compressed/uncompressed size pair
	refFlagHash       = 1 << 3 // per-archive extra crc-style hash
)

// GroupMetadata describes one archive (a "group" of one or more entries) as
// recorded in an index's reference table.
type GroupMetadata struct {
	ID           uint32
	NameHash     int32 // only meaningful if Identified
	Identified   bool
	CRC          uint32
	ExtraHash    uint32 // only meaningful if HasExtraHash
	HasExtraHash bool
	Whirlpool    []byte // 64 bytes, only present if HasWhirlpool
	HasWhirlpool bool
	Version      uint32
	EntryIDs     []uint32
}

// ReferenceTable is the parsed idx255 entry for a single index: the
// protocol version, optional revision, and every archive's metadata.
type ReferenceTable struct {
	Protocol byte
	Revision uint32
	Groups   []GroupMetadata
}

// ParseReferenceTable parses a decoded reference table payload (§4.5),
// grounded on the protocol/flags dispatch in
// original_source/rune-fs/src/archive.rs.
func ParseReferenceTable(data []byte) (*ReferenceTable, error) {
	r := newSmartReader(data)

	protocol, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("rscache: reference table: %w", err)
	}
	if protocol > 7 {
		return nil, fmt.Errorf("rscache: reference table: unsupported protocol %d", protocol)
	}

	var revision uint32
	if protocol >= 6 {
		revision, err = r.u32()
		if err != nil {
			return nil, fmt.Errorf("rscache: reference table: revision: %w", err)
		}
	}

	flags, err := r.u8()
	if err != nil {
		return nil, fmt.Errorf("rscache: reference table: flags: %w", err)
	}

	count, err := readTableCount(r, protocol)
	if err != nil {
		return nil, fmt.Errorf("rscache: reference table: archive count: %w", err)
	}

	ids := make([]uint32, count)
	var prev int32
	for i := range ids {
		delta, err := readArchiveIDDelta(r, protocol)
		if err != nil {
			return nil, fmt.Errorf("rscache: reference table: archive id %d: %w", i, err)
		}
		prev += delta
		ids[i] = uint32(prev)
	}

	groups := make([]GroupMetadata, count)
	for i, id := range ids {
		groups[i].ID = id
	}

	if flags&refFlagIdentified != 0 {
		for i := range groups {
			h, err := r.u32()
			if err != nil {
				return nil, fmt.Errorf("rscache: reference table: name hash %d: %w", i, err)
			}
			groups[i].NameHash = int32(h)
			groups[i].Identified = true
		}
	}

	for i := range groups {
		crc, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("rscache: reference table: crc %d: %w", i, err)
		}
		groups[i].CRC = crc
	}

	if flags&refFlagHash != 0 {
		for i := range groups {
			h, err := r.u32()
			if err != nil {
				return nil, fmt.Errorf("rscache: reference table: extra hash %d: %w", i, err)
			}
			groups[i].ExtraHash = h
			groups[i].HasExtraHash = true
		}
	}

	if flags&refFlagWhirlpool != 0 {
		for i := range groups {
			b, err := r.take(64)
			if err != nil {
				return nil, fmt.Errorf("rscache: reference table: whirlpool %d: %w", i, err)
			}
			groups[i].Whirlpool = append([]byte(nil), b...)
			groups[i].HasWhirlpool = true
		}
	}

	if flags&refFlagCodecSizes != 0 {
		// Compressed/uncompressed size pairs are consumed but not retained:
		// DataFile.ReadChain and Decode already recover both lengths from
		// the sector chain and the payload frame itself.
		for i := range groups {
			if _, err := r.u32(); err != nil {
				return nil, fmt.Errorf("rscache: reference table: codec size %d: %w", i, err)
			}
			if _, err := r.u32(); err != nil {
				return nil, fmt.Errorf("rscache: reference table: codec size %d: %w", i, err)
			}
		}
	}

	for i := range groups {
		v, err := r.u32()
		if err != nil {
			return nil, fmt.Errorf("rscache: reference table: version %d: %w", i, err)
		}
		groups[i].Version = v
	}

	entryCounts := make([]int, count)
	for i := range groups {
		n, err := readTableCount(r, protocol)
		if err != nil {
			return nil, fmt.Errorf("rscache: reference table: entry count %d: %w", i, err)
		}
		entryCounts[i] = n
	}

	for i := range groups {
		entryIDs := make([]uint32, entryCounts[i])
		var prevEntry int32
		for j := range entryIDs {
			delta, err := readEntryIDDelta(r, protocol)
			if err != nil {
				return nil, fmt.Errorf("rscache: reference table: group %d entry %d: %w", i, j, err)
			}
			prevEntry += delta
			entryIDs[j] = uint32(prevEntry)
		}
		groups[i].EntryIDs = entryIDs
	}

	if flags&refFlagIdentified != 0 {
		for i := range groups {
			for j := range groups[i].EntryIDs {
				if _, err := r.u32(); err != nil {
					return nil, fmt.Errorf("rscache: reference table: group %d entry %d name hash: %w", i, j, err)
				}
			}
		}
	}

	return &ReferenceTable{Protocol: protocol, Revision: revision, Groups: groups}, nil
}

// Group looks up a group by id, reporting false for unknown ids.
func (t *ReferenceTable) Group(id uint32) (*GroupMetadata, bool) {
	for i := range t.Groups {
		if t.Groups[i].ID == id {
			return &t.Groups[i], true
		}
	}
	return nil, false
}

// GroupByName looks up a group by its djd2 name hash, returning
// ErrNameNotInArchive if no identified group matches.
func (t *ReferenceTable) GroupByName(name string) (*GroupMetadata, error) {
	h := NameHash(name)
	for i := range t.Groups {
		if t.Groups[i].Identified && t.Groups[i].NameHash == h {
			return &t.Groups[i], nil
		}
	}
	return nil, ErrNameNotInArchive
}

// readTableCount reads a count field (archive_count or a per-group
// entry_count): a plain u16 below protocol 7, a u32_smart at protocol 7 and
// above.
func readTableCount(r *smartReader, protocol byte) (int, error) {
	if protocol >= 7 {
		v, err := r.u32Smart()
		if err != nil {
			return 0, err
		}
		return int(v), nil
	}
	v, err := r.u16()
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// readArchiveIDDelta reads a signed top-level archive id delta: a plain u16
// (reinterpreted as i32) below protocol 7, a u32_smart at protocol 7 and
// above.
func readArchiveIDDelta(r *smartReader, protocol byte) (int32, error) {
	if protocol >= 7 {
		v, err := r.u32Smart()
		if err != nil {
			return 0, err
		}
		return int32(v), nil
	}
	v, err := r.u16()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// readEntryIDDelta is readArchiveIDDelta's counterpart for the entry ids
// nested under each group: a plain u16 below protocol 7, a u32_smart at
// protocol 7 and above.
func readEntryIDDelta(r *smartReader, protocol byte) (int32, error) {
	if protocol >= 7 {
		v, err := r.u32Smart()
		if err != nil {
			return 0, err
		}
		return int32(v), nil
	}
	v, err := r.u16()
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}
