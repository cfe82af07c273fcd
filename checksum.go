package rscache

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math/big"

	"github.com/jzelinskie/whirlpool"
)

// IndexChecksum is one index's entry in a checksum manifest: the CRC32 of
// the raw (still-framed) bytes of its (255, i) reference-table archive, and
// the version read out of that same frame's header.
type IndexChecksum struct {
	CRC     uint32
	Version uint32
}

// Checksum is the manifest a client uses to detect which indices of a
// cache are stale against a known-good server listing, grounded on
// original_source/src/checksum.rs.
type Checksum struct {
	Indices []IndexChecksum
}

// reservedChecksumIndex is a hard-coded reserved/missing index slot in the
// checksum manifest, carried from the reference implementation's
// Checksum::build loop; BuildChecksum always emits a zero entry for it.
const reservedChecksumIndex = 16

// BuildChecksum computes a Checksum manifest by reading, for every archive
// id in the master index (idx255), the still-framed bytes of archive
// (255, i) — the reference-table payload for index i — directly out of the
// data file. The manifest's CRC is the CRC32-IEEE of those raw bytes; its
// version is read from a fixed offset in the frame header rather than from
// the parsed reference table, per §4.8.
func BuildChecksum(cache *Cache) (*Checksum, error) {
	n := cache.indexCount()
	indices := make([]IndexChecksum, 0, n)
	for i := 0; i < n; i++ {
		if i == reservedChecksumIndex {
			indices = append(indices, IndexChecksum{})
			continue
		}

		ref, err := cache.master.Ref(uint32(i))
		if err != nil {
			indices = append(indices, IndexChecksum{})
			continue
		}

		raw, err := cache.dataFile.ReadChain(ref)
		if err != nil {
			return nil, fmt.Errorf("rscache: build checksum: index %d: %w", i, err)
		}
		if len(raw) == 0 {
			indices = append(indices, IndexChecksum{})
			continue
		}

		crc := crc32.ChecksumIEEE(raw)

		versionOffset := 5
		if Compression(raw[0]) != CompressionNone {
			versionOffset = 9
		}
		if len(raw) < versionOffset+4 {
			return nil, fmt.Errorf("rscache: build checksum: index %d: frame too short for version field", i)
		}
		version := binary.BigEndian.Uint32(raw[versionOffset : versionOffset+4])

		indices = append(indices, IndexChecksum{CRC: crc, Version: version})
	}
	return &Checksum{Indices: indices}, nil
}

// Validate compares the manifest against an externally supplied list of
// per-index CRCs (as published by a game's update server), reporting the
// first mismatch.
func (c *Checksum) Validate(external []uint32) error {
	if len(external) != len(c.Indices) {
		return &ValidateError{
			InvalidLength: true,
			Expected:      len(c.Indices),
			Actual:        len(external),
		}
	}
	for i, want := range external {
		got := c.Indices[i].CRC
		if got != want {
			return &ValidateError{
				Index:    i,
				External: want,
				Internal: got,
			}
		}
	}
	return nil
}

// rawChecksumBytes renders the manifest to its plain wire form: one
// (crc, version) u32 BE pair per index.
func (c *Checksum) rawChecksumBytes() []byte {
	buf := make([]byte, 0, len(c.Indices)*8)
	for _, idx := range c.Indices {
		buf = binary.BigEndian.AppendUint32(buf, idx.CRC)
		buf = binary.BigEndian.AppendUint32(buf, idx.Version)
	}
	return buf
}

// EncodePlain frames the manifest as an uncompressed payload, suitable for
// clients that validate it without a trust anchor.
func (c *Checksum) EncodePlain() ([]byte, error) {
	return Encode(c.rawChecksumBytes(), CompressionNone, nil, nil)
}

// EncodeRSA signs the manifest and frames the signed form as an uncompressed
// payload. The digest is computed over the raw crc/version array (the same
// bytes EncodePlain frames, before framing), not over the framed output:
// signature = digest^exponent mod modulus, digest = whirlpool-512(raw).
// exponent and modulus are the raw (unsigned, big-endian) key components, as
// published alongside a cache. The body is [digest_len u8, signature bytes,
// raw crc/version bytes], itself wrapped in a CompressionNone frame so a
// client can locate the signature before validating the rest.
func (c *Checksum) EncodeRSA(exponent, modulus []byte) ([]byte, error) {
	raw := c.rawChecksumBytes()

	w := whirlpool.New()
	w.Write(raw)
	digest := w.Sum(nil)

	e := new(big.Int).SetBytes(exponent)
	m := new(big.Int).SetBytes(modulus)
	d := new(big.Int).SetBytes(digest)
	sig := new(big.Int).Exp(d, e, m).Bytes()

	if len(sig) > 0xFF {
		return nil, fmt.Errorf("rscache: encode rsa checksum: signature length %d overflows a single byte", len(sig))
	}

	body := make([]byte, 0, 1+len(sig)+len(raw))
	body = append(body, byte(len(sig)))
	body = append(body, sig...)
	body = append(body, raw...)

	frame, err := Encode(body, CompressionNone, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("rscache: encode rsa checksum: %w", err)
	}
	return frame, nil
}
