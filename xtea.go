package rscache

import "encoding/binary"

const (
	xteaRounds = 32
	xteaDelta  = 0x9E3779B9
)

// XTEAKeys are the four 32-bit round keys used to encipher or decipher
// archive payloads (notably map/location data).
type XTEAKeys [4]uint32

// xteaEncipher enciphers data in place, 8 bytes at a time, 32 rounds per
// block. Any trailing bytes that don't form a full block are left
// untouched. Grounded on original_source/rune-fs/src/xtea.rs; Go's
// unsigned integer arithmetic wraps natively, so no explicit
// wrapping_add/wrapping_sub calls are needed.
func xteaEncipher(data []byte, keys XTEAKeys) {
	blocks := len(data) / 8
	for i := 0; i < blocks; i++ {
		off := i * 8
		v0 := binary.BigEndian.Uint32(data[off : off+4])
		v1 := binary.BigEndian.Uint32(data[off+4 : off+8])

		var sum uint32
		for round := 0; round < xteaRounds; round++ {
			v0 += (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + keys[sum&3])
			sum += xteaDelta
			v1 += (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + keys[(sum>>11)&3])
		}

		binary.BigEndian.PutUint32(data[off:off+4], v0)
		binary.BigEndian.PutUint32(data[off+4:off+8], v1)
	}
}

// xteaDecipher reverses xteaEncipher.
func xteaDecipher(data []byte, keys XTEAKeys) {
	blocks := len(data) / 8
	for i := 0; i < blocks; i++ {
		off := i * 8
		v0 := binary.BigEndian.Uint32(data[off : off+4])
		v1 := binary.BigEndian.Uint32(data[off+4 : off+8])

		delta := uint32(xteaDelta)
		sum := delta * xteaRounds
		for round := 0; round < xteaRounds; round++ {
			v1 -= (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + keys[(sum>>11)&3])
			sum -= xteaDelta
			v0 -= (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + keys[sum&3])
		}

		binary.BigEndian.PutUint32(data[off:off+4], v0)
		binary.BigEndian.PutUint32(data[off+4:off+8], v1)
	}
}
