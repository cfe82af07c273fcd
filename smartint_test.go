package rscache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestU16SmartSingleByte(t *testing.T) {
	r := newSmartReader([]byte{0x32})
	v, err := r.u16Smart()
	require.NoError(t, err)
	require.Equal(t, uint16(50), v)
	require.Equal(t, 0, r.remaining())
}

func TestU16SmartTwoByte(t *testing.T) {
	r := newSmartReader([]byte{0x81, 0x2C})
	v, err := r.u16Smart()
	require.NoError(t, err)
	require.Equal(t, uint16(300), v)
}

func TestU32SmartSmallValue(t *testing.T) {
	r := newSmartReader([]byte{0x00, 0x05})
	v, err := r.u32Smart()
	require.NoError(t, err)
	require.Equal(t, uint32(5), v)
}

func TestU32SmartLargeValue(t *testing.T) {
	// top bit set selects the 4-byte form; value masked to 31 bits.
	r := newSmartReader([]byte{0x80, 0x01, 0x00, 0x00})
	v, err := r.u32Smart()
	require.NoError(t, err)
	require.Equal(t, uint32(0x00010000), v)
}

func TestU32SmartCompatSingleSmartValue(t *testing.T) {
	// A single one-byte u16_smart read below 32767 terminates immediately.
	r := newSmartReader([]byte{0x05})
	v, err := r.u32SmartCompat()
	require.NoError(t, err)
	require.Equal(t, uint32(5), v)
}

func TestU32SmartCompatAccumulatesOn32767(t *testing.T) {
	// 0xFF,0xFF is the two-byte u16_smart form of 32767, which forces
	// another read; 0x01 is the one-byte form of 1. A u32Smart reader fed
	// the same bytes would instead take the 0xFF lead byte as the start of
	// a 4-byte large-form value and fail on these 3 bytes, which is exactly
	// the mix-up this test guards against.
	r := newSmartReader([]byte{0xFF, 0xFF, 0x01})
	v, err := r.u32SmartCompat()
	require.NoError(t, err)
	require.Equal(t, uint32(32767+1), v)
	require.Equal(t, 0, r.remaining())
}

func TestSmartReaderErrorsOnShortBuffer(t *testing.T) {
	r := newSmartReader([]byte{0x80})
	_, err := r.u16Smart()
	require.Error(t, err)
}
