package bytescan

import (
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVarIntRoundTrip(t *testing.T) {
	cases := []uint64{
		0, 1, 0xfc, 0xfd, 0xfe, 0xffff,
		0x10000, 0xffffffff,
		0x100000000, 0xffffffffffffffff,
	}
	for _, v := range cases {
		buf := PutVarInt(nil, v)
		got, err := New(buf).VarInt()
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestFixedLoads(t *testing.T) {
	buf := []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	r := New(buf)

	v32, err := r.U32()
	require.NoError(t, err)
	require.Equal(t, uint32(1), v32)

	v64, err := r.U64()
	require.NoError(t, err)
	require.Equal(t, uint64(2), v64)
}

func TestShortReadReturnsUnexpectedEOF(t *testing.T) {
	r := New([]byte{0x01, 0x02})
	_, err := r.U32()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSliceAdvancesCursor(t *testing.T) {
	r := New([]byte{1, 2, 3, 4, 5})
	s, err := r.Slice(3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, s)
	require.Equal(t, 3, r.Pos())
	require.Equal(t, 2, r.Len())
}

func TestVarIntShortRead(t *testing.T) {
	r := New([]byte{0xfd, 0x01})
	_, err := r.VarInt()
	require.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
