package undo

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// putBitcoinVarInt encodes n using Bitcoin Core's CVarInt (the undo-file
// varint, distinct from CompactSize) for building test fixtures.
func putBitcoinVarInt(n uint64) []byte {
	var tmp [10]byte
	i := len(tmp)
	i--
	tmp[i] = byte(n & 0x7f)
	n >>= 7
	for n > 0 {
		n--
		i--
		tmp[i] = byte(n&0x7f) | 0x80
		n >>= 7
	}
	return tmp[i:]
}

func putCompactSize(n uint64) []byte {
	if n < 0xfd {
		return []byte{byte(n)}
	}
	buf := make([]byte, 3)
	buf[0] = 0xfd
	binary.LittleEndian.PutUint16(buf[1:], uint16(n))
	return buf
}

// buildCoin encodes one Coin entry at a fixed height (so the version-dummy
// varint is present, matching a typical spent output) for a P2PKH script.
func buildCoin(valueCompressed uint64, pkHash [20]byte) []byte {
	var buf bytes.Buffer
	buf.Write(putBitcoinVarInt(2*100 + 0))     // nCode: height 100, not coinbase
	buf.Write(putBitcoinVarInt(0))             // version dummy
	buf.Write(putBitcoinVarInt(valueCompressed)) // compressed amount
	buf.Write(putBitcoinVarInt(0))             // nSize 0 = P2PKH
	buf.Write(pkHash[:])
	return buf.Bytes()
}

// buildUndoRecord wraps one CBlockUndo body (one tx, one input) in the
// magic+size ... hash framing ReadNext expects.
func buildUndoRecord(txCount uint64, coin []byte) []byte {
	var body bytes.Buffer
	body.Write(putCompactSize(txCount))
	body.Write(putCompactSize(1)) // one input for that tx
	body.Write(coin)

	var rec bytes.Buffer
	rec.Write([]byte{0xf9, 0xbe, 0xb4, 0xd9}) // magic, unchecked by ReadNext
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(body.Len()))
	rec.Write(sizeBuf)
	rec.Write(body.Bytes())
	rec.Write(make([]byte, 32)) // trailing checksum hash, unchecked by ReadNext
	return rec.Bytes()
}

func TestReadNextDecodesP2PKHCoin(t *testing.T) {
	var pkHash [20]byte
	copy(pkHash[:], bytes.Repeat([]byte{0xab}, 20))

	coin := buildCoin(5000000001, pkHash) // decompresses to 555555556 sats; only the script is asserted below
	record := buildUndoRecord(1, coin)

	r := bytes.NewReader(record)
	bu, err := ReadNext(r, 1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), bu.TxCount)
	require.Len(t, bu.Prevouts, 1)
	require.Len(t, bu.Prevouts[0], 1)

	got := bu.Prevouts[0][0]
	require.Equal(t, "76a914"+hexRepeat("ab", 20)+"88ac", got.ScriptPubkeyHex)
}

func TestReadNextSkipsMismatchedRecord(t *testing.T) {
	var pkHash [20]byte
	mismatch := buildUndoRecord(1, buildCoin(1, pkHash))

	// Build a txCount=2 record directly (buildUndoRecord only models a
	// single transaction per record).
	var body bytes.Buffer
	body.Write(putCompactSize(2))
	body.Write(putCompactSize(1))
	body.Write(buildCoin(1, pkHash))
	body.Write(putCompactSize(1))
	body.Write(buildCoin(1, pkHash))

	var rec bytes.Buffer
	rec.Write([]byte{0xf9, 0xbe, 0xb4, 0xd9})
	sizeBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(sizeBuf, uint32(body.Len()))
	rec.Write(sizeBuf)
	rec.Write(body.Bytes())
	rec.Write(make([]byte, 32))
	want := rec.Bytes()

	all := append(append([]byte{}, mismatch...), want...)
	r := bytes.NewReader(all)

	bu, err := ReadNext(r, 2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), bu.TxCount)
	require.Len(t, bu.Prevouts, 2)
}

func TestReadNextReturnsEOFPastLastRecord(t *testing.T) {
	var pkHash [20]byte
	record := buildUndoRecord(1, buildCoin(1, pkHash))
	r := bytes.NewReader(record)

	_, err := ReadNext(r, 1)
	require.NoError(t, err)

	_, err = ReadNext(r, 1)
	require.Error(t, err)
}

func hexRepeat(pair string, n int) string {
	out := make([]byte, 0, len(pair)*n)
	for i := 0; i < n; i++ {
		out = append(out, pair...)
	}
	return string(out)
}
