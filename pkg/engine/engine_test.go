package engine

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"blocklens/pkg/bytescan"
	"blocklens/pkg/netprofile"
	"blocklens/pkg/txhash"
)

// recordingCallback captures every lifecycle event fired during a test run,
// in order, so assertions can check bracket pairing and field values
// without depending on any concrete analysis callback.
type recordingCallback struct {
	needHash bool

	events    []string
	starts    []BlockRef
	tip       BlockRef
	blocks    []BlockRef
	outputs   []outputRecord
	edges     []Edge
	txHashes  []Hash256
	wrappedUp bool
}

type outputRecord struct {
	Value  uint64
	Hash   Hash256
	Index  uint32
	Script []byte
}

func (c *recordingCallback) Name() string          { return "recorder" }
func (c *recordingCallback) Init(args []string) error { return nil }
func (c *recordingCallback) NeedTXHash() bool      { return c.needHash }
func (c *recordingCallback) StartLC()              { c.events = append(c.events, "startLC") }
func (c *recordingCallback) Start(first, tip BlockRef) {
	c.events = append(c.events, "start")
	c.starts = append(c.starts, first)
	c.tip = tip
}
func (c *recordingCallback) StartMap(int64) { c.events = append(c.events, "startMap") }
func (c *recordingCallback) EndMap(int64)   { c.events = append(c.events, "endMap") }
func (c *recordingCallback) StartBlock(b BlockRef, chainSize uint64) {
	c.events = append(c.events, "startBlock")
	c.blocks = append(c.blocks, b)
}
func (c *recordingCallback) EndBlock(b BlockRef) { c.events = append(c.events, "endBlock") }
func (c *recordingCallback) StartTX(pos int, hash Hash256) {
	c.events = append(c.events, "startTX")
	c.txHashes = append(c.txHashes, hash)
}
func (c *recordingCallback) EndTX(pos int)       { c.events = append(c.events, "endTX") }
func (c *recordingCallback) StartInputs(pos int) { c.events = append(c.events, "startInputs") }
func (c *recordingCallback) EndInputs(pos int)   { c.events = append(c.events, "endInputs") }
func (c *recordingCallback) StartInput(pos int)  { c.events = append(c.events, "startInput") }
func (c *recordingCallback) EndInput(pos int)    { c.events = append(c.events, "endInput") }
func (c *recordingCallback) StartOutputs(pos int) { c.events = append(c.events, "startOutputs") }
func (c *recordingCallback) EndOutputs(pos int)   { c.events = append(c.events, "endOutputs") }
func (c *recordingCallback) StartOutput(pos int)  { c.events = append(c.events, "startOutput") }
func (c *recordingCallback) EndOutput(pos int, value uint64, txHash Hash256, outputIndex uint32, script []byte) {
	c.events = append(c.events, "endOutput")
	c.outputs = append(c.outputs, outputRecord{Value: value, Hash: txHash, Index: outputIndex, Script: script})
}
func (c *recordingCallback) Edge(e Edge) {
	c.events = append(c.events, "edge")
	c.edges = append(c.edges, e)
}
func (c *recordingCallback) Wrapup() error { c.wrappedUp = true; return nil }

// --- fixture builders -------------------------------------------------

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func le64(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

type txIn struct {
	prevHash  Hash256
	prevIndex uint32
	script    []byte
}

type txOut struct {
	value  uint64
	script []byte
}

// buildTx serializes one transaction and returns its bytes plus its
// double-SHA-256 hash, mirroring the wire layout in spec §6.1.
func buildTx(ins []txIn, outs []txOut) ([]byte, Hash256) {
	var buf []byte
	buf = append(buf, le32(1)...) // version

	buf = bytescan.PutVarInt(buf, uint64(len(ins)))
	for _, in := range ins {
		buf = append(buf, in.prevHash[:]...)
		buf = append(buf, le32(in.prevIndex)...)
		buf = bytescan.PutVarInt(buf, uint64(len(in.script)))
		buf = append(buf, in.script...)
		buf = append(buf, le32(0xffffffff)...) // sequence
	}

	buf = bytescan.PutVarInt(buf, uint64(len(outs)))
	for _, out := range outs {
		buf = append(buf, le64(out.value)...)
		buf = bytescan.PutVarInt(buf, uint64(len(out.script)))
		buf = append(buf, out.script...)
	}

	buf = append(buf, le32(0)...) // locktime

	return buf, Hash256(txhash.DoubleSHA256(buf))
}

// buildBlockPayload assembles an 80-byte header plus a varint tx count and
// the concatenated transaction bytes — the "block payload" of spec §6.1.
func buildBlockPayload(prevHash Hash256, txs [][]byte) []byte {
	var buf []byte
	buf = append(buf, le32(1)...)       // version
	buf = append(buf, prevHash[:]...)   // prev-block hash
	buf = append(buf, make([]byte, 32)...) // merkle root (unchecked by this engine)
	buf = append(buf, le32(0)...)       // time
	buf = append(buf, le32(0)...)       // bits
	buf = append(buf, le32(0)...)       // nonce

	buf = bytescan.PutVarInt(buf, uint64(len(txs)))
	for _, tx := range txs {
		buf = append(buf, tx...)
	}
	return buf
}

// appendRecord wraps a payload in the magic+size record framing of spec
// §6.1 and appends it to a file buffer.
func appendRecord(file []byte, payload []byte) []byte {
	file = append(file, le32(netprofile.Bitcoin.Magic)...)
	file = append(file, le32(uint32(len(payload)))...)
	file = append(file, payload...)
	return file
}

func headerHashOf(payload []byte) Hash256 {
	return Hash256(netprofile.Bitcoin.HeaderHash(payload[:80]))
}

// --- scenarios ----------------------------------------------------------

// Scenario 1: single-block chain, one coinbase tx with one output.
func TestSingleBlockChain(t *testing.T) {
	coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	payload := buildBlockPayload(NullHash, [][]byte{coinbase})

	var file []byte
	file = appendRecord(file, payload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 1)
	require.Equal(t, int64(0), cb.blocks[0].Height)
	require.Len(t, cb.outputs, 1)
	require.Equal(t, uint64(5000000000), cb.outputs[0].Value)
	require.Empty(t, cb.edges)
	require.True(t, cb.wrappedUp)
}

// Scenario 2: two-block linear chain, block 1 spends genesis output 0.
func TestTwoBlockLinearChain(t *testing.T) {
	coinbase, coinbaseHash := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	genesisPayload := buildBlockPayload(NullHash, [][]byte{coinbase})
	genesisHash := headerHashOf(genesisPayload)

	spend, _ := buildTx(
		[]txIn{{prevHash: coinbaseHash, prevIndex: 0, script: []byte("sig")}},
		[]txOut{{value: 4999990000, script: []byte{0x52}}},
	)
	childPayload := buildBlockPayload(genesisHash, [][]byte{spend})

	var file []byte
	file = appendRecord(file, genesisPayload)
	file = appendRecord(file, childPayload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 2)
	require.Equal(t, int64(0), cb.blocks[0].Height)
	require.Equal(t, int64(1), cb.blocks[1].Height)

	require.Len(t, cb.edges, 1)
	edge := cb.edges[0]
	require.Equal(t, coinbaseHash, edge.UpTXHash)
	require.Equal(t, uint32(0), edge.UpOutputIndex)
	require.Equal(t, uint64(5000000000), edge.Value)
}

// Scenario 3: out-of-order file layout — file 0 holds the child, file 1
// holds genesis. Pass 2 must re-read the parent header off disk.
func TestOutOfOrderFileLayout(t *testing.T) {
	coinbase, coinbaseHash := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	genesisPayload := buildBlockPayload(NullHash, [][]byte{coinbase})
	genesisHash := headerHashOf(genesisPayload)

	spend, _ := buildTx(
		[]txIn{{prevHash: coinbaseHash, prevIndex: 0, script: []byte("sig")}},
		[]txOut{{value: 4999990000, script: []byte{0x52}}},
	)
	childPayload := buildBlockPayload(genesisHash, [][]byte{spend})

	var file0, file1 []byte
	file0 = appendRecord(file0, childPayload)
	file1 = appendRecord(file1, genesisPayload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{
		{Name: "blk00000.dat", Data: file0},
		{Name: "blk00001.dat", Data: file1},
	})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 2)
	require.Equal(t, int64(0), cb.blocks[0].Height)
	require.Equal(t, int64(1), cb.blocks[1].Height)
	require.Len(t, cb.edges, 1)
}

// Scenario 4: orphan branch — B claims a parent never seen. Traversal
// only covers {genesis, A}.
func TestOrphanBranch(t *testing.T) {
	coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	genesisPayload := buildBlockPayload(NullHash, [][]byte{coinbase})
	genesisHash := headerHashOf(genesisPayload)

	aCoinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("a")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	aPayload := buildBlockPayload(genesisHash, [][]byte{aCoinbase})

	var unknownParent Hash256
	unknownParent[0] = 0xff
	bCoinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("b")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	bPayload := buildBlockPayload(unknownParent, [][]byte{bCoinbase})

	var file []byte
	file = appendRecord(file, genesisPayload)
	file = appendRecord(file, aPayload)
	file = appendRecord(file, bPayload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 2)
	require.Equal(t, int64(0), cb.blocks[0].Height)
	require.Equal(t, int64(1), cb.blocks[1].Height)
}

// Scenario 5: two-child fork with unequal depth. Traversal visits
// {genesis, A1, A2}, skipping B1.
func TestForkUnequalDepth(t *testing.T) {
	genesisCoinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	genesisPayload := buildBlockPayload(NullHash, [][]byte{genesisCoinbase})
	genesisHash := headerHashOf(genesisPayload)

	a1Coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("a1")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	a1Payload := buildBlockPayload(genesisHash, [][]byte{a1Coinbase})
	a1Hash := headerHashOf(a1Payload)

	b1Coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("b1")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	b1Payload := buildBlockPayload(genesisHash, [][]byte{b1Coinbase})

	a2Coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("a2")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	a2Payload := buildBlockPayload(a1Hash, [][]byte{a2Coinbase})

	var file []byte
	file = appendRecord(file, genesisPayload)
	file = appendRecord(file, a1Payload)
	file = appendRecord(file, b1Payload)
	file = appendRecord(file, a2Payload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 3)
	require.Equal(t, int64(0), cb.blocks[0].Height)
	require.Equal(t, int64(1), cb.blocks[1].Height)
	require.Equal(t, int64(2), cb.blocks[2].Height)
	require.Equal(t, int64(2), e.maxHeight)
}

// Scenario 6: trailing zero padding after the last valid record.
func TestTrailingZeroPadding(t *testing.T) {
	coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	payload := buildBlockPayload(NullHash, [][]byte{coinbase})

	var file []byte
	file = appendRecord(file, payload)
	file = append(file, make([]byte, 4096)...)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 1)
}

// The transaction hash delivered to startTX must equal a fresh
// double-SHA-256 over the exact transaction bytes (spec §8).
func TestTxHashMatchesDoubleSHA256(t *testing.T) {
	coinbase, coinbaseHash := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	payload := buildBlockPayload(NullHash, [][]byte{coinbase})

	var file []byte
	file = appendRecord(file, payload)

	cb := &recordingCallback{needHash: true}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.txHashes, 1)
	require.Equal(t, coinbaseHash, cb.txHashes[0])
}

// NeedTXHash() == false must fully disable the skim phase: startTX fires
// with the null hash and no edges are ever produced.
func TestSkipsTxHashingWhenNotNeeded(t *testing.T) {
	coinbase, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0xffffffff, script: []byte("genesis")}},
		[]txOut{{value: 5000000000, script: []byte{0x51}}},
	)
	genesisPayload := buildBlockPayload(NullHash, [][]byte{coinbase})
	genesisHash := headerHashOf(genesisPayload)

	spend, _ := buildTx(
		[]txIn{{prevHash: NullHash, prevIndex: 0, script: []byte("sig")}},
		[]txOut{{value: 4999990000, script: []byte{0x52}}},
	)
	childPayload := buildBlockPayload(genesisHash, [][]byte{spend})

	var file []byte
	file = appendRecord(file, genesisPayload)
	file = appendRecord(file, childPayload)

	cb := &recordingCallback{needHash: false}
	e := New(&netprofile.Bitcoin, cb, []File{{Name: "blk00000.dat", Data: file}})
	require.NoError(t, e.Run())

	require.Len(t, cb.blocks, 2)
	require.Empty(t, cb.edges)
	for _, h := range cb.txHashes {
		require.Equal(t, NullHash, h)
	}
}
