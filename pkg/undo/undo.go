// Package undo decodes Bitcoin Core's undo (rev*.dat) files: the
// per-block record of every output a block's transactions spent, kept so
// a reorg can restore the UTXO set. The reconcile callback cross-checks
// these against the engine's own resolved edges. Adapted from the
// teacher's pkg/parser.parseUndoFile/readUndoPrevout, which decoded undo
// data to recover prevouts for a single fixture-mode block; here the same
// decode loop is parameterized so it can scan an arbitrary undo file
// independently of any particular block's already-parsed transactions.
package undo

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"

	btcec "github.com/btcsuite/btcd/btcec/v2"

	"blocklens/pkg/utils"
)

// Prevout is one spent output recovered from an undo record: the
// historical value and scriptPubKey Bitcoin Core restores on reorg.
type Prevout struct {
	ValueSats       int64
	ScriptPubkeyHex string
}

// BlockUndo is one block's worth of undo data: one []Prevout per
// non-coinbase transaction, one Prevout per input of that transaction, in
// serialized order.
type BlockUndo struct {
	TxCount  uint64
	Prevouts [][]Prevout
}

// ReadNext scans r, starting at its current position, for the next undo
// record whose transaction-undo count equals wantTxCount, skipping any
// mismatched records along the way. The rev*.dat numbering matches
// blk*.dat, but the first undo record in rev_N.dat may belong to the last
// block written to blk_(N-1).dat, which is why a linear skip-and-match
// pass is needed rather than a single direct read (ported from the
// teacher's parser.parseUndoFile, which located records the same way
// keyed off its already-parsed transaction count). On success r is left at
// the start of the following record, past the matched record's trailing hash.
func ReadNext(r io.ReadSeeker, wantTxCount uint64) (*BlockUndo, error) {
	for {
		recordStart, err := r.Seek(0, io.SeekCurrent)
		if err != nil {
			return nil, fmt.Errorf("undo: seek error: %w", err)
		}

		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err // io.EOF signals end of file to the caller
		}
		undoSize := binary.LittleEndian.Uint32(header[4:8])

		txCount, err := utils.ReadCompactSize(r)
		if err != nil {
			return nil, fmt.Errorf("undo: failed to read tx undo count: %w", err)
		}

		if txCount != wantTxCount {
			next := recordStart + 8 + int64(undoSize) + 32 // header + body + trailing hash
			if _, err := r.Seek(next, io.SeekStart); err != nil {
				return nil, fmt.Errorf("undo: failed to skip mismatched record: %w", err)
			}
			continue
		}

		prevouts := make([][]Prevout, 0, txCount)
		for i := uint64(0); i < txCount; i++ {
			inputCount, err := utils.ReadCompactSize(r)
			if err != nil {
				return nil, fmt.Errorf("undo: tx %d: failed to read input count: %w", i, err)
			}
			txPrevouts := make([]Prevout, 0, inputCount)
			for j := uint64(0); j < inputCount; j++ {
				p, err := readPrevout(r)
				if err != nil {
					return nil, fmt.Errorf("undo: tx %d input %d: %w", i, j, err)
				}
				txPrevouts = append(txPrevouts, p)
			}
			prevouts = append(prevouts, txPrevouts)
		}

		next := recordStart + 8 + int64(undoSize) + 32 // header + body + trailing hash
		if _, err := r.Seek(next, io.SeekStart); err != nil {
			return nil, fmt.Errorf("undo: failed to skip record hash: %w", err)
		}

		return &BlockUndo{TxCount: txCount, Prevouts: prevouts}, nil
	}
}

// readPrevout decodes one Bitcoin Core Coin entry: nCode, an optional
// backward-compat version byte, the compressed amount, and the
// type-compressed script (see Bitcoin Core's undo.h TxInUndoFormatter).
func readPrevout(r io.Reader) (Prevout, error) {
	nCode, err := utils.ReadBitcoinVarInt(r)
	if err != nil {
		return Prevout{}, fmt.Errorf("nCode: %w", err)
	}
	nHeight := nCode >> 1

	if nHeight > 0 {
		if _, err := utils.ReadBitcoinVarInt(r); err != nil {
			return Prevout{}, fmt.Errorf("version dummy: %w", err)
		}
	}

	compressedAmount, err := utils.ReadBitcoinVarInt(r)
	if err != nil {
		return Prevout{}, fmt.Errorf("amount: %w", err)
	}
	valueSats := utils.DecompressAmount(compressedAmount)

	nSize, err := utils.ReadBitcoinVarInt(r)
	if err != nil {
		return Prevout{}, fmt.Errorf("nSize: %w", err)
	}

	var script []byte
	switch nSize {
	case 0: // P2PKH
		hash := make([]byte, 20)
		if _, err := io.ReadFull(r, hash); err != nil {
			return Prevout{}, fmt.Errorf("p2pkh hash: %w", err)
		}
		script = append([]byte{0x76, 0xa9, 0x14}, hash...)
		script = append(script, 0x88, 0xac)

	case 1: // P2SH
		hash := make([]byte, 20)
		if _, err := io.ReadFull(r, hash); err != nil {
			return Prevout{}, fmt.Errorf("p2sh hash: %w", err)
		}
		script = append([]byte{0xa9, 0x14}, hash...)
		script = append(script, 0x87)

	case 2, 3: // compressed P2PK
		key := make([]byte, 33)
		key[0] = byte(nSize)
		if _, err := io.ReadFull(r, key[1:]); err != nil {
			return Prevout{}, fmt.Errorf("p2pk compressed: %w", err)
		}
		script = append([]byte{0x21}, key...)
		script = append(script, 0xac)

	case 4, 5: // uncompressed P2PK, stored as x-coordinate only
		xcoord := make([]byte, 32)
		if _, err := io.ReadFull(r, xcoord); err != nil {
			return Prevout{}, fmt.Errorf("p2pk uncompressed: %w", err)
		}
		compressedKey := append([]byte{byte(nSize - 2)}, xcoord...)
		pubKey, err := btcec.ParsePubKey(compressedKey)
		if err != nil {
			script = append([]byte{0x21}, compressedKey...)
			script = append(script, 0xac)
		} else {
			uncompressed := pubKey.SerializeUncompressed()
			script = append([]byte{0x41}, uncompressed...)
			script = append(script, 0xac)
		}

	default: // raw script, length = nSize - 6
		scriptLen := nSize - 6
		script = make([]byte, scriptLen)
		if _, err := io.ReadFull(r, script); err != nil {
			return Prevout{}, fmt.Errorf("raw script (len=%d): %w", scriptLen, err)
		}
	}

	return Prevout{ValueSats: valueSats, ScriptPubkeyHex: hex.EncodeToString(script)}, nil
}
