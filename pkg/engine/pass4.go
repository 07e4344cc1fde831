package engine

import (
	"fmt"

	"blocklens/pkg/blkerr"
	"blocklens/pkg/bytescan"
	"blocklens/pkg/txhash"
)

// pass4Traverse walks the main chain in height order, re-parsing every
// transaction and resolving each spending input against the tx-output
// index built along the way (spec §4.6).
func (e *Engine) pass4Traverse() error {
	firstIdx := e.blocks.get(e.nullIdx).next
	e.callback.Start(e.blockRef(firstIdx), e.blockRef(e.tipIdx))

	chainSize := uint64(e.maxHeight + 1)

	curIdx := firstIdx
	curFile := -1
	for curIdx != noIndex {
		rec := e.blocks.get(curIdx)

		if rec.fileID != curFile {
			if curFile != -1 {
				e.callback.EndMap(int64(len(e.files[curFile].Data)))
			}
			e.callback.StartMap(0)
			curFile = rec.fileID
		}

		ref := e.blockRef(curIdx)
		e.callback.StartBlock(ref, chainSize)

		if err := e.traverseBlockBody(rec); err != nil {
			return err
		}

		e.callback.EndBlock(ref)
		curIdx = rec.next
	}

	if curFile != -1 {
		e.callback.EndMap(int64(len(e.files[curFile].Data)))
	}

	return nil
}

// traverseBlockBody skips the (network-extended) 80-byte header and parses
// every transaction in serialized order.
func (e *Engine) traverseBlockBody(rec *blockRecord) error {
	f := e.files[rec.fileID]
	start := int(rec.offset)
	end := start + int(rec.size)
	if start < 0 || end > len(f.Data) {
		return blkerr.NewFatal(f.Name, rec.offset, errShortPayload)
	}
	body := f.Data[start:end]
	r := bytescan.New(body)

	headerSkip := 80 + e.profile.ExtraHeaderBytes
	if err := r.Skip(headerSkip); err != nil {
		return blkerr.NewFatal(f.Name, rec.offset, r.Truncated(err))
	}

	nbTX, err := r.VarInt()
	if err != nil {
		return blkerr.NewFatal(f.Name, rec.offset+int64(r.Pos()), r.Truncated(err))
	}

	for i := uint64(0); i < nbTX; i++ {
		if err := e.parseTransaction(r, rec.fileID, start); err != nil {
			return blkerr.NewFatal(f.Name, rec.offset+int64(r.Pos()), err)
		}
	}

	return nil
}

// parseTransaction implements the two-phase parser (spec §4.6 "Transaction
// parsing — two-phase"). When the active callback needs transaction
// hashes, the transaction is first skimmed (no events, no index writes)
// solely to find its end offset, hashed, then re-parsed from the start
// with full event emission.
func (e *Engine) parseTransaction(r *bytescan.Reader, fileID, blockStart int) error {
	var txHash Hash256

	if e.needTXHash {
		skimStart := r.Pos()
		if err := skipTransaction(r); err != nil {
			return r.Truncated(err)
		}
		skimEnd := r.Pos()
		txHash = Hash256(txhash.DoubleSHA256(r.Bytes()[skimStart:skimEnd]))
		r.Seek(skimStart)
	}

	txStart := blockStart + r.Pos()
	e.callback.StartTX(txStart, txHash)

	if err := r.Skip(4); err != nil { // version
		return r.Truncated(err)
	}

	if err := e.parseInputs(r, fileID, blockStart, txHash); err != nil {
		return err
	}

	if e.needTXHash {
		e.txIndex[txHash] = txPointer{fileID: fileID, offset: blockStart + r.Pos()}
	}

	if err := e.parseOutputsSelf(r, blockStart, txHash); err != nil {
		return err
	}

	if err := r.Skip(4); err != nil { // locktime
		return r.Truncated(err)
	}

	e.callback.EndTX(blockStart + r.Pos())
	return nil
}

// skipTransaction advances r past one serialized transaction without
// emitting any events or touching the tx index, returning only the new
// cursor position (via r itself).
func skipTransaction(r *bytescan.Reader) error {
	if err := r.Skip(4); err != nil { // version
		return err
	}
	nbIn, err := r.VarInt()
	if err != nil {
		return err
	}
	for i := uint64(0); i < nbIn; i++ {
		if err := r.Skip(36); err != nil { // prev-tx-hash + prev-output-index
			return err
		}
		scriptLen, err := r.VarInt()
		if err != nil {
			return err
		}
		if err := r.Skip(int(scriptLen)); err != nil {
			return err
		}
		if err := r.Skip(4); err != nil { // sequence
			return err
		}
	}
	nbOut, err := r.VarInt()
	if err != nil {
		return err
	}
	for i := uint64(0); i < nbOut; i++ {
		if err := r.Skip(8); err != nil { // value
			return err
		}
		scriptLen, err := r.VarInt()
		if err != nil {
			return err
		}
		if err := r.Skip(int(scriptLen)); err != nil {
			return err
		}
	}
	return r.Skip(4) // locktime
}

func (e *Engine) parseInputs(r *bytescan.Reader, fileID, blockStart int, downTxHash Hash256) error {
	pos := blockStart + r.Pos()
	nbIn, err := r.VarInt()
	if err != nil {
		return r.Truncated(err)
	}

	e.callback.StartInputs(pos)
	for i := uint64(0); i < nbIn; i++ {
		if err := e.parseInput(r, fileID, blockStart, downTxHash, uint32(i)); err != nil {
			return err
		}
	}
	e.callback.EndInputs(blockStart + r.Pos())
	return nil
}

func (e *Engine) parseInput(r *bytescan.Reader, fileID, blockStart int, downTxHash Hash256, inputIdx uint32) error {
	startPos := blockStart + r.Pos()
	e.callback.StartInput(startPos)

	upHashBytes, err := r.Hash256()
	if err != nil {
		return r.Truncated(err)
	}
	upHash := Hash256(upHashBytes)

	outIdx, err := r.U32()
	if err != nil {
		return r.Truncated(err)
	}

	scriptLen, err := r.VarInt()
	if err != nil {
		return r.Truncated(err)
	}
	script, err := r.Slice(int(scriptLen))
	if err != nil {
		return r.Truncated(err)
	}

	if err := r.Skip(4); err != nil { // sequence
		return r.Truncated(err)
	}

	if e.needTXHash && upHash != NullHash {
		ptr, ok := e.txIndex[upHash]
		if !ok {
			return fmt.Errorf("%w: input %d of tx %x references output of unseen tx %x", errUpstreamTXMiss, inputIdx, downTxHash, upHash)
		}
		if err := e.emitEdge(ptr, upHash, outIdx, downTxHash, inputIdx, script); err != nil {
			return err
		}
	}

	e.callback.EndInput(blockStart + r.Pos())
	return nil
}

// emitEdge re-enters the outputs parser on the upstream transaction's
// outputs region, in full-context mode, to join the spent output with the
// spending input (spec §4.6 "Inputs" step 4).
func (e *Engine) emitEdge(ptr txPointer, upHash Hash256, outIdx uint32, downTxHash Hash256, inputIdx uint32, downScript []byte) error {
	data := e.files[ptr.fileID].Data
	if ptr.offset < 0 || ptr.offset > len(data) {
		return fmt.Errorf("%w: tx-index pointer for %x out of range", errUpstreamTXMiss, upHash)
	}
	r := bytescan.New(data)
	r.Seek(ptr.offset)
	return e.parseOutputsFullContext(r, upHash, outIdx, downTxHash, inputIdx, downScript)
}

func (e *Engine) parseOutputsSelf(r *bytescan.Reader, blockStart int, txHash Hash256) error {
	pos := blockStart + r.Pos()
	nbOut, err := r.VarInt()
	if err != nil {
		return r.Truncated(err)
	}

	e.callback.StartOutputs(pos)
	for i := uint64(0); i < nbOut; i++ {
		if err := e.parseOutputSelf(r, blockStart, txHash, uint32(i)); err != nil {
			return err
		}
	}
	e.callback.EndOutputs(blockStart + r.Pos())
	return nil
}

func (e *Engine) parseOutputSelf(r *bytescan.Reader, blockStart int, txHash Hash256, idx uint32) error {
	pos := blockStart + r.Pos()
	e.callback.StartOutput(pos)

	value, err := r.U64()
	if err != nil {
		return r.Truncated(err)
	}
	scriptLen, err := r.VarInt()
	if err != nil {
		return r.Truncated(err)
	}
	script, err := r.Slice(int(scriptLen))
	if err != nil {
		return r.Truncated(err)
	}

	e.callback.EndOutput(blockStart+r.Pos(), value, txHash, idx, script)
	return nil
}

// parseOutputsFullContext iterates an upstream transaction's outputs
// silently, emitting exactly one Edge event when it reaches stopAt, with
// no startOutputs/endOutputs bracket (spec §4.6 "Outputs", full-context
// mode).
func (e *Engine) parseOutputsFullContext(r *bytescan.Reader, upHash Hash256, stopAt uint32, downTxHash Hash256, downInputIdx uint32, downScript []byte) error {
	nbOut, err := r.VarInt()
	if err != nil {
		return r.Truncated(err)
	}

	for i := uint64(0); i < nbOut; i++ {
		value, err := r.U64()
		if err != nil {
			return r.Truncated(err)
		}
		scriptLen, err := r.VarInt()
		if err != nil {
			return r.Truncated(err)
		}
		script, err := r.Slice(int(scriptLen))
		if err != nil {
			return r.Truncated(err)
		}

		if uint32(i) == stopAt {
			e.callback.Edge(Edge{
				Value:           value,
				UpTXHash:        upHash,
				UpOutputIndex:   stopAt,
				UpOutputScript:  script,
				DownTXHash:      downTxHash,
				DownInputIndex:  downInputIdx,
				DownInputScript: downScript,
			})
			return nil
		}
	}

	return fmt.Errorf("%w: output index %d out of range for tx %x", errUpstreamTXMiss, stopAt, upHash)
}
