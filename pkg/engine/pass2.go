package engine

import "github.com/rs/zerolog/log"

// pass2LinkAllBlocks reconstructs the child→parent tree and assigns every
// reachable block a height (spec §4.4).
//
// The original source walks upward pushing provisional "next" pointers as
// scratch state, then walks back down reassigning heights — but stops one
// node short of the block it started from, relying on that block later
// being visited as an *intermediate* step of some deeper descendant's
// walk. A block with no descendant at all (the eventual tip, or the only
// block in a single-block chain) is never anyone's intermediate step, so
// that scheme never assigns it a height. This rewrite collects the full
// unresolved path — including the starting block — into a slice and
// assigns heights to every entry in one pass, which needs no scratch
// pointers and has no such gap.
//
// The null sentinel's height (0) is reused, not incremented, for its
// immediate child: genesis is height 0, not 1. Every other anchor's
// height is incremented normally for its child. This matches the
// worked examples in spec §8 (a single coinbase block is height 0) while
// keeping the sentinel's own height field at 0 as spec §4.4 states.
func (e *Engine) pass2LinkAllBlocks() {
	for hash, idx := range e.blockIndex {
		if hash == NullHash {
			continue
		}
		e.linkBlock(idx)
	}
}

func (e *Engine) linkBlock(start blockIndex) {
	if e.blocks.get(start).height >= 0 {
		return
	}

	var path []blockIndex
	cur := start
	for {
		rec := e.blocks.get(cur)
		if rec.height >= 0 {
			break
		}
		if rec.prev == noIndex {
			if !e.resolveParentOnDisk(rec) {
				log.Warn().Str("hash", hexHash(rec.headerHash)).Msg("failed to locate parent block, leaving branch orphaned")
				return
			}
		}
		path = append(path, cur)
		cur = rec.prev
	}

	anchor := e.blocks.get(cur)
	h := anchor.height
	if cur != e.nullIdx {
		h++
	}

	for i := len(path) - 1; i >= 0; i-- {
		idx := path[i]
		rec := e.blocks.get(idx)
		rec.height = h
		if h > e.maxHeight {
			e.maxHeight = h
			e.tipIdx = idx
		}
		h++
	}
}

// resolveParentOnDisk re-reads a block's 36-byte version+prev-hash prefix
// directly from its mapped file and looks the parent up in the block
// index, for parents that were discovered out of order in pass 1 (spec
// §4.4 step 2; scenario 3 in §8).
func (e *Engine) resolveParentOnDisk(rec *blockRecord) bool {
	buf := e.files[rec.fileID].Data
	start := rec.offset
	if start < 0 || start+36 > int64(len(buf)) {
		log.Warn().Msg("failed to re-read block header while linking: out of range")
		return false
	}
	data := buf[start : start+36]
	var prevHash Hash256
	copy(prevHash[:], data[4:36])

	if idx, ok := e.blockIndex[prevHash]; ok {
		rec.prev = idx
		return true
	}
	return false
}

func hexHash(h Hash256) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, 64)
	for i, b := range h {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0xf]
	}
	return string(buf)
}
