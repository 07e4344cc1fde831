package engine

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"blocklens/pkg/blkerr"
	"blocklens/pkg/netprofile"
)

// txPointer locates a transaction's outputs region: the byte position,
// within one mapped block file, at which the region begins. Using a
// (fileID, offset) pair instead of a raw pointer keeps the index safe
// across Go's GC while the underlying file stays mmap'd (spec §3's
// TxOutputsPointer, adapted per SPEC_FULL.md §3).
type txPointer struct {
	fileID int
	offset int
}

// Engine is the single value holding every piece of state the original
// source kept in process-wide globals: the callback, the null/tip
// records, and both hash-keyed indexes (Design Note §9).
type Engine struct {
	profile  *netprofile.Profile
	callback Callback

	files []File

	blocks pool

	blockIndex map[Hash256]blockIndex
	nullIdx    blockIndex
	maxHeight  int64
	tipIdx     blockIndex

	needTXHash bool
	txIndex    map[Hash256]txPointer
}

// New constructs an engine for the given network profile, callback, and
// already-mapped block files. Chain-wide byte totals across every file
// are used to pre-size both hash indexes before pass 1 runs (spec §5).
func New(profile *netprofile.Profile, cb Callback, files []File) *Engine {
	var chainBytes uint64
	for _, f := range files {
		chainBytes += uint64(len(f.Data))
	}

	e := &Engine{
		profile:    profile,
		callback:   cb,
		files:      files,
		blockIndex: make(map[Hash256]blockIndex, presizeBlockIndex(chainBytes)),
		needTXHash: cb.NeedTXHash(),
		txIndex:    make(map[Hash256]txPointer, presizeTxIndex(chainBytes)),
		tipIdx:     noIndex,
	}

	e.nullIdx = e.blocks.alloc()
	null := e.blocks.get(e.nullIdx)
	null.headerHash = NullHash
	null.height = 0
	null.prev = noIndex
	null.next = noIndex
	e.blockIndex[NullHash] = e.nullIdx
	e.maxHeight = -1
	e.tipIdx = e.nullIdx

	return e
}

// Run drives all four passes in sequence and delivers the callback's
// lifecycle events, then calls Wrapup.
func (e *Engine) Run() error {
	log.Info().Msg("pass 1 -- walk all blocks and build headers")
	nbBlocks, err := e.pass1BuildHeaders()
	if err != nil {
		return err
	}
	if nbBlocks == 0 {
		return fmt.Errorf("%w: found no blocks", blkerr.ErrUser)
	}
	log.Info().Int("blocks", nbBlocks).Msg("pass 1 -- done")

	log.Info().Msg("pass 2 -- link all blocks")
	e.pass2LinkAllBlocks()
	log.Info().Int64("max_height", e.maxHeight).Msg("pass 2 -- done")

	log.Info().Msg("pass 3 -- wire longest chain")
	e.pass3WireLongestChain()
	log.Info().Msg("pass 3 -- done")

	e.callback.StartLC()
	log.Info().Msg("pass 4 -- full blockchain analysis")
	if err := e.pass4Traverse(); err != nil {
		return err
	}
	log.Info().Msg("pass 4 -- done")

	return e.callback.Wrapup()
}

func (e *Engine) blockRef(i blockIndex) BlockRef {
	b := e.blocks.get(i)
	if b == nil {
		return BlockRef{}
	}
	return BlockRef{
		Hash:   b.headerHash,
		Height: b.height,
		FileID: b.fileID,
		Offset: b.offset,
		Size:   b.size,
	}
}
