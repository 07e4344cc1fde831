package callback

import (
	"bytes"
	"fmt"

	"github.com/rs/zerolog/log"

	"blocklens/pkg/engine"
	"blocklens/pkg/undo"
)

func init() {
	Register("reconcile", func() engine.Callback { return &Reconcile{} })
}

// Reconcile independently decodes the rev*.dat undo files alongside the
// block files being walked and cross-checks every block's resolved edges
// against the matching undo-record prevouts: the engine derives an
// output's value and script by re-parsing the upstream transaction from
// its recorded txPointer, while the undo file carries Bitcoin Core's own
// record of what it spent, so the two should always agree. A mismatch is
// either a bug in pass 4's input resolution or a genuinely corrupt/foreign
// data directory — either way worth surfacing.
//
// Edges accumulate for the whole block and are compared once EndBlock
// fires, because the undo record's own framing (per pkg/undo.ReadNext,
// adapted from the teacher's parseUndoFile) needs the block's final
// non-coinbase transaction count to locate the right record — a count
// this callback only knows once the block has been fully walked. Within
// a block the flattened edge sequence and the flattened undo-prevout
// sequence are both in strict transaction/input serialization order
// (coinbase inputs produce neither), so they line up position for
// position without needing to track transaction boundaries explicitly.
type Reconcile struct {
	Base

	dataDir string
	readers map[int]*bytes.Reader

	blockEdges []engine.Edge
	txIndex    int    // 0-based position of the current tx within this block
	nonCBTxs   uint64 // transactions seen in this block, minus the coinbase

	checked   int
	mismatch  int
	unmatched int
}

func (*Reconcile) Name() string     { return "reconcile" }
func (*Reconcile) NeedTXHash() bool { return true }

func (r *Reconcile) Init(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("reconcile: requires a data directory argument")
	}
	r.dataDir = args[0]

	files, err := undo.Locate(r.dataDir)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	r.readers = make(map[int]*bytes.Reader, len(files))
	for id, data := range files {
		r.readers[id] = bytes.NewReader(data)
	}
	return nil
}

func (r *Reconcile) StartBlock(b engine.BlockRef, chainSize uint64) {
	r.blockEdges = r.blockEdges[:0]
	r.txIndex = -1
	r.nonCBTxs = 0
}

// StartTX's pos argument is the transaction's absolute byte offset into
// the block file, not its position within the block, so a real per-block
// counter is tracked here to tell the coinbase (always first) apart from
// every other transaction.
func (r *Reconcile) StartTX(pos int, hash engine.Hash256) {
	r.txIndex++
	if r.txIndex > 0 {
		r.nonCBTxs++
	}
}

func (r *Reconcile) Edge(e engine.Edge) {
	r.blockEdges = append(r.blockEdges, e)
}

func (r *Reconcile) EndBlock(b engine.BlockRef) {
	reader, ok := r.readers[b.FileID]
	if !ok {
		log.Warn().Int("file_id", b.FileID).Msg("reconcile: no undo file discovered for this block's file")
		r.unmatched += len(r.blockEdges)
		return
	}

	blockUndo, err := undo.ReadNext(reader, r.nonCBTxs)
	if err != nil {
		log.Warn().Err(err).Int64("height", b.Height).Msg("reconcile: failed to read matching undo record")
		r.unmatched += len(r.blockEdges)
		return
	}

	var flat []undo.Prevout
	for _, tx := range blockUndo.Prevouts {
		flat = append(flat, tx...)
	}

	if len(flat) != len(r.blockEdges) {
		log.Warn().
			Int64("height", b.Height).
			Int("undo_prevouts", len(flat)).
			Int("resolved_edges", len(r.blockEdges)).
			Msg("reconcile: prevout/edge count mismatch for block")
		r.unmatched += abs(len(flat) - len(r.blockEdges))
	}

	n := len(flat)
	if len(r.blockEdges) < n {
		n = len(r.blockEdges)
	}
	for i := 0; i < n; i++ {
		want := flat[i]
		got := r.blockEdges[i]
		r.checked++

		gotScript := fmt.Sprintf("%x", got.UpOutputScript)
		if want.ScriptPubkeyHex != gotScript || want.ValueSats != int64(got.Value) {
			r.mismatch++
			log.Warn().
				Int64("height", b.Height).
				Str("down_tx", fmt.Sprintf("%x", got.DownTXHash[:])).
				Uint32("down_input", got.DownInputIndex).
				Int64("undo_value_sats", want.ValueSats).
				Uint64("edge_value_sats", got.Value).
				Str("undo_script", want.ScriptPubkeyHex).
				Str("edge_script", gotScript).
				Msg("reconcile: undo-file mismatch")
		}
	}
}

func (r *Reconcile) Wrapup() error {
	log.Info().
		Int("checked", r.checked).
		Int("mismatches", r.mismatch).
		Int("unmatched", r.unmatched).
		Msg("reconcile: summary")
	if r.mismatch > 0 {
		return fmt.Errorf("reconcile: %d edge(s) disagreed with undo-file data", r.mismatch)
	}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
