package engine

// Callback is the analysis boundary (spec §6.3): it decides what to
// compute from the parsed chain, the engine decides how to deliver it.
// Event methods are called in a deterministic order — block-index
// ascending, transactions in serialized order within a block, all input
// events preceding all output events within a transaction.
type Callback interface {
	Name() string
	Init(args []string) error

	// NeedTXHash tells the engine whether to run the skim phase at all.
	// A callback that never inspects tx_hash or edges can skip it and
	// save a full second parse of every transaction.
	NeedTXHash() bool

	StartLC()
	Start(first, tip BlockRef)
	StartMap(fileOffset int64)
	EndMap(fileOffset int64)

	StartBlock(b BlockRef, chainSize uint64)
	EndBlock(b BlockRef)

	StartTX(pos int, hash Hash256)
	EndTX(pos int)

	StartInputs(pos int)
	EndInputs(pos int)
	StartInput(pos int)
	EndInput(pos int)

	StartOutputs(pos int)
	EndOutputs(pos int)
	StartOutput(pos int)
	EndOutput(pos int, value uint64, txHash Hash256, outputIndex uint32, script []byte)

	Edge(e Edge)

	Wrapup() error
}
