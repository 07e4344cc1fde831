package engine

// Empirical ratios lifted from the original source's initHashtables():
// txPerBytes and blocksPerBytes were measured against a real chain
// snapshot of 1,713,189,944 bytes containing 3,976,774 transactions and
// 184,284 blocks. Multiplying by a 1.5x safety factor avoids rehash
// storms mid-Pass-4 on a mature chain with hundreds of millions of
// entries. Design Note §9: "Preserve these constants; degrading them
// would cause rehash storms mid-Pass-4."
const (
	txPerByteRatio     = 3976774.0 / 1713189944.0
	blocksPerByteRatio = 184284.0 / 1713189944.0
	presizeSafetyFactor = 1.5
)

// presizeTxIndex returns the initial bucket count for the tx-output index,
// derived from the total on-disk chain byte count.
func presizeTxIndex(chainBytes uint64) int {
	return int(presizeSafetyFactor * txPerByteRatio * float64(chainBytes))
}

// presizeBlockIndex returns the initial bucket count for the block index.
func presizeBlockIndex(chainBytes uint64) int {
	return int(presizeSafetyFactor * blocksPerByteRatio * float64(chainBytes))
}
