package callback

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"blocklens/pkg/analyzer"
	"blocklens/pkg/engine"
)

func init() {
	Register("balances", func() engine.Callback { return &Balances{} })
}

const balancesCacheSize = 1 << 20

// Balances tracks a running satoshi balance per address, crediting on
// every output and debiting on every resolved spend. Address derivation
// reuses pkg/analyzer.GetAddressFromScript verbatim — it is fed one
// script at a time here instead of one fixture's Vout slice, but the
// algorithm is unchanged. A bounded LRU (the same shape of size-capped
// cache go-ethereum's tracked-account set uses) holds the hot balances;
// an evicted address has its balance added to the in-memory spilled map
// so no balance is lost, only its place in the hot cache. The spilled map
// is not bounded, so memory still grows with the number of distinct
// addresses. Nothing is written to the output file before Wrapup.
type Balances struct {
	Base

	network string
	path    string
	cache   *lru.Cache[string, int64]
	spilled map[string]int64
}

func (*Balances) Name() string     { return "balances" }
func (*Balances) NeedTXHash() bool { return true }

func (b *Balances) Init(args []string) error {
	b.network = "mainnet"
	b.path = "balances.txt"
	if len(args) > 0 {
		b.path = args[0]
	}
	if len(args) > 1 {
		b.network = args[1]
	}
	b.spilled = make(map[string]int64)

	cache, err := lru.NewWithEvict[string, int64](balancesCacheSize, b.onEvict)
	if err != nil {
		return fmt.Errorf("balances: failed to size cache: %w", err)
	}
	b.cache = cache
	return nil
}

func (b *Balances) onEvict(address string, value int64) {
	b.spilled[address] += value
}

func (b *Balances) adjust(script []byte, delta int64) {
	addr := analyzer.GetAddressFromScript(script, b.network)
	if addr == nil {
		return
	}
	cur, _ := b.cache.Get(*addr)
	b.cache.Add(*addr, cur+delta)
}

func (b *Balances) EndOutput(pos int, value uint64, txHash engine.Hash256, outputIndex uint32, script []byte) {
	b.adjust(script, int64(value))
}

func (b *Balances) Edge(e engine.Edge) {
	b.adjust(e.UpOutputScript, -int64(e.Value))
}

func (b *Balances) Wrapup() error {
	for _, addr := range b.cache.Keys() {
		v, _ := b.cache.Peek(addr)
		b.spilled[addr] += v
	}

	log.Info().Int("addresses", len(b.spilled)).Str("file", b.path).Msg("balances: writing summary")
	return writeBalances(b.path, b.spilled)
}
