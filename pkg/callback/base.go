// Package callback holds the concrete analysis callbacks (spec §6.3) and
// the name→constructor registry that selects one of them at startup.
package callback

import "blocklens/pkg/engine"

// Base implements every engine.Callback method as a no-op. Concrete
// callbacks embed it and override only the events they care about, the
// same way a server embeds an Unimplemented*Server to stay forward
// compatible with an interface it only partially cares about.
type Base struct{}

func (Base) Name() string            { return "base" }
func (Base) Init(args []string) error { return nil }
func (Base) NeedTXHash() bool        { return false }
func (Base) StartLC()                {}
func (Base) Start(first, tip engine.BlockRef) {}
func (Base) StartMap(fileOffset int64) {}
func (Base) EndMap(fileOffset int64)   {}
func (Base) StartBlock(b engine.BlockRef, chainSize uint64) {}
func (Base) EndBlock(b engine.BlockRef)                     {}
func (Base) StartTX(pos int, hash engine.Hash256) {}
func (Base) EndTX(pos int)                        {}
func (Base) StartInputs(pos int) {}
func (Base) EndInputs(pos int)   {}
func (Base) StartInput(pos int)  {}
func (Base) EndInput(pos int)    {}
func (Base) StartOutputs(pos int) {}
func (Base) EndOutputs(pos int)   {}
func (Base) StartOutput(pos int)  {}
func (Base) EndOutput(pos int, value uint64, txHash engine.Hash256, outputIndex uint32, script []byte) {
}
func (Base) Edge(e engine.Edge)  {}
func (Base) Wrapup() error { return nil }

var _ engine.Callback = Base{}
