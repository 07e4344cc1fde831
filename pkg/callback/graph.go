package callback

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"blocklens/pkg/engine"
)

func init() {
	Register("graph", func() engine.Callback { return &Graph{} })
}

// Graph streams every spend edge to a CSV file, one row per edge. It never
// holds the chain in memory — each row is handed to a buffered csv.Writer
// as its edge arrives (the buffer is written out as it fills and flushed
// once more at Wrapup), which keeps Pass 4's streaming guarantee intact for a
// callback that needs every edge (the teacher's own output convention was
// one JSON file per unit of work; this generalizes it to one row per
// streamed event instead of one file per one-shot fixture).
type Graph struct {
	Base

	path   string
	file   *os.File
	writer *csv.Writer
}

func (*Graph) Name() string       { return "graph" }
func (*Graph) NeedTXHash() bool   { return true }

func (g *Graph) Init(args []string) error {
	g.path = "edges.csv"
	if len(args) > 0 {
		g.path = args[0]
	}

	f, err := os.Create(g.path)
	if err != nil {
		return fmt.Errorf("graph: failed to create %s: %w", g.path, err)
	}
	g.file = f
	g.writer = csv.NewWriter(f)
	return g.writer.Write([]string{"up_tx", "up_output_index", "up_script_hex", "down_tx", "down_input_index", "down_script_hex", "value_sats"})
}

func (g *Graph) Edge(e engine.Edge) {
	row := []string{
		hex.EncodeToString(e.UpTXHash[:]),
		strconv.FormatUint(uint64(e.UpOutputIndex), 10),
		hex.EncodeToString(e.UpOutputScript),
		hex.EncodeToString(e.DownTXHash[:]),
		strconv.FormatUint(uint64(e.DownInputIndex), 10),
		hex.EncodeToString(e.DownInputScript),
		strconv.FormatUint(e.Value, 10),
	}
	if err := g.writer.Write(row); err != nil {
		log.Warn().Err(err).Msg("graph: failed to write edge row")
	}
}

func (g *Graph) Wrapup() error {
	g.writer.Flush()
	err := g.writer.Error()
	if cerr := g.file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("graph: failed to finalize %s: %w", g.path, err)
	}
	log.Info().Str("file", g.path).Msg("graph: wrote edge csv")
	return nil
}
