// Command blocklensd runs the four-pass engine against a node's data
// directory under the dump callback and exposes the result over HTTP:
// current-pass progress and per-block lookup by hash. It is the direct
// descendant of cmd/web's React-serving analyze endpoint, rebuilt around
// the streaming engine instead of one-fixture-at-a-time parsing.
package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"blocklens/pkg/blkerr"
	"blocklens/pkg/blockfile"
	"blocklens/pkg/callback"
	"blocklens/pkg/config"
	"blocklens/pkg/engine"
	"blocklens/pkg/netprofile"
	"blocklens/pkg/types"
	"blocklens/pkg/utils"
)

// progress is the shared, concurrency-safe snapshot /api/progress reads.
// Height/chainSize are plain int64s under atomic access rather than a
// mutex-guarded struct, since both are only ever replaced wholesale.
type progress struct {
	pass      atomic.Int32 // 0 = not started, 1 = passes 1-3, 4 = pass 4, 5 = done
	height    atomic.Int64
	offset    atomic.Int64
	chainSize atomic.Int64
}

func (p *progress) snapshot() gin.H {
	chainSize := p.chainSize.Load()
	pct := 0.0
	if chainSize > 0 {
		pct = float64(p.height.Load()+1) / float64(chainSize) * 100
	}
	return gin.H{
		"pass":       p.pass.Load(),
		"height":     p.height.Load(),
		"pct":        pct,
		"chain_size": chainSize,
	}
}

// blockIndex maps a block's hash (big-endian display form, as recorded in
// the dump callback's JSON output) to the height it was written under, so
// /api/block/:hash can find the file without rescanning the output
// directory on every request.
type blockIndex struct {
	mu sync.RWMutex
	m  map[string]int64
}

func newBlockIndex() *blockIndex { return &blockIndex{m: make(map[string]int64)} }

func (b *blockIndex) put(hash string, height int64) {
	b.mu.Lock()
	b.m[hash] = height
	b.mu.Unlock()
}

func (b *blockIndex) get(hash string) (int64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	h, ok := b.m[hash]
	return h, ok
}

// progressCallback decorates a real callback (always "dump" for this
// binary) purely to observe StartBlock/StartMap events for the HTTP
// surface; every event is forwarded unchanged to the wrapped callback.
type progressCallback struct {
	engine.Callback
	prog  *progress
	index *blockIndex
}

func (p *progressCallback) StartMap(fileOffset int64) {
	p.prog.pass.Store(4)
	p.Callback.StartMap(fileOffset)
}

func (p *progressCallback) StartBlock(b engine.BlockRef, chainSize uint64) {
	p.prog.height.Store(b.Height)
	p.prog.offset.Store(b.Offset)
	p.prog.chainSize.Store(int64(chainSize))
	p.index.put(hex.EncodeToString(utils.ReverseBytes(b.Hash[:])), b.Height)
	p.Callback.StartBlock(b, chainSize)
}

func main() {
	v := viper.New()
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "blocklensd",
		Short: "Serve block-walk progress and per-block lookups over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(v, args)
			if err != nil {
				return fmt.Errorf("%w: %v", blkerr.ErrUser, err)
			}
			return serve(cfg)
		},
	}
	config.Bind(rootCmd, v)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("blocklensd failed")
		os.Exit(blkerr.ExitCode(err))
	}
}

func serve(cfg *config.Config) error {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	profile := netprofile.Lookup(cfg.Network)
	if profile == nil {
		return fmt.Errorf("%w: unknown network profile %q", blkerr.ErrUser, cfg.Network)
	}

	outDir := "dump"
	if len(cfg.CallbackArgs) > 0 {
		outDir = cfg.CallbackArgs[0]
	}

	dump, err := callback.New("dump")
	if err != nil {
		return fmt.Errorf("%w: %v", blkerr.ErrUser, err)
	}
	if err := dump.Init([]string{outDir, cfg.Network}); err != nil {
		return fmt.Errorf("%w: %v", blkerr.ErrUser, err)
	}

	prog := &progress{}
	index := newBlockIndex()
	cb := &progressCallback{Callback: dump, prog: prog, index: index}

	dataDir := cfg.DataDir
	if dataDir == "" {
		if home, herr := os.UserHomeDir(); herr == nil && home != "" {
			dataDir = home + "/" + profile.DataSubdirName
		} else {
			dataDir = profile.DataSubdirName
		}
	}

	files, err := blockfile.Locate(dataDir)
	if err != nil {
		return fmt.Errorf("%w: %v", blkerr.ErrFatal, err)
	}
	defer blockfile.Close(files)

	eng := engine.New(profile, cb, blockfile.EngineFiles(files))

	runErr := make(chan error, 1)
	go func() {
		prog.pass.Store(1)
		runErr <- eng.Run()
		prog.pass.Store(5)
	}()

	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	r.GET("/api/progress", func(c *gin.Context) {
		c.JSON(200, prog.snapshot())
	})

	r.GET("/api/block/:hash", func(c *gin.Context) {
		hash := c.Param("hash")
		height, ok := index.get(hash)
		if !ok {
			c.JSON(404, types.BlockOutput{
				OK:    false,
				Error: &types.ErrorInfo{Code: "NOT_FOUND", Message: "block not seen yet or unknown hash"},
			})
			return
		}

		path := filepath.Join(outDir, fmt.Sprintf("block_%08d.json", height))
		data, err := os.ReadFile(path)
		if err != nil {
			c.JSON(404, types.BlockOutput{
				OK:    false,
				Error: &types.ErrorInfo{Code: "NOT_FOUND", Message: "block file not yet written"},
			})
			return
		}

		var out types.BlockOutput
		if err := json.Unmarshal(data, &out); err != nil {
			c.JSON(500, types.BlockOutput{
				OK:    false,
				Error: &types.ErrorInfo{Code: "IO_ERROR", Message: "failed to decode stored block"},
			})
			return
		}
		c.JSON(200, out)
	})

	addr := cfg.HTTPBindAddr
	log.Info().Str("addr", addr).Msg("blocklensd listening")
	serveErr := r.Run(addr)

	select {
	case err := <-runErr:
		if err != nil {
			return err
		}
	default:
	}
	return serveErr
}
