// Command blocklens walks a Bitcoin-family node's block files end to end
// and drives a chosen callback over the resolved main chain. It replaces
// cmd/cli's one-fixture-at-a-time mode with the streaming four-pass
// engine; cmd/cli itself is no longer part of this module (see DESIGN.md).
package main

import (
	"fmt"
	"os"

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
)

func main() {
	v := viper.New()

	var cfg *config.Config
	rootCmd := &cobra.Command{
		Use:   "blocklens",
		Short: "Walk a node's block files and run a callback over the resolved main chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load(v, args)
			if err != nil {
				return fmt.Errorf("%w: %v", blkerr.ErrUser, err)
			}
			return run(cfg)
		},
	}
	config.Bind(rootCmd, v)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("blocklens failed")
		os.Exit(blkerr.ExitCode(err))
	}
}

func run(cfg *config.Config) error {
	configureLogging(cfg)

	profile := netprofile.Lookup(cfg.Network)
	if profile == nil {
		return fmt.Errorf("%w: unknown network profile %q", blkerr.ErrUser, cfg.Network)
	}

	cb, err := callback.New(cfg.Callback)
	if err != nil {
		return fmt.Errorf("%w: %v", blkerr.ErrUser, err)
	}
	if err := cb.Init(cfg.CallbackArgs); err != nil {
		return fmt.Errorf("%w: callback init failed: %v", blkerr.ErrUser, err)
	}

	dataDir := resolveDataDir(cfg, profile)
	files, err := blockfile.Locate(dataDir)
	if err != nil {
		return fmt.Errorf("%w: %v", blkerr.ErrFatal, err)
	}
	defer blockfile.Close(files)

	eng := engine.New(profile, cb, blockfile.EngineFiles(files))
	return eng.Run()
}

// resolveDataDir honors an explicit --datadir override, falling back to
// $HOME/<profile's conventional subdirectory> (spec.md's original
// HOME-derived default, unchanged in meaning).
func resolveDataDir(cfg *config.Config, profile *netprofile.Profile) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home + "/" + profile.DataSubdirName
	}
	return profile.DataSubdirName
}

func configureLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
