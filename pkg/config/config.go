// Package config loads blocklens's runtime settings: defaults, then
// blocklens.yaml in the working directory, then BLOCKLENS_-prefixed
// environment variables, then CLI flags, in that precedence order.
// Adapted from zcash/lightwalletd's cmd/root.go viper+cobra wiring,
// trimmed to the handful of fields a single-process chain walker needs
// instead of a gRPC server's TLS/RPC/cache surface.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Config holds every setting blocklens's binaries need, resolved through
// viper's defaults/file/env/flag precedence chain.
type Config struct {
	DataDir      string
	Network      string
	Callback     string
	CallbackArgs []string
	LogLevel     string
	LogFormat    string // "console" or "json"

	HTTPBindAddr string // cmd/blocklensd only

	// Pre-sizing hints read from --block-index-hint/--tx-index-hint. They
	// are only recorded here: neither binary passes them to engine.New,
	// which always derives both index sizes from the chain byte count
	// (pkg/engine/presize.go).
	BlockIndexHint int
	TXIndexHint    int
}

// Bind registers blocklens's flags on cmd and binds each one into v,
// matching lightwalletd's BindPFlag/SetDefault pairing for every flag.
// The BLOCKLENS_ env-var prefix is set by Load, not here.
func Bind(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.Flags()

	flags.String("datadir", "", "node data directory (default: $HOME/<network's conventional subdirectory>)")
	flags.String("network", "bitcoin", "network profile: bitcoin, litecoin, fedoracoin, darkcoin, protoshares")
	flags.String("callback", "help", "registered callback to run")
	flags.String("log-level", "info", "zerolog level: debug, info, warn, error")
	flags.String("log-format", "console", "log output format: console or json")
	flags.String("http-bind-addr", "127.0.0.1:8585", "bind address for cmd/blocklensd's status server")
	flags.Int("block-index-hint", 0, "block-index size hint; recorded in the config only, the engine sizes the index from chain size")
	flags.Int("tx-index-hint", 0, "tx-index size hint; recorded in the config only, the engine sizes the index from chain size")

	for _, name := range []string{
		"datadir", "network", "callback", "log-level", "log-format",
		"http-bind-addr", "block-index-hint", "tx-index-hint",
	} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	v.SetDefault("datadir", "")
	v.SetDefault("network", "bitcoin")
	v.SetDefault("callback", "help")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "console")
	v.SetDefault("http-bind-addr", "127.0.0.1:8585")
	v.SetDefault("block-index-hint", 0)
	v.SetDefault("tx-index-hint", 0)
}

// Load reads blocklens.yaml (if present) and environment variables into
// v, then assembles a Config from the resolved values plus any leftover
// positional args (forwarded to the chosen callback as its argv).
func Load(v *viper.Viper, callbackArgs []string) (*Config, error) {
	v.SetConfigName("blocklens")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BLOCKLENS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("config: failed to read blocklens.yaml: %w", err)
		}
	}

	cfg := &Config{
		DataDir:        v.GetString("datadir"),
		Network:        v.GetString("network"),
		Callback:       v.GetString("callback"),
		CallbackArgs:   callbackArgs,
		LogLevel:       v.GetString("log-level"),
		LogFormat:      v.GetString("log-format"),
		HTTPBindAddr:   v.GetString("http-bind-addr"),
		BlockIndexHint: v.GetInt("block-index-hint"),
		TXIndexHint:    v.GetInt("tx-index-hint"),
	}

	return cfg, nil
}
