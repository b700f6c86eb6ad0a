// Package cmd implements the tessera command line tool.
package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/hupe1980/tessera"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables that configure the tool,
// e.g. TESSERA_TILE_CACHE_SIZE.
const EnvPrefix = "TESSERA"

// engineConfig holds the engine options shared by all subcommands.
type engineConfig struct {
	TileCacheSize int64
	MemoryLimit   int64
	IOLimit       int64
	FlushWorkers  int
	LogLevel      string
}

func (c *engineConfig) bind(flags *pflag.FlagSet) {
	flags.Int64Var(&c.TileCacheSize, "tile-cache-size", tessera.DefaultTileCacheSize, "Tile cache capacity in bytes, 0 disables the cache.")
	flags.Int64Var(&c.MemoryLimit, "memory-limit", 0, "Memory budget in bytes for pending tiles and the cache, 0 is unlimited.")
	flags.Int64Var(&c.IOLimit, "io-limit", 0, "Tile bytes per second moved to and from storage, 0 is unlimited.")
	flags.IntVar(&c.FlushWorkers, "flush-workers", tessera.DefaultFlushWorkers, "Tiles written in parallel on commit.")
	flags.StringVar(&c.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error.")
}

func (c *engineConfig) newEngine(stderr io.Writer) (*tessera.Engine, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	logger := tessera.NewLogger(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	return tessera.New(
		tessera.WithLogger(logger),
		tessera.WithTileCacheSize(c.TileCacheSize),
		tessera.WithMemoryLimit(c.MemoryLimit),
		tessera.WithIOLimit(c.IOLimit),
		tessera.WithFlushWorkers(c.FlushWorkers),
	), nil
}

// NewRootCommand builds the tessera command tree.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	cfg := &engineConfig{}
	rc := &cobra.Command{
		Use:   "tessera",
		Short: "Create, inspect, read and write dense tiled arrays.",
		Long: `Create, inspect, read and write dense tiled arrays.

Every flag can also be set through an environment variable named after the
flag with a TESSERA_ prefix (TESSERA_TILE_CACHE_SIZE), or in a TOML file
passed with --config. Flags win over the environment, which wins over the
file.
`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setAllConfig(viper.New(), cmd.Flags())
		},
	}
	rc.PersistentFlags().StringP("config", "c", "", "Configuration file to read from.")
	cfg.bind(rc.PersistentFlags())

	rc.AddCommand(newCreateCommand(cfg, stdout, stderr))
	rc.AddCommand(newSchemaCommand(cfg, stdout, stderr))
	rc.AddCommand(newInfoCommand(cfg, stdout, stderr))
	rc.AddCommand(newReadCommand(cfg, stdout, stderr))
	rc.AddCommand(newWriteCommand(cfg, stdin, stdout, stderr))

	rc.SetOut(stdout)
	rc.SetErr(stderr)
	return rc
}

// setAllConfig applies, in priority order, command line flags, environment
// variables and the configuration file to every flag in flags.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading configuration file '%s': %w", c, err)
		}

		valid := make(map[string]bool)
		flags.VisitAll(func(f *pflag.Flag) {
			valid[f.Name] = true
		})
		for _, key := range v.AllKeys() {
			if !valid[key] {
				return fmt.Errorf("invalid option in configuration file: %v", key)
			}
		}
	}

	var flagErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if flagErr != nil || f.Changed {
			return
		}
		switch f.Value.Type() {
		case "stringSlice", "stringArray":
			// Set replaces the default on the first call and appends after.
			for _, s := range v.GetStringSlice(f.Name) {
				if flagErr = f.Value.Set(s); flagErr != nil {
					return
				}
			}
		default:
			flagErr = f.Value.Set(v.GetString(f.Name))
		}
	})
	return flagErr
}
