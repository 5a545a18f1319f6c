package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/domino14/morris/ai/alphabeta"
	"github.com/domino14/morris/board"
	"github.com/domino14/morris/ttable"
)

type Config struct {
	*viper.Viper
	args []string
}

const (
	ConfigDebug                  = "debug"
	ConfigLogLevel               = "log-level"
	ConfigTTMemoryFraction       = "tt-memory-fraction"
	ConfigTTCapacity             = "tt-capacity"
	ConfigSearchDepth            = "search-depth"
	ConfigSearchTimeLimit        = "search-time-limit"
	ConfigSeed                   = "seed"
	ConfigIterativeDeepening     = "iterative-deepening"
	ConfigTrace                  = "trace"
	ConfigPlacingDepthReduction  = "placing-depth-reduction"
	ConfigMovingDepthBonus       = "moving-depth-bonus"
	ConfigFewMovesThreshold      = "few-moves-threshold"
	ConfigFewMovesBonus          = "few-moves-bonus"
	ConfigPiecesPerSide          = "pieces-per-side"
	ConfigFlying                 = "flying"
	ConfigMaxMovesWithoutCapture = "max-moves-without-capture"
	ConfigBookPath               = "book-path"
	ConfigAutoplayThreads        = "autoplay-threads"
	ConfigCPUProfile             = "cpu-profile"
	ConfigNatsURL                = "nats-url"
	ConfigBotChannel             = "bot-channel"
)

// Load reads flags from args, then MORRIS_-prefixed environment variables,
// falling back to defaults. Unknown flags are an error.
func (c *Config) Load(args []string) error {
	c.Viper = viper.New()

	fs := pflag.NewFlagSet("morris", pflag.ContinueOnError)

	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.String(ConfigLogLevel, "info", "log level if debug is off")
	fs.Float64(ConfigTTMemoryFraction, 0.25, "fraction of total memory for the transposition table")
	fs.Int(ConfigTTCapacity, 0, "transposition table entries; overrides the memory fraction if positive")
	fs.Int(ConfigSearchDepth, 6, "nominal search depth in plies")
	fs.Duration(ConfigSearchTimeLimit, 10*time.Second, "time limit for one search")
	fs.Uint64(ConfigSeed, 0, "seed for the tie-break generator")
	fs.Bool(ConfigIterativeDeepening, true, "search with iterative deepening")
	fs.Bool(ConfigTrace, false, "keep the searched tree with diagnostics")
	fs.Int(ConfigPlacingDepthReduction, 1, "depth reduction early in the placing phase")
	fs.Int(ConfigMovingDepthBonus, 1, "extra depth in the moving phase")
	fs.Int(ConfigFewMovesThreshold, 6, "move count at or below which the few-moves bonus applies")
	fs.Int(ConfigFewMovesBonus, 1, "extra depth when few moves are available")
	fs.Int(ConfigPiecesPerSide, 9, "pieces each side places")
	fs.Bool(ConfigFlying, true, "a side with three pieces may fly")
	fs.Int(ConfigMaxMovesWithoutCapture, 100, "moves without a removal before a draw; 0 disables")
	fs.String(ConfigBookPath, "", "path to the position book database")
	fs.Int(ConfigAutoplayThreads, 4, "games played at once by autoplay")
	fs.String(ConfigCPUProfile, "", "file to write a CPU profile to")
	fs.String(ConfigNatsURL, "nats://127.0.0.1:4222", "NATS server for the bot")
	fs.String(ConfigBotChannel, "morris.bot", "NATS subject the bot answers on")

	if err := fs.Parse(args); err != nil {
		return err
	}
	c.args = fs.Args()
	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	c.SetEnvPrefix("morris")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()
	return nil
}

// Args are the arguments left over after the flags.
func (c *Config) Args() []string {
	return c.args
}

// Rules returns the game variant this config selects.
func (c *Config) Rules() board.Rules {
	return board.Rules{
		PiecesPerSide:          c.GetInt(ConfigPiecesPerSide),
		Flying:                 c.GetBool(ConfigFlying),
		MaxMovesWithoutRemoval: c.GetInt(ConfigMaxMovesWithoutCapture),
	}
}

func (c *Config) SolverOptions() alphabeta.Options {
	return alphabeta.Options{
		Seed:               c.GetUint64(ConfigSeed),
		IterativeDeepening: c.GetBool(ConfigIterativeDeepening),
		Trace:              c.GetBool(ConfigTrace),
		Depth: alphabeta.DepthPolicy{
			PlacingReduction:  c.GetInt(ConfigPlacingDepthReduction),
			MovingBonus:       c.GetInt(ConfigMovingDepthBonus),
			FewMovesThreshold: c.GetInt(ConfigFewMovesThreshold),
			FewMovesBonus:     c.GetInt(ConfigFewMovesBonus),
		},
	}
}

func (c *Config) Budget() alphabeta.Budget {
	return alphabeta.Budget{
		MaxDepth:  c.GetInt(ConfigSearchDepth),
		TimeLimit: c.GetDuration(ConfigSearchTimeLimit),
	}
}

// TranspositionTable sizes a table from tt-capacity, or from
// tt-memory-fraction when no capacity is set.
func (c *Config) TranspositionTable() *ttable.TranspositionTable {
	if n := c.GetInt(ConfigTTCapacity); n > 0 {
		return ttable.New(n)
	}
	return ttable.NewFromMemoryFraction(c.GetFloat64(ConfigTTMemoryFraction))
}

func DefaultConfig() *Config {
	c := &Config{}
	// Parsing no arguments cannot fail.
	_ = c.Load(nil)
	return c
}
