package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sawpanic/corepipe/internal/config"
)

const (
	appName = "corepipe"
	version = "v1.0.0"
)

// cli carries state shared by every subcommand
type cli struct {
	configPath string
	logLevel   string
	overrides  *config.Flags
	cfg        *config.Config
}

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if err := newRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("corepipe failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           appName,
		Short:         "Core position decision pipeline and portfolio risk engine",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `corepipe scores a universe of equities, turns verdicts into ENTER/HOLD/
MOVE_STOP/EXIT decisions, admits entries into a fixed number of core slots
behind a READONLY/PAPER/LIVE gate and reports portfolio risk.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "config file (default "+config.DefaultPath+" when present)")
	pf.StringVar(&c.logLevel, "log-level", "", "log level: debug, info, warn, error")
	c.overrides = config.BindFlags(pf)

	root.AddCommand(newRunCmd(c), newRiskCmd(c), newServeCmd(c), newSizeCmd(c))
	return root
}

// load resolves config from file, environment and flags, in that order
func (c *cli) load(cmd *cobra.Command) error {
	path := c.configPath
	if !cmd.Flags().Changed("config") {
		path = ""
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stat %s: %w", config.DefaultPath, err)
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	c.overrides.Apply(cfg)
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}
	c.cfg = cfg
	log.Debug().Str("config", path).Str("mode", cfg.Mode.Mode).Msg("Configuration loaded")
	return nil
}

// setupLogging uses a console writer on terminals and JSON otherwise
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("%w: log level %q", config.ErrInvalidConfig, level)
	}
	zerolog.SetGlobalLevel(lvl)
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	return nil
}

// parseAsOf accepts YYYY-MM-DD; empty means now
func parseAsOf(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("--as-of must be YYYY-MM-DD: %w", err)
	}
	return t, nil
}
