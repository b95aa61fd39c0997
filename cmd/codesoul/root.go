package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dshills/codesoul/internal/config"
	"github.com/dshills/codesoul/internal/logging"
	"github.com/dshills/codesoul/internal/session"
)

// app holds the state shared by every subcommand once the root has run
type app struct {
	cfgFile string
	envFile string

	cfg     *config.Config
	logger  zerolog.Logger
	logFile io.Closer

	// overrides bound to persistent flags; applied only when changed
	dbDir     string
	store     string
	provider  string
	logLevel  string
	logFormat string
	logPath   string
}

func newRootCmd() *cobra.Command {
	a := &app{logger: zerolog.Nop()}

	root := &cobra.Command{
		Use:           "codesoul",
		Short:         "codesoul - talk to your codebase",
		Long:          "codesoul indexes a source tree into overlapping chunks, derives a persona from its size, and answers questions in character from retrieved code.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.logFile != nil {
				return a.logFile.Close()
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default ./"+config.DefaultFileName+" if present)")
	flags.StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
	flags.StringVar(&a.dbDir, "db-dir", "", "directory holding the per-project indexes")
	flags.StringVar(&a.store, "store", "", "vector store: sqlite or chromem")
	flags.StringVar(&a.provider, "embedding-provider", "", "embedding provider: jina, openai, ollama or local")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: console or json")
	flags.StringVar(&a.logPath, "log-file", "", "write logs to this file instead of stderr")

	root.AddCommand(
		newIndexCmd(a),
		newAskCmd(a),
		newSearchCmd(a),
		newChatCmd(a),
		newServeCmd(a),
		newResetCmd(a),
		newVersionCmd(),
	)
	return root
}

// load resolves the configuration (defaults, YAML, env, flags) and builds
// the logger
func (a *app) load(cmd *cobra.Command) error {
	if err := config.LoadDotEnv(a.envFile); err != nil {
		return err
	}

	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string, val string) {
		if flags.Changed(name) {
			*dst = val
		}
	}
	override("db-dir", &cfg.DBDir, a.dbDir)
	override("store", &cfg.Store, a.store)
	override("embedding-provider", &cfg.Embedding.Provider, a.provider)
	override("log-level", &cfg.Log.Level, a.logLevel)
	override("log-format", &cfg.Log.Format, a.logFormat)
	override("log-file", &cfg.Log.File, a.logPath)
	a.cfg = cfg

	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return err
		}
		a.logFile = f
		out = f
	} else if cmd.Name() == "chat" {
		// the terminal belongs to the chat screen
		out = io.Discard
	}

	a.logger, err = logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: out})
	return err
}

// openSession opens the session for root, which defaults to the configured one
func (a *app) openSession(root string) (*session.Session, error) {
	cfg := *a.cfg
	if root != "" {
		cfg.Root = root
	}
	if info, err := os.Stat(cfg.Root); err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", cfg.Root, err)
	} else if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", cfg.Root)
	}
	return session.Open(&cfg, a.logger)
}
