package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sajjad-MoBe/txlog/internal/command"
	"github.com/sajjad-MoBe/txlog/internal/config"
	"github.com/sajjad-MoBe/txlog/internal/logentry"
	"github.com/sajjad-MoBe/txlog/internal/logfile"
	"github.com/sajjad-MoBe/txlog/internal/logger"
	"github.com/sajjad-MoBe/txlog/internal/storage"
)

// settings are resolved once per invocation from the config file and flags.
type settings struct {
	configPath  string
	dir         string
	logLevel    string
	pretty      bool
	skipInvalid bool

	cfg config.Config
	log *logger.Logger
}

// NewRootCommand builds the txlog command tree.
func NewRootCommand() *cobra.Command {
	s := &settings{}
	rootCmd := &cobra.Command{
		Use:   "txlog",
		Short: "Inspect, verify and recover versioned transaction logs",
		Long: `txlog reads and writes the transaction log of a graph store. Every
entry carries its format version, so logs written by older releases stay
readable by newer ones.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&s.configPath, "config", "c", "", "Path to a YAML config file")
	flags.StringVarP(&s.dir, "dir", "d", "", "Transaction log directory (overrides wal.dir)")
	flags.StringVar(&s.logLevel, "log-level", "", "Log level (overrides log.level)")
	flags.BoolVar(&s.pretty, "pretty", false, "Human readable log output")
	flags.BoolVar(&s.skipInvalid, "skip-invalid", false, "Skip undecodable bytes instead of failing")

	rootCmd.AddCommand(
		newInspectCmd(s),
		newVerifyCmd(s),
		newRecoverCmd(s),
		newServeCmd(s),
		newStatusCmd(s),
	)
	return rootCmd
}

// Execute runs the txlog CLI
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "txlog:", err)
		os.Exit(1)
	}
}

func (s *settings) load(cmd *cobra.Command) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.WAL.Dir = s.dir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = s.logLevel
	}
	if flags.Changed("pretty") {
		cfg.Log.Pretty = s.pretty
	}
	if flags.Changed("skip-invalid") {
		cfg.WAL.SkipInvalid = s.skipInvalid
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.cfg = cfg
	s.log = logger.New(cfg.Log.Level, cfg.Log.Pretty)
	return nil
}

func (s *settings) factory() command.ReaderFactory {
	return storage.NewReaderFactory()
}

// readerOptions returns the entry reader options implied by the settings.
// The SkipHandler is returned so callers can report what was skipped.
func (s *settings) readerOptions(extra ...logentry.ReaderOption) ([]logentry.ReaderOption, *logentry.SkipHandler) {
	opts := []logentry.ReaderOption{logentry.WithLogger(s.log.Module("reader").Logger)}
	var skip *logentry.SkipHandler
	if s.cfg.WAL.SkipInvalid {
		skip = &logentry.SkipHandler{}
		opts = append(opts, logentry.WithInvalidEntryHandler(skip))
	}
	return append(opts, extra...), skip
}

func (s *settings) scanner(extra ...logentry.ReaderOption) (*logfile.Scanner, *logentry.SkipHandler, error) {
	if _, err := os.Stat(s.cfg.WAL.Dir); err != nil {
		return nil, nil, fmt.Errorf("log directory %s: %w", s.cfg.WAL.Dir, err)
	}
	opts, skip := s.readerOptions(extra...)
	return logfile.NewScanner(s.cfg.WAL.Dir, s.factory(), opts...), skip, nil
}
