// Package main provides the CLI entrypoint for weakwords.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/weakwords/internal/config"
	"github.com/verte-zerg/weakwords/internal/kv"
	"github.com/verte-zerg/weakwords/internal/logging"
	"github.com/verte-zerg/weakwords/internal/model"
	"github.com/verte-zerg/weakwords/internal/session"
	"github.com/verte-zerg/weakwords/internal/settings"
	"github.com/verte-zerg/weakwords/internal/store"
	"github.com/verte-zerg/weakwords/internal/watch"
)

const (
	backendSQLite = "sqlite"
	backendFile   = "file"

	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

var (
	configPath   string
	storeBackend string
	storePath    string
	storeKey     string
	logLevel     string
	logFormat    string
)

// stdinIsTerminal reports whether prompts can be answered interactively.
var stdinIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "weakwords",
		Short:         "Track slow and mistyped words from typing practice",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", config.DefaultConfigPath(), "config file (TOML, or YAML by extension)")
	flags.StringVar(&storeBackend, "backend", backendSQLite, "record store backend (sqlite or file)")
	flags.StringVar(&storePath, "db", "", "store location (default under $XDG_DATA_HOME/weakwords)")
	flags.StringVar(&storeKey, "key", "", fmt.Sprintf("record key (default %q)", model.DefaultKey))
	flags.StringVar(&logLevel, "log-level", defaultLogLevel, "log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", defaultLogFormat, "log format (text or json)")

	rootCmd.AddCommand(newTrackCmd())
	rootCmd.AddCommand(newWordsCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newClearCmd())
	rootCmd.AddCommand(newDeleteCmd())
	rootCmd.AddCommand(newSettingsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

// app holds what every subcommand opens: the merged config, the logger and
// the record store.
type app struct {
	cfg config.FileConfig
	log *slog.Logger
	kv  kv.KV
	st  *store.Store
}

func openApp(cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "backend", &storeBackend, cfg.Store.Backend)
	applyStringConfig(cmd, "db", &storePath, cfg.Store.Path)
	applyStringConfig(cmd, "key", &storeKey, cfg.Store.Key)
	applyStringConfig(cmd, "log-level", &logLevel, cfg.Log.Level)
	applyStringConfig(cmd, "log-format", &logFormat, cfg.Log.Format)

	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}

	opts := []kv.Option{kv.WithLogger(logger)}
	if cfg.Store.PollInterval != nil {
		poll, err := config.Duration(cfg.Store.PollInterval, 0)
		if err != nil {
			return nil, fmt.Errorf("invalid store.poll-interval: %w", err)
		}
		opts = append(opts, kv.WithPollInterval(poll))
	}
	backend, err := openKV(storeBackend, storePath, opts)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg: cfg,
		log: logger,
		kv:  backend,
		st:  store.New(backend, storeKey),
	}, nil
}

func newLogger(w io.Writer) (*slog.Logger, error) {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("invalid --log-format: %w", err)
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	cfg.Format = format
	cfg.Output = w
	return logging.New(cfg), nil
}

func openKV(backend, path string, opts []kv.Option) (kv.KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case backendSQLite, "":
		if path == "" {
			path = config.DefaultDBPath()
		}
		st, err := kv.OpenSQLite(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open db: %w", err)
		}
		return st, nil
	case backendFile:
		if path == "" {
			path = config.DefaultDirStorePath()
		}
		st, err := kv.OpenDir(path, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open store directory: %w", err)
		}
		return st, nil
	}
	return nil, fmt.Errorf("unknown --backend %q (use sqlite or file)", backend)
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		logErrf("failed to close store: %v\n", err)
	}
}

// update runs one updater through a short-lived queue and waits for it.
func (a *app) update(ctx context.Context, name string, fn store.Updater) error {
	q := store.NewQueue(a.st, a.log)
	err := <-q.Update(name, fn)
	if cerr := q.Close(ctx); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to %s: %w", name, err)
	}
	return nil
}

// confirm asks a yes/no question on the terminal. Without a terminal the
// answer is no, and callers point at --yes.
func confirm(cmd *cobra.Command, question string) (bool, error) {
	if !stdinIsTerminal() {
		return false, nil
	}
	if _, err := fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N] ", question); err != nil {
		return false, fmt.Errorf("failed to write prompt: %w", err)
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read answer: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := configPath
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# weakwords configuration
# Uncomment a value to enable it. WEAKWORDS_* environment variables override
# this file, and CLI flags override both.

[store]
# backend = %q          # sqlite or file
# path = ""               # Database file or store directory
# key = %q   # Record key
# poll-interval = "500ms" # How often the sqlite store checks for changes

[tracker]
# feed = "-"              # Feed file, "-" for stdin
# restart-threshold = %d   # Words a session must pass before a re-render at word 0 starts a new one
# attach-interval = %q   # Retry interval while a page region is missing
# result-attach-attempts = %d # Result marker attach attempts before giving up
# custom-mode = %q    # Mode name treated as custom

[log]
# level = %q           # debug, info, warn, error
# format = %q          # text or json
`,
		backendSQLite,
		model.DefaultKey,
		session.DefaultRestartThreshold,
		watch.DefaultAttachInterval.String(),
		watch.DefaultResultAttempts,
		settings.DefaultCustomMode,
		defaultLogLevel,
		defaultLogFormat,
	)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
