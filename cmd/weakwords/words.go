package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/verte-zerg/weakwords/internal/model"
	"github.com/verte-zerg/weakwords/internal/stats"
	"github.com/verte-zerg/weakwords/internal/store"
	"github.com/verte-zerg/weakwords/internal/wordsui"
)

var (
	listErrors bool
	listPlain  bool

	clearYes  bool
	deleteYes bool

	settingsWordsToShow    int
	settingsMinSamples     int
	settingsHistory        int
	settingsCustomTracking bool
)

func newWordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "words",
		Short: "Browse slow and mistyped words",
		Args:  cobra.NoArgs,
		RunE:  runWordsCmd,
	}
}

func runWordsCmd(cmd *cobra.Command, _ []string) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("words needs a terminal; use: weakwords list")
	}
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	q := store.NewQueue(a.st, a.log)
	program := tea.NewProgram(wordsui.NewModel(ctx, a.st, q), tea.WithAltScreen())
	_, runErr := program.Run()

	drainCtx, stop := context.WithTimeout(context.Background(), queueDrainTimeout)
	defer stop()
	if err := q.Close(drainCtx); err != nil {
		logErrf("failed to flush pending updates: %v\n", err)
	}
	if runErr != nil {
		return fmt.Errorf("failed to run words TUI: %w", runErr)
	}
	return nil
}

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the slowest (or most mistyped) words",
		Args:  cobra.NoArgs,
		RunE:  runListCmd,
	}
	cmd.Flags().BoolVar(&listErrors, "errors", false, "list mistyped words instead of slow words")
	cmd.Flags().BoolVar(&listPlain, "plain", false, "print the words space-separated")
	return cmd
}

func runListCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.st.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load words: %w", err)
	}
	out := cmd.OutOrStdout()
	if listErrors {
		rows := stats.RankErrors(data)
		if listPlain {
			err = stats.RenderPlain(out, stats.ErrorWords(rows))
		} else {
			err = stats.RenderErrorTable(out, rows)
		}
	} else {
		rows := stats.RankSlow(data)
		if listPlain {
			err = stats.RenderPlain(out, stats.SlowWords(rows))
		} else {
			err = stats.RenderSlowTable(out, rows)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [path]",
		Short: `Write the whole record as JSON ("-" for stdout)`,
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExportCmd,
	}
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := a.st.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to load words: %w", err)
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode export: %w", err)
	}
	raw = append(raw, '\n')

	path := fmt.Sprintf("weakwords-%d.json", time.Now().UnixMilli())
	if len(args) == 1 {
		path = args[0]
	}
	if path == "-" {
		if _, err := cmd.OutOrStdout().Write(raw); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
	if err := writeFileAtomic(path, raw); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	logErrf("Wrote %s\n", path)
	return nil
}

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <path>",
		Short: "Merge an exported record into the stored one",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportCmd,
	}
}

func runImportCmd(cmd *cobra.Command, args []string) error {
	raw, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import: %w", err)
	}
	in, err := store.ParseImport(raw)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.update(cmd.Context(), "import words", store.MergeImport(in)); err != nil {
		return err
	}
	logErrf("Imported %d slow words and %d error words\n", len(in.SlowWords), len(in.ErroredWords))
	return nil
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "clear [slow|errors|all]",
		Short:     "Clear tracked words (settings are kept)",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"slow", "errors", "all"},
		RunE:      runClearCmd,
	}
	cmd.Flags().BoolVar(&clearYes, "yes", false, "do not ask for confirmation")
	return cmd
}

func runClearCmd(cmd *cobra.Command, args []string) error {
	target := "all"
	if len(args) == 1 {
		target = args[0]
	}
	fn := store.ClearAll()
	question := "Clear all slow and error words?"
	if target != "all" {
		list, err := store.ParseList(target)
		if err != nil {
			return err
		}
		fn = store.ClearList(list)
		question = fmt.Sprintf("Clear all %s words?", list)
	}
	if err := requireConfirm(cmd, clearYes, question); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.update(cmd.Context(), "clear words", fn); err != nil {
		return err
	}
	logErrln("Cleared.")
	return nil
}

func newDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete slow|errors <word>",
		Short: "Remove one word from a list",
		Args:  cobra.ExactArgs(2),
		RunE:  runDeleteCmd,
	}
	cmd.Flags().BoolVar(&deleteYes, "yes", false, "do not ask for confirmation")
	return cmd
}

func runDeleteCmd(cmd *cobra.Command, args []string) error {
	list, err := store.ParseList(args[0])
	if err != nil {
		return err
	}
	word := args[1]
	if err := requireConfirm(cmd, deleteYes, fmt.Sprintf("Remove %q from %s words?", word, list)); err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.update(cmd.Context(), "delete word", store.DeleteWord(list, word))
}

// requireConfirm passes when yes is set or the user agrees on the terminal.
func requireConfirm(cmd *cobra.Command, yes bool, question string) error {
	if yes {
		return nil
	}
	if !stdinIsTerminal() {
		return fmt.Errorf("refusing without confirmation; pass --yes")
	}
	ok, err := confirm(cmd, question)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("cancelled")
	}
	return nil
}

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change the stored settings",
		Args:  cobra.NoArgs,
		RunE:  runSettingsCmd,
	}
	cmd.Flags().IntVar(&settingsWordsToShow, "words-to-show", model.DefaultWordsShown, fmt.Sprintf("words shown per list (%d-%d)", model.MinWordsToShow, model.MaxWordsToShow))
	cmd.Flags().IntVar(&settingsMinSamples, "min-samples", model.DefaultMinSamples, fmt.Sprintf("samples before a word is listed as slow (%d-%d)", model.MinMinSamples, model.MaxMinSamples))
	cmd.Flags().IntVar(&settingsHistory, "history", model.DefaultHistory, fmt.Sprintf("speed samples kept per word (%d-%d)", model.MinHistoryCount, model.MaxHistoryCount))
	cmd.Flags().BoolVar(&settingsCustomTracking, "custom-mode-tracking", false, "track words typed in custom mode")
	return cmd
}

func runSettingsCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	data, err := a.st.Get(ctx)
	if err != nil {
		return fmt.Errorf("failed to load settings: %w", err)
	}
	s := data.Settings
	flags := cmd.Flags()
	changed := false
	if flags.Changed("words-to-show") {
		s.WordsToShow = settingsWordsToShow
		changed = true
	}
	if flags.Changed("min-samples") {
		s.MinSamples = settingsMinSamples
		changed = true
	}
	if flags.Changed("history") {
		s.SlowWordHistoryCount = settingsHistory
		changed = true
	}
	if flags.Changed("custom-mode-tracking") {
		s.DisableTrackingInCustomMode = !settingsCustomTracking
		changed = true
	}
	if changed {
		if err := a.update(ctx, "save settings", store.SaveSettings(s)); err != nil {
			return err
		}
		if data, err = a.st.Get(ctx); err != nil {
			return fmt.Errorf("failed to load settings: %w", err)
		}
	}
	if err := printSettings(cmd.OutOrStdout(), data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func printSettings(w io.Writer, data model.Data) error {
	s := data.Settings
	_, err := fmt.Fprintf(w, `Words to show:        %d
Min samples:          %d
History per word:     %d
Track custom mode:    %t
Slow words:           %d
Error words:          %d
Last update:          %s
`,
		s.WordsToShow,
		s.MinSamples,
		s.SlowWordHistoryCount,
		!s.DisableTrackingInCustomMode,
		len(data.SlowWords),
		len(data.ErroredWords),
		stats.LastUpdate(data, time.Now()),
	)
	return err
}

func writeFileAtomic(path string, raw []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create export dir: %w", err)
	}
	tmpFile, err := os.CreateTemp(dir, "weakwords-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp export: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	writer := bufio.NewWriter(tmpFile)
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush export: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close export: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}
