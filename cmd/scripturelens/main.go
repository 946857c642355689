package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/concordance"
	"github.com/japaniel/scripturelens/pkg/config"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
	"github.com/japaniel/scripturelens/pkg/export"
	"github.com/japaniel/scripturelens/pkg/search"
)

var (
	// Version is injected at build time
	Version = "dev"
	// ProgramName is injected at build time
	ProgramName = "scripturelens"
)

// topLemmas is how many lemmas a concordance summary lists.
const topLemmas = 10

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := Execute(ctx, Version, ProgramName, args[1:], os.Stdout, os.Stderr); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(ctx context.Context, version, programName string, args []string, stdout, stderr io.Writer) error {
	var verbose bool
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Export Bible alignment projects and build lemma concordances",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log per-record details")
	config.RegisterFlags(rootCmd.PersistentFlags())

	newLogger := func() *slog.Logger {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	}

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export sources, targets and alignments of every project database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd.Flags(), newLogger())
			if err != nil {
				return err
			}
			_, err = runExport(ctx, s, cmd.OutOrStdout(), newLogger())
			return err
		},
	}

	concordanceCmd := &cobra.Command{
		Use:   "concordance",
		Short: "Build the NT and OT lemma concordances from an export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := loadSettings(cmd.Flags(), newLogger())
			if err != nil {
				return err
			}
			return runConcordance(ctx, s, cmd.OutOrStdout(), newLogger())
		},
	}

	allCmd := &cobra.Command{
		Use:   "all",
		Short: "Export, then build the concordances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()
			s, err := loadSettings(cmd.Flags(), logger)
			if err != nil {
				return err
			}
			report, err := runExport(ctx, s, cmd.OutOrStdout(), logger)
			if err != nil {
				return err
			}
			if report == nil {
				return nil
			}
			return runConcordance(ctx, s, cmd.OutOrStdout(), logger)
		},
	}

	var (
		searchLanguage string
		searchLimit    int
	)
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search lemma indexes by lemma, inflected form, gloss or rendering",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(cmd.Flags(), newLogger())
			if err != nil {
				return err
			}
			q := search.Query{Text: strings.Join(args, " "), Language: searchLanguage, Limit: searchLimit}
			return runSearch(s, q, cmd.OutOrStdout())
		},
	}
	searchCmd.Flags().StringVar(&searchLanguage, "language", "", `Restrict to "grc" or "heb"`)
	searchCmd.Flags().IntVar(&searchLimit, "limit", search.DefaultLimit, "Maximum hits per testament")

	var fixtureName string
	fixtureCmd := &cobra.Command{
		Use:   "fixture <path>",
		Short: "Write a small demo project database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := db.CreateDemoDatabase(ctx, args[0], fixtureName); err != nil {
				return fmt.Errorf("create fixture: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Demo database written to %s\n", args[0])
			return nil
		},
	}
	fixtureCmd.Flags().StringVar(&fixtureName, "name", "Demo Project", "Full name of the demo corpus")

	rootCmd.AddCommand(exportCmd, concordanceCmd, allCmd, searchCmd, fixtureCmd)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
	}
	return err
}

func loadSettings(flags *pflag.FlagSet, logger *slog.Logger) (*config.Settings, error) {
	s, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := config.ValidateSettings(s); err != nil {
		return nil, err
	}
	config.LogWithLogger(s, logger)
	return s, nil
}

// runExport returns a nil report when no database was found.
func runExport(ctx context.Context, s *config.Settings, out io.Writer, logger *slog.Logger) (*export.Report, error) {
	paths, err := s.DiscoverDatabases()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		fmt.Fprintf(out, "No databases found in %s (patterns %s)\n", s.DataDir, strings.Join(s.DBPatterns, ", "))
		return nil, nil
	}
	filter, err := s.BookFilter()
	if err != nil {
		return nil, err
	}

	p := export.NewPipeline(s.OutputDir)
	p.Filter = filter
	p.Workers = s.Workers
	p.Logger = logger
	p.Dictionaries = s.DictionarySources()
	p.SkipDictionaries = !s.DownloadDictionaries
	p.HTTPClient = &http.Client{Timeout: s.DownloadTimeout}
	p.OnProgress = func(done, total int) {
		logger.Info("Progress", "done", done, "total", total)
	}

	report, err := p.Run(ctx, paths)
	if err != nil {
		return nil, err
	}
	report.Write(out)
	if report.IndexDiff != "" {
		logger.Debug("Index changed", "diff", report.IndexDiff)
	}
	return report, nil
}

func runConcordance(ctx context.Context, s *config.Settings, out io.Writer, logger *slog.Logger) error {
	results, err := concordance.BuildAll(ctx, s.OutputDir, 2, logger)
	for _, res := range results {
		if res == nil {
			continue
		}
		res.Summarize(topLemmas).Write(out)
		if !s.SearchIndex {
			continue
		}
		layout := corpus.Layout{Root: s.OutputDir}
		path := layout.SearchIndexPath(res.Testament)
		idx, ierr := search.BuildIndex(path, search.Documents(res.Concordance))
		if ierr != nil {
			err = errors.Join(err, fmt.Errorf("%s search index: %w", res.Testament, ierr))
			continue
		}
		_ = idx.Close()
		fmt.Fprintf(out, "Search index written to %s\n", path)
	}
	return err
}

func runSearch(s *config.Settings, q search.Query, out io.Writer) error {
	layout := corpus.Layout{Root: s.OutputDir}
	found := false
	for _, t := range []bible.Testament{bible.NewTestament, bible.OldTestament} {
		path := layout.SearchIndexPath(t)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		found = true
		idx, err := search.Open(path)
		if err != nil {
			return err
		}
		hits, err := search.Search(idx, q)
		_ = idx.Close()
		if err != nil {
			return err
		}
		for _, h := range hits {
			fmt.Fprintf(out, "%s\t%s\t%d\t%s\n", strings.ToUpper(string(t)), h.Lemma, h.Frequency, h.Gloss)
		}
	}
	if !found {
		return fmt.Errorf("no search index under %s; run concordance with --search-index", s.OutputDir)
	}
	return nil
}
