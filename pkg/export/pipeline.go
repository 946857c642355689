// Package export turns alignment databases into the static JSON tree: shared
// source text, per-project target text and alignments, and index.json.
package export

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
	"github.com/japaniel/scripturelens/pkg/dictionary"
	"github.com/japaniel/scripturelens/pkg/workerpool"
)

var (
	// ErrProjectCollision is recorded for a database whose project id was
	// already claimed by another database in the same run.
	ErrProjectCollision = errors.New("project id already claimed")
	// ErrOutputNotWritable aborts a run.
	ErrOutputNotWritable = errors.New("output directory not writable")
)

// Pipeline exports a set of project databases into one output tree.
type Pipeline struct {
	Layout corpus.Layout
	// Filter restricts the text export to a book/chapter allow-list.
	// Alignments are never filtered.
	Filter bible.BookFilter
	// Workers is the number of projects exported concurrently.
	Workers int
	// Logger is used for progress and data-quality messages. nil means
	// slog.Default().
	Logger *slog.Logger
	// OnProgress is called after each project with the number finished and
	// the number scheduled.
	OnProgress func(done, total int)

	Dictionaries     []dictionary.Source
	SkipDictionaries bool
	HTTPClient       *http.Client

	// Open opens a project database. Tests may replace it.
	Open func(path string) (*sql.DB, error)
}

// NewPipeline creates a pipeline writing under outputDir.
func NewPipeline(outputDir string) *Pipeline {
	return &Pipeline{
		Layout:       corpus.Layout{Root: outputDir},
		Workers:      1,
		Dictionaries: dictionary.DefaultSources("", ""),
		Open:         db.Open,
	}
}

type project struct {
	result *ProjectResult
	conn   *sql.DB
}

// Run exports every database in dbPaths. Per-project failures are recorded
// in the report; the returned error is non-nil only when the output tree
// cannot be written.
func (p *Pipeline) Run(ctx context.Context, dbPaths []string) (*Report, error) {
	logger := loggerOr(p.Logger)
	report := &Report{
		RunID:     uuid.NewString(),
		Started:   time.Now(),
		OutputDir: p.Layout.Root,
	}
	logger = logger.With("run", report.RunID)

	if err := ensureWritable(p.Layout); err != nil {
		return report, err
	}

	paths := append([]string(nil), dbPaths...)
	sort.Strings(paths)
	report.Projects = make([]ProjectResult, len(paths))

	// Identities are claimed in sorted path order before any export starts,
	// so which database wins a collision does not depend on scheduling.
	var projects []project
	owners := make(map[string]string)
	for i, path := range paths {
		res := &report.Projects[i]
		res.DBPath = path
		conn, err := p.open(path)
		if err != nil {
			res.Err = fmt.Errorf("open database: %w", err)
			logger.Error("Skipping project", "database", filepath.Base(path), "error", err)
			continue
		}
		res.Project = db.ResolveProject(ctx, conn, path)
		if res.Project.Fallback {
			logger.Warn("No target corpus row, using file name", "database", filepath.Base(path), "project", res.Project.ID)
		}
		if owner, taken := owners[res.Project.ID]; taken {
			conn.Close()
			res.Err = fmt.Errorf("%w: %q is exported from %s", ErrProjectCollision, res.Project.ID, filepath.Base(owner))
			logger.Error("Skipping project", "database", filepath.Base(path), "error", res.Err)
			continue
		}
		owners[res.Project.ID] = path
		projects = append(projects, project{result: res, conn: conn})
	}
	defer func() {
		for _, pr := range projects {
			pr.conn.Close()
		}
	}()

	guard := NewSourceGuard(p.Layout)
	var finished int64
	jobs := make([]workerpool.Job, len(projects))
	for i, pr := range projects {
		pr := pr
		jobs[i] = func(ctx context.Context) error {
			p.exportProject(ctx, pr, guard, &report.Source.Stats, logger)
			if p.OnProgress != nil {
				p.OnProgress(int(atomic.AddInt64(&finished, 1)), len(projects))
			}
			return pr.result.Err
		}
	}
	for i, err := range workerpool.Run(ctx, p.Workers, jobs) {
		if res := projects[i].result; res.Err == nil && err != nil {
			res.Err = err
		}
	}

	report.Source.ExportedBy = guard.ExportedBy()
	report.Source.Skipped = report.Source.ExportedBy == ""
	for _, r := range report.Projects {
		report.Matches.Add(r.Alignments.Stats)
	}

	if !p.SkipDictionaries {
		client := p.HTTPClient
		if client == nil {
			client = &http.Client{Timeout: dictionary.DefaultTimeout}
		}
		report.Dictionaries = dictionary.EnsureAll(ctx, client, p.Layout.DictionaryDir(), p.Dictionaries, logger)
	}

	idx := corpus.NewIndex(dictionary.FileNames(p.Dictionaries))
	for _, r := range report.Projects {
		if r.Entry != nil {
			idx.Projects[r.Project.ID] = *r.Entry
		}
	}
	diff, err := WriteIndex(p.Layout, idx)
	if err != nil {
		return report, fmt.Errorf("%w: write index: %v", ErrOutputNotWritable, err)
	}
	report.IndexDiff = diff
	report.Finished = time.Now()
	report.Log(logger)
	return report, nil
}

func (p *Pipeline) open(path string) (*sql.DB, error) {
	if p.Open != nil {
		return p.Open(path)
	}
	return db.Open(path)
}

func (p *Pipeline) exportProject(ctx context.Context, pr project, guard *SourceGuard, sourceStats *TextStats, logger *slog.Logger) {
	res := pr.result
	start := time.Now()
	id := res.Project.ID
	log := logger.With("project", id)
	defer func() { res.Duration = time.Since(start) }()

	kpis, err := db.GetStats(ctx, pr.conn)
	if err != nil {
		log.Warn("Could not read database counts", "error", err)
	}
	res.Stats = kpis

	// The export callback runs under the guard's lock, which also protects
	// sourceStats.
	skipped, err := guard.Ensure(id, func() error {
		stats, err := ExportSource(ctx, pr.conn, p.Layout, p.Filter, log)
		*sourceStats = stats
		return err
	})
	res.SourceSkipped = skipped
	if err != nil {
		res.Err = err
		log.Error("Project export failed", "error", err)
		return
	}

	res.Target, err = ExportTarget(ctx, pr.conn, p.Layout.TargetDir(id), p.Filter, log)
	if err != nil {
		res.Err = fmt.Errorf("export target text: %w", err)
		log.Error("Project export failed", "error", res.Err)
		return
	}

	m, err := LoadMatcher(ctx, pr.conn)
	if err != nil {
		res.Err = fmt.Errorf("index source words: %w", err)
		log.Error("Project export failed", "error", res.Err)
		return
	}
	res.Alignments, err = ExportAlignments(ctx, pr.conn, m, p.Layout.AlignmentDir(id), log)
	if err != nil {
		res.Err = fmt.Errorf("export alignments: %w", err)
		log.Error("Project export failed", "error", res.Err)
		return
	}

	entry, err := BuildProjectEntry(p.Layout, res.Project, res.Alignments)
	if err != nil && !errors.Is(err, ErrVerification) {
		res.Err = fmt.Errorf("build index entry: %w", err)
		log.Error("Project export failed", "error", res.Err)
		return
	}
	res.Entry = &entry
	if err != nil {
		res.Err = err
		log.Error("Alignment files failed verification", "error", err)
	}
}

// ensureWritable creates the top-level folders and proves a file can be
// written under the root.
func ensureWritable(layout corpus.Layout) error {
	for _, dir := range []string{
		layout.Root,
		layout.SourceDir(corpus.GreekFolder),
		layout.SourceDir(corpus.HebrewFolder),
		filepath.Join(layout.Root, corpus.TargetsDir),
		filepath.Join(layout.Root, corpus.AlignmentsDir),
	} {
		if err := mkdir(dir); err != nil {
			return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
		}
	}
	probe, err := os.CreateTemp(layout.Root, ".write-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	name := probe.Name()
	probe.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	return nil
}
