package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

// TextStats tallies one text export.
type TextStats struct {
	Files       int
	Words       int
	BadPosition int
	// UnknownLanguage counts source words dropped because their language
	// is neither Greek nor Hebrew, keyed by language code.
	UnknownLanguage map[string]int
}

// Dropped is the number of words that did not reach any file.
func (s TextStats) Dropped() int {
	n := s.BadPosition
	for _, c := range s.UnknownLanguage {
		n += c
	}
	return n
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// ExportSource writes the shared Greek and Hebrew book files under
// layout's sources folder.
func ExportSource(ctx context.Context, conn db.DBExecutor, layout corpus.Layout, filter bible.BookFilter, logger *slog.Logger) (TextStats, error) {
	logger = loggerOr(logger)
	stats := TextStats{UnknownLanguage: map[string]int{}}
	trees := map[bible.Testament]*BookTree[corpus.SourceWord]{
		bible.OldTestament: NewBookTree[corpus.SourceWord](),
		bible.NewTestament: NewBookTree[corpus.SourceWord](),
	}

	err := db.StreamLexicalItems(ctx, conn, db.SideSource, filter, func(it db.LexicalItem) error {
		tree := sourceTree(trees, it.Language)
		if tree == nil {
			stats.UnknownLanguage[it.Language]++
			logger.Debug("Dropping source word with unknown language", "id", it.ID, "language", it.Language)
			return nil
		}
		w := corpus.SourceWord{
			ID:       it.ID,
			Text:     it.Text,
			Lemma:    it.Lemma,
			Gloss:    it.Gloss,
			After:    it.After,
			Position: it.Position.Word,
			Required: it.Required,
		}
		if err := tree.Add(it.Position, it.Language, w); err != nil {
			stats.BadPosition++
			logger.Debug("Dropping source word", "id", it.ID, "error", err)
			return nil
		}
		stats.Words++
		return nil
	})
	if err != nil {
		return stats, err
	}

	for _, t := range []bible.Testament{bible.OldTestament, bible.NewTestament} {
		n, err := writeBooks(layout.SourceDir(t.SourceFolder()), trees[t].Finalize())
		if err != nil {
			return stats, err
		}
		stats.Files += n
		logger.Info("Exported source text", "folder", t.SourceFolder(), "books", n, "words", trees[t].Len())
	}
	if stats.Dropped() > 0 {
		logger.Warn("Source words dropped", "unknown_language", stats.UnknownLanguage, "bad_position", stats.BadPosition)
	}
	return stats, nil
}

func sourceTree(trees map[bible.Testament]*BookTree[corpus.SourceWord], language string) *BookTree[corpus.SourceWord] {
	for t, tree := range trees {
		if t.Language() == language {
			return tree
		}
	}
	return nil
}

// ExportTarget replaces the book files in dir with the project's target
// text.
func ExportTarget(ctx context.Context, conn db.DBExecutor, dir string, filter bible.BookFilter, logger *slog.Logger) (TextStats, error) {
	logger = loggerOr(logger)
	var stats TextStats
	tree := NewBookTree[corpus.TargetWord]()

	err := db.StreamLexicalItems(ctx, conn, db.SideTarget, filter, func(it db.LexicalItem) error {
		w := corpus.TargetWord{
			ID:         it.ID,
			Text:       it.Text,
			Normalized: it.NormalizedText,
			After:      it.After,
			Position:   it.Position.Word,
		}
		if it.Gloss != nil {
			w.Gloss = *it.Gloss
		}
		if err := tree.Add(it.Position, it.Language, w); err != nil {
			stats.BadPosition++
			logger.Debug("Dropping target word", "id", it.ID, "error", err)
			return nil
		}
		stats.Words++
		return nil
	})
	if err != nil {
		return stats, err
	}

	if err := clearBookFiles(dir); err != nil {
		return stats, err
	}
	n, err := writeBooks(dir, tree.Finalize())
	if err != nil {
		return stats, err
	}
	stats.Files = n
	if stats.BadPosition > 0 {
		logger.Warn("Target words dropped", "bad_position", stats.BadPosition)
	}
	return stats, nil
}

func writeBooks[W any](dir string, books []corpus.Book[W]) (int, error) {
	if len(books) == 0 {
		return 0, nil
	}
	if err := mkdir(dir); err != nil {
		return 0, err
	}
	for _, b := range books {
		if err := corpus.WriteJSON(bookPath(dir, b.Book), b); err != nil {
			return 0, err
		}
	}
	return len(books), nil
}

func mkdir(dir string) error { return os.MkdirAll(dir, 0o755) }

func bookPath(dir string, book int) string {
	return filepath.Join(dir, bible.BookFileName(book))
}

// clearBookFiles removes the book files of a previous run so a book that
// disappeared from the database does not linger in the output.
func clearBookFiles(dir string) error {
	files, err := corpus.BookFiles(dir)
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// SourceGuard makes the shared source export happen at most once per run.
// The first caller that finds the source folders empty runs the export while
// holding the guard; later callers wait and then skip. A failed export leaves
// the guard open so the next project retries it.
type SourceGuard struct {
	layout corpus.Layout

	mu         sync.Mutex
	done       bool
	exportedBy string
}

// NewSourceGuard returns a guard over layout's source folders.
func NewSourceGuard(layout corpus.Layout) *SourceGuard {
	return &SourceGuard{layout: layout}
}

// Ensure calls export on behalf of projectID unless the shared source has
// already been written. It reports whether the export was skipped.
func (g *SourceGuard) Ensure(projectID string, export func() error) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return true, nil
	}
	present, err := g.hasContent()
	if err != nil {
		return false, err
	}
	if present {
		g.done = true
		return true, nil
	}
	if err := export(); err != nil {
		return false, fmt.Errorf("export shared source: %w", err)
	}
	g.done = true
	g.exportedBy = projectID
	return false, nil
}

// ExportedBy is the project whose database produced the shared source in
// this run, or "" if it was skipped or has not happened yet.
func (g *SourceGuard) ExportedBy() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exportedBy
}

func (g *SourceGuard) hasContent() (bool, error) {
	for _, folder := range []string{corpus.GreekFolder, corpus.HebrewFolder} {
		files, err := corpus.BookFiles(g.layout.SourceDir(folder))
		if err != nil {
			return false, err
		}
		if len(files) > 0 {
			return true, nil
		}
	}
	return false, nil
}
