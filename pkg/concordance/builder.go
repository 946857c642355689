package concordance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/workerpool"
)

// Builder builds the concordance of one testament from an export root.
type Builder struct {
	Layout    corpus.Layout
	Testament bible.Testament
	// Logger nil means slog.Default().
	Logger *slog.Logger

	conc *Concordance
	// surface text -> lemma of the first occurrence indexed with that text
	lemmaOf map[string]string
	stats   BuildStats
}

// BuildStats counts the work of one build.
type BuildStats struct {
	SourceFiles    int
	AlignmentFiles int
	Projects       int
	// Renderings is the number of (lemma, rendering) increments.
	Renderings int
	// SkippedRecords counts alignment records without source or target text.
	SkippedRecords int
	// OtherTestament counts alignment files skipped by book range.
	OtherTestament int
}

// Result is a finished concordance with its counters.
type Result struct {
	Testament   bible.Testament
	Concordance *Concordance
	Stats       BuildStats
	Path        string
}

// NewBuilder returns a builder for testament t under root.
func NewBuilder(root string, t bible.Testament) *Builder {
	return &Builder{Layout: corpus.Layout{Root: root}, Testament: t}
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger == nil {
		return slog.Default()
	}
	return b.Logger
}

// Build runs the source pass, the rendering pass and finalization.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	b.conc = New()
	b.lemmaOf = make(map[string]string)
	b.stats = BuildStats{}
	log := b.logger().With("testament", string(b.Testament))

	if err := b.indexSources(ctx); err != nil {
		return nil, err
	}
	log.Info("Indexed source lemmas", "lemmas", b.conc.Len(), "files", b.stats.SourceFiles)

	idx, err := corpus.LoadIndex(b.Layout.Root)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if err := b.attachRenderings(ctx, idx, log); err != nil {
		return nil, err
	}
	for _, lemma := range b.conc.order {
		b.conc.entries[lemma].finalize()
	}
	log.Info("Attached renderings", "projects", b.stats.Projects, "renderings", b.stats.Renderings)

	return &Result{Testament: b.Testament, Concordance: b.conc, Stats: b.stats}, nil
}

func (b *Builder) indexSources(ctx context.Context) error {
	lang := b.Testament.Language()
	files, err := corpus.BookFiles(b.Layout.SourceDir(b.Testament.SourceFolder()))
	if err != nil {
		return err
	}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		var book corpus.SourceBook
		if err := corpus.ReadJSON(path, &book); err != nil {
			return err
		}
		b.stats.SourceFiles++
		for _, ch := range book.Chapters {
			for _, v := range ch.Verses {
				for _, w := range v.Words {
					if w.Lemma == nil || *w.Lemma == "" {
						continue
					}
					e := b.conc.upsert(*w.Lemma)
					e.Gloss = w.Gloss
					e.Language = lang
					e.addOccurrence(Occurrence{
						Book:     book.Book,
						BookName: book.BookName,
						Chapter:  ch.Chapter,
						Verse:    v.Verse,
						Position: w.Position,
						Text:     w.Text,
						WordID:   w.ID,
						Required: w.Required,
					})
					if _, ok := b.lemmaOf[w.Text]; !ok {
						b.lemmaOf[w.Text] = *w.Lemma
					}
				}
			}
		}
	}
	return nil
}

func (b *Builder) attachRenderings(ctx context.Context, idx *corpus.Index, log *slog.Logger) error {
	ids := make([]string, 0, len(idx.Projects))
	for id := range idx.Projects {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, pid := range ids {
		dir := filepath.Join(b.Layout.Root, filepath.FromSlash(idx.Projects[pid].AlignmentFolder))
		files, err := corpus.BookFiles(dir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			log.Debug("No alignment files", "project", pid)
			continue
		}
		b.stats.Projects++
		for _, lemma := range b.conc.order {
			b.conc.entries[lemma].startProject(pid)
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return err
			}
			var book corpus.AlignmentBook
			if err := corpus.ReadJSON(path, &book); err != nil {
				return err
			}
			if !b.Testament.Contains(book.Book) {
				b.stats.OtherTestament++
				continue
			}
			b.stats.AlignmentFiles++
			for _, rec := range book.Records {
				if len(rec.SourceText) == 0 || len(rec.TargetText) == 0 {
					b.stats.SkippedRecords++
					continue
				}
				rendering := strings.Join(rec.TargetText, " ")
				for _, src := range rec.SourceText {
					lemma, ok := b.lemmaOf[src]
					if !ok {
						continue
					}
					b.conc.entries[lemma].addRendering(pid, rendering)
					b.stats.Renderings++
				}
			}
		}
	}
	return nil
}

// Save writes the concordance to concordance/{nt|ot}_lemmas.json.
func (r *Result) Save(layout corpus.Layout) error {
	path := layout.ConcordancePath(r.Testament)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := corpus.WriteJSON(path, r.Concordance); err != nil {
		return err
	}
	r.Path = path
	return nil
}

// BuildAll builds and saves both testaments concurrently. The two builds
// share no state. Results are returned in NT, OT order; a failed build
// leaves a nil entry and its error is joined into the returned error.
func BuildAll(ctx context.Context, root string, workers int, logger *slog.Logger) ([]*Result, error) {
	testaments := []bible.Testament{bible.NewTestament, bible.OldTestament}
	results := make([]*Result, len(testaments))
	jobs := make([]workerpool.Job, len(testaments))
	for i, t := range testaments {
		i, t := i, t
		jobs[i] = func(ctx context.Context) error {
			start := time.Now()
			b := NewBuilder(root, t)
			b.Logger = logger
			res, err := b.Build(ctx)
			if err != nil {
				return fmt.Errorf("%s concordance: %w", t, err)
			}
			if err := res.Save(b.Layout); err != nil {
				return fmt.Errorf("%s concordance: %w", t, err)
			}
			b.logger().Info("Saved concordance", "file", filepath.Base(res.Path), "duration", time.Since(start).Round(time.Millisecond))
			results[i] = res
			return nil
		}
	}
	return results, errors.Join(workerpool.Run(ctx, workers, jobs)...)
}
