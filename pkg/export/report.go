package export

import (
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
	"github.com/japaniel/scripturelens/pkg/dictionary"
)

// ProjectResult is the outcome of one database.
type ProjectResult struct {
	DBPath        string
	Project       db.Project
	SourceSkipped bool
	// Stats are the database's headline counts, read before export.
	Stats      db.Stats
	Target     TextStats
	Alignments AlignmentResult
	// Entry is what the index records for the project; nil when the export
	// failed before its files could be read back.
	Entry    *corpus.ProjectEntry
	Err      error
	Duration time.Duration
}

// SourceResult describes the shared source export of a run.
type SourceResult struct {
	Skipped    bool
	ExportedBy string
	Stats      TextStats
}

// Report is the terminal summary of a run.
type Report struct {
	RunID     string
	Started   time.Time
	Finished  time.Time
	OutputDir string

	Projects     []ProjectResult
	Source       SourceResult
	Matches      MatchStats
	Dictionaries []dictionary.Result
	// IndexDiff is a unified diff of index.json against the previous run.
	IndexDiff string
}

// Failed returns the projects that did not export cleanly.
func (r *Report) Failed() []ProjectResult {
	var out []ProjectResult
	for _, p := range r.Projects {
		if p.Err != nil {
			out = append(out, p)
		}
	}
	return out
}

// DictionaryErrors returns the failed downloads.
func (r *Report) DictionaryErrors() []error {
	var out []error
	for _, d := range r.Dictionaries {
		if d.Err != nil {
			out = append(out, d.Err)
		}
	}
	return out
}

// Log writes the run totals. A non-zero unmatched count is a warning.
func (r *Report) Log(logger *slog.Logger) {
	logger = loggerOr(logger)
	logger.Info("Export finished",
		"projects", len(r.Projects),
		"failed", len(r.Failed()),
		"source_skipped", r.Source.Skipped,
		"duration", r.Finished.Sub(r.Started).Round(time.Millisecond))
	if r.Matches.Unmatched > 0 {
		logger.Warn("Links dropped as unmatched",
			"unmatched", r.Matches.Unmatched,
			"drop_rate", formatPercent(r.Matches.DropRate()))
	}
}

func formatPercent(rate float64) string {
	return message.NewPrinter(language.English).Sprintf("%.1f%%", rate*100)
}

// Write prints the human-readable report.
func (r *Report) Write(w io.Writer) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "Run %s -> %s\n", r.RunID, r.OutputDir)
	p.Fprintf(w, "Projects: %d exported, %d failed\n", len(r.Projects)-len(r.Failed()), len(r.Failed()))
	for _, pr := range r.Projects {
		name := filepath.Base(pr.DBPath)
		if pr.Err != nil {
			p.Fprintf(w, "  FAIL %-28s %s: %v\n", pr.Project.ID, name, pr.Err)
			continue
		}
		p.Fprintf(w, "  ok   %-28s %s: %d target books, %d alignments in %d books\n",
			pr.Project.ID, name, pr.Target.Files, pr.Alignments.Records, pr.Alignments.Books)
		p.Fprintf(w, "       database: %d %s and %d %s source words, %d target words, %d links\n",
			pr.Stats.SourceNT, bible.NewTestament.Label(), pr.Stats.SourceOT, bible.OldTestament.Label(),
			pr.Stats.TargetWords, pr.Stats.Links)
	}

	if r.Source.Skipped {
		p.Fprintf(w, "Shared source: already present, skipped\n")
	} else {
		s := r.Source.Stats
		p.Fprintf(w, "Shared source: exported by %s (%d files, %d words, %d dropped)\n",
			r.Source.ExportedBy, s.Files, s.Words, s.Dropped())
		langs := make([]string, 0, len(s.UnknownLanguage))
		for lang := range s.UnknownLanguage {
			langs = append(langs, lang)
		}
		sort.Strings(langs)
		for _, lang := range langs {
			p.Fprintf(w, "  unknown language %q: %d words\n", lang, s.UnknownLanguage[lang])
		}
	}

	m := r.Matches
	p.Fprintf(w, "Link matching: %d exact, %d case-insensitive, %d lemma, %d unmatched, %d without source text\n",
		m.Exact, m.CaseInsensitive, m.Lemma, m.Unmatched, m.EmptySource)
	if m.Unmatched > 0 {
		p.Fprintf(w, "WARNING: %s of links dropped as unmatched\n", formatPercent(m.DropRate()))
	}

	for _, d := range r.Dictionaries {
		switch {
		case d.Err != nil:
			p.Fprintf(w, "Dictionary %s: FAILED: %v\n", d.Source.FileName, d.Err)
		case d.Skipped:
			p.Fprintf(w, "Dictionary %s: present\n", d.Source.FileName)
		default:
			p.Fprintf(w, "Dictionary %s: downloaded %d bytes\n", d.Source.FileName, d.Downloaded)
		}
	}

	if r.IndexDiff == "" {
		p.Fprintf(w, "Index: %s\n", corpus.IndexFile)
	} else {
		p.Fprintf(w, "Index: %s changed since last run (%d diff lines)\n",
			corpus.IndexFile, strings.Count(r.IndexDiff, "\n"))
	}
}
