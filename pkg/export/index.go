package export

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

// ErrVerification is returned when the alignment files read back from disk
// disagree with what the export reported writing.
var ErrVerification = errors.New("alignment files disagree with export counts")

// BuildProjectEntry describes a project for the index from the files
// actually on disk. The returned entry always reflects the re-read files;
// a disagreement with written is reported as ErrVerification.
func BuildProjectEntry(layout corpus.Layout, p db.Project, written AlignmentResult) (corpus.ProjectEntry, error) {
	entry := corpus.ProjectEntry{
		Name:            p.DisplayName,
		Language:        p.Language,
		SourceDatabase:  p.SourceDatabase,
		TargetFolder:    corpus.TargetFolderRef(p.ID),
		AlignmentFolder: corpus.AlignmentFolderRef(p.ID),
		Books:           []corpus.BookSummary{},
	}

	targetFiles, err := corpus.BookFiles(layout.TargetDir(p.ID))
	if err != nil {
		return entry, err
	}
	entry.Stats.TargetBooks = len(targetFiles)

	alignFiles, err := corpus.BookFiles(layout.AlignmentDir(p.ID))
	if err != nil {
		return entry, err
	}
	for _, path := range alignFiles {
		var book corpus.AlignmentBook
		if err := corpus.ReadJSON(path, &book); err != nil {
			return entry, fmt.Errorf("re-read alignments: %w", err)
		}
		entry.Books = append(entry.Books, corpus.BookSummary{
			Book:           book.Book,
			BookName:       book.BookName,
			AlignmentCount: len(book.Records),
			File:           filepath.Base(path),
		})
		entry.Stats.AlignmentCount += len(book.Records)
	}
	entry.Stats.AlignmentBooks = len(entry.Books)

	if entry.Stats.AlignmentCount != written.Records || entry.Stats.AlignmentBooks != written.Books {
		return entry, fmt.Errorf("%w: wrote %d records in %d books, read %d in %d",
			ErrVerification, written.Records, written.Books,
			entry.Stats.AlignmentCount, entry.Stats.AlignmentBooks)
	}
	return entry, nil
}

// WriteIndex replaces index.json and returns a unified diff against the
// previous index, or "" when there was none or nothing changed.
func WriteIndex(layout corpus.Layout, idx *corpus.Index) (string, error) {
	path := layout.IndexPath()
	prev, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	next, err := corpus.Marshal(idx)
	if err != nil {
		return "", fmt.Errorf("encode index: %w", err)
	}
	if err := corpus.WriteFileAtomic(path, next); err != nil {
		return "", err
	}
	if prev == nil {
		return "", nil
	}
	return DiffIndex(prev, next)
}

// DiffIndex returns a unified diff between two encoded indexes.
func DiffIndex(prev, next []byte) (string, error) {
	if bytes.Equal(prev, next) {
		return "", nil
	}
	u := difflib.UnifiedDiff{
		A:        splitLinesKeepNL(string(prev)),
		B:        splitLinesKeepNL(string(next)),
		FromFile: "index.json (previous)",
		ToFile:   "index.json",
		Context:  2,
	}
	return difflib.GetUnifiedDiffString(u)
}

func splitLinesKeepNL(s string) []string {
	if s == "" {
		return []string{}
	}
	lines := strings.SplitAfter(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	} else {
		lines[len(lines)-1] += "\n"
	}
	return lines
}
