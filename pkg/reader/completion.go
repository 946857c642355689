package reader

import (
	"fmt"
	"path/filepath"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

// CompletionFromJSON computes per-book completion for a project from the
// exported tree: required source words, and how many of them are listed in
// the sourceIds of a record whose status is one of db.CompletedStatuses.
// Books without required words are omitted, as in db.LoadCompletion.
func CompletionFromJSON(root, projectID string, filter bible.BookFilter) ([]db.BookCompletion, error) {
	layout := corpus.Layout{Root: root}
	idx, err := corpus.LoadIndex(root)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	entry, ok := idx.Projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProject, projectID)
	}

	done := make(map[string]bool)
	statuses := make(map[string]bool, len(db.CompletedStatuses))
	for _, s := range db.CompletedStatuses {
		statuses[s] = true
	}
	alignFiles, err := corpus.BookFiles(filepath.Join(root, filepath.FromSlash(entry.AlignmentFolder)))
	if err != nil {
		return nil, err
	}
	for _, path := range alignFiles {
		var book corpus.AlignmentBook
		if err := corpus.ReadJSON(path, &book); err != nil {
			return nil, err
		}
		for _, rec := range book.Records {
			if !statuses[rec.Status] {
				continue
			}
			for _, id := range rec.SourceIDs {
				done[id] = true
			}
		}
	}

	var out []db.BookCompletion
	for _, folder := range []string{corpus.HebrewFolder, corpus.GreekFolder} {
		files, err := corpus.BookFiles(layout.SourceDir(folder))
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			var book corpus.SourceBook
			if err := corpus.ReadJSON(path, &book); err != nil {
				return nil, err
			}
			bc := db.BookCompletion{Book: book.Book}
			seen := make(map[string]bool)
			for _, ch := range book.Chapters {
				if !filter.Allows(book.Book, ch.Chapter) {
					continue
				}
				for _, v := range ch.Verses {
					for _, w := range v.Words {
						if !w.Required || seen[w.ID] {
							continue
						}
						seen[w.ID] = true
						bc.TotalRequired++
						if done[w.ID] {
							bc.Completed++
						}
					}
				}
			}
			if bc.TotalRequired > 0 {
				out = append(out, bc)
			}
		}
	}
	return out, nil
}
