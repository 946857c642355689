// Package reader is the read side of the exported tree: it serves chapters
// for interlinear display and recomputes completion without a database.
package reader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
)

// ErrUnknownProject is returned for a project id not in the index.
var ErrUnknownProject = errors.New("unknown project")

// VerseView is one verse of a project with its source, target and links.
type VerseView struct {
	Verse  int
	Source []corpus.SourceWord
	Target []corpus.TargetWord
	// Alignments are the records that reference a source word of the verse,
	// in file order.
	Alignments []corpus.AlignmentRecord
}

// ChapterView is a chapter of one project.
type ChapterView struct {
	Project   string
	Book      int
	BookName  string
	Chapter   int
	Testament bible.Testament
	Verses    []VerseView
}

// Reader loads chapters from an export root. Chapters are cached until
// Refresh; changes on disk are not noticed before that.
type Reader struct {
	layout corpus.Layout
	cache  *ChapterCache

	mu    sync.RWMutex
	index *corpus.Index
}

// Open reads the index under root.
func Open(root string) (*Reader, error) {
	r := &Reader{layout: corpus.Layout{Root: root}, cache: NewChapterCache()}
	if err := r.Refresh(); err != nil {
		return nil, err
	}
	return r, nil
}

// Refresh reloads the index and clears every cached chapter.
func (r *Reader) Refresh() error {
	idx, err := corpus.LoadIndex(r.layout.Root)
	if err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	r.mu.Lock()
	r.index = idx
	r.mu.Unlock()
	r.cache.Clear()
	return nil
}

// Index returns the loaded manifest.
func (r *Reader) Index() *corpus.Index {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.index
}

// Cache exposes the chapter cache.
func (r *Reader) Cache() *ChapterCache { return r.cache }

// Chapter returns one chapter of a project, from the cache when present.
func (r *Reader) Chapter(projectID string, book, chapter int) (*ChapterView, error) {
	entry, ok := r.Index().Projects[projectID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProject, projectID)
	}
	key := ChapterKey{Project: projectID, Book: book, Chapter: chapter}
	return r.cache.Get(key, func() (*ChapterView, error) {
		return r.loadChapter(projectID, entry, book, chapter)
	})
}

func (r *Reader) loadChapter(projectID string, entry corpus.ProjectEntry, book, chapter int) (*ChapterView, error) {
	t := bible.TestamentOf(book)
	view := &ChapterView{
		Project:   projectID,
		Book:      book,
		BookName:  bible.BookName(book),
		Chapter:   chapter,
		Testament: t,
	}
	file := bible.BookFileName(book)

	var src corpus.SourceBook
	if err := readOptional(joinRef(r.layout, corpus.SourcesDir+"/"+t.SourceFolder(), file), &src); err != nil {
		return nil, err
	}
	var tgt corpus.TargetBook
	if err := readOptional(joinRef(r.layout, entry.TargetFolder, file), &tgt); err != nil {
		return nil, err
	}
	var align corpus.AlignmentBook
	if err := readOptional(joinRef(r.layout, entry.AlignmentFolder, file), &align); err != nil {
		return nil, err
	}

	verses := make(map[int]*VerseView)
	var order []int
	verse := func(n int) *VerseView {
		v, ok := verses[n]
		if !ok {
			v = &VerseView{Verse: n}
			verses[n] = v
			order = append(order, n)
		}
		return v
	}
	wordVerse := make(map[string]int)
	for _, ch := range src.Chapters {
		if ch.Chapter != chapter {
			continue
		}
		for _, v := range ch.Verses {
			vv := verse(v.Verse)
			vv.Source = v.Words
			for _, w := range v.Words {
				wordVerse[w.ID] = v.Verse
			}
		}
	}
	for _, ch := range tgt.Chapters {
		if ch.Chapter != chapter {
			continue
		}
		for _, v := range ch.Verses {
			verse(v.Verse).Target = v.Words
		}
	}
	for _, rec := range align.Records {
		attached := make(map[int]bool)
		for _, id := range rec.SourceIDs {
			n, ok := wordVerse[id]
			if !ok || attached[n] {
				continue
			}
			attached[n] = true
			verses[n].Alignments = append(verses[n].Alignments, rec)
		}
	}

	sort.Ints(order)
	view.Verses = make([]VerseView, 0, len(order))
	for _, n := range order {
		view.Verses = append(view.Verses, *verses[n])
	}
	return view, nil
}

// InterlinearWord pairs a source word with the target text it was aligned
// to.
type InterlinearWord struct {
	Source  corpus.SourceWord
	Targets []string
	Status  string
}

// Interlinear returns the verse's source words in reading order, each with
// the target tokens of the first record that references it.
func (v VerseView) Interlinear() []InterlinearWord {
	byID := make(map[string]corpus.AlignmentRecord)
	for _, rec := range v.Alignments {
		for _, id := range rec.SourceIDs {
			if _, ok := byID[id]; !ok {
				byID[id] = rec
			}
		}
	}
	out := make([]InterlinearWord, 0, len(v.Source))
	for _, w := range v.Source {
		iw := InterlinearWord{Source: w}
		if rec, ok := byID[w.ID]; ok {
			iw.Targets = rec.TargetText
			iw.Status = rec.Status
		}
		out = append(out, iw)
	}
	return out
}

func joinRef(l corpus.Layout, folderRef, file string) string {
	return filepath.Join(l.Root, filepath.FromSlash(folderRef), file)
}

func readOptional(path string, v any) error {
	err := corpus.ReadJSON(path, v)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
