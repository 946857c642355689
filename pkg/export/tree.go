package export

import (
	"errors"
	"fmt"
	"sort"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

// ErrBadPosition is returned by BookTree.Add for coordinates outside the
// canon or non-positive chapter/verse numbers.
var ErrBadPosition = errors.New("position outside the canon")

type positioned[W any] struct {
	word int
	w    W
}

type bookNode[W any] struct {
	language string
	chapters map[int]map[int][]positioned[W]
}

// BookTree groups words into Book → Chapter → Verse. Keys are only created
// through Add, which rejects out-of-range positions, and Finalize emits
// everything in ascending numeric order regardless of insertion order.
type BookTree[W any] struct {
	books map[int]*bookNode[W]
	words int
}

// NewBookTree returns an empty tree.
func NewBookTree[W any]() *BookTree[W] {
	return &BookTree[W]{books: make(map[int]*bookNode[W])}
}

// Add places w at pos. The book's language is the language of the last
// word added to it.
func (t *BookTree[W]) Add(pos db.Position, language string, w W) error {
	if !bible.Valid(pos.Book) || pos.Chapter < 1 || pos.Verse < 1 {
		return fmt.Errorf("%w: %d %d:%d", ErrBadPosition, pos.Book, pos.Chapter, pos.Verse)
	}
	b, ok := t.books[pos.Book]
	if !ok {
		b = &bookNode[W]{chapters: make(map[int]map[int][]positioned[W])}
		t.books[pos.Book] = b
	}
	b.language = language
	ch, ok := b.chapters[pos.Chapter]
	if !ok {
		ch = make(map[int][]positioned[W])
		b.chapters[pos.Chapter] = ch
	}
	ch[pos.Verse] = append(ch[pos.Verse], positioned[W]{word: pos.Word, w: w})
	t.words++
	return nil
}

// Len is the number of words added.
func (t *BookTree[W]) Len() int { return t.words }

// BookCount is the number of distinct books.
func (t *BookTree[W]) BookCount() int { return len(t.books) }

// Finalize returns one document per book in ascending book order.
func (t *BookTree[W]) Finalize() []corpus.Book[W] {
	out := make([]corpus.Book[W], 0, len(t.books))
	for _, bookNum := range sortedKeys(t.books) {
		node := t.books[bookNum]
		book := corpus.Book[W]{
			Book:     bookNum,
			BookName: bible.BookName(bookNum),
			Language: node.language,
			Chapters: make([]corpus.Chapter[W], 0, len(node.chapters)),
		}
		for _, chNum := range sortedKeys(node.chapters) {
			verses := node.chapters[chNum]
			ch := corpus.Chapter[W]{Chapter: chNum, Verses: make([]corpus.Verse[W], 0, len(verses))}
			for _, vNum := range sortedKeys(verses) {
				entries := verses[vNum]
				sort.SliceStable(entries, func(i, j int) bool { return entries[i].word < entries[j].word })
				words := make([]W, len(entries))
				for i, e := range entries {
					words[i] = e.w
				}
				ch.Verses = append(ch.Verses, corpus.Verse[W]{Verse: vNum, Words: words})
			}
			book.Chapters = append(book.Chapters, ch)
		}
		out = append(out, book)
	}
	return out
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
