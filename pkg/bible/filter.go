package bible

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// BookFilter is an allow-list of books, each optionally restricted to a set
// of chapters. The zero value allows everything.
type BookFilter struct {
	books map[int]map[int]bool
}

// ParseBookFilter parses "43:1-3;45:1-8;40:5,6,7;1". A book without a
// chapter list allows every chapter of that book. An empty string yields an
// unrestricted filter.
func ParseBookFilter(s string) (BookFilter, error) {
	var f BookFilter
	s = strings.TrimSpace(s)
	if s == "" {
		return f, nil
	}
	f.books = make(map[int]map[int]bool)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		bookStr, chapStr, hasChapters := strings.Cut(part, ":")
		book, err := strconv.Atoi(strings.TrimSpace(bookStr))
		if err != nil || !Valid(book) {
			return BookFilter{}, fmt.Errorf("invalid book %q in filter", bookStr)
		}
		if !hasChapters || strings.TrimSpace(chapStr) == "" {
			f.books[book] = nil
			continue
		}
		chapters, err := parseChapters(chapStr)
		if err != nil {
			return BookFilter{}, fmt.Errorf("book %d: %w", book, err)
		}
		if existing, ok := f.books[book]; ok && existing == nil {
			continue
		}
		if f.books[book] == nil {
			f.books[book] = make(map[int]bool)
		}
		for _, c := range chapters {
			f.books[book][c] = true
		}
	}
	return f, nil
}

func parseChapters(s string) ([]int, error) {
	var out []int
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(item, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil || start < 1 {
			return nil, fmt.Errorf("invalid chapter %q", item)
		}
		end := start
		if isRange {
			end, err = strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < start {
				return nil, fmt.Errorf("invalid chapter range %q", item)
			}
		}
		for c := start; c <= end; c++ {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty chapter list")
	}
	return out, nil
}

// Empty reports whether the filter allows every book.
func (f BookFilter) Empty() bool {
	return len(f.books) == 0
}

// Allows reports whether (book, chapter) passes the filter.
func (f BookFilter) Allows(book, chapter int) bool {
	if f.Empty() {
		return true
	}
	chapters, ok := f.books[book]
	if !ok {
		return false
	}
	return chapters == nil || chapters[chapter]
}

// Books returns the allowed book numbers in ascending order.
func (f BookFilter) Books() []int {
	out := make([]int, 0, len(f.books))
	for b := range f.books {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

// Chapters returns the allowed chapters of book in ascending order, or nil
// when every chapter is allowed.
func (f BookFilter) Chapters(book int) []int {
	set := f.books[book]
	if set == nil {
		return nil
	}
	out := make([]int, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// String renders the filter back into the parse syntax, with chapters
// listed individually.
func (f BookFilter) String() string {
	if f.Empty() {
		return ""
	}
	var parts []string
	for _, b := range f.Books() {
		chapters := f.Chapters(b)
		if chapters == nil {
			parts = append(parts, strconv.Itoa(b))
			continue
		}
		cs := make([]string, len(chapters))
		for i, c := range chapters {
			cs[i] = strconv.Itoa(c)
		}
		parts = append(parts, fmt.Sprintf("%d:%s", b, strings.Join(cs, ",")))
	}
	return strings.Join(parts, ";")
}
