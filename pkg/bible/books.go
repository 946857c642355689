// Package bible holds the canonical 66-book table and the derived values
// (file names, testament split, completion percentage) that the exporter
// and every reader of its output must agree on.
package bible

import (
	"fmt"
	"math"
	"strings"
)

// Book numbers at the edges of the canon.
const (
	FirstBook   = 1
	LastOTBook  = 39
	FirstNTBook = 40
	LastBook    = 66
)

var bookNames = [...]string{
	"",
	// OT
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy",
	"Joshua", "Judges", "Ruth", "1 Samuel", "2 Samuel",
	"1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles",
	"Ezra", "Nehemiah", "Esther", "Job", "Psalms",
	"Proverbs", "Ecclesiastes", "Song of Solomon", "Isaiah",
	"Jeremiah", "Lamentations", "Ezekiel", "Daniel",
	"Hosea", "Joel", "Amos", "Obadiah", "Jonah",
	"Micah", "Nahum", "Habakkuk", "Zephaniah", "Haggai",
	"Zechariah", "Malachi",
	// NT
	"Matthew", "Mark", "Luke", "John", "Acts",
	"Romans", "1 Corinthians", "2 Corinthians", "Galatians",
	"Ephesians", "Philippians", "Colossians", "1 Thessalonians",
	"2 Thessalonians", "1 Timothy", "2 Timothy", "Titus",
	"Philemon", "Hebrews", "James", "1 Peter", "2 Peter",
	"1 John", "2 John", "3 John", "Jude", "Revelation",
}

// Valid reports whether n is a canonical book number.
func Valid(n int) bool {
	return n >= FirstBook && n <= LastBook
}

// BookName returns the English name of book n, or "Book n" when n is
// outside the canon.
func BookName(n int) string {
	if !Valid(n) {
		return fmt.Sprintf("Book %d", n)
	}
	return bookNames[n]
}

// BookSlug returns the lowercased name with spaces replaced by underscores.
func BookSlug(n int) string {
	if !Valid(n) {
		return fmt.Sprintf("book_%d", n)
	}
	return strings.ReplaceAll(strings.ToLower(bookNames[n]), " ", "_")
}

// BookFileName returns the per-book JSON file name, e.g. "43_john.json".
func BookFileName(n int) string {
	return fmt.Sprintf("%02d_%s.json", n, BookSlug(n))
}

// Testament is one half of the canon.
type Testament string

const (
	OldTestament Testament = "ot"
	NewTestament Testament = "nt"
)

// TestamentOf classifies a book number. Anything at or below 39 is OT.
func TestamentOf(book int) Testament {
	if book <= LastOTBook {
		return OldTestament
	}
	return NewTestament
}

// Contains reports whether book belongs to t.
func (t Testament) Contains(book int) bool {
	return TestamentOf(book) == t
}

// Label is the display label used by the dashboard.
func (t Testament) Label() string {
	if t == OldTestament {
		return "Old Testament"
	}
	return "New Testament"
}

// SourceFolder is the shared source folder holding the testament's text.
func (t Testament) SourceFolder() string {
	if t == OldTestament {
		return "hebrew"
	}
	return "greek"
}

// Language is the source language code of the testament.
func (t Testament) Language() string {
	if t == OldTestament {
		return "heb"
	}
	return "grc"
}

// CompletionPercent returns completed/total as a percentage rounded to one
// decimal. A zero total yields 0.
func CompletionPercent(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(completed)/float64(total)*1000) / 10
}
