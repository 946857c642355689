// Package textnorm splits the denormalized word text stored on alignment
// links and derives filesystem-safe identifiers from display names.
package textnorm

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Grouping describes how the words of a link were encoded in its text.
type Grouping int

const (
	// Single is one word.
	Single Grouping = iota
	// Discontinuous is a comma-joined list of non-adjacent words.
	Discontinuous
	// Phrase is a space-joined contiguous span.
	Phrase
)

func (g Grouping) String() string {
	switch g {
	case Discontinuous:
		return "discontinuous"
	case Phrase:
		return "phrase"
	default:
		return "single"
	}
}

// Split tokenizes link text. A comma always wins over a space, so a
// discontinuous grouping is never phrase-split.
func Split(text string) ([]string, Grouping) {
	if text == "" {
		return nil, Single
	}
	if strings.Contains(text, ",") {
		parts := strings.Split(text, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts, Discontinuous
	}
	if strings.Contains(text, " ") {
		return strings.Fields(text), Phrase
	}
	return []string{strings.TrimSpace(text)}, Single
}

// Tokenize is Split without the grouping.
func Tokenize(text string) []string {
	tokens, _ := Split(text)
	return tokens
}

var (
	reSlugDrop   = regexp.MustCompile(`[(),]`)
	reSlugUnsafe = regexp.MustCompile(`[/\\:*?"<>|\[\]\x00-\x1f]`)
	reSlugDashes = regexp.MustCompile(`-{2,}`)
)

// Slugify turns a project display name into a stable directory name:
// lowercased, spaces become '-', parentheses and commas are dropped, and
// path or shell-hostile characters are removed. Letters outside ASCII are
// kept.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, " ", "-")
	s = reSlugDrop.ReplaceAllString(s, "")
	s = reSlugUnsafe.ReplaceAllString(s, "")
	s = reSlugDashes.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-.")
	return s
}

// DatabaseStem strips the directory, the ".sqlite" extension and the
// "clear-aligner-" prefix from a database path.
func DatabaseStem(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".sqlite")
	return strings.TrimPrefix(base, "clear-aligner-")
}
