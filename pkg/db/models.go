package db

// Side is which half of an alignment a word belongs to.
type Side string

const (
	SideSource Side = "sources"
	SideTarget Side = "targets"
)

// Position locates a word in the canon.
type Position struct {
	Book    int
	Chapter int
	Verse   int
	Word    int
}

// LexicalItem is a single word or word part.
type LexicalItem struct {
	ID             string
	Side           Side
	Text           string
	After          string
	Lemma          *string
	Gloss          *string
	NormalizedText *string
	Language       string
	Required       bool
	Position       Position
}

// AlignmentLink is a grouping of source words with target words, carrying
// the word text exactly as it was stored on the link.
type AlignmentLink struct {
	ID         string
	SourceText string
	TargetText string
	Origin     string
	Status     string
}

// Corpus is a row of the corpora table.
type Corpus struct {
	ID       string
	Name     string
	FullName string
	Side     string
	Language string
}

// Project is one translation effort backed by one database.
type Project struct {
	ID             string
	DisplayName    string
	Language       string
	SourceDatabase string
	CorpusID       string
	// Fallback is set when no target corpus row was found and the identity
	// was derived from the database file name.
	Fallback bool
}

// Stats are the headline counts of a database.
type Stats struct {
	SourceNT    int
	SourceOT    int
	TargetWords int
	Links       int
}

// BookCompletion is the per-book completion of required source words.
type BookCompletion struct {
	Book          int
	TotalRequired int
	Completed     int
}
