// Package corpus defines the exported JSON tree: its file layout and the
// document shapes written by the exporter and read by the concordance
// builder and the dashboard.
package corpus

// SourceWord is a word of the shared source text.
type SourceWord struct {
	ID       string  `json:"id"`
	Text     string  `json:"text"`
	Lemma    *string `json:"lemma"`
	Gloss    *string `json:"gloss"`
	After    string  `json:"after"`
	Position int     `json:"position"`
	Required bool    `json:"required"`
}

// TargetWord is a word of one project's translation.
type TargetWord struct {
	ID         string  `json:"id"`
	Text       string  `json:"text"`
	Normalized *string `json:"normalized"`
	Gloss      string  `json:"gloss"`
	After      string  `json:"after"`
	Position   int     `json:"position"`
}

// Verse holds the words of one verse in position order.
type Verse[W any] struct {
	Verse int `json:"verse"`
	Words []W `json:"words"`
}

// Chapter holds verses in ascending order.
type Chapter[W any] struct {
	Chapter int        `json:"chapter"`
	Verses  []Verse[W] `json:"verses"`
}

// Book is one per-book text file.
type Book[W any] struct {
	Book     int          `json:"book"`
	BookName string       `json:"bookName"`
	Language string       `json:"language"`
	Chapters []Chapter[W] `json:"chapters"`
}

// SourceBook and TargetBook are the two text file kinds.
type (
	SourceBook = Book[SourceWord]
	TargetBook = Book[TargetWord]
)

// AlignmentRecord is one resolved link.
type AlignmentRecord struct {
	ID         string   `json:"id"`
	SourceText []string `json:"sourceText"`
	TargetText []string `json:"targetText"`
	SourceIDs  []string `json:"sourceIds"`
	Origin     string   `json:"origin"`
	Status     string   `json:"status"`
}

// AlignmentTypeTranslation is the only alignment file type produced.
const AlignmentTypeTranslation = "translation"

// AlignmentBook is one per-book alignment file.
type AlignmentBook struct {
	Type     string            `json:"type"`
	Book     int               `json:"book"`
	BookName string            `json:"bookName"`
	Records  []AlignmentRecord `json:"records"`
}

// FolderRef points at a folder relative to the export root.
type FolderRef struct {
	Folder string `json:"folder"`
}

// ProjectStats are the per-project counters of the index.
type ProjectStats struct {
	TargetBooks    int `json:"targetBooks"`
	AlignmentBooks int `json:"alignmentBooks"`
	AlignmentCount int `json:"alignmentCount"`
}

// BookSummary describes one alignment file of a project.
type BookSummary struct {
	Book           int    `json:"book"`
	BookName       string `json:"bookName"`
	AlignmentCount int    `json:"alignmentCount"`
	File           string `json:"file"`
}

// ProjectEntry is a project's record in the index.
type ProjectEntry struct {
	Name            string        `json:"name"`
	Language        string        `json:"language"`
	SourceDatabase  string        `json:"sourceDatabase"`
	TargetFolder    string        `json:"targetFolder"`
	AlignmentFolder string        `json:"alignmentFolder"`
	Stats           ProjectStats  `json:"stats"`
	Books           []BookSummary `json:"books"`
}

// Index is the manifest of one export run.
type Index struct {
	Sources      map[string]FolderRef    `json:"sources"`
	Dictionaries map[string]string       `json:"dictionaries"`
	Projects     map[string]ProjectEntry `json:"projects"`
}

// NewIndex returns an index with the fixed source pointers and no projects.
func NewIndex(dictionaries map[string]string) *Index {
	return &Index{
		Sources: map[string]FolderRef{
			GreekFolder:  {Folder: SourcesDir + "/" + GreekFolder},
			HebrewFolder: {Folder: SourcesDir + "/" + HebrewFolder},
		},
		Dictionaries: dictionaries,
		Projects:     map[string]ProjectEntry{},
	}
}
