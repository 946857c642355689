package corpus

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/japaniel/scripturelens/pkg/bible"
)

// Top-level folders and files of the export root.
const (
	SourcesDir      = "sources"
	TargetsDir      = "targets"
	AlignmentsDir   = "alignments"
	ConcordanceDir  = "concordance"
	DictionariesDir = "dictionaries"
	IndexFile       = "index.json"

	GreekFolder  = "greek"
	HebrewFolder = "hebrew"
)

// Layout resolves paths under an export root.
type Layout struct {
	Root string
}

// SourceDir is the shared source folder for "greek" or "hebrew".
func (l Layout) SourceDir(folder string) string {
	return filepath.Join(l.Root, SourcesDir, folder)
}

// TargetDir is a project's target text folder.
func (l Layout) TargetDir(projectID string) string {
	return filepath.Join(l.Root, TargetsDir, projectID)
}

// AlignmentDir is a project's alignment folder.
func (l Layout) AlignmentDir(projectID string) string {
	return filepath.Join(l.Root, AlignmentsDir, projectID)
}

// DictionaryDir holds the downloaded lexicons.
func (l Layout) DictionaryDir() string {
	return filepath.Join(l.Root, DictionariesDir)
}

// IndexPath is the manifest path.
func (l Layout) IndexPath() string {
	return filepath.Join(l.Root, IndexFile)
}

// ConcordancePath is the lemma file of a testament, e.g. nt_lemmas.json.
func (l Layout) ConcordancePath(t bible.Testament) string {
	return filepath.Join(l.Root, ConcordanceDir, string(t)+"_lemmas.json")
}

// SearchIndexPath is the optional bleve index of a testament.
func (l Layout) SearchIndexPath(t bible.Testament) string {
	return filepath.Join(l.Root, ConcordanceDir, string(t)+".bleve")
}

// TargetFolderRef and AlignmentFolderRef are the slash-separated folder
// pointers recorded in the index.
func TargetFolderRef(projectID string) string    { return TargetsDir + "/" + projectID }
func AlignmentFolderRef(projectID string) string { return AlignmentsDir + "/" + projectID }

// BookFiles lists the *.json files of dir sorted by name. Names start with
// the zero-padded book number, so this is canonical book order. A missing
// directory yields no files.
func BookFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
