package reader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
	"github.com/japaniel/scripturelens/pkg/export"
)

const projectID = "test-project-full-name"

// exportDemo writes the demo database and exports it under a fresh root.
func exportDemo(t *testing.T) (root, dbPath string) {
	t.Helper()
	dbPath = filepath.Join(t.TempDir(), "demo.sqlite")
	require.NoError(t, db.CreateDemoDatabase(context.Background(), dbPath, "Test Project Full Name"))

	root = filepath.Join(t.TempDir(), "app_data")
	p := export.NewPipeline(root)
	p.SkipDictionaries = true
	report, err := p.Run(context.Background(), []string{dbPath})
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	return root, dbPath
}

func TestChapterView(t *testing.T) {
	root, _ := exportDemo(t)
	r, err := Open(root)
	require.NoError(t, err)

	view, err := r.Chapter(projectID, 43, 1)
	require.NoError(t, err)
	assert.Equal(t, "John", view.BookName)
	assert.Equal(t, bible.NewTestament, view.Testament)
	require.Len(t, view.Verses, 1)

	v := view.Verses[0]
	assert.Equal(t, 1, v.Verse)
	require.Len(t, v.Source, 2)
	assert.Equal(t, "λόγος", v.Source[0].Text)
	require.Len(t, v.Target, 2)
	assert.Equal(t, "God", v.Target[1].Text)
	assert.Len(t, v.Alignments, 2)

	words := v.Interlinear()
	require.Len(t, words, 2)
	assert.Equal(t, []string{"word"}, words[0].Targets)
	assert.Equal(t, "approved", words[0].Status)
	assert.Equal(t, []string{"God"}, words[1].Targets)
	assert.Equal(t, "created", words[1].Status)
}

func TestChapterMissingBookIsEmpty(t *testing.T) {
	root, _ := exportDemo(t)
	r, err := Open(root)
	require.NoError(t, err)

	view, err := r.Chapter(projectID, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, bible.OldTestament, view.Testament)
	assert.Empty(t, view.Verses)
}

func TestChapterUnknownProject(t *testing.T) {
	root, _ := exportDemo(t)
	r, err := Open(root)
	require.NoError(t, err)

	_, err = r.Chapter("nope", 43, 1)
	assert.ErrorIs(t, err, ErrUnknownProject)
	assert.Equal(t, 0, r.Cache().Len())
}

func TestChapterCacheUntilRefresh(t *testing.T) {
	root, _ := exportDemo(t)
	r, err := Open(root)
	require.NoError(t, err)

	first, err := r.Chapter(projectID, 43, 1)
	require.NoError(t, err)

	// Removing the files does not affect a cached chapter.
	require.NoError(t, os.RemoveAll(corpus.Layout{Root: root}.AlignmentDir(projectID)))
	second, err := r.Chapter(projectID, 43, 1)
	require.NoError(t, err)
	assert.Same(t, first, second)
	hits, misses := r.Cache().Stats()
	assert.Equal(t, 1, hits)
	assert.Equal(t, 1, misses)

	require.NoError(t, r.Refresh())
	assert.Equal(t, 0, r.Cache().Len())
	third, err := r.Chapter(projectID, 43, 1)
	require.NoError(t, err)
	assert.Empty(t, third.Verses[0].Alignments)
}

func TestOpenWithoutIndex(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestCompletionFromJSONMatchesDatabase(t *testing.T) {
	root, dbPath := exportDemo(t)

	conn, err := db.Open(dbPath)
	require.NoError(t, err)
	defer conn.Close()

	for _, books := range []string{"", "43", "43:1", "1"} {
		filter, err := bible.ParseBookFilter(books)
		require.NoError(t, err)

		want, err := db.LoadCompletion(context.Background(), conn, filter)
		require.NoError(t, err)
		got, err := CompletionFromJSON(root, projectID, filter)
		require.NoError(t, err)
		assert.Equal(t, want, got, "filter %q", books)
	}
}

func TestCompletionFromJSON(t *testing.T) {
	root, _ := exportDemo(t)

	got, err := CompletionFromJSON(root, projectID, bible.BookFilter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, db.BookCompletion{Book: 43, TotalRequired: 2, Completed: 2}, got[0])
	assert.Equal(t, 100.0, bible.CompletionPercent(got[0].Completed, got[0].TotalRequired))

	_, err = CompletionFromJSON(root, "nope", bible.BookFilter{})
	assert.ErrorIs(t, err, ErrUnknownProject)
}
