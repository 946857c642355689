package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

func demoDB(t *testing.T, dir, name, fullName string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, db.CreateDemoDatabase(context.Background(), path, fullName))
	return path
}

func newTestPipeline(root string) *Pipeline {
	p := NewPipeline(root)
	p.SkipDictionaries = true
	return p
}

func TestPipelineDemoScenario(t *testing.T) {
	data := t.TempDir()
	out := filepath.Join(t.TempDir(), "app_data")
	dbPath := demoDB(t, data, "clear-aligner-demo.sqlite", "Test Project Full Name")

	report, err := newTestPipeline(out).Run(context.Background(), []string{dbPath})
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 0, report.Matches.Unmatched)
	assert.Equal(t, 2, report.Matches.Exact)
	assert.Equal(t, db.Stats{SourceNT: 2, TargetWords: 2, Links: 2}, report.Projects[0].Stats)
	assert.False(t, report.Source.Skipped)
	assert.Equal(t, "test-project-full-name", report.Source.ExportedBy)

	layout := corpus.Layout{Root: out}
	files, err := corpus.BookFiles(layout.AlignmentDir("test-project-full-name"))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "43_john.json", filepath.Base(files[0]))

	var john corpus.AlignmentBook
	require.NoError(t, corpus.ReadJSON(files[0], &john))
	assert.Len(t, john.Records, 2)

	idx, err := corpus.LoadIndex(out)
	require.NoError(t, err)
	entry, ok := idx.Projects["test-project-full-name"]
	require.True(t, ok)
	assert.Equal(t, 2, entry.Stats.AlignmentCount)
	assert.Equal(t, 1, entry.Stats.AlignmentBooks)
	assert.Equal(t, 1, entry.Stats.TargetBooks)
	assert.Equal(t, "Test Project Full Name", entry.Name)
	assert.Equal(t, "eng", entry.Language)
	assert.Equal(t, "clear-aligner-demo.sqlite", entry.SourceDatabase)
	assert.Equal(t, "targets/test-project-full-name", entry.TargetFolder)
	assert.Equal(t, "alignments/test-project-full-name", entry.AlignmentFolder)
	assert.Equal(t, []corpus.BookSummary{{Book: 43, BookName: "John", AlignmentCount: 2, File: "43_john.json"}}, entry.Books)
	assert.Equal(t, "sources/greek", idx.Sources["greek"].Folder)
	assert.Equal(t, "UBSHebrewDic-v0.9.1-en.json", idx.Dictionaries["hebrew"])

	raw, err := os.ReadFile(layout.IndexPath())
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"projects\": {")
}

func TestPipelineIndexCountsMatchBooks(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	paths := []string{
		demoDB(t, data, "clear-aligner-a.sqlite", "Alpha"),
		demoDB(t, data, "clear-aligner-b.sqlite", "Beta"),
		demoDB(t, data, "demo-c.sqlite", "Gamma"),
	}

	p := newTestPipeline(out)
	p.Workers = 3
	var mu sync.Mutex
	var progress []int
	p.OnProgress = func(done, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 3, total)
		progress = append(progress, done)
	}
	report, err := p.Run(context.Background(), paths)
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	assert.Len(t, progress, 3)
	assert.Equal(t, 6, report.Matches.Exact)

	skipped := 0
	for _, r := range report.Projects {
		if r.SourceSkipped {
			skipped++
		}
	}
	assert.Equal(t, 2, skipped, "shared source is exported by exactly one project")

	idx, err := corpus.LoadIndex(out)
	require.NoError(t, err)
	require.Len(t, idx.Projects, 3)
	for id, entry := range idx.Projects {
		sum := 0
		for _, b := range entry.Books {
			sum += b.AlignmentCount
		}
		assert.Equal(t, entry.Stats.AlignmentCount, sum, id)
		assert.Equal(t, entry.Stats.AlignmentBooks, len(entry.Books), id)
	}
}

func TestPipelineSecondRunIsStable(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	dbPath := demoDB(t, data, "clear-aligner-demo.sqlite", "Test Project Full Name")
	layout := corpus.Layout{Root: out}
	sourceFile := filepath.Join(layout.SourceDir("greek"), "43_john.json")
	targetFile := filepath.Join(layout.TargetDir("test-project-full-name"), "43_john.json")
	alignFile := filepath.Join(layout.AlignmentDir("test-project-full-name"), "43_john.json")

	_, err := newTestPipeline(out).Run(context.Background(), []string{dbPath})
	require.NoError(t, err)
	firstTarget := readFile(t, targetFile)
	firstAlign := readFile(t, alignFile)
	firstIndex := readFile(t, layout.IndexPath())

	// Make a rewrite of the source file observable through its mtime.
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(sourceFile, old, old))
	sourceInfo, err := os.Stat(sourceFile)
	require.NoError(t, err)

	report, err := newTestPipeline(out).Run(context.Background(), []string{dbPath})
	require.NoError(t, err)
	assert.True(t, report.Source.Skipped)
	assert.True(t, report.Projects[0].SourceSkipped)
	assert.Equal(t, "", report.IndexDiff)

	after, err := os.Stat(sourceFile)
	require.NoError(t, err)
	assert.Equal(t, sourceInfo.ModTime(), after.ModTime(), "shared source must not be rewritten")
	assert.True(t, bytes.Equal(firstTarget, readFile(t, targetFile)))
	assert.True(t, bytes.Equal(firstAlign, readFile(t, alignFile)))
	assert.True(t, bytes.Equal(firstIndex, readFile(t, layout.IndexPath())))
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func TestPipelineProjectFailuresDoNotStopRun(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	good := demoDB(t, data, "clear-aligner-a.sqlite", "Same Name")
	dup := demoDB(t, data, "clear-aligner-b.sqlite", "Same Name")
	missing := filepath.Join(data, "clear-aligner-missing.sqlite")

	report, err := newTestPipeline(out).Run(context.Background(), []string{dup, missing, good})
	require.NoError(t, err)
	require.Len(t, report.Projects, 3)

	// Results follow sorted path order.
	assert.NoError(t, report.Projects[0].Err)
	assert.Equal(t, "same-name", report.Projects[0].Project.ID)
	assert.ErrorIs(t, report.Projects[1].Err, ErrProjectCollision)
	assert.Error(t, report.Projects[2].Err)
	assert.Nil(t, report.Projects[2].Entry)
	assert.Len(t, report.Failed(), 2)

	idx, err := corpus.LoadIndex(out)
	require.NoError(t, err)
	require.Len(t, idx.Projects, 1)
	assert.Equal(t, "clear-aligner-a.sqlite", idx.Projects["same-name"].SourceDatabase)
}

func TestPipelineUnwritableOutputAborts(t *testing.T) {
	data := t.TempDir()
	dbPath := demoDB(t, data, "clear-aligner-a.sqlite", "A")
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	report, err := newTestPipeline(blocker).Run(context.Background(), []string{dbPath})
	require.ErrorIs(t, err, ErrOutputNotWritable)
	require.NotNil(t, report)
	assert.Empty(t, report.Projects)
}

func TestPipelineCanceledContext(t *testing.T) {
	data := t.TempDir()
	dbPath := demoDB(t, data, "clear-aligner-a.sqlite", "A")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newTestPipeline(t.TempDir()).Run(ctx, []string{dbPath})
	require.NoError(t, err)
	require.Len(t, report.Projects, 1)
	assert.ErrorIs(t, report.Projects[0].Err, context.Canceled)
}

func TestBuildProjectEntryDetectsDivergence(t *testing.T) {
	layout := corpus.Layout{Root: t.TempDir()}
	dir := layout.AlignmentDir("p")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, corpus.WriteJSON(filepath.Join(dir, "43_john.json"), corpus.AlignmentBook{
		Type: corpus.AlignmentTypeTranslation, Book: 43, BookName: "John",
		Records: []corpus.AlignmentRecord{{ID: "a"}, {ID: "b"}, {ID: "c"}},
	}))
	p := db.Project{ID: "p", DisplayName: "P", Language: "eng", SourceDatabase: "p.sqlite"}

	entry, err := BuildProjectEntry(layout, p, AlignmentResult{Books: 1, Records: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, entry.Stats.AlignmentCount)

	entry, err = BuildProjectEntry(layout, p, AlignmentResult{Books: 1, Records: 2})
	assert.ErrorIs(t, err, ErrVerification)
	assert.Equal(t, 3, entry.Stats.AlignmentCount, "entry reflects the files on disk")
}

func TestDiffIndex(t *testing.T) {
	prev := []byte("{\n  \"a\": 1,\n  \"b\": 2\n}")
	next := []byte("{\n  \"a\": 1,\n  \"b\": 3\n}")

	diff, err := DiffIndex(prev, next)
	require.NoError(t, err)
	assert.Contains(t, diff, "--- index.json (previous)")
	assert.Contains(t, diff, "-  \"b\": 2")
	assert.Contains(t, diff, "+  \"b\": 3")

	diff, err = DiffIndex(prev, prev)
	require.NoError(t, err)
	assert.Equal(t, "", diff)
}

func TestReportWrite(t *testing.T) {
	r := &Report{
		RunID:     "run-1",
		OutputDir: "out",
		Projects: []ProjectResult{
			{DBPath: "/d/a.sqlite", Project: db.Project{ID: "alpha"}, Alignments: AlignmentResult{Books: 1, Records: 1200},
				Stats: db.Stats{SourceNT: 137554, SourceOT: 0, TargetWords: 2000, Links: 1200}},
		},
		Source:  SourceResult{ExportedBy: "alpha", Stats: TextStats{Files: 2, Words: 13750, UnknownLanguage: map[string]int{"lat": 3}}},
		Matches: MatchStats{Exact: 1200, Unmatched: 800},
	}
	var buf bytes.Buffer
	r.Write(&buf)
	s := buf.String()
	assert.Contains(t, s, "Projects: 1 exported, 0 failed")
	assert.Contains(t, s, "1,200 alignments")
	assert.Contains(t, s, "13,750 words")
	assert.Contains(t, s, "database: 137,554 New Testament and 0 Old Testament source words, 2,000 target words, 1,200 links")
	assert.Contains(t, s, `unknown language "lat": 3 words`)
	assert.Contains(t, s, "800 unmatched")
	assert.True(t, strings.Contains(s, "WARNING: 40.0% of links dropped"), s)
}

func TestPipelineBracketedProjectName(t *testing.T) {
	data := t.TempDir()
	out := t.TempDir()
	dbPath := demoDB(t, data, "clear-aligner-draft.sqlite", "Demo [draft]")

	report, err := newTestPipeline(out).Run(context.Background(), []string{dbPath})
	require.NoError(t, err)
	require.Empty(t, report.Failed())
	assert.Equal(t, "demo-draft", report.Projects[0].Project.ID)

	idx, err := corpus.LoadIndex(out)
	require.NoError(t, err)
	entry, ok := idx.Projects["demo-draft"]
	require.True(t, ok)
	assert.Equal(t, 2, entry.Stats.AlignmentCount)
	assert.Equal(t, 1, entry.Stats.AlignmentBooks)
	assert.Equal(t, 1, entry.Stats.TargetBooks)
}

func TestBuildProjectEntryReadsBracketedFolders(t *testing.T) {
	layout := corpus.Layout{Root: filepath.Join(t.TempDir(), "out[1]")}
	p := db.Project{ID: "p[x]", DisplayName: "P"}
	book := corpus.AlignmentBook{Type: corpus.AlignmentTypeTranslation, Book: 43, BookName: "John",
		Records: []corpus.AlignmentRecord{{ID: "l1"}}}
	require.NoError(t, os.MkdirAll(layout.AlignmentDir(p.ID), 0o755))
	require.NoError(t, corpus.WriteJSON(filepath.Join(layout.AlignmentDir(p.ID), "43_john.json"), book))

	entry, err := BuildProjectEntry(layout, p, AlignmentResult{Books: 1, Records: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Stats.AlignmentCount)
}
