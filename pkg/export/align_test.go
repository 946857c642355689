package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	// Ensure single connection to avoid separate in-memory DBs per connection.
	conn.SetMaxOpenConns(1)
	require.NoError(t, db.InitDB(conn))
	t.Cleanup(func() { conn.Close() })
	return conn
}

func ptr(s string) *string { return &s }

func source(id, text, lemma string, book, chapter, verse, word int) db.LexicalItem {
	it := db.LexicalItem{
		ID: id, Side: db.SideSource, Text: text, Language: "grc", Required: true,
		Position: db.Position{Book: book, Chapter: chapter, Verse: verse, Word: word},
	}
	if lemma != "" {
		it.Lemma = ptr(lemma)
	}
	return it
}

func TestMatcherTiers(t *testing.T) {
	m := NewMatcher()
	m.Add(source("s1", "θεός", "θεός", 43, 1, 1, 1))
	m.Add(source("s2", "Λόγος", "λόγος", 43, 1, 1, 2))
	m.Add(source("s3", "ἀνθρώπου", "ἄνθρωπος", 40, 8, 20, 5))

	tests := []struct {
		token string
		id    string
		tier  Tier
	}{
		{"θεός", "s1", TierExact},
		{"λόγος", "s2", TierCaseInsensitive},
		{"ΛΌΓΟΣ", "s2", TierCaseInsensitive},
		{"ἄνθρωπος", "s3", TierLemma},
		{"κόσμος", "", TierUnmatched},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			ref, tier := m.lookup(tt.token)
			assert.Equal(t, tt.tier, tier)
			assert.Equal(t, tt.id, ref.id)
		})
	}
}

func TestResolveUppercaseFinalSigma(t *testing.T) {
	m := NewMatcher()
	m.Add(source("s1", "λόγος", "", 43, 1, 1, 1))

	res, ok := m.Resolve([]string{"ΛΌΓΟΣ"})
	require.True(t, ok)
	assert.Equal(t, TierCaseInsensitive, res.Tier)
	assert.Equal(t, []string{"s1"}, res.SourceIDs)
	assert.Equal(t, 43, res.Book)
}

func TestResolveViaLemmaTier(t *testing.T) {
	// The surface form differs from the token by inflection, so neither the
	// exact nor the lowercase table matches; the lemma does.
	m := NewMatcher()
	m.Add(source("s1", "λόγου", "λόγος", 43, 1, 1, 1))

	res, ok := m.Resolve([]string{"λόγος"})
	require.True(t, ok)
	assert.Equal(t, TierLemma, res.Tier)
	assert.Equal(t, 43, res.Book)
	assert.Equal(t, []string{"s1"}, res.SourceIDs)

	var stats MatchStats
	stats.record(res.Tier)
	assert.Equal(t, 1, stats.Lemma)
	assert.Equal(t, 0, stats.Unmatched)
}

func TestResolveBookFromFirstMatchingToken(t *testing.T) {
	m := NewMatcher()
	m.Add(source("s1", "λόγος", "λόγος", 43, 1, 1, 1))
	m.Add(source("s2", "θεός", "θεός", 1, 1, 1, 3))

	res, ok := m.Resolve([]string{"zzz", "θεός", "λόγος"})
	require.True(t, ok)
	assert.Equal(t, 1, res.Book)
	assert.Equal(t, TierExact, res.Tier)
	assert.Equal(t, []string{"s2", "s1"}, res.SourceIDs)

	res, ok = m.Resolve([]string{"zzz", "yyy"})
	assert.False(t, ok)
	assert.Equal(t, TierUnmatched, res.Tier)
	assert.Empty(t, res.SourceIDs)
}

func TestMatcherFirstOccurrenceWins(t *testing.T) {
	m := NewMatcher()
	m.Add(source("first", "καί", "καί", 40, 1, 2, 4))
	m.Add(source("second", "καί", "καί", 43, 1, 1, 9))
	m.Add(source("empty", "", "", 43, 1, 1, 10))

	res, ok := m.Resolve([]string{"καί"})
	require.True(t, ok)
	assert.Equal(t, 40, res.Book)
	assert.Equal(t, []string{"first"}, res.SourceIDs)
	assert.Equal(t, 1, m.Size())
	_, tier := m.lookup("")
	assert.Equal(t, TierUnmatched, tier)
}

func TestMatchStatsDropRate(t *testing.T) {
	var s MatchStats
	assert.Equal(t, 0.0, s.DropRate())

	s = MatchStats{Exact: 5, CaseInsensitive: 1, Lemma: 0, Unmatched: 4}
	assert.InDelta(t, 0.4, s.DropRate(), 1e-9)
	assert.Equal(t, 6, s.Matched())

	var total MatchStats
	total.Add(s)
	total.Add(MatchStats{Lemma: 2, EmptySource: 1})
	assert.Equal(t, MatchStats{Exact: 5, CaseInsensitive: 1, Lemma: 2, Unmatched: 4, EmptySource: 1}, total)
}

func TestExportAlignmentsGroupsByBook(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	require.NoError(t, db.SeedDemo(ctx, conn, "Test Project Full Name"))
	require.NoError(t, db.InsertWord(ctx, conn, source("sources_3", "ἀρχῇ", "ἀρχή", 1, 1, 1, 1)))
	for _, l := range []db.AlignmentLink{
		{ID: "link3", SourceText: "ἀρχῇ", TargetText: "beginning", Origin: "manual", Status: "approved"},
		{ID: "link4", SourceText: "λόγος,θεός", TargetText: "", Origin: "manual", Status: "needsReview"},
		{ID: "link5", SourceText: "κόσμος", TargetText: "world", Origin: "machine", Status: "created"},
		{ID: "link6", SourceText: "", TargetText: "orphan", Origin: "machine", Status: "created"},
	} {
		require.NoError(t, db.InsertLink(ctx, conn, l, nil, nil))
	}

	m, err := LoadMatcher(ctx, conn)
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "alignments", "p")
	res, err := ExportAlignments(ctx, conn, m, dir, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Books)
	assert.Equal(t, 4, res.Records)
	assert.Equal(t, MatchStats{Exact: 4, Unmatched: 1, EmptySource: 1}, res.Stats)

	files, err := corpus.BookFiles(dir)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, "01_genesis.json", filepath.Base(files[0]))
	assert.Equal(t, "43_john.json", filepath.Base(files[1]))

	var john corpus.AlignmentBook
	require.NoError(t, corpus.ReadJSON(files[1], &john))
	assert.Equal(t, corpus.AlignmentTypeTranslation, john.Type)
	assert.Equal(t, "John", john.BookName)
	require.Len(t, john.Records, 3)
	assert.Equal(t, "link1", john.Records[0].ID)
	assert.Equal(t, []string{"sources_1"}, john.Records[0].SourceIDs)

	discontinuous := john.Records[2]
	assert.Equal(t, "link4", discontinuous.ID)
	assert.Equal(t, []string{"λόγος", "θεός"}, discontinuous.SourceText)
	assert.Equal(t, []string{"sources_1", "sources_2"}, discontinuous.SourceIDs)
	assert.Equal(t, []string{}, discontinuous.TargetText)

	raw, err := os.ReadFile(files[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"targetText": []`)
}

func TestExportAlignmentsRemovesStaleBooks(t *testing.T) {
	ctx := context.Background()
	conn := newTestDB(t)
	require.NoError(t, db.SeedDemo(ctx, conn, "P"))

	dir := t.TempDir()
	stale := filepath.Join(dir, "02_exodus.json")
	require.NoError(t, os.WriteFile(stale, []byte(`{"records":[{}]}`), 0o644))

	m, err := LoadMatcher(ctx, conn)
	require.NoError(t, err)
	_, err = ExportAlignments(ctx, conn, m, dir, nil)
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "stale book file should be removed")
}
