package search

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/scripturelens/pkg/concordance"
)

const fixture = `{
  "θεός": {"lemma": "θεός", "gloss": "God", "language": "grc", "frequency": 3,
    "occurrences": [{"text": "θεὸς"}, {"text": "θεοῦ"}, {"text": "θεὸς"}],
    "renderings": {"p1": [{"text": "God", "count": 2}], "p2": [{"text": "deity", "count": 1}]}},
  "λόγος": {"lemma": "λόγος", "gloss": "word", "language": "grc", "frequency": 2,
    "occurrences": [{"text": "Λόγος"}, {"text": "λόγου"}],
    "renderings": {"p1": [{"text": "Word", "count": 2}]}},
  "אֱלֹהִים": {"lemma": "אֱלֹהִים", "gloss": "God", "language": "heb", "frequency": 1,
    "occurrences": [{"text": "אֱלֹהִים"}]},
  "καί": {"lemma": "καί", "gloss": null, "language": "grc", "frequency": 1,
    "occurrences": [{"text": "καὶ"}]}
}`

func loadFixture(t *testing.T) *concordance.Concordance {
	t.Helper()
	c := concordance.New()
	require.NoError(t, json.Unmarshal([]byte(fixture), c))
	return c
}

func TestDocuments(t *testing.T) {
	docs := Documents(loadFixture(t))
	require.Len(t, docs, 4)

	theos := docs[0]
	assert.Equal(t, "grc:θεός", theos.DocID())
	assert.Equal(t, []string{"θεὸς", "θεοῦ"}, theos.Surface)
	assert.Equal(t, []string{"God", "deity"}, theos.Renderings)
	assert.Equal(t, "", docs[3].Gloss)
	assert.Empty(t, docs[3].Renderings)
}

func TestSearchInMemory(t *testing.T) {
	idx, err := BuildIndex("", Documents(loadFixture(t)))
	require.NoError(t, err)
	defer idx.Close()

	tests := []struct {
		name  string
		q     Query
		first string
		count int
	}{
		{"lemma", Query{Text: "λόγος"}, "λόγος", 1},
		{"surface form", Query{Text: "λόγου"}, "λόγος", 1},
		{"gloss", Query{Text: "word"}, "λόγος", 1},
		{"rendering", Query{Text: "deity"}, "θεός", 1},
		{"gloss across languages", Query{Text: "god"}, "", 2},
		{"language filter", Query{Text: "god", Language: "heb"}, "אֱלֹהִים", 1},
		{"no match", Query{Text: "sky"}, "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hits, err := Search(idx, tt.q)
			require.NoError(t, err)
			assert.Len(t, hits, tt.count)
			if tt.first != "" {
				require.NotEmpty(t, hits)
				assert.Equal(t, tt.first, hits[0].Lemma)
			}
		})
	}
}

func TestSearchReturnsStoredFields(t *testing.T) {
	idx, err := BuildIndex("", Documents(loadFixture(t)))
	require.NoError(t, err)
	defer idx.Close()

	hits, err := Search(idx, Query{Text: "θεός", Limit: 1})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, Hit{Lemma: "θεός", Gloss: "God", Language: "grc", Frequency: 3, Score: hits[0].Score}, hits[0])
	assert.Greater(t, hits[0].Score, 0.0)
}

func TestIndexOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nt.bleve")
	idx, err := BuildIndex(path, Documents(loadFixture(t)))
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	// Rebuilding replaces the previous index.
	idx, err = BuildIndex(path, Documents(loadFixture(t))[:1])
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	idx, err = Open(path)
	require.NoError(t, err)
	defer idx.Close()
	n, err := idx.DocCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	_, err = Open(filepath.Join(t.TempDir(), "missing.bleve"))
	assert.Error(t, err)
}
