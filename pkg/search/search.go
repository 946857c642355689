// Package search keeps a bleve index over concordance lemmas so a lemma can
// be found by its form, gloss or how a project translated it.
package search

import (
	"fmt"
	"os"
	"sort"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/japaniel/scripturelens/pkg/concordance"
)

// Indexed field names.
const (
	FieldLemma      = "lemma"
	FieldGloss      = "gloss"
	FieldLanguage   = "language"
	FieldFrequency  = "frequency"
	FieldSurface    = "surface"
	FieldRenderings = "renderings"

	// MaxBatchSize is the maximum number of documents per batch.
	MaxBatchSize = 100
	// DefaultLimit is the number of hits returned when Query.Limit is 0.
	DefaultLimit = 20
)

// LemmaDocument is what gets indexed for one lemma.
type LemmaDocument struct {
	Lemma     string `json:"lemma"`
	Gloss     string `json:"gloss"`
	Language  string `json:"language"`
	Frequency int    `json:"frequency"`
	// Surface lists the distinct inflected forms seen in the text.
	Surface []string `json:"surface"`
	// Renderings lists the distinct target texts across all projects.
	Renderings []string `json:"renderings"`
}

// DocID identifies a lemma across both testaments.
func (d LemmaDocument) DocID() string { return d.Language + ":" + d.Lemma }

// Documents converts a concordance into index documents.
func Documents(c *concordance.Concordance) []LemmaDocument {
	entries := c.Entries()
	docs := make([]LemmaDocument, 0, len(entries))
	for _, e := range entries {
		d := LemmaDocument{Lemma: e.Lemma, Language: e.Language, Frequency: e.Frequency}
		if e.Gloss != nil {
			d.Gloss = *e.Gloss
		}
		d.Surface = distinct(len(e.Occurrences), func(yield func(string)) {
			for _, o := range e.Occurrences {
				yield(o.Text)
			}
		})
		pids := make([]string, 0, len(e.Renderings))
		for pid := range e.Renderings {
			pids = append(pids, pid)
		}
		sort.Strings(pids)
		d.Renderings = distinct(0, func(yield func(string)) {
			for _, pid := range pids {
				for _, r := range e.Renderings[pid] {
					yield(r.Text)
				}
			}
		})
		docs = append(docs, d)
	}
	return docs
}

func distinct(capacity int, each func(yield func(string))) []string {
	seen := make(map[string]bool, capacity)
	out := make([]string, 0, capacity)
	each(func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	})
	return out
}

// NewMapping creates the index mapping for lemma documents.
func NewMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	lemma := bleve.NewTextFieldMapping()
	lemma.Analyzer = keyword.Name
	lemma.Store = true
	doc.AddFieldMappingsAt(FieldLemma, lemma)

	gloss := bleve.NewTextFieldMapping()
	gloss.Analyzer = standard.Name
	gloss.Store = true
	doc.AddFieldMappingsAt(FieldGloss, gloss)

	lang := bleve.NewTextFieldMapping()
	lang.Analyzer = keyword.Name
	lang.Store = true
	doc.AddFieldMappingsAt(FieldLanguage, lang)

	freq := bleve.NewNumericFieldMapping()
	freq.Store = true
	doc.AddFieldMappingsAt(FieldFrequency, freq)

	surface := bleve.NewTextFieldMapping()
	surface.Analyzer = keyword.Name
	doc.AddFieldMappingsAt(FieldSurface, surface)

	renderings := bleve.NewTextFieldMapping()
	renderings.Analyzer = standard.Name
	doc.AddFieldMappingsAt(FieldRenderings, renderings)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	m.DefaultAnalyzer = standard.Name
	return m
}

// BuildIndex indexes docs into a new index at path, replacing any index
// already there. An empty path builds an in-memory index.
func BuildIndex(path string, docs []LemmaDocument) (bleve.Index, error) {
	var (
		idx bleve.Index
		err error
	)
	if path == "" {
		idx, err = bleve.NewMemOnly(NewMapping())
	} else {
		if err := os.RemoveAll(path); err != nil {
			return nil, err
		}
		idx, err = bleve.New(path, NewMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	batch := idx.NewBatch()
	for _, d := range docs {
		if err := batch.Index(d.DocID(), d); err != nil {
			idx.Close()
			return nil, fmt.Errorf("index lemma %q: %w", d.Lemma, err)
		}
		if batch.Size() >= MaxBatchSize {
			if err := idx.Batch(batch); err != nil {
				idx.Close()
				return nil, err
			}
			batch = idx.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			idx.Close()
			return nil, err
		}
	}
	return idx, nil
}

// Open opens an existing index for reading.
func Open(path string) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	return idx, nil
}

// Query is a lemma search.
type Query struct {
	Text string
	// Language restricts hits to "grc" or "heb" when set.
	Language string
	Limit    int
}

// Hit is one matching lemma.
type Hit struct {
	Lemma     string
	Gloss     string
	Language  string
	Frequency int
	Score     float64
}

func buildQuery(q Query) query.Query {
	lemma := bleve.NewTermQuery(q.Text)
	lemma.SetField(FieldLemma)
	lemma.SetBoost(10)

	surface := bleve.NewTermQuery(q.Text)
	surface.SetField(FieldSurface)
	surface.SetBoost(5)

	gloss := bleve.NewMatchQuery(q.Text)
	gloss.SetField(FieldGloss)
	gloss.SetBoost(3)

	renderings := bleve.NewMatchQuery(q.Text)
	renderings.SetField(FieldRenderings)

	text := bleve.NewDisjunctionQuery(lemma, surface, gloss, renderings)
	if q.Language == "" {
		return text
	}
	lang := bleve.NewTermQuery(q.Language)
	lang.SetField(FieldLanguage)
	return bleve.NewConjunctionQuery(text, lang)
}

// Search runs q against idx, best match first.
func Search(idx bleve.Index, q Query) ([]Hit, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	req := bleve.NewSearchRequest(buildQuery(q))
	req.Size = q.Limit
	req.Fields = []string{FieldLemma, FieldGloss, FieldLanguage, FieldFrequency}

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{Score: h.Score}
		hit.Lemma, _ = h.Fields[FieldLemma].(string)
		hit.Gloss, _ = h.Fields[FieldGloss].(string)
		hit.Language, _ = h.Fields[FieldLanguage].(string)
		if f, ok := h.Fields[FieldFrequency].(float64); ok {
			hit.Frequency = int(f)
		}
		hits = append(hits, hit)
	}
	return hits, nil
}
