// Package concordance inverts the exported source text into a lemma index
// and attaches, per project, how each lemma was rendered in the aligned
// translation.
package concordance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Occurrence is one place a lemma appears in the source text.
type Occurrence struct {
	Book     int    `json:"book"`
	BookName string `json:"bookName"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Position int    `json:"position"`
	Text     string `json:"text"`
	WordID   string `json:"wordId"`
	Required bool   `json:"required"`
}

// Rendering is a target text and how many links used it.
type Rendering struct {
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// Entry is one lemma's aggregate record. Frequency always equals
// len(Occurrences).
type Entry struct {
	Lemma       string                 `json:"lemma"`
	Gloss       *string                `json:"gloss"`
	Language    string                 `json:"language"`
	Frequency   int                    `json:"frequency"`
	Occurrences []Occurrence           `json:"occurrences"`
	Renderings  map[string][]Rendering `json:"renderings,omitempty"`

	counts map[string]*renderingCounts
}

type renderingCounts struct {
	order  []string
	counts map[string]int
}

func (e *Entry) addOccurrence(o Occurrence) {
	e.Occurrences = append(e.Occurrences, o)
	e.Frequency = len(e.Occurrences)
}

func (e *Entry) startProject(projectID string) {
	if e.counts == nil {
		e.counts = make(map[string]*renderingCounts)
	}
	if _, ok := e.counts[projectID]; !ok {
		e.counts[projectID] = &renderingCounts{counts: make(map[string]int)}
	}
}

func (e *Entry) addRendering(projectID, text string) {
	e.startProject(projectID)
	rc := e.counts[projectID]
	if _, seen := rc.counts[text]; !seen {
		rc.order = append(rc.order, text)
	}
	rc.counts[text]++
}

// finalize converts the counters into lists sorted by count, descending,
// with first-seen order between equal counts.
func (e *Entry) finalize() {
	if len(e.counts) == 0 {
		return
	}
	e.Renderings = make(map[string][]Rendering, len(e.counts))
	for pid, rc := range e.counts {
		list := make([]Rendering, 0, len(rc.order))
		for _, text := range rc.order {
			list = append(list, Rendering{Text: text, Count: rc.counts[text]})
		}
		sortRenderings(list)
		e.Renderings[pid] = list
	}
	e.counts = nil
}

func sortRenderings(list []Rendering) {
	sort.SliceStable(list, func(i, j int) bool { return list[i].Count > list[j].Count })
}

// Concordance is the lemma index of one testament. Entries keep the order
// in which their lemma was first seen.
type Concordance struct {
	entries map[string]*Entry
	order   []string
}

// New returns an empty concordance.
func New() *Concordance {
	return &Concordance{entries: make(map[string]*Entry)}
}

func (c *Concordance) upsert(lemma string) *Entry {
	e, ok := c.entries[lemma]
	if !ok {
		e = &Entry{Lemma: lemma, Occurrences: []Occurrence{}}
		c.entries[lemma] = e
		c.order = append(c.order, lemma)
	}
	return e
}

// Get returns the entry for lemma.
func (c *Concordance) Get(lemma string) (*Entry, bool) {
	e, ok := c.entries[lemma]
	return e, ok
}

// Len is the number of distinct lemmas.
func (c *Concordance) Len() int { return len(c.order) }

// Entries returns the entries sorted by frequency, descending; equal
// frequencies keep first-seen order.
func (c *Concordance) Entries() []*Entry {
	out := make([]*Entry, len(c.order))
	for i, lemma := range c.order {
		out[i] = c.entries[lemma]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Frequency > out[j].Frequency })
	return out
}

// MarshalJSON encodes the concordance as an object keyed by lemma, in
// Entries order.
func (c *Concordance) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c.Entries() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := encode(e.Lemma)
		if err != nil {
			return nil, err
		}
		val, err := encode(e)
		if err != nil {
			return nil, fmt.Errorf("encode lemma %q: %w", e.Lemma, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// UnmarshalJSON decodes an object keyed by lemma, keeping file order.
func (c *Concordance) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("concordance: expected object, got %v", tok)
	}
	*c = *New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		lemma, ok := tok.(string)
		if !ok {
			return fmt.Errorf("concordance: expected lemma key, got %v", tok)
		}
		var e Entry
		if err := dec.Decode(&e); err != nil {
			return fmt.Errorf("concordance: lemma %q: %w", lemma, err)
		}
		if _, dup := c.entries[lemma]; !dup {
			c.order = append(c.order, lemma)
		}
		c.entries[lemma] = &e
	}
	_, err = dec.Token()
	return err
}

// Load reads a concordance file written by Save.
func Load(path string) (*Concordance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := New()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, err
	}
	return c, nil
}
