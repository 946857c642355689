package concordance

import (
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/japaniel/scripturelens/pkg/bible"
)

// Summary describes a built concordance.
type Summary struct {
	Testament   bible.Testament
	Lemmas      int
	Occurrences int
	// MissingGloss counts lemmas whose gloss is null or empty.
	MissingGloss int
	Top          []*Entry
}

// Summarize computes the summary of r with the n most frequent lemmas.
func (r *Result) Summarize(n int) Summary {
	s := Summary{Testament: r.Testament, Lemmas: r.Concordance.Len()}
	entries := r.Concordance.Entries()
	for _, e := range entries {
		s.Occurrences += e.Frequency
		if e.Gloss == nil || strings.TrimSpace(*e.Gloss) == "" {
			s.MissingGloss++
		}
	}
	if n > len(entries) {
		n = len(entries)
	}
	s.Top = entries[:n]
	return s
}

// Write prints the summary with grouped thousands.
func (s Summary) Write(w io.Writer) {
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%s Summary:\n", strings.ToUpper(string(s.Testament)))
	p.Fprintf(w, "  Unique lemmas: %d\n", s.Lemmas)
	p.Fprintf(w, "  Total occurrences: %d\n", s.Occurrences)
	if s.MissingGloss > 0 {
		p.Fprintf(w, "  Lemmas without gloss: %d\n", s.MissingGloss)
	}
	if len(s.Top) == 0 {
		return
	}
	p.Fprintf(w, "  Top %d lemmas:\n", len(s.Top))
	for _, e := range s.Top {
		gloss := ""
		if e.Gloss != nil {
			gloss = *e.Gloss
		}
		p.Fprintf(w, "    %s: %d (%s)\n", e.Lemma, e.Frequency, gloss)
	}
}
