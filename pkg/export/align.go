package export

import (
	"context"
	"log/slog"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/corpus"
	"github.com/japaniel/scripturelens/pkg/db"
	"github.com/japaniel/scripturelens/pkg/textnorm"
)

// Tier is the lookup that resolved a link's book.
type Tier int

const (
	TierExact Tier = iota
	TierCaseInsensitive
	TierLemma
	TierUnmatched
)

func (t Tier) String() string {
	switch t {
	case TierExact:
		return "exact"
	case TierCaseInsensitive:
		return "case_insensitive"
	case TierLemma:
		return "lemma"
	default:
		return "unmatched"
	}
}

type sourceRef struct {
	id   string
	book int
}

// Matcher resolves link tokens to source words. Each table keeps the first
// word seen for a key; homographs are not disambiguated. A Matcher is not
// safe for concurrent use.
type Matcher struct {
	exact map[string]sourceRef
	lower map[string]sourceRef
	lemma map[string]sourceRef
	// fold lowercases with full Unicode rules, including Greek final sigma.
	fold cases.Caser
}

// NewMatcher returns an empty matcher.
func NewMatcher() *Matcher {
	return &Matcher{
		exact: make(map[string]sourceRef),
		lower: make(map[string]sourceRef),
		lemma: make(map[string]sourceRef),
		fold:  cases.Lower(language.Und),
	}
}

// LoadMatcher indexes every source word of the database, regardless of any
// book filter, so links outside the exported books still resolve.
func LoadMatcher(ctx context.Context, conn db.DBExecutor) (*Matcher, error) {
	m := NewMatcher()
	err := db.StreamLexicalItems(ctx, conn, db.SideSource, bible.BookFilter{}, func(it db.LexicalItem) error {
		m.Add(it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Add indexes one source word.
func (m *Matcher) Add(it db.LexicalItem) {
	ref := sourceRef{id: it.ID, book: it.Position.Book}
	if it.Text != "" {
		putFirst(m.exact, it.Text, ref)
		putFirst(m.lower, m.fold.String(it.Text), ref)
	}
	if it.Lemma != nil && *it.Lemma != "" {
		putFirst(m.lemma, *it.Lemma, ref)
	}
}

func putFirst(m map[string]sourceRef, key string, ref sourceRef) {
	if _, ok := m[key]; !ok {
		m[key] = ref
	}
}

// Size is the number of distinct surface forms indexed.
func (m *Matcher) Size() int { return len(m.exact) }

func (m *Matcher) lookup(token string) (sourceRef, Tier) {
	if ref, ok := m.exact[token]; ok {
		return ref, TierExact
	}
	if ref, ok := m.lower[m.fold.String(token)]; ok {
		return ref, TierCaseInsensitive
	}
	if ref, ok := m.lemma[token]; ok {
		return ref, TierLemma
	}
	return sourceRef{}, TierUnmatched
}

// Resolution is a link resolved against the source text.
type Resolution struct {
	Book      int
	SourceIDs []string
	// Tier is the lookup that matched the first resolving token.
	Tier Tier
}

// Resolve matches every token and takes the book from the first token, in
// written order, that matched. ok is false when no token matched.
func (m *Matcher) Resolve(tokens []string) (res Resolution, ok bool) {
	res = Resolution{SourceIDs: []string{}, Tier: TierUnmatched}
	for _, tok := range tokens {
		ref, tier := m.lookup(tok)
		if tier == TierUnmatched {
			continue
		}
		if !ok {
			res.Book = ref.book
			res.Tier = tier
			ok = true
		}
		res.SourceIDs = append(res.SourceIDs, ref.id)
	}
	return res, ok
}

// MatchStats tallies link resolution for a run.
type MatchStats struct {
	Exact           int
	CaseInsensitive int
	Lemma           int
	Unmatched       int
	// EmptySource counts links with no source text, which are invalid.
	EmptySource int
}

func (s *MatchStats) record(t Tier) {
	switch t {
	case TierExact:
		s.Exact++
	case TierCaseInsensitive:
		s.CaseInsensitive++
	case TierLemma:
		s.Lemma++
	default:
		s.Unmatched++
	}
}

// Matched is the number of links written.
func (s MatchStats) Matched() int { return s.Exact + s.CaseInsensitive + s.Lemma }

// DropRate is the share of resolvable links that matched nothing.
func (s MatchStats) DropRate() float64 {
	total := s.Matched() + s.Unmatched
	if total == 0 {
		return 0
	}
	return float64(s.Unmatched) / float64(total)
}

// Add accumulates o into s.
func (s *MatchStats) Add(o MatchStats) {
	s.Exact += o.Exact
	s.CaseInsensitive += o.CaseInsensitive
	s.Lemma += o.Lemma
	s.Unmatched += o.Unmatched
	s.EmptySource += o.EmptySource
}

// AlignmentResult is what ExportAlignments wrote.
type AlignmentResult struct {
	Books   int
	Records int
	Stats   MatchStats
}

// ExportAlignments resolves every link of the database and replaces the
// per-book alignment files in dir.
func ExportAlignments(ctx context.Context, conn db.DBExecutor, m *Matcher, dir string, logger *slog.Logger) (AlignmentResult, error) {
	logger = loggerOr(logger)
	var res AlignmentResult
	byBook := make(map[int][]corpus.AlignmentRecord)

	err := db.StreamAlignmentLinks(ctx, conn, func(l db.AlignmentLink) error {
		sourceTokens := textnorm.Tokenize(l.SourceText)
		if len(sourceTokens) == 0 {
			res.Stats.EmptySource++
			logger.Debug("Skipping link without source text", "link", l.ID)
			return nil
		}
		resolved, ok := m.Resolve(sourceTokens)
		res.Stats.record(resolved.Tier)
		if !ok {
			logger.Debug("Unmatched link", "link", l.ID, "source_text", l.SourceText)
			return nil
		}
		targetTokens := textnorm.Tokenize(l.TargetText)
		if targetTokens == nil {
			targetTokens = []string{}
		}
		byBook[resolved.Book] = append(byBook[resolved.Book], corpus.AlignmentRecord{
			ID:         l.ID,
			SourceText: sourceTokens,
			TargetText: targetTokens,
			SourceIDs:  resolved.SourceIDs,
			Origin:     l.Origin,
			Status:     l.Status,
		})
		return nil
	})
	if err != nil {
		return res, err
	}

	if err := clearBookFiles(dir); err != nil {
		return res, err
	}
	books := make([]corpus.AlignmentBook, 0, len(byBook))
	for _, b := range sortedKeys(byBook) {
		books = append(books, corpus.AlignmentBook{
			Type:     corpus.AlignmentTypeTranslation,
			Book:     b,
			BookName: bible.BookName(b),
			Records:  byBook[b],
		})
		res.Records += len(byBook[b])
	}
	if err := writeAlignmentBooks(dir, books); err != nil {
		return res, err
	}
	res.Books = len(books)

	logger.Info("Exported alignments",
		"books", res.Books,
		"records", res.Records,
		"exact", res.Stats.Exact,
		"case_insensitive", res.Stats.CaseInsensitive,
		"lemma", res.Stats.Lemma,
		"unmatched", res.Stats.Unmatched)
	return res, nil
}

func writeAlignmentBooks(dir string, books []corpus.AlignmentBook) error {
	if len(books) == 0 {
		return nil
	}
	if err := mkdir(dir); err != nil {
		return err
	}
	for _, b := range books {
		if err := corpus.WriteJSON(bookPath(dir, b.Book), b); err != nil {
			return err
		}
	}
	return nil
}
