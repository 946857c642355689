package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	sq "github.com/Masterminds/squirrel"

	"github.com/japaniel/scripturelens/pkg/bible"
	"github.com/japaniel/scripturelens/pkg/textnorm"
)

// DBExecutor is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DBExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ErrNoCorpus is returned by TargetCorpus when the database has no target
// corpus row.
var ErrNoCorpus = errors.New("no target corpus row")

// CompletedStatuses are the link statuses that count a required source word
// as done.
var CompletedStatuses = []string{"approved", "created"}

// ListCorpora returns every row of the corpora table in storage order.
func ListCorpora(ctx context.Context, db DBExecutor) ([]Corpus, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, full_name, side, language_id FROM corpora`)
	if err != nil {
		return nil, fmt.Errorf("list corpora: %w", err)
	}
	defer rows.Close()
	var out []Corpus
	for rows.Next() {
		var c Corpus
		var id, name, fullName, side, lang sql.NullString
		if err := rows.Scan(&id, &name, &fullName, &side, &lang); err != nil {
			return nil, fmt.Errorf("scan corpus: %w", err)
		}
		c.ID = id.String
		c.Name = name.String
		c.FullName = fullName.String
		c.Side = side.String
		c.Language = lang.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// TargetCorpus returns the first corpus whose side starts with "target".
func TargetCorpus(ctx context.Context, db DBExecutor) (Corpus, error) {
	corpora, err := ListCorpora(ctx, db)
	if err != nil {
		return Corpus{}, err
	}
	for _, c := range corpora {
		if strings.HasPrefix(c.Side, "target") {
			return c, nil
		}
	}
	return Corpus{}, ErrNoCorpus
}

// ResolveProject derives the project identity of the database at dbPath.
// The id is a slug of the target corpus display name, so it survives the
// database file being renamed or replaced. When no usable corpus row exists
// the identity falls back to the file name; this never fails.
func ResolveProject(ctx context.Context, db DBExecutor, dbPath string) Project {
	p := Project{SourceDatabase: baseName(dbPath)}
	c, err := TargetCorpus(ctx, db)
	if err == nil {
		display := c.FullName
		if display == "" {
			display = c.Name
		}
		if id := textnorm.Slugify(display); id != "" {
			p.ID = id
			p.DisplayName = display
			p.Language = c.Language
			p.CorpusID = c.ID
			return p
		}
	}

	short := textnorm.DatabaseStem(dbPath)
	if utf8.RuneCountInString(short) > 8 {
		short = string([]rune(short)[:8])
	}
	short = textnorm.Slugify(short)
	if short == "" {
		short = "unknown"
	}
	p.ID = "project-" + short
	p.DisplayName = "Project " + short
	p.Language = "unknown"
	p.Fallback = true
	return p
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}

func sideCondition(col string, side Side) sq.Sqlizer {
	if side == SideTarget {
		return sq.Like{col: "target%"}
	}
	return sq.Eq{col: string(SideSource)}
}

// filterCondition compiles a book filter into a WHERE clause over the given
// book and chapter columns. It returns nil for an unrestricted filter.
func filterCondition(bookCol, chapterCol string, filter bible.BookFilter) sq.Sqlizer {
	if filter.Empty() {
		return nil
	}
	or := sq.Or{}
	for _, b := range filter.Books() {
		chapters := filter.Chapters(b)
		if chapters == nil {
			or = append(or, sq.Eq{bookCol: b})
			continue
		}
		or = append(or, sq.And{sq.Eq{bookCol: b}, sq.Eq{chapterCol: chapters}})
	}
	return or
}

// StreamLexicalItems calls fn for every word on the given side that passes
// filter, ordered by book, chapter, verse and word position. Returning an
// error from fn stops the scan and is returned as is.
func StreamLexicalItems(ctx context.Context, db DBExecutor, side Side, filter bible.BookFilter, fn func(LexicalItem) error) error {
	q := sq.Select(
		"position_book", "position_chapter", "position_verse", "position_word",
		"id", "text", "after", "lemma", "gloss", "normalized_text", "language_id", "required",
	).
		From("words_or_parts").
		Where(sideCondition("side", side)).
		OrderBy("position_book", "position_chapter", "position_verse", "position_word")
	if cond := filterCondition("position_book", "position_chapter", filter); cond != nil {
		q = q.Where(cond)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build lexical query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("query lexical items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var it LexicalItem
		var text, after, lemma, gloss, normalized, lang sql.NullString
		var required sql.NullInt64
		if err := rows.Scan(
			&it.Position.Book, &it.Position.Chapter, &it.Position.Verse, &it.Position.Word,
			&it.ID, &text, &after, &lemma, &gloss, &normalized, &lang, &required,
		); err != nil {
			return fmt.Errorf("scan lexical item: %w", err)
		}
		it.Side = side
		it.Text = text.String
		it.After = after.String
		it.Lemma = nullableString(lemma)
		it.Gloss = nullableString(gloss)
		it.NormalizedText = nullableString(normalized)
		it.Language = lang.String
		it.Required = required.Valid && required.Int64 != 0
		if err := fn(it); err != nil {
			return err
		}
	}
	return rows.Err()
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// hasLinkText reports whether the links table carries the denormalized
// sources_text/targets_text columns.
func hasLinkText(ctx context.Context, db DBExecutor) (bool, error) {
	rows, err := db.QueryContext(ctx, `PRAGMA table_info(links)`)
	if err != nil {
		return false, err
	}
	defer rows.Close()
	cols := map[string]bool{}
	for rows.Next() {
		var cid int
		var colName, ctype string
		var notnull, pk int
		var dflt any
		if err := rows.Scan(&cid, &colName, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, err
		}
		cols[colName] = true
	}
	if err := rows.Err(); err != nil {
		return false, err
	}
	return cols["sources_text"] && cols["targets_text"], nil
}

const linksWithTextQuery = `SELECT id, sources_text, targets_text, origin, status FROM links`

// Older schemas only have the join tables; rebuild the text comma-joined in
// reading order.
const linksFromJoinQuery = `
SELECT l.id,
	(SELECT GROUP_CONCAT(text, ',') FROM (
		SELECT w.text FROM links__source_words lsw
		JOIN words_or_parts w ON w.id = lsw.word_id
		WHERE lsw.link_id = l.id
		ORDER BY w.position_book, w.position_chapter, w.position_verse, w.position_word)),
	(SELECT GROUP_CONCAT(text, ',') FROM (
		SELECT w.text FROM links__target_words ltw
		JOIN words_or_parts w ON w.id = ltw.word_id
		WHERE ltw.link_id = l.id
		ORDER BY w.position_book, w.position_chapter, w.position_verse, w.position_word)),
	l.origin, l.status
FROM links l`

// StreamAlignmentLinks calls fn for every link in storage order.
func StreamAlignmentLinks(ctx context.Context, db DBExecutor, fn func(AlignmentLink) error) error {
	withText, err := hasLinkText(ctx, db)
	if err != nil {
		return fmt.Errorf("inspect links table: %w", err)
	}
	query := linksFromJoinQuery
	if withText {
		query = linksWithTextQuery
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query links: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l AlignmentLink
		var src, tgt, origin, status sql.NullString
		if err := rows.Scan(&l.ID, &src, &tgt, &origin, &status); err != nil {
			return fmt.Errorf("scan link: %w", err)
		}
		l.SourceText = src.String
		l.TargetText = tgt.String
		l.Origin = origin.String
		l.Status = status.String
		if err := fn(l); err != nil {
			return err
		}
	}
	return rows.Err()
}

// GetStats returns the headline word and link counts of a database.
func GetStats(ctx context.Context, db DBExecutor) (Stats, error) {
	var s Stats
	counts := []struct {
		dst   *int
		query string
	}{
		{&s.SourceNT, `SELECT COUNT(*) FROM words_or_parts WHERE side = 'sources' AND language_id = 'grc'`},
		{&s.SourceOT, `SELECT COUNT(*) FROM words_or_parts WHERE side = 'sources' AND language_id = 'heb'`},
		{&s.TargetWords, `SELECT COUNT(*) FROM words_or_parts WHERE side LIKE 'target%'`},
		{&s.Links, `SELECT COUNT(*) FROM links`},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return Stats{}, fmt.Errorf("count: %w", err)
		}
	}
	return s, nil
}

// LoadCompletion returns, per book, the number of required source words and
// how many of them are covered by a link whose status is one of
// CompletedStatuses. Books are in ascending order.
func LoadCompletion(ctx context.Context, db DBExecutor, filter bible.BookFilter) ([]BookCompletion, error) {
	statuses := make([]any, len(CompletedStatuses))
	for i, s := range CompletedStatuses {
		statuses[i] = s
	}
	completed := sq.Expr(
		"COUNT(DISTINCT CASE WHEN l.status IN ("+sq.Placeholders(len(statuses))+") THEN w.id END)",
		statuses...)
	q := sq.Select("w.position_book", "COUNT(DISTINCT w.id)").
		Column(completed).
		From("words_or_parts w").
		LeftJoin("links__source_words lsw ON w.id = lsw.word_id").
		LeftJoin("links l ON lsw.link_id = l.id").
		Where(sideCondition("w.side", SideSource)).
		Where(sq.Eq{"w.required": 1}).
		GroupBy("w.position_book").
		OrderBy("w.position_book")
	if cond := filterCondition("w.position_book", "w.position_chapter", filter); cond != nil {
		q = q.Where(cond)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build completion query: %w", err)
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query completion: %w", err)
	}
	defer rows.Close()

	var out []BookCompletion
	for rows.Next() {
		var bc BookCompletion
		if err := rows.Scan(&bc.Book, &bc.TotalRequired, &bc.Completed); err != nil {
			return nil, fmt.Errorf("scan completion: %w", err)
		}
		out = append(out, bc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
