package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// InsertCorpus writes a corpora row.
func InsertCorpus(ctx context.Context, db Execer, c Corpus) error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("corpus id must be non-empty")
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO corpora (id, name, full_name, side, language_id) VALUES (?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.FullName, c.Side, c.Language)
	return err
}

// InsertWord writes a words_or_parts row.
func InsertWord(ctx context.Context, db Execer, it LexicalItem) error {
	if strings.TrimSpace(it.ID) == "" {
		return fmt.Errorf("word id must be non-empty")
	}
	required := 0
	if it.Required {
		required = 1
	}
	_, err := db.ExecContext(ctx, `INSERT INTO words_or_parts
		(id, side, text, after, lemma, gloss, normalized_text, language_id, required,
		 position_book, position_chapter, position_verse, position_word)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, string(it.Side), it.Text, it.After, it.Lemma, it.Gloss, it.NormalizedText, it.Language, required,
		it.Position.Book, it.Position.Chapter, it.Position.Verse, it.Position.Word)
	return err
}

// InsertLink writes a links row and its join rows.
func InsertLink(ctx context.Context, db Execer, l AlignmentLink, sourceIDs, targetIDs []string) error {
	if strings.TrimSpace(l.ID) == "" {
		return fmt.Errorf("link id must be non-empty")
	}
	if _, err := db.ExecContext(ctx,
		`INSERT INTO links (id, sources_text, targets_text, origin, status) VALUES (?, ?, ?, ?, ?)`,
		l.ID, l.SourceText, l.TargetText, l.Origin, l.Status); err != nil {
		return err
	}
	for _, id := range sourceIDs {
		if _, err := db.ExecContext(ctx, `INSERT INTO links__source_words (link_id, word_id) VALUES (?, ?)`, l.ID, id); err != nil {
			return err
		}
	}
	for _, id := range targetIDs {
		if _, err := db.ExecContext(ctx, `INSERT INTO links__target_words (link_id, word_id) VALUES (?, ?)`, l.ID, id); err != nil {
			return err
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

// SeedDemo fills an initialized database with a tiny John 1:1 project: one
// target corpus, two Greek source words, two English target words and two
// links.
func SeedDemo(ctx context.Context, conn *sql.DB, fullName string) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback() // ignored if committed
	}()

	if err := InsertCorpus(ctx, tx, Corpus{ID: "corp1", Name: "TestProject", FullName: fullName, Side: "targets", Language: "eng"}); err != nil {
		return fmt.Errorf("seed corpus: %w", err)
	}
	words := []LexicalItem{
		{ID: "sources_1", Side: SideSource, Text: "λόγος", Lemma: strPtr("λόγος"), Gloss: strPtr("word"), NormalizedText: strPtr("λόγος"), Language: "grc", Required: true, Position: Position{43, 1, 1, 1}},
		{ID: "sources_2", Side: SideSource, Text: "θεός", Lemma: strPtr("θεός"), Gloss: strPtr("God"), NormalizedText: strPtr("θεός"), Language: "grc", Required: true, Position: Position{43, 1, 1, 2}},
		{ID: "targets_1", Side: SideTarget, Text: "word", NormalizedText: strPtr("word"), Language: "eng", Position: Position{43, 1, 1, 1}},
		{ID: "targets_2", Side: SideTarget, Text: "God", NormalizedText: strPtr("god"), Language: "eng", Position: Position{43, 1, 1, 2}},
	}
	for _, w := range words {
		if err := InsertWord(ctx, tx, w); err != nil {
			return fmt.Errorf("seed word %s: %w", w.ID, err)
		}
	}
	links := []struct {
		link     AlignmentLink
		src, tgt string
	}{
		{AlignmentLink{ID: "link1", SourceText: "λόγος", TargetText: "word", Origin: "manual", Status: "approved"}, "sources_1", "targets_1"},
		{AlignmentLink{ID: "link2", SourceText: "θεός", TargetText: "God", Origin: "machine", Status: "created"}, "sources_2", "targets_2"},
	}
	for _, l := range links {
		if err := InsertLink(ctx, tx, l.link, []string{l.src}, []string{l.tgt}); err != nil {
			return fmt.Errorf("seed link %s: %w", l.link.ID, err)
		}
	}
	return tx.Commit()
}

// CreateDemoDatabase writes a new demo database at path.
func CreateDemoDatabase(ctx context.Context, path, fullName string) error {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := InitDB(conn); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return SeedDemo(ctx, conn, fullName)
}
