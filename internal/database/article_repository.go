package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// ArticleRepository stores news articles and their sentiment analysis.
type ArticleRepository struct {
	db *DB
}

func NewArticleRepository(db *DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// InsertArticles stores articles in one transaction. Articles whose link is
// already present are skipped.
func (r *ArticleRepository) InsertArticles(ctx context.Context, articles []Article) (InsertResult, error) {
	var result InsertResult
	if len(articles) == 0 {
		return result, nil
	}

	insert, err := r.db.GetPreparedStatement(stmtInsertArticle)
	if err != nil {
		return result, err
	}

	err = r.db.WithTx(ctx, func(tx *sql.Tx) error {
		stmt := tx.StmtContext(ctx, insert)
		for _, a := range articles {
			res, err := stmt.ExecContext(ctx,
				a.ID, a.Title, a.Link, a.Source, nullString(a.Description), a.PublishedAt, a.ScrapedAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert article %q: %w", a.Link, err)
			}
			if n, _ := res.RowsAffected(); n == 0 {
				result.Skipped++
			} else {
				result.Inserted++
			}
		}
		return nil
	})
	if err != nil {
		return InsertResult{}, err
	}
	return result, nil
}

// Pending returns up to limit articles without sentiment, newest first.
func (r *ArticleRepository) Pending(ctx context.Context, limit int) ([]Article, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.link, a.source, a.description, a.published_at, a.scraped_at
		FROM articles a
		LEFT JOIN article_sentiment s ON s.article_id = a.id
		WHERE s.article_id IS NULL
		ORDER BY a.scraped_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending articles: %w", err)
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SaveSentiment stores or replaces the analysis of one article.
func (r *ArticleRepository) SaveSentiment(ctx context.Context, s ArticleSentiment) error {
	topics, err := json.Marshal(nonNil(s.Topics))
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(nonNil(s.Keywords))
	if err != nil {
		return err
	}
	entities, err := json.Marshal(nonNil(s.Entities))
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO article_sentiment (
			article_id, polarity, subjectivity, emotion, confidence, category,
			category_confidence, topics, keywords, entities, summary, reasoning,
			analyzer, analyzed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.ArticleID, s.Polarity, s.Subjectivity, s.Emotion, s.Confidence, s.Category,
		s.CategoryConfidence, string(topics), string(keywords), string(entities),
		nullString(s.Summary), nullString(s.Reasoning), s.Analyzer, s.AnalyzedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save sentiment for %s: %w", s.ArticleID, err)
	}
	return nil
}

// Analyzed returns analyzed articles whose analysis is not older than since,
// newest first. A zero since returns everything.
func (r *ArticleRepository) Analyzed(ctx context.Context, since time.Time, limit int) ([]AnalyzedArticle, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.title, a.link, a.source, a.description, a.published_at, a.scraped_at,
			s.polarity, s.subjectivity, s.emotion, s.confidence, s.category,
			s.category_confidence, s.topics, s.keywords, s.entities, s.summary,
			s.reasoning, s.analyzer, s.analyzed_at
		FROM articles a
		JOIN article_sentiment s ON s.article_id = a.id
		WHERE s.analyzed_at >= ?
		ORDER BY s.analyzed_at DESC
		LIMIT ?
	`, since.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyzed articles: %w", err)
	}
	defer rows.Close()

	var out []AnalyzedArticle
	for rows.Next() {
		var (
			aa                         AnalyzedArticle
			description                sql.NullString
			publishedAt                sql.NullTime
			topics, keywords, entities sql.NullString
			summary, reasoning         sql.NullString
		)
		s := &aa.Sentiment
		err := rows.Scan(
			&aa.ID, &aa.Title, &aa.Link, &aa.Source, &description, &publishedAt, &aa.ScrapedAt,
			&s.Polarity, &s.Subjectivity, &s.Emotion, &s.Confidence, &s.Category,
			&s.CategoryConfidence, &topics, &keywords, &entities, &summary,
			&reasoning, &s.Analyzer, &s.AnalyzedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analyzed article: %w", err)
		}
		aa.Description = description.String
		if publishedAt.Valid {
			t := publishedAt.Time
			aa.PublishedAt = &t
		}
		s.ArticleID = aa.ID
		s.Summary = summary.String
		s.Reasoning = reasoning.String
		if s.Topics, err = decodeStrings(topics); err != nil {
			return nil, err
		}
		if s.Keywords, err = decodeStrings(keywords); err != nil {
			return nil, err
		}
		if s.Entities, err = decodeStrings(entities); err != nil {
			return nil, err
		}
		out = append(out, aa)
	}
	return out, rows.Err()
}

// Counts returns the number of stored and analyzed articles.
func (r *ArticleRepository) Counts(ctx context.Context) (total, analyzed int, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT (SELECT COUNT(*) FROM articles), (SELECT COUNT(*) FROM article_sentiment)
	`).Scan(&total, &analyzed)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count articles: %w", err)
	}
	return total, analyzed, nil
}

// DeleteOlderThan removes articles scraped before cutoff together with their
// sentiment and returns the number of articles removed.
func (r *ArticleRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM article_sentiment
			WHERE article_id IN (SELECT id FROM articles WHERE scraped_at < ?)
		`, cutoff); err != nil {
			return fmt.Errorf("failed to delete old sentiment: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM articles WHERE scraped_at < ?`, cutoff)
		if err != nil {
			return fmt.Errorf("failed to delete old articles: %w", err)
		}
		deleted, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (Article, error) {
	var (
		a           Article
		description sql.NullString
		publishedAt sql.NullTime
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Link, &a.Source, &description, &publishedAt, &a.ScrapedAt); err != nil {
		return Article{}, fmt.Errorf("failed to scan article: %w", err)
	}
	a.Description = description.String
	if publishedAt.Valid {
		t := publishedAt.Time
		a.PublishedAt = &t
	}
	return a, nil
}

func decodeStrings(raw sql.NullString) ([]string, error) {
	out := []string{}
	if !raw.Valid || raw.String == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw.String), &out); err != nil {
		return nil, fmt.Errorf("failed to decode stored list: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(xs []string) []string {
	if xs == nil {
		return []string{}
	}
	return xs
}
