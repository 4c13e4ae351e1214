// Package news fetches headlines from NewsAPI and the Google News front page
// and stores them for sentiment analysis.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/database"
)

// Article is a fetched headline before it is stored.
type Article struct {
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Source      string     `json:"source"`
	Description string     `json:"description,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// Source is anything that yields a batch of articles.
type Source interface {
	Name() string
	Articles(ctx context.Context) ([]Article, error)
}

// ArticleStore is the subset of the article repository used by Store.
type ArticleStore interface {
	InsertArticles(ctx context.Context, articles []database.Article) (database.InsertResult, error)
}

// Store writes articles to store. Articles without a title or URL are counted
// as skipped, like duplicates.
func Store(ctx context.Context, store ArticleStore, articles []Article) (database.InsertResult, error) {
	records := make([]database.Article, 0, len(articles))
	invalid := 0
	for _, a := range articles {
		title := strings.TrimSpace(a.Title)
		link := strings.TrimSpace(a.URL)
		if title == "" || link == "" {
			invalid++
			continue
		}
		rec := database.NewArticle(title, link, a.Source)
		rec.Description = strings.TrimSpace(a.Description)
		rec.PublishedAt = a.PublishedAt
		records = append(records, *rec)
	}

	result, err := store.InsertArticles(ctx, records)
	if err != nil {
		return database.InsertResult{}, err
	}
	result.Skipped += invalid
	return result, nil
}
