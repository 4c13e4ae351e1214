package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlite handle with its prepared statements.
type DB struct {
	*sql.DB
	maxOpenConns int
	maxIdleConns int
	maxLifetime  time.Duration

	prepared map[string]*sql.Stmt
	mutex    sync.RWMutex
}

// Open opens (creating if needed) the sqlite database at path and runs
// migrations. Use ":memory:" for a private in-memory database.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on&_busy_timeout=5000", path)
	sqlDB, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{
		DB:           sqlDB,
		maxOpenConns: 8,
		maxIdleConns: 4,
		maxLifetime:  5 * time.Minute,
		prepared:     make(map[string]*sql.Stmt),
	}
	if path == ":memory:" {
		// every connection would otherwise see its own empty database
		db.maxOpenConns, db.maxIdleConns, db.maxLifetime = 1, 1, 0
	}
	sqlDB.SetMaxOpenConns(db.maxOpenConns)
	sqlDB.SetMaxIdleConns(db.maxIdleConns)
	sqlDB.SetConnMaxLifetime(db.maxLifetime)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := db.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	if err := db.initPreparedStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize prepared statements: %w", err)
	}

	slog.Info("Database initialized", "path", path, "max_open_conns", db.maxOpenConns)
	return db, nil
}

func (db *DB) migrate() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS forecasts (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			update_count INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS scenarios (
			forecast_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			label TEXT NOT NULL,
			probability REAL NOT NULL,
			PRIMARY KEY (forecast_id, position),
			UNIQUE (forecast_id, label),
			FOREIGN KEY (forecast_id) REFERENCES forecasts(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS evidence_updates (
			id TEXT PRIMARY KEY,
			forecast_id TEXT NOT NULL,
			description TEXT NOT NULL,
			likelihoods TEXT NOT NULL, -- JSON array
			prior TEXT NOT NULL,       -- JSON array
			posterior TEXT NOT NULL,   -- JSON array
			kl_divergence REAL NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (forecast_id) REFERENCES forecasts(id) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS predictors (
			name TEXT PRIMARY KEY,
			prior REAL NOT NULL,
			created_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS feature_stats (
			predictor TEXT NOT NULL,
			feature TEXT NOT NULL,
			value_kind INTEGER NOT NULL,
			value TEXT NOT NULL,
			positive INTEGER NOT NULL CHECK (positive >= 0),
			total INTEGER NOT NULL CHECK (total > 0 AND positive <= total),
			seq INTEGER NOT NULL,
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (predictor, feature, value_kind, value),
			FOREIGN KEY (predictor) REFERENCES predictors(name) ON DELETE CASCADE
		)`,

		`CREATE TABLE IF NOT EXISTS articles (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			link TEXT NOT NULL UNIQUE,
			source TEXT NOT NULL,
			description TEXT,
			published_at DATETIME,
			scraped_at DATETIME NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS article_sentiment (
			article_id TEXT PRIMARY KEY,
			polarity REAL NOT NULL,
			subjectivity REAL NOT NULL,
			emotion TEXT NOT NULL,
			confidence REAL NOT NULL,
			category TEXT NOT NULL,
			category_confidence REAL NOT NULL,
			topics TEXT,   -- JSON array
			keywords TEXT, -- JSON array
			entities TEXT, -- JSON array
			summary TEXT,
			reasoning TEXT,
			analyzer TEXT NOT NULL,
			analyzed_at DATETIME NOT NULL,
			FOREIGN KEY (article_id) REFERENCES articles(id) ON DELETE CASCADE
		)`,

		`CREATE INDEX IF NOT EXISTS idx_evidence_forecast ON evidence_updates(forecast_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_feature_stats_seq ON feature_stats(predictor, seq)`,
		`CREATE INDEX IF NOT EXISTS idx_articles_scraped ON articles(scraped_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_analyzed ON article_sentiment(analyzed_at)`,
		`CREATE INDEX IF NOT EXISTS idx_sentiment_category ON article_sentiment(category)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute migration: %w", err)
		}
	}
	return nil
}

const (
	stmtInsertArticle     = "insert_article"
	stmtUpsertFeatureStat = "upsert_feature_stat"
	stmtInsertEvidence    = "insert_evidence"
	stmtUpdateScenario    = "update_scenario"
)

func (db *DB) initPreparedStatements() error {
	statements := map[string]string{
		stmtInsertArticle: `INSERT OR IGNORE INTO articles (id, title, link, source, description, published_at, scraped_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,

		stmtUpsertFeatureStat: `INSERT INTO feature_stats (predictor, feature, value_kind, value, positive, total, seq, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM feature_stats WHERE predictor = ?), ?)
			ON CONFLICT(predictor, feature, value_kind, value) DO UPDATE SET
			positive = excluded.positive,
			total = excluded.total,
			updated_at = excluded.updated_at`,

		stmtInsertEvidence: `INSERT INTO evidence_updates (id, forecast_id, description, likelihoods, prior, posterior, kl_divergence, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,

		stmtUpdateScenario: `UPDATE scenarios SET probability = ? WHERE forecast_id = ? AND position = ?`,
	}

	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, query := range statements {
		stmt, err := db.Prepare(query)
		if err != nil {
			return fmt.Errorf("failed to prepare statement %s: %w", name, err)
		}
		db.prepared[name] = stmt
		slog.Debug("Prepared statement initialized", "name", name)
	}
	return nil
}

// GetPreparedStatement retrieves a prepared statement
func (db *DB) GetPreparedStatement(name string) (*sql.Stmt, error) {
	db.mutex.RLock()
	defer db.mutex.RUnlock()

	stmt, exists := db.prepared[name]
	if !exists {
		return nil, fmt.Errorf("prepared statement %s not found", name)
	}
	return stmt, nil
}

// WithTx runs fn inside a transaction, committing when fn returns nil.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Warn("Rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetPoolStats returns database connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.Stats()
	return map[string]interface{}{
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": db.maxOpenConns,
		"max_idle_connections": db.maxIdleConns,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
	}
}

// Close closes the prepared statements and the database
func (db *DB) Close() error {
	db.mutex.Lock()
	defer db.mutex.Unlock()

	for name, stmt := range db.prepared {
		if err := stmt.Close(); err != nil {
			slog.Warn("Failed to close prepared statement", "name", name, "error", err)
		}
	}
	db.prepared = make(map[string]*sql.Stmt)
	return db.DB.Close()
}
