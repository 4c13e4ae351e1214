package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// FeatureRepository persists named predictors and their feature counts.
type FeatureRepository struct {
	db *DB
}

func NewFeatureRepository(db *DB) *FeatureRepository {
	return &FeatureRepository{db: db}
}

// EnsurePredictor creates the predictor with prior if it does not exist and
// returns the stored prior.
func (r *FeatureRepository) EnsurePredictor(ctx context.Context, name string, prior float64) (float64, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO predictors (name, prior, created_at) VALUES (?, ?, ?)
	`, name, prior, nowUTC())
	if err != nil {
		return 0, fmt.Errorf("failed to create predictor: %w", err)
	}

	var stored float64
	if err := r.db.QueryRowContext(ctx, `SELECT prior FROM predictors WHERE name = ?`, name).Scan(&stored); err != nil {
		return 0, fmt.Errorf("failed to read predictor: %w", err)
	}
	return stored, nil
}

// Prior returns the stored prior of a predictor.
func (r *FeatureRepository) Prior(ctx context.Context, name string) (float64, error) {
	var prior float64
	err := r.db.QueryRowContext(ctx, `SELECT prior FROM predictors WHERE name = ?`, name).Scan(&prior)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read predictor: %w", err)
	}
	return prior, nil
}

// Upsert writes a count pair, replacing counts already stored for the same
// (feature, value). The original recording order is kept.
func (r *FeatureRepository) Upsert(ctx context.Context, s FeatureStat) error {
	stmt, err := r.db.GetPreparedStatement(stmtUpsertFeatureStat)
	if err != nil {
		return err
	}
	_, err = stmt.ExecContext(ctx,
		s.Predictor, s.Feature, s.ValueKind, s.Value, s.Positive, s.Total, s.Predictor, nowUTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to store feature stat: %w", err)
	}
	return nil
}

// List returns a predictor's stats in recording order.
func (r *FeatureRepository) List(ctx context.Context, predictor string) ([]FeatureStat, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT predictor, feature, value_kind, value, positive, total, updated_at
		FROM feature_stats WHERE predictor = ?
		ORDER BY seq ASC
	`, predictor)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature stats: %w", err)
	}
	defer rows.Close()

	var out []FeatureStat
	for rows.Next() {
		var s FeatureStat
		if err := rows.Scan(&s.Predictor, &s.Feature, &s.ValueKind, &s.Value, &s.Positive, &s.Total, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan feature stat: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Predictors lists stored predictor names.
func (r *FeatureRepository) Predictors(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM predictors ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list predictors: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
