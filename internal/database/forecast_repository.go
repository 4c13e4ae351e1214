package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ForecastRepository persists forecasts, their scenarios and evidence log.
type ForecastRepository struct {
	db *DB
}

func NewForecastRepository(db *DB) *ForecastRepository {
	return &ForecastRepository{db: db}
}

// Create stores a forecast with all of its scenarios.
func (r *ForecastRepository) Create(ctx context.Context, f *Forecast) error {
	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO forecasts (id, name, update_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, f.ID, f.Name, f.UpdateCount, f.CreatedAt, f.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create forecast: %w", err)
		}

		for _, s := range f.Scenarios {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO scenarios (forecast_id, position, label, probability)
				VALUES (?, ?, ?, ?)
			`, f.ID, s.Position, s.Label, s.Probability)
			if err != nil {
				return fmt.Errorf("failed to create scenario %q: %w", s.Label, err)
			}
		}
		return nil
	})
}

// Get loads a forecast and its scenarios in position order.
func (r *ForecastRepository) Get(ctx context.Context, id string) (*Forecast, error) {
	var f Forecast
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, update_count, created_at, updated_at
		FROM forecasts WHERE id = ?
	`, id).Scan(&f.ID, &f.Name, &f.UpdateCount, &f.CreatedAt, &f.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query forecast: %w", err)
	}

	scenarios, err := r.scenarios(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Scenarios = scenarios
	return &f, nil
}

func (r *ForecastRepository) scenarios(ctx context.Context, forecastID string) ([]Scenario, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT position, label, probability
		FROM scenarios WHERE forecast_id = ?
		ORDER BY position ASC
	`, forecastID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scenarios: %w", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		var s Scenario
		if err := rows.Scan(&s.Position, &s.Label, &s.Probability); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// List returns all forecasts, most recently updated first.
func (r *ForecastRepository) List(ctx context.Context) ([]Forecast, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, update_count, created_at, updated_at
		FROM forecasts ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list forecasts: %w", err)
	}

	var forecasts []Forecast
	for rows.Next() {
		var f Forecast
		if err := rows.Scan(&f.ID, &f.Name, &f.UpdateCount, &f.CreatedAt, &f.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan forecast: %w", err)
		}
		forecasts = append(forecasts, f)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range forecasts {
		scenarios, err := r.scenarios(ctx, forecasts[i].ID)
		if err != nil {
			return nil, err
		}
		forecasts[i].Scenarios = scenarios
	}
	return forecasts, nil
}

// ApplyUpdate replaces the forecast's probabilities with update.Posterior
// and appends update to the evidence log in one transaction.
func (r *ForecastRepository) ApplyUpdate(ctx context.Context, update *EvidenceUpdate) error {
	updateScenario, err := r.db.GetPreparedStatement(stmtUpdateScenario)
	if err != nil {
		return err
	}
	insertEvidence, err := r.db.GetPreparedStatement(stmtInsertEvidence)
	if err != nil {
		return err
	}

	likelihoods, err := json.Marshal(update.Likelihoods)
	if err != nil {
		return err
	}
	prior, err := json.Marshal(update.Prior)
	if err != nil {
		return err
	}
	posterior, err := json.Marshal(update.Posterior)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE forecasts SET update_count = update_count + 1, updated_at = ? WHERE id = ?
		`, update.CreatedAt, update.ForecastID)
		if err != nil {
			return fmt.Errorf("failed to touch forecast: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrNotFound
		}

		stmt := tx.StmtContext(ctx, updateScenario)
		for i, p := range update.Posterior {
			if _, err := stmt.ExecContext(ctx, p, update.ForecastID, i); err != nil {
				return fmt.Errorf("failed to update scenario %d: %w", i, err)
			}
		}

		_, err = tx.StmtContext(ctx, insertEvidence).ExecContext(ctx,
			update.ID, update.ForecastID, update.Description,
			string(likelihoods), string(prior), string(posterior),
			update.KLDivergence, update.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to record evidence: %w", err)
		}
		return nil
	})
}

// History returns up to limit evidence updates, oldest first.
func (r *ForecastRepository) History(ctx context.Context, forecastID string, limit int) ([]EvidenceUpdate, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, forecast_id, description, likelihoods, prior, posterior, kl_divergence, created_at
		FROM evidence_updates WHERE forecast_id = ?
		ORDER BY created_at ASC, rowid ASC LIMIT ?
	`, forecastID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query evidence: %w", err)
	}
	defer rows.Close()

	var out []EvidenceUpdate
	for rows.Next() {
		var (
			u                             EvidenceUpdate
			likelihoods, prior, posterior string
		)
		if err := rows.Scan(&u.ID, &u.ForecastID, &u.Description, &likelihoods, &prior, &posterior, &u.KLDivergence, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan evidence: %w", err)
		}
		if err := unmarshalAll(
			[]string{likelihoods, prior, posterior},
			&u.Likelihoods, &u.Prior, &u.Posterior,
		); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// Delete removes a forecast together with its scenarios and evidence.
func (r *ForecastRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM forecasts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete forecast: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func unmarshalAll(raw []string, targets ...*[]float64) error {
	for i, s := range raw {
		if err := json.Unmarshal([]byte(s), targets[i]); err != nil {
			return fmt.Errorf("failed to decode stored vector: %w", err)
		}
	}
	return nil
}

func nowUTC() time.Time { return time.Now().UTC() }
