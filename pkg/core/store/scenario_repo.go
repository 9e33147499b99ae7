// Package store persists saved deal scenarios: the assumption set a user
// settled on and the projection it produced. Postgres (JSONB columns) is the
// primary backend; a directory of JSON files serves local use.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deal_engine/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound is returned when no scenario has the requested ID.
	ErrNotFound = errors.New("scenario not found")
	// ErrInvalidID is returned for IDs that are not UUIDs.
	ErrInvalidID = errors.New("invalid scenario id")
)

// Scenario is one saved assumption set and its projection.
type Scenario struct {
	ID          string                  `json:"id"`
	Name        string                  `json:"name"`
	Assumptions models.Assumptions      `json:"assumptions"`
	Result      models.ProjectionResult `json:"result"`
	UpdatedAt   time.Time               `json:"updated_at"`
}

// ScenarioRepository is implemented by every backend.
type ScenarioRepository interface {
	Save(ctx context.Context, s Scenario) (Scenario, error)
	Load(ctx context.Context, id string) (Scenario, error)
	List(ctx context.Context, limit int) ([]Scenario, error)
}

// Schema creates the scenarios table.
const Schema = `
CREATE TABLE IF NOT EXISTS deal_scenarios (
	id          UUID PRIMARY KEY,
	name        TEXT NOT NULL,
	assumptions JSONB NOT NULL,
	result      JSONB NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);`

// ScenarioRepo stores scenarios in Postgres.
type ScenarioRepo struct {
	pool *pgxpool.Pool
}

// NewScenarioRepo creates a repository on an open pool.
func NewScenarioRepo(pool *pgxpool.Pool) *ScenarioRepo {
	return &ScenarioRepo{pool: pool}
}

// EnsureSchema creates the table if it does not exist.
func (r *ScenarioRepo) EnsureSchema(ctx context.Context) error {
	if r.pool == nil {
		return fmt.Errorf("database pool not configured")
	}
	if _, err := r.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create deal_scenarios: %w", err)
	}
	return nil
}

// Save upserts a scenario, assigning an ID when it has none.
func (r *ScenarioRepo) Save(ctx context.Context, s Scenario) (Scenario, error) {
	if r.pool == nil {
		return Scenario{}, fmt.Errorf("database pool not configured")
	}
	s, err := prepare(s, time.Now())
	if err != nil {
		return Scenario{}, err
	}
	row, err := encodeRow(s)
	if err != nil {
		return Scenario{}, err
	}

	query := `
		INSERT INTO deal_scenarios (id, name, assumptions, result, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET
			name = EXCLUDED.name,
			assumptions = EXCLUDED.assumptions,
			result = EXCLUDED.result,
			updated_at = EXCLUDED.updated_at;
	`
	if _, err := r.pool.Exec(ctx, query, row.id, row.name, row.assumptions, row.result, row.updatedAt); err != nil {
		return Scenario{}, fmt.Errorf("failed to save scenario: %w", err)
	}
	return s, nil
}

// Load retrieves one scenario.
func (r *ScenarioRepo) Load(ctx context.Context, id string) (Scenario, error) {
	if r.pool == nil {
		return Scenario{}, fmt.Errorf("database pool not configured")
	}
	id, err := normalizeID(id)
	if err != nil {
		return Scenario{}, err
	}

	query := `SELECT id::text, name, assumptions, result, updated_at FROM deal_scenarios WHERE id = $1`

	var row scenarioRow
	err = r.pool.QueryRow(ctx, query, id).Scan(&row.id, &row.name, &row.assumptions, &row.result, &row.updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Scenario{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return Scenario{}, fmt.Errorf("failed to load scenario: %w", err)
	}
	return row.decode()
}

// List returns the most recently updated scenarios first.
func (r *ScenarioRepo) List(ctx context.Context, limit int) ([]Scenario, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("database pool not configured")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id::text, name, assumptions, result, updated_at
		FROM deal_scenarios
		ORDER BY updated_at DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	defer rows.Close()

	var out []Scenario
	for rows.Next() {
		var row scenarioRow
		if err := rows.Scan(&row.id, &row.name, &row.assumptions, &row.result, &row.updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scenario: %w", err)
		}
		s, err := row.decode()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ============================================================================
// Row mapping
// ============================================================================

type scenarioRow struct {
	id          string
	name        string
	assumptions []byte
	result      []byte
	updatedAt   time.Time
}

// prepare assigns an ID and timestamp and checks the ID format.
func prepare(s Scenario, now time.Time) (Scenario, error) {
	if s.ID == "" {
		s.ID = uuid.New().String()
	} else {
		id, err := normalizeID(s.ID)
		if err != nil {
			return Scenario{}, err
		}
		s.ID = id
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = fmt.Sprintf("%s scenario", s.Assumptions.IndustryType)
	}
	s.UpdatedAt = now.UTC()
	return s, nil
}

func normalizeID(id string) (string, error) {
	u, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return u.String(), nil
}

func encodeRow(s Scenario) (scenarioRow, error) {
	a, err := json.Marshal(s.Assumptions)
	if err != nil {
		return scenarioRow{}, fmt.Errorf("failed to marshal assumptions: %w", err)
	}
	res, err := json.Marshal(s.Result)
	if err != nil {
		return scenarioRow{}, fmt.Errorf("failed to marshal result: %w", err)
	}
	return scenarioRow{id: s.ID, name: s.Name, assumptions: a, result: res, updatedAt: s.UpdatedAt}, nil
}

func (row scenarioRow) decode() (Scenario, error) {
	s := Scenario{ID: row.id, Name: row.name, UpdatedAt: row.updatedAt}
	if err := json.Unmarshal(row.assumptions, &s.Assumptions); err != nil {
		return Scenario{}, fmt.Errorf("failed to unmarshal assumptions for %s: %w", row.id, err)
	}
	if err := json.Unmarshal(row.result, &s.Result); err != nil {
		return Scenario{}, fmt.Errorf("failed to unmarshal result for %s: %w", row.id, err)
	}
	return s, nil
}
