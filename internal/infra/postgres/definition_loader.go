package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dental-quest-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// DefinitionLoader loads assessment definition JSONB from Postgres.
type DefinitionLoader struct {
	pool *pgxpool.Pool
}

func NewDefinitionLoader(pool *pgxpool.Pool) *DefinitionLoader {
	return &DefinitionLoader{pool: pool}
}

func (l *DefinitionLoader) LoadDefinition(ctx context.Context, assessmentID string) (domain.Definition, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM assessments WHERE id=$1`, assessmentID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Definition{}, domain.ErrAssessmentNotFound
	}
	if err != nil {
		return domain.Definition{}, fmt.Errorf("load assessment: %w", err)
	}
	return decodeDefinition(raw)
}

func (l *DefinitionLoader) ListDefinitions(ctx context.Context) ([]domain.Definition, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM assessments ORDER BY kind, id`)
	if err != nil {
		return nil, fmt.Errorf("list assessments: %w", err)
	}
	defer rows.Close()

	var out []domain.Definition
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan assessment: %w", err)
		}
		def, err := decodeDefinition(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

// UpsertDefinition stores or replaces a definition; used by the seed command.
func (l *DefinitionLoader) UpsertDefinition(ctx context.Context, def domain.Definition) error {
	raw, err := json.Marshal(def)
	if err != nil {
		return fmt.Errorf("marshal assessment: %w", err)
	}
	_, err = l.pool.Exec(ctx, `
INSERT INTO assessments (id, kind, data) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET kind = EXCLUDED.kind, data = EXCLUDED.data, updated_at = now()`,
		def.ID, string(def.Kind), raw)
	if err != nil {
		return fmt.Errorf("upsert assessment %s: %w", def.ID, err)
	}
	return nil
}

func decodeDefinition(raw []byte) (domain.Definition, error) {
	var def domain.Definition
	if err := json.Unmarshal(raw, &def); err != nil {
		return domain.Definition{}, fmt.Errorf("unmarshal assessment: %w", err)
	}
	return def, nil
}
