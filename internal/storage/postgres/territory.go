package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/subjugate/internal/game/territory"
)

// TerritoryRepository persists territory control.
type TerritoryRepository struct {
	db *pgxpool.Pool
}

// NewTerritoryRepository creates a TerritoryRepository backed by the given pool.
func NewTerritoryRepository(db *pgxpool.Pool) *TerritoryRepository {
	return &TerritoryRepository{db: db}
}

// LoadControl returns every persisted control record ordered by territory id.
func (r *TerritoryRepository) LoadControl(ctx context.Context) ([]territory.Control, error) {
	rows, err := r.db.Query(ctx, `
		SELECT territory_id, controller_id, controller_name, capture_points, captured_at
		FROM territory_control ORDER BY territory_id`)
	if err != nil {
		return nil, fmt.Errorf("listing territory control: %w", err)
	}
	defer rows.Close()

	var out []territory.Control
	for rows.Next() {
		var c territory.Control
		if err := rows.Scan(&c.TerritoryID, &c.ControllerID, &c.ControllerName, &c.CapturePoints, &c.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning territory control: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaveControl upserts the control record of one territory.
func (r *TerritoryRepository) SaveControl(ctx context.Context, c territory.Control) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO territory_control (territory_id, controller_id, controller_name, capture_points, captured_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (territory_id) DO UPDATE SET
			controller_id = EXCLUDED.controller_id,
			controller_name = EXCLUDED.controller_name,
			capture_points = EXCLUDED.capture_points,
			captured_at = EXCLUDED.captured_at`,
		c.TerritoryID, c.ControllerID, c.ControllerName, c.CapturePoints, c.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("saving territory %d control: %w", c.TerritoryID, err)
	}
	return nil
}
