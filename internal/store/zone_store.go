package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmordret/macave/internal/domain"
)

type ZoneStore struct {
	db *sql.DB
}

func NewZoneStore(db *sql.DB) *ZoneStore {
	return &ZoneStore{db: db}
}

func (s *ZoneStore) Create(ctx context.Context, name string) (*domain.Zone, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO zones (id, name) VALUES (?, ?)
	`, id, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create zone: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *ZoneStore) GetByID(ctx context.Context, id string) (*domain.Zone, error) {
	zone := &domain.Zone{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, created_at FROM zones WHERE id = ?
	`, id).Scan(&zone.ID, &zone.Name, &zone.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get zone: %w", err)
	}
	return zone, nil
}

func (s *ZoneStore) List(ctx context.Context) ([]*domain.Zone, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, created_at FROM zones ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}
	defer closeRows(rows)

	var zones []*domain.Zone
	for rows.Next() {
		zone := &domain.Zone{}
		if err := rows.Scan(&zone.ID, &zone.Name, &zone.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan zone: %w", err)
		}
		zones = append(zones, zone)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zones: %w", err)
	}
	return zones, nil
}

func (s *ZoneStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM zones WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete zone: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("zone not found")
	}
	return nil
}
