package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jmordret/macave/internal/domain"
)

type BottleStore struct {
	db *sql.DB
}

func NewBottleStore(db *sql.DB) *BottleStore {
	return &BottleStore{db: db}
}

const bottleColumns = `id, domaine, cuvee, appellation, millesime, couleur, region, cepage,
	zone_id, pos_row, pos_depth, status, price, tasting_note, photo_key, added_at, drunk_at`

// Insert stores the given bottles and returns their ids. Bottles without an
// id are assigned one. AddedAt defaults to now when zero.
func (s *BottleStore) Insert(ctx context.Context, bottles []*domain.Bottle) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
			slog.Error("failed to roll back insert", "error", err)
		}
	}()

	ids := make([]string, 0, len(bottles))
	for _, b := range bottles {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}
		if b.Status == "" {
			b.Status = domain.StatusInStock
		}
		if b.AddedAt.IsZero() {
			b.AddedAt = time.Now().UTC()
		}

		var posRow, posDepth *int
		if b.Position != nil {
			posRow = &b.Position.Row
			posDepth = &b.Position.Depth
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO bottles (`+bottleColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, b.ID, b.Domaine, b.Cuvee, b.Appellation, b.Millesime, couleurValue(b.Couleur),
			b.Region, b.Cepage, b.ZoneID, posRow, posDepth, string(b.Status),
			b.Price, b.TastingNote, b.PhotoKey, b.AddedAt, b.DrunkAt)
		if err != nil {
			return nil, fmt.Errorf("failed to insert bottle: %w", err)
		}
		ids = append(ids, b.ID)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit insert: %w", err)
	}
	return ids, nil
}

func (s *BottleStore) GetByID(ctx context.Context, id string) (*domain.Bottle, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+bottleColumns+` FROM bottles WHERE id = ?
	`, id)

	b, err := scanBottle(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bottle: %w", err)
	}
	return b, nil
}

func (s *BottleStore) ListInStock(ctx context.Context) ([]*domain.Bottle, error) {
	return s.list(ctx, `
		SELECT `+bottleColumns+` FROM bottles
		WHERE status = 'in_stock' ORDER BY added_at DESC, id ASC
	`)
}

// ListDrunk returns consumed bottles newest first, up to limit.
// A non-positive limit means no limit.
func (s *BottleStore) ListDrunk(ctx context.Context, limit int) ([]*domain.Bottle, error) {
	if limit <= 0 {
		return s.list(ctx, `
			SELECT `+bottleColumns+` FROM bottles
			WHERE status = 'drunk' ORDER BY drunk_at DESC, id ASC
		`)
	}
	return s.list(ctx, `
		SELECT `+bottleColumns+` FROM bottles
		WHERE status = 'drunk' ORDER BY drunk_at DESC, id ASC LIMIT ?
	`, limit)
}

func (s *BottleStore) ListByZone(ctx context.Context, zoneID string) ([]*domain.Bottle, error) {
	return s.list(ctx, `
		SELECT `+bottleColumns+` FROM bottles
		WHERE zone_id = ? AND status = 'in_stock' ORDER BY added_at DESC, id ASC
	`, zoneID)
}

// Update rewrites a bottle's identity, placement and note fields.
func (s *BottleStore) Update(ctx context.Context, b *domain.Bottle) error {
	var posRow, posDepth *int
	if b.Position != nil {
		posRow = &b.Position.Row
		posDepth = &b.Position.Depth
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE bottles SET domaine = ?, cuvee = ?, appellation = ?, millesime = ?,
			couleur = ?, region = ?, cepage = ?, zone_id = ?, pos_row = ?, pos_depth = ?,
			price = ?, tasting_note = ?, photo_key = ?
		WHERE id = ?
	`, b.Domaine, b.Cuvee, b.Appellation, b.Millesime, couleurValue(b.Couleur),
		b.Region, b.Cepage, b.ZoneID, posRow, posDepth,
		b.Price, b.TastingNote, b.PhotoKey, b.ID)
	if err != nil {
		return fmt.Errorf("failed to update bottle: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bottle not found")
	}
	return nil
}

// MarkDrunk records a consumption event for an in-stock bottle.
func (s *BottleStore) MarkDrunk(ctx context.Context, id string, at time.Time, note string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE bottles SET status = 'drunk', drunk_at = ?,
			tasting_note = CASE WHEN ? = '' THEN tasting_note ELSE ? END
		WHERE id = ? AND status = 'in_stock'
	`, at, note, note, id)
	if err != nil {
		return fmt.Errorf("failed to mark bottle drunk: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bottle not found or already drunk")
	}
	return nil
}

func (s *BottleStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM bottles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete bottle: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("bottle not found")
	}
	return nil
}

// DistinctDomaines returns the distinct non-empty domaine values sorted
// ascending, for autocomplete.
func (s *BottleStore) DistinctDomaines(ctx context.Context) ([]*string, error) {
	return s.distinct(ctx, "domaine")
}

// DistinctAppellations returns the distinct non-empty appellation values
// sorted ascending, for autocomplete.
func (s *BottleStore) DistinctAppellations(ctx context.Context) ([]*string, error) {
	return s.distinct(ctx, "appellation")
}

func (s *BottleStore) distinct(ctx context.Context, column string) ([]*string, error) {
	// column is one of two fixed identifiers, never user input.
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+column+` FROM bottles
		WHERE `+column+` IS NOT NULL AND `+column+` != ''
		ORDER BY `+column+` ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list distinct %s: %w", column, err)
	}
	defer closeRows(rows)

	var values []*string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", column, err)
		}
		if v.Valid {
			s := v.String
			values = append(values, &s)
		} else {
			values = append(values, nil)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating %s values: %w", column, err)
	}
	return values, nil
}

func (s *BottleStore) list(ctx context.Context, query string, args ...any) ([]*domain.Bottle, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bottles: %w", err)
	}
	defer closeRows(rows)

	var bottles []*domain.Bottle
	for rows.Next() {
		b, err := scanBottle(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bottle: %w", err)
		}
		bottles = append(bottles, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bottles: %w", err)
	}
	return bottles, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanBottle(row scannable) (*domain.Bottle, error) {
	b := &domain.Bottle{}
	var (
		couleur  sql.NullString
		posRow   sql.NullInt64
		posDepth sql.NullInt64
		status   string
	)

	err := row.Scan(&b.ID, &b.Domaine, &b.Cuvee, &b.Appellation, &b.Millesime,
		&couleur, &b.Region, &b.Cepage, &b.ZoneID, &posRow, &posDepth,
		&status, &b.Price, &b.TastingNote, &b.PhotoKey, &b.AddedAt, &b.DrunkAt)
	if err != nil {
		return nil, err
	}

	b.Status = domain.BottleStatus(status)
	if couleur.Valid && couleur.String != "" {
		c := domain.Couleur(couleur.String)
		b.Couleur = &c
	}
	if posRow.Valid && posDepth.Valid {
		b.Position = &domain.Position{Row: int(posRow.Int64), Depth: int(posDepth.Int64)}
	}
	return b, nil
}

func couleurValue(c *domain.Couleur) *string {
	if c == nil {
		return nil
	}
	s := string(*c)
	return &s
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		slog.Error("failed to close rows", "error", err)
	}
}
