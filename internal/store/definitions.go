package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const definitionColumns = `id, location_id, activity, target_hour, target_minute, archived, created_at, updated_at`

func (s *Store) CreateDefinition(ctx context.Context, locationID int64, activity string, hour, minute *int) (*TaskDefinition, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO task_definitions (location_id, activity, target_hour, target_minute, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		locationID, activity, hour, minute, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert definition: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetDefinition(ctx, id)
}

func (s *Store) GetDefinition(ctx context.Context, id int64) (*TaskDefinition, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+definitionColumns+` FROM task_definitions WHERE id = ?`, id,
	)
	d, err := scanDefinition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get definition %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get definition %d: %w", id, err)
	}
	return d, nil
}

// ListDefinitions returns the catalog ordered by target time, unscheduled
// entries last.
func (s *Store) ListDefinitions(ctx context.Context, includeArchived bool) ([]TaskDefinition, error) {
	query := `SELECT ` + definitionColumns + ` FROM task_definitions`
	if !includeArchived {
		query += ` WHERE archived = 0`
	}
	query += ` ORDER BY target_hour IS NULL, target_hour, COALESCE(target_minute, 0), id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	defer rows.Close()

	var defs []TaskDefinition
	for rows.Next() {
		d, err := scanDefinition(rows)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}
	return defs, rows.Err()
}

// ListActiveDefinitions is the catalog source consumed by the generator.
func (s *Store) ListActiveDefinitions(ctx context.Context) ([]TaskDefinition, error) {
	return s.ListDefinitions(ctx, false)
}

func (s *Store) UpdateDefinition(ctx context.Context, id, locationID int64, activity string, hour, minute *int) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_definitions SET location_id = ?, activity = ?, target_hour = ?, target_minute = ?, updated_at = ?
		 WHERE id = ?`,
		locationID, activity, hour, minute, now, id,
	)
	return err
}

func (s *Store) ArchiveDefinition(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx,
		`UPDATE task_definitions SET archived = 1, updated_at = ? WHERE id = ?`, now, id,
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDefinition(r rowScanner) (*TaskDefinition, error) {
	d := &TaskDefinition{}
	var hour, minute sql.NullInt64
	var archived int
	var createdAt, updatedAt string
	if err := r.Scan(&d.ID, &d.LocationID, &d.Activity, &hour, &minute, &archived, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	d.TargetHour = nullIntPtr(hour)
	d.TargetMinute = nullIntPtr(minute)
	d.Archived = archived == 1
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	d.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return d, nil
}

func nullIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullTimePtr(n sql.NullString) *time.Time {
	if !n.Valid {
		return nil
	}
	t, _ := time.Parse(time.RFC3339, n.String)
	return &t
}
