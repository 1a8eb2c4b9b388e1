package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) CreateLocation(ctx context.Context, name, qrToken string) (*Location, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO locations (name, qr_token, created_at) VALUES (?, ?, ?)`,
		name, qrToken, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetLocation(ctx, id)
}

func (s *Store) GetLocation(ctx context.Context, id int64) (*Location, error) {
	l := &Location{}
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, qr_token, created_at FROM locations WHERE id = ?`, id,
	).Scan(&l.ID, &l.Name, &l.QRToken, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get location %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get location %d: %w", id, err)
	}
	l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return l, nil
}

func (s *Store) ListLocations(ctx context.Context) ([]Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, qr_token, created_at FROM locations ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	defer rows.Close()

	var locations []Location
	for rows.Next() {
		var l Location
		var createdAt string
		if err := rows.Scan(&l.ID, &l.Name, &l.QRToken, &createdAt); err != nil {
			return nil, err
		}
		l.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		locations = append(locations, l)
	}
	return locations, rows.Err()
}

func (s *Store) UpdateLocationToken(ctx context.Context, id int64, qrToken string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE locations SET qr_token = ? WHERE id = ?`, qrToken, id)
	return err
}
