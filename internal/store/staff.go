package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

func (s *Store) CreateStaff(ctx context.Context, code, name string, role Role) (*Staff, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO staff (code, name, role) VALUES (?, ?, ?)`, code, name, string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("insert staff: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetStaff(ctx, id)
}

func (s *Store) GetStaff(ctx context.Context, id int64) (*Staff, error) {
	return s.getStaff(ctx, `SELECT id, code, name, role, active FROM staff WHERE id = ?`, id)
}

func (s *Store) GetStaffByCode(ctx context.Context, code string) (*Staff, error) {
	return s.getStaff(ctx, `SELECT id, code, name, role, active FROM staff WHERE code = ?`, code)
}

func (s *Store) getStaff(ctx context.Context, query string, arg any) (*Staff, error) {
	st := &Staff{}
	var role string
	var active int
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&st.ID, &st.Code, &st.Name, &role, &active)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get staff %v: %w", arg, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get staff %v: %w", arg, err)
	}
	st.Role = Role(role)
	st.Active = active == 1
	return st, nil
}

func (s *Store) ListStaff(ctx context.Context, includeInactive bool) ([]Staff, error) {
	query := `SELECT id, code, name, role, active FROM staff`
	if !includeInactive {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list staff: %w", err)
	}
	defer rows.Close()

	var staff []Staff
	for rows.Next() {
		var st Staff
		var role string
		var active int
		if err := rows.Scan(&st.ID, &st.Code, &st.Name, &role, &active); err != nil {
			return nil, err
		}
		st.Role = Role(role)
		st.Active = active == 1
		staff = append(staff, st)
	}
	return staff, rows.Err()
}

func (s *Store) DeactivateStaff(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE staff SET active = 0 WHERE id = ?`, id)
	return err
}
