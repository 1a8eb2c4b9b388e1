package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) ClockIn(ctx context.Context, staffID int64, workDate string, at time.Time) (*Timecard, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO timecards (staff_id, work_date, clock_in_at) VALUES (?, ?, ?)`,
		staffID, workDate, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("clock in: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetTimecard(ctx, id)
}

func (s *Store) ClockOut(ctx context.Context, id int64, at time.Time) (*Timecard, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE timecards SET clock_out_at = ? WHERE id = ? AND clock_out_at IS NULL`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("clock out: %w", err)
	}
	return s.GetTimecard(ctx, id)
}

func (s *Store) GetTimecard(ctx context.Context, id int64) (*Timecard, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, work_date, clock_in_at, clock_out_at FROM timecards WHERE id = ?`, id,
	)
	tc, err := scanTimecard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get timecard %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get timecard %d: %w", id, err)
	}
	return tc, nil
}

// GetOpenTimecard returns the staff member's timecard without a clock-out,
// or nil if they are not clocked in.
func (s *Store) GetOpenTimecard(ctx context.Context, staffID int64) (*Timecard, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, work_date, clock_in_at, clock_out_at
		 FROM timecards WHERE staff_id = ? AND clock_out_at IS NULL
		 ORDER BY clock_in_at DESC LIMIT 1`, staffID,
	)
	tc, err := scanTimecard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open timecard: %w", err)
	}
	return tc, nil
}

// ListTimecards returns the most recent timecards of a staff member, newest
// first. A zero limit returns all of them.
func (s *Store) ListTimecards(ctx context.Context, staffID int64, limit int) ([]Timecard, error) {
	query := `SELECT id, staff_id, work_date, clock_in_at, clock_out_at FROM timecards WHERE staff_id = ? ORDER BY clock_in_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, limit)
	}
	return s.queryTimecards(ctx, query, staffID)
}

// ListTimecardsForDate returns every timecard of a work date, oldest first.
func (s *Store) ListTimecardsForDate(ctx context.Context, workDate string) ([]Timecard, error) {
	return s.queryTimecards(ctx,
		`SELECT id, staff_id, work_date, clock_in_at, clock_out_at FROM timecards WHERE work_date = ? ORDER BY clock_in_at`,
		workDate,
	)
}

func (s *Store) queryTimecards(ctx context.Context, query string, args ...any) ([]Timecard, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list timecards: %w", err)
	}
	defer rows.Close()

	var cards []Timecard
	for rows.Next() {
		tc, err := scanTimecard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *tc)
	}
	return cards, rows.Err()
}

// CountWorking returns how many staff have an open timecard.
func (s *Store) CountWorking(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT staff_id) FROM timecards WHERE clock_out_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count working: %w", err)
	}
	return n, nil
}

func scanTimecard(r rowScanner) (*Timecard, error) {
	tc := &Timecard{}
	var clockIn string
	var clockOut sql.NullString
	if err := r.Scan(&tc.ID, &tc.StaffID, &tc.WorkDate, &clockIn, &clockOut); err != nil {
		return nil, err
	}
	tc.ClockInAt, _ = time.Parse(time.RFC3339, clockIn)
	tc.ClockOutAt = nullTimePtr(clockOut)
	return tc, nil
}
