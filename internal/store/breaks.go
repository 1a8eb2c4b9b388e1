package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func (s *Store) StartBreak(ctx context.Context, tc *Timecard, at time.Time) (*Break, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO breaks (staff_id, timecard_id, work_date, break_start_at) VALUES (?, ?, ?, ?)`,
		tc.StaffID, tc.ID, tc.WorkDate, at.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("start break: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetBreak(ctx, id)
}

func (s *Store) EndBreak(ctx context.Context, id int64, at time.Time) (*Break, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE breaks SET break_end_at = ? WHERE id = ? AND break_end_at IS NULL`,
		at.UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("end break: %w", err)
	}
	return s.GetBreak(ctx, id)
}

func (s *Store) GetBreak(ctx context.Context, id int64) (*Break, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, timecard_id, work_date, break_start_at, break_end_at FROM breaks WHERE id = ?`, id,
	)
	b, err := scanBreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get break %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get break %d: %w", id, err)
	}
	return b, nil
}

// GetOpenBreak returns the staff member's unfinished break, or nil.
func (s *Store) GetOpenBreak(ctx context.Context, staffID int64) (*Break, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, timecard_id, work_date, break_start_at, break_end_at
		 FROM breaks WHERE staff_id = ? AND break_end_at IS NULL
		 ORDER BY break_start_at DESC LIMIT 1`, staffID,
	)
	b, err := scanBreak(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get open break: %w", err)
	}
	return b, nil
}

func (s *Store) ListBreaks(ctx context.Context, timecardID int64) ([]Break, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, staff_id, timecard_id, work_date, break_start_at, break_end_at
		 FROM breaks WHERE timecard_id = ? ORDER BY break_start_at`, timecardID,
	)
	if err != nil {
		return nil, fmt.Errorf("list breaks: %w", err)
	}
	defer rows.Close()

	var breaks []Break
	for rows.Next() {
		b, err := scanBreak(rows)
		if err != nil {
			return nil, err
		}
		breaks = append(breaks, *b)
	}
	return breaks, rows.Err()
}

// CountOnBreak returns how many staff have an open break.
func (s *Store) CountOnBreak(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT staff_id) FROM breaks WHERE break_end_at IS NULL`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count on break: %w", err)
	}
	return n, nil
}

func scanBreak(r rowScanner) (*Break, error) {
	b := &Break{}
	var start string
	var end sql.NullString
	if err := r.Scan(&b.ID, &b.StaffID, &b.TimecardID, &b.WorkDate, &start, &end); err != nil {
		return nil, err
	}
	b.BreakStartAt, _ = time.Parse(time.RFC3339, start)
	b.BreakEndAt = nullTimePtr(end)
	return b, nil
}
