package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const instanceColumns = `id, definition_id, work_date, status, claimant_id, claimed_at, claim_token, completed_at, photo_ref, updated_at`

const viewQuery = `
	SELECT i.id, i.definition_id, i.work_date, i.status, i.claimant_id, i.claimed_at, i.claim_token,
	       i.completed_at, i.photo_ref, i.updated_at,
	       d.activity, d.location_id, l.name, d.target_hour, d.target_minute, COALESCE(st.name, '')
	FROM task_instances i
	JOIN task_definitions d ON d.id = i.definition_id
	JOIN locations l        ON l.id = d.location_id
	LEFT JOIN staff st      ON st.id = i.claimant_id`

// HasInstancesFor reports whether any instance exists for workDate.
func (s *Store) HasInstancesFor(ctx context.Context, workDate string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM task_instances WHERE work_date = ? LIMIT 1`, workDate,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check instances for %s: %w", workDate, err)
	}
	return true, nil
}

// InsertInstance creates a pending instance unless one already exists for
// (definitionID, workDate). It reports whether a row was inserted; a conflict
// is not an error.
func (s *Store) InsertInstance(ctx context.Context, definitionID int64, workDate string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO task_instances (definition_id, work_date, status, updated_at) VALUES (?, ?, 'pending', ?)
		 ON CONFLICT(definition_id, work_date) DO NOTHING`,
		definitionID, workDate, now,
	)
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert instance: %w", err)
	}
	return n == 1, nil
}

// InsertInstances runs InsertInstance for every definition in one
// transaction and returns how many rows were inserted.
func (s *Store) InsertInstances(ctx context.Context, definitionIDs []int64, workDate string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin generation: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	inserted := 0
	for _, id := range definitionIDs {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO task_instances (definition_id, work_date, status, updated_at) VALUES (?, ?, 'pending', ?)
			 ON CONFLICT(definition_id, work_date) DO NOTHING`,
			id, workDate, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert instance: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert instance: %w", err)
		}
		if n == 1 {
			inserted++
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit generation: %w", err)
	}
	return inserted, nil
}

func (s *Store) GetInstance(ctx context.Context, id int64) (*TaskInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceColumns+` FROM task_instances WHERE id = ?`, id)
	in := &TaskInstance{}
	err := scanInstance(row, in)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get instance %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance %d: %w", id, err)
	}
	return in, nil
}

func (s *Store) GetView(ctx context.Context, id int64) (*TaskView, error) {
	row := s.db.QueryRowContext(ctx, viewQuery+` WHERE i.id = ?`, id)
	v, err := scanView(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get instance view %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get instance view %d: %w", id, err)
	}
	return v, nil
}

// ListViews returns joined instances ordered by target time with
// unscheduled tasks last.
func (s *Store) ListViews(ctx context.Context, f InstanceFilter) ([]TaskView, error) {
	query := viewQuery + ` WHERE 1=1`
	var args []any

	if f.WorkDate != "" {
		query += ` AND i.work_date = ?`
		args = append(args, f.WorkDate)
	}
	if f.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, string(f.Status))
	}
	if f.ClaimantID != nil {
		query += ` AND i.claimant_id = ?`
		args = append(args, *f.ClaimantID)
	}
	query += ` ORDER BY d.target_hour IS NULL, d.target_hour, COALESCE(d.target_minute, 0), i.id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var views []TaskView
	for rows.Next() {
		v, err := scanView(rows)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, rows.Err()
}

// ClaimInstance moves a pending instance to in_progress for staffID in one
// conditional write. It returns false when the row was not pending or the
// staff member already holds another in-progress instance.
func (s *Store) ClaimInstance(ctx context.Context, id, staffID int64, token string, at time.Time) (bool, error) {
	return s.enterInProgress(ctx, id, staffID, token, at, StatusPending)
}

// ResumeInstance is ClaimInstance for interrupted instances.
func (s *Store) ResumeInstance(ctx context.Context, id, staffID int64, token string, at time.Time) (bool, error) {
	return s.enterInProgress(ctx, id, staffID, token, at, StatusInterrupted)
}

func (s *Store) enterInProgress(ctx context.Context, id, staffID int64, token string, at time.Time, from Status) (bool, error) {
	ts := at.UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_instances
		SET status = 'in_progress', claimant_id = ?, claimed_at = ?, claim_token = ?, updated_at = ?
		WHERE id = ? AND status = ?
		  AND NOT EXISTS (
		      SELECT 1 FROM task_instances WHERE claimant_id = ? AND status = 'in_progress'
		  )`,
		staffID, ts, token, ts, id, string(from), staffID,
	)
	if err != nil {
		return false, fmt.Errorf("claim instance %d: %w", id, err)
	}
	return affectedOne(res)
}

// ReleaseInstance moves an in-progress instance held by staffID to the given
// status (pending or interrupted) and clears the claim.
func (s *Store) ReleaseInstance(ctx context.Context, id, staffID int64, to Status, at time.Time) (bool, error) {
	if to != StatusPending && to != StatusInterrupted {
		return false, fmt.Errorf("release instance %d: invalid target status %q", id, to)
	}
	ts := at.UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_instances
		SET status = ?, claimant_id = NULL, claimed_at = NULL, claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND claimant_id = ?`,
		string(to), ts, id, staffID,
	)
	if err != nil {
		return false, fmt.Errorf("release instance %d: %w", id, err)
	}
	return affectedOne(res)
}

// CompleteInstance finishes the claim session identified by token. The
// claimant and claimed_at are kept as the record of who did the work.
func (s *Store) CompleteInstance(ctx context.Context, id, staffID int64, token, photoRef string, at time.Time) (bool, error) {
	ts := at.UTC().Format(time.RFC3339)
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_instances
		SET status = 'completed', completed_at = ?, photo_ref = ?, claim_token = NULL, updated_at = ?
		WHERE id = ? AND status = 'in_progress' AND claimant_id = ? AND claim_token = ?`,
		ts, photoRef, ts, id, staffID, token,
	)
	if err != nil {
		return false, fmt.Errorf("complete instance %d: %w", id, err)
	}
	return affectedOne(res)
}

// HoldsActiveClaim reports whether staffID currently holds an in-progress instance.
func (s *Store) HoldsActiveClaim(ctx context.Context, staffID int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM task_instances WHERE claimant_id = ? AND status = 'in_progress' LIMIT 1`, staffID,
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check active claim: %w", err)
	}
	return true, nil
}

// InterruptStale moves in-progress instances claimed before cutoff to
// interrupted and returns their ids.
func (s *Store) InterruptStale(ctx context.Context, cutoff, at time.Time) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE task_instances
		SET status = 'interrupted', claimant_id = NULL, claimed_at = NULL, claim_token = NULL, updated_at = ?
		WHERE status = 'in_progress' AND claimed_at < ?
		RETURNING id`,
		at.UTC().Format(time.RFC3339), cutoff.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("interrupt stale instances: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetHourSummary counts completed and outstanding instances per target hour.
func (s *Store) GetHourSummary(ctx context.Context, workDate string) ([]HourSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(d.target_hour, -1) AS hour,
		       SUM(CASE WHEN i.status = 'completed' THEN 1 ELSE 0 END),
		       SUM(CASE WHEN i.status != 'completed' THEN 1 ELSE 0 END)
		FROM task_instances i
		JOIN task_definitions d ON d.id = i.definition_id
		WHERE i.work_date = ?
		GROUP BY hour
		ORDER BY hour = -1, hour`, workDate,
	)
	if err != nil {
		return nil, fmt.Errorf("hour summary: %w", err)
	}
	defer rows.Close()

	var summaries []HourSummary
	for rows.Next() {
		var hs HourSummary
		if err := rows.Scan(&hs.Hour, &hs.Completed, &hs.Outstanding); err != nil {
			return nil, err
		}
		summaries = append(summaries, hs)
	}
	return summaries, rows.Err()
}

func affectedOne(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

func scanInstance(r rowScanner, in *TaskInstance, extra ...any) error {
	var status string
	var claimant sql.NullInt64
	var claimedAt, token, completedAt, photoRef sql.NullString
	var updatedAt string

	dest := []any{&in.ID, &in.DefinitionID, &in.WorkDate, &status, &claimant, &claimedAt, &token, &completedAt, &photoRef, &updatedAt}
	if err := r.Scan(append(dest, extra...)...); err != nil {
		return err
	}
	in.Status = Status(status)
	if claimant.Valid {
		in.ClaimantID = &claimant.Int64
	}
	in.ClaimedAt = nullTimePtr(claimedAt)
	in.ClaimToken = token.String
	in.CompletedAt = nullTimePtr(completedAt)
	in.PhotoRef = photoRef.String
	in.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return nil
}

func scanView(r rowScanner) (*TaskView, error) {
	v := &TaskView{}
	var hour, minute sql.NullInt64
	err := scanInstance(r, &v.TaskInstance, &v.Activity, &v.LocationID, &v.LocationName, &hour, &minute, &v.ClaimantName)
	if err != nil {
		return nil, err
	}
	v.TargetHour = nullIntPtr(hour)
	v.TargetMinute = nullIntPtr(minute)
	return v, nil
}
