// Package roster tracks who is on shift. A staff member is eligible to take
// tasks while clocked in and not on break.
package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sadopc/shiftops/internal/store"
)

var (
	ErrInactive         = errors.New("staff member is inactive")
	ErrAlreadyClockedIn = errors.New("already clocked in")
	ErrNotClockedIn     = errors.New("not clocked in")
	ErrOnBreak          = errors.New("on break")
	ErrNotOnBreak       = errors.New("not on break")
)

// State is a staff member's shift state.
type State string

const (
	StateOffDuty State = "off_duty"
	StateWorking State = "working"
	StateOnBreak State = "on_break"
)

// Status is a snapshot of a staff member's shift.
type Status struct {
	State    State
	Timecard *store.Timecard
	Break    *store.Break
}

// Gate answers eligibility questions and records timecards and breaks.
type Gate struct {
	store *store.Store
	loc   *time.Location
	log   *zap.Logger
	now   func() time.Time
}

func NewGate(s *store.Store, loc *time.Location, log *zap.Logger) *Gate {
	if loc == nil {
		loc = time.Local
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Gate{store: s, loc: loc, log: log, now: time.Now}
}

// SetClock replaces the time source.
func (g *Gate) SetClock(now func() time.Time) { g.now = now }

// IsStaffEligible is true iff the staff member is active, has an open
// timecard and no open break.
func (g *Gate) IsStaffEligible(ctx context.Context, staffID int64) (bool, error) {
	st, err := g.Status(ctx, staffID)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, ErrInactive) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return st.State == StateWorking, nil
}

func (g *Gate) Status(ctx context.Context, staffID int64) (Status, error) {
	staff, err := g.store.GetStaff(ctx, staffID)
	if err != nil {
		return Status{}, err
	}
	if !staff.Active {
		return Status{}, ErrInactive
	}
	tc, err := g.store.GetOpenTimecard(ctx, staffID)
	if err != nil {
		return Status{}, err
	}
	if tc == nil {
		return Status{State: StateOffDuty}, nil
	}
	br, err := g.store.GetOpenBreak(ctx, staffID)
	if err != nil {
		return Status{}, err
	}
	if br != nil {
		return Status{State: StateOnBreak, Timecard: tc, Break: br}, nil
	}
	return Status{State: StateWorking, Timecard: tc}, nil
}

func (g *Gate) ClockIn(ctx context.Context, staffID int64) (*store.Timecard, error) {
	st, err := g.Status(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if st.State != StateOffDuty {
		return nil, ErrAlreadyClockedIn
	}
	now := g.now()
	tc, err := g.store.ClockIn(ctx, staffID, now.In(g.loc).Format(time.DateOnly), now)
	if err != nil {
		return nil, err
	}
	g.log.Info("clocked in", zap.Int64("staff_id", staffID), zap.Int64("timecard_id", tc.ID))
	return tc, nil
}

// ClockOut closes the open timecard. It is rejected while on break.
func (g *Gate) ClockOut(ctx context.Context, staffID int64) (*store.Timecard, error) {
	st, err := g.Status(ctx, staffID)
	if err != nil {
		return nil, err
	}
	switch st.State {
	case StateOffDuty:
		return nil, ErrNotClockedIn
	case StateOnBreak:
		return nil, ErrOnBreak
	}
	tc, err := g.store.ClockOut(ctx, st.Timecard.ID, g.now())
	if err != nil {
		return nil, err
	}
	g.log.Info("clocked out", zap.Int64("staff_id", staffID), zap.Int64("timecard_id", tc.ID))
	return tc, nil
}

func (g *Gate) StartBreak(ctx context.Context, staffID int64) (*store.Break, error) {
	st, err := g.Status(ctx, staffID)
	if err != nil {
		return nil, err
	}
	switch st.State {
	case StateOffDuty:
		return nil, ErrNotClockedIn
	case StateOnBreak:
		return nil, ErrOnBreak
	}
	br, err := g.store.StartBreak(ctx, st.Timecard, g.now())
	if err != nil {
		return nil, err
	}
	g.log.Info("break started", zap.Int64("staff_id", staffID), zap.Int64("break_id", br.ID))
	return br, nil
}

func (g *Gate) EndBreak(ctx context.Context, staffID int64) (*store.Break, error) {
	st, err := g.Status(ctx, staffID)
	if err != nil {
		return nil, err
	}
	if st.State != StateOnBreak {
		return nil, ErrNotOnBreak
	}
	br, err := g.store.EndBreak(ctx, st.Break.ID, g.now())
	if err != nil {
		return nil, err
	}
	g.log.Info("break ended", zap.Int64("staff_id", staffID), zap.Int64("break_id", br.ID))
	return br, nil
}

// History returns the staff member's latest timecards. A non-positive limit
// falls back to the history_limit setting.
func (g *Gate) History(ctx context.Context, staffID int64, limit int) ([]store.Timecard, error) {
	if limit <= 0 {
		limit = g.store.GetIntSetting(ctx, "history_limit", 10)
	}
	return g.store.ListTimecards(ctx, staffID, limit)
}

// Counts returns how many staff are clocked in and how many of them are on break.
func (g *Gate) Counts(ctx context.Context) (working, onBreak int, err error) {
	working, err = g.store.CountWorking(ctx)
	if err != nil {
		return 0, 0, err
	}
	onBreak, err = g.store.CountOnBreak(ctx)
	if err != nil {
		return 0, 0, err
	}
	return working, onBreak, nil
}

// BreakMinutes sums the closed and running breaks of a timecard.
func (g *Gate) BreakMinutes(ctx context.Context, timecardID int64) (int, error) {
	breaks, err := g.store.ListBreaks(ctx, timecardID)
	if err != nil {
		return 0, fmt.Errorf("break minutes: %w", err)
	}
	var total time.Duration
	now := g.now()
	for _, b := range breaks {
		end := now
		if b.BreakEndAt != nil {
			end = *b.BreakEndAt
		}
		total += end.Sub(b.BreakStartAt)
	}
	return int(total.Minutes()), nil
}
