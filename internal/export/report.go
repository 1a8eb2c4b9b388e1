package export

import (
	"context"
	"fmt"
	"time"

	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
	"github.com/sadopc/shiftops/internal/tasks"
)

// TaskRow is one task instance of the day's log.
type TaskRow struct {
	ID          int64
	WorkDate    string
	Activity    string
	Location    string
	Target      string
	Status      string
	Claimant    string
	ClaimedAt   *time.Time
	CompletedAt *time.Time
	PhotoURL    string
	Delinquent  bool
}

// ShiftRow is one timecard with its break total.
type ShiftRow struct {
	TimecardID    int64
	Staff         string
	WorkDate      string
	ClockIn       time.Time
	ClockOut      *time.Time
	BreakSeconds  int64
	WorkedSeconds int64
}

// Report is everything exported for one work date.
type Report struct {
	WorkDate string
	Tasks    []TaskRow
	Shifts   []ShiftRow
}

// Collect gathers the task log and timecards of workDate.
func Collect(ctx context.Context, svc *tasks.Service, s *store.Store, gate *roster.Gate, workDate string) (*Report, error) {
	views, err := svc.ListInstances(ctx, workDate)
	if err != nil {
		return nil, fmt.Errorf("collect tasks: %w", err)
	}
	now := svc.Now()
	r := &Report{WorkDate: workDate}
	for _, v := range views {
		r.Tasks = append(r.Tasks, TaskRow{
			ID:          v.ID,
			WorkDate:    v.WorkDate,
			Activity:    v.Activity,
			Location:    v.LocationName,
			Target:      FormatTarget(v.TargetHour, v.TargetMinute),
			Status:      string(v.Status),
			Claimant:    v.ClaimantName,
			ClaimedAt:   v.ClaimedAt,
			CompletedAt: v.CompletedAt,
			PhotoURL:    svc.PhotoURL(v.PhotoRef),
			Delinquent:  svc.IsDelinquent(v, now),
		})
	}

	cards, err := s.ListTimecardsForDate(ctx, workDate)
	if err != nil {
		return nil, fmt.Errorf("collect timecards: %w", err)
	}
	names := make(map[int64]string)
	for _, tc := range cards {
		name, ok := names[tc.StaffID]
		if !ok {
			name = "Unknown"
			if st, err := s.GetStaff(ctx, tc.StaffID); err == nil {
				name = st.Name
			}
			names[tc.StaffID] = name
		}
		breakMin, err := gate.BreakMinutes(ctx, tc.ID)
		if err != nil {
			return nil, fmt.Errorf("collect timecards: %w", err)
		}
		end := now
		if tc.ClockOutAt != nil {
			end = *tc.ClockOutAt
		}
		worked := int64(end.Sub(tc.ClockInAt).Seconds()) - int64(breakMin*60)
		if worked < 0 {
			worked = 0
		}
		r.Shifts = append(r.Shifts, ShiftRow{
			TimecardID:    tc.ID,
			Staff:         name,
			WorkDate:      tc.WorkDate,
			ClockIn:       tc.ClockInAt,
			ClockOut:      tc.ClockOutAt,
			BreakSeconds:  int64(breakMin * 60),
			WorkedSeconds: worked,
		})
	}
	return r, nil
}

// FormatTarget renders a target time as HH:MM, or "" when unscheduled.
func FormatTarget(hour, minute *int) string {
	if hour == nil {
		return ""
	}
	m := 0
	if minute != nil {
		m = *minute
	}
	return fmt.Sprintf("%02d:%02d", *hour, m)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Local().Format(time.RFC3339)
}

func formatDuration(secs int64) string {
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
