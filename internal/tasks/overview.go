package tasks

import (
	"context"
	"fmt"

	"github.com/sadopc/shiftops/internal/store"
)

// CompletedPhoto is a finished instance with the address of its photo.
type CompletedPhoto struct {
	Instance store.TaskView
	URL      string
}

// Overview is the admin dashboard for one work date.
type Overview struct {
	WorkDate    string
	Working     int
	OnBreak     int
	Outstanding int
	Photos      []CompletedPhoto
	Delayed     []store.TaskView
	Hours       []store.HourSummary
}

// Overview summarizes staffing and task progress for workDate.
func (s *Service) Overview(ctx context.Context, workDate string) (*Overview, error) {
	views, err := s.ListInstances(ctx, workDate)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	o := &Overview{WorkDate: workDate}
	if s.shifts != nil {
		o.Working, o.OnBreak, err = s.shifts.Counts(ctx)
		if err != nil {
			return nil, fmt.Errorf("overview: %w", err)
		}
	}

	now := s.now()
	for _, v := range views {
		if v.Status == store.StatusCompleted {
			o.Photos = append(o.Photos, CompletedPhoto{Instance: v, URL: s.PhotoURL(v.PhotoRef)})
			continue
		}
		o.Outstanding++
		if s.IsDelinquent(v, now) {
			o.Delayed = append(o.Delayed, v)
		}
	}

	o.Hours, err = s.store.GetHourSummary(ctx, workDate)
	if err != nil {
		return nil, fmt.Errorf("overview: %w", err)
	}
	return o, nil
}
