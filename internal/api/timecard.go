package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
)

type timecardJSON struct {
	ID         int64      `json:"id"`
	WorkDate   string     `json:"work_date"`
	ClockInAt  time.Time  `json:"clock_in_at"`
	ClockOutAt *time.Time `json:"clock_out_at"`
}

type breakJSON struct {
	ID           int64      `json:"id"`
	BreakStartAt time.Time  `json:"break_start_at"`
	BreakEndAt   *time.Time `json:"break_end_at"`
}

func timecardOf(tc *store.Timecard) *timecardJSON {
	if tc == nil {
		return nil
	}
	return &timecardJSON{ID: tc.ID, WorkDate: tc.WorkDate, ClockInAt: tc.ClockInAt, ClockOutAt: tc.ClockOutAt}
}

func breakOf(b *store.Break) *breakJSON {
	if b == nil {
		return nil
	}
	return &breakJSON{ID: b.ID, BreakStartAt: b.BreakStartAt, BreakEndAt: b.BreakEndAt}
}

func (s *Server) timecardStatus(c *fiber.Ctx) error {
	st, err := s.roster.Status(c.UserContext(), currentStaff(c).ID)
	if err != nil {
		return shiftError(err)
	}
	return c.JSON(fiber.Map{
		"state":    st.State,
		"timecard": timecardOf(st.Timecard),
		"break":    breakOf(st.Break),
	})
}

func (s *Server) timecardHistory(c *fiber.Ctx) error {
	history, err := s.roster.History(c.UserContext(), currentStaff(c).ID, queryInt(c, "limit", 0))
	if err != nil {
		return err
	}
	out := make([]*timecardJSON, 0, len(history))
	for i := range history {
		out = append(out, timecardOf(&history[i]))
	}
	return c.JSON(fiber.Map{"timecards": out})
}

type shiftFunc func(ctx context.Context, staffID int64) (any, error)

func (s *Server) shiftAction(fn shiftFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		out, err := fn(c.UserContext(), currentStaff(c).ID)
		if err != nil {
			return shiftError(err)
		}
		return c.JSON(out)
	}
}

func (s *Server) clockIn(ctx context.Context, staffID int64) (any, error) {
	tc, err := s.roster.ClockIn(ctx, staffID)
	return fiber.Map{"timecard": timecardOf(tc)}, err
}

func (s *Server) clockOut(ctx context.Context, staffID int64) (any, error) {
	tc, err := s.roster.ClockOut(ctx, staffID)
	return fiber.Map{"timecard": timecardOf(tc)}, err
}

func (s *Server) breakStart(ctx context.Context, staffID int64) (any, error) {
	b, err := s.roster.StartBreak(ctx, staffID)
	return fiber.Map{"break": breakOf(b)}, err
}

func (s *Server) breakEnd(ctx context.Context, staffID int64) (any, error) {
	b, err := s.roster.EndBreak(ctx, staffID)
	return fiber.Map{"break": breakOf(b)}, err
}

// shiftError turns roster rule violations into 422 responses.
func shiftError(err error) error {
	for _, rule := range []error{roster.ErrAlreadyClockedIn, roster.ErrNotClockedIn, roster.ErrOnBreak, roster.ErrNotOnBreak} {
		if errors.Is(err, rule) {
			return fiber.NewError(fiber.StatusUnprocessableEntity, rule.Error())
		}
	}
	if errors.Is(err, roster.ErrInactive) {
		return fiber.NewError(fiber.StatusForbidden, err.Error())
	}
	return err
}
