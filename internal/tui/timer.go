package tui

import (
	"context"
	"time"

	"github.com/sadopc/shiftops/internal/roster"
	"github.com/sadopc/shiftops/internal/store"
)

// shiftClock tracks the signed-in staff member's shift for display. Worked
// time excludes breaks.
type shiftClock struct {
	state      roster.State
	timecardID int64
	clockIn    time.Time
	breakStart time.Time
	breakTaken time.Duration // closed breaks only

	now func() time.Time
}

func newShiftClock() shiftClock {
	return shiftClock{state: roster.StateOffDuty, now: time.Now}
}

// load reads the shift state from the roster. Open breaks are tracked by
// their start time and closed ones are summed.
func (c *shiftClock) load(ctx context.Context, gate *roster.Gate, s *store.Store, staffID int64) error {
	st, err := gate.Status(ctx, staffID)
	if err != nil {
		return err
	}
	c.apply(st)
	if st.Timecard == nil {
		return nil
	}
	breaks, err := s.ListBreaks(ctx, st.Timecard.ID)
	if err != nil {
		return err
	}
	c.setBreaks(breaks)
	return nil
}

func (c *shiftClock) apply(st roster.Status) {
	c.state = st.State
	c.breakTaken = 0
	c.breakStart = time.Time{}
	c.timecardID = 0
	c.clockIn = time.Time{}
	if st.Timecard != nil {
		c.timecardID = st.Timecard.ID
		c.clockIn = st.Timecard.ClockInAt
	}
	if st.Break != nil {
		c.breakStart = st.Break.BreakStartAt
	}
}

func (c *shiftClock) setBreaks(breaks []store.Break) {
	c.breakTaken = 0
	for _, b := range breaks {
		if b.BreakEndAt != nil {
			c.breakTaken += b.BreakEndAt.Sub(b.BreakStartAt)
		}
	}
}

func (c shiftClock) onShift() bool { return c.state != roster.StateOffDuty }

func (c shiftClock) onBreak() bool { return c.state == roster.StateOnBreak }

// worked is the time on shift minus breaks.
func (c shiftClock) worked() time.Duration {
	if !c.onShift() {
		return 0
	}
	now := c.now()
	d := now.Sub(c.clockIn) - c.breakTaken
	if c.onBreak() {
		d -= now.Sub(c.breakStart)
	}
	return max(d, 0)
}

// currentBreak is the length of the running break.
func (c shiftClock) currentBreak() time.Duration {
	if !c.onBreak() {
		return 0
	}
	return c.now().Sub(c.breakStart)
}
