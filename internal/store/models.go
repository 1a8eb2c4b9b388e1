package store

import "time"

// Status is the lifecycle state of a task instance.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInProgress  Status = "in_progress"
	StatusInterrupted Status = "interrupted"
	StatusCompleted   Status = "completed"
)

type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

type Location struct {
	ID        int64
	Name      string
	QRToken   string
	CreatedAt time.Time
}

// TaskDefinition is a catalog entry. A nil TargetHour means the task may be
// done at any time of day.
type TaskDefinition struct {
	ID           int64
	LocationID   int64
	Activity     string
	TargetHour   *int
	TargetMinute *int
	Archived     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type TaskInstance struct {
	ID           int64
	DefinitionID int64
	WorkDate     string // YYYY-MM-DD in the location's time zone
	Status       Status
	ClaimantID   *int64
	ClaimedAt    *time.Time
	ClaimToken   string
	CompletedAt  *time.Time
	PhotoRef     string
	UpdatedAt    time.Time
}

// TaskView joins an instance with its definition and location.
type TaskView struct {
	TaskInstance
	Activity     string
	LocationID   int64
	LocationName string
	TargetHour   *int
	TargetMinute *int
	ClaimantName string
}

// Scheduled reports whether the view has a target time of day.
func (v TaskView) Scheduled() bool {
	return v.TargetHour != nil
}

// TargetMinuteOfDay returns the target as minutes since midnight, or -1 for
// unscheduled tasks.
func (v TaskView) TargetMinuteOfDay() int {
	if v.TargetHour == nil {
		return -1
	}
	m := 0
	if v.TargetMinute != nil {
		m = *v.TargetMinute
	}
	return *v.TargetHour*60 + m
}

type Staff struct {
	ID     int64
	Code   string
	Name   string
	Role   Role
	Active bool
}

func (s Staff) IsAdmin() bool { return s.Role == RoleAdmin }

type Timecard struct {
	ID         int64
	StaffID    int64
	WorkDate   string
	ClockInAt  time.Time
	ClockOutAt *time.Time
}

type Break struct {
	ID           int64
	StaffID      int64
	TimecardID   int64
	WorkDate     string
	BreakStartAt time.Time
	BreakEndAt   *time.Time
}

type Setting struct {
	Key   string
	Value string
}

// InstanceFilter is used to filter task instances in queries.
type InstanceFilter struct {
	WorkDate   string
	Status     Status
	ClaimantID *int64
}

// HourSummary counts a day's instances per target hour. Hour is -1 for
// unscheduled tasks.
type HourSummary struct {
	Hour        int
	Completed   int
	Outstanding int
}
