package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

var taskHeader = []string{"ID", "Date", "Target", "Location", "Activity", "Status", "Claimant", "Claimed", "Completed", "Photo", "Delayed"}

var shiftHeader = []string{"Timecard", "Staff", "Date", "Clock In", "Clock Out", "Break", "Worked"}

// ToCSV writes the day's task log.
func ToCSV(rows []TaskRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(taskHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(taskRecord(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ShiftsToCSV writes the day's timecards.
func ShiftsToCSV(rows []ShiftRow, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write(shiftHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(shiftRecord(r)); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func taskRecord(r TaskRow) []string {
	delayed := ""
	if r.Delinquent {
		delayed = "yes"
	}
	return []string{
		strconv.FormatInt(r.ID, 10),
		r.WorkDate,
		r.Target,
		r.Location,
		r.Activity,
		r.Status,
		r.Claimant,
		formatTime(r.ClaimedAt),
		formatTime(r.CompletedAt),
		r.PhotoURL,
		delayed,
	}
}

func shiftRecord(r ShiftRow) []string {
	return []string{
		strconv.FormatInt(r.TimecardID, 10),
		r.Staff,
		r.WorkDate,
		formatTime(&r.ClockIn),
		formatTime(r.ClockOut),
		formatDuration(r.BreakSeconds),
		formatDuration(r.WorkedSeconds),
	}
}
