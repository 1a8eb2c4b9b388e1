package export

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type jsonExport struct {
	ExportedAt string      `json:"exported_at"`
	WorkDate   string      `json:"work_date"`
	Count      int         `json:"count"`
	Tasks      []jsonTask  `json:"tasks"`
	Shifts     []jsonShift `json:"shifts"`
}

type jsonTask struct {
	ID          int64  `json:"id"`
	Target      string `json:"target,omitempty"`
	Location    string `json:"location"`
	Activity    string `json:"activity"`
	Status      string `json:"status"`
	Claimant    string `json:"claimant,omitempty"`
	ClaimedAt   string `json:"claimed_at,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Delinquent  bool   `json:"delinquent"`
}

type jsonShift struct {
	TimecardID    int64  `json:"timecard_id"`
	Staff         string `json:"staff"`
	ClockIn       string `json:"clock_in"`
	ClockOut      string `json:"clock_out,omitempty"`
	BreakSeconds  int64  `json:"break_seconds"`
	WorkedSeconds int64  `json:"worked_seconds"`
	Worked        string `json:"worked"`
}

func ToJSON(r *Report, path string) error {
	export := jsonExport{
		ExportedAt: time.Now().UTC().Format(time.RFC3339),
		WorkDate:   r.WorkDate,
		Count:      len(r.Tasks),
	}
	for _, t := range r.Tasks {
		export.Tasks = append(export.Tasks, jsonTask{
			ID:          t.ID,
			Target:      t.Target,
			Location:    t.Location,
			Activity:    t.Activity,
			Status:      t.Status,
			Claimant:    t.Claimant,
			ClaimedAt:   formatTime(t.ClaimedAt),
			CompletedAt: formatTime(t.CompletedAt),
			PhotoURL:    t.PhotoURL,
			Delinquent:  t.Delinquent,
		})
	}
	for _, s := range r.Shifts {
		export.Shifts = append(export.Shifts, jsonShift{
			TimecardID:    s.TimecardID,
			Staff:         s.Staff,
			ClockIn:       formatTime(&s.ClockIn),
			ClockOut:      formatTime(s.ClockOut),
			BreakSeconds:  s.BreakSeconds,
			WorkedSeconds: s.WorkedSeconds,
			Worked:        formatDuration(s.WorkedSeconds),
		})
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write json file: %w", err)
	}
	return nil
}
