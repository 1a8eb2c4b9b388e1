package export

import (
	"fmt"
	"strings"
)

// Formats lists the names accepted by Write.
var Formats = []string{"csv", "json", "xlsx"}

// Write saves r in format next to base (a path without extension) and returns
// the files written. CSV produces a task file and a shift file.
func Write(r *Report, format, base string) ([]string, error) {
	switch strings.ToLower(format) {
	case "csv":
		tasksPath, shiftsPath := base+"-tasks.csv", base+"-shifts.csv"
		if err := ToCSV(r.Tasks, tasksPath); err != nil {
			return nil, err
		}
		if err := ShiftsToCSV(r.Shifts, shiftsPath); err != nil {
			return nil, err
		}
		return []string{tasksPath, shiftsPath}, nil
	case "json":
		path := base + ".json"
		if err := ToJSON(r, path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	case "xlsx":
		path := base + ".xlsx"
		if err := ToXLSX(r, path); err != nil {
			return nil, err
		}
		return []string{path}, nil
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}
