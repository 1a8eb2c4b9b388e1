package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ToXLSX writes a workbook with a Tasks sheet and a Shifts sheet.
func ToXLSX(r *Report, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Tasks"); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet("Shifts"); err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	taskRows := make([][]string, 0, len(r.Tasks))
	for _, t := range r.Tasks {
		taskRows = append(taskRows, taskRecord(t))
	}
	if err := writeSheet(f, "Tasks", taskHeader, taskRows, headerStyle); err != nil {
		return err
	}

	shiftRows := make([][]string, 0, len(r.Shifts))
	for _, s := range r.Shifts {
		shiftRows = append(shiftRows, shiftRecord(s))
	}
	if err := writeSheet(f, "Shifts", shiftHeader, shiftRows, headerStyle); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]string, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+2, err)
		}
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	return nil
}
