package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// ScheduleDay is one printable day of a weekly schedule.
type ScheduleDay struct {
	Label     string
	Date      string
	Available bool
	Slots     []ScheduleSlot
}

// ScheduleSlot is a printable slot row.
type ScheduleSlot struct {
	Time   string
	Booked bool
}

// WeeklySchedulePDF renders a doctor's week as a printable PDF.
func WeeklySchedulePDF(doctorName, weekStart string, days []ScheduleDay) ([]byte, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("pdf requires at least one day")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, fmt.Sprintf("Weekly schedule - %s", doctorName), "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Week starting %s", weekStart), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	for _, day := range days {
		pdf.SetFont("Arial", "B", 11)
		header := fmt.Sprintf("%s  %s", day.Label, day.Date)
		if !day.Available {
			header += "  (unavailable)"
		}
		pdf.CellFormat(0, 8, header, "B", 1, "", false, 0, "")

		if !day.Available || len(day.Slots) == 0 {
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 6, "no slots", "", 1, "", false, 0, "")
			pdf.Ln(2)
			continue
		}

		pdf.SetFont("Arial", "", 9)
		for _, slot := range day.Slots {
			status := "available"
			if slot.Booked {
				status = "booked"
			}
			pdf.CellFormat(60, 6, slot.Time, "", 0, "", false, 0, "")
			pdf.CellFormat(0, 6, status, "", 1, "", false, 0, "")
		}
		pdf.Ln(2)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render schedule pdf: %w", err)
	}
	return buf.Bytes(), nil
}
