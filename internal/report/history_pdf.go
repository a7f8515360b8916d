// Package report renders session history documents.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"zenfocus/backend/internal/model"
)

// WriteHistoryPDF renders days, most recent first, as an A4 document.
func WriteHistoryPDF(w io.Writer, email string, generatedAt time.Time, days []model.DayGroup) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Focus History", true)
	pdf.SetCreator("zenfocus", true)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(0, 10, "Focus History")
	pdf.Ln(9)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(113, 113, 122)
	pdf.Cell(0, 6, tr(fmt.Sprintf("%s  -  generated %s", email, generatedAt.UTC().Format("2006-01-02 15:04 UTC"))))
	pdf.Ln(10)
	pdf.SetTextColor(0, 0, 0)

	if len(days) == 0 {
		pdf.SetFont("Arial", "I", 12)
		pdf.Cell(0, 8, "No sessions recorded yet.")
		pdf.Ln(8)
	}

	totalFocus := 0
	totalSessions := 0
	for _, day := range days {
		totalFocus += day.FocusMinutes
		totalSessions += day.FocusSessions

		pdf.SetFont("Arial", "B", 13)
		pdf.Cell(0, 9, fmt.Sprintf("%s  (%d focus, %d min)", day.Date, day.FocusSessions, day.FocusMinutes))
		pdf.Ln(8)

		pdf.SetFont("Arial", "", 11)
		for _, s := range day.Sessions {
			label := "Break"
			minutes := s.BreakMinutes
			if s.IsFocus() {
				label = "Focus"
				minutes = s.FocusMinutes
			}
			line := fmt.Sprintf("    %s - %s   %-5s  %d min",
				s.StartTime.UTC().Format("15:04"),
				s.EndTime.UTC().Format("15:04"),
				label,
				minutes,
			)
			pdf.Cell(0, 7, line)
			pdf.Ln(6)
			if s.Note != "" {
				pdf.SetFont("Arial", "I", 10)
				pdf.SetX(24)
				pdf.MultiCell(0, 6, tr(s.Note), "", "", false)
				pdf.SetFont("Arial", "", 11)
			}
		}
		pdf.Ln(4)
	}

	pdf.Ln(6)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 10, fmt.Sprintf("Total: %d focus sessions, %d minutes", totalSessions, totalFocus))
	pdf.Ln(10)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("render history pdf: %w", err)
	}
	return nil
}
