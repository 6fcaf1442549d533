package importexport

import (
	"fmt"
	"io"

	"github.com/mikepea/clubhouse/pkg/clubhouse/models"
	"github.com/mikepea/clubhouse/pkg/clubhouse/store"
	"github.com/xuri/excelize/v2"
)

const rosterSheet = "Roster"

var rosterHeader = []interface{}{"Name", "Email", "Student Number", "Major", "Role", "Joined"}

// WriteRosterXLSX writes the club's roster as a single-sheet workbook
func WriteRosterXLSX(w io.Writer, club *models.Club, roster []store.RosterEntry) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), rosterSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetDocProps(&excelize.DocProperties{Title: club.Name + " roster"}); err != nil {
		return fmt.Errorf("set properties: %w", err)
	}

	header := rosterHeader
	if err := f.SetSheetRow(rosterSheet, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create style: %w", err)
	}
	if err := f.SetRowStyle(rosterSheet, 1, 1, bold); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for i, m := range roster {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			m.Name,
			m.Email,
			m.StudentNumber,
			m.Major,
			string(m.Role),
			m.JoinDate.UTC().Format("2006-01-02"),
		}
		if err := f.SetSheetRow(rosterSheet, axis, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(rosterSheet, "A", "B", 28); err != nil {
		return err
	}
	if err := f.SetColWidth(rosterSheet, "C", "F", 16); err != nil {
		return err
	}
	return f.Write(w)
}
