package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"leadboard-engine/internal/domain"
)

// ExportHeaders are the column titles written by WriteCSV and WriteXLSX. They
// read back through Parse without a mapping.
func ExportHeaders() []string {
	h := []string{
		"ID", "Full Name", "Email", "Phone", "Source", "Associate",
		"Status", "Stage", "Created At", "Center", "Remarks",
	}
	for i := 1; i <= domain.FollowUpSlots; i++ {
		h = append(h, fmt.Sprintf("Follow Up %d Date", i), fmt.Sprintf("Follow Up Comments (%d)", i))
	}
	return h
}

func exportRow(l domain.Lead) []string {
	r := []string{
		l.ID, l.FullName, l.Email, l.Phone, l.Source, l.Associate,
		l.Status, l.Stage, l.CreatedAt, l.Center, l.Remarks,
	}
	for _, f := range l.FollowUps {
		r = append(r, f.Date, f.Comments)
	}
	return r
}

func WriteCSV(w io.Writer, leads []domain.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ExportHeaders()); err != nil {
		return err
	}
	for _, l := range leads {
		if err := cw.Write(exportRow(l)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook named "Leads".
func WriteXLSX(w io.Writer, leads []domain.Lead) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	const sheet = "Leads"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return err
	}
	index, err := f.GetSheetIndex(sheet)
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	for i, header := range ExportHeaders() {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return err
		}
	}
	for r, l := range leads {
		for c, v := range exportRow(l) {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return err
			}
		}
	}
	return f.Write(w)
}
