package report

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"zen-records/domain"
)

var (
	patientHeaders     = []string{"ID", "Name", "National ID", "Birth Date", "Phone", "Status"}
	appointmentHeaders = []string{"ID", "Patient ID", "Patient", "Date/Time", "Reason", "Status"}
)

// Workbook renders the clinic patients and appointments as an xlsx artifact.
func Workbook(snap domain.ClinicSnapshot, now time.Time) (Artifact, error) {
	var buf bytes.Buffer
	if err := WriteClinicWorkbook(&buf, snap); err != nil {
		return Artifact{}, fmt.Errorf("%w: %v", domain.ErrExport, err)
	}
	return Artifact{
		Name:        fmt.Sprintf("%s_records_%s.xlsx", ClinicApp, domain.FileStamp(now)),
		ContentType: ContentTypeXLSX,
		Data:        buf.Bytes(),
	}, nil
}

// WriteClinicWorkbook writes a workbook with a Patients and an Appointments
// sheet, each with a frozen bold header row.
func WriteClinicWorkbook(w io.Writer, snap domain.ClinicSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	if err := f.SetSheetName("Sheet1", "Patients"); err != nil {
		return err
	}
	patients := make([][]any, 0, len(snap.Patients))
	for _, p := range domain.SortPatients(snap.Patients) {
		patients = append(patients, []any{p.ID, p.Name, p.NationalID, p.BirthDate, p.Phone, string(p.Status)})
	}
	if err := writeSheet(f, "Patients", patientHeaders, patients, header); err != nil {
		return err
	}

	if _, err := f.NewSheet("Appointments"); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	appts := make([][]any, 0, len(snap.Appointments))
	for _, a := range domain.SortAppointments(snap.Appointments) {
		name := ""
		if p, ok := snap.PatientByID(a.PatientID); ok {
			name = p.Name
		}
		appts = append(appts, []any{a.ID, a.PatientID, name, a.DateTime, a.Reason, string(a.Status)})
	}
	if err := writeSheet(f, "Appointments", appointmentHeaders, appts, header); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]any, headerStyle int) error {
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
			return err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, 20); err != nil {
			return err
		}
	}
	for r, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r+2, err)
		}
	}
	return f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
