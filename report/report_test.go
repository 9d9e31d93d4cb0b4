package report

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/xuri/excelize/v2"

	"zen-records/domain"
)

var now = time.Date(2024, 3, 10, 14, 5, 0, 0, time.UTC)

func sampleAgenda() domain.AgendaSnapshot {
	s := domain.EmptyAgenda(now)
	s.Focus = "Ship it"
	s.Tasks = []domain.Task{
		{ID: 1, Text: "Write report", Done: true, Important: true, Date: "2024-03-10"},
		{ID: 2, Text: "Call bank", Urgent: true, Date: "2024-03-10"},
		{ID: 3, Text: "Old chore", Date: "2024-03-05"},
		{ID: 4, Text: "Ancient chore", Date: "2024-01-01"},
	}
	s.Notes = []domain.Note{{ID: 1, Title: "Long", Body: strings.Repeat("x", 150), Date: "2024-03-10"}}
	return s
}

func lines(r Report) string {
	var b strings.Builder
	for _, s := range r.Sections {
		b.WriteString(s.Heading + "\n")
		b.WriteString(strings.Join(s.Lines, "\n") + "\n")
	}
	return b.String()
}

func TestAgendaDailyReport(t *testing.T) {
	r := Agenda(Daily, sampleAgenda(), now)
	out := lines(r)
	for _, want := range []string{
		"Focus of the day: Ship it",
		"Progress: 1/2 tasks (50%)",
		"Keep going!",
		"[x] Write report (important)",
		"[ ] Call bank (urgent)",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("daily report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Old chore") {
		t.Fatalf("daily report must only list today's tasks:\n%s", out)
	}
}

func TestAgendaDailyReportComplete(t *testing.T) {
	s := sampleAgenda()
	s.Focus = ""
	s.Tasks = s.Tasks[:1]
	out := lines(Agenda(Daily, s, now))
	if !strings.Contains(out, "Day complete!") || !strings.Contains(out, "Focus of the day: Not set") {
		t.Fatalf("unexpected report:\n%s", out)
	}
}

func TestAgendaWeeklyReport(t *testing.T) {
	out := lines(Agenda(Weekly, sampleAgenda(), now))
	for _, want := range []string{"Tasks: 3", "Completion: 33%", "[ ] 05/03/2024 - Old chore", "[x] Today - Write report"} {
		if !strings.Contains(out, want) {
			t.Fatalf("weekly report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Ancient chore") {
		t.Fatalf("weekly report must skip tasks older than a week:\n%s", out)
	}
}

func TestAgendaFullReportTruncatesNotes(t *testing.T) {
	out := lines(Agenda(Full, sampleAgenda(), now))
	want := "Long: " + strings.Repeat("x", 100) + "..."
	if !strings.Contains(out, want) {
		t.Fatalf("full report missing truncated note:\n%s", out)
	}
	if !strings.Contains(out, "Total tasks: 4") || !strings.Contains(out, "Total notes: 1") {
		t.Fatalf("full report missing totals:\n%s", out)
	}
}

func sampleClinic() domain.ClinicSnapshot {
	return domain.ClinicSnapshot{
		Patients: []domain.Patient{{ID: 1, Name: "Ana", NationalID: "1", BirthDate: "1990-01-01", Status: domain.PatientActive}},
		Appointments: []domain.Appointment{
			{ID: 2, PatientID: 1, DateTime: "2024-03-10T15:00", Reason: "follow-up", Status: domain.AppointmentScheduled},
			{ID: 1, PatientID: 1, DateTime: "2024-03-10T09:00", Reason: "checkup", Status: domain.AppointmentDone},
			{ID: 3, PatientID: 9, DateTime: "2024-03-08T10:00", Reason: "orphan", Status: domain.AppointmentPending},
		},
		Documents: []domain.Document{},
		Config:    domain.ClinicConfig{domain.ConfigClinicName: "Zen Clinic"},
	}
}

func TestClinicReports(t *testing.T) {
	daily := lines(Clinic(Daily, sampleClinic(), now))
	if !strings.Contains(daily, "Appointments: 2") || !strings.Contains(daily, "Completed: 50%") {
		t.Fatalf("unexpected daily report:\n%s", daily)
	}
	if strings.Index(daily, "09:00 Ana") > strings.Index(daily, "15:00 Ana") {
		t.Fatalf("appointments must be listed in time order:\n%s", daily)
	}

	weekly := lines(Clinic(Weekly, sampleClinic(), now))
	if !strings.Contains(weekly, "Unknown patient #9") {
		t.Fatalf("weekly report must name missing patients:\n%s", weekly)
	}

	full := Clinic(Full, sampleClinic(), now)
	if full.Title != "Zen Clinic" {
		t.Fatalf("unexpected title %q", full.Title)
	}
	if !strings.Contains(lines(full), "Patients: 1 (1 active)") {
		t.Fatalf("unexpected full report:\n%s", lines(full))
	}
}

func TestParseKindAndFormat(t *testing.T) {
	if k, err := ParseKind(" Weekly "); err != nil || k != Weekly {
		t.Fatalf("ParseKind = %q, %v", k, err)
	}
	if _, err := ParseKind("monthly"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatPDF {
		t.Fatalf("ParseFormat = %q, %v", f, err)
	}
	if _, err := ParseFormat("doc"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRenderPDFAndText(t *testing.T) {
	r := Agenda(Full, sampleAgenda(), now)

	pdf, err := Render(r, FormatPDF)
	if err != nil {
		t.Fatalf("render pdf: %v", err)
	}
	if pdf.Name != "agenda_zen_full_20240310_1405.pdf" || pdf.ContentType != ContentTypePDF {
		t.Fatalf("unexpected artifact %s %s", pdf.Name, pdf.ContentType)
	}
	if !bytes.HasPrefix(pdf.Data, []byte("%PDF-")) {
		t.Fatalf("not a pdf document")
	}

	txt, err := Render(r, FormatText)
	if err != nil {
		t.Fatalf("render text: %v", err)
	}
	if txt.Name != "agenda_zen_full_20240310_1405.txt" {
		t.Fatalf("unexpected name %s", txt.Name)
	}
	if !strings.HasPrefix(string(txt.Data), "Agenda Zen\nFull report\n") {
		t.Fatalf("unexpected text:\n%s", txt.Data)
	}
}

func TestBackupArtifact(t *testing.T) {
	snap := sampleAgenda()
	a, err := Backup(AgendaApp, snap.NewBackup("exp-1", now), now)
	if err != nil {
		t.Fatalf("backup: %v", err)
	}
	if a.Name != "agenda_zen_backup_20240310_1405.json" {
		t.Fatalf("unexpected name %s", a.Name)
	}
	if !bytes.Contains(a.Data, []byte("\n  \"focus\": \"Ship it\"")) {
		t.Fatalf("backup must be indented with two spaces:\n%s", a.Data)
	}
	var decoded map[string]any
	if err := sonic.Unmarshal(a.Data, &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	meta := decoded["metadata"].(map[string]any)
	if meta["totalTasks"].(float64) != 4 || meta["version"] != domain.BackupVersion {
		t.Fatalf("unexpected metadata %v", meta)
	}
}

func TestWorkbook(t *testing.T) {
	a, err := Workbook(sampleClinic(), now)
	if err != nil {
		t.Fatalf("workbook: %v", err)
	}
	if a.Name != "zen_clinic_records_20240310_1405.xlsx" {
		t.Fatalf("unexpected name %s", a.Name)
	}
	f, err := excelize.OpenReader(bytes.NewReader(a.Data))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Appointments")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 4 || rows[1][3] != "2024-03-08T10:00" || rows[2][2] != "Ana" {
		t.Fatalf("unexpected appointment rows %v", rows)
	}
	patients, err := f.GetRows("Patients")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(patients) != 2 || patients[1][2] != "1" {
		t.Fatalf("unexpected patient rows %v", patients)
	}
}
