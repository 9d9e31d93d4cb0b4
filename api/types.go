package api

import (
	"context"
	"time"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
	"zen-records/storage"
	"zen-records/view"
)

// Agenda is the tasks and notes tracker served by the handlers.
type Agenda interface {
	Now() time.Time
	Snapshot() domain.AgendaSnapshot
	SetFocus(ctx context.Context, text string) string
	AddTask(ctx context.Context, text string, p domain.Priority) (domain.Task, error)
	QuickTask(ctx context.Context, text string) (domain.Task, error)
	ToggleTask(ctx context.Context, id int64) (domain.Task, bool)
	DeleteTask(ctx context.Context, id int64) bool
	AddNote(ctx context.Context, title, body string) (domain.Note, error)
	DeleteNote(ctx context.Context, id int64) bool
	ExportBackup(ctx context.Context) (report.Artifact, error)
	Import(ctx context.Context, data []byte, mode domain.ImportMode) (domain.AgendaMergeResult, error)
	Report(ctx context.Context, kind report.Kind) report.Report
	ExportReport(ctx context.Context, kind report.Kind, format report.Format) (report.Artifact, error)
	Reset(ctx context.Context) (report.Artifact, error)
}

// Clinic is the records service served by the handlers.
type Clinic interface {
	Now() time.Time
	CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error)
	UpdatePatient(ctx context.Context, p domain.Patient) (bool, error)
	SetPatientStatus(ctx context.Context, id int64, status domain.PatientStatus) (bool, error)
	DeletePatient(ctx context.Context, id int64) (bool, error)
	Patients(ctx context.Context) ([]domain.Patient, error)
	SearchPatients(ctx context.Context, term string) ([]domain.Patient, error)
	Patient(ctx context.Context, id int64) (domain.Patient, bool, error)
	CreateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error)
	Appointments(ctx context.Context, f storage.AppointmentFilter) ([]domain.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id int64, status domain.AppointmentStatus) (bool, error)
	AddDocument(ctx context.Context, d domain.Document) (domain.Document, error)
	Documents(ctx context.Context, patientID int64) ([]domain.Document, error)
	Config(ctx context.Context) (domain.ClinicConfig, error)
	SetConfig(ctx context.Context, key, value string) error
	Dashboard(ctx context.Context) (view.ClinicStats, error)
	ExportBackup(ctx context.Context) (report.Artifact, error)
	Import(ctx context.Context, data []byte, mode domain.ImportMode) (domain.ClinicMergeResult, error)
	Report(ctx context.Context, kind report.Kind) (report.Report, error)
	ExportReport(ctx context.Context, kind report.Kind, format report.Format) (report.Artifact, error)
	Workbook(ctx context.Context) (report.Artifact, error)
}

// Notices hands out the latest notice of one app, clearing it, and streams
// every new one to subscribers.
type Notices interface {
	Take() *notice.Notice
	Subscribe() (<-chan notice.Notice, func())
}

// envelope is the JSON shape of every successful response. Notice carries
// the message produced by the request, if any.
type envelope struct {
	Data   any            `json:"data,omitempty"`
	Notice *notice.Notice `json:"notice,omitempty"`
}
