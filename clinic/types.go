package clinic

import (
	"context"

	"zen-records/domain"
	"zen-records/storage"
)

// DB is the structured clinic store. *storage.ClinicDB satisfies it.
type DB interface {
	InsertPatient(ctx context.Context, p domain.Patient) (int64, error)
	UpdatePatient(ctx context.Context, p domain.Patient) error
	DeletePatient(ctx context.Context, id int64) error
	Patient(ctx context.Context, id int64) (domain.Patient, error)
	ListPatients(ctx context.Context) ([]domain.Patient, error)
	SearchPatients(ctx context.Context, term string) ([]domain.Patient, error)
	InsertAppointment(ctx context.Context, a domain.Appointment) (int64, error)
	ListAppointments(ctx context.Context, f storage.AppointmentFilter) ([]domain.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id int64, status domain.AppointmentStatus) error
	InsertDocument(ctx context.Context, d domain.Document) (int64, error)
	ListDocuments(ctx context.Context, patientID int64) ([]domain.Document, error)
	Config(ctx context.Context) (domain.ClinicConfig, error)
	SetConfig(ctx context.Context, key, value string) error
	Snapshot(ctx context.Context) (domain.ClinicSnapshot, error)
	ReplaceAll(ctx context.Context, snap domain.ClinicSnapshot) error
	InsertMissing(ctx context.Context, plan domain.ClinicMergePlan) error
}
