// Package clinic is the clinical records app. Records live in the structured
// database; the service validates forms and keeps the config current.
package clinic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/storage"
	"zen-records/view"
)

const tracerName = "zen-records/clinic"

// Service applies clinic actions one at a time.
type Service struct {
	mu      sync.Mutex
	db      DB
	notices notice.Notifier
	logger  *log.Logger
	tracer  trace.Tracer
	now     func() time.Time
	newID   func() string
}

func New(db DB, notices notice.Notifier, logger *log.Logger) *Service {
	if db == nil {
		panic("clinic.New: db is nil")
	}
	if notices == nil {
		notices = notice.Discard{}
	}
	if logger == nil {
		logger = log.New()
	}
	return &Service{
		db:      db,
		notices: notices,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Open writes the default configuration on first run.
func (s *Service) Open(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "clinic.open")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.db.Config(ctx)
	if err != nil {
		failSpan(span, err)
		return fmt.Errorf("%w: read config: %v", domain.ErrPersistence, err)
	}
	if len(cfg) > 0 {
		return nil
	}
	for k, v := range domain.DefaultClinicConfig(s.now()) {
		if err := s.db.SetConfig(ctx, k, v); err != nil {
			failSpan(span, err)
			return fmt.Errorf("%w: seed config: %v", domain.ErrPersistence, err)
		}
	}
	s.logger.Info("clinic: default configuration written")
	return nil
}

func (s *Service) Now() time.Time {
	return s.now()
}

// failed reports a storage failure as an error notice and returns it wrapped
// in ErrPersistence.
func (s *Service) failed(op string, err error) error {
	s.logger.WithError(err).WithField("op", op).Error("clinic: storage failure")
	s.notices.Notify(notice.Error, "Could not save data")
	return fmt.Errorf("%w: %s: %v", domain.ErrPersistence, op, err)
}

func (s *Service) reject(err error) error {
	text := err.Error()
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		text = ve.Message
	}
	s.notices.Notify(notice.Warning, text)
	return err
}

// touch records the automatic backup time. Callers hold s.mu.
func (s *Service) touch(ctx context.Context) {
	stamp := domain.Stamp(s.now()).Format(domain.TimestampLayout)
	if err := s.db.SetConfig(ctx, domain.ConfigLastBackup, stamp); err != nil {
		s.logger.WithError(err).Warn("clinic: could not record last backup time")
	}
}

func (s *Service) CreatePatient(ctx context.Context, p domain.Patient) (domain.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := domain.ValidatePatient(p, s.now())
	if err != nil {
		return domain.Patient{}, s.reject(err)
	}
	id, err := s.db.InsertPatient(ctx, p)
	if errors.Is(err, storage.ErrDuplicate) {
		return domain.Patient{}, s.reject(&domain.ValidationError{Field: "nationalId", Message: "a patient with this national id already exists"})
	}
	if err != nil {
		return domain.Patient{}, s.failed("create patient", err)
	}
	p.ID = id
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Patient registered")
	return p, nil
}

// UpdatePatient replaces the patient fields. It reports false when the
// patient does not exist.
func (s *Service) UpdatePatient(ctx context.Context, p domain.Patient) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := p.ID
	p, err := domain.ValidatePatient(p, s.now())
	if err != nil {
		return false, s.reject(err)
	}
	p.ID = id
	switch err := s.db.UpdatePatient(ctx, p); {
	case errors.Is(err, storage.ErrNotFound):
		return false, nil
	case errors.Is(err, storage.ErrDuplicate):
		return false, s.reject(&domain.ValidationError{Field: "nationalId", Message: "a patient with this national id already exists"})
	case err != nil:
		return false, s.failed("update patient", err)
	}
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Patient updated")
	return true, nil
}

func (s *Service) SetPatientStatus(ctx context.Context, id int64, status domain.PatientStatus) (bool, error) {
	if status != domain.PatientActive && status != domain.PatientInactive {
		return false, s.reject(&domain.ValidationError{Field: "status", Message: "unknown status " + string(status)})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, err := s.db.Patient(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.failed("read patient", err)
	}
	p.Status = status
	if err := s.db.UpdatePatient(ctx, p); err != nil {
		return false, s.failed("update patient", err)
	}
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Patient status updated")
	return true, nil
}

// DeletePatient removes a patient. Their appointments and documents stay.
func (s *Service) DeletePatient(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.DeletePatient(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.failed("delete patient", err)
	}
	s.touch(ctx)
	s.notices.Notify(notice.Info, "Patient deleted")
	return true, nil
}

// Patients lists every patient ordered by name.
func (s *Service) Patients(ctx context.Context) ([]domain.Patient, error) {
	list, err := s.db.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return domain.SortPatients(list), nil
}

// SearchPatients matches a name fragment or a national id prefix. Separators
// typed in a national id are ignored.
func (s *Service) SearchPatients(ctx context.Context, term string) ([]domain.Patient, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return s.Patients(ctx)
	}
	if digits := domain.NormalizeNationalID(term); digits != "" && isDigits(digits) {
		term = digits
	}
	list, err := s.db.SearchPatients(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return list, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (s *Service) Patient(ctx context.Context, id int64) (domain.Patient, bool, error) {
	p, err := s.db.Patient(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return domain.Patient{}, false, nil
	}
	if err != nil {
		return domain.Patient{}, false, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return p, true, nil
}

// CreateAppointment books an appointment. The patient id is not checked
// against existing patients.
func (s *Service) CreateAppointment(ctx context.Context, a domain.Appointment) (domain.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := domain.ValidateAppointment(a)
	if err != nil {
		return domain.Appointment{}, s.reject(err)
	}
	id, err := s.db.InsertAppointment(ctx, a)
	if err != nil {
		return domain.Appointment{}, s.failed("create appointment", err)
	}
	a.ID = id
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Appointment scheduled")
	return a, nil
}

func (s *Service) Appointments(ctx context.Context, f storage.AppointmentFilter) ([]domain.Appointment, error) {
	list, err := s.db.ListAppointments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return list, nil
}

func (s *Service) SetAppointmentStatus(ctx context.Context, id int64, status domain.AppointmentStatus) (bool, error) {
	if !status.Valid() {
		return false, s.reject(&domain.ValidationError{Field: "status", Message: "unknown status " + string(status)})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.SetAppointmentStatus(ctx, id, status)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.failed("update appointment", err)
	}
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Appointment updated")
	return true, nil
}

func (s *Service) AddDocument(ctx context.Context, d domain.Document) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, err := domain.ValidateDocument(d, s.now())
	if err != nil {
		return domain.Document{}, s.reject(err)
	}
	id, err := s.db.InsertDocument(ctx, d)
	if err != nil {
		return domain.Document{}, s.failed("add document", err)
	}
	d.ID = id
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Document saved")
	return d, nil
}

// Documents lists the documents of a patient, newest first; zero lists all.
func (s *Service) Documents(ctx context.Context, patientID int64) ([]domain.Document, error) {
	list, err := s.db.ListDocuments(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return list, nil
}

func (s *Service) Config(ctx context.Context) (domain.ClinicConfig, error) {
	cfg, err := s.db.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return cfg, nil
}

// SetConfig stores a configuration value. The last backup key is managed by
// the service and cannot be set.
func (s *Service) SetConfig(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" || key == domain.ConfigLastBackup {
		return s.reject(&domain.ValidationError{Field: "key", Message: "invalid configuration key"})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.SetConfig(ctx, key, strings.TrimSpace(value)); err != nil {
		return s.failed("set config", err)
	}
	s.touch(ctx)
	s.notices.Notify(notice.Success, "Settings saved")
	return nil
}

// Snapshot reads every clinic collection.
func (s *Service) Snapshot(ctx context.Context) (domain.ClinicSnapshot, error) {
	snap, err := s.db.Snapshot(ctx)
	if err != nil {
		return domain.ClinicSnapshot{}, fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}
	return snap.Clone(), nil
}

// Dashboard aggregates the clinic for the landing view.
func (s *Service) Dashboard(ctx context.Context) (view.ClinicStats, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return view.ClinicStats{}, err
	}
	return view.ClinicDashboard(snap, s.now()), nil
}
