package domain

import (
	"slices"
	"time"
)

type PatientStatus string

const (
	PatientActive   PatientStatus = "active"
	PatientInactive PatientStatus = "inactive"
)

// Patient is a clinic patient record. NationalID is unique across patients.
type Patient struct {
	ID         int64         `json:"id"`
	Name       string        `json:"name"`
	NationalID string        `json:"nationalId"`
	BirthDate  string        `json:"birthDate"`
	Phone      string        `json:"phone"`
	Status     PatientStatus `json:"status"`
}

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentDone      AppointmentStatus = "done"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Valid reports whether s is a known appointment status.
func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentScheduled, AppointmentPending, AppointmentDone, AppointmentCancelled:
		return true
	}
	return false
}

// Appointment references a patient by id only; the patient may no longer exist.
type Appointment struct {
	ID        int64             `json:"id"`
	PatientID int64             `json:"patientId"`
	DateTime  string            `json:"dateTime"`
	Reason    string            `json:"reason"`
	Status    AppointmentStatus `json:"status"`
}

// Date returns the calendar date part of the appointment timestamp.
func (a Appointment) Date() string {
	if len(a.DateTime) < len(DateLayout) {
		return a.DateTime
	}
	return a.DateTime[:len(DateLayout)]
}

type DocumentKind string

const (
	DocumentPrescription DocumentKind = "prescription"
	DocumentCertificate  DocumentKind = "certificate"
	DocumentReferral     DocumentKind = "referral"
	DocumentRecord       DocumentKind = "record"
)

// Document is a clinical document attached to a patient.
type Document struct {
	ID        int64        `json:"id"`
	PatientID int64        `json:"patientId"`
	Kind      DocumentKind `json:"kind"`
	Title     string       `json:"title"`
	Content   string       `json:"content"`
	Date      string       `json:"date"`
}

// ClinicConfig is the free-form clinic configuration mapping.
type ClinicConfig map[string]string

const (
	ConfigLastBackup    = "lastBackup"
	ConfigTheme         = "theme"
	ConfigClinicName    = "clinicName"
	ConfigClinicPhone   = "clinicPhone"
	ConfigClinicAddress = "clinicAddress"
	ConfigDoctorName    = "doctorName"
)

// DefaultClinicConfig returns the configuration written on first run.
func DefaultClinicConfig(now time.Time) ClinicConfig {
	return ClinicConfig{
		ConfigLastBackup: Stamp(now).Format(TimestampLayout),
		ConfigTheme:      "light",
		ConfigClinicName: "Medical Records",
	}
}

// Clone copies the mapping.
func (c ClinicConfig) Clone() ClinicConfig {
	out := make(ClinicConfig, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// ClinicSnapshot is every clinic collection at a point in time.
type ClinicSnapshot struct {
	Patients     []Patient     `json:"patients"`
	Appointments []Appointment `json:"appointments"`
	Documents    []Document    `json:"documents"`
	Config       ClinicConfig  `json:"config"`
}

// Clone returns a deep copy whose collections are never nil.
func (s ClinicSnapshot) Clone() ClinicSnapshot {
	out := ClinicSnapshot{
		Patients:     slices.Clone(s.Patients),
		Appointments: slices.Clone(s.Appointments),
		Documents:    slices.Clone(s.Documents),
		Config:       s.Config.Clone(),
	}
	if out.Patients == nil {
		out.Patients = []Patient{}
	}
	if out.Appointments == nil {
		out.Appointments = []Appointment{}
	}
	if out.Documents == nil {
		out.Documents = []Document{}
	}
	return out
}

// PatientByID returns the patient with id when present.
func (s ClinicSnapshot) PatientByID(id int64) (Patient, bool) {
	i := slices.IndexFunc(s.Patients, func(p Patient) bool { return p.ID == id })
	if i < 0 {
		return Patient{}, false
	}
	return s.Patients[i], true
}

// AppointmentsOn returns the appointments of a calendar day.
func (s ClinicSnapshot) AppointmentsOn(date string) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range s.Appointments {
		if a.Date() == date {
			out = append(out, a)
		}
	}
	return out
}

// AppointmentsSince returns the appointments on or after a calendar day.
func (s ClinicSnapshot) AppointmentsSince(date string) []Appointment {
	out := make([]Appointment, 0)
	for _, a := range s.Appointments {
		if a.Date() >= date {
			out = append(out, a)
		}
	}
	return out
}

// ClinicMetadata describes an exported clinic backup.
type ClinicMetadata struct {
	Version           string    `json:"version"`
	ExportID          string    `json:"exportId,omitempty"`
	ExportedAt        time.Time `json:"exportedAt"`
	TotalPatients     int       `json:"totalPatients"`
	TotalAppointments int       `json:"totalAppointments"`
	TotalDocuments    int       `json:"totalDocuments"`
}

// ClinicBackup is the clinic backup file format.
type ClinicBackup struct {
	ClinicSnapshot
	Metadata ClinicMetadata `json:"metadata"`
}

// NewBackup wraps the snapshot with export metadata.
func (s ClinicSnapshot) NewBackup(exportID string, now time.Time) ClinicBackup {
	snap := s.Clone()
	return ClinicBackup{
		ClinicSnapshot: snap,
		Metadata: ClinicMetadata{
			Version:           BackupVersion,
			ExportID:          exportID,
			ExportedAt:        Stamp(now),
			TotalPatients:     len(snap.Patients),
			TotalAppointments: len(snap.Appointments),
			TotalDocuments:    len(snap.Documents),
		},
	}
}

// CountAppointments tallies appointments by status.
func CountAppointments(list []Appointment) map[AppointmentStatus]int {
	out := make(map[AppointmentStatus]int, 4)
	for _, a := range list {
		out[a.Status]++
	}
	return out
}
