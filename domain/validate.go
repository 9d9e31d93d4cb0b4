package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxNoteBodyLength is the maximum number of characters in a note body.
const MaxNoteBodyLength = 500

// ValidateTaskText trims the task text and rejects empty input.
func ValidateTaskText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", invalid("text", "enter a task first")
	}
	return text, nil
}

// ValidateNoteInput trims title and body and enforces the body length limit.
func ValidateNoteInput(title, body string) (string, string, error) {
	title = strings.TrimSpace(title)
	body = strings.TrimSpace(body)
	if title == "" || body == "" {
		return "", "", invalid("note", "fill in the title and the content")
	}
	if utf8.RuneCountInString(body) > MaxNoteBodyLength {
		return "", "", invalid("body", "a note may have at most 500 characters")
	}
	return title, body, nil
}

// NormalizeNationalID strips the usual separators from a national id.
func NormalizeNationalID(id string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '-', ' ', '/':
			return -1
		}
		return r
	}, id)
}

// ValidatePatient normalizes a patient form and checks required fields.
func ValidatePatient(p Patient, now time.Time) (Patient, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	p.BirthDate = strings.TrimSpace(p.BirthDate)
	p.NationalID = NormalizeNationalID(strings.TrimSpace(p.NationalID))
	if p.Name == "" {
		return Patient{}, invalid("name", "name is required")
	}
	if p.NationalID == "" {
		return Patient{}, invalid("nationalId", "national id is required")
	}
	for _, r := range p.NationalID {
		if r < '0' || r > '9' {
			return Patient{}, invalid("nationalId", "national id must contain only digits")
		}
	}
	if p.BirthDate != "" {
		bd, ok := ParseDate(p.BirthDate)
		if !ok {
			return Patient{}, invalid("birthDate", "birth date must be YYYY-MM-DD")
		}
		if bd.After(now) {
			return Patient{}, invalid("birthDate", "birth date is in the future")
		}
	}
	switch p.Status {
	case "":
		p.Status = PatientActive
	case PatientActive, PatientInactive:
	default:
		return Patient{}, invalid("status", "unknown status "+string(p.Status))
	}
	return p, nil
}

// ValidateAppointment normalizes an appointment form.
func ValidateAppointment(a Appointment) (Appointment, error) {
	a.Reason = strings.TrimSpace(a.Reason)
	a.DateTime = strings.TrimSpace(a.DateTime)
	if a.PatientID <= 0 {
		return Appointment{}, invalid("patientId", "select a patient")
	}
	if _, ok := ParseDateTime(a.DateTime); !ok {
		return Appointment{}, invalid("dateTime", "date and time must be YYYY-MM-DDTHH:MM")
	}
	if a.Reason == "" {
		return Appointment{}, invalid("reason", "reason is required")
	}
	if a.Status == "" {
		a.Status = AppointmentScheduled
	}
	if !a.Status.Valid() {
		return Appointment{}, invalid("status", "unknown status "+string(a.Status))
	}
	return a, nil
}

// ValidateDocument normalizes a document form.
func ValidateDocument(d Document, now time.Time) (Document, error) {
	d.Title = strings.TrimSpace(d.Title)
	d.Content = strings.TrimSpace(d.Content)
	if d.PatientID <= 0 {
		return Document{}, invalid("patientId", "select a patient")
	}
	if d.Title == "" || d.Content == "" {
		return Document{}, invalid("document", "fill in the title and the content")
	}
	switch d.Kind {
	case "":
		d.Kind = DocumentRecord
	case DocumentPrescription, DocumentCertificate, DocumentReferral, DocumentRecord:
	default:
		return Document{}, invalid("kind", "unknown document kind "+string(d.Kind))
	}
	if d.Date == "" {
		d.Date = DateOf(now)
	}
	return d, nil
}

// ValidateClinicSnapshot runs every imported record through the same checks
// as the forms and rejects ids or national ids that appear twice. Failures
// wrap ErrInvalidBackup. The returned snapshot holds the normalized records.
func ValidateClinicSnapshot(s ClinicSnapshot, now time.Time) (ClinicSnapshot, error) {
	out := s.Clone()
	owners := make(map[string]int64, len(out.Patients))
	for i, p := range out.Patients {
		v, err := ValidatePatient(p, now)
		if err != nil {
			return ClinicSnapshot{}, fmt.Errorf("%w: patient %d: %v", ErrInvalidBackup, p.ID, err)
		}
		if other, taken := owners[v.NationalID]; taken {
			return ClinicSnapshot{}, fmt.Errorf("%w: patients %d and %d share national id %s", ErrInvalidBackup, other, v.ID, v.NationalID)
		}
		owners[v.NationalID] = v.ID
		out.Patients[i] = v
	}
	for i, a := range out.Appointments {
		v, err := ValidateAppointment(a)
		if err != nil {
			return ClinicSnapshot{}, fmt.Errorf("%w: appointment %d: %v", ErrInvalidBackup, a.ID, err)
		}
		out.Appointments[i] = v
	}
	for i, d := range out.Documents {
		v, err := ValidateDocument(d, now)
		if err != nil {
			return ClinicSnapshot{}, fmt.Errorf("%w: document %d: %v", ErrInvalidBackup, d.ID, err)
		}
		out.Documents[i] = v
	}
	if id, dup := duplicateID(out.Patients, func(p Patient) int64 { return p.ID }); dup {
		return ClinicSnapshot{}, fmt.Errorf("%w: patient id %d appears twice", ErrInvalidBackup, id)
	}
	if id, dup := duplicateID(out.Appointments, func(a Appointment) int64 { return a.ID }); dup {
		return ClinicSnapshot{}, fmt.Errorf("%w: appointment id %d appears twice", ErrInvalidBackup, id)
	}
	if id, dup := duplicateID(out.Documents, func(d Document) int64 { return d.ID }); dup {
		return ClinicSnapshot{}, fmt.Errorf("%w: document id %d appears twice", ErrInvalidBackup, id)
	}
	return out, nil
}
