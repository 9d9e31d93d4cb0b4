package view

import (
	"fmt"
	"time"

	"zen-records/domain"
)

type PatientItem struct {
	ID         int64
	Name       string
	NationalID string
	BirthDate  string
	BirthLabel string
	Age        int
	Phone      string
	Status     domain.PatientStatus
	Active     bool
}

// Age returns the completed years between birth and now, or -1 when birth
// is not a valid date.
func Age(birth string, now time.Time) int {
	b, ok := domain.ParseDate(birth)
	if !ok {
		return -1
	}
	years := now.Year() - b.Year()
	if now.Month() < b.Month() || (now.Month() == b.Month() && now.Day() < b.Day()) {
		years--
	}
	return years
}

func patientItem(p domain.Patient, now time.Time) PatientItem {
	label := p.BirthDate
	if b, ok := domain.ParseDate(p.BirthDate); ok {
		label = b.Format("02/01/2006")
	}
	return PatientItem{
		ID:         p.ID,
		Name:       p.Name,
		NationalID: p.NationalID,
		BirthDate:  p.BirthDate,
		BirthLabel: label,
		Age:        Age(p.BirthDate, now),
		Phone:      p.Phone,
		Status:     p.Status,
		Active:     p.Status == domain.PatientActive,
	}
}

type PatientListView struct {
	Patients []PatientItem
	Total    int
	Active   int
	Query    string
}

// PatientList lists patients sorted by name.
func PatientList(patients []domain.Patient, query string, now time.Time) PatientListView {
	v := PatientListView{Patients: make([]PatientItem, 0, len(patients)), Total: len(patients), Query: query}
	for _, p := range domain.SortPatients(patients) {
		item := patientItem(p, now)
		if item.Active {
			v.Active++
		}
		v.Patients = append(v.Patients, item)
	}
	return v
}

type AppointmentItem struct {
	ID          int64
	PatientID   int64
	PatientName string
	DateTime    string
	DateLabel   string
	Time        string
	Reason      string
	Status      domain.AppointmentStatus
}

func appointmentItems(list []domain.Appointment, patients []domain.Patient, now time.Time) []AppointmentItem {
	names := make(map[int64]string, len(patients))
	for _, p := range patients {
		names[p.ID] = p.Name
	}
	out := make([]AppointmentItem, 0, len(list))
	for _, a := range domain.SortAppointments(list) {
		name, ok := names[a.PatientID]
		if !ok {
			name = fmt.Sprintf("Unknown patient #%d", a.PatientID)
		}
		item := AppointmentItem{
			ID:          a.ID,
			PatientID:   a.PatientID,
			PatientName: name,
			DateTime:    a.DateTime,
			DateLabel:   domain.DateLabel(a.Date(), now),
			Reason:      a.Reason,
			Status:      a.Status,
		}
		if t, ok := domain.ParseDateTime(a.DateTime); ok {
			item.Time = t.Format("15:04")
		}
		out = append(out, item)
	}
	return out
}

type AppointmentListView struct {
	Appointments []AppointmentItem
	Counts       map[domain.AppointmentStatus]int
}

// AppointmentList lists appointments in time order with the patient names
// resolved. Appointments of deleted patients are kept.
func AppointmentList(list []domain.Appointment, patients []domain.Patient, now time.Time) AppointmentListView {
	return AppointmentListView{
		Appointments: appointmentItems(list, patients, now),
		Counts:       domain.CountAppointments(list),
	}
}

// ClinicStats aggregates the clinic for the dashboard.
type ClinicStats struct {
	ClinicName          string
	Patients            int
	ActivePatients      int
	TodayAppointments   int
	PendingAppointments int
	Documents           int
	LastBackup          string
	Today               []AppointmentItem
}

func ClinicDashboard(snap domain.ClinicSnapshot, now time.Time) ClinicStats {
	s := ClinicStats{
		ClinicName: snap.Config[domain.ConfigClinicName],
		Patients:   len(snap.Patients),
		Documents:  len(snap.Documents),
		LastBackup: "Never",
	}
	if t, err := time.Parse(domain.TimestampLayout, snap.Config[domain.ConfigLastBackup]); err == nil {
		s.LastBackup = LastBackupLabel(t)
	}
	for _, p := range snap.Patients {
		if p.Status == domain.PatientActive {
			s.ActivePatients++
		}
	}
	for _, a := range snap.Appointments {
		if a.Status == domain.AppointmentPending {
			s.PendingAppointments++
		}
	}
	today := snap.AppointmentsOn(domain.DateOf(now))
	s.TodayAppointments = len(today)
	s.Today = appointmentItems(today, snap.Patients, now)
	return s
}
