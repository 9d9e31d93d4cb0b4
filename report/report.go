// Package report builds the narrative reports of both apps and renders them
// as PDF, plain text or spreadsheet artifacts.
package report

import (
	"fmt"
	"strings"
	"time"

	"zen-records/domain"
)

type Kind string

const (
	Daily  Kind = "daily"
	Weekly Kind = "weekly"
	Full   Kind = "full"
)

// ParseKind accepts a report kind name.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case Daily, Weekly, Full:
		return k, nil
	}
	return "", &domain.ValidationError{Field: "kind", Message: fmt.Sprintf("unknown report kind %q", s)}
}

func (k Kind) label() string {
	switch k {
	case Daily:
		return "Daily report"
	case Weekly:
		return "Weekly report"
	}
	return "Full report"
}

// Section is a headed block of report lines.
type Section struct {
	Heading string   `json:"heading,omitempty"`
	Lines   []string `json:"lines"`
}

// Report is the renderer independent form of a report.
type Report struct {
	App         string    `json:"app"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Subtitle    string    `json:"subtitle"`
	GeneratedAt time.Time `json:"generatedAt"`
	Sections    []Section `json:"sections"`
}

const (
	AgendaApp = "agenda_zen"
	ClinicApp = "zen_clinic"

	weekWindow       = 7
	weeklyListed     = 10
	fullTasksListed  = 15
	fullNotesListed  = 5
	noteExcerptRunes = 100
	notSet           = "Not set"
)

func mark(done bool) string {
	if done {
		return "[x]"
	}
	return "[ ]"
}

func orNotSet(s string) string {
	if s == "" {
		return notSet
	}
	return s
}

func taskLine(t domain.Task, now time.Time, withDate bool) string {
	var b strings.Builder
	b.WriteString(mark(t.Done))
	b.WriteByte(' ')
	if withDate {
		b.WriteString(domain.DateLabel(t.Date, now))
		b.WriteString(" - ")
	}
	b.WriteString(t.Text)
	if t.Important {
		b.WriteString(" (important)")
	}
	if t.Urgent {
		b.WriteString(" (urgent)")
	}
	return b.String()
}

func excerpt(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func firstN[T any](list []T, n int) []T {
	if len(list) > n {
		return list[:n]
	}
	return list
}

// Agenda builds an agenda report of the given kind.
func Agenda(kind Kind, snap domain.AgendaSnapshot, now time.Time) Report {
	r := Report{
		App:         AgendaApp,
		Kind:        kind,
		Title:       "Agenda Zen",
		Subtitle:    kind.label(),
		GeneratedAt: now,
	}
	switch kind {
	case Daily:
		today := snap.TasksOn(domain.DateOf(now))
		done, total, pct := domain.Progress(today)
		banner := "Keep going!"
		if pct == 100 {
			banner = "Day complete!"
		}
		r.Sections = append(r.Sections, Section{Lines: []string{
			"Date: " + domain.LongDate(now),
			"Focus of the day: " + orNotSet(snap.Focus),
			fmt.Sprintf("Progress: %d/%d tasks (%d%%)", done, total, pct),
			banner,
		}})
		s := Section{Heading: "Today's tasks"}
		for _, t := range today {
			s.Lines = append(s.Lines, taskLine(t, now, false))
		}
		if len(s.Lines) == 0 {
			s.Lines = []string{"No tasks for today"}
		}
		r.Sections = append(r.Sections, s)
	case Weekly:
		week := snap.TasksSince(domain.DaysAgo(now, weekWindow))
		_, total, pct := domain.Progress(week)
		r.Sections = append(r.Sections, Section{Lines: []string{
			fmt.Sprintf("Period: last %d days", weekWindow),
			fmt.Sprintf("Tasks: %d", total),
			fmt.Sprintf("Completion: %d%%", pct),
			"Main focus: " + orNotSet(snap.Focus),
		}})
		s := Section{Heading: "Recent tasks"}
		for _, t := range firstN(week, weeklyListed) {
			s.Lines = append(s.Lines, taskLine(t, now, true))
		}
		if len(s.Lines) == 0 {
			s.Lines = []string{"No tasks this week"}
		}
		r.Sections = append(r.Sections, s)
	default:
		r.Kind = Full
		r.Sections = append(r.Sections, Section{Heading: "Summary", Lines: []string{
			"Generated: " + domain.LongDate(now),
			fmt.Sprintf("Total tasks: %d", len(snap.Tasks)),
			fmt.Sprintf("Total notes: %d", len(snap.Notes)),
			"Current focus: " + orNotSet(snap.Focus),
		}})
		tasks := Section{Heading: "Latest tasks", Lines: []string{}}
		for _, t := range firstN(snap.Tasks, fullTasksListed) {
			tasks.Lines = append(tasks.Lines, taskLine(t, now, true))
		}
		notes := Section{Heading: "Latest notes", Lines: []string{}}
		for _, n := range firstN(snap.Notes, fullNotesListed) {
			notes.Lines = append(notes.Lines, n.Title+": "+excerpt(n.Body, noteExcerptRunes))
		}
		r.Sections = append(r.Sections, tasks, notes)
	}
	return r
}

func appointmentLine(a domain.Appointment, snap domain.ClinicSnapshot, withDate bool) string {
	name := fmt.Sprintf("Unknown patient #%d", a.PatientID)
	if p, ok := snap.PatientByID(a.PatientID); ok {
		name = p.Name
	}
	when := a.DateTime
	if t, ok := domain.ParseDateTime(a.DateTime); ok {
		when = t.Format("15:04")
		if withDate {
			when = t.Format("02/01/2006 15:04")
		}
	}
	line := fmt.Sprintf("%s %s - %s [%s]", when, name, a.Reason, a.Status)
	return strings.TrimSpace(line)
}

func statusLine(list []domain.Appointment) string {
	c := domain.CountAppointments(list)
	return fmt.Sprintf("Scheduled: %d  Pending: %d  Done: %d  Cancelled: %d",
		c[domain.AppointmentScheduled], c[domain.AppointmentPending], c[domain.AppointmentDone], c[domain.AppointmentCancelled])
}

// Clinic builds an appointment report of the given kind.
func Clinic(kind Kind, snap domain.ClinicSnapshot, now time.Time) Report {
	r := Report{
		App:         ClinicApp,
		Kind:        kind,
		Title:       orDefault(snap.Config[domain.ConfigClinicName], "Zen Clinic"),
		Subtitle:    kind.label(),
		GeneratedAt: now,
	}
	switch kind {
	case Daily, Weekly:
		var list []domain.Appointment
		heading := "Today's appointments"
		period := "Date: " + domain.LongDate(now)
		if kind == Daily {
			list = snap.AppointmentsOn(domain.DateOf(now))
		} else {
			list = snap.AppointmentsSince(domain.DaysAgo(now, weekWindow))
			heading = "Recent appointments"
			period = fmt.Sprintf("Period: last %d days", weekWindow)
		}
		list = domain.SortAppointments(list)
		done := domain.CountAppointments(list)[domain.AppointmentDone]
		r.Sections = append(r.Sections, Section{Lines: []string{
			period,
			fmt.Sprintf("Appointments: %d", len(list)),
			statusLine(list),
			fmt.Sprintf("Completed: %d%%", domain.Percent(done, len(list))),
		}})
		s := Section{Heading: heading}
		shown := list
		if kind == Weekly {
			shown = firstN(list, weeklyListed)
		}
		for _, a := range shown {
			s.Lines = append(s.Lines, appointmentLine(a, snap, kind == Weekly))
		}
		if len(s.Lines) == 0 {
			s.Lines = []string{"No appointments"}
		}
		r.Sections = append(r.Sections, s)
	default:
		r.Kind = Full
		active := 0
		for _, p := range snap.Patients {
			if p.Status == domain.PatientActive {
				active++
			}
		}
		r.Sections = append(r.Sections, Section{Heading: "Summary", Lines: []string{
			"Generated: " + domain.LongDate(now),
			fmt.Sprintf("Patients: %d (%d active)", len(snap.Patients), active),
			fmt.Sprintf("Appointments: %d", len(snap.Appointments)),
			fmt.Sprintf("Documents: %d", len(snap.Documents)),
			statusLine(snap.Appointments),
		}})
		s := Section{Heading: "Latest appointments", Lines: []string{}}
		for _, a := range firstN(domain.SortAppointments(snap.Appointments), fullTasksListed) {
			s.Lines = append(s.Lines, appointmentLine(a, snap, true))
		}
		r.Sections = append(r.Sections, s)
	}
	return r
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
