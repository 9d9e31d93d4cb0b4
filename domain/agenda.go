package domain

import (
	"slices"
	"time"
)

// Task is a single agenda item.
type Task struct {
	ID        int64  `json:"id"`
	Text      string `json:"text"`
	Done      bool   `json:"done"`
	Important bool   `json:"important"`
	Urgent    bool   `json:"urgent"`
	Date      string `json:"date"`
}

// Note is an immutable free text entry. Notes are kept newest first.
type Note struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Body  string `json:"body"`
	Date  string `json:"date"`
}

// Priority is the form level priority selector for new tasks.
type Priority string

const (
	PriorityNormal    Priority = "normal"
	PriorityImportant Priority = "important"
	PriorityUrgent    Priority = "urgent"
)

// ParsePriority maps form input to a priority, defaulting to normal.
func ParsePriority(s string) Priority {
	switch Priority(s) {
	case PriorityImportant:
		return PriorityImportant
	case PriorityUrgent:
		return PriorityUrgent
	default:
		return PriorityNormal
	}
}

// AgendaSnapshot is the complete persisted state of the agenda.
type AgendaSnapshot struct {
	Focus    string   `json:"focus"`
	Tasks    []Task   `json:"tasks"`
	Notes    []Note   `json:"notes"`
	Settings Settings `json:"settings"`
}

// AgendaMetadata describes an exported agenda backup.
type AgendaMetadata struct {
	Version    string    `json:"version"`
	ExportID   string    `json:"exportId,omitempty"`
	ExportedAt time.Time `json:"exportedAt"`
	TotalTasks int       `json:"totalTasks"`
	TotalNotes int       `json:"totalNotes"`
}

// AgendaBackup is the on-disk backup format: the snapshot plus metadata.
type AgendaBackup struct {
	AgendaSnapshot
	Metadata AgendaMetadata `json:"metadata"`
}

// BackupVersion is the free-text schema tag written to backups.
const BackupVersion = "1.0"

// Clone returns a deep copy whose collections are never nil.
func (s AgendaSnapshot) Clone() AgendaSnapshot {
	out := AgendaSnapshot{
		Focus:    s.Focus,
		Tasks:    slices.Clone(s.Tasks),
		Notes:    slices.Clone(s.Notes),
		Settings: s.Settings.clone(),
	}
	if out.Tasks == nil {
		out.Tasks = []Task{}
	}
	if out.Notes == nil {
		out.Notes = []Note{}
	}
	return out
}

// TaskIndex returns the position of the task with id, or -1.
func (s AgendaSnapshot) TaskIndex(id int64) int {
	return slices.IndexFunc(s.Tasks, func(t Task) bool { return t.ID == id })
}

// NoteIndex returns the position of the note with id, or -1.
func (s AgendaSnapshot) NoteIndex(id int64) int {
	return slices.IndexFunc(s.Notes, func(n Note) bool { return n.ID == id })
}

// TasksOn returns the tasks dated on the given day, in insertion order.
func (s AgendaSnapshot) TasksOn(date string) []Task {
	out := make([]Task, 0)
	for _, t := range s.Tasks {
		if t.Date == date {
			out = append(out, t)
		}
	}
	return out
}

// TasksSince returns the tasks dated on or after the given day.
func (s AgendaSnapshot) TasksSince(date string) []Task {
	out := make([]Task, 0)
	for _, t := range s.Tasks {
		if t.Date >= date {
			out = append(out, t)
		}
	}
	return out
}

// NewBackup wraps the snapshot with export metadata.
func (s AgendaSnapshot) NewBackup(exportID string, now time.Time) AgendaBackup {
	snap := s.Clone()
	return AgendaBackup{
		AgendaSnapshot: snap,
		Metadata: AgendaMetadata{
			Version:    BackupVersion,
			ExportID:   exportID,
			ExportedAt: Stamp(now),
			TotalTasks: len(snap.Tasks),
			TotalNotes: len(snap.Notes),
		},
	}
}

// EmptyAgenda returns a snapshot with no records.
func EmptyAgenda(now time.Time) AgendaSnapshot {
	return AgendaSnapshot{
		Tasks:    []Task{},
		Notes:    []Note{},
		Settings: Settings{LastBackup: Stamp(now), Theme: "light"},
	}
}

// DefaultAgenda returns the first run snapshot with example records.
func DefaultAgenda(now time.Time) AgendaSnapshot {
	today := DateOf(now)
	s := EmptyAgenda(now)
	s.Tasks = []Task{
		{ID: 1, Text: "Explore the agenda", Done: true, Important: true, Date: today},
		{ID: 2, Text: "Back up your data", Important: true, Date: today},
		{ID: 3, Text: "Set your focus for the day", Important: true, Date: today},
	}
	s.Notes = []Note{
		{
			ID:    1,
			Title: "Welcome!",
			Body:  "This is your first note. Write anything here!\n\nTip: export a backup regularly with the 'Export Backup' button.",
			Date:  today,
		},
	}
	return s
}

// Progress returns the rounded completion percentage of tasks.
func Progress(tasks []Task) (done, total, percent int) {
	total = len(tasks)
	for _, t := range tasks {
		if t.Done {
			done++
		}
	}
	return done, total, Percent(done, total)
}

// Percent rounds part/total to the nearest integer percentage, 0 when total is 0.
func Percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	return (part*200 + total) / (total * 2)
}
