// Package view turns domain snapshots into view models and renders them as
// HTML fragments. Builders are pure; every call renders the whole view.
package view

import (
	"time"

	"zen-records/domain"
)

var tips = []string{
	"Break big tasks into small steps.",
	"Celebrate every small win.",
	"Try Pomodoro: 25 minutes of focus, 5 minutes of rest.",
	"Write down whatever comes to mind to free up headspace.",
	"Start with the hardest task of the day.",
	"Take a deep breath before you begin.",
	"Progress, not perfection.",
	"Take regular breaks to recharge.",
	"Keep only three main tasks per day.",
	"Picture the goal already reached.",
	"Back up your data regularly.",
	"Use priorities to order your tasks.",
}

// Tip returns the productivity tip for the hour of now.
func Tip(now time.Time) string {
	return tips[(now.YearDay()*24+now.Hour())%len(tips)]
}

// LastBackupLabel formats the last backup time for display.
func LastBackupLabel(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Local().Format("02/01/2006 15:04:05")
}

type TaskItem struct {
	ID        int64
	Text      string
	Done      bool
	Important bool
	Urgent    bool
	Date      string
	DateLabel string
}

func taskItems(tasks []domain.Task, now time.Time) []TaskItem {
	out := make([]TaskItem, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, TaskItem{
			ID:        t.ID,
			Text:      t.Text,
			Done:      t.Done,
			Important: t.Important,
			Urgent:    t.Urgent,
			Date:      t.Date,
			DateLabel: domain.DateLabel(t.Date, now),
		})
	}
	return out
}

// TodayView is the landing view: focus, today's tasks and progress.
type TodayView struct {
	Focus      string
	Date       string
	Tasks      []TaskItem
	Done       int
	Total      int
	Percent    int
	Tip        string
	LastBackup string
}

// Today lists the tasks dated today in insertion order.
func Today(snap domain.AgendaSnapshot, now time.Time) TodayView {
	today := snap.TasksOn(domain.DateOf(now))
	done, total, pct := domain.Progress(today)
	return TodayView{
		Focus:      snap.Focus,
		Date:       domain.LongDate(now),
		Tasks:      taskItems(today, now),
		Done:       done,
		Total:      total,
		Percent:    pct,
		Tip:        Tip(now),
		LastBackup: LastBackupLabel(snap.Settings.LastBackup),
	}
}

type TaskListView struct {
	Tasks []TaskItem
}

// TaskList lists every task, incomplete first, then urgent, important and
// most recent.
func TaskList(snap domain.AgendaSnapshot, now time.Time) TaskListView {
	return TaskListView{Tasks: taskItems(domain.SortTasks(snap.Tasks), now)}
}

type NoteItem struct {
	ID        int64
	Title     string
	Body      string
	DateLabel string
}

type NoteListView struct {
	Notes []NoteItem
	Limit int
}

// NoteList lists notes in stored order, newest first.
func NoteList(snap domain.AgendaSnapshot, now time.Time) NoteListView {
	v := NoteListView{Notes: make([]NoteItem, 0, len(snap.Notes)), Limit: domain.MaxNoteBodyLength}
	for _, n := range snap.Notes {
		v.Notes = append(v.Notes, NoteItem{ID: n.ID, Title: n.Title, Body: n.Body, DateLabel: domain.DateLabel(n.Date, now)})
	}
	return v
}

// AgendaStats aggregates the agenda for the dashboard.
type AgendaStats struct {
	TotalTasks       int
	DoneTasks        int
	PendingTasks     int
	UrgentPending    int
	ImportantPending int
	TotalNotes       int
	TodayPercent     int
	WeekPercent      int
	Focus            string
	LastBackup       string
}

func AgendaDashboard(snap domain.AgendaSnapshot, now time.Time) AgendaStats {
	s := AgendaStats{
		TotalTasks: len(snap.Tasks),
		TotalNotes: len(snap.Notes),
		Focus:      snap.Focus,
		LastBackup: LastBackupLabel(snap.Settings.LastBackup),
	}
	for _, t := range snap.Tasks {
		if t.Done {
			s.DoneTasks++
			continue
		}
		if t.Urgent {
			s.UrgentPending++
		}
		if t.Important {
			s.ImportantPending++
		}
	}
	s.PendingTasks = s.TotalTasks - s.DoneTasks
	_, _, s.TodayPercent = domain.Progress(snap.TasksOn(domain.DateOf(now)))
	_, _, s.WeekPercent = domain.Progress(snap.TasksSince(domain.DaysAgo(now, 7)))
	return s
}
