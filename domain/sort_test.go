package domain

import (
	"testing"
	"time"
)

func TestSortTasksOrdering(t *testing.T) {
	tasks := []Task{
		{ID: 1, Text: "done urgent", Done: true, Urgent: true, Important: true, Date: "2024-05-10"},
		{ID: 2, Text: "plain old", Date: "2024-05-01"},
		{ID: 3, Text: "important", Important: true, Date: "2024-05-02"},
		{ID: 4, Text: "urgent important", Urgent: true, Important: true, Date: "2024-05-03"},
		{ID: 5, Text: "plain new", Date: "2024-05-09"},
		{ID: 6, Text: "urgent", Urgent: true, Date: "2024-05-04"},
		{ID: 7, Text: "done plain", Done: true, Date: "2024-05-11"},
	}

	got := SortTasks(tasks)
	want := []int64{4, 6, 3, 5, 2, 1, 7}
	if len(got) != len(want) {
		t.Fatalf("expected %d tasks, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: want id %d, got %d (%+v)", i, id, got[i].ID, got)
		}
	}
	if tasks[0].ID != 1 {
		t.Fatalf("input slice must not be reordered")
	}
}

func TestSortTasksIncompleteUrgentImportantBeforeCompleted(t *testing.T) {
	tasks := []Task{
		{ID: 1, Done: true, Date: "2030-01-01"},
		{ID: 2, Done: true, Urgent: true, Important: true, Date: "2030-01-02"},
		{ID: 3, Urgent: true, Important: true, Date: "2000-01-01"},
		{ID: 4, Done: true, Date: "1999-01-01"},
		{ID: 5, Urgent: true, Important: true, Date: "2001-01-01"},
	}
	got := SortTasks(tasks)
	lastHot := -1
	firstDone := len(got)
	for i, task := range got {
		if !task.Done && task.Urgent && task.Important {
			lastHot = i
		}
		if task.Done && i < firstDone {
			firstDone = i
		}
	}
	if lastHot >= firstDone {
		t.Fatalf("incomplete urgent important tasks must precede completed ones: %+v", got)
	}
	if got[0].ID != 5 || got[1].ID != 3 {
		t.Fatalf("ties must break by descending date, got %+v", got[:2])
	}
}

func TestSortTasksStableForEqualKeys(t *testing.T) {
	tasks := []Task{
		{ID: 10, Date: "2024-01-01"},
		{ID: 11, Date: "2024-01-01"},
		{ID: 12, Date: "not a date"},
		{ID: 13, Date: "2024-01-01"},
	}
	got := SortTasks(tasks)
	for i := range tasks {
		if got[i].ID != tasks[i].ID {
			t.Fatalf("expected stable order, got %+v", got)
		}
	}
}

func TestDateLabel(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		date string
		want string
	}{
		{"2024-03-10", "Today"},
		{"2024-03-09", "Yesterday"},
		{"2024-02-01", "01/02/2024"},
		{"someday", "someday"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			if got := DateLabel(tt.date, now); got != tt.want {
				t.Fatalf("DateLabel(%q) = %q, want %q", tt.date, got, tt.want)
			}
		})
	}
	if got := FileStamp(now); got != "20240310_0930" {
		t.Fatalf("FileStamp = %q", got)
	}
}
