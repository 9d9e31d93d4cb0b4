package domain

import (
	"slices"
	"strings"
)

// SortTasks returns a copy of tasks ordered incomplete first, then urgent,
// then important, then most recent date. Equal tasks keep their relative order.
func SortTasks(tasks []Task) []Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, compareTasks)
	return out
}

func compareTasks(a, b Task) int {
	if a.Done != b.Done {
		if a.Done {
			return 1
		}
		return -1
	}
	if a.Urgent != b.Urgent {
		if a.Urgent {
			return -1
		}
		return 1
	}
	if a.Important != b.Important {
		if a.Important {
			return -1
		}
		return 1
	}
	ad, aok := ParseDate(a.Date)
	bd, bok := ParseDate(b.Date)
	if !aok || !bok {
		// unparseable dates compare equal
		return 0
	}
	return bd.Compare(ad)
}

// SortAppointments orders appointments by timestamp, earliest first.
func SortAppointments(list []Appointment) []Appointment {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b Appointment) int {
		return strings.Compare(a.DateTime, b.DateTime)
	})
	return out
}

// SortPatients orders patients by name, case insensitive.
func SortPatients(list []Patient) []Patient {
	out := slices.Clone(list)
	slices.SortStableFunc(out, func(a, b Patient) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}
