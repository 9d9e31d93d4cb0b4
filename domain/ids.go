package domain

import "time"

// NextID derives a record id from the creation time. The result is strictly
// greater than every id in existing so two records created within the same
// millisecond still get distinct ids.
func NextID(now time.Time, existing ...int64) int64 {
	id := now.UnixMilli()
	for _, e := range existing {
		if e >= id {
			id = e + 1
		}
	}
	return id
}

// TaskIDs lists every task id of the snapshot.
func (s AgendaSnapshot) TaskIDs() []int64 {
	ids := make([]int64, len(s.Tasks))
	for i, t := range s.Tasks {
		ids[i] = t.ID
	}
	return ids
}

// NoteIDs lists every note id of the snapshot.
func (s AgendaSnapshot) NoteIDs() []int64 {
	ids := make([]int64, len(s.Notes))
	for i, n := range s.Notes {
		ids[i] = n.ID
	}
	return ids
}
