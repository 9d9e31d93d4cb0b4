package domain

import (
	"time"
)

// MergeByID appends the records of imported whose id is absent from current.
// Existing records are never touched. Duplicate ids inside imported are added
// once. It returns the merged collection and the records that were added.
func MergeByID[T any](current, imported []T, id func(T) int64) ([]T, []T) {
	seen := make(map[int64]struct{}, len(current)+len(imported))
	for _, r := range current {
		seen[id(r)] = struct{}{}
	}
	merged := make([]T, 0, len(current)+len(imported))
	merged = append(merged, current...)
	added := make([]T, 0)
	for _, r := range imported {
		k := id(r)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		merged = append(merged, r)
		added = append(added, r)
	}
	return merged, added
}

// AgendaMergeResult counts what a merge import added.
type AgendaMergeResult struct {
	TasksAdded    int  `json:"tasksAdded"`
	NotesAdded    int  `json:"notesAdded"`
	FocusImported bool `json:"focusImported"`
}

// MergeAgenda unions imported records into current by id. The focus text is
// taken from imported only when current has none. Settings stay as they are.
func MergeAgenda(current, imported AgendaSnapshot) (AgendaSnapshot, AgendaMergeResult) {
	out := current.Clone()
	var res AgendaMergeResult
	var added []Task
	out.Tasks, added = MergeByID(out.Tasks, imported.Tasks, func(t Task) int64 { return t.ID })
	res.TasksAdded = len(added)
	var addedNotes []Note
	out.Notes, addedNotes = MergeByID(out.Notes, imported.Notes, func(n Note) int64 { return n.ID })
	res.NotesAdded = len(addedNotes)
	if out.Focus == "" && imported.Focus != "" {
		out.Focus = imported.Focus
		res.FocusImported = true
	}
	return out, res
}

// ReplaceAgenda returns imported as the new state with the last backup
// timestamp reset to now.
func ReplaceAgenda(imported AgendaSnapshot, now time.Time) AgendaSnapshot {
	out := imported.Clone()
	out.Settings.LastBackup = Stamp(now)
	return out
}

// ClinicMergePlan lists the records a clinic merge import must insert.
type ClinicMergePlan struct {
	Patients        []Patient
	Appointments    []Appointment
	Documents       []Document
	Config          ClinicConfig
	SkippedPatients int
}

// ClinicMergeResult counts what a clinic merge import added.
type ClinicMergeResult struct {
	PatientsAdded     int `json:"patientsAdded"`
	AppointmentsAdded int `json:"appointmentsAdded"`
	DocumentsAdded    int `json:"documentsAdded"`
	ConfigKeysAdded   int `json:"configKeysAdded"`
	PatientsSkipped   int `json:"patientsSkipped"`
}

// Result summarizes the plan.
func (p ClinicMergePlan) Result() ClinicMergeResult {
	return ClinicMergeResult{
		PatientsAdded:     len(p.Patients),
		AppointmentsAdded: len(p.Appointments),
		DocumentsAdded:    len(p.Documents),
		ConfigKeysAdded:   len(p.Config),
		PatientsSkipped:   p.SkippedPatients,
	}
}

// PlanClinicMerge computes the clinic records to add. A patient whose id is
// new but whose national id is already taken is skipped to keep national ids
// unique. Config keys are filled only where the current value is empty.
func PlanClinicMerge(current, imported ClinicSnapshot) ClinicMergePlan {
	var plan ClinicMergePlan

	nationalIDs := make(map[string]struct{}, len(current.Patients))
	for _, p := range current.Patients {
		nationalIDs[NormalizeNationalID(p.NationalID)] = struct{}{}
	}
	_, candidates := MergeByID(current.Patients, imported.Patients, func(p Patient) int64 { return p.ID })
	plan.Patients = make([]Patient, 0, len(candidates))
	for _, p := range candidates {
		p.NationalID = NormalizeNationalID(p.NationalID)
		if _, taken := nationalIDs[p.NationalID]; taken {
			plan.SkippedPatients++
			continue
		}
		nationalIDs[p.NationalID] = struct{}{}
		plan.Patients = append(plan.Patients, p)
	}

	_, plan.Appointments = MergeByID(current.Appointments, imported.Appointments, func(a Appointment) int64 { return a.ID })
	_, plan.Documents = MergeByID(current.Documents, imported.Documents, func(d Document) int64 { return d.ID })

	plan.Config = ClinicConfig{}
	for k, v := range imported.Config {
		if k == ConfigLastBackup || v == "" {
			continue
		}
		if current.Config[k] == "" {
			plan.Config[k] = v
		}
	}
	return plan
}

// ReplaceClinic returns imported as the new state with the last backup
// timestamp reset to now.
func ReplaceClinic(imported ClinicSnapshot, now time.Time) ClinicSnapshot {
	out := imported.Clone()
	out.Config[ConfigLastBackup] = Stamp(now).Format(TimestampLayout)
	return out
}
