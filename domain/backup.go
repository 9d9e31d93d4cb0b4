package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
)

// ImportMode selects how an imported snapshot is applied.
type ImportMode string

const (
	ImportMerge   ImportMode = "merge"
	ImportReplace ImportMode = "replace"
)

// ParseImportMode maps a request value to an import mode. An empty value
// selects merge.
func ParseImportMode(s string) (ImportMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ImportMerge):
		return ImportMerge, nil
	case string(ImportReplace), "overwrite":
		return ImportReplace, nil
	}
	return "", invalid("mode", "unknown import mode "+s)
}

type shape struct {
	arrays   []string
	optional []string
	objects  []string
}

var (
	agendaShape = shape{arrays: []string{"tasks", "notes"}, objects: []string{"settings"}}
	clinicShape = shape{arrays: []string{"patients", "appointments"}, optional: []string{"documents"}, objects: []string{"config"}}
)

func (s shape) check(data []byte) error {
	var raw map[string]json.RawMessage
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: not an object", ErrInvalidBackup)
	}
	for _, k := range s.arrays {
		if kindOf(raw[k]) != '[' {
			return fmt.Errorf("%w: %q must be a list", ErrInvalidBackup, k)
		}
	}
	for _, k := range s.optional {
		v, ok := raw[k]
		if !ok {
			continue
		}
		if c := kindOf(v); c != '[' && c != 'n' {
			return fmt.Errorf("%w: %q must be a list", ErrInvalidBackup, k)
		}
	}
	for _, k := range s.objects {
		if kindOf(raw[k]) != '{' {
			return fmt.Errorf("%w: %q must be an object", ErrInvalidBackup, k)
		}
	}
	return nil
}

func kindOf(v json.RawMessage) byte {
	v = bytes.TrimLeft(v, " \t\r\n")
	if len(v) == 0 {
		return 0
	}
	return v[0]
}

// DecodeAgendaBackup parses and validates an agenda backup file. Any shape
// mismatch yields ErrInvalidBackup.
func DecodeAgendaBackup(data []byte) (AgendaSnapshot, error) {
	if err := agendaShape.check(data); err != nil {
		return AgendaSnapshot{}, err
	}
	var b AgendaBackup
	if err := sonic.Unmarshal(data, &b); err != nil {
		return AgendaSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if id, dup := duplicateID(b.Tasks, func(t Task) int64 { return t.ID }); dup {
		return AgendaSnapshot{}, fmt.Errorf("%w: task id %d appears twice", ErrInvalidBackup, id)
	}
	if id, dup := duplicateID(b.Notes, func(n Note) int64 { return n.ID }); dup {
		return AgendaSnapshot{}, fmt.Errorf("%w: note id %d appears twice", ErrInvalidBackup, id)
	}
	return b.AgendaSnapshot.Clone(), nil
}

// duplicateID returns the first id that occurs twice in list. Zero ids are
// left for the store to assign and never count as duplicates.
func duplicateID[T any](list []T, id func(T) int64) (int64, bool) {
	seen := make(map[int64]struct{}, len(list))
	for _, r := range list {
		k := id(r)
		if k == 0 {
			continue
		}
		if _, ok := seen[k]; ok {
			return k, true
		}
		seen[k] = struct{}{}
	}
	return 0, false
}

// DecodeClinicBackup parses a clinic backup file and checks its shape. Record
// contents are checked by ValidateClinicSnapshot.
func DecodeClinicBackup(data []byte) (ClinicSnapshot, error) {
	if err := clinicShape.check(data); err != nil {
		return ClinicSnapshot{}, err
	}
	var b ClinicBackup
	if err := sonic.Unmarshal(data, &b); err != nil {
		return ClinicSnapshot{}, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return b.ClinicSnapshot.Clone(), nil
}
