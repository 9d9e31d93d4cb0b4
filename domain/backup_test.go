package domain

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestDecodeAgendaBackupRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"tasks": [`,
		"array":           `[]`,
		"null":            `null`,
		"missing tasks":   `{"notes": [], "settings": {}}`,
		"tasks object":    `{"tasks": {}, "notes": [], "settings": {}}`,
		"notes string":    `{"tasks": [], "notes": "x", "settings": {}}`,
		"settings list":   `{"tasks": [], "notes": [], "settings": []}`,
		"settings null":   `{"tasks": [], "notes": [], "settings": null}`,
		"bad task field":  `{"tasks": [{"id": "x"}], "notes": [], "settings": {}}`,
		"bad lastBackup":  `{"tasks": [], "notes": [], "settings": {"lastBackup": "yesterday"}}`,
		"twin task ids":   `{"tasks": [{"id": 3, "text": "a"}, {"id": 3, "text": "b"}], "notes": [], "settings": {}}`,
		"twin note ids":   `{"tasks": [], "notes": [{"id": 9, "title": "a"}, {"id": 9, "title": "b"}], "settings": {}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeAgendaBackup([]byte(body)); !errors.Is(err, ErrInvalidBackup) {
				t.Fatalf("expected ErrInvalidBackup, got %v", err)
			}
		})
	}
}

func TestAgendaBackupRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 4, 5, 6, 7, 891_000_000, time.UTC)
	snap := DefaultAgenda(now)
	snap.Focus = "write"
	snap.Settings.Extra = map[string]any{"fontSize": float64(14), "lang": "en"}

	data, err := sonic.Marshal(snap.NewBackup("exp-1", now))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got, err := DecodeAgendaBackup(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !reflect.DeepEqual(got, snap) {
		t.Fatalf("round trip mismatch:\nwant %+v\ngot  %+v", snap, got)
	}
}

func TestDecodeClinicBackup(t *testing.T) {
	body := `{"patients":[{"id":1,"name":"Ana","nationalId":"1","status":"active"}],
		"appointments":[],"config":{"clinicName":"C"},"metadata":{"version":"1.0"}}`
	snap, err := DecodeClinicBackup([]byte(body))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Patients) != 1 || snap.Documents == nil || snap.Config[ConfigClinicName] != "C" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	for _, bad := range []string{
		`{"patients":[],"appointments":[],"documents":{},"config":{}}`,
		`{"patients":[],"appointments":[]}`,
		`{"patients":[],"appointments":[],"config":{"clinicName":3}}`,
	} {
		if _, err := DecodeClinicBackup([]byte(bad)); !errors.Is(err, ErrInvalidBackup) {
			t.Fatalf("expected ErrInvalidBackup for %s, got %v", bad, err)
		}
	}
}

func TestParseImportMode(t *testing.T) {
	if m, _ := ParseImportMode(""); m != ImportMerge {
		t.Fatalf("expected merge default, got %q", m)
	}
	if m, _ := ParseImportMode("Replace"); m != ImportReplace {
		t.Fatalf("expected replace, got %q", m)
	}
	if _, err := ParseImportMode("append"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
