package agenda

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
	"zen-records/storage"
)

func emptyApp(t *testing.T) *App {
	t.Helper()
	kv := storage.NewMemoryStore(0)
	store := storage.NewSnapshotStore[domain.AgendaSnapshot](kv, "agenda")
	if err := store.Save(context.Background(), domain.EmptyAgenda(time.Now())); err != nil {
		t.Fatalf("save: %v", err)
	}
	app, _ := newTestApp(t, kv)
	app.Open(context.Background())
	return app
}

func withoutTimestamps(s domain.AgendaSnapshot) domain.AgendaSnapshot {
	s.Settings.LastBackup = time.Time{}
	return s
}

func TestAddToggleExportReplaceScenario(t *testing.T) {
	ctx := context.Background()
	app := emptyApp(t)

	task, err := app.AddTask(ctx, "Buy milk", domain.PriorityNormal)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	snap := app.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].Done {
		t.Fatalf("unexpected tasks %+v", snap.Tasks)
	}
	if _, ok := app.ToggleTask(ctx, task.ID); !ok {
		t.Fatalf("toggle failed")
	}
	if !app.Snapshot().Tasks[0].Done {
		t.Fatalf("task must be done")
	}

	art, err := app.ExportBackup(ctx)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.HasPrefix(art.Name, "agenda_zen_backup_20240310_") || art.ContentType != report.ContentTypeJSON {
		t.Fatalf("unexpected artifact %s %s", art.Name, art.ContentType)
	}

	fresh := emptyApp(t)
	if _, err := fresh.Import(ctx, art.Data, domain.ImportReplace); err != nil {
		t.Fatalf("import: %v", err)
	}
	if got, want := withoutTimestamps(fresh.Snapshot()), withoutTimestamps(app.Snapshot()); !reflect.DeepEqual(got, want) {
		t.Fatalf("replace import differs:\n got %+v\nwant %+v", got, want)
	}
}

func TestImportMergeAddsOnlyNewRecords(t *testing.T) {
	ctx := context.Background()
	app, n := newTestApp(t, storage.NewMemoryStore(0))
	app.Open(ctx)

	data := []byte(`{
		"focus": "Imported focus",
		"tasks": [
			{"id": 1, "text": "Duplicate of seed", "done": false, "important": false, "urgent": false, "date": "2024-01-01"},
			{"id": 50, "text": "New one", "done": false, "important": false, "urgent": false, "date": "2024-01-01"}
		],
		"notes": [{"id": 7, "title": "T", "body": "B", "date": "2024-01-01"}],
		"settings": {"lastBackup": "2020-01-01T00:00:00.000Z", "theme": "dark"}
	}`)
	res, err := app.Import(ctx, data, domain.ImportMerge)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if res.TasksAdded != 1 || res.NotesAdded != 1 || !res.FocusImported {
		t.Fatalf("unexpected result %+v", res)
	}
	snap := app.Snapshot()
	if snap.Tasks[0].Text != "Explore the agenda" {
		t.Fatalf("existing record must not be overwritten: %+v", snap.Tasks[0])
	}
	if len(snap.Tasks) != 4 || len(snap.Notes) != 2 {
		t.Fatalf("unexpected sizes %d/%d", len(snap.Tasks), len(snap.Notes))
	}
	if snap.Settings.Theme != "light" {
		t.Fatalf("merge must keep current settings")
	}
	if snap.Settings.LastBackup.Year() != 2024 {
		t.Fatalf("merge must update the backup timestamp, got %v", snap.Settings.LastBackup)
	}
	if !strings.Contains(n.last().Text, "1 tasks and 1 notes added") {
		t.Fatalf("unexpected notice %+v", n.last())
	}
}

func TestImportRejectsInvalidFileWithoutMutation(t *testing.T) {
	ctx := context.Background()
	app, n := newTestApp(t, storage.NewMemoryStore(0))
	app.Open(ctx)
	before := app.Snapshot()

	for _, data := range []string{`not json`, `{"tasks": {}, "notes": [], "settings": {}}`, `{"tasks": [], "notes": []}`} {
		if _, err := app.Import(ctx, []byte(data), domain.ImportReplace); !errors.Is(err, domain.ErrInvalidBackup) {
			t.Fatalf("expected ErrInvalidBackup for %s, got %v", data, err)
		}
		if n.last().Level != notice.Error {
			t.Fatalf("expected error notice")
		}
	}
	if !reflect.DeepEqual(app.Snapshot(), before) {
		t.Fatalf("state changed after invalid import")
	}
}

func TestResetExportsThenClears(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0)
	app, _ := newTestApp(t, kv)
	app.Open(ctx)

	art, err := app.Reset(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	backup, err := domain.DecodeAgendaBackup(art.Data)
	if err != nil {
		t.Fatalf("reset backup must be a valid backup: %v", err)
	}
	if len(backup.Tasks) != 3 {
		t.Fatalf("backup must hold the data before reset")
	}
	snap := app.Snapshot()
	if len(snap.Tasks) != 0 || len(snap.Notes) != 0 || snap.Focus != "" {
		t.Fatalf("state must be empty after reset: %+v", snap)
	}
	if _, err := kv.Get(ctx, "agenda"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("slot must be cleared, got %v", err)
	}
}

func TestExportReport(t *testing.T) {
	ctx := context.Background()
	app, _ := newTestApp(t, storage.NewMemoryStore(0))
	app.Open(ctx)

	art, err := app.ExportReport(ctx, report.Daily, report.FormatText)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if !strings.HasPrefix(art.Name, "agenda_zen_daily_") || !strings.Contains(string(art.Data), "Progress: 1/3 tasks (33%)") {
		t.Fatalf("unexpected report %s:\n%s", art.Name, art.Data)
	}
}

func TestReportPreviewDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore(0)
	app, _ := newTestApp(t, kv)
	app.Open(ctx)
	before, err := kv.Get(ctx, "agenda")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	stamp := app.LastBackup()

	if r := app.Report(ctx, report.Weekly); r.Kind != report.Weekly {
		t.Fatalf("unexpected report %+v", r)
	}
	after, err := kv.Get(ctx, "agenda")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !reflect.DeepEqual(before, after) || !app.LastBackup().Equal(stamp) {
		t.Fatalf("building a report must not rewrite the stored snapshot")
	}

	if _, err := app.ExportReport(ctx, report.Weekly, report.FormatText); err != nil {
		t.Fatalf("export report: %v", err)
	}
	if !app.LastBackup().After(stamp) {
		t.Fatalf("a downloaded report must stamp the backup time")
	}
}

func TestImportIsTraced(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	app, _ := newTestApp(t, storage.NewMemoryStore(0))
	if _, err := app.Import(context.Background(), []byte(`[]`), domain.ImportMerge); err == nil {
		t.Fatalf("expected import error")
	}

	spans := exporter.GetSpans()
	var found bool
	for _, s := range spans {
		if s.Name == "agenda.import" {
			found = true
			if s.Status.Code != codes.Error {
				t.Fatalf("expected error status, got %v", s.Status.Code)
			}
		}
	}
	if !found {
		t.Fatalf("expected agenda.import span, got %d spans", len(spans))
	}
}
