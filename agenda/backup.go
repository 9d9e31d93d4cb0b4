package agenda

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
)

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ExportBackup stamps the backup time and returns the JSON backup file.
func (a *App) ExportBackup(ctx context.Context) (report.Artifact, error) {
	ctx, span := a.tracer.Start(ctx, "agenda.export")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()
	art, err := a.exportLocked(ctx)
	if err != nil {
		failSpan(span, err)
		a.notices.Notify(notice.Error, "Could not export backup")
		return report.Artifact{}, err
	}
	span.SetAttributes(attribute.Int("agenda.backup.bytes", len(art.Data)))
	a.notices.Notify(notice.Success, "Backup exported")
	return art, nil
}

func (a *App) exportLocked(ctx context.Context) (report.Artifact, error) {
	start := time.Now()
	now := a.now()
	a.touch(ctx)
	backup := a.state.NewBackup(a.newID(), now)
	art, err := report.Backup(report.AgendaApp, backup, now)
	fields := log.Fields{
		"export_id":   backup.Metadata.ExportID,
		"total_tasks": backup.Metadata.TotalTasks,
		"total_notes": backup.Metadata.TotalNotes,
		"total_ms":    float64(time.Since(start)) / float64(time.Millisecond),
	}
	if err != nil {
		fields["error"] = err.Error()
		a.logger.WithFields(fields).Error("agenda.export.metrics")
		return report.Artifact{}, err
	}
	fields["bytes"] = len(art.Data)
	a.logger.WithFields(fields).Info("agenda.export.metrics")
	return art, nil
}

// Import applies a backup file. The file is validated before anything is
// changed; an invalid file leaves the state untouched.
func (a *App) Import(ctx context.Context, data []byte, mode domain.ImportMode) (domain.AgendaMergeResult, error) {
	ctx, span := a.tracer.Start(ctx, "agenda.import", trace.WithAttributes(attribute.String("agenda.import.mode", string(mode))))
	defer span.End()
	start := time.Now()

	imported, err := domain.DecodeAgendaBackup(data)
	if err != nil {
		failSpan(span, err)
		a.logger.WithFields(log.Fields{"mode": mode, "bytes": len(data), "error": err.Error()}).Warn("agenda.import.metrics")
		a.notices.Notify(notice.Error, "Invalid backup file")
		return domain.AgendaMergeResult{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	var res domain.AgendaMergeResult
	var text string
	switch mode {
	case domain.ImportReplace:
		a.state = domain.ReplaceAgenda(imported, a.now())
		res = domain.AgendaMergeResult{TasksAdded: len(a.state.Tasks), NotesAdded: len(a.state.Notes), FocusImported: a.state.Focus != ""}
		text = "Backup imported. All data was replaced."
	case domain.ImportMerge:
		a.state, res = domain.MergeAgenda(a.state, imported)
		text = fmt.Sprintf("Backup imported! %d tasks and %d notes added.", res.TasksAdded, res.NotesAdded)
	default:
		err := fmt.Errorf("%w: mode %q", domain.ErrValidation, mode)
		failSpan(span, err)
		return res, a.reject(err)
	}
	a.touch(ctx)

	span.SetAttributes(attribute.Int("agenda.import.tasks_added", res.TasksAdded), attribute.Int("agenda.import.notes_added", res.NotesAdded))
	a.logger.WithFields(log.Fields{
		"mode":           mode,
		"bytes":          len(data),
		"tasks_added":    res.TasksAdded,
		"notes_added":    res.NotesAdded,
		"focus_imported": res.FocusImported,
		"total_ms":       float64(time.Since(start)) / float64(time.Millisecond),
	}).Info("agenda.import.metrics")
	a.notices.Notify(notice.Success, text)
	return res, nil
}

// Report builds the report of the given kind without touching the store.
func (a *App) Report(_ context.Context, kind report.Kind) report.Report {
	a.mu.Lock()
	defer a.mu.Unlock()
	return report.Agenda(kind, a.state, a.now())
}

// ExportReport renders the report of the given kind as a downloadable file.
func (a *App) ExportReport(ctx context.Context, kind report.Kind, format report.Format) (report.Artifact, error) {
	ctx, span := a.tracer.Start(ctx, "agenda.report", trace.WithAttributes(
		attribute.String("agenda.report.kind", string(kind)),
		attribute.String("agenda.report.format", string(format)),
	))
	defer span.End()

	// A downloaded report counts as an automatic backup point.
	a.mu.Lock()
	r := report.Agenda(kind, a.state, a.now())
	a.touch(ctx)
	a.mu.Unlock()
	art, err := report.Render(r, format)
	if err != nil {
		failSpan(span, err)
		a.logger.WithError(err).Error("agenda: report failed")
		a.notices.Notify(notice.Error, "Could not generate the report")
		return report.Artifact{}, err
	}
	a.notices.Notify(notice.Success, "Report downloaded")
	return art, nil
}

// Reset exports a backup and then clears every record and the stored slot.
// When the backup cannot be produced nothing is cleared.
func (a *App) Reset(ctx context.Context) (report.Artifact, error) {
	ctx, span := a.tracer.Start(ctx, "agenda.reset")
	defer span.End()

	a.mu.Lock()
	defer a.mu.Unlock()
	art, err := a.exportLocked(ctx)
	if err != nil {
		failSpan(span, err)
		a.notices.Notify(notice.Error, "Could not export backup; nothing was cleared")
		return report.Artifact{}, err
	}
	if err := a.store.Clear(ctx); err != nil {
		failSpan(span, err)
		a.logger.WithError(errors.Join(domain.ErrPersistence, err)).Error("agenda: clear failed")
		a.notices.Notify(notice.Error, "Could not clear saved data")
	}
	a.state = domain.EmptyAgenda(a.now())
	a.notices.Notify(notice.Info, "All data was cleared. A backup was generated.")
	return art, nil
}
