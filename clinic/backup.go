package clinic

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
	"zen-records/storage"
)

func failSpan(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ExportBackup stamps the backup time and returns the JSON backup file.
func (s *Service) ExportBackup(ctx context.Context) (report.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "clinic.export")
	defer span.End()
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch(ctx)
	snap, err := s.db.Snapshot(ctx)
	if err != nil {
		failSpan(span, err)
		s.notices.Notify(notice.Error, "Could not export backup")
		return report.Artifact{}, fmt.Errorf("%w: %v", domain.ErrExport, err)
	}
	now := s.now()
	backup := snap.NewBackup(s.newID(), now)
	art, err := report.Backup(report.ClinicApp, backup, now)
	fields := log.Fields{
		"export_id":          backup.Metadata.ExportID,
		"total_patients":     backup.Metadata.TotalPatients,
		"total_appointments": backup.Metadata.TotalAppointments,
		"total_documents":    backup.Metadata.TotalDocuments,
		"total_ms":           float64(time.Since(start)) / float64(time.Millisecond),
	}
	if err != nil {
		failSpan(span, err)
		fields["error"] = err.Error()
		s.logger.WithFields(fields).Error("clinic.export.metrics")
		s.notices.Notify(notice.Error, "Could not export backup")
		return report.Artifact{}, err
	}
	fields["bytes"] = len(art.Data)
	s.logger.WithFields(fields).Info("clinic.export.metrics")
	s.notices.Notify(notice.Success, "Backup exported")
	return art, nil
}

// Import applies a clinic backup file. Merge inserts only records whose id
// is new; a new patient whose national id is already registered is skipped.
func (s *Service) Import(ctx context.Context, data []byte, mode domain.ImportMode) (domain.ClinicMergeResult, error) {
	ctx, span := s.tracer.Start(ctx, "clinic.import", trace.WithAttributes(attribute.String("clinic.import.mode", string(mode))))
	defer span.End()
	start := time.Now()

	imported, err := domain.DecodeClinicBackup(data)
	if err == nil {
		imported, err = domain.ValidateClinicSnapshot(imported, s.now())
	}
	if err != nil {
		failSpan(span, err)
		return domain.ClinicMergeResult{}, s.invalidBackup(mode, len(data), err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var res domain.ClinicMergeResult
	var text string
	switch mode {
	case domain.ImportReplace:
		next := domain.ReplaceClinic(imported, s.now())
		if err := s.db.ReplaceAll(ctx, next); err != nil {
			failSpan(span, err)
			if errors.Is(err, storage.ErrDuplicate) {
				return res, s.invalidBackup(mode, len(data), fmt.Errorf("%w: %v", domain.ErrInvalidBackup, err))
			}
			return res, s.failed("replace clinic data", err)
		}
		res = domain.ClinicMergeResult{
			PatientsAdded:     len(next.Patients),
			AppointmentsAdded: len(next.Appointments),
			DocumentsAdded:    len(next.Documents),
			ConfigKeysAdded:   len(next.Config),
		}
		text = "Backup imported. All data was replaced."
	case domain.ImportMerge:
		current, err := s.db.Snapshot(ctx)
		if err != nil {
			failSpan(span, err)
			return res, s.failed("read clinic data", err)
		}
		plan := domain.PlanClinicMerge(current, imported)
		if err := s.db.InsertMissing(ctx, plan); err != nil {
			failSpan(span, err)
			if errors.Is(err, storage.ErrDuplicate) {
				return res, s.invalidBackup(mode, len(data), fmt.Errorf("%w: %v", domain.ErrInvalidBackup, err))
			}
			return res, s.failed("merge clinic data", err)
		}
		res = plan.Result()
		text = fmt.Sprintf("Backup imported! %d patients, %d appointments and %d documents added.",
			res.PatientsAdded, res.AppointmentsAdded, res.DocumentsAdded)
		if res.PatientsSkipped > 0 {
			text += fmt.Sprintf(" %d patients skipped because their national id is already registered.", res.PatientsSkipped)
		}
	default:
		err := fmt.Errorf("%w: mode %q", domain.ErrValidation, mode)
		failSpan(span, err)
		return res, s.reject(err)
	}
	s.touch(ctx)

	span.SetAttributes(
		attribute.Int("clinic.import.patients_added", res.PatientsAdded),
		attribute.Int("clinic.import.appointments_added", res.AppointmentsAdded),
		attribute.Int("clinic.import.patients_skipped", res.PatientsSkipped),
	)
	s.logger.WithFields(log.Fields{
		"mode":               mode,
		"bytes":              len(data),
		"patients_added":     res.PatientsAdded,
		"appointments_added": res.AppointmentsAdded,
		"documents_added":    res.DocumentsAdded,
		"config_keys_added":  res.ConfigKeysAdded,
		"patients_skipped":   res.PatientsSkipped,
		"total_ms":           float64(time.Since(start)) / float64(time.Millisecond),
	}).Info("clinic.import.metrics")
	s.notices.Notify(notice.Success, text)
	return res, nil
}

// invalidBackup reports a rejected backup file. err wraps ErrInvalidBackup.
func (s *Service) invalidBackup(mode domain.ImportMode, size int, err error) error {
	s.logger.WithFields(log.Fields{"mode": mode, "bytes": size, "error": err.Error()}).Warn("clinic.import.metrics")
	s.notices.Notify(notice.Error, "Invalid backup file")
	return err
}

// Report builds the appointment report of the given kind. It only reads.
func (s *Service) Report(ctx context.Context, kind report.Kind) (report.Report, error) {
	snap, err := s.Snapshot(ctx)
	if err != nil {
		return report.Report{}, err
	}
	return report.Clinic(kind, snap, s.now()), nil
}

// ExportReport renders the report of the given kind as a downloadable file.
func (s *Service) ExportReport(ctx context.Context, kind report.Kind, format report.Format) (report.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "clinic.report", trace.WithAttributes(
		attribute.String("clinic.report.kind", string(kind)),
		attribute.String("clinic.report.format", string(format)),
	))
	defer span.End()

	r, err := s.Report(ctx, kind)
	if err == nil {
		// A downloaded report counts as an automatic backup point.
		s.mu.Lock()
		s.touch(ctx)
		s.mu.Unlock()
		var art report.Artifact
		if art, err = report.Render(r, format); err == nil {
			s.notices.Notify(notice.Success, "Report downloaded")
			return art, nil
		}
	}
	failSpan(span, err)
	s.logger.WithError(err).Error("clinic: report failed")
	s.notices.Notify(notice.Error, "Could not generate the report")
	return report.Artifact{}, err
}

// Workbook exports patients and appointments as a spreadsheet.
func (s *Service) Workbook(ctx context.Context) (report.Artifact, error) {
	ctx, span := s.tracer.Start(ctx, "clinic.workbook")
	defer span.End()

	snap, err := s.Snapshot(ctx)
	if err == nil {
		var art report.Artifact
		if art, err = report.Workbook(snap, s.now()); err == nil {
			s.notices.Notify(notice.Success, "Spreadsheet exported")
			return art, nil
		}
	}
	failSpan(span, err)
	s.logger.WithError(err).Error("clinic: spreadsheet export failed")
	s.notices.Notify(notice.Error, "Could not export the spreadsheet")
	return report.Artifact{}, err
}
