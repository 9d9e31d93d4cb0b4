package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"zen-records/domain"
)

const (
	ContentTypeJSON = "application/json"
	ContentTypePDF  = "application/pdf"
	ContentTypeText = "text/plain; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Artifact is a fully rendered downloadable file. It only exists once
// rendering succeeded, so a failed export never leaves a partial file.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

// Format selects how a report is rendered.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatText Format = "txt"
)

// ParseFormat accepts "pdf" (the default) or "txt"/"text".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "", "pdf":
		return FormatPDF, nil
	case "txt", "text":
		return FormatText, nil
	}
	return "", &domain.ValidationError{Field: "format", Message: fmt.Sprintf("unknown report format %q", s)}
}

// EncodeBackup renders a backup document as two-space indented JSON.
func EncodeBackup(v any) ([]byte, error) {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: encode backup: %v", domain.ErrExport, err)
	}
	return data, nil
}

// BackupFileName returns "<app>_backup_<YYYYMMDD_HHMM>.json".
func BackupFileName(app string, now time.Time) string {
	return fmt.Sprintf("%s_backup_%s.json", app, domain.FileStamp(now))
}

// ReportFileName returns "<app>_<kind>_<YYYYMMDD_HHMM>.<ext>".
func ReportFileName(app string, kind Kind, ext string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.%s", app, kind, domain.FileStamp(now), ext)
}

// Backup encodes v into a JSON artifact named for app.
func Backup(app string, v any, now time.Time) (Artifact, error) {
	data, err := EncodeBackup(v)
	if err != nil {
		return Artifact{}, err
	}
	return Artifact{Name: BackupFileName(app, now), ContentType: ContentTypeJSON, Data: data}, nil
}

// Render writes r in the requested format into an artifact.
func Render(r Report, format Format) (Artifact, error) {
	var buf bytes.Buffer
	var err error
	a := Artifact{Name: ReportFileName(r.App, r.Kind, string(format), r.GeneratedAt)}
	switch format {
	case FormatText:
		a.ContentType = ContentTypeText
		err = WriteText(&buf, r)
	default:
		a.Name = ReportFileName(r.App, r.Kind, string(FormatPDF), r.GeneratedAt)
		a.ContentType = ContentTypePDF
		err = WritePDF(&buf, r)
	}
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: render %s report: %v", domain.ErrExport, r.Kind, err)
	}
	a.Data = buf.Bytes()
	return a, nil
}
