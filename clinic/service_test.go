package clinic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
	"zen-records/storage"
)

type recordingNotifier struct {
	notices []notice.Notice
}

func (r *recordingNotifier) Notify(level notice.Level, text string) {
	r.notices = append(r.notices, notice.Notice{Level: level, Text: text})
}

func (r *recordingNotifier) last() notice.Notice {
	if len(r.notices) == 0 {
		return notice.Notice{}
	}
	return r.notices[len(r.notices)-1]
}

var testNow = time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *storage.ClinicDB, *recordingNotifier) {
	t.Helper()
	db, err := storage.OpenClinicDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	logger, _ := test.NewNullLogger()
	n := &recordingNotifier{}
	svc := New(db, n, logger)
	svc.now = func() time.Time { return testNow }
	svc.newID = func() string { return "export-1" }
	require.NoError(t, svc.Open(context.Background()))
	return svc, db, n
}

func TestOpenWritesDefaultConfigOnce(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", cfg[domain.ConfigTheme])
	assert.NotEmpty(t, cfg[domain.ConfigLastBackup])

	require.NoError(t, db.SetConfig(ctx, domain.ConfigTheme, "dark"))
	require.NoError(t, svc.Open(ctx))
	cfg, err = svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dark", cfg[domain.ConfigTheme])
}

func TestCreatePatient(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()

	p, err := svc.CreatePatient(ctx, domain.Patient{Name: " Maria ", NationalID: "111.222.333-44", BirthDate: "1980-02-01"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "11122233344", p.NationalID)
	assert.Equal(t, domain.PatientActive, p.Status)
	assert.Equal(t, notice.Success, n.last().Level)

	_, err = svc.CreatePatient(ctx, domain.Patient{Name: "Copy", NationalID: "11122233344"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, notice.Warning, n.last().Level)

	_, err = svc.CreatePatient(ctx, domain.Patient{Name: "Future", NationalID: "9", BirthDate: "2030-01-01"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	found, err := svc.SearchPatients(ctx, "111.222")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "Maria", found[0].Name)
}

func TestPatientStatusAndDelete(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1"})
	require.NoError(t, err)

	ok, err := svc.SetPatientStatus(ctx, p.ID, domain.PatientInactive)
	require.NoError(t, err)
	assert.True(t, ok)
	got, found, err := svc.Patient(ctx, p.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, domain.PatientInactive, got.Status)

	ok, err = svc.SetPatientStatus(ctx, 404, domain.PatientActive)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = svc.SetPatientStatus(ctx, p.ID, "archived")
	assert.ErrorIs(t, err, domain.ErrValidation)

	got.Name = "Ana Maria"
	ok, err = svc.UpdatePatient(ctx, got)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.DeletePatient(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.DeletePatient(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, ok)
	_, found, err = svc.Patient(ctx, p.ID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestAppointmentsAndDocuments(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1"})
	require.NoError(t, err)

	a, err := svc.CreateAppointment(ctx, domain.Appointment{PatientID: p.ID, DateTime: "2024-03-10T10:00", Reason: "checkup"})
	require.NoError(t, err)
	assert.Equal(t, domain.AppointmentScheduled, a.Status)

	_, err = svc.CreateAppointment(ctx, domain.Appointment{PatientID: p.ID, DateTime: "tomorrow", Reason: "x"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	// Appointments may reference patients that do not exist.
	_, err = svc.CreateAppointment(ctx, domain.Appointment{PatientID: 77, DateTime: "2024-03-11T10:00", Reason: "walk-in", Status: domain.AppointmentPending})
	require.NoError(t, err)

	pending, err := svc.Appointments(ctx, storage.AppointmentFilter{Status: domain.AppointmentPending})
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, int64(77), pending[0].PatientID)

	ok, err := svc.SetAppointmentStatus(ctx, a.ID, domain.AppointmentDone)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = svc.SetAppointmentStatus(ctx, a.ID, "lost")
	assert.ErrorIs(t, err, domain.ErrValidation)

	d, err := svc.AddDocument(ctx, domain.Document{PatientID: p.ID, Kind: domain.DocumentPrescription, Title: "Rx", Content: "Rest"})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-10", d.Date)
	docs, err := svc.Documents(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	stats, err := svc.Dashboard(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Patients)
	assert.Equal(t, 1, stats.TodayAppointments)
	assert.Equal(t, 1, stats.PendingAppointments)
}

func TestSetConfigProtectsLastBackup(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	assert.ErrorIs(t, svc.SetConfig(ctx, domain.ConfigLastBackup, "x"), domain.ErrValidation)
	require.NoError(t, svc.SetConfig(ctx, domain.ConfigClinicName, " Zen Clinic "))
	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Zen Clinic", cfg[domain.ConfigClinicName])
}

func TestMergeImportSkipsExistingIDs(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()
	_, err := svc.CreatePatient(ctx, domain.Patient{Name: "Original", NationalID: "11122233344", BirthDate: "1980-01-01"})
	require.NoError(t, err)

	data := []byte(`{
		"patients": [
			{"id": 1, "name": "Overwrite attempt", "nationalId": "99999999999", "birthDate": "1990-01-01", "phone": "", "status": "active"},
			{"id": 2, "name": "New patient", "nationalId": "55566677788", "birthDate": "1991-01-01", "phone": "", "status": "active"}
		],
		"appointments": [],
		"config": {"doctorName": "Dr. Zen", "theme": "dark"}
	}`)
	res, err := svc.Import(ctx, data, domain.ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 1, res.PatientsAdded)
	assert.Equal(t, 1, res.ConfigKeysAdded)

	patients, err := svc.Patients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 2)
	first, _, err := svc.Patient(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Original", first.Name)
	assert.Equal(t, "11122233344", first.NationalID)
	second, found, err := svc.Patient(ctx, 2)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "New patient", second.Name)

	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, "light", cfg[domain.ConfigTheme])
	assert.Equal(t, "Dr. Zen", cfg[domain.ConfigDoctorName])
	assert.Contains(t, n.last().Text, "1 patients")
}

func TestMergeImportSkipsTakenNationalID(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()
	_, err := svc.CreatePatient(ctx, domain.Patient{Name: "Original", NationalID: "123"})
	require.NoError(t, err)

	data := []byte(`{"patients": [{"id": 5, "name": "Same person", "nationalId": "123", "birthDate": "", "phone": "", "status": "active"}], "appointments": [], "documents": null, "config": {}}`)
	res, err := svc.Import(ctx, data, domain.ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PatientsAdded)
	assert.Equal(t, 1, res.PatientsSkipped)
	assert.Contains(t, n.last().Text, "skipped")
}

func TestReplaceImportRejectsSharedNationalID(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()
	_, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1"})
	require.NoError(t, err)

	data := []byte(`{"patients": [
		{"id": 1, "name": "First", "nationalId": "123", "status": "active"},
		{"id": 2, "name": "Second", "nationalId": "1.2-3", "status": "active"}
	], "appointments": [], "config": {}}`)
	_, err = svc.Import(ctx, data, domain.ImportReplace)
	assert.ErrorIs(t, err, domain.ErrInvalidBackup)
	assert.NotErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, notice.Notice{Level: notice.Error, Text: "Invalid backup file"}, n.last())

	patients, err := svc.Patients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	assert.Equal(t, "Ana", patients[0].Name)
}

func TestMergeImportValidatesRecords(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()
	_, err := svc.CreatePatient(ctx, domain.Patient{Name: "Original", NationalID: "11122233344"})
	require.NoError(t, err)

	formatted := []byte(`{"patients": [{"id": 7, "name": "Same person", "nationalId": "111.222.333-44", "birthDate": "1990-01-01", "status": "active"}], "appointments": [], "config": {}}`)
	res, err := svc.Import(ctx, formatted, domain.ImportMerge)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PatientsAdded)
	assert.Equal(t, 1, res.PatientsSkipped)

	for _, data := range []string{
		`{"patients": [{"id": 8, "name": "", "nationalId": "9", "birthDate": "x", "status": "zombie"}], "appointments": [], "config": {}}`,
		`{"patients": [], "appointments": [{"id": 3, "patientId": 1, "dateTime": "2024-03-10T10:00", "reason": "checkup", "status": "lost"}], "config": {}}`,
	} {
		_, err = svc.Import(ctx, []byte(data), domain.ImportMerge)
		assert.ErrorIs(t, err, domain.ErrInvalidBackup, data)
		assert.Equal(t, "Invalid backup file", n.last().Text)
	}

	patients, err := svc.Patients(ctx)
	require.NoError(t, err)
	require.Len(t, patients, 1)
	appts, err := svc.Appointments(ctx, storage.AppointmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, appts)
}

func TestExportReplaceRoundTrip(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1", BirthDate: "1990-01-01"})
	require.NoError(t, err)
	_, err = svc.CreateAppointment(ctx, domain.Appointment{PatientID: p.ID, DateTime: "2024-03-10T10:00", Reason: "checkup"})
	require.NoError(t, err)
	_, err = svc.AddDocument(ctx, domain.Document{PatientID: p.ID, Title: "Note", Content: "ok"})
	require.NoError(t, err)

	art, err := svc.ExportBackup(ctx)
	require.NoError(t, err)
	assert.Equal(t, "zen_clinic_backup_20240310_0900.json", art.Name)

	fresh, _, _ := setupService(t)
	_, err = fresh.CreatePatient(ctx, domain.Patient{Name: "To be replaced", NationalID: "2"})
	require.NoError(t, err)
	_, err = fresh.Import(ctx, art.Data, domain.ImportReplace)
	require.NoError(t, err)

	want, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	got, err := fresh.Snapshot(ctx)
	require.NoError(t, err)
	delete(want.Config, domain.ConfigLastBackup)
	delete(got.Config, domain.ConfigLastBackup)
	assert.Equal(t, want, got)
}

func TestImportRejectsInvalidFile(t *testing.T) {
	svc, _, n := setupService(t)
	ctx := context.Background()
	_, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1"})
	require.NoError(t, err)

	_, err = svc.Import(ctx, []byte(`{"patients": [], "appointments": "nope", "config": {}}`), domain.ImportReplace)
	assert.True(t, errors.Is(err, domain.ErrInvalidBackup))
	assert.Equal(t, notice.Error, n.last().Level)
	patients, err := svc.Patients(ctx)
	require.NoError(t, err)
	assert.Len(t, patients, 1)
}

func TestReportPreviewLeavesLastBackup(t *testing.T) {
	svc, db, _ := setupService(t)
	ctx := context.Background()
	const old = "2000-01-01T00:00:00.000Z"
	require.NoError(t, db.SetConfig(ctx, domain.ConfigLastBackup, old))

	r, err := svc.Report(ctx, report.Weekly)
	require.NoError(t, err)
	assert.Equal(t, report.Weekly, r.Kind)
	cfg, err := svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, old, cfg[domain.ConfigLastBackup])

	_, err = svc.ExportReport(ctx, report.Weekly, report.FormatText)
	require.NoError(t, err)
	cfg, err = svc.Config(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Stamp(testNow).Format(domain.TimestampLayout), cfg[domain.ConfigLastBackup])
}

func TestReportsAndWorkbook(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	p, err := svc.CreatePatient(ctx, domain.Patient{Name: "Ana", NationalID: "1"})
	require.NoError(t, err)
	_, err = svc.CreateAppointment(ctx, domain.Appointment{PatientID: p.ID, DateTime: "2024-03-10T10:00", Reason: "checkup"})
	require.NoError(t, err)

	art, err := svc.ExportReport(ctx, report.Daily, report.FormatPDF)
	require.NoError(t, err)
	assert.Equal(t, "zen_clinic_daily_20240310_0900.pdf", art.Name)
	assert.NotEmpty(t, art.Data)

	wb, err := svc.Workbook(ctx)
	require.NoError(t, err)
	assert.Equal(t, report.ContentTypeXLSX, wb.ContentType)
}

type brokenDB struct {
	DB
}

func (brokenDB) InsertPatient(context.Context, domain.Patient) (int64, error) {
	return 0, errors.New("database is locked")
}

func TestStorageFailureBecomesNotice(t *testing.T) {
	_, db, _ := setupService(t)
	logger, _ := test.NewNullLogger()
	n := &recordingNotifier{}
	svc := New(brokenDB{DB: db}, n, logger)

	_, err := svc.CreatePatient(context.Background(), domain.Patient{Name: "Ana", NationalID: "1"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
	assert.Equal(t, notice.Error, n.last().Level)
}
