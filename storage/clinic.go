package storage

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"

	"zen-records/domain"

	_ "modernc.org/sqlite"
)

// ErrDuplicate is returned when a write violates a uniqueness constraint.
var ErrDuplicate = errors.New("storage: duplicate value")

var openDB = sql.Open

const clinicSchema = `
CREATE TABLE IF NOT EXISTS patients (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL,
	national_id TEXT NOT NULL UNIQUE,
	birth_date  TEXT NOT NULL,
	phone       TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_patients_name ON patients(name);
CREATE INDEX IF NOT EXISTS idx_patients_birth_date ON patients(birth_date);

CREATE TABLE IF NOT EXISTS appointments (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL,
	date_time  TEXT NOT NULL,
	reason     TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'scheduled'
);
CREATE INDEX IF NOT EXISTS idx_appointments_patient ON appointments(patient_id);
CREATE INDEX IF NOT EXISTS idx_appointments_date_time ON appointments(date_time);
CREATE INDEX IF NOT EXISTS idx_appointments_status ON appointments(status);

CREATE TABLE IF NOT EXISTS documents (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	patient_id INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	title      TEXT NOT NULL,
	content    TEXT NOT NULL DEFAULT '',
	date       TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_documents_patient ON documents(patient_id);

CREATE TABLE IF NOT EXISTS config (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// ClinicDB is the structured clinic store backed by SQLite.
type ClinicDB struct {
	db *sql.DB
}

// OpenClinicDB opens (creating when needed) the database at path and applies
// the schema. Use ":memory:" for a throwaway database.
func OpenClinicDB(path string) (*ClinicDB, error) {
	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open clinic db: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("clinic db %s: %w", pragma, err)
		}
	}
	c := NewClinicDB(db)
	if err := c.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

// NewClinicDB wraps an already opened database without touching the schema.
func NewClinicDB(db *sql.DB) *ClinicDB {
	return &ClinicDB{db: db}
}

func (c *ClinicDB) Migrate(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, clinicSchema); err != nil {
		return fmt.Errorf("migrate clinic db: %w", err)
	}
	return nil
}

func (c *ClinicDB) Close() error {
	return c.db.Close()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

func insertPatient(ctx context.Context, x execer, p domain.Patient) (int64, error) {
	res, err := x.ExecContext(ctx,
		`INSERT INTO patients (id, name, national_id, birth_date, phone, status) VALUES (?, ?, ?, ?, ?, ?)`,
		nullID(p.ID), p.Name, p.NationalID, p.BirthDate, p.Phone, string(p.Status))
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: patient %s", ErrDuplicate, p.NationalID)
		}
		return 0, err
	}
	return res.LastInsertId()
}

func insertAppointment(ctx context.Context, x execer, a domain.Appointment) (int64, error) {
	res, err := x.ExecContext(ctx,
		`INSERT INTO appointments (id, patient_id, date_time, reason, status) VALUES (?, ?, ?, ?, ?)`,
		nullID(a.ID), a.PatientID, a.DateTime, a.Reason, string(a.Status))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func insertDocument(ctx context.Context, x execer, d domain.Document) (int64, error) {
	res, err := x.ExecContext(ctx,
		`INSERT INTO documents (id, patient_id, kind, title, content, date) VALUES (?, ?, ?, ?, ?, ?)`,
		nullID(d.ID), d.PatientID, string(d.Kind), d.Title, d.Content, d.Date)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func setConfig(ctx context.Context, x execer, key, value string) error {
	_, err := x.ExecContext(ctx,
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value)
	return err
}

// InsertPatient stores a new patient and returns its assigned id. A taken
// national id yields ErrDuplicate.
func (c *ClinicDB) InsertPatient(ctx context.Context, p domain.Patient) (int64, error) {
	p.ID = 0
	return insertPatient(ctx, c.db, p)
}

func (c *ClinicDB) UpdatePatient(ctx context.Context, p domain.Patient) error {
	res, err := c.db.ExecContext(ctx,
		`UPDATE patients SET name = ?, national_id = ?, birth_date = ?, phone = ?, status = ? WHERE id = ?`,
		p.Name, p.NationalID, p.BirthDate, p.Phone, string(p.Status), p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: patient %s", ErrDuplicate, p.NationalID)
		}
		return err
	}
	return expectOne(res)
}

// DeletePatient removes the patient only; appointments and documents keep
// referencing the id.
func (c *ClinicDB) DeletePatient(ctx context.Context, id int64) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

const patientColumns = `id, name, national_id, birth_date, phone, status`

type scanner interface {
	Scan(dest ...any) error
}

func scanPatient(s scanner) (domain.Patient, error) {
	var p domain.Patient
	var status string
	if err := s.Scan(&p.ID, &p.Name, &p.NationalID, &p.BirthDate, &p.Phone, &status); err != nil {
		return p, err
	}
	p.Status = domain.PatientStatus(status)
	return p, nil
}

func (c *ClinicDB) queryPatients(ctx context.Context, query string, args ...any) ([]domain.Patient, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (c *ClinicDB) Patient(ctx context.Context, id int64) (domain.Patient, error) {
	p, err := scanPatient(c.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (c *ClinicDB) PatientByNationalID(ctx context.Context, nationalID string) (domain.Patient, error) {
	p, err := scanPatient(c.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE national_id = ?`, nationalID))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

// ListPatients returns every patient ordered by id.
func (c *ClinicDB) ListPatients(ctx context.Context) ([]domain.Patient, error) {
	return c.queryPatients(ctx, `SELECT `+patientColumns+` FROM patients ORDER BY id`)
}

func (c *ClinicDB) PatientsBornOn(ctx context.Context, date string) ([]domain.Patient, error) {
	return c.queryPatients(ctx, `SELECT `+patientColumns+` FROM patients WHERE birth_date = ? ORDER BY id`, date)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchPatients matches a name fragment or a national id prefix. SQLite LIKE
// is case-insensitive for ASCII.
func (c *ClinicDB) SearchPatients(ctx context.Context, term string) ([]domain.Patient, error) {
	pattern := likeEscaper.Replace(strings.TrimSpace(term)) + "%"
	namePattern := "%" + pattern
	return c.queryPatients(ctx,
		`SELECT `+patientColumns+` FROM patients
		 WHERE name LIKE ? ESCAPE '\' OR national_id LIKE ? ESCAPE '\'
		 ORDER BY name COLLATE NOCASE, id`,
		namePattern, pattern)
}

func (c *ClinicDB) InsertAppointment(ctx context.Context, a domain.Appointment) (int64, error) {
	a.ID = 0
	return insertAppointment(ctx, c.db, a)
}

// AppointmentFilter narrows ListAppointments. Zero fields match everything.
type AppointmentFilter struct {
	PatientID int64
	Date      string
	Status    domain.AppointmentStatus
}

func (c *ClinicDB) ListAppointments(ctx context.Context, f AppointmentFilter) ([]domain.Appointment, error) {
	query := `SELECT id, patient_id, date_time, reason, status FROM appointments`
	var where []string
	var args []any
	if f.PatientID != 0 {
		where = append(where, "patient_id = ?")
		args = append(args, f.PatientID)
	}
	if f.Date != "" {
		where = append(where, "substr(date_time, 1, 10) = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date_time, id"

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Appointment, 0)
	for rows.Next() {
		var a domain.Appointment
		var status string
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DateTime, &a.Reason, &status); err != nil {
			return nil, err
		}
		a.Status = domain.AppointmentStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (c *ClinicDB) SetAppointmentStatus(ctx context.Context, id int64, status domain.AppointmentStatus) error {
	res, err := c.db.ExecContext(ctx, `UPDATE appointments SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (c *ClinicDB) InsertDocument(ctx context.Context, d domain.Document) (int64, error) {
	d.ID = 0
	return insertDocument(ctx, c.db, d)
}

// ListDocuments returns the documents of a patient, or all documents when
// patientID is zero, newest first.
func (c *ClinicDB) ListDocuments(ctx context.Context, patientID int64) ([]domain.Document, error) {
	query := `SELECT id, patient_id, kind, title, content, date FROM documents`
	var args []any
	if patientID != 0 {
		query += ` WHERE patient_id = ?`
		args = append(args, patientID)
	}
	query += ` ORDER BY date DESC, id DESC`
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Document, 0)
	for rows.Next() {
		var d domain.Document
		var kind string
		if err := rows.Scan(&d.ID, &d.PatientID, &kind, &d.Title, &d.Content, &d.Date); err != nil {
			return nil, err
		}
		d.Kind = domain.DocumentKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (c *ClinicDB) Config(ctx context.Context) (domain.ClinicConfig, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT key, value FROM config`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := domain.ClinicConfig{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}

func (c *ClinicDB) SetConfig(ctx context.Context, key, value string) error {
	return setConfig(ctx, c.db, key, value)
}

// Snapshot reads every collection. Documents are ordered by id so that a
// snapshot matches the order records were written in.
func (c *ClinicDB) Snapshot(ctx context.Context) (domain.ClinicSnapshot, error) {
	var snap domain.ClinicSnapshot
	var err error
	if snap.Patients, err = c.ListPatients(ctx); err != nil {
		return snap, err
	}
	if snap.Appointments, err = c.ListAppointments(ctx, AppointmentFilter{}); err != nil {
		return snap, err
	}
	if snap.Documents, err = c.ListDocuments(ctx, 0); err != nil {
		return snap, err
	}
	slices.SortFunc(snap.Documents, func(a, b domain.Document) int { return cmp.Compare(a.ID, b.ID) })
	if snap.Config, err = c.Config(ctx); err != nil {
		return snap, err
	}
	return snap, nil
}

// ReplaceAll swaps the whole database content for snap in one transaction.
func (c *ClinicDB) ReplaceAll(ctx context.Context, snap domain.ClinicSnapshot) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"patients", "appointments", "documents", "config"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return err
			}
		}
		return insertAll(ctx, tx, snap.Patients, snap.Appointments, snap.Documents, snap.Config)
	})
}

// InsertMissing applies a merge plan in one transaction. Records keep their
// imported ids.
func (c *ClinicDB) InsertMissing(ctx context.Context, plan domain.ClinicMergePlan) error {
	return c.withTx(ctx, func(tx *sql.Tx) error {
		return insertAll(ctx, tx, plan.Patients, plan.Appointments, plan.Documents, plan.Config)
	})
}

func insertAll(ctx context.Context, tx *sql.Tx, patients []domain.Patient, appts []domain.Appointment, docs []domain.Document, cfg domain.ClinicConfig) error {
	for _, p := range patients {
		if _, err := insertPatient(ctx, tx, p); err != nil {
			return err
		}
	}
	for _, a := range appts {
		if _, err := insertAppointment(ctx, tx, a); err != nil {
			return err
		}
	}
	for _, d := range docs {
		if _, err := insertDocument(ctx, tx, d); err != nil {
			return err
		}
	}
	for k, v := range cfg {
		if err := setConfig(ctx, tx, k, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *ClinicDB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
