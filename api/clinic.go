package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"zen-records/domain"
	"zen-records/report"
	"zen-records/storage"
	"zen-records/view"
)

const clinicApp = "clinic"

func (h *handlers) registerClinic(e *echo.Echo) {
	g := e.Group("/api/clinic")
	g.GET("/patients", h.instrument(clinicApp, "/api/clinic/patients", h.getPatients))
	g.POST("/patients", h.instrument(clinicApp, "/api/clinic/patients", h.postPatient))
	g.GET("/patients/:id", h.instrument(clinicApp, "/api/clinic/patients/:id", h.getPatient))
	g.PUT("/patients/:id", h.instrument(clinicApp, "/api/clinic/patients/:id", h.putPatient))
	g.PUT("/patients/:id/status", h.instrument(clinicApp, "/api/clinic/patients/:id/status", h.putPatientStatus))
	g.DELETE("/patients/:id", h.instrument(clinicApp, "/api/clinic/patients/:id", h.deletePatient))
	g.GET("/appointments", h.instrument(clinicApp, "/api/clinic/appointments", h.getAppointments))
	g.POST("/appointments", h.instrument(clinicApp, "/api/clinic/appointments", h.postAppointment))
	g.PUT("/appointments/:id/status", h.instrument(clinicApp, "/api/clinic/appointments/:id/status", h.putAppointmentStatus))
	g.GET("/documents", h.instrument(clinicApp, "/api/clinic/documents", h.getDocuments))
	g.POST("/documents", h.instrument(clinicApp, "/api/clinic/documents", h.postDocument))
	g.GET("/config", h.instrument(clinicApp, "/api/clinic/config", h.getConfig))
	g.PUT("/config/:key", h.instrument(clinicApp, "/api/clinic/config/:key", h.putConfig))
	g.GET("/dashboard", h.instrument(clinicApp, "/api/clinic/dashboard", h.getClinicDashboard))
	g.GET("/notice", h.instrument(clinicApp, "/api/clinic/notice", h.getClinicNotice))
	g.GET("/events", h.instrument(clinicApp, "/api/clinic/events", streamNotices(h.ClinicNotices)))
	g.GET("/backup", h.instrument(clinicApp, "/api/clinic/backup", h.getClinicBackup))
	g.POST("/import", h.instrument(clinicApp, "/api/clinic/import", h.postClinicImport))
	g.GET("/reports/:kind", h.instrument(clinicApp, "/api/clinic/reports/:kind", h.getClinicReport))
	g.GET("/reports/:kind/preview", h.instrument(clinicApp, "/api/clinic/reports/:kind/preview", h.previewClinicReport))
	g.GET("/workbook", h.instrument(clinicApp, "/api/clinic/workbook", h.getWorkbook))

	if h.Renderer == nil {
		return
	}
	ui := e.Group("/clinic")
	ui.GET("/patients", h.instrument(clinicApp, "/clinic/patients", h.patientsFragment))
	ui.GET("/appointments", h.instrument(clinicApp, "/clinic/appointments", h.appointmentsFragment))
	ui.GET("/dashboard", h.instrument(clinicApp, "/clinic/dashboard", h.clinicDashboardFragment))
}

type statusRequest struct {
	Status string `json:"status"`
}

type configRequest struct {
	Value string `json:"value"`
}

type patientDetail struct {
	Patient      domain.Patient       `json:"patient"`
	Age          int                  `json:"age"`
	Appointments []domain.Appointment `json:"appointments"`
	Documents    []domain.Document    `json:"documents"`
}

// listPatients searches when a query is given and lists everyone otherwise.
func (h *handlers) listPatients(ctx context.Context, q string) ([]domain.Patient, error) {
	if q == "" {
		return h.Clinic.Patients(ctx)
	}
	return h.Clinic.SearchPatients(ctx, q)
}

func (h *handlers) getPatients(c echo.Context, m *requestMetrics) error {
	list, err := h.listPatients(c.Request().Context(), strings.TrimSpace(c.QueryParam("q")))
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(list))
	return respond(c, http.StatusOK, nil, list)
}

func (h *handlers) postPatient(c echo.Context, m *requestMetrics) error {
	var p domain.Patient
	if err := decodeBody(c, &p); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	created, err := h.Clinic.CreatePatient(c.Request().Context(), p)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "create_patient", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.ClinicNotices, created)
}

func (h *handlers) getPatient(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	ctx := c.Request().Context()
	p, found, err := h.Clinic.Patient(ctx, id)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	if !found {
		return notFound(c, m, "patient")
	}
	appts, err := h.Clinic.Appointments(ctx, storage.AppointmentFilter{PatientID: id})
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	docs, err := h.Clinic.Documents(ctx, id)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(1 + len(appts) + len(docs))
	return respond(c, http.StatusOK, nil, patientDetail{
		Patient:      p,
		Age:          view.Age(p.BirthDate, h.Clinic.Now()),
		Appointments: appts,
		Documents:    docs,
	})
}

func (h *handlers) putPatient(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	var p domain.Patient
	if err := decodeBody(c, &p); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	p.ID = id
	found, err := h.Clinic.UpdatePatient(c.Request().Context(), p)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "update_patient", err)
	}
	if !found {
		return notFound(c, m, "patient")
	}
	return respond(c, http.StatusOK, h.ClinicNotices, nil)
}

func (h *handlers) putPatientStatus(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	var req statusRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	found, err := h.Clinic.SetPatientStatus(c.Request().Context(), id, domain.PatientStatus(req.Status))
	if err != nil {
		return fail(c, m, h.ClinicNotices, "patient_status", err)
	}
	if !found {
		return notFound(c, m, "patient")
	}
	return respond(c, http.StatusOK, h.ClinicNotices, nil)
}

func (h *handlers) deletePatient(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	found, err := h.Clinic.DeletePatient(c.Request().Context(), id)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "delete_patient", err)
	}
	if !found {
		return notFound(c, m, "patient")
	}
	return respond(c, http.StatusOK, h.ClinicNotices, nil)
}

func appointmentFilter(c echo.Context) (storage.AppointmentFilter, bool) {
	pid, ok := queryID(c, "patientId")
	if !ok {
		return storage.AppointmentFilter{}, false
	}
	f := storage.AppointmentFilter{
		PatientID: pid,
		Date:      strings.TrimSpace(c.QueryParam("date")),
		Status:    domain.AppointmentStatus(c.QueryParam("status")),
	}
	if f.Status != "" && !f.Status.Valid() {
		return f, false
	}
	return f, true
}

func (h *handlers) getAppointments(c echo.Context, m *requestMetrics) error {
	f, ok := appointmentFilter(c)
	if !ok {
		return badRequest(c, m, "invalid_filter", "invalid filter")
	}
	list, err := h.Clinic.Appointments(c.Request().Context(), f)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(list))
	return respond(c, http.StatusOK, nil, list)
}

func (h *handlers) postAppointment(c echo.Context, m *requestMetrics) error {
	var a domain.Appointment
	if err := decodeBody(c, &a); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	created, err := h.Clinic.CreateAppointment(c.Request().Context(), a)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "create_appointment", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.ClinicNotices, created)
}

func (h *handlers) putAppointmentStatus(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	var req statusRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	found, err := h.Clinic.SetAppointmentStatus(c.Request().Context(), id, domain.AppointmentStatus(req.Status))
	if err != nil {
		return fail(c, m, h.ClinicNotices, "appointment_status", err)
	}
	if !found {
		return notFound(c, m, "appointment")
	}
	return respond(c, http.StatusOK, h.ClinicNotices, nil)
}

func (h *handlers) getDocuments(c echo.Context, m *requestMetrics) error {
	pid, ok := queryID(c, "patientId")
	if !ok {
		return badRequest(c, m, "invalid_filter", "invalid patientId")
	}
	docs, err := h.Clinic.Documents(c.Request().Context(), pid)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(docs))
	return respond(c, http.StatusOK, nil, docs)
}

func (h *handlers) postDocument(c echo.Context, m *requestMetrics) error {
	var d domain.Document
	if err := decodeBody(c, &d); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	created, err := h.Clinic.AddDocument(c.Request().Context(), d)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "add_document", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.ClinicNotices, created)
}

func (h *handlers) getConfig(c echo.Context, m *requestMetrics) error {
	cfg, err := h.Clinic.Config(c.Request().Context())
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(cfg))
	return respond(c, http.StatusOK, nil, cfg)
}

func (h *handlers) putConfig(c echo.Context, m *requestMetrics) error {
	var req configRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	if err := h.Clinic.SetConfig(c.Request().Context(), c.Param("key"), req.Value); err != nil {
		return fail(c, m, h.ClinicNotices, "set_config", err)
	}
	return respond(c, http.StatusOK, h.ClinicNotices, nil)
}

func (h *handlers) getClinicDashboard(c echo.Context, m *requestMetrics) error {
	stats, err := h.Clinic.Dashboard(c.Request().Context())
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	return respond(c, http.StatusOK, nil, stats)
}

func (h *handlers) getClinicNotice(c echo.Context, _ *requestMetrics) error {
	n := latest(h.ClinicNotices)
	if n == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *handlers) getClinicBackup(c echo.Context, m *requestMetrics) error {
	art, err := h.Clinic.ExportBackup(c.Request().Context())
	if err != nil {
		return fail(c, m, h.ClinicNotices, "export", err)
	}
	return download(c, m, art)
}

func (h *handlers) postClinicImport(c echo.Context, m *requestMetrics) error {
	mode, err := domain.ParseImportMode(c.QueryParam("mode"))
	if err != nil {
		return fail(c, m, nil, "import_mode", err)
	}
	data, err := readImport(c)
	if err != nil {
		return badRequest(c, m, "read_upload", err.Error())
	}
	m.SetBytes(len(data))
	res, err := h.Clinic.Import(c.Request().Context(), data, mode)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "import", err)
	}
	m.SetRecords(res.PatientsAdded + res.AppointmentsAdded + res.DocumentsAdded)
	return respond(c, http.StatusOK, h.ClinicNotices, res)
}

func (h *handlers) getClinicReport(c echo.Context, m *requestMetrics) error {
	kind, format, err := reportParams(c)
	if err != nil {
		return fail(c, m, nil, "report_params", err)
	}
	art, err := h.Clinic.ExportReport(c.Request().Context(), kind, format)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "report", err)
	}
	return download(c, m, art)
}

func (h *handlers) previewClinicReport(c echo.Context, m *requestMetrics) error {
	kind, err := report.ParseKind(c.Param("kind"))
	if err != nil {
		return fail(c, m, nil, "report_params", err)
	}
	r, err := h.Clinic.Report(c.Request().Context(), kind)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "report", err)
	}
	return respond(c, http.StatusOK, nil, r)
}

func (h *handlers) getWorkbook(c echo.Context, m *requestMetrics) error {
	art, err := h.Clinic.Workbook(c.Request().Context())
	if err != nil {
		return fail(c, m, h.ClinicNotices, "workbook", err)
	}
	return download(c, m, art)
}

func (h *handlers) patientsFragment(c echo.Context, m *requestMetrics) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	list, err := h.listPatients(c.Request().Context(), q)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(list))
	return h.fragment(c, h.ClinicNotices, "patients", view.PatientList(list, q, h.Clinic.Now()))
}

func (h *handlers) appointmentsFragment(c echo.Context, m *requestMetrics) error {
	f, ok := appointmentFilter(c)
	if !ok {
		return badRequest(c, m, "invalid_filter", "invalid filter")
	}
	ctx := c.Request().Context()
	list, err := h.Clinic.Appointments(ctx, f)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	patients, err := h.Clinic.Patients(ctx)
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	m.SetRecords(len(list))
	return h.fragment(c, h.ClinicNotices, "appointments", view.AppointmentList(list, patients, h.Clinic.Now()))
}

func (h *handlers) clinicDashboardFragment(c echo.Context, m *requestMetrics) error {
	stats, err := h.Clinic.Dashboard(c.Request().Context())
	if err != nil {
		return fail(c, m, h.ClinicNotices, "storage", err)
	}
	return h.fragment(c, h.ClinicNotices, "clinic-dashboard", stats)
}
