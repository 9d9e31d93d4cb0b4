package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"zen-records/domain"
	"zen-records/report"
	"zen-records/view"
)

const agendaApp = "agenda"

func (h *handlers) registerAgenda(e *echo.Echo) {
	g := e.Group("/api/agenda")
	g.GET("", h.instrument(agendaApp, "/api/agenda", h.getAgenda))
	g.GET("/today", h.instrument(agendaApp, "/api/agenda/today", h.getToday))
	g.GET("/dashboard", h.instrument(agendaApp, "/api/agenda/dashboard", h.getAgendaDashboard))
	g.GET("/notice", h.instrument(agendaApp, "/api/agenda/notice", h.getAgendaNotice))
	g.GET("/events", h.instrument(agendaApp, "/api/agenda/events", streamNotices(h.AgendaNotices)))
	g.PUT("/focus", h.instrument(agendaApp, "/api/agenda/focus", h.putFocus))
	g.POST("/tasks", h.instrument(agendaApp, "/api/agenda/tasks", h.postTask))
	g.POST("/tasks/quick", h.instrument(agendaApp, "/api/agenda/tasks/quick", h.postQuickTask))
	g.POST("/tasks/:id/toggle", h.instrument(agendaApp, "/api/agenda/tasks/:id/toggle", h.toggleTask))
	g.DELETE("/tasks/:id", h.instrument(agendaApp, "/api/agenda/tasks/:id", h.deleteTask))
	g.POST("/notes", h.instrument(agendaApp, "/api/agenda/notes", h.postNote))
	g.DELETE("/notes/:id", h.instrument(agendaApp, "/api/agenda/notes/:id", h.deleteNote))
	g.GET("/backup", h.instrument(agendaApp, "/api/agenda/backup", h.getAgendaBackup))
	g.POST("/import", h.instrument(agendaApp, "/api/agenda/import", h.postAgendaImport))
	g.GET("/reports/:kind", h.instrument(agendaApp, "/api/agenda/reports/:kind", h.getAgendaReport))
	g.GET("/reports/:kind/preview", h.instrument(agendaApp, "/api/agenda/reports/:kind/preview", h.previewAgendaReport))
	g.POST("/reset", h.instrument(agendaApp, "/api/agenda/reset", h.postAgendaReset))

	if h.Renderer == nil {
		return
	}
	ui := e.Group("/agenda")
	ui.GET("/today", h.instrument(agendaApp, "/agenda/today", h.todayFragment))
	ui.GET("/tasks", h.instrument(agendaApp, "/agenda/tasks", h.tasksFragment))
	ui.GET("/notes", h.instrument(agendaApp, "/agenda/notes", h.notesFragment))
	ui.GET("/dashboard", h.instrument(agendaApp, "/agenda/dashboard", h.agendaDashboardFragment))
	ui.GET("/reports/:kind", h.instrument(agendaApp, "/agenda/reports/:kind", h.agendaReportFragment))
	ui.POST("/tasks/:id/toggle", h.instrument(agendaApp, "/agenda/tasks/:id/toggle", h.toggleTaskFragment))
	ui.DELETE("/tasks/:id", h.instrument(agendaApp, "/agenda/tasks/:id", h.deleteTaskFragment))
	ui.DELETE("/notes/:id", h.instrument(agendaApp, "/agenda/notes/:id", h.deleteNoteFragment))
}

type focusRequest struct {
	Text string `json:"text"`
}

type taskRequest struct {
	Text     string `json:"text"`
	Priority string `json:"priority"`
}

type noteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (h *handlers) getAgenda(c echo.Context, m *requestMetrics) error {
	snap := h.Agenda.Snapshot()
	m.SetRecords(len(snap.Tasks) + len(snap.Notes))
	return respond(c, http.StatusOK, nil, snap)
}

func (h *handlers) getToday(c echo.Context, m *requestMetrics) error {
	v := view.Today(h.Agenda.Snapshot(), h.Agenda.Now())
	m.SetRecords(len(v.Tasks))
	return respond(c, http.StatusOK, nil, v)
}

func (h *handlers) getAgendaDashboard(c echo.Context, _ *requestMetrics) error {
	return respond(c, http.StatusOK, nil, view.AgendaDashboard(h.Agenda.Snapshot(), h.Agenda.Now()))
}

func (h *handlers) getAgendaNotice(c echo.Context, _ *requestMetrics) error {
	n := latest(h.AgendaNotices)
	if n == nil {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSON(http.StatusOK, n)
}

func (h *handlers) putFocus(c echo.Context, m *requestMetrics) error {
	var req focusRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	focus := h.Agenda.SetFocus(c.Request().Context(), req.Text)
	return respond(c, http.StatusOK, h.AgendaNotices, focusRequest{Text: focus})
}

func (h *handlers) postTask(c echo.Context, m *requestMetrics) error {
	var req taskRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	task, err := h.Agenda.AddTask(c.Request().Context(), req.Text, domain.ParsePriority(req.Priority))
	if err != nil {
		return fail(c, m, h.AgendaNotices, "add_task", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.AgendaNotices, task)
}

func (h *handlers) postQuickTask(c echo.Context, m *requestMetrics) error {
	var req focusRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	task, err := h.Agenda.QuickTask(c.Request().Context(), req.Text)
	if err != nil {
		return fail(c, m, h.AgendaNotices, "quick_task", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.AgendaNotices, task)
}

func (h *handlers) toggleTask(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	task, found := h.Agenda.ToggleTask(c.Request().Context(), id)
	if !found {
		return notFound(c, m, "task")
	}
	return respond(c, http.StatusOK, h.AgendaNotices, task)
}

func (h *handlers) deleteTask(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	if !h.Agenda.DeleteTask(c.Request().Context(), id) {
		return notFound(c, m, "task")
	}
	return respond(c, http.StatusOK, h.AgendaNotices, nil)
}

func (h *handlers) postNote(c echo.Context, m *requestMetrics) error {
	var req noteRequest
	if err := decodeBody(c, &req); err != nil {
		return badRequest(c, m, "decode", "invalid body")
	}
	note, err := h.Agenda.AddNote(c.Request().Context(), req.Title, req.Body)
	if err != nil {
		return fail(c, m, h.AgendaNotices, "add_note", err)
	}
	m.SetRecords(1)
	return respond(c, http.StatusCreated, h.AgendaNotices, note)
}

func (h *handlers) deleteNote(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	if !h.Agenda.DeleteNote(c.Request().Context(), id) {
		return notFound(c, m, "note")
	}
	return respond(c, http.StatusOK, h.AgendaNotices, nil)
}

func (h *handlers) getAgendaBackup(c echo.Context, m *requestMetrics) error {
	art, err := h.Agenda.ExportBackup(c.Request().Context())
	if err != nil {
		return fail(c, m, h.AgendaNotices, "export", err)
	}
	return download(c, m, art)
}

func (h *handlers) postAgendaImport(c echo.Context, m *requestMetrics) error {
	mode, err := domain.ParseImportMode(c.QueryParam("mode"))
	if err != nil {
		return fail(c, m, nil, "import_mode", err)
	}
	data, err := readImport(c)
	if err != nil {
		return badRequest(c, m, "read_upload", err.Error())
	}
	m.SetBytes(len(data))
	res, err := h.Agenda.Import(c.Request().Context(), data, mode)
	if err != nil {
		return fail(c, m, h.AgendaNotices, "import", err)
	}
	m.SetRecords(res.TasksAdded + res.NotesAdded)
	return respond(c, http.StatusOK, h.AgendaNotices, res)
}

func (h *handlers) getAgendaReport(c echo.Context, m *requestMetrics) error {
	kind, format, err := reportParams(c)
	if err != nil {
		return fail(c, m, nil, "report_params", err)
	}
	art, err := h.Agenda.ExportReport(c.Request().Context(), kind, format)
	if err != nil {
		return fail(c, m, h.AgendaNotices, "report", err)
	}
	return download(c, m, art)
}

func (h *handlers) previewAgendaReport(c echo.Context, m *requestMetrics) error {
	kind, err := report.ParseKind(c.Param("kind"))
	if err != nil {
		return fail(c, m, nil, "report_params", err)
	}
	return respond(c, http.StatusOK, nil, h.Agenda.Report(c.Request().Context(), kind))
}

// postAgendaReset answers with the safety backup taken before clearing.
func (h *handlers) postAgendaReset(c echo.Context, m *requestMetrics) error {
	art, err := h.Agenda.Reset(c.Request().Context())
	if err != nil {
		return fail(c, m, h.AgendaNotices, "reset", err)
	}
	return download(c, m, art)
}

func (h *handlers) todayFragment(c echo.Context, _ *requestMetrics) error {
	return h.fragment(c, h.AgendaNotices, "today", view.Today(h.Agenda.Snapshot(), h.Agenda.Now()))
}

func (h *handlers) tasksFragment(c echo.Context, m *requestMetrics) error {
	v := view.TaskList(h.Agenda.Snapshot(), h.Agenda.Now())
	m.SetRecords(len(v.Tasks))
	return h.fragment(c, h.AgendaNotices, "tasks", v)
}

func (h *handlers) notesFragment(c echo.Context, m *requestMetrics) error {
	v := view.NoteList(h.Agenda.Snapshot(), h.Agenda.Now())
	m.SetRecords(len(v.Notes))
	return h.fragment(c, h.AgendaNotices, "notes", v)
}

func (h *handlers) agendaDashboardFragment(c echo.Context, _ *requestMetrics) error {
	return h.fragment(c, h.AgendaNotices, "agenda-dashboard", view.AgendaDashboard(h.Agenda.Snapshot(), h.Agenda.Now()))
}

func (h *handlers) agendaReportFragment(c echo.Context, m *requestMetrics) error {
	kind, err := report.ParseKind(c.Param("kind"))
	if err != nil {
		return fail(c, m, nil, "report_params", err)
	}
	return h.fragment(c, h.AgendaNotices, "report", h.Agenda.Report(c.Request().Context(), kind))
}

func (h *handlers) toggleTaskFragment(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	if _, found := h.Agenda.ToggleTask(c.Request().Context(), id); !found {
		return notFound(c, m, "task")
	}
	return h.tasksFragment(c, m)
}

func (h *handlers) deleteTaskFragment(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	h.Agenda.DeleteTask(c.Request().Context(), id)
	return h.tasksFragment(c, m)
}

func (h *handlers) deleteNoteFragment(c echo.Context, m *requestMetrics) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, m, "invalid_id", "invalid id")
	}
	h.Agenda.DeleteNote(c.Request().Context(), id)
	return h.notesFragment(c, m)
}
