package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"zen-records/domain"
	"zen-records/notice"
	"zen-records/report"
	"zen-records/storage"
	"zen-records/view"
)

const (
	formMaxSize   = 64 << 10
	importMaxSize = 16 << 20
)

// Services groups what Register needs to serve both apps.
type Services struct {
	Agenda        Agenda
	AgendaNotices Notices
	Clinic        Clinic
	ClinicNotices Notices
	Renderer      *view.Renderer
}

type handlers struct {
	Services
	logger *log.Logger
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, svc Services, logger *log.Logger) {
	if logger == nil {
		logger = log.New()
	}
	h := &handlers{Services: svc, logger: logger}
	e.Use(RequestID())
	e.GET("/healthz", healthz())
	if svc.Agenda != nil {
		h.registerAgenda(e)
	}
	if svc.Clinic != nil {
		h.registerClinic(e)
	}
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

type handlerFunc func(c echo.Context, m *requestMetrics) error

// instrument opens the request span and logs the outcome once the handler
// has written its response.
func (h *handlers) instrument(app, route string, fn handlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		m, ctx := newRequestMetrics(c.Request().Context(), h.logger, app, c.Request().Method, route)
		c.SetRequest(c.Request().WithContext(ctx))
		defer func() {
			status := c.Response().Status
			var he *echo.HTTPError
			if errors.As(err, &he) {
				status = he.Code
			}
			m.Log(status, err)
		}()
		start := time.Now()
		err = fn(c, m)
		m.ObserveServe(time.Since(start))
		return err
	}
}

type errorBody struct {
	Error  string         `json:"error"`
	Notice *notice.Notice `json:"notice,omitempty"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidBackup):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err as a JSON error together with the notice it produced.
func fail(c echo.Context, m *requestMetrics, notices Notices, stage string, err error) error {
	status := statusFor(err)
	m.Fail(stage, err)
	if status >= http.StatusInternalServerError && m.logger != nil {
		m.logger.WithError(err).WithFields(log.Fields{
			"stage":      stage,
			"route":      m.route,
			"request_id": c.Request().Header.Get(echo.HeaderXRequestID),
		}).Error("request failed")
	}
	return c.JSON(status, errorBody{Error: err.Error(), Notice: latest(notices)})
}

func notFound(c echo.Context, m *requestMetrics, what string) error {
	m.SetErrorStage("not_found")
	return c.JSON(http.StatusNotFound, errorBody{Error: what + " not found"})
}

func badRequest(c echo.Context, m *requestMetrics, stage, msg string) error {
	m.SetErrorStage(stage)
	return c.JSON(http.StatusBadRequest, errorBody{Error: msg})
}

func latest(notices Notices) *notice.Notice {
	if notices == nil {
		return nil
	}
	return notices.Take()
}

func respond(c echo.Context, status int, notices Notices, data any) error {
	return c.JSON(status, envelope{Data: data, Notice: latest(notices)})
}

func decodeBody(c echo.Context, v any) error {
	lr := io.LimitReader(c.Request().Body, formMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func pathID(c echo.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func queryID(c echo.Context, name string) (int64, bool) {
	v := strings.TrimSpace(c.QueryParam(name))
	if v == "" {
		return 0, true
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// download sends an artifact as a file attachment.
func download(c echo.Context, m *requestMetrics, art report.Artifact) error {
	m.SetBytes(len(art.Data))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", art.Name))
	return c.Blob(http.StatusOK, art.ContentType, art.Data)
}

// readImport returns the uploaded backup: the multipart "file" field when
// present, the raw body otherwise.
func readImport(c echo.Context) ([]byte, error) {
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("file")
		if err != nil {
			return nil, err
		}
		if fh.Size > importMaxSize {
			return nil, fmt.Errorf("file too large: %d bytes", fh.Size)
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(io.LimitReader(f, importMaxSize))
	}
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, importMaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > importMaxSize {
		return nil, fmt.Errorf("file too large")
	}
	return data, nil
}

func reportParams(c echo.Context) (report.Kind, report.Format, error) {
	kind, err := report.ParseKind(c.Param("kind"))
	if err != nil {
		return "", "", err
	}
	format, err := report.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return "", "", err
	}
	return kind, format, nil
}

// fragment renders the latest notice followed by the named view fragment.
func (h *handlers) fragment(c echo.Context, notices Notices, name string, data any) error {
	var b strings.Builder
	if n := latest(notices); n != nil {
		s, err := h.Renderer.Fragment("notice", n)
		if err != nil {
			return err
		}
		b.WriteString(s)
	}
	s, err := h.Renderer.Fragment(name, data)
	if err != nil {
		return err
	}
	b.WriteString(s)
	return c.HTML(http.StatusOK, b.String())
}
