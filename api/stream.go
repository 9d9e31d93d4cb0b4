package api

import (
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// streamNotices sends every new notice as a server-sent event until the
// client goes away.
func streamNotices(notices Notices) handlerFunc {
	return func(c echo.Context, m *requestMetrics) error {
		if notices == nil {
			return c.NoContent(http.StatusNotFound)
		}
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			m.SetErrorStage("stream_unsupported")
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		h := c.Response().Header()
		h.Set(echo.HeaderContentType, "text/event-stream")
		h.Set(echo.HeaderCacheControl, "no-cache")
		h.Set(echo.HeaderConnection, "keep-alive")
		h.Set("X-Accel-Buffering", "no")
		c.Response().WriteHeader(http.StatusOK)
		flusher.Flush()

		ch, cancel := notices.Subscribe()
		defer cancel()
		ctx := c.Request().Context()
		sent := 0
		for {
			select {
			case <-ctx.Done():
				m.SetRecords(sent)
				return nil
			case n := <-ch:
				data, err := sonic.Marshal(n)
				if err != nil {
					if m.logger != nil {
						m.logger.WithError(err).Warn("stream: encode notice")
					}
					continue
				}
				if _, err := c.Response().Write([]byte("event: notice\ndata: ")); err != nil {
					m.SetRecords(sent)
					return nil
				}
				if _, err := c.Response().Write(data); err != nil {
					m.SetRecords(sent)
					return nil
				}
				if _, err := c.Response().Write([]byte("\n\n")); err != nil {
					m.SetRecords(sent)
					return nil
				}
				flusher.Flush()
				sent++
			}
		}
	}
}
