package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"
)

const (
	requestEventName   = "request.completed"
	requestEventDomain = "zen-records.api"

	attrRoute       = "http.route"
	attrMethod      = "http.method"
	attrStatusCode  = "http.status_code"
	attrApp         = "zen.app"
	attrTotalMillis = "zen.request.total_ms"
	attrServeMillis = "zen.request.serve_ms"
	attrRecords     = "zen.request.records"
	attrErrorStage  = "zen.request.error_stage"
)

var eventDecoder = sonic.Config{UseNumber: true}.Froze()

type logRecord struct {
	EventName    string         `json:"event.name"`
	EventDomain  string         `json:"event.domain"`
	SeverityText string         `json:"severity_text"`
	Attributes   map[string]any `json:"attributes"`
}

type numericStats struct {
	Count int
	Sum   float64
	Min   float64
	Max   float64
}

func newNumericStats() *numericStats {
	return &numericStats{Min: math.MaxFloat64}
}

func (n *numericStats) add(v float64) {
	n.Count++
	n.Sum += v
	if v < n.Min {
		n.Min = v
	}
	if v > n.Max {
		n.Max = v
	}
}

type durationSummary struct {
	Count int     `json:"count"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	Avg   float64 `json:"avg_ms"`
}

func (n *numericStats) summary() durationSummary {
	if n == nil || n.Count == 0 {
		return durationSummary{}
	}
	return durationSummary{Count: n.Count, Min: n.Min, Max: n.Max, Avg: n.Sum / float64(n.Count)}
}

type routeStats struct {
	count   int
	total   *numericStats
	serve   *numericStats
	records int
	errors  int
}

type routeSummary struct {
	Route   string          `json:"route"`
	Count   int             `json:"count"`
	TotalMs durationSummary `json:"total_ms"`
	ServeMs durationSummary `json:"serve_ms"`
	Records int             `json:"records"`
	Errors  int             `json:"errors"`
}

type eventSummary struct {
	TotalEvents    int            `json:"total_events"`
	SeverityCounts map[string]int `json:"severity_counts"`
	StatusCounts   map[string]int `json:"status_counts"`
	AppCounts      map[string]int `json:"app_counts"`
	ErrorStages    map[string]int `json:"error_stages,omitempty"`
	Routes         []routeSummary `json:"routes"`
	SkippedLines   int            `json:"skipped_lines"`
}

// eventCollector aggregates the request events the server logs as JSON lines.
type eventCollector struct {
	app      string
	total    int
	severity map[string]int
	statuses map[int]int
	apps     map[string]int
	stages   map[string]int
	routes   map[string]*routeStats
	skipped  int
}

func newEventCollector(app string) *eventCollector {
	return &eventCollector{
		app:      app,
		severity: make(map[string]int),
		statuses: make(map[int]int),
		apps:     make(map[string]int),
		stages:   make(map[string]int),
		routes:   make(map[string]*routeStats),
	}
}

func (c *eventCollector) ingest(line string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return
	}
	// docker compose prefixes each line with "service |".
	if pipe := strings.Index(trimmed, "|"); pipe >= 0 && !strings.HasPrefix(trimmed, "{") {
		trimmed = strings.TrimSpace(trimmed[pipe+1:])
	}
	var rec logRecord
	if err := eventDecoder.UnmarshalFromString(trimmed, &rec); err != nil {
		c.skipped++
		return
	}
	if rec.EventName != requestEventName || rec.EventDomain != requestEventDomain {
		return
	}
	app, _ := asString(rec.Attributes[attrApp])
	if c.app != "" && app != c.app {
		return
	}
	c.add(rec, app)
}

func (c *eventCollector) add(rec logRecord, app string) {
	c.total++
	sev := strings.ToUpper(strings.TrimSpace(rec.SeverityText))
	if sev == "" {
		sev = "UNSPECIFIED"
	}
	c.severity[sev]++
	if app != "" {
		c.apps[app]++
	}

	method, _ := asString(rec.Attributes[attrMethod])
	route, _ := asString(rec.Attributes[attrRoute])
	key := strings.TrimSpace(method + " " + route)
	rs, ok := c.routes[key]
	if !ok {
		rs = &routeStats{total: newNumericStats(), serve: newNumericStats()}
		c.routes[key] = rs
	}
	rs.count++
	if sev == "ERROR" {
		rs.errors++
	}

	if status, ok := asInt(rec.Attributes[attrStatusCode]); ok {
		c.statuses[status]++
	}
	if v, ok := asFloat(rec.Attributes[attrTotalMillis]); ok {
		rs.total.add(v)
	}
	if v, ok := asFloat(rec.Attributes[attrServeMillis]); ok {
		rs.serve.add(v)
	}
	if v, ok := asInt(rec.Attributes[attrRecords]); ok {
		rs.records += v
	}
	if stage, ok := asString(rec.Attributes[attrErrorStage]); ok && stage != "" {
		c.stages[stage]++
	}
}

func (c *eventCollector) summary() eventSummary {
	out := eventSummary{
		TotalEvents:    c.total,
		SeverityCounts: c.severity,
		StatusCounts:   make(map[string]int, len(c.statuses)),
		AppCounts:      c.apps,
		SkippedLines:   c.skipped,
	}
	for status, n := range c.statuses {
		out.StatusCounts[strconv.Itoa(status)] = n
	}
	if len(c.stages) > 0 {
		out.ErrorStages = c.stages
	}
	for key, rs := range c.routes {
		out.Routes = append(out.Routes, routeSummary{
			Route:   key,
			Count:   rs.count,
			TotalMs: rs.total.summary(),
			ServeMs: rs.serve.summary(),
			Records: rs.records,
			Errors:  rs.errors,
		})
	}
	sort.Slice(out.Routes, func(i, j int) bool {
		if out.Routes[i].Count != out.Routes[j].Count {
			return out.Routes[i].Count > out.Routes[j].Count
		}
		return out.Routes[i].Route < out.Routes[j].Route
	})
	return out
}

func (s eventSummary) ShortString() string {
	return strings.Join([]string{
		"total=" + strconv.Itoa(s.TotalEvents),
		"info=" + strconv.Itoa(s.SeverityCounts["INFO"]),
		"warn=" + strconv.Itoa(s.SeverityCounts["WARN"]),
		"error=" + strconv.Itoa(s.SeverityCounts["ERROR"]),
		"routes=" + strconv.Itoa(len(s.Routes)),
		"skipped=" + strconv.Itoa(s.SkippedLines),
	}, " ")
}

func collectEvents(r io.Reader, app string) (eventSummary, error) {
	c := newEventCollector(app)
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) != 0 {
			c.ingest(line)
		}
		if err == io.EOF {
			return c.summary(), nil
		}
		if err != nil {
			return eventSummary{}, fmt.Errorf("read logs: %w", err)
		}
	}
}

func (c *cli) eventsCmd() *cobra.Command {
	var input, filter string
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Summarize request events from server JSON logs",
		Args:  cobra.NoArgs,
		// Works on log files only, so the data stores are never opened.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			var r io.Reader = cmd.InOrStdin()
			if input != "" && input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			summary, err := collectEvents(r, filter)
			if err != nil {
				return err
			}
			data, err := sonic.ConfigStd.MarshalIndent(summary, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			fmt.Fprintln(cmd.ErrOrStderr(), summary.ShortString())
			return nil
		},
	}
	cmd.Flags().StringVar(&input, "in", "-", "log file to read, - for stdin")
	cmd.Flags().StringVar(&filter, "filter-app", "", "only count events for this app")
	return cmd
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func asInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(v)
		return i, err == nil
	default:
		return 0, false
	}
}

func asString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}
