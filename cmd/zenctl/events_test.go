package main

import (
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLogs = `{"level":"info","msg":"observability.event","event.name":"request.completed","event.domain":"zen-records.api","severity_text":"INFO","severity_number":9,"attributes":{"http.route":"/api/agenda/tasks","http.method":"POST","http.status_code":201,"zen.app":"agenda","zen.request.total_ms":4.5,"zen.request.records":1}}
not json at all
api-1 | {"level":"warning","msg":"observability.event","event.name":"request.completed","event.domain":"zen-records.api","severity_text":"WARN","severity_number":13,"attributes":{"http.route":"/api/agenda/tasks","http.method":"POST","http.status_code":400,"zen.app":"agenda","zen.request.total_ms":1.5,"zen.request.records":0,"zen.request.error_stage":"decode"}}
{"level":"error","msg":"observability.event","event.name":"request.completed","event.domain":"zen-records.api","severity_text":"ERROR","severity_number":17,"attributes":{"http.route":"/api/clinic/patients","http.method":"GET","http.status_code":500,"zen.app":"clinic","zen.request.total_ms":9,"zen.request.error_stage":"list"}}
{"level":"info","msg":"startup","event.name":"other","event.domain":"zen-records.api"}
`

func TestCollectEventsAggregatesByRoute(t *testing.T) {
	summary, err := collectEvents(strings.NewReader(sampleLogs), "")
	require.NoError(t, err)

	assert.Equal(t, 3, summary.TotalEvents)
	assert.Equal(t, 1, summary.SkippedLines)
	assert.Equal(t, map[string]int{"INFO": 1, "WARN": 1, "ERROR": 1}, summary.SeverityCounts)
	assert.Equal(t, map[string]int{"201": 1, "400": 1, "500": 1}, summary.StatusCounts)
	assert.Equal(t, map[string]int{"agenda": 2, "clinic": 1}, summary.AppCounts)
	assert.Equal(t, map[string]int{"decode": 1, "list": 1}, summary.ErrorStages)

	require.Len(t, summary.Routes, 2)
	tasks := summary.Routes[0]
	assert.Equal(t, "POST /api/agenda/tasks", tasks.Route)
	assert.Equal(t, 2, tasks.Count)
	assert.Equal(t, 1, tasks.Records)
	assert.InDelta(t, 3.0, tasks.TotalMs.Avg, 0.001)
	assert.InDelta(t, 1.5, tasks.TotalMs.Min, 0.001)
	assert.InDelta(t, 4.5, tasks.TotalMs.Max, 0.001)
	assert.Equal(t, 1, summary.Routes[1].Errors)

	assert.Contains(t, summary.ShortString(), "total=3")
}

func TestCollectEventsFiltersByApp(t *testing.T) {
	summary, err := collectEvents(strings.NewReader(sampleLogs), "clinic")
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TotalEvents)
	require.Len(t, summary.Routes, 1)
	assert.Equal(t, "GET /api/clinic/patients", summary.Routes[0].Route)
}

func TestEventsCommandSkipsStores(t *testing.T) {
	t.Setenv("AGENDA_BACKEND", "bogus")
	cmd := newRootCmd()
	var stdout, stderr strings.Builder
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(sampleLogs))
	cmd.SetArgs([]string{"events"})
	require.NoError(t, cmd.Execute())

	var summary eventSummary
	require.NoError(t, sonic.ConfigStd.UnmarshalFromString(stdout.String(), &summary))
	assert.Equal(t, 3, summary.TotalEvents)
	assert.Contains(t, stderr.String(), "routes=2")
}
