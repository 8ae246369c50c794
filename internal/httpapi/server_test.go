package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/corepipe/internal/metrics"
	"github.com/sawpanic/corepipe/internal/mode"
	"github.com/sawpanic/corepipe/internal/pipeline"
	"github.com/sawpanic/corepipe/internal/risk"
	"github.com/sawpanic/corepipe/internal/slots"
)

type stubCycles struct {
	res pipeline.Result
	err error
}

func (s stubCycles) Last() (pipeline.Result, error) { return s.res, s.err }

func sampleResult() pipeline.Result {
	state := slots.AddSlot(slots.State{MaxSlots: 3, Active: []slots.Slot{}}, slots.Slot{TradeID: "CORE-EQNR.OL", Symbol: "EQNR.OL", OpenedOn: "2026-10-16"})
	return pipeline.Result{
		CycleID: "c-1",
		AsOf:    "2026-10-16",
		Mode:    mode.Paper,
		Slots:   state,
		Applied: true,
		Brief:   "CORE brief 2026-10-16\nENTER EQNR.OL\n",
	}
}

func do(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(DefaultConfig(), Deps{Cycles: stubCycles{res: sampleResult()}, Version: "test"})
	rec := do(t, s, http.MethodGet, "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "c-1", body.LastCycle)
	assert.Equal(t, "PAPER", body.Mode)
	require.NotNil(t, body.OpenSlots)
	assert.Equal(t, 2, *body.OpenSlots)
}

func TestBrief(t *testing.T) {
	s := NewServer(DefaultConfig(), Deps{Cycles: stubCycles{res: sampleResult()}})
	rec := do(t, s, http.MethodGet, "/brief")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, rec.Body.String(), "ENTER EQNR.OL")
}

func TestBrief_NoCycleYet(t *testing.T) {
	s := NewServer(DefaultConfig(), Deps{Cycles: stubCycles{err: pipeline.ErrNoCycle}})
	rec := do(t, s, http.MethodGet, "/brief")

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "no_cycle", body.Code)
	assert.Equal(t, rec.Header().Get("X-Request-ID"), body.RequestID)
}

func TestSlotsAndDecisions(t *testing.T) {
	s := NewServer(DefaultConfig(), Deps{Cycles: stubCycles{res: sampleResult()}})

	rec := do(t, s, http.MethodGet, "/slots")
	require.Equal(t, http.StatusOK, rec.Code)
	var sl SlotsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sl))
	assert.Equal(t, 2, sl.Open)
	assert.Equal(t, []string{"EQNR.OL"}, slots.Symbols(sl.State))

	rec = do(t, s, http.MethodGet, "/decisions")
	require.Equal(t, http.StatusOK, rec.Code)
	var res pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.True(t, res.Applied)
	assert.Equal(t, "c-1", res.CycleID)
}

func TestRisk(t *testing.T) {
	report := risk.Empty(risk.DefaultOptions())
	report.TotalValue = 1234
	s := NewServer(DefaultConfig(), Deps{Risk: func(context.Context) (risk.Report, error) { return report, nil }})

	rec := do(t, s, http.MethodGet, "/risk")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "1234")

	s = NewServer(DefaultConfig(), Deps{Risk: func(context.Context) (risk.Report, error) {
		return risk.Report{}, errors.New("provider down")
	}})
	rec = do(t, s, http.MethodGet, "/risk")
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	rec = do(t, NewServer(DefaultConfig(), Deps{}), http.MethodGet, "/risk")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsAndRouting(t *testing.T) {
	reg := metrics.NewRegistry()
	reg.RecordCycle(metrics.ResultSuccess)
	s := NewServer(DefaultConfig(), Deps{Metrics: reg.Handler()})

	rec := do(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "corepipe_")

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/nope").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s, http.MethodPost, "/health").Code)
}
