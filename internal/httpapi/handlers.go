package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/corepipe/internal/pipeline"
	"github.com/sawpanic/corepipe/internal/slots"
)

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthResponse reports liveness and the age of the last cycle
type HealthResponse struct {
	Status    string    `json:"status"` // "ok" or "degraded"
	Version   string    `json:"version,omitempty"`
	Uptime    string    `json:"uptime"`
	LastCycle string    `json:"last_cycle,omitempty"`
	LastAsOf  string    `json:"last_as_of,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	OpenSlots *int      `json:"open_slots,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// SlotsResponse is the allocator state after the last cycle
type SlotsResponse struct {
	AsOf  string      `json:"as_of"`
	Open  int         `json:"open"`
	State slots.State `json:"state"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "ok",
		Version:   s.deps.Version,
		Uptime:    time.Since(s.started).Truncate(time.Second).String(),
		Timestamp: time.Now().UTC(),
	}
	if s.deps.Cycles == nil {
		resp.Status = "degraded"
	} else if res, err := s.deps.Cycles.Last(); err == nil {
		open := slots.OpenCount(res.Slots)
		resp.LastCycle = res.CycleID
		resp.LastAsOf = res.AsOf
		resp.Mode = string(res.Mode)
		resp.OpenSlots = &open
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) brief(w http.ResponseWriter, r *http.Request) {
	res, ok := s.last(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(res.Brief))
}

func (s *Server) decisions(w http.ResponseWriter, r *http.Request) {
	res, ok := s.last(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) slots(w http.ResponseWriter, r *http.Request) {
	res, ok := s.last(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SlotsResponse{AsOf: res.AsOf, Open: slots.OpenCount(res.Slots), State: res.Slots})
}

func (s *Server) risk(w http.ResponseWriter, r *http.Request) {
	if s.deps.Risk == nil {
		writeError(w, r, http.StatusServiceUnavailable, "risk_unavailable", "no trade book configured")
		return
	}
	report, err := s.deps.Risk(r.Context())
	if err != nil {
		log.Error().Err(err).Str("request_id", requestID(r)).Msg("Risk report failed")
		writeError(w, r, http.StatusBadGateway, "risk_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) last(w http.ResponseWriter, r *http.Request) (pipeline.Result, bool) {
	if s.deps.Cycles == nil {
		writeError(w, r, http.StatusServiceUnavailable, "cycles_unavailable", "no pipeline configured")
		return pipeline.Result{}, false
	}
	res, err := s.deps.Cycles.Last()
	if errors.Is(err, pipeline.ErrNoCycle) {
		writeError(w, r, http.StatusServiceUnavailable, "no_cycle", err.Error())
		return pipeline.Result{}, false
	}
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "internal", err.Error())
		return pipeline.Result{}, false
	}
	return res, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("json encoding failed")
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Code:      code,
		Message:   message,
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}
