package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sieveworks/sieve/internal/engine"
	"github.com/sieveworks/sieve/internal/lineage"
	"github.com/sieveworks/sieve/internal/source"
)

// Wire shapes. The core types stay transport-free; the API owns its JSON.

type errorResponse struct {
	Error string `json:"error"`
}

type traceStepResponse struct {
	Stage     string    `json:"stage"`
	Verdict   string    `json:"verdict"`
	RuleName  string    `json:"rule_name,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type traceResponse struct {
	RecordID     string              `json:"record_id"`
	Found        bool                `json:"found"`
	FinalVerdict string              `json:"final_verdict,omitempty"`
	Steps        []traceStepResponse `json:"steps,omitempty"`
}

type evaluateRequest struct {
	Records []map[string]any `json:"records"`
}

type failedRuleResponse struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Severity    string `json:"severity"`
	Reason      string `json:"reason"`
}

type quarantinedResponse struct {
	RecordID    string               `json:"record_id"`
	Stage       string               `json:"stage"`
	FailedRules []failedRuleResponse `json:"failed_rules"`
}

type stageSummaryResponse struct {
	Stage       string `json:"stage"`
	Records     int    `json:"records"`
	Passed      int    `json:"passed"`
	Quarantined int    `json:"quarantined"`
}

type evaluateResponse struct {
	Delivered   []string               `json:"delivered"`
	Quarantined []quarantinedResponse  `json:"quarantined"`
	Stages      []stageSummaryResponse `json:"stages"`
}

type ruleResponse struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Severity    string   `json:"severity"`
	Fields      []string `json:"fields,omitempty"`
}

type stageRulesResponse struct {
	Stage string         `json:"stage"`
	Rules []ruleResponse `json:"rules"`
}

type runResponse struct {
	ID               string     `json:"id"`
	Environment      string     `json:"environment"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Error            string     `json:"error,omitempty"`
	RecordCount      int        `json:"record_count"`
	QuarantinedCount int        `json:"quarantined_count"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// handleTrace serves GET /api/v1/trace/{recordID}. With ?strict=1 the
// caller asserts the record exists and no history is a 404; otherwise the
// no-history result comes back as a 200.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	recordID := chi.URLParam(r, "recordID")
	tracer := lineage.NewTracer(s.store)

	result, err := tracer.Trace(recordID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "trace failed: %v", err)
		return
	}

	if !result.Found && r.URL.Query().Get("strict") == "1" {
		writeError(w, http.StatusNotFound, "no history for record %s", recordID)
		return
	}

	resp := traceResponse{
		RecordID:     result.RecordID,
		Found:        result.Found,
		FinalVerdict: string(result.FinalVerdict),
	}
	for _, step := range result.Steps {
		resp.Steps = append(resp.Steps, traceStepResponse{
			Stage:     step.Stage,
			Verdict:   string(step.Verdict),
			RuleName:  step.RuleName,
			Reason:    step.Reason,
			Timestamp: step.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleEvaluate serves POST /api/v1/evaluate: run a batch through the
// current gate without touching the state store or the sink.
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	gate := s.currentGate()
	if len(gate.stages) == 0 {
		writeError(w, http.StatusServiceUnavailable, "no pipeline stages configured")
		return
	}

	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return
	}
	if len(req.Records) == 0 {
		writeError(w, http.StatusBadRequest, "no records in request")
		return
	}

	records, err := source.FromMaps(req.Records)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid records: %v", err)
		return
	}

	pipeline, err := engine.New(engine.Config{
		Stages:              gate.stages,
		QuarantineThreshold: s.threshold,
		Workers:             s.workers,
		Environment:         s.environment,
		Logger:              s.logger,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to build pipeline: %v", err)
		return
	}

	result, err := pipeline.Run(r.Context(), records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "evaluation failed: %v", err)
		return
	}

	resp := evaluateResponse{
		Delivered:   make([]string, 0, len(result.Delivered)),
		Quarantined: make([]quarantinedResponse, 0, len(result.Quarantined)),
	}
	for _, rec := range result.Delivered {
		resp.Delivered = append(resp.Delivered, rec.ID)
	}
	for _, q := range result.Quarantined {
		qr := quarantinedResponse{RecordID: q.Record.ID, Stage: q.Stage}
		for _, f := range q.FailedRules {
			qr.FailedRules = append(qr.FailedRules, failedRuleResponse{
				Name:        f.Name,
				Description: f.Description,
				Severity:    f.Severity.String(),
				Reason:      f.Reason,
			})
		}
		resp.Quarantined = append(resp.Quarantined, qr)
	}
	for _, sr := range result.Stages {
		resp.Stages = append(resp.Stages, stageSummaryResponse{
			Stage:       sr.Stage,
			Records:     sr.Records,
			Passed:      sr.Passed,
			Quarantined: sr.Quarantined,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleRules serves GET /api/v1/rules.
func (s *Server) handleRules(w http.ResponseWriter, _ *http.Request) {
	gate := s.currentGate()

	resp := make([]stageRulesResponse, 0, len(gate.stages))
	for _, set := range gate.stages {
		sr := stageRulesResponse{Stage: set.Stage(), Rules: make([]ruleResponse, 0, set.Len())}
		for _, rule := range set.Rules() {
			sr.Rules = append(sr.Rules, ruleResponse{
				Name:        rule.Name,
				Description: rule.Description,
				Severity:    rule.Severity.String(),
				Fields:      rule.Fields,
			})
		}
		resp = append(resp, sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLatestRun serves GET /api/v1/runs/latest. The env query parameter
// narrows to one environment; default is the server's own.
func (s *Server) handleLatestRun(w http.ResponseWriter, r *http.Request) {
	env := r.URL.Query().Get("env")
	if env == "" {
		env = s.environment
	}

	run, err := s.store.GetLatestRun(env)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get latest run: %v", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "no runs recorded for environment %s", env)
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		ID:               run.ID,
		Environment:      run.Environment,
		Status:           string(run.Status),
		StartedAt:        run.StartedAt,
		CompletedAt:      run.CompletedAt,
		Error:            run.Error,
		RecordCount:      run.RecordCount,
		QuarantinedCount: run.QuarantinedCount,
	})
}
