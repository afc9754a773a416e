package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/raglab/raglab/internal/analyst"
	"github.com/raglab/raglab/internal/comparison"
	"github.com/raglab/raglab/internal/evaluation"
	"github.com/raglab/raglab/internal/ingest"
	"github.com/raglab/raglab/internal/pkg/errors"
	"github.com/raglab/raglab/internal/pkg/logger"
	"github.com/raglab/raglab/internal/pkg/security"
	"github.com/raglab/raglab/internal/recorder"
	"github.com/raglab/raglab/internal/technique"
)

// maxRequestBody bounds JSON request bodies. Document uploads carry
// full text, so the limit is generous.
const maxRequestBody = 10 << 20

// defaultListLimit applies when a list request carries no limit.
const defaultListLimit = 50

// maxListLimit caps a single page of executions.
const maxListLimit = 500

// maxAnalysesLimit caps a single page of saved analyses.
const maxAnalysesLimit = 100

// QueryRunner executes one technique pipeline over one query.
type QueryRunner interface {
	Run(ctx context.Context, tech, query string, opts technique.Options) (*technique.Outcome, error)
}

// AnswerEvaluator judges answer quality after a pipeline run.
type AnswerEvaluator interface {
	Evaluate(ctx context.Context, query, answer string, contexts []string) *evaluation.Scores
}

// ExecutionRecorder persists and retrieves execution records.
type ExecutionRecorder interface {
	Record(ctx context.Context, e *recorder.Execution) (string, error)
	Get(ctx context.Context, id string) (*recorder.Execution, error)
	List(ctx context.Context, f recorder.Filter) ([]*recorder.Execution, error)
	Purge(ctx context.Context, f recorder.Filter) (int64, error)
}

// Comparer aggregates executions into the comparison payload.
type Comparer interface {
	Compare(ctx context.Context, f recorder.Filter) (*comparison.Result, error)
}

// Ingester uploads documents into the vector store.
type Ingester interface {
	Ingest(ctx context.Context, document, text string) (*ingest.Result, error)
}

// Analyst answers natural-language questions over the comparison data
// and manages the saved analyses.
type Analyst interface {
	Analyze(ctx context.Context, question string) (*analyst.Analysis, error)
	Get(ctx context.Context, id string) (*analyst.Analysis, error)
	List(ctx context.Context, f analyst.Filter) ([]*analyst.Analysis, int, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotTrigger requests an out-of-band comparison snapshot refresh.
type SnapshotTrigger interface {
	Trigger()
}

// Deps are the collaborators behind the HTTP API. Evaluator, Cache,
// Refresher, and Ready are optional.
type Deps struct {
	Runner    QueryRunner
	Evaluator AnswerEvaluator
	Recorder  ExecutionRecorder
	Comparer  Comparer
	Cache     comparison.Cache
	Refresher SnapshotTrigger
	Ingester  Ingester
	Analyst   Analyst

	// Ready probes downstream dependencies for the readiness endpoint.
	Ready func(ctx context.Context) error

	Version string

	// EvaluateByDefault runs the quality evaluator after each query
	// unless the request opts out.
	EvaluateByDefault bool

	Log *logger.Logger
}

// API serves the REST endpoints.
type API struct {
	deps Deps
	log  *logger.Logger
}

// NewAPI creates the API handler set.
func NewAPI(deps Deps) *API {
	log := deps.Log
	if log == nil {
		log = logger.Default()
	}
	return &API{deps: deps, log: log}
}

// RegisterRoutes attaches all API routes to the mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", a.handleHealth)
	mux.HandleFunc("GET /readyz", a.handleReady)
	mux.HandleFunc("GET /v1/version", a.handleVersion)

	mux.HandleFunc("POST /v1/query", a.handleQuery)
	mux.HandleFunc("GET /v1/techniques", a.handleTechniques)

	mux.HandleFunc("GET /v1/executions", a.handleListExecutions)
	mux.HandleFunc("DELETE /v1/executions", a.handlePurgeExecutions)
	mux.HandleFunc("GET /v1/executions/{id}", a.handleGetExecution)

	mux.HandleFunc("GET /v1/comparison", a.handleComparison)

	mux.HandleFunc("POST /v1/documents", a.handleUploadDocument)

	mux.HandleFunc("POST /v1/analyze", a.handleAnalyze)
	mux.HandleFunc("GET /v1/analyses", a.handleListAnalyses)
	mux.HandleFunc("GET /v1/analyses/{id}", a.handleGetAnalysis)
	mux.HandleFunc("DELETE /v1/analyses/{id}", a.handleDeleteAnalysis)
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if a.deps.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := a.deps.Ready(ctx); err != nil {
			a.log.Warn("readiness check failed", "error", err)
			errors.WriteError(w, errors.ServiceUnavailableError("dependencies"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (a *API) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    a.deps.Version,
		"techniques": strconv.Itoa(len(technique.Names())),
	})
}

type queryRequest struct {
	Technique string `json:"technique"`
	Query     string `json:"query"`
	TopK      int    `json:"top_k,omitempty"`

	// Evaluate overrides the server-side evaluation default.
	Evaluate *bool `json:"evaluate,omitempty"`
}

type queryResponse struct {
	ID        string            `json:"id"`
	Technique string            `json:"technique"`
	Query     string            `json:"query"`
	Answer    string            `json:"answer"`
	Sources   []recorder.Source `json:"sources"`
	Metrics   recorder.Metrics  `json:"metrics"`
	Details   map[string]any    `json:"details,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

func (a *API) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	req.Query = security.SanitizeQuery(req.Query)
	if err := security.ValidateQuery(req.Query); err != nil {
		errors.WriteError(w, errors.ValidationError(err.Error()))
		return
	}
	if req.TopK != 0 {
		if err := security.ValidateTopK(req.TopK); err != nil {
			errors.WriteError(w, errors.ValidationError(err.Error()))
			return
		}
	}

	outcome, err := a.deps.Runner.Run(r.Context(), req.Technique, req.Query, technique.Options{TopK: req.TopK})
	if err != nil {
		a.log.Warn("query failed", "technique", req.Technique, "error", err)
		errors.WriteError(w, err)
		return
	}

	metrics := outcome.Metrics()
	if a.shouldEvaluate(req.Evaluate) {
		contexts := make([]string, len(outcome.Sources))
		for i, s := range outcome.Sources {
			contexts[i] = s.Content
		}
		scores := a.deps.Evaluator.Evaluate(r.Context(), req.Query, outcome.Answer, contexts)
		metrics.Faithfulness = scores.Faithfulness
		metrics.AnswerRelevancy = scores.AnswerRelevancy
		metrics.ContextPrecision = scores.ContextPrecision
		metrics.ContextRecall = scores.ContextRecall
	}

	execution := &recorder.Execution{
		Query:     req.Query,
		Technique: outcome.Technique,
		Answer:    outcome.Answer,
		Sources:   outcome.Sources,
		Metrics:   metrics,
	}
	id, err := a.deps.Recorder.Record(r.Context(), execution)
	if err != nil {
		a.log.Error("failed to record execution", "technique", outcome.Technique, "error", err)
		errors.WriteError(w, err)
		return
	}

	if a.deps.Refresher != nil {
		a.deps.Refresher.Trigger()
	}

	writeJSON(w, http.StatusOK, queryResponse{
		ID:        id,
		Technique: outcome.Technique,
		Query:     req.Query,
		Answer:    outcome.Answer,
		Sources:   outcome.Sources,
		Metrics:   metrics,
		Details:   outcome.Details,
		CreatedAt: execution.CreatedAt,
	})
}

// shouldEvaluate resolves the per-request override against the server
// default. Evaluation is skipped entirely when no evaluator is wired.
func (a *API) shouldEvaluate(override *bool) bool {
	if a.deps.Evaluator == nil {
		return false
	}
	if override != nil {
		return *override
	}
	return a.deps.EvaluateByDefault
}

type techniqueInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (a *API) handleTechniques(w http.ResponseWriter, r *http.Request) {
	names := technique.Names()
	infos := make([]techniqueInfo, len(names))
	for i, name := range names {
		infos[i] = techniqueInfo{Name: name, Description: technique.Describe(name)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"techniques": infos})
}

func (a *API) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}

	executions, err := a.deps.Recorder.List(r.Context(), filter)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	if executions == nil {
		executions = []*recorder.Execution{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"executions": executions,
		"count":      len(executions),
	})
}

func (a *API) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	execution, err := a.deps.Recorder.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, execution)
}

func (a *API) handlePurgeExecutions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	// Limit and offset have no meaning for a purge.
	filter.Limit = 0
	filter.Offset = 0

	purged, err := a.deps.Recorder.Purge(r.Context(), filter)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	if purged > 0 && a.deps.Refresher != nil {
		a.deps.Refresher.Trigger()
	}

	writeJSON(w, http.StatusOK, map[string]int64{"purged": purged})
}

func (a *API) handleComparison(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}

	// Unfiltered requests are served from the refresher's snapshot when
	// one exists; filtered requests always aggregate fresh.
	if filterIsEmpty(filter) && a.deps.Cache != nil {
		snapshot, err := a.deps.Cache.Get(r.Context())
		if err != nil {
			a.log.Warn("snapshot read failed, computing fresh", "error", err)
		} else if snapshot != nil {
			writeJSON(w, http.StatusOK, snapshot)
			return
		}
	}

	result, err := a.deps.Comparer.Compare(r.Context(), filter)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type uploadRequest struct {
	Document string `json:"document"`
	Text     string `json:"text"`
}

func (a *API) handleUploadDocument(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !decodeBody(w, r, &req) {
		return
	}

	result, err := a.deps.Ingester.Ingest(r.Context(), req.Document, req.Text)
	if err != nil {
		a.log.Warn("document upload failed", "document", security.SanitizeForLog(req.Document), "error", err)
		errors.WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"document":    result.Document,
		"chunks":      result.Chunks,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

type analyzeRequest struct {
	Question string `json:"question,omitempty"`
}

func (a *API) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	// A bodyless POST asks for the default comprehensive analysis.
	var req analyzeRequest
	if r.ContentLength != 0 {
		if !decodeBody(w, r, &req) {
			return
		}
	}

	analysis, err := a.deps.Analyst.Analyze(r.Context(), security.SanitizeQuery(req.Question))
	if err != nil {
		a.log.Warn("analysis failed", "error", err)
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (a *API) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxAnalysesLimit {
		filter.Limit = maxAnalysesLimit
	}

	analyses, total, err := a.deps.Analyst.List(r.Context(), analyst.Filter{
		From:   filter.From,
		To:     filter.To,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	if analyses == nil {
		analyses = []*analyst.Analysis{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"analyses": analyses,
		"count":    len(analyses),
		"total":    total,
	})
}

func (a *API) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := a.deps.Analyst.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (a *API) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Analyst.Delete(r.Context(), r.PathValue("id")); err != nil {
		errors.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// parseFilter builds an execution filter from query parameters.
// Techniques may be repeated or comma separated; dates accept RFC 3339
// or plain YYYY-MM-DD, with date-only bounds inclusive on both ends.
func parseFilter(r *http.Request) (recorder.Filter, error) {
	q := r.URL.Query()
	var f recorder.Filter

	for _, raw := range q["technique"] {
		for _, t := range strings.Split(raw, ",") {
			t = strings.TrimSpace(t)
			if t == "" {
				continue
			}
			if !technique.IsKnown(t) {
				return f, errors.ValidationError("unknown technique: " + t)
			}
			f.Techniques = append(f.Techniques, t)
		}
	}

	if raw := q.Get("from"); raw != "" {
		ts, _, err := parseTime(raw)
		if err != nil {
			return f, errors.ValidationError("invalid from date: " + raw)
		}
		f.From = &ts
	}

	if raw := q.Get("to"); raw != "" {
		ts, dateOnly, err := parseTime(raw)
		if err != nil {
			return f, errors.ValidationError("invalid to date: " + raw)
		}
		if dateOnly {
			ts = ts.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &ts
	}

	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.ValidationError("invalid limit: " + raw)
		}
		f.Limit = n
	}

	if raw := q.Get("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return f, errors.ValidationError("invalid offset: " + raw)
		}
		f.Offset = n
	}

	return f, nil
}

func parseTime(raw string) (time.Time, bool, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, false, nil
	}
	ts, err := time.Parse("2006-01-02", raw)
	return ts, true, err
}

func filterIsEmpty(f recorder.Filter) bool {
	return len(f.Techniques) == 0 && f.From == nil && f.To == nil && f.Limit == 0 && f.Offset == 0
}

// decodeBody parses a JSON request body, writing the error response
// itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		errors.WriteError(w, errors.InvalidRequestError("invalid request body: "+err.Error()))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
