package pipeline

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
)

// Runner runs the rollup generation once.
type Runner interface {
	Run(ctx context.Context) ([]Step, error)
}

type pipelineResult struct {
	CompletedSteps []Step   `json:"completed_steps"`
	Errors         []string `json:"errors"`
}

// Handler triggers the rollup generator over HTTP.
type Handler struct {
	runner Runner

	// pipelineCanRun holds a token while no run is in progress.
	pipelineCanRun chan struct{}
}

// NewHandler returns a Handler running runner.
func NewHandler(runner Runner) *Handler {
	h := &Handler{
		runner:         runner,
		pipelineCanRun: make(chan struct{}, 1),
	}
	h.pipelineCanRun <- struct{}{}
	return h
}

// ServeHTTP handles requests to the /v0/rollup endpoint.
// Each request rebuilds the hourly and the daily rollup tables and responds
// once both statements have completed. Only one run can be in progress at a
// time.
//
// This endpoint accepts only POST requests.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	result := pipelineResult{
		CompletedSteps: []Step{},
		Errors:         []string{},
	}
	if r.Method != http.MethodPost {
		result.Errors = append(result.Errors,
			http.StatusText(http.StatusMethodNotAllowed))
		sendResponse(w, http.StatusMethodNotAllowed, result)
		return
	}

	select {
	case <-h.pipelineCanRun:
		defer func() { h.pipelineCanRun <- struct{}{} }()
	default:
		result.Errors = append(result.Errors, errAlreadyRunning.Error())
		sendResponse(w, http.StatusConflict, result)
		return
	}

	log.Printf("Running rollup generator...")
	completed, err := h.runner.Run(r.Context())
	if completed != nil {
		result.CompletedSteps = completed
	}
	if err != nil {
		log.Printf("Rollup generator failed: %v", err)
		result.Errors = append(result.Errors, err.Error())
		sendResponse(w, http.StatusInternalServerError, result)
		return
	}
	sendResponse(w, http.StatusOK, result)
}

func sendResponse(w http.ResponseWriter, statusCode int, result pipelineResult) {
	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("Cannot marshal response: %v", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(body)
}
