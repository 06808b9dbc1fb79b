package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/esglens/esglens/internal/application/pipeline"
	"github.com/esglens/esglens/internal/domain/document"
	"github.com/esglens/esglens/internal/domain/matching"
	"github.com/esglens/esglens/internal/infrastructure/monitoring/logging"
	"github.com/esglens/esglens/pkg/errors"
)

// Pipeline is the slice of the comparison pipeline the HTTP layer drives.
// *pipeline.Runner satisfies it.
type Pipeline interface {
	Run(ctx context.Context, standard *document.Document, reports []*document.Document) (*matching.ComparisonResult, error)
	Subscribe() (<-chan pipeline.Progress, func())
}

// PipelineFactory builds one pipeline per run so progress streams stay
// isolated between concurrent runs.
type PipelineFactory func() Pipeline

// RunStatus is the lifecycle state of one comparison run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// runState is the server-side record of one run. All fields are guarded by
// the handler mutex once the run goroutine is started.
type runState struct {
	id         string
	status     RunStatus
	createdAt  time.Time
	finishedAt time.Time
	progress   pipeline.Progress
	result     *matching.ComparisonResult
	err        error
	cancel     context.CancelFunc
}

// RunHandler manages the lifecycle of comparison runs: submission, status
// and progress inspection, result retrieval, and cancellation. Runs execute
// asynchronously; the store is in-memory and scoped to the process.
type RunHandler struct {
	factory PipelineFactory
	logger  logging.Logger

	mu   sync.RWMutex
	runs map[string]*runState
}

// NewRunHandler constructs a RunHandler.
func NewRunHandler(factory PipelineFactory, logger logging.Logger) *RunHandler {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RunHandler{
		factory: factory,
		logger:  logger.Named("runs"),
		runs:    make(map[string]*runState),
	}
}

// RegisterRoutes mounts the run endpoints on the given group.
func (h *RunHandler) RegisterRoutes(r gin.IRoutes) {
	r.POST("/runs", h.Create)
	r.GET("/runs", h.List)
	r.GET("/runs/:id", h.Get)
	r.GET("/runs/:id/progress", h.Progress)
	r.DELETE("/runs/:id", h.Cancel)
}

// documentPayload is one input document as submitted by the client: a title
// and the ordered raw page texts produced by an external PDF-text extractor.
type documentPayload struct {
	Title string   `json:"title"`
	Pages []string `json:"pages"`
}

// createRequest is the run submission body.
type createRequest struct {
	Standard documentPayload   `json:"standard"`
	Reports  []documentPayload `json:"reports"`
}

// runView is the run representation returned to clients.
type runView struct {
	ID         string                     `json:"id"`
	Status     RunStatus                  `json:"status"`
	CreatedAt  time.Time                  `json:"created_at"`
	FinishedAt *time.Time                 `json:"finished_at,omitempty"`
	Progress   pipeline.Progress          `json:"progress"`
	Error      *errorBody                 `json:"error,omitempty"`
	Result     *matching.ComparisonResult `json:"result,omitempty"`
}

func (h *RunHandler) view(s *runState, includeResult bool) runView {
	v := runView{
		ID:        s.id,
		Status:    s.status,
		CreatedAt: s.createdAt,
		Progress:  s.progress,
	}
	if !s.finishedAt.IsZero() {
		t := s.finishedAt
		v.FinishedAt = &t
	}
	if s.err != nil {
		v.Error = &errorBody{
			Code:    errors.CodeOf(s.err).String(),
			Message: s.err.Error(),
		}
	}
	if includeResult && s.status == RunSucceeded {
		v.Result = s.result
	}
	return v
}

// Create submits a new comparison run and returns 202 with its ID. Document
// construction failures (no pages, no reports) are rejected with 400 before
// any work starts.
func (h *RunHandler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "malformed run request"))
		return
	}
	if len(req.Reports) == 0 {
		respondError(c, errors.Validation("run needs at least one report"))
		return
	}

	standard, err := document.NewDocument(document.KindStandard, req.Standard.Title, req.Standard.Pages)
	if err != nil {
		respondError(c, err)
		return
	}
	reports := make([]*document.Document, len(req.Reports))
	for i, p := range req.Reports {
		reports[i], err = document.NewDocument(document.KindReport, p.Title, p.Pages)
		if err != nil {
			respondError(c, err)
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	state := &runState{
		id:        uuid.NewString(),
		status:    RunRunning,
		createdAt: time.Now(),
		cancel:    cancel,
	}
	h.mu.Lock()
	h.runs[state.id] = state
	h.mu.Unlock()

	p := h.factory()
	events, unsub := p.Subscribe()
	go func() {
		for ev := range events {
			h.mu.Lock()
			state.progress = ev
			h.mu.Unlock()
		}
	}()

	go func() {
		defer cancel()
		result, runErr := p.Run(ctx, standard, reports)
		unsub()

		h.mu.Lock()
		defer h.mu.Unlock()
		state.finishedAt = time.Now()
		switch {
		case runErr == nil:
			state.status = RunSucceeded
			state.result = result
		case errors.IsCode(runErr, errors.ErrCodeRunCancelled):
			state.status = RunCancelled
			state.err = runErr
		default:
			state.status = RunFailed
			state.err = runErr
		}
		h.logger.Info("run finished",
			logging.String("run_id", state.id),
			logging.String("status", string(state.status)),
		)
	}()

	h.logger.Info("run submitted",
		logging.String("run_id", state.id),
		logging.Int("reports", len(reports)),
	)
	c.JSON(http.StatusAccepted, gin.H{"id": state.id, "status": RunRunning})
}

// Get returns the full state of one run, including the comparison result
// once the run has succeeded.
func (h *RunHandler) Get(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	state, ok := h.runs[c.Param("id")]
	if !ok {
		respondError(c, errors.NotFound("unknown run "+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, h.view(state, true))
}

// Progress returns the most recent progress event of one run.
func (h *RunHandler) Progress(c *gin.Context) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	state, ok := h.runs[c.Param("id")]
	if !ok {
		respondError(c, errors.NotFound("unknown run "+c.Param("id")))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       state.id,
		"status":   state.status,
		"progress": state.progress,
	})
}

// List returns run summaries, newest first. Results are omitted.
func (h *RunHandler) List(c *gin.Context) {
	h.mu.RLock()
	views := make([]runView, 0, len(h.runs))
	for _, s := range h.runs {
		views = append(views, h.view(s, false))
	}
	h.mu.RUnlock()

	sort.Slice(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	c.JSON(http.StatusOK, gin.H{"runs": views})
}

// Cancel requests cooperative cancellation of a running run. The run settles
// into the cancelled state once the pipeline observes the context.
func (h *RunHandler) Cancel(c *gin.Context) {
	h.mu.RLock()
	state, ok := h.runs[c.Param("id")]
	var status RunStatus
	if ok {
		status = state.status
	}
	h.mu.RUnlock()

	if !ok {
		respondError(c, errors.NotFound("unknown run "+c.Param("id")))
		return
	}
	if status != RunRunning {
		respondError(c, errors.New(errors.ErrCodeConflict, "run already finished"))
		return
	}

	state.cancel()
	c.JSON(http.StatusAccepted, gin.H{"id": state.id, "status": status})
}
