package handler

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/erp/posting/internal/domain/shared"
	"github.com/erp/posting/internal/infrastructure/scheduler"
	"github.com/erp/posting/internal/interfaces/http/dto"
	"github.com/erp/posting/internal/interfaces/http/middleware"
	"github.com/erp/posting/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
)

// Checker reports whether a dependency is reachable
type Checker interface {
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker
type CheckerFunc func(ctx context.Context) error

// Ping calls f
func (f CheckerFunc) Ping(ctx context.Context) error { return f(ctx) }

// JobRunner exposes background jobs to operators
type JobRunner interface {
	Status() []scheduler.JobStatus
	RunNow(ctx context.Context, name string) error
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// SystemHandler serves health and job endpoints
type SystemHandler struct {
	BaseHandler
	checks  map[string]Checker
	jobs    JobRunner
	timeout time.Duration
}

// NewSystemHandler creates a SystemHandler. jobs may be nil when the
// scheduler is disabled.
func NewSystemHandler(checks map[string]Checker, jobs JobRunner) *SystemHandler {
	return &SystemHandler{checks: checks, jobs: jobs, timeout: 2 * time.Second}
}

// Routes returns the job routes mounted under the API prefix. Health is
// registered on the engine root by the server.
func (h *SystemHandler) Routes() *router.DomainGroup {
	return router.NewDomainGroup("system", "/system").
		GET("/jobs", h.ListJobs).
		POST("/jobs/:name/run", h.RunJob)
}

// Health godoc
// @ID           health
// @Summary      Report service health
// @Tags         system
// @Produce      json
// @Success      200 {object} HealthResponse
// @Failure      503 {object} dto.Response
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(map[string]string, len(names))
	var failed []string
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			results[name] = err.Error()
			failed = append(failed, name)
			continue
		}
		results[name] = "ok"
	}
	if len(failed) > 0 {
		c.Set(middleware.ErrorCodeKey, dto.ErrCodeUnavailable)
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.Response{
			Success: false,
			Data:    HealthResponse{Status: "unhealthy", Checks: results},
			Error: &dto.ErrorInfo{
				Code:    dto.ErrCodeUnavailable,
				Message: "unhealthy: " + failed[0],
			},
		})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy", Checks: results})
}

// ListJobs godoc
// @ID           listJobs
// @Summary      List background jobs and their last run
// @Tags         system
// @Produce      json
// @Success      200 {object} dto.Response{data=[]scheduler.JobStatus}
// @Router       /system/jobs [get]
func (h *SystemHandler) ListJobs(c *gin.Context) {
	if h.jobs == nil {
		h.Success(c, []scheduler.JobStatus{})
		return
	}
	h.Success(c, h.jobs.Status())
}

// RunJob godoc
// @ID           runJob
// @Summary      Run a background job now
// @Tags         system
// @Produce      json
// @Param        name path string true "Job name"
// @Success      200 {object} dto.Response{data=scheduler.JobStatus}
// @Failure      404 {object} dto.Response
// @Failure      409 {object} dto.Response
// @Router       /system/jobs/{name}/run [post]
func (h *SystemHandler) RunJob(c *gin.Context) {
	name := c.Param("name")
	if h.jobs == nil {
		h.Error(c, http.StatusNotFound, shared.ErrNotFound.Code, "job not found: "+name)
		return
	}
	err := h.jobs.RunNow(c.Request.Context(), name)
	switch {
	case errors.Is(err, scheduler.ErrJobNotFound):
		h.Error(c, http.StatusNotFound, shared.ErrNotFound.Code, "job not found: "+name)
		return
	case errors.Is(err, scheduler.ErrJobAlreadyRunning):
		h.Error(c, http.StatusConflict, shared.ErrConcurrencyConflict.Code, "job already running: "+name)
		return
	}
	for _, st := range h.jobs.Status() {
		if st.Name == name {
			if err != nil {
				st.LastError = err.Error()
			}
			h.Success(c, st)
			return
		}
	}
	h.Success(c, scheduler.JobStatus{Name: name})
}
