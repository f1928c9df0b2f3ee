package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/erp/posting/internal/infrastructure/scheduler"
	"github.com/erp/posting/internal/interfaces/http/handler"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockJobs struct{ mock.Mock }

func (m *mockJobs) Status() []scheduler.JobStatus {
	return m.Called().Get(0).([]scheduler.JobStatus)
}

func (m *mockJobs) RunNow(ctx context.Context, name string) error {
	return m.Called(ctx, name).Error(0)
}

func systemEngine(checks map[string]handler.Checker, jobs handler.JobRunner) *gin.Engine {
	h := handler.NewSystemHandler(checks, jobs)
	g := gin.New()
	g.GET("/health", h.Health)
	h.Routes().RegisterRoutes(g.Group("/api/v1"))
	return g
}

func TestSystem_Health(t *testing.T) {
	healthy := handler.CheckerFunc(func(context.Context) error { return nil })
	down := handler.CheckerFunc(func(context.Context) error { return errors.New("connection refused") })

	w, _ := serve(t, systemEngine(map[string]handler.Checker{"database": healthy}, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"healthy"`)

	w, env := serve(t, systemEngine(map[string]handler.Checker{"database": healthy, "redis": down}, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "SERVICE_UNAVAILABLE", env.Error.Code)
	assert.Contains(t, env.Error.Message, "redis")
}

func TestSystem_Jobs(t *testing.T) {
	jobs := &mockJobs{}
	jobs.On("Status").Return([]scheduler.JobStatus{{Name: "ledger-audit", Schedule: "0 3 * * *", Runs: 1}})
	jobs.On("RunNow", mock.Anything, "ledger-audit").Return(nil).Once()
	jobs.On("RunNow", mock.Anything, "missing").Return(scheduler.ErrJobNotFound)
	jobs.On("RunNow", mock.Anything, "batch-expiry").Return(scheduler.ErrJobAlreadyRunning)
	engine := systemEngine(nil, jobs)

	w, env := serve(t, engine, http.MethodGet, "/api/v1/system/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []scheduler.JobStatus
	decode(t, env, &list)
	require.Len(t, list, 1)

	w, env = serve(t, engine, http.MethodPost, "/api/v1/system/jobs/ledger-audit/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st scheduler.JobStatus
	decode(t, env, &st)
	assert.Equal(t, "ledger-audit", st.Name)

	w, env = serve(t, engine, http.MethodPost, "/api/v1/system/jobs/missing/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	w, env = serve(t, engine, http.MethodPost, "/api/v1/system/jobs/batch-expiry/run", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONCURRENCY_CONFLICT", env.Error.Code)

	jobs.AssertExpectations(t)
}

func TestSystem_JobsWithoutScheduler(t *testing.T) {
	engine := systemEngine(nil, nil)

	w, _ := serve(t, engine, http.MethodGet, "/api/v1/system/jobs", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = serve(t, engine, http.MethodPost, "/api/v1/system/jobs/ledger-audit/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
