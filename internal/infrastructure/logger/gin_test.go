package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRouter(log *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("request_id", "req-42")
		c.Next()
	})
	r.Use(Recovery(log), GinMiddleware(log))
	return r
}

func TestGinMiddleware(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))

	var handlerRequestID string
	r.GET("/api/v1/stock/levels", func(c *gin.Context) {
		handlerRequestID = GetRequestID(c.Request.Context())
		L(c.Request.Context()).Info("listing levels")
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stock/levels?warehouse_id=w1", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", handlerRequestID)
	require.Equal(t, 2, recorded.Len())

	handlerLog := recorded.All()[0]
	assert.Equal(t, "req-42", handlerLog.ContextMap()["request_id"])

	reqLog := recorded.All()[1]
	assert.Equal(t, "HTTP request", reqLog.Message)
	assert.Equal(t, zapcore.InfoLevel, reqLog.Level)
	fields := reqLog.ContextMap()
	assert.Equal(t, "/api/v1/stock/levels", fields["route"])
	assert.Equal(t, "warehouse_id=w1", fields["query"])
	assert.Equal(t, int64(http.StatusOK), fields["status"])
}

func TestGinMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		want   zapcore.Level
	}{
		{http.StatusUnprocessableEntity, zapcore.WarnLevel},
		{http.StatusGatewayTimeout, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		core, recorded := observer.New(zapcore.InfoLevel)
		r := newTestRouter(zap.New(core))
		r.POST("/post", func(c *gin.Context) { c.Status(tt.status) })

		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/post", nil))

		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, tt.want, recorded.All()[0].Level)
	}
}

func TestRecovery(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	r := newTestRouter(zap.New(core))
	r.GET("/panic", func(*gin.Context) { panic("ledger corrupted") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`, w.Body.String())

	panics := recorded.FilterMessage("Panic recovered").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "req-42", panics[0].ContextMap()["request_id"])
}

func TestGetGinLogger_Missing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.NotNil(t, GetGinLogger(c))
}
