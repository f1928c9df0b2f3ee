package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func ok(name string) gin.HandlerFunc {
	return func(c *gin.Context) { c.String(http.StatusOK, name) }
}

func do(engine *gin.Engine, method, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func TestRouter_Defaults(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "/api/v1", r.BasePath())

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "/api/v2", r.BasePath())
}

func TestRouter_SetupMountsGroupsAndReturnsSortedRoutes(t *testing.T) {
	engine := gin.New()
	docs := NewDomainGroup("documents", "/documents").
		POST("", ok("create")).
		GET("/:id", ok("get")).
		POST("/:id/post", ok("post"))
	stock := NewDomainGroup("stock", "/stock").GET("/levels", ok("levels"))

	routes := NewRouter(engine).Register(docs, stock).Setup()

	assert.Equal(t, []RouteInfo{
		{Group: "documents", Method: http.MethodPost, Path: "/api/v1/documents"},
		{Group: "documents", Method: http.MethodGet, Path: "/api/v1/documents/:id"},
		{Group: "documents", Method: http.MethodPost, Path: "/api/v1/documents/:id/post"},
		{Group: "stock", Method: http.MethodGet, Path: "/api/v1/stock/levels"},
	}, routes)

	w := do(engine, http.MethodPost, "/api/v1/documents/abc/post")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "post", w.Body.String())
	assert.Equal(t, http.StatusNotFound, do(engine, http.MethodGet, "/documents/abc").Code)
}

func TestRouter_APIMiddlewareSkipsOtherRoutes(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", ok("health"))
	var hits int
	count := func(c *gin.Context) { hits++; c.Next() }

	NewRouter(engine, WithMiddleware(count)).
		Register(NewDomainGroup("accounts", "/accounts").GET("", ok("list"))).
		Setup()

	do(engine, http.MethodGet, "/health")
	assert.Zero(t, hits)
	do(engine, http.MethodGet, "/api/v1/accounts")
	assert.Equal(t, 1, hits)
}

func TestDomainGroup_MethodsAndSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("tax", "/tax").
		POST("/resolve", ok("resolve")).
		PUT("/x", ok("put")).
		PATCH("/x", ok("patch")).
		DELETE("/x", ok("delete"))
	g.Group("tax-rules", "/rules").GET("", ok("rules"))

	g.RegisterRoutes(engine.Group("/api"))

	for method, body := range map[string]string{
		http.MethodPut:    "put",
		http.MethodPatch:  "patch",
		http.MethodDelete: "delete",
	} {
		w := do(engine, method, "/api/tax/x")
		require.Equal(t, http.StatusOK, w.Code, method)
		assert.Equal(t, body, w.Body.String())
	}
	assert.Equal(t, "rules", do(engine, http.MethodGet, "/api/tax/rules").Body.String())

	routes := g.Routes()
	require.Len(t, routes, 5)
	assert.Equal(t, RouteInfo{Group: "tax-rules", Method: http.MethodGet, Path: "/tax/rules"}, routes[4])
	assert.Equal(t, "tax", g.Name())
	assert.Equal(t, "/tax", g.Prefix())
}

func TestDomainGroup_MiddlewareReachesSubgroups(t *testing.T) {
	engine := gin.New()
	deny := func(c *gin.Context) { c.AbortWithStatus(http.StatusForbidden) }
	g := NewDomainGroup("system", "/system").Use(deny)
	g.Group("jobs", "/jobs").GET("", ok("jobs"))

	g.RegisterRoutes(engine.Group(""))

	assert.Equal(t, http.StatusForbidden, do(engine, http.MethodGet, "/system/jobs").Code)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/api/v1", joinPath("/api/v1", ""))
	assert.Equal(t, "/api/v1/stock", joinPath("/api/v1", "/stock"))
	assert.Equal(t, "/stock/levels/", joinPath("/stock", "/levels/"))
}
