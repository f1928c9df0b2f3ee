package handler_test

import (
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/erp/posting/docs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pathParam = regexp.MustCompile(`:([a-z_]+)`)

func TestOpenAPIDocumentCoversEveryRoute(t *testing.T) {
	s := newServer(t)

	var doc struct {
		BasePath string                                `json:"basePath"`
		Paths    map[string]map[string]json.RawMessage `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc))
	assert.Equal(t, "/api/v1", doc.BasePath)

	require.NotEmpty(t, s.routes)
	for _, r := range s.routes {
		p := pathParam.ReplaceAllString(strings.TrimPrefix(r.Path, doc.BasePath), "{$1}")
		ops, ok := doc.Paths[p]
		if !assert.True(t, ok, "path %s missing", p) {
			continue
		}
		_, ok = ops[strings.ToLower(r.Method)]
		assert.True(t, ok, "%s %s missing", r.Method, p)
	}
}
