package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "erp-posting"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.ErrorContains(t, err, "application name")
}

func TestProfileTypes(t *testing.T) {
	base := (&Profiler{}).profileTypes()
	withContention := (&Profiler{config: ProfilerConfig{ProfileMutex: true, ProfileBlock: true}}).profileTypes()

	assert.Len(t, base, 6)
	assert.Len(t, withContention, 10)
}

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Document-Type": "SALES_INVOICE",
		"operation":     "post",
		"document_id":   "9c1d",
		"route":         "",
		"":              "x",
		"method":        strings.Repeat("A", MaxLabelValueLength+10),
	})

	require.Len(t, pairs, 6)
	assert.Equal(t, "document_type", pairs[0])
	assert.Equal(t, "SALES_INVOICE", pairs[1])
	assert.Equal(t, "method", pairs[2])
	assert.Len(t, pairs[3], MaxLabelValueLength)
	assert.Equal(t, []string{"operation", "post"}, pairs[4:])
}

func TestSanitizeLabelKey(t *testing.T) {
	assert.Equal(t, "stock_key", sanitizeLabelKey("Stock Key"))
	assert.Equal(t, "warehouse_1", sanitizeLabelKey("warehouse-1!"))
	assert.Equal(t, "", sanitizeLabelKey("%%"))
}

func TestWithProfilingLabels(t *testing.T) {
	var got map[string]string
	WithProfilingLabels(context.Background(), PostingLabels("post", "GOODS_RECEIPT"), func(ctx context.Context) {
		got = map[string]string{}
		pprof.ForLabels(ctx, func(k, v string) bool {
			got[k] = v
			return true
		})
	})
	assert.Equal(t, map[string]string{"operation": "post", "document_type": "GOODS_RECEIPT"}, got)

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)
}

func TestHTTPRequestLabels(t *testing.T) {
	assert.Equal(t, map[string]string{"route": "/api/v1/documents/:id/post", "method": "POST"},
		HTTPRequestLabels("/api/v1/documents/:id/post", "POST"))
}
