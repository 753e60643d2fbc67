package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		format  string
		wantErr bool
	}{
		{name: "text info", level: "info", format: "text"},
		{name: "json debug", level: "debug", format: "json"},
		{name: "upper level", level: "WARN", format: "text"},
		{name: "bad level", level: "loud", format: "text", wantErr: true},
		{name: "bad format", level: "info", format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(&bytes.Buffer{}, tt.level, tt.format)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, logger)
		})
	}
}

func TestNewLogger_FiltersLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn", "text")
	require.NoError(t, err)

	logger.Info("hidden")
	assert.Empty(t, buf.String())
	logger.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestRequestContext_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rc := NewRequestContextWithID(logger, "req-1", "sess-1")
	rc.Info("routed")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line[LogFieldRequestID])
	assert.Equal(t, "sess-1", line[LogFieldSessionID])
	assert.NotContains(t, line, LogFieldSkill)

	buf.Reset()
	rc.SetSkill("sales_analyst")
	rc.Error("tool failed", errors.New("boom"), slog.String(LogFieldTool, "query_sales_data"))
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "sales_analyst", line[LogFieldSkill])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "query_sales_data", line[LogFieldTool])
}

func TestRequestContext_GeneratesID(t *testing.T) {
	a := NewRequestContext(nil, "s")
	b := NewRequestContext(nil, "s")
	assert.Len(t, a.RequestID, 36)
	assert.NotEqual(t, a.RequestID, b.RequestID)
	assert.GreaterOrEqual(t, a.DurationMs(), int64(0))
}

func TestRequestContext_InContext(t *testing.T) {
	rc := NewRequestContext(nil, "s")
	ctx := WithRequestContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Same(t, rc, got)

	_, ok = FromContext(context.Background())
	assert.False(t, ok)
}
