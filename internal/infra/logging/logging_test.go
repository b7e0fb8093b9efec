//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-billing/internal/config"
)

func TestWith_AddsCorrelationIDs(t *testing.T) {
	var buf bytes.Buffer
	base := NewTo(&buf, config.LogConfig{Level: "info", Format: "json"}, false)

	ctx := WithRunID(WithEventID(WithRequestID(context.Background(), "req-1"), "evt_1"), "run-1")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "evt_1", line["event_id"])
	assert.Equal(t, "run-1", line["run_id"])
}

func TestNew_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := NewTo(&buf, config.LogConfig{Level: "loud", Format: "json"}, false)
	l.Debug().Msg("dropped")
	l.Info().Msg("kept")
	assert.NotContains(t, buf.String(), "dropped")
	assert.Contains(t, buf.String(), "kept")
}
