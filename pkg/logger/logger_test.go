package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/order-refunds/pkg/errors"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestErrorCarriesRefundIdentifiers(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: "json"})

	ctx := log.WithRequestID(context.Background(), "req-123")
	ctx = log.WithOrderID(ctx, 42)
	ctx = log.WithRefundID(ctx, 7)
	log.Error(ctx, "refund save failed", errors.New("connection reset"))

	entry := lastLine(t, buf)
	assert.Equal(t, "req-123", entry["request_id"])
	assert.EqualValues(t, 42, entry["order_id"])
	assert.EqualValues(t, 7, entry["refund_id"])
	assert.Equal(t, "connection reset", entry["error"])
	assert.Equal(t, "api", entry["service"])
	assert.Contains(t, entry, "stack")
}

func TestErrorStackDependsOnCode(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{ServiceName: "api", Output: buf, Format: "json"})

	log.Error(context.Background(), "refund rejected", pkgerrors.New(pkgerrors.CodeValidation, "total exceeds refundable"))
	entry := lastLine(t, buf)
	assert.Equal(t, string(pkgerrors.CodeValidation), entry["error_code"])
	assert.NotContains(t, entry, "stack")

	log.Error(context.Background(), "gateway down", pkgerrors.New(pkgerrors.CodeDependency, "square unavailable"))
	entry = lastLine(t, buf)
	assert.Equal(t, string(pkgerrors.CodeDependency), entry["error_code"])
	assert.Contains(t, entry, "stack")
}

func TestWarnStackToggle(t *testing.T) {
	buf := &bytes.Buffer{}
	New(Options{Output: buf, Format: "json", WarnStack: true}).Warn(context.Background(), "restock skipped")
	assert.Contains(t, lastLine(t, buf), "stack")

	buf.Reset()
	New(Options{Output: buf, Format: "json"}).Warn(context.Background(), "restock skipped")
	assert.NotContains(t, lastLine(t, buf), "stack")
}

func TestFieldsStayOnDerivedContexts(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Format: "json", Static: map[string]any{"instance": "api-1"}})

	base := context.Background()
	_ = log.WithRefundID(base, 7)
	log.Info(base, "plain")

	entry := lastLine(t, buf)
	assert.NotContains(t, entry, "refund_id")
	assert.Equal(t, "api-1", entry["instance"])
}

func TestLevelFiltering(t *testing.T) {
	buf := &bytes.Buffer{}
	log := New(Options{Output: buf, Format: "json", Level: zerolog.WarnLevel})
	log.Debug(context.Background(), "debug")
	log.Info(context.Background(), "info")
	assert.Empty(t, buf.String())

	log = New(Options{Output: buf, Format: "json", Level: ParseLevel("debug")})
	log.Debug(context.Background(), "debug")
	assert.Equal(t, "debug", lastLine(t, buf)["level"])
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("invalid"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" WARN "))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
}
