package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerCarriesContextFields(t *testing.T) {
	var buf bytes.Buffer
	logg := New(Options{ServiceName: "store-api", Level: zerolog.InfoLevel, Output: &buf})

	ctx := logg.WithUserID(context.Background(), "user-1")
	ctx = logg.WithOrderID(ctx, "order-9")
	logg.Error(ctx, "checkout failed", errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "store-api", entry["service"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "order-9", entry["order_id"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "checkout failed", entry["message"])
}

func TestParseLevelFallsBackToInfo(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
}

func TestNopDiscards(t *testing.T) {
	logg := Nop()
	logg.Info(context.Background(), "nothing")
	logg.Error(context.Background(), "still nothing", nil)
}
