package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jrsteele09/go-token-exchange/events"
	"github.com/jrsteele09/go-token-exchange/events/eventsfake"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	sink := events.NewLogSink(&logger)

	e := events.Event{Type: events.CodeToTokenError, Time: time.Now(), RealmID: "test", ClientID: "test-app", Error: "invalid_code"}
	e.Detail(events.DetailCodeID, "abc")
	sink.Send(context.Background(), e)

	var logged map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logged))
	require.Equal(t, "CODE_TO_TOKEN_ERROR", logged["type"])
	require.Equal(t, "invalid_code", logged["error"])
	require.Equal(t, "warn", logged["level"])
	require.Equal(t, map[string]any{"code_id": "abc"}, logged["details"])
}

func TestMulti_ClonesDetails(t *testing.T) {
	a, b := eventsfake.NewRecorder(), eventsfake.NewRecorder()
	e := events.Event{Type: events.Login, RealmID: "test"}
	e.Detail(events.DetailUsername, "test-user@localhost")

	events.Multi{a, b}.Send(context.Background(), e)
	e.Detail(events.DetailUsername, "changed")

	got, ok := a.Last()
	require.True(t, ok)
	require.Equal(t, "test-user@localhost", got.Details[events.DetailUsername])
	require.Len(t, b.Events(), 1)
}
