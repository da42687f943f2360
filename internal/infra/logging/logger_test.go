package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	context_ "github.com/mkrupp/kbchat/internal/infra/context"
	"github.com/mkrupp/kbchat/internal/infra/logging"
)

func TestConsoleHandler_PkgLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		logger    string
		pkgLevels map[string]slog.Level
		level     slog.Level
		wantOut   bool
	}{
		{
			name:    "global level passes info",
			logger:  "svc.gatesvc.http_transport",
			level:   slog.LevelInfo,
			wantOut: true,
		},
		{
			name:    "global level drops debug",
			logger:  "svc.gatesvc.http_transport",
			level:   slog.LevelDebug,
			wantOut: false,
		},
		{
			name:      "package filter lowers level",
			logger:    "svc.gatesvc.http_transport",
			pkgLevels: map[string]slog.Level{"svc.gatesvc": slog.LevelDebug},
			level:     slog.LevelDebug,
			wantOut:   true,
		},
		{
			name:      "package filter raises level",
			logger:    "repo.user.sqlite_user_repository",
			pkgLevels: map[string]slog.Level{"repo": slog.LevelError},
			level:     slog.LevelWarn,
			wantOut:   false,
		},
		{
			name:   "most specific filter wins",
			logger: "repo.user.sqlite_user_repository",
			pkgLevels: map[string]slog.Level{
				"repo":      slog.LevelError,
				"repo.user": slog.LevelDebug,
			},
			level:   slog.LevelDebug,
			wantOut: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			handler := logging.NewConsoleHandler(&buf, slog.LevelInfo, tt.pkgLevels)
			log := slog.New(handler).With("logger", tt.logger)

			log.Log(context.Background(), tt.level, "hello", "key", "value")

			if tt.wantOut {
				assert.Contains(t, buf.String(), "hello")
				assert.Contains(t, buf.String(), "key=")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestConsoleHandler_Groups(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(logging.NewConsoleHandler(&buf, slog.LevelDebug, nil))
	log.Info("msg", logging.Group("user", "username", "alice"))

	assert.Contains(t, buf.String(), "user.username=")
	assert.Contains(t, buf.String(), "alice")
}

func TestTracingHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(logging.NewTracingHandler(slog.NewJSONHandler(&buf, nil)))

	ctx := context_.WithTraceID(context.Background(), "trace-1")
	ctx = context_.WithUsername(ctx, "alice")

	log.InfoContext(ctx, "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.Equal(t, map[string]any{"id": "trace-1"}, record["trace"])
	assert.Equal(t, map[string]any{"username": "alice"}, record["session"])
}

func TestTracingHandler_NoContextValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log := slog.New(logging.NewTracingHandler(slog.NewJSONHandler(&buf, nil)))
	log.InfoContext(context.Background(), "hello")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))

	assert.NotContains(t, record, "trace")
	assert.NotContains(t, record, "session")
}

func TestNopLogger(t *testing.T) {
	t.Parallel()

	log := logging.NewNopLogger()
	require.NotNil(t, log)
	log.Error("discarded")
}
