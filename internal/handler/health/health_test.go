package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KeiJoi/ffxivbingo4all/internal/database"
	"github.com/KeiJoi/ffxivbingo4all/internal/handler/health"
	"github.com/KeiJoi/ffxivbingo4all/internal/migrations"
)

func serve(t *testing.T, checks map[string]health.Checker) (int, map[string]string) {
	t.Helper()
	h := health.NewHandler(slog.Default(), checks)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Routes().ServeHTTP(rec, req)

	var body map[string]struct{ Status string }
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	out := make(map[string]string, len(body))
	for name, r := range body {
		out[name] = r.Status
	}
	return rec.Code, out
}

func TestHandler(t *testing.T) {
	failing := health.CheckerFunc(func(context.Context) error { return errors.New("locked") })
	passing := health.CheckerFunc(func(context.Context) error { return nil })

	tests := []struct {
		name       string
		checks     map[string]health.Checker
		wantStatus int
		wantBody   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]health.Checker{"sqlite": passing, "rooms": passing},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{"sqlite": "ok", "rooms": "ok"},
		},
		{
			name:       "sqlite down",
			checks:     map[string]health.Checker{"sqlite": failing, "rooms": passing},
			wantStatus: http.StatusServiceUnavailable,
			wantBody:   map[string]string{"sqlite": "error", "rooms": "ok"},
		},
		{
			name:       "no checks",
			checks:     map[string]health.Checker{},
			wantStatus: http.StatusOK,
			wantBody:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, body := serve(t, tt.checks)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestDatabaseCheckers(t *testing.T) {
	db, err := database.Open(context.Background(), database.MemoryPath)
	require.NoError(t, err)
	defer db.Close()

	checks := map[string]health.Checker{
		"sqlite": health.DBChecker{DB: db},
		"rooms":  health.TableChecker(db, "rooms"),
	}

	status, body := serve(t, checks)
	assert.Equal(t, http.StatusServiceUnavailable, status, "rooms table is missing before migrations")
	assert.Equal(t, map[string]string{"sqlite": "ok", "rooms": "error"}, body)

	require.NoError(t, migrations.Run(db))
	status, body = serve(t, checks)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]string{"sqlite": "ok", "rooms": "ok"}, body)
}
