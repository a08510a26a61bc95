// Package health serves a readiness report built from named dependency
// checks.
package health

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// Checker verifies that an infrastructure dependency is reachable.
type Checker interface {
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// DBChecker pings a database.
type DBChecker struct {
	DB *sql.DB
}

func (c DBChecker) Check(ctx context.Context) error { return c.DB.PingContext(ctx) }

// TableChecker confirms a migrated table is queryable.
func TableChecker(db *sql.DB, table string) Checker {
	return CheckerFunc(func(ctx context.Context) error {
		var n int
		return db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	})
}

type Handler struct {
	checks map[string]Checker
	logger *slog.Logger
}

func NewHandler(logger *slog.Logger, checks map[string]Checker) *Handler {
	return &Handler{checks: checks, logger: logger}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.check)
	return r
}

type result struct {
	Status string `json:"status"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]result, len(h.checks))
	status := http.StatusOK

	for name, c := range h.checks {
		if err := c.Check(ctx); err != nil {
			h.logger.Error("health check failed", "name", name, "error", err)
			results[name] = result{Status: "error"}
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = result{Status: "ok"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(results)
}
