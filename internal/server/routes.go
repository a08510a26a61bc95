package server

import (
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/KeiJoi/ffxivbingo4all/internal/handler/health"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("FFXIV Bingo API", "/openapi.json", "/docs"))
	r.Mount("/healthz", health.NewHandler(logger, map[string]health.Checker{
		"sqlite": health.DBChecker{DB: deps.DB},
		"rooms":  health.TableChecker(deps.DB, "rooms"),
	}).Routes())

	r.Handle("/ws", deps.Sync.Handler(deps.AllowedOrigins))

	// Host plugin and browser client.
	r.Post("/api/host-sync", handleHostSync(logger, deps.Sync))
	r.Post("/api/call-number", handleCallNumber(logger, deps.Sync))
	r.Get("/api/rooms", handleListRooms(logger, deps.Store))
	r.Route("/api/rooms/{code}", func(r chi.Router) {
		r.Get("/state", handleRoomState(logger, deps.Sync))
		r.Get("/events", handleEvents(logger, deps.Store, deps.Broker))
		r.Post("/reset", handleResetRoom(logger, deps.Sync))
		r.Delete("/", handleCloseRoom(logger, deps.Sync))
	})

	// Operator endpoints, shared admin key.
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(adminKeyMiddleware(deps.AdminKey))
		r.Get("/rooms", handleAdminListRooms(logger, deps.Store))
		r.Delete("/rooms/{code}", handleAdminDeleteRoom(logger, deps.Sync))
	})

	if deps.PublicDir != "" {
		if info, err := os.Stat(deps.PublicDir); err == nil && info.IsDir() {
			logger.Info("serving browser client", "dir", deps.PublicDir)
			r.NotFound(handleStatic(deps.PublicDir))
		}
	}
}
