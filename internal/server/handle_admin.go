package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

func handleAdminListRooms(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := st.ListRooms(r.Context())
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}

func handleAdminDeleteRoom(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		if err := svc.AdminCloseRoom(r.Context(), code); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		logger.Info("admin closed room", "room", code)
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}
