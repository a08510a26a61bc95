package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

// HostSyncRequest is the full state the host plugin pushes.
type HostSyncRequest struct {
	RoomCode      string                      `json:"roomCode"`
	RoomKey       string                      `json:"roomKey"`
	CalledNumbers []int                       `json:"calledNumbers"`
	IssuedCards   map[string]bingo.IssuedCard `json:"issuedCards"`
	Config        bingo.Config                `json:"config"`
}

type HostSyncResponse struct {
	OK            bool         `json:"ok"`
	CalledNumbers []int        `json:"calledNumbers"`
	Enforced      bool         `json:"enforced"`
	Payout        bingo.Payout `json:"payout"`
}

type CallNumberRequest struct {
	RoomCode string `json:"roomCode"`
	RoomKey  string `json:"roomKey"`
	Number   int    `json:"number"`
}

type CallNumberResponse struct {
	OK            bool  `json:"ok"`
	Added         bool  `json:"added"`
	CalledNumbers []int `json:"calledNumbers"`
}

type ResetRequest struct {
	RoomKey string `json:"roomKey"`
	Variant string `json:"variant"`
}

type OKResponse struct {
	OK bool `json:"ok"`
}

func handleHostSync(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req HostSyncRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.RoomCode = strings.TrimSpace(req.RoomCode)
		if req.RoomCode == "" {
			writeError(w, http.StatusBadRequest, "roomCode required")
			return
		}

		room, err := svc.HostSync(r.Context(), req.RoomCode, roomKeyFrom(r, req.RoomKey), store.HostState{
			CalledNumbers: req.CalledNumbers,
			IssuedCards:   req.IssuedCards,
			Config:        req.Config,
		})
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, HostSyncResponse{
			OK:            true,
			CalledNumbers: room.CalledNumbers,
			Enforced:      room.Enforced(),
			Payout:        room.Payout(),
		})
	}
}

func handleCallNumber(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CallNumberRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.RoomCode = strings.TrimSpace(req.RoomCode)
		if req.RoomCode == "" {
			writeError(w, http.StatusBadRequest, "roomCode required")
			return
		}

		added, called, err := svc.CallNumber(r.Context(), req.RoomCode, roomKeyFrom(r, req.RoomKey), req.Number)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		writeJSON(w, http.StatusOK, CallNumberResponse{OK: true, Added: added, CalledNumbers: called})
	}
}

func handleRoomState(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")
		seed := r.URL.Query().Get("seed")

		snap, err := svc.Snapshot(r.Context(), code, seed, r.Header.Get(headerRoomKey))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func handleResetRoom(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResetRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		variant, err := bingo.ParseResetVariant(req.Variant)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		room, err := svc.Reset(r.Context(), chi.URLParam(r, "code"), roomKeyFrom(r, req.RoomKey), variant)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, realtime.PublicState(room))
	}
}

func handleCloseRoom(logger *slog.Logger, svc *realtime.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(headerRoomKey)
		if key == "" {
			writeError(w, http.StatusBadRequest, headerRoomKey+" header required")
			return
		}
		if err := svc.CloseRoom(r.Context(), chi.URLParam(r, "code"), key); err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, OKResponse{OK: true})
	}
}

func handleListRooms(logger *slog.Logger, st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms, err := st.ListRoomsByKey(r.Context(), r.Header.Get(headerRoomKey))
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, rooms)
	}
}
