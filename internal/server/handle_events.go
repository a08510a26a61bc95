package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

// handleEvents streams a room's public events to read-only overlays.
func handleEvents(logger *slog.Logger, st store.Store, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		flusher, ok := w.(http.Flusher)
		if !ok {
			writeError(w, http.StatusInternalServerError, "streaming not supported")
			return
		}

		// Subscribe before loading so no event published after the load is lost.
		ch := broker.Subscribe(code)
		defer broker.Unsubscribe(code, ch)

		room, err := st.LoadRoom(r.Context(), code)
		if err != nil {
			writeDomainError(w, logger, err)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		initial, _ := json.Marshal(realtime.PublicState(room))
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", realtime.TypeRoomState, initial)
		flusher.Flush()

		ping := time.NewTicker(30 * time.Second)
		defer ping.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case msg := <-ch:
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.event, msg.data)
				flusher.Flush()
				if msg.event == realtime.TypeRoomClosed {
					return
				}
			case <-ping.C:
				fmt.Fprintf(w, ": ping\n\n")
				flusher.Flush()
			}
		}
	}
}
