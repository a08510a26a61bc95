package server

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/KeiJoi/ffxivbingo4all/internal/bingo"
	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

type sseEvent struct {
	name string
	data string
}

func readEvent(t *testing.T, sc *bufio.Scanner) sseEvent {
	t.Helper()
	var ev sseEvent
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if ev.name != "" {
				return ev
			}
		case strings.HasPrefix(line, "event: "):
			ev.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			ev.data = strings.TrimPrefix(line, "data: ")
		}
	}
	t.Fatalf("stream ended: %v", sc.Err())
	return ev
}

func TestEventsStream(t *testing.T) {
	env := setupRouter(t, "", "")
	hostSync(t, env.router, map[string]bingo.IssuedCard{"alpha": {OwnerName: "Ann", CardCount: 1}})

	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/rooms/ROOM1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}
	sc := bufio.NewScanner(resp.Body)

	first := readEvent(t, sc)
	if first.name != realtime.TypeRoomState {
		t.Fatalf("first event = %q, want %q", first.name, realtime.TypeRoomState)
	}
	var state realtime.RoomState
	if err := json.Unmarshal([]byte(first.data), &state); err != nil {
		t.Fatalf("decoding room_state: %v", err)
	}
	if !state.Enforced || state.IssuedCards != nil || len(state.Players) != 1 {
		t.Errorf("public state: got %+v", state)
	}

	if n := env.deps.Broker.Subscribers("ROOM1"); n != 1 {
		t.Fatalf("subscribers = %d, want 1", n)
	}

	do(t, env.router, http.MethodPost, "/api/call-number", CallNumberRequest{RoomCode: "ROOM1", RoomKey: testRoomKey, Number: 12}, nil)
	ev := readEvent(t, sc)
	if ev.name != realtime.TypeNumberCalled {
		t.Fatalf("event = %q, want %q", ev.name, realtime.TypeNumberCalled)
	}
	var called realtime.NumberCalled
	if err := json.Unmarshal([]byte(ev.data), &called); err != nil {
		t.Fatalf("decoding number_called: %v", err)
	}
	if called.Number != 12 {
		t.Errorf("number = %d, want 12", called.Number)
	}

	do(t, env.router, http.MethodDelete, "/api/rooms/ROOM1", nil, map[string]string{headerRoomKey: testRoomKey})
	if ev := readEvent(t, sc); ev.name != realtime.TypeRoomClosed {
		t.Fatalf("event = %q, want %q", ev.name, realtime.TypeRoomClosed)
	}
}

func TestEventsUnknownRoom(t *testing.T) {
	env := setupRouter(t, "", "")
	if w := do(t, env.router, http.MethodGet, "/api/rooms/NOPE/events", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if n := env.deps.Broker.Subscribers("NOPE"); n != 0 {
		t.Errorf("subscribers after 404 = %d, want 0", n)
	}
}

// racingStore publishes an event while the room is being loaded, the way a
// number called by another request can land between subscribe and load.
type racingStore struct {
	store.Store
	broker *Broker
}

func (s racingStore) LoadRoom(ctx context.Context, code string) (*bingo.Room, error) {
	room, err := s.Store.LoadRoom(ctx, code)
	s.broker.Publish(code, realtime.TypeNumberCalled, realtime.NumberCalled{RoomCode: code, Number: 33})
	return room, err
}

func TestEventsKeepsEventsPublishedDuringLoad(t *testing.T) {
	env := setupRouter(t, "", "")
	hostSync(t, env.router, map[string]bingo.IssuedCard{"alpha": {CardCount: 1}})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := chi.NewRouter()
	r.Get("/api/rooms/{code}/events", handleEvents(logger, racingStore{env.deps.Store, env.deps.Broker}, env.deps.Broker))
	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/rooms/ROOM1/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("opening stream: %v", err)
	}
	defer resp.Body.Close()
	sc := bufio.NewScanner(resp.Body)

	if ev := readEvent(t, sc); ev.name != realtime.TypeRoomState {
		t.Fatalf("first event = %q, want %q", ev.name, realtime.TypeRoomState)
	}
	ev := readEvent(t, sc)
	if ev.name != realtime.TypeNumberCalled || !strings.Contains(ev.data, `"number":33`) {
		t.Fatalf("event = %q %s, want number_called 33", ev.name, ev.data)
	}
}
