package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/KeiJoi/ffxivbingo4all/internal/realtime"
	"github.com/KeiJoi/ffxivbingo4all/internal/store"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps check names to their status.
type HealthResponse map[string]struct {
	Status string `json:"status" enum:"ok,error"`
}

type roomPath struct {
	Code string `path:"code"`
}

type roomStateParams struct {
	Code    string `path:"code"`
	Seed    string `query:"seed" description:"Issued seed held by the player."`
	RoomKey string `header:"X-Room-Key" description:"Room key; grants the host view."`
}

type roomKeyHeader struct {
	RoomKey string `header:"X-Room-Key" required:"true"`
}

type closeRoomParams struct {
	Code    string `path:"code"`
	RoomKey string `header:"X-Room-Key" required:"true"`
}

type resetParams struct {
	Code string `path:"code"`
	ResetRequest
}

type adminRoomParams struct {
	Code     string `path:"code"`
	AdminKey string `header:"X-Admin-Key" required:"true"`
}

type adminKeyHeader struct {
	AdminKey string `header:"X-Admin-Key" required:"true"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "FFXIV Bingo API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Room state and realtime synchronization for multi-party bingo.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// GET /ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws")
	getWS.SetSummary("Realtime synchronization")
	getWS.SetDescription("Upgrades to a WebSocket speaking {type, data} envelopes: join, daub_update, call_bingo, call_number.")
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	// POST /api/host-sync
	postHostSync, _ := r.NewOperationContext(http.MethodPost, "/api/host-sync")
	postHostSync.SetSummary("Host sync")
	postHostSync.SetDescription("Replaces called numbers, issued cards and configuration with the host's copy. Creates the room on first use.")
	postHostSync.AddReqStructure(HostSyncRequest{})
	postHostSync.AddRespStructure(HostSyncResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postHostSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postHostSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postHostSync.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postHostSync)

	// POST /api/call-number
	postCall, _ := r.NewOperationContext(http.MethodPost, "/api/call-number")
	postCall.SetSummary("Call a number")
	postCall.SetDescription("Appends a number from 1 to 75. Repeated calls succeed with added=false.")
	postCall.AddReqStructure(CallNumberRequest{})
	postCall.AddRespStructure(CallNumberResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCall.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postCall.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postCall.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(postCall)

	// GET /api/rooms
	listRooms, _ := r.NewOperationContext(http.MethodGet, "/api/rooms")
	listRooms.SetSummary("List my rooms")
	listRooms.SetDescription("Lists rooms created under the room key.")
	listRooms.AddReqStructure(roomKeyHeader{})
	listRooms.AddRespStructure([]store.RoomSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	listRooms.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(listRooms)

	// GET /api/rooms/{code}/state
	getState, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/state")
	getState.SetSummary("Room snapshot")
	getState.SetDescription("Returns the join snapshot. In enforced rooms the seed must be issued.")
	getState.AddReqStructure(roomStateParams{})
	getState.AddRespStructure(realtime.Snapshot{}, openapi.WithHTTPStatus(http.StatusOK))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	getState.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getState)

	// GET /api/rooms/{code}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/rooms/{code}/events")
	getEvents.SetSummary("Spectator event stream")
	getEvents.SetDescription("Server-Sent Events: room_state, number_called, bingo_called, room_closed.")
	getEvents.AddReqStructure(roomPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	getEvents.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getEvents)

	// POST /api/rooms/{code}/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/rooms/{code}/reset")
	postReset.SetSummary("Reset room")
	postReset.SetDescription("Clears called numbers, issued cards, marks and wins. Variant full also clears the configuration.")
	postReset.AddReqStructure(resetParams{})
	postReset.AddRespStructure(realtime.RoomState{}, openapi.WithHTTPStatus(http.StatusOK))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(postReset)

	// DELETE /api/rooms/{code}
	deleteRoom, _ := r.NewOperationContext(http.MethodDelete, "/api/rooms/{code}")
	deleteRoom.SetSummary("Close room")
	deleteRoom.SetDescription("Deletes the room and detaches its connections.")
	deleteRoom.AddReqStructure(closeRoomParams{})
	deleteRoom.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	deleteRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	deleteRoom.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteRoom)

	// GET /api/admin/rooms
	adminList, _ := r.NewOperationContext(http.MethodGet, "/api/admin/rooms")
	adminList.SetSummary("List all rooms")
	adminList.AddReqStructure(adminKeyHeader{})
	adminList.AddRespStructure([]store.RoomSummary{}, openapi.WithHTTPStatus(http.StatusOK))
	adminList.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(adminList)

	// DELETE /api/admin/rooms/{code}
	adminDelete, _ := r.NewOperationContext(http.MethodDelete, "/api/admin/rooms/{code}")
	adminDelete.SetSummary("Delete any room")
	adminDelete.AddReqStructure(adminRoomParams{})
	adminDelete.AddRespStructure(OKResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	adminDelete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	adminDelete.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(adminDelete)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
