package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandleOpenAPI(t *testing.T) {
	h := handleOpenAPI()
	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()

	h(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content-type = %q, want application/json", got)
	}

	var doc struct {
		OpenAPI string                    `json:"openapi"`
		Paths   map[string]map[string]any `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("decoding spec: %v", err)
	}
	if !strings.HasPrefix(doc.OpenAPI, "3.") {
		t.Errorf("openapi = %q, want 3.x", doc.OpenAPI)
	}

	want := map[string]string{
		"/healthz":                 "get",
		"/ws":                      "get",
		"/api/host-sync":           "post",
		"/api/call-number":         "post",
		"/api/rooms":               "get",
		"/api/rooms/{code}/state":  "get",
		"/api/rooms/{code}/events": "get",
		"/api/rooms/{code}/reset":  "post",
		"/api/rooms/{code}":        "delete",
		"/api/admin/rooms":         "get",
		"/api/admin/rooms/{code}":  "delete",
	}
	for path, method := range want {
		if _, ok := doc.Paths[path][method]; !ok {
			t.Errorf("spec missing %s %s", strings.ToUpper(method), path)
		}
	}
}

func TestDocsMounted(t *testing.T) {
	r := setupRouter(t, "", "").router

	w := do(t, r, http.MethodGet, "/docs", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	w = do(t, r, http.MethodGet, "/openapi.json", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("openapi via router: status = %d", w.Code)
	}
}
