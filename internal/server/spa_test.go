package server

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestStaticClient(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>bingo</html>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := setupRouter(t, "", dir).router

	tests := []struct {
		path     string
		wantCode int
		wantBody string
	}{
		{"/app.js", http.StatusOK, "console.log"},
		{"/play", http.StatusOK, "bingo"},
		{"/missing.css", http.StatusNotFound, ""},
		{"/api/nope", http.StatusNotFound, "not found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := do(t, r, http.MethodGet, tt.path, nil, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantCode)
			}
			if !strings.Contains(w.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want it to contain %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestNoStaticClient(t *testing.T) {
	r := setupRouter(t, "", filepath.Join(t.TempDir(), "absent")).router
	if w := do(t, r, http.MethodGet, "/play", nil, nil); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}
