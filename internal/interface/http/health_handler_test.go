package httpapi

import (
	"net/http"
	"testing"
)

func TestHealthHandler(t *testing.T) {
	server := newTestServer(t)

	t.Run("Ping", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/ping", "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		if resp := decode(t, w); resp["message"] != "pong" {
			t.Errorf("expected pong, got %v", resp["message"])
		}
	})

	t.Run("Health", func(t *testing.T) {
		w := doJSON(server, http.MethodGet, "/api/health", "", nil)
		if w.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", w.Code)
		}
		resp := decode(t, w)
		if resp["health"] != "ok" {
			t.Errorf("expected ok, got %v", resp["health"])
		}
		if resp["db"] != "using_memory" || resp["source"] != "memory" {
			t.Errorf("expected memory source, got db=%v source=%v", resp["db"], resp["source"])
		}
	})
}
