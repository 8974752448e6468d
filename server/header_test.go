package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestForceHeader(t *testing.T) {
	h := WithHeader(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ForceHeader(r.Context()).Set("X-Request-Handled", "1")
	}))

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest("GET", "/", nil))

	if got := rw.Result().Header.Get("X-Request-Handled"); got != "1" {
		t.Fatalf("got %q, want %q", got, "1")
	}
}

func TestForceHeaderWithoutMiddleware(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic without WithHeader")
		}
	}()

	ForceHeader(httptest.NewRequest("GET", "/", nil).Context())
}
