package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func etagHandler(body string, status int) http.Handler {
	return ETag(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
		}
		io.WriteString(w, body)
	}))
}

func TestETagTagsGetResponses(t *testing.T) {
	h := etagHandler("hello", http.StatusOK)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest("GET", "/", nil))

	resp := rw.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	tag := resp.Header.Get("ETag")
	if tag == "" {
		t.Fatal("no ETag header on 200 GET response")
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "hello" {
		t.Fatalf("unexpected body: %q", body)
	}

	// Same ETag in If-None-Match must produce an empty 304.
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", tag)

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	resp = rw.Result()
	if resp.StatusCode != http.StatusNotModified {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if body, _ := io.ReadAll(resp.Body); len(body) != 0 {
		t.Fatalf("304 response has a body: %q", body)
	}
}

func TestETagWeakValidator(t *testing.T) {
	h := etagHandler("hello", http.StatusOK)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest("GET", "/", nil))
	tag := rw.Result().Header.Get("ETag")

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("If-None-Match", "W/"+tag)

	rw = httptest.NewRecorder()
	h.ServeHTTP(rw, req)

	if rw.Result().StatusCode != http.StatusNotModified {
		t.Fatalf("unexpected status: %d", rw.Result().StatusCode)
	}
}

func TestETagIgnoresNon200(t *testing.T) {
	h := etagHandler("missing", http.StatusNotFound)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest("GET", "/", nil))

	resp := rw.Result()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
	if tag := resp.Header.Get("ETag"); tag != "" {
		t.Fatalf("unexpected ETag on 404: %q", tag)
	}
	if body, _ := io.ReadAll(resp.Body); string(body) != "missing" {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestETagIgnoresNonGet(t *testing.T) {
	h := etagHandler("created", http.StatusOK)

	rw := httptest.NewRecorder()
	h.ServeHTTP(rw, httptest.NewRequest("POST", "/", nil))

	if tag := rw.Result().Header.Get("ETag"); tag != "" {
		t.Fatalf("unexpected ETag on POST: %q", tag)
	}
}
