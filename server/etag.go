package server

import (
	"crypto/md5"
	"fmt"
	"hash"
	"net/http"
	"strings"
)

// eTagWriter buffers 200 OK responses to GETs and calculates an ETag
// as md5(body). If the client passed the same ETag in `If-None-Match`,
// the buffered body is discarded and the response becomes 304 Not
// Modified with an empty body.
type eTagWriter struct {
	http.ResponseWriter
	request *http.Request
	code    int
	hash    hash.Hash
	data    []byte
}

func newETagWriter(w http.ResponseWriter, r *http.Request) *eTagWriter {
	return &eTagWriter{
		ResponseWriter: w,
		request:        r,
		code:           http.StatusOK,
		hash:           md5.New(),
		data:           []byte{},
	}
}

func (w *eTagWriter) Write(data []byte) (int, error) {
	w.data = append(w.data, data...)
	w.hash.Write(data)
	return len(data), nil
}

func (w *eTagWriter) eTag() string {
	return fmt.Sprintf("\"%x\"", w.hash.Sum(nil))
}

func (w *eTagWriter) end() {
	wr := w.ResponseWriter
	_, tagged := w.Header()["ETag"]
	if !tagged && w.code == http.StatusOK {
		respTag := w.eTag()
		w.Header().Set("ETag", respTag)

		reqTag := w.request.Header.Get("If-None-Match")

		// Ignore/strip weak validator mark (`W/<ETag>`)
		reqTag = strings.TrimPrefix(reqTag, "W/")

		if len(reqTag) > 0 && reqTag == respTag {
			wr.WriteHeader(http.StatusNotModified)
			return
		}
	}

	// No match, send the buffered data.
	wr.WriteHeader(w.code)
	if _, err := wr.Write(w.data); err != nil {
		panic(err)
	}
}

// Buffer the HTTP status, we can't write it until we have the complete response
func (w *eTagWriter) WriteHeader(code int) {
	w.code = code
}

// ETag is http.Handler middleware that will, for `GET` requests:
//
// 1. Calculate ETag as md5(body)
// 2. Add ETag HTTP header to response
// 3. If client sends `If-None-Match` header with matching ETag,
//    discard body and respond with `304 Not Modified` on any `200 OK`
//    responses
func ETag(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "GET" {
			wr := newETagWriter(w, r)
			h.ServeHTTP(wr, r)
			wr.end()
		} else {
			h.ServeHTTP(w, r)
		}
	})
}
