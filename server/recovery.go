// Lifted from Gin

// Copyright 2014 Manu Martinez-Almeida.  All rights reserved.
// Use of this source code is governed by a MIT style
// license that can be found in the LICENSE file.

package server

import (
	"net/http"
)

// Recovery turns a panicking handler into a 500 response. The panic is
// re-raised after the status is noted, so an outer middleware (eg.
// TraceRequest) still sees it for logging and reporting.
func Recovery(h http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		var statusCode int

		defer func() {
			if statusCode != 0 {
				rw.WriteHeader(statusCode)
			}
		}()

		defer RecoverAndSetStatusCode(&statusCode)

		h.ServeHTTP(rw, r)
	})
}

// RecoverAndSetStatusCode recovers an in-flight panic, records 500 in
// statusCode and re-panics. Must be deferred.
func RecoverAndSetStatusCode(statusCode *int) {
	if err := recover(); err != nil {
		*statusCode = http.StatusInternalServerError
		panic(err)
	}
}
