package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// internalErrorBody matches the JSON shape the handlers use for errors. It is
// marshaled once because a panic may have left the process in a state where
// allocating an encoder is the last thing we want to do.
var internalErrorBody = []byte(`{"error":"Internal server error","code":"INTERNAL_ERROR"}` + "\n")

// RecoveryMiddleware converts panics in downstream handlers into 500
// responses so a single bad request cannot take the server down.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			slog.Error("panic recovered",
				"panic", rec,
				"method", r.Method,
				"path", r.URL.Path,
				"stack", string(debug.Stack()),
			)

			// If the handler already wrote a response this produces a
			// superfluous-WriteHeader log line, which is acceptable.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write(internalErrorBody)
		}()

		next.ServeHTTP(w, r)
	})
}
