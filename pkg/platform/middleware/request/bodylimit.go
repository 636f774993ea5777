package request

import (
	"net/http"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/httputil"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over
// the cap is rejected before the handler runs; undeclared bodies fail when
// the handler reads past the cap.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.New(dErrors.CodeTooLarge, "request body too large"))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
