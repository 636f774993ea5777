// Package auth authenticates operators: the applications and staff that act
// on personal data through the API.
package auth

import (
	"log/slog"
	"net/http"
	"strings"

	dErrors "privata/pkg/domain-errors"
	"privata/pkg/platform/httputil"
	"privata/pkg/requestcontext"
)

// Validator validates an operator bearer token and returns the actor it names.
type Validator interface {
	ValidateOperatorToken(token string) (string, error)
}

// RequireOperator rejects requests without a valid operator token and
// records the actor on the context. The actor becomes the audit user id.
func RequireOperator(validator Validator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			actor, err := validator.ValidateOperatorToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actor)))
		})
	}
}
