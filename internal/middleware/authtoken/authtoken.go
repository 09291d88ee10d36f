package authtoken

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	resp "lockify/internal/lib/api/response"
	"lockify/internal/lib/jwt"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type ctxKey struct{}

type TokenVerifier interface {
	Verify(token string) (string, error)
}

// New rejects requests without a valid bearer token and stores the token's
// email in the request context for the handlers behind it.
func New(log *slog.Logger, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middleware.authtoken"

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			email, err := verifier.Verify(jwt.FromHeader(r))
			if err != nil {
				render.Status(r, http.StatusUnauthorized)

				if errors.Is(err, jwt.ErrMissingToken) {
					log.Info("missing token")
					render.JSON(w, r, resp.Error("Access denied"))

					return
				}

				log.Info("rejected token", slog.String("reason", err.Error()))
				render.JSON(w, r, resp.Error("Invalid token"))

				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func EmailFromContext(ctx context.Context) (string, bool) {
	email, ok := ctx.Value(ctxKey{}).(string)

	return email, ok && email != ""
}

// WithEmail returns a context carrying email as the authenticated identity.
func WithEmail(ctx context.Context, email string) context.Context {
	return context.WithValue(ctx, ctxKey{}, email)
}
