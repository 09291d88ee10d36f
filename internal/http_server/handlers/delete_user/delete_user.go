package deleteUser

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"lockify/internal/auth"
	resp "lockify/internal/lib/api/response"
	sl "lockify/internal/lib/logger"
	"lockify/internal/middleware/authtoken"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Email string `json:"email"`
}

type AccountDeleter interface {
	DeleteAccount(ctx context.Context, email, caller string) error
}

func New(
	log *slog.Logger,
	deleter AccountDeleter,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.deleteUser.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		caller, ok := authtoken.EmailFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Access denied"))

			return
		}

		email, err := url.PathUnescape(chi.URLParam(r, "email"))
		if err != nil || email == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Invalid email"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := deleter.DeleteAccount(ctx, email, caller); err != nil {
			if errors.Is(err, auth.ErrUserNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("User not found"))

				return
			}

			log.Error("failed to delete user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("user and entries deleted")

		render.JSON(w, r, Response{
			Response: resp.OK("User and associated passwords deleted successfully"),
			Email:    caller,
		})
	}
}
