package add

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lockify/internal/http_server/handlers/entries"
	resp "lockify/internal/lib/api/response"
	sl "lockify/internal/lib/logger"
	"lockify/internal/middleware/authtoken"
	"lockify/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type EntryCreator interface {
	Create(ctx context.Context, owner string, fields models.EntryFields) (models.Entry, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	creator EntryCreator,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.entries.add.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		owner, ok := authtoken.EmailFromContext(r.Context())
		if !ok {
			entries.Unauthorized(w, r)
			return
		}

		var req entries.Request

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := creator.Create(ctx, owner, req.Fields())
		if err != nil {
			entries.RenderError(w, r, log, err)
			return
		}

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, entries.EntryResponse{
			Response: resp.OK("Password added successfully"),
			Entry:    entry,
		})
	}
}
