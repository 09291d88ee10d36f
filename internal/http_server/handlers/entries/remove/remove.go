package remove

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lockify/internal/http_server/handlers/entries"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/middleware/authtoken"
	"lockify/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type EntryRemover interface {
	DeleteOne(ctx context.Context, owner, id string) (models.Entry, error)
}

func New(log *slog.Logger, remover EntryRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.entries.remove.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		owner, ok := authtoken.EmailFromContext(r.Context())
		if !ok {
			entries.Unauthorized(w, r)
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		entry, err := remover.DeleteOne(ctx, owner, chi.URLParam(r, "id"))
		if err != nil {
			entries.RenderError(w, r, log, err)
			return
		}

		render.JSON(w, r, entries.EntryResponse{
			Response: resp.OK("Password entry deleted successfully"),
			Entry:    entry,
		})
	}
}
