package removeAll

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lockify/internal/http_server/handlers/entries"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/middleware/authtoken"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Deleted int64 `json:"deleted"`
}

type EntriesRemover interface {
	DeleteAll(ctx context.Context, owner string) (int64, error)
}

func New(log *slog.Logger, remover EntriesRemover) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.entries.removeAll.New"

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

		n, err := remover.DeleteAll(ctx, owner)
		if err != nil {
			entries.RenderError(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK("All password entries deleted successfully"),
			Deleted:  n,
		})
	}
}
