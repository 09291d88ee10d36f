package list

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"lockify/internal/http_server/handlers/entries"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/middleware/authtoken"
	"lockify/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
)

type Response struct {
	resp.Response
	Entries []models.Entry `json:"entries"`
}

type EntryLister interface {
	ListAll(ctx context.Context, owner string) ([]models.Entry, error)
}

func New(log *slog.Logger, lister EntryLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.entries.list.New"

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

		list, err := lister.ListAll(ctx, owner)
		if err != nil {
			entries.RenderError(w, r, log, err)
			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK("Password entries fetched successfully"),
			Entries:  list,
		})
	}
}
