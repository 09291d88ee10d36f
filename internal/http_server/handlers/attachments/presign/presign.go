package presign

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"lockify/internal/attachments"
	resp "lockify/internal/lib/api/response"
	sl "lockify/internal/lib/logger"
	"lockify/internal/middleware/authtoken"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type DownloadRequest struct {
	Key string `json:"key" validate:"required,max=1024"`
}

type Response struct {
	resp.Response
	Attachment attachments.Presigned `json:"attachment"`
}

type Presigner interface {
	PresignUpload(ctx context.Context, owner string) (attachments.Presigned, error)
	PresignDownload(ctx context.Context, owner, key string) (attachments.Presigned, error)
}

// Upload hands out a PUT URL under the caller's attachment prefix.
func Upload(log *slog.Logger, presigner Presigner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.attachments.presign.Upload"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		owner, ok := authtoken.EmailFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Access denied"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := presigner.PresignUpload(ctx, owner)
		if err != nil {
			log.Error("failed to presign upload", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:   resp.OK("Upload URL created"),
			Attachment: res,
		})
	}
}

func Download(
	log *slog.Logger,
	validate *validator.Validate,
	presigner Presigner,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.attachments.presign.Download"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		owner, ok := authtoken.EmailFromContext(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("Access denied"))

			return
		}

		var req DownloadRequest

		if err := render.DecodeJSON(r.Body, &req); err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			var validateErr validator.ValidationErrors
			errors.As(err, &validateErr)

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		res, err := presigner.PresignDownload(ctx, owner, req.Key)
		if err != nil {
			if errors.Is(err, attachments.ErrForeignKey) {
				log.Warn("download of a foreign attachment refused")

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Attachment not found"))

				return
			}

			log.Error("failed to presign download", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:   resp.OK("Download URL created"),
			Attachment: res,
		})
	}
}
