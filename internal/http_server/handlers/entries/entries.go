// Package entries holds what the vault handlers share: the entry request
// body and the mapping of vault errors to responses.
package entries

import (
	"errors"
	"log/slog"
	"net/http"

	resp "lockify/internal/lib/api/response"
	sl "lockify/internal/lib/logger"
	"lockify/internal/models"
	"lockify/internal/vault"

	"github.com/go-chi/render"
)

type Request struct {
	URL         string `json:"url" validate:"required,max=2048"`
	Password    string `json:"password" validate:"required,max=4096"`
	Description string `json:"description" validate:"max=4096"`
	FileUpload  string `json:"fileUpload" validate:"max=1024"`
}

func (r Request) Fields() models.EntryFields {
	return models.EntryFields{
		URL:         r.URL,
		Password:    r.Password,
		Description: r.Description,
		FileUpload:  r.FileUpload,
	}
}

type EntryResponse struct {
	resp.Response
	Entry models.Entry `json:"entry"`
}

// RenderError writes the response for an error returned by the vault.
func RenderError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	switch {
	case errors.Is(err, vault.ErrNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("Password entry not found"))
	case errors.Is(err, vault.ErrUserNotFound):
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, resp.Error("User not found"))
	case errors.Is(err, vault.ErrInvalidAttachment):
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, resp.Error("Attachment does not belong to you"))
	default:
		log.Error("vault operation failed", sl.Err(err))

		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, resp.Error("Internal error"))
	}
}

// Unauthorized is written when a vault route is reached without an identity.
func Unauthorized(w http.ResponseWriter, r *http.Request) {
	render.Status(r, http.StatusUnauthorized)
	render.JSON(w, r, resp.Error("Access denied"))
}
