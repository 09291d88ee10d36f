package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lockify/internal/auth"
	resp "lockify/internal/lib/api/response"
	sl "lockify/internal/lib/logger"
	"lockify/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,lockify_email"`
	Pass      string `json:"password" validate:"required,max=72"`
	Gender    string `json:"gender" validate:"required,oneof=male female other"`
}

type Account struct {
	FirstName  string    `json:"firstName"`
	Email      string    `json:"email"`
	Gender     string    `json:"gender"`
	IsVerified bool      `json:"isVerified"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Response struct {
	resp.Response
	NewEntry Account `json:"newEntry"`
}

type UserRegistrar interface {
	RegisterNewUser(ctx context.Context, firstName, email, pass, gender string) (models.User, error)
}

func New(
	log *slog.Logger,
	validate *validator.Validate,
	registrar UserRegistrar,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.register.New"

		log := log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		log.Info("Request body decoded")

		req.FirstName = strings.TrimSpace(req.FirstName)

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

		user, err := registrar.RegisterNewUser(ctx, req.FirstName, req.Email, req.Pass, req.Gender)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrUserExists):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Email already exists"))
			case errors.Is(err, auth.ErrInvalidEmail):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("Email domain is not allowed"))
			case errors.Is(err, auth.ErrInvalidFirstName):
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("field FirstName is a required field"))
			default:
				log.Error("failed to register user", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("User registered")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response: resp.OK("User Registered Successfully"),
			NewEntry: Account{
				FirstName:  user.FirstName,
				Email:      user.Email,
				Gender:     user.Gender,
				IsVerified: user.IsVerified,
				CreatedAt:  user.CreatedAt,
			},
		})
	}
}
