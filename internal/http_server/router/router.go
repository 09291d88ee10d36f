package router

import (
	"log/slog"
	"net/http"

	"lockify/internal/auth"
	"lockify/internal/http_server/handlers/attachments/presign"
	deleteUser "lockify/internal/http_server/handlers/delete_user"
	"lockify/internal/http_server/handlers/entries/add"
	"lockify/internal/http_server/handlers/entries/find"
	"lockify/internal/http_server/handlers/entries/list"
	"lockify/internal/http_server/handlers/entries/remove"
	removeAll "lockify/internal/http_server/handlers/entries/remove_all"
	"lockify/internal/http_server/handlers/entries/update"
	"lockify/internal/http_server/handlers/login"
	"lockify/internal/http_server/handlers/register"
	resendEmail "lockify/internal/http_server/handlers/resend_verification_email"
	"lockify/internal/http_server/handlers/verify"
	resp "lockify/internal/lib/api/response"
	"lockify/internal/middleware/authtoken"
	rateLimit "lockify/internal/middleware/ratelimit"
	"lockify/internal/vault"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Deps struct {
	Log      *slog.Logger
	Validate *validator.Validate
	Auth     *auth.Auth
	Vault    *vault.Vault
	Tokens   authtoken.TokenVerifier

	// Presigner is nil when attachment storage is not configured.
	Presigner presign.Presigner

	RateLimit bool
}

func New(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	limit := func(mw func(http.Handler) http.Handler) func(http.Handler) http.Handler {
		if !d.RateLimit {
			return func(next http.Handler) http.Handler { return next }
		}
		return mw
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, resp.OK("alive"))
	})

	r.With(limit(rateLimit.Register())).Post("/register",
		register.New(d.Log, d.Validate, d.Auth),
	)
	r.With(limit(rateLimit.Verify())).Get("/verification",
		verify.New(d.Log, d.Auth),
	)
	r.With(limit(rateLimit.ResendVerificationEmail())).Post("/resend-verification",
		resendEmail.New(d.Log, d.Validate, d.Auth),
	)
	r.With(limit(rateLimit.Login())).Post("/login",
		login.New(d.Log, d.Validate, d.Auth),
	)

	r.Group(func(r chi.Router) {
		r.Use(authtoken.New(d.Log, d.Tokens))
		r.Use(limit(rateLimit.Vault()))

		r.Delete("/user/delete/{email}", deleteUser.New(d.Log, d.Auth))

		r.Post("/add", add.New(d.Log, d.Validate, d.Vault))
		r.Get("/find", list.New(d.Log, d.Vault))
		r.Get("/find/{id}", find.New(d.Log, d.Vault))
		r.Put("/update/{id}", update.New(d.Log, d.Validate, d.Vault))
		r.Delete("/delete", removeAll.New(d.Log, d.Vault))
		r.Delete("/delete/{id}", remove.New(d.Log, d.Vault))

		if d.Presigner != nil {
			r.Post("/attachments/upload", presign.Upload(d.Log, d.Presigner))
			r.Post("/attachments/download", presign.Download(d.Log, d.Validate, d.Presigner))
		}
	})

	return r
}
