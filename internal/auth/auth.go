package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "lockify/internal/lib/logger"
	"lockify/internal/lib/validator"
	"lockify/internal/lib/verification"
	"lockify/internal/models"
	"lockify/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail       = errors.New("email domain is not allowed")
	ErrInvalidFirstName   = errors.New("first name is required")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailNotVerified   = errors.New("email not verified")
	ErrAlreadyVerified    = errors.New("email already verified")
	ErrInvalidToken       = errors.New("invalid verification token")
)

type Auth struct {
	log         *slog.Logger
	usrSaver    UserSaver
	usrProvider UserProvider
	notifier    Notifier
	tokens      TokenIssuer
	now         func() time.Time
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) error
	SetVerificationToken(ctx context.Context, email, token string) error
	VerifyUserByToken(ctx context.Context, token string) (models.User, error)
	DeleteUser(ctx context.Context, email string) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
}

type Notifier interface {
	Dispatch(email, token string)
}

type TokenIssuer interface {
	Issue(email string) (string, error)
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	notifier Notifier,
	tokens TokenIssuer,
) *Auth {
	return &Auth{
		log:         log,
		usrSaver:    userSaver,
		usrProvider: userProvider,
		notifier:    notifier,
		tokens:      tokens,
		now:         time.Now,
	}
}

// RegisterNewUser stores an unverified account and sends the verification
// link in the background. The returned user carries the verification token
// but never leaves the service with it.
func (a *Auth) RegisterNewUser(
	ctx context.Context,
	firstName, email, pass, gender string,
) (models.User, error) {
	const op = "auth.RegisterNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	email = validator.NormalizeEmail(email)
	if !validator.AllowedEmail(email) {
		log.Warn("email domain rejected")

		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	firstName = strings.TrimSpace(firstName)
	if firstName == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidFirstName)
	}

	log.Info("registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	user := models.User{
		Email:             email,
		FirstName:         firstName,
		PassHash:          passHash,
		Gender:            gender,
		IsVerified:        false,
		VerificationToken: token,
		CreatedAt:         a.now().UTC(),
	}

	if err := a.usrSaver.SaveUser(ctx, user); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("user already exists")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("failed to save user", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.Dispatch(user.Email, token)

	log.Info("user registered")

	return user, nil
}

func (a *Auth) VerifyEmail(ctx context.Context, token string) (models.User, error) {
	const op = "auth.VerifyEmail"

	log := a.log.With(
		slog.String("op", op),
	)

	if token == "" {
		return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	user, err := a.usrSaver.VerifyUserByToken(ctx, token)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("verification token not found")

			return models.User{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		log.Error("failed to verify user", sl.Err(err))

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("email verified")

	return user, nil
}

func (a *Auth) ResendVerification(ctx context.Context, email string) error {
	const op = "auth.ResendVerification"

	log := a.log.With(
		slog.String("op", op),
	)

	email = validator.NormalizeEmail(email)

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Info("user not found")

			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if user.IsVerified {
		return fmt.Errorf("%s: %w", op, ErrAlreadyVerified)
	}

	token, err := verification.NewToken()
	if err != nil {
		log.Error("failed to generate verification token", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.SetVerificationToken(ctx, email, token); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			// Swept or verified between the read and the write.
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to save verification token", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	a.notifier.Dispatch(email, token)

	log.Info("verification email resent")

	return nil
}

// Login checks the credentials and returns a bearer token together with the
// public view of the account.
func (a *Auth) Login(
	ctx context.Context,
	email, password string,
) (string, models.PublicUser, error) {
	const op = "auth.Login"

	log := a.log.With(slog.String("op", op))

	email = validator.NormalizeEmail(email)
	if !validator.AllowedEmail(email) {
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrInvalidEmail)
	}

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")

			return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to get user", sl.Err(err))

		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsVerified {
		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrEmailNotVerified)
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))

		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	token, err := a.tokens.Issue(user.Email)
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))

		return "", models.PublicUser{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in successfully")

	return token, user.Public(), nil
}

// DeleteAccount removes the account of caller together with its entries.
// Asking for another account is reported as not found.
func (a *Auth) DeleteAccount(ctx context.Context, email, caller string) error {
	const op = "auth.DeleteAccount"

	log := a.log.With(slog.String("op", op))

	email = validator.NormalizeEmail(email)
	if email != caller {
		log.Warn("attempt to delete a foreign account")

		return fmt.Errorf("%s: %w", op, ErrUserNotFound)
	}

	if err := a.usrSaver.DeleteUser(ctx, email); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to delete user", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user deleted")

	return nil
}
