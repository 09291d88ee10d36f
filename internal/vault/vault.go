package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "lockify/internal/lib/logger"
	"lockify/internal/models"
	"lockify/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("entry not found")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidAttachment = errors.New("attachment does not belong to the caller")
)

type EntryStore interface {
	SaveEntry(ctx context.Context, entry models.Entry) error
	Entries(ctx context.Context, owner string) ([]models.Entry, error)
	Entry(ctx context.Context, owner, id string) (models.Entry, error)
	UpdateEntry(ctx context.Context, owner, id string, fields models.EntryFields, updatedAt time.Time) (models.Entry, error)
	DeleteEntry(ctx context.Context, owner, id string) (models.Entry, error)
	DeleteEntries(ctx context.Context, owner string) (int64, error)
}

// Vault is the entry CRUD surface. Every method takes the owner from the
// verified bearer token; no entry of another owner is ever read or written.
type Vault struct {
	log   *slog.Logger
	store EntryStore
	now   func() time.Time
}

func New(log *slog.Logger, store EntryStore) *Vault {
	return &Vault{
		log:   log,
		store: store,
		now:   time.Now,
	}
}

// AttachmentPrefix is the object key prefix owner may reference.
func AttachmentPrefix(owner string) string {
	return "users/" + owner + "/"
}

func (v *Vault) Create(ctx context.Context, owner string, fields models.EntryFields) (models.Entry, error) {
	const op = "vault.Create"

	log := v.log.With(slog.String("op", op))

	if err := checkAttachment(owner, fields.FileUpload); err != nil {
		return models.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	now := v.now().UTC()

	entry := models.Entry{
		ID:          uuid.NewString(),
		URL:         fields.URL,
		Password:    fields.Password,
		Description: fields.Description,
		FileUpload:  fields.FileUpload,
		UserEmail:   owner,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := v.store.SaveEntry(ctx, entry); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("owner account no longer exists")

			return models.Entry{}, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}

		log.Error("failed to save entry", sl.Err(err))

		return models.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("entry created", slog.String("id", entry.ID))

	return entry, nil
}

func (v *Vault) ListAll(ctx context.Context, owner string) ([]models.Entry, error) {
	const op = "vault.ListAll"

	entries, err := v.store.Entries(ctx, owner)
	if err != nil {
		v.log.Error("failed to list entries", slog.String("op", op), sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if entries == nil {
		entries = []models.Entry{}
	}

	return entries, nil
}

func (v *Vault) FindOne(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "vault.FindOne"

	entry, err := v.store.Entry(ctx, owner, id)
	if err != nil {
		return models.Entry{}, v.wrap(op, err)
	}

	return entry, nil
}

func (v *Vault) Update(ctx context.Context, owner, id string, fields models.EntryFields) (models.Entry, error) {
	const op = "vault.Update"

	if err := checkAttachment(owner, fields.FileUpload); err != nil {
		return models.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	entry, err := v.store.UpdateEntry(ctx, owner, id, fields, v.now().UTC())
	if err != nil {
		return models.Entry{}, v.wrap(op, err)
	}

	v.log.Info("entry updated", slog.String("op", op), slog.String("id", id))

	return entry, nil
}

func (v *Vault) DeleteOne(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "vault.DeleteOne"

	entry, err := v.store.DeleteEntry(ctx, owner, id)
	if err != nil {
		return models.Entry{}, v.wrap(op, err)
	}

	v.log.Info("entry deleted", slog.String("op", op), slog.String("id", id))

	return entry, nil
}

// DeleteAll removes every entry of owner. Having none is not an error.
func (v *Vault) DeleteAll(ctx context.Context, owner string) (int64, error) {
	const op = "vault.DeleteAll"

	n, err := v.store.DeleteEntries(ctx, owner)
	if err != nil {
		v.log.Error("failed to delete entries", slog.String("op", op), sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	v.log.Info("entries deleted", slog.String("op", op), slog.Int64("count", n))

	return n, nil
}

func (v *Vault) wrap(op string, err error) error {
	if errors.Is(err, storage.ErrEntryNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	v.log.Error("storage failure", slog.String("op", op), sl.Err(err))

	return fmt.Errorf("%s: %w", op, err)
}

func checkAttachment(owner, key string) error {
	if key == "" {
		return nil
	}

	if !strings.HasPrefix(key, AttachmentPrefix(owner)) || strings.Contains(key, "..") {
		return ErrInvalidAttachment
	}

	return nil
}
