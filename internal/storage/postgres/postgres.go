package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lockify/internal/config"
	"lockify/internal/models"
	"lockify/internal/storage"
	"lockify/internal/storage/postgres/migrations"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Postgres) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	poolConfig, err := pgxpool.ParseConfig(dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

// Migrate applies the embedded schema migrations.
func (r *PostgresRepo) Migrate(ctx context.Context) error {
	const op = "storage.postgres.Migrate"

	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := goose.UpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) SaveUser(ctx context.Context, user models.User) error {
	const op = "storage.postgres.SaveUser"

	const query = `
		INSERT INTO users (email, first_name, password_hash, gender, is_verified, verification_token, created_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7);
	`

	_, err := r.pool.Exec(ctx, query,
		user.Email,
		user.FirstName,
		string(user.PassHash),
		user.Gender,
		user.IsVerified,
		user.VerificationToken,
		user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	return nil
}

const userColumns = `email, first_name, password_hash, gender, is_verified, COALESCE(verification_token, ''), created_at`

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	const op = "storage.postgres.User"

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

// VerifyUserByToken flips the account holding token to verified and clears
// the token in a single statement, so a token can be consumed only once.
func (r *PostgresRepo) VerifyUserByToken(ctx context.Context, token string) (models.User, error) {
	const op = "storage.postgres.VerifyUserByToken"

	query := `
		UPDATE users
		SET is_verified = TRUE, verification_token = NULL
		WHERE verification_token = $1 AND is_verified = FALSE
		RETURNING ` + userColumns + `;`

	u, err := scanUser(r.pool.QueryRow(ctx, query, token))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrTokenNotFound
		}

		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}

	return u, nil
}

func (r *PostgresRepo) SetVerificationToken(ctx context.Context, email, token string) error {
	const op = "storage.postgres.SetVerificationToken"

	const query = `
		UPDATE users
		SET verification_token = $2
		WHERE email = $1 AND is_verified = FALSE;
	`

	tag, err := r.pool.Exec(ctx, query, email, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

// DeleteUser removes the account. Entries go with it through ON DELETE CASCADE.
func (r *PostgresRepo) DeleteUser(ctx context.Context, email string) error {
	const op = "storage.postgres.DeleteUser"

	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return nil
}

func (r *PostgresRepo) DeleteUnverifiedUntil(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "storage.postgres.DeleteUnverifiedUntil"

	tag, err := r.pool.Exec(ctx,
		`DELETE FROM users WHERE is_verified = FALSE AND created_at <= $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

const entryColumns = `id::text, user_email, url, password, description, file_upload, created_at, updated_at`

func (r *PostgresRepo) SaveEntry(ctx context.Context, e models.Entry) error {
	const op = "storage.postgres.SaveEntry"

	const query = `
		INSERT INTO entries (id, user_email, url, password, description, file_upload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.UserEmail, e.URL, e.Password, e.Description, e.FileUpload, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeForeignKeyViolation {
			return storage.ErrUserNotFound
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) Entries(ctx context.Context, owner string) ([]models.Entry, error) {
	const op = "storage.postgres.Entries"

	query := `SELECT ` + entryColumns + ` FROM entries WHERE user_email = $1 ORDER BY seq;`

	rows, err := r.pool.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	res := make([]models.Entry, 0)

	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return res, nil
}

func (r *PostgresRepo) Entry(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "storage.postgres.Entry"

	query := `SELECT ` + entryColumns + ` FROM entries WHERE id::text = $1 AND user_email = $2;`

	return r.oneEntry(ctx, op, query, id, owner)
}

func (r *PostgresRepo) UpdateEntry(
	ctx context.Context,
	owner, id string,
	fields models.EntryFields,
	updatedAt time.Time,
) (models.Entry, error) {
	const op = "storage.postgres.UpdateEntry"

	query := `
		UPDATE entries
		SET url = $3, password = $4, description = $5, file_upload = $6, updated_at = $7
		WHERE id::text = $1 AND user_email = $2
		RETURNING ` + entryColumns + `;`

	return r.oneEntry(ctx, op, query,
		id, owner, fields.URL, fields.Password, fields.Description, fields.FileUpload, updatedAt,
	)
}

func (r *PostgresRepo) DeleteEntry(ctx context.Context, owner, id string) (models.Entry, error) {
	const op = "storage.postgres.DeleteEntry"

	query := `DELETE FROM entries WHERE id::text = $1 AND user_email = $2 RETURNING ` + entryColumns + `;`

	return r.oneEntry(ctx, op, query, id, owner)
}

func (r *PostgresRepo) DeleteEntries(ctx context.Context, owner string) (int64, error) {
	const op = "storage.postgres.DeleteEntries"

	tag, err := r.pool.Exec(ctx, `DELETE FROM entries WHERE user_email = $1`, owner)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return tag.RowsAffected(), nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func (r *PostgresRepo) oneEntry(ctx context.Context, op, query string, args ...any) (models.Entry, error) {
	e, err := scanEntry(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Entry{}, storage.ErrEntryNotFound
		}

		return models.Entry{}, fmt.Errorf("%s: %w", op, err)
	}

	return e, nil
}

func scanUser(row pgx.Row) (models.User, error) {
	var (
		u        models.User
		passHash string
	)

	err := row.Scan(
		&u.Email,
		&u.FirstName,
		&passHash,
		&u.Gender,
		&u.IsVerified,
		&u.VerificationToken,
		&u.CreatedAt,
	)
	if err != nil {
		return models.User{}, err
	}

	u.PassHash = []byte(passHash)

	return u, nil
}

func scanEntry(row pgx.Row) (models.Entry, error) {
	var e models.Entry

	err := row.Scan(
		&e.ID,
		&e.UserEmail,
		&e.URL,
		&e.Password,
		&e.Description,
		&e.FileUpload,
		&e.CreatedAt,
		&e.UpdatedAt,
	)

	return e, err
}

// dsn builds the connection string for the pool.
func dsn(cfg config.Postgres) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)
}
