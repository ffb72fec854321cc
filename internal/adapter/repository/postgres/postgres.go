package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

const uniqueViolationErrCode = "23505"

const (
	originalURLKey = "urls_original_url_key"
	shortURLKey    = "urls_short_url_key"
	urlCodeKey     = "urls_url_code_key"
)

// conflictError translates a unique constraint violation into the matching
// entity error. It returns nil for any other error.
func conflictError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.SQLState() != uniqueViolationErrCode {
		return nil
	}

	switch pgErr.ConstraintName {
	case originalURLKey:
		return entity.ErrOriginalURLExists
	case shortURLKey:
		return entity.ErrShortURLExists
	case urlCodeKey:
		return entity.ErrURLCodeExists
	default:
		return nil
	}
}

type urlDB struct {
	ID           uuid.UUID    `db:"id"`
	OriginalURL  string       `db:"original_url"`
	ShortURL     string       `db:"short_url"`
	URLCode      string       `db:"url_code"`
	Clicks       int64        `db:"clicks"`
	CreatedAt    time.Time    `db:"created_at"`
	LastAccessed sql.NullTime `db:"last_accessed"`
}

func (u *urlDB) toEntity() *entity.URL {
	url := &entity.URL{
		ID:          u.ID,
		OriginalURL: u.OriginalURL,
		ShortURL:    u.ShortURL,
		URLCode:     u.URLCode,
		Clicks:      u.Clicks,
		CreatedAt:   u.CreatedAt,
	}
	if u.LastAccessed.Valid {
		t := u.LastAccessed.Time
		url.LastAccessed = &t
	}
	return url
}

type URLRepository struct {
	db *sqlx.DB
}

func NewURLRepository(db *sqlx.DB) *URLRepository {
	return &URLRepository{db: db}
}

func (r *URLRepository) Save(ctx context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Save"
	const query = `INSERT INTO urls(original_url, short_url, url_code) VALUES ($1, $2, $3) RETURNING *`

	if err := url.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, url.OriginalURL, url.ShortURL, url.URLCode); err != nil {
		if conflict := conflictError(err); conflict != nil {
			return nil, fmt.Errorf("%s: %w", op, conflict)
		}

		return nil, fmt.Errorf("%s: failed to insert into urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

func (r *URLRepository) RetrieveByID(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByID"
	const query = `SELECT * FROM urls WHERE id = $1`

	return r.retrieve(ctx, op, query, id)
}

func (r *URLRepository) RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByOriginalURL"
	const query = `SELECT * FROM urls WHERE original_url = $1`

	return r.retrieve(ctx, op, query, originalURL)
}

func (r *URLRepository) RetrieveByURLCode(ctx context.Context, urlCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.RetrieveByURLCode"
	const query = `SELECT * FROM urls WHERE url_code = $1`

	return r.retrieve(ctx, op, query, urlCode)
}

func (r *URLRepository) retrieve(ctx context.Context, op, query string, arg any) (*entity.URL, error) {
	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get row from urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

// Update applies patch to the record with the given id and touches last_accessed.
func (r *URLRepository) Update(ctx context.Context, id uuid.UUID, patch entity.URLPatch) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Update"
	const query = `UPDATE urls
		SET short_url = COALESCE($2, short_url),
			url_code = COALESCE($3, url_code),
			last_accessed = now()
		WHERE id = $1
		RETURNING *`

	if patch.URLCode != nil && !entity.IsValidAlias(*patch.URLCode) {
		return nil, fmt.Errorf("%s: url code: %w", op, entity.ErrInvalidAlias)
	}
	if patch.ShortURL != nil && !entity.IsAbsoluteURL(*patch.ShortURL) {
		return nil, fmt.Errorf("%s: short url: %w", op, entity.ErrInvalidURL)
	}

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, id, patch.ShortURL, patch.URLCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}
		if conflict := conflictError(err); conflict != nil {
			return nil, fmt.Errorf("%s: %w", op, conflict)
		}

		return nil, fmt.Errorf("%s: failed to update urls table row: %w", op, err)
	}

	return row.toEntity(), nil
}

func (r *URLRepository) IncrementClicksByID(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.IncrementClicksByID"
	const query = `UPDATE urls SET clicks = clicks + 1, last_accessed = now() WHERE id = $1 RETURNING *`

	return r.incrementClicks(ctx, op, query, id)
}

func (r *URLRepository) IncrementClicksByURLCode(ctx context.Context, urlCode string) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.IncrementClicksByURLCode"
	const query = `UPDATE urls SET clicks = clicks + 1, last_accessed = now() WHERE url_code = $1 RETURNING *`

	return r.incrementClicks(ctx, op, query, urlCode)
}

func (r *URLRepository) incrementClicks(ctx context.Context, op, query string, arg any) (*entity.URL, error) {
	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to get and update urls table row: %w", op, err)
	}

	return row.toEntity(), nil
}

// Remove deletes the record with the given id and returns it.
func (r *URLRepository) Remove(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.Remove"
	const query = `DELETE FROM urls WHERE id = $1 RETURNING *`

	var row urlDB

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
		}

		return nil, fmt.Errorf("%s: failed to delete from urls table: %w", op, err)
	}

	return row.toEntity(), nil
}

// List returns every record, newest first.
func (r *URLRepository) List(ctx context.Context) ([]entity.URL, error) {
	const op = "adapter.repository.postgres.URLRepository.List"
	const query = `SELECT * FROM urls ORDER BY created_at DESC, id`

	var rows []urlDB

	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("%s: failed to select from urls table: %w", op, err)
	}

	urls := make([]entity.URL, 0, len(rows))
	for i := range rows {
		urls = append(urls, *rows[i].toEntity())
	}

	return urls, nil
}
