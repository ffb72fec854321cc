package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

const (
	defaultCodeLength = 7
	maxRetries        = 5
)

type urlRepository interface {
	Save(ctx context.Context, url *entity.URL) (*entity.URL, error)
	RetrieveByID(ctx context.Context, id uuid.UUID) (*entity.URL, error)
	RetrieveByOriginalURL(ctx context.Context, originalURL string) (*entity.URL, error)
	RetrieveByURLCode(ctx context.Context, urlCode string) (*entity.URL, error)
	Update(ctx context.Context, id uuid.UUID, patch entity.URLPatch) (*entity.URL, error)
	IncrementClicksByID(ctx context.Context, id uuid.UUID) (*entity.URL, error)
	IncrementClicksByURLCode(ctx context.Context, urlCode string) (*entity.URL, error)
	Remove(ctx context.Context, id uuid.UUID) (*entity.URL, error)
	List(ctx context.Context) ([]entity.URL, error)
}

type linkShortener interface {
	CreateShortLink(ctx context.Context, originalURL, alias string) (string, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, event entity.Event) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, entity.Event) error { return nil }

type URLUseCase struct {
	urlRepo   urlRepository
	shortener linkShortener
	publisher eventPublisher
	genCode   CodeGenerator
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*URLUseCase)

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(uc *URLUseCase) {
		uc.genCode = gen
	}
}

func WithEventPublisher(publisher eventPublisher) Option {
	return func(uc *URLUseCase) {
		uc.publisher = publisher
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(uc *URLUseCase) {
		uc.logger = logger
	}
}

func New(urlRepo urlRepository, shortener linkShortener, opts ...Option) *URLUseCase {
	uc := &URLUseCase{
		urlRepo:   urlRepo,
		shortener: shortener,
		publisher: nopPublisher{},
		genCode:   NewNanoIDGenerator(defaultCodeLength),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// ShortenURL returns the record for originalURL, asking the provider for a
// short link only when the URL has not been shortened before.
func (uc *URLUseCase) ShortenURL(ctx context.Context, originalURL string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ShortenURL"

	originalURL = strings.TrimSpace(originalURL)
	if !entity.IsAbsoluteURL(originalURL) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidURL)
	}

	url, err := uc.urlRepo.RetrieveByOriginalURL(ctx, originalURL)
	if err == nil {
		return url, nil
	}
	if !errors.Is(err, entity.ErrURLNotFound) {
		return nil, fmt.Errorf("%s: failed to look up url: %w", op, err)
	}

	shortURL, err := uc.shortener.CreateShortLink(ctx, originalURL, "")
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrUpstream, err)
	}

	url, err = uc.save(ctx, originalURL, shortURL)
	if errors.Is(err, entity.ErrOriginalURLExists) {
		// A concurrent request stored the same URL first.
		url, err = uc.urlRepo.RetrieveByOriginalURL(ctx, originalURL)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to look up url: %w", op, err)
		}
		return url, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uc.publish(ctx, entity.EventURLCreated, url)

	return url, nil
}

func (uc *URLUseCase) save(ctx context.Context, originalURL, shortURL string) (*entity.URL, error) {
	for i := 0; i < maxRetries; i++ {
		code, err := uc.genCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate url code: %w", err)
		}

		url, err := uc.urlRepo.Save(ctx, &entity.URL{
			OriginalURL: originalURL,
			ShortURL:    shortURL,
			URLCode:     code,
		})
		if errors.Is(err, entity.ErrURLCodeExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save url: %w", err)
		}

		return url, nil
	}

	return nil, entity.ErrMaxRetriesExceeded
}

// UpdateAlias asks the provider for a short link under alias and stores it as
// the record's new short URL and url code.
func (uc *URLUseCase) UpdateAlias(ctx context.Context, id uuid.UUID, alias string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.UpdateAlias"

	if !entity.IsValidAlias(alias) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrInvalidAlias)
	}
	if entity.IsReservedAlias(alias) {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrReservedAlias)
	}

	url, err := uc.urlRepo.RetrieveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to retrieve url: %w", op, err)
	}

	shortURL, err := uc.shortener.CreateShortLink(ctx, url.OriginalURL, alias)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, entity.ErrUpstream, err)
	}

	url, err = uc.urlRepo.Update(ctx, id, entity.URLPatch{
		ShortURL: &shortURL,
		URLCode:  &alias,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: failed to update url: %w", op, err)
	}

	uc.publish(ctx, entity.EventURLAliasUpdated, url)

	return url, nil
}

func (uc *URLUseCase) RegisterClick(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "usecase.URLUseCase.RegisterClick"

	url, err := uc.urlRepo.IncrementClicksByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to register click: %w", op, err)
	}

	uc.publish(ctx, entity.EventURLClicked, url)

	return url, nil
}

// ResolveURLCode counts a click on urlCode and returns the record to redirect to.
func (uc *URLUseCase) ResolveURLCode(ctx context.Context, urlCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.ResolveURLCode"

	url, err := uc.urlRepo.IncrementClicksByURLCode(ctx, urlCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to resolve url code: %w", op, err)
	}

	uc.publish(ctx, entity.EventURLClicked, url)

	return url, nil
}

func (uc *URLUseCase) ListURLs(ctx context.Context) ([]entity.URL, error) {
	const op = "usecase.URLUseCase.ListURLs"

	urls, err := uc.urlRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to list urls: %w", op, err)
	}

	return urls, nil
}

func (uc *URLUseCase) GetURL(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURL"

	url, err := uc.urlRepo.RetrieveByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to retrieve url: %w", op, err)
	}

	return url, nil
}

// GetURLStats returns the record for urlCode without counting a click.
func (uc *URLUseCase) GetURLStats(ctx context.Context, urlCode string) (*entity.URL, error) {
	const op = "usecase.URLUseCase.GetURLStats"

	url, err := uc.urlRepo.RetrieveByURLCode(ctx, urlCode)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to retrieve url stats: %w", op, err)
	}

	return url, nil
}

func (uc *URLUseCase) DeleteURL(ctx context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "usecase.URLUseCase.DeleteURL"

	url, err := uc.urlRepo.Remove(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to delete url: %w", op, err)
	}

	uc.publish(ctx, entity.EventURLDeleted, url)

	return url, nil
}

func (uc *URLUseCase) publish(ctx context.Context, typ entity.EventType, url *entity.URL) {
	event := entity.NewEvent(typ, url, uc.now().UTC())

	if err := uc.publisher.Publish(ctx, event); err != nil {
		uc.logger.WarnContext(ctx, "failed to publish url event",
			slog.String("type", string(typ)),
			slog.String("url_id", url.ID.String()),
			slog.Any("err", err),
		)
	}
}
