// Package memory implements the URL repository in process memory. It offers
// the same uniqueness and atomicity guarantees as the PostgreSQL repository
// within a single process and is meant for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

type URLRepository struct {
	mu            sync.RWMutex
	byID          map[uuid.UUID]*entity.URL
	byOriginalURL map[string]uuid.UUID
	byShortURL    map[string]uuid.UUID
	byURLCode     map[string]uuid.UUID
	now           func() time.Time
}

func NewURLRepository() *URLRepository {
	return &URLRepository{
		byID:          make(map[uuid.UUID]*entity.URL),
		byOriginalURL: make(map[string]uuid.UUID),
		byShortURL:    make(map[string]uuid.UUID),
		byURLCode:     make(map[string]uuid.UUID),
		now:           time.Now,
	}
}

func clone(u *entity.URL) *entity.URL {
	c := *u
	if u.LastAccessed != nil {
		t := *u.LastAccessed
		c.LastAccessed = &t
	}
	return &c
}

func (r *URLRepository) Save(_ context.Context, url *entity.URL) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Save"

	if err := url.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byOriginalURL[url.OriginalURL]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrOriginalURLExists)
	}
	if _, ok := r.byShortURL[url.ShortURL]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrShortURLExists)
	}
	if _, ok := r.byURLCode[url.URLCode]; ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLCodeExists)
	}

	stored := &entity.URL{
		ID:          uuid.New(),
		OriginalURL: url.OriginalURL,
		ShortURL:    url.ShortURL,
		URLCode:     url.URLCode,
		CreatedAt:   r.now(),
	}

	r.byID[stored.ID] = stored
	r.byOriginalURL[stored.OriginalURL] = stored.ID
	r.byShortURL[stored.ShortURL] = stored.ID
	r.byURLCode[stored.URLCode] = stored.ID

	return clone(stored), nil
}

func (r *URLRepository) RetrieveByID(_ context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByID"

	r.mu.RLock()
	defer r.mu.RUnlock()

	url, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(url), nil
}

func (r *URLRepository) RetrieveByOriginalURL(_ context.Context, originalURL string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByOriginalURL"

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byOriginalURL[originalURL]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(r.byID[id]), nil
}

func (r *URLRepository) RetrieveByURLCode(_ context.Context, urlCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.RetrieveByURLCode"

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byURLCode[urlCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return clone(r.byID[id]), nil
}

func (r *URLRepository) Update(_ context.Context, id uuid.UUID, patch entity.URLPatch) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Update"

	if patch.URLCode != nil && !entity.IsValidAlias(*patch.URLCode) {
		return nil, fmt.Errorf("%s: url code: %w", op, entity.ErrInvalidAlias)
	}
	if patch.ShortURL != nil && !entity.IsAbsoluteURL(*patch.ShortURL) {
		return nil, fmt.Errorf("%s: short url: %w", op, entity.ErrInvalidURL)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	if patch.ShortURL != nil {
		if owner, ok := r.byShortURL[*patch.ShortURL]; ok && owner != id {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrShortURLExists)
		}
	}
	if patch.URLCode != nil {
		if owner, ok := r.byURLCode[*patch.URLCode]; ok && owner != id {
			return nil, fmt.Errorf("%s: %w", op, entity.ErrURLCodeExists)
		}
	}

	delete(r.byShortURL, url.ShortURL)
	delete(r.byURLCode, url.URLCode)

	patch.Apply(url)
	now := r.now()
	url.LastAccessed = &now

	r.byShortURL[url.ShortURL] = id
	r.byURLCode[url.URLCode] = id

	return clone(url), nil
}

func (r *URLRepository) IncrementClicksByID(_ context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.IncrementClicksByID"

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return r.click(url), nil
}

func (r *URLRepository) IncrementClicksByURLCode(_ context.Context, urlCode string) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.IncrementClicksByURLCode"

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byURLCode[urlCode]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	return r.click(r.byID[id]), nil
}

// click must be called with mu held for writing.
func (r *URLRepository) click(url *entity.URL) *entity.URL {
	url.Clicks++
	now := r.now()
	url.LastAccessed = &now

	return clone(url)
}

func (r *URLRepository) Remove(_ context.Context, id uuid.UUID) (*entity.URL, error) {
	const op = "adapter.repository.memory.URLRepository.Remove"

	r.mu.Lock()
	defer r.mu.Unlock()

	url, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", op, entity.ErrURLNotFound)
	}

	delete(r.byID, id)
	delete(r.byOriginalURL, url.OriginalURL)
	delete(r.byShortURL, url.ShortURL)
	delete(r.byURLCode, url.URLCode)

	return clone(url), nil
}

func (r *URLRepository) List(_ context.Context) ([]entity.URL, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	urls := make([]entity.URL, 0, len(r.byID))
	for _, url := range r.byID {
		urls = append(urls, *clone(url))
	}

	sort.Slice(urls, func(i, j int) bool {
		if urls[i].CreatedAt.Equal(urls[j].CreatedAt) {
			return urls[i].ID.String() < urls[j].ID.String()
		}
		return urls[i].CreatedAt.After(urls[j].CreatedAt)
	})

	return urls, nil
}
