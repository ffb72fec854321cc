package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

func setupURLRepository(t testing.TB) *URLRepository {
	t.Helper()

	repo := NewURLRepository()

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	return repo
}

func saveURL(t testing.TB, repo *URLRepository, originalURL, shortURL, code string) *entity.URL {
	t.Helper()

	url, err := repo.Save(context.TODO(), &entity.URL{
		OriginalURL: originalURL,
		ShortURL:    shortURL,
		URLCode:     code,
	})
	require.NoError(t, err)

	return url
}

func TestURLRepository_Save(t *testing.T) {
	t.Run("invalid record", func(t *testing.T) {
		repo := setupURLRepository(t)

		url, err := repo.Save(context.TODO(), &entity.URL{OriginalURL: "nope", ShortURL: "https://tinyurl.com/a", URLCode: "a"})

		assert.ErrorIs(t, err, entity.ErrInvalidURL)
		assert.Nil(t, url)
	})

	t.Run("conflicts", func(t *testing.T) {
		repo := setupURLRepository(t)
		saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

		_, err := repo.Save(context.TODO(), &entity.URL{OriginalURL: "https://example.com/a", ShortURL: "https://tinyurl.com/b", URLCode: "b"})
		assert.ErrorIs(t, err, entity.ErrOriginalURLExists)

		_, err = repo.Save(context.TODO(), &entity.URL{OriginalURL: "https://example.com/b", ShortURL: "https://tinyurl.com/a", URLCode: "b"})
		assert.ErrorIs(t, err, entity.ErrShortURLExists)

		_, err = repo.Save(context.TODO(), &entity.URL{OriginalURL: "https://example.com/b", ShortURL: "https://tinyurl.com/b", URLCode: "a"})
		assert.ErrorIs(t, err, entity.ErrURLCodeExists)
	})

	t.Run("success", func(t *testing.T) {
		repo := setupURLRepository(t)

		url := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

		assert.NotEqual(t, uuid.Nil, url.ID)
		assert.Zero(t, url.Clicks)
		assert.Nil(t, url.LastAccessed)
		assert.False(t, url.CreatedAt.IsZero())
	})
}

func TestURLRepository_Retrieve(t *testing.T) {
	repo := setupURLRepository(t)
	saved := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

	byID, err := repo.RetrieveByID(context.TODO(), saved.ID)
	assert.NoError(t, err)
	assert.Equal(t, saved, byID)

	byOriginal, err := repo.RetrieveByOriginalURL(context.TODO(), "https://example.com/a")
	assert.NoError(t, err)
	assert.Equal(t, saved, byOriginal)

	byCode, err := repo.RetrieveByURLCode(context.TODO(), "a")
	assert.NoError(t, err)
	assert.Equal(t, saved, byCode)

	_, err = repo.RetrieveByID(context.TODO(), uuid.New())
	assert.ErrorIs(t, err, entity.ErrURLNotFound)
	_, err = repo.RetrieveByOriginalURL(context.TODO(), "https://example.com/missing")
	assert.ErrorIs(t, err, entity.ErrURLNotFound)
	_, err = repo.RetrieveByURLCode(context.TODO(), "missing")
	assert.ErrorIs(t, err, entity.ErrURLNotFound)

	t.Run("returned records are copies", func(t *testing.T) {
		byID.Clicks = 100

		again, err := repo.RetrieveByID(context.TODO(), saved.ID)
		assert.NoError(t, err)
		assert.Zero(t, again.Clicks)
	})
}

func TestURLRepository_Update(t *testing.T) {
	shortURL := "https://tinyurl.com/my-link"
	code := "my-link"

	t.Run("url not found", func(t *testing.T) {
		repo := setupURLRepository(t)

		url, err := repo.Update(context.TODO(), uuid.New(), entity.URLPatch{URLCode: &code})

		assert.ErrorIs(t, err, entity.ErrURLNotFound)
		assert.Nil(t, url)
	})

	t.Run("invalid url code", func(t *testing.T) {
		repo := setupURLRepository(t)
		saved := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

		bad := "bad alias!"
		_, err := repo.Update(context.TODO(), saved.ID, entity.URLPatch{URLCode: &bad})

		assert.ErrorIs(t, err, entity.ErrInvalidAlias)
	})

	t.Run("url code taken by another record", func(t *testing.T) {
		repo := setupURLRepository(t)
		saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "my-link")
		other := saveURL(t, repo, "https://example.com/b", "https://tinyurl.com/b", "b")

		_, err := repo.Update(context.TODO(), other.ID, entity.URLPatch{ShortURL: &shortURL, URLCode: &code})
		assert.ErrorIs(t, err, entity.ErrURLCodeExists)

		unchanged, err := repo.RetrieveByID(context.TODO(), other.ID)
		assert.NoError(t, err)
		assert.Equal(t, "b", unchanged.URLCode)
		assert.Nil(t, unchanged.LastAccessed)
	})

	t.Run("success", func(t *testing.T) {
		repo := setupURLRepository(t)
		saved := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

		url, err := repo.Update(context.TODO(), saved.ID, entity.URLPatch{ShortURL: &shortURL, URLCode: &code})

		assert.NoError(t, err)
		assert.Equal(t, code, url.URLCode)
		assert.Equal(t, shortURL, url.ShortURL)
		assert.Equal(t, "https://example.com/a", url.OriginalURL)
		assert.NotNil(t, url.LastAccessed)

		_, err = repo.RetrieveByURLCode(context.TODO(), "a")
		assert.ErrorIs(t, err, entity.ErrURLNotFound)

		byCode, err := repo.RetrieveByURLCode(context.TODO(), code)
		assert.NoError(t, err)
		assert.Equal(t, saved.ID, byCode.ID)

		reused := saveURL(t, repo, "https://example.com/b", "https://tinyurl.com/a", "a")
		assert.NotEqual(t, saved.ID, reused.ID)
	})
}

func TestURLRepository_IncrementClicks(t *testing.T) {
	t.Run("url not found", func(t *testing.T) {
		repo := setupURLRepository(t)

		_, err := repo.IncrementClicksByID(context.TODO(), uuid.New())
		assert.ErrorIs(t, err, entity.ErrURLNotFound)

		_, err = repo.IncrementClicksByURLCode(context.TODO(), "missing")
		assert.ErrorIs(t, err, entity.ErrURLNotFound)
	})

	t.Run("concurrent clicks are all counted", func(t *testing.T) {
		repo := NewURLRepository()
		saved := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

		const n = 200

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					_, err := repo.IncrementClicksByID(context.TODO(), saved.ID)
					assert.NoError(t, err)
					return
				}
				_, err := repo.IncrementClicksByURLCode(context.TODO(), "a")
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		url, err := repo.RetrieveByID(context.TODO(), saved.ID)
		assert.NoError(t, err)
		assert.Equal(t, int64(n), url.Clicks)
		assert.NotNil(t, url.LastAccessed)
	})
}

func TestURLRepository_Remove(t *testing.T) {
	repo := setupURLRepository(t)
	saved := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")

	stored := repo.byID[saved.ID]

	removed, err := repo.Remove(context.TODO(), saved.ID)
	assert.NoError(t, err)
	assert.Equal(t, saved.ID, removed.ID)
	assert.Equal(t, *stored, *removed)
	assert.NotSame(t, stored, removed, "removed record must be a copy")

	_, err = repo.Remove(context.TODO(), saved.ID)
	assert.ErrorIs(t, err, entity.ErrURLNotFound)

	_, err = repo.RetrieveByURLCode(context.TODO(), "a")
	assert.ErrorIs(t, err, entity.ErrURLNotFound)

	saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")
}

func TestURLRepository_List(t *testing.T) {
	repo := setupURLRepository(t)

	urls, err := repo.List(context.TODO())
	assert.NoError(t, err)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)

	first := saveURL(t, repo, "https://example.com/a", "https://tinyurl.com/a", "a")
	second := saveURL(t, repo, "https://example.com/b", "https://tinyurl.com/b", "b")
	third := saveURL(t, repo, "https://example.com/c", "https://tinyurl.com/c", "c")

	urls, err = repo.List(context.TODO())
	assert.NoError(t, err)
	if assert.Len(t, urls, 3) {
		assert.Equal(t, third.ID, urls[0].ID)
		assert.Equal(t, second.ID, urls[1].ID)
		assert.Equal(t, first.ID, urls[2].ID)
	}
}
