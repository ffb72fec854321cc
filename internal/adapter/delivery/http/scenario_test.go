package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gavv/httpexpect/v2"
	"github.com/go-chi/httplog/v2"
	"github.com/stretchr/testify/suite"
	"github.com/vadimbarashkov/tinylink/internal/adapter/provider/tinyurl"
	"github.com/vadimbarashkov/tinylink/internal/adapter/repository/memory"
	"github.com/vadimbarashkov/tinylink/internal/usecase"
)

// fakeProvider mimics the TinyURL create endpoint. Aliases listed in taken
// are rejected the way the real API rejects them.
type fakeProvider struct {
	calls atomic.Int32
	seq   atomic.Int32
	taken map[string]bool
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.calls.Add(1)

	var req struct {
		URL   string `json:"url"`
		Alias string `json:"alias"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if p.taken[req.Alias] {
		w.WriteHeader(http.StatusUnprocessableEntity)
		fmt.Fprint(w, `{"data":[],"code":5,"errors":["Alias is not available."]}`)
		return
	}

	alias := req.Alias
	if alias == "" {
		alias = fmt.Sprintf("gen%04d", p.seq.Add(1))
	}

	fmt.Fprintf(w, `{"data":{"tiny_url":"https://tinyurl.com/%s","alias":%q},"code":0,"errors":[]}`, alias, alias)
}

type ScenarioTestSuite struct {
	suite.Suite
	provider *fakeProvider
	e        *httpexpect.Expect
}

func (suite *ScenarioTestSuite) SetupSubTest() {
	suite.provider = &fakeProvider{taken: map[string]bool{"taken": true}}
	providerServer := httptest.NewServer(suite.provider)
	suite.T().Cleanup(providerServer.Close)

	client := tinyurl.New("test-key", tinyurl.WithBaseURL(providerServer.URL))
	uc := usecase.New(memory.NewURLRepository(), client)

	router := NewRouter(httplog.NewLogger("", httplog.Options{Writer: io.Discard}), uc, Options{})
	server := httptest.NewServer(router)
	suite.T().Cleanup(server.Close)

	suite.e = newExpect(suite.T(), server.URL)
}

func (suite *ScenarioTestSuite) shorten(originalURL string) *httpexpect.Object {
	return suite.e.POST("/api/shorten").
		WithJSON(map[string]string{"originalUrl": originalURL}).
		Expect().
		Status(http.StatusOK).
		JSON().Object()
}

func (suite *ScenarioTestSuite) TestShorten() {
	suite.Run("new url", func() {
		rec := suite.shorten("https://example.com/a")

		rec.HasValue("originalUrl", "https://example.com/a")
		rec.HasValue("shortUrl", "https://tinyurl.com/gen0001")
		rec.HasValue("clicks", 0)
		rec.Value("urlCode").String().NotEmpty()
		rec.NotContainsKey("lastAccessed")
	})

	suite.Run("same url twice", func() {
		first := suite.shorten("https://example.com/a")
		second := suite.shorten("https://example.com/a")

		second.HasValue("id", first.Value("id").Raw())
		suite.Equal(int32(1), suite.provider.calls.Load())

		suite.e.GET("/api/urls").
			Expect().
			Status(http.StatusOK).
			JSON().Array().Length().IsEqual(1)
	})

	suite.Run("malformed url", func() {
		suite.e.POST("/api/shorten").
			WithJSON(map[string]string{"originalUrl": "example.com/no-scheme"}).
			Expect().
			Status(http.StatusBadRequest)

		suite.Zero(suite.provider.calls.Load())
		suite.e.GET("/api/urls").
			Expect().
			JSON().Array().IsEmpty()
	})
}

func (suite *ScenarioTestSuite) TestRedirect() {
	suite.Run("counts a click", func() {
		rec := suite.shorten("https://example.com/a")
		code := rec.Value("urlCode").String().Raw()

		suite.e.GET("/" + code).
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/a")

		stats := suite.e.GET("/api/analytics/" + code).
			Expect().
			Status(http.StatusOK).
			JSON().Object()

		stats.HasValue("clicks", 1)
		stats.ContainsKey("lastAccessed")
	})

	suite.Run("unknown code", func() {
		suite.e.GET("/missing").
			Expect().
			Status(http.StatusNotFound)
	})

	suite.Run("concurrent clicks", func() {
		const n = 40

		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()
		code := rec.Value("urlCode").String().Raw()

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					suite.e.GET("/" + code).Expect().Status(http.StatusFound)
				} else {
					suite.e.POST("/api/url/" + id + "/click").Expect().Status(http.StatusOK)
				}
			}(i)
		}
		wg.Wait()

		suite.e.GET("/api/analytics/" + code).
			Expect().
			JSON().Object().
			HasValue("clicks", n)
	})
}

func (suite *ScenarioTestSuite) TestUpdateAlias() {
	suite.Run("custom alias", func() {
		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()
		oldShortURL := rec.Value("shortUrl").String().Raw()

		suite.e.PUT("/api/url/update/" + id).
			WithJSON(map[string]string{"customUrl": "my-link"}).
			Expect().
			Status(http.StatusOK)

		listed := suite.e.GET("/api/urls").
			Expect().
			Status(http.StatusOK).
			JSON().Array()

		listed.Length().IsEqual(1)
		item := listed.Value(0).Object()
		item.HasValue("urlCode", "my-link")
		item.HasValue("shortUrl", "https://tinyurl.com/my-link")
		item.Value("shortUrl").String().NotEqual(oldShortURL)
		item.ContainsKey("lastAccessed")

		suite.e.GET("/my-link").
			Expect().
			Status(http.StatusFound).
			Header("Location").IsEqual("https://example.com/a")
	})

	suite.Run("invalid alias", func() {
		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()
		calls := suite.provider.calls.Load()

		suite.e.PUT("/api/url/update/" + id).
			WithJSON(map[string]string{"customUrl": "bad alias!"}).
			Expect().
			Status(http.StatusBadRequest)

		suite.Equal(calls, suite.provider.calls.Load())

		item := suite.e.GET("/api/urls").
			Expect().
			JSON().Array().Value(0).Object()

		item.HasValue("urlCode", rec.Value("urlCode").Raw())
		item.HasValue("shortUrl", rec.Value("shortUrl").Raw())
		item.NotContainsKey("lastAccessed")
	})

	suite.Run("reserved alias", func() {
		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()
		calls := suite.provider.calls.Load()

		suite.e.PUT("/api/url/update/" + id).
			WithJSON(map[string]string{"customUrl": "api"}).
			Expect().
			Status(http.StatusBadRequest).
			JSON().Object().
			HasValue("error", "custom url is reserved")

		suite.Equal(calls, suite.provider.calls.Load())
	})

	suite.Run("alias taken by provider", func() {
		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()

		suite.e.PUT("/api/url/update/" + id).
			WithJSON(map[string]string{"customUrl": "taken"}).
			Expect().
			Status(http.StatusInternalServerError).
			JSON().Object().
			HasValue("details", "Alias is not available.")
	})

	suite.Run("alias used by another record", func() {
		first := suite.shorten("https://example.com/a")
		second := suite.shorten("https://example.com/b")

		suite.e.PUT("/api/url/update/" + first.Value("id").String().Raw()).
			WithJSON(map[string]string{"customUrl": "shared"}).
			Expect().
			Status(http.StatusOK)

		suite.e.PUT("/api/url/update/" + second.Value("id").String().Raw()).
			WithJSON(map[string]string{"customUrl": "shared"}).
			Expect().
			Status(http.StatusConflict)
	})
}

func (suite *ScenarioTestSuite) TestDelete() {
	suite.Run("existing and missing", func() {
		rec := suite.shorten("https://example.com/a")
		id := rec.Value("id").String().Raw()

		suite.e.DELETE("/api/url/" + id).
			Expect().
			Status(http.StatusOK).
			JSON().Object().
			Value("deletedUrl").Object().HasValue("id", id)

		suite.e.DELETE("/api/url/" + id).
			Expect().
			Status(http.StatusNotFound)

		suite.e.GET("/api/urls").
			Expect().
			JSON().Array().IsEmpty()
	})
}

func TestScenarios(t *testing.T) {
	suite.Run(t, new(ScenarioTestSuite))
}
