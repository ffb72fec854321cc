// Package tinyurl is a client for the TinyURL "create" API. It mints a short
// link for a destination URL, optionally under a caller-chosen alias.
//
// The client never retries.
package tinyurl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultBaseURL = "https://api.tinyurl.com"
	DefaultDomain  = "tinyurl.com"

	defaultTimeout = 10 * time.Second
	maxBodySize    = 1 << 20
	redacted       = "[REDACTED]"
)

// Kind classifies a provider failure.
type Kind string

const (
	// KindTransport means the request never produced an HTTP response.
	KindTransport Kind = "transport"
	// KindRejected means the provider answered and refused the request, e.g. the alias is taken.
	KindRejected Kind = "rejected"
	// KindMalformed means the response did not have the expected shape.
	KindMalformed Kind = "malformed"
)

// Error is returned for every failed CreateShortLink call.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString("tinyurl: ")
	b.WriteString(string(e.Kind))
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// PublicMessage returns the provider's explanation of a rejection. It is
// empty for transport and malformed-response failures.
func (e *Error) PublicMessage() string {
	if e.Kind != KindRejected {
		return ""
	}
	return e.Message
}

// IsRejected reports whether err is a provider rejection.
func IsRejected(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == KindRejected
}

type Client struct {
	baseURL    string
	apiKey     string
	domain     string
	httpClient *http.Client
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

func WithDomain(domain string) Option {
	return func(c *Client) {
		c.domain = domain
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient = &http.Client{Timeout: d}
	}
}

func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		apiKey:     apiKey,
		domain:     DefaultDomain,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

type createRequest struct {
	URL    string `json:"url"`
	Domain string `json:"domain,omitempty"`
	Alias  string `json:"alias,omitempty"`
}

// createResponse keeps data raw: rejections send it as an empty array.
type createResponse struct {
	Data   json.RawMessage `json:"data"`
	Code   int             `json:"code"`
	Errors []string        `json:"errors"`
}

type createData struct {
	TinyURL string `json:"tiny_url"`
	Alias   string `json:"alias"`
}

// CreateShortLink asks the provider for a short link to originalURL. An empty
// alias lets the provider choose one. It returns the full short URL.
func (c *Client) CreateShortLink(ctx context.Context, originalURL, alias string) (string, error) {
	const op = "adapter.provider.tinyurl.Client.CreateShortLink"

	body, err := json.Marshal(createRequest{URL: originalURL, Domain: c.domain, Alias: alias})
	if err != nil {
		return "", fmt.Errorf("%s: failed to encode request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/create", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%s: failed to build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, &Error{
			Kind:    KindTransport,
			Message: c.redact(err.Error()),
		})
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, &Error{
			Kind:       KindTransport,
			StatusCode: resp.StatusCode,
			Message:    c.redact(err.Error()),
		})
	}

	shortURL, perr := c.parse(resp.StatusCode, raw)
	if perr != nil {
		return "", fmt.Errorf("%s: %w", op, perr)
	}

	return shortURL, nil
}

func (c *Client) parse(status int, raw []byte) (string, *Error) {
	ok := status >= 200 && status < 300

	var body createResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		if !ok {
			return "", &Error{Kind: KindRejected, StatusCode: status, Message: http.StatusText(status)}
		}
		return "", &Error{Kind: KindMalformed, StatusCode: status, Message: "response body is not valid json"}
	}

	if len(body.Errors) > 0 || !ok {
		msg := strings.Join(body.Errors, "; ")
		if msg == "" {
			msg = http.StatusText(status)
		}
		return "", &Error{Kind: KindRejected, StatusCode: status, Message: c.redact(msg)}
	}

	var data createData
	if len(body.Data) == 0 || json.Unmarshal(body.Data, &data) != nil || data.TinyURL == "" {
		return "", &Error{Kind: KindMalformed, StatusCode: status, Message: "response has no data.tiny_url"}
	}

	return data.TinyURL, nil
}

func (c *Client) redact(s string) string {
	if c.apiKey == "" {
		return s
	}
	return strings.ReplaceAll(s, c.apiKey, redacted)
}
