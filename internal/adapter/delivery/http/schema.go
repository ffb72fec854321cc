package http

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/vadimbarashkov/tinylink/internal/entity"
)

const statusError = "error"

type shortenRequest struct {
	OriginalURL string `json:"originalUrl" validate:"required"`
}

type updateAliasRequest struct {
	CustomURL string `json:"customUrl" validate:"required,alias"`
}

type urlResponse struct {
	ID           uuid.UUID  `json:"id"`
	OriginalURL  string     `json:"originalUrl"`
	ShortURL     string     `json:"shortUrl"`
	URLCode      string     `json:"urlCode"`
	Clicks       int64      `json:"clicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

func toURLResponse(url *entity.URL) urlResponse {
	return urlResponse{
		ID:           url.ID,
		OriginalURL:  url.OriginalURL,
		ShortURL:     url.ShortURL,
		URLCode:      url.URLCode,
		Clicks:       url.Clicks,
		CreatedAt:    url.CreatedAt,
		LastAccessed: url.LastAccessed,
	}
}

func toURLListResponse(urls []entity.URL) []urlResponse {
	resp := make([]urlResponse, 0, len(urls))
	for i := range urls {
		resp = append(resp, toURLResponse(&urls[i]))
	}
	return resp
}

type clicksResponse struct {
	Clicks int64 `json:"clicks"`
}

type deleteResponse struct {
	Message    string      `json:"message"`
	DeletedURL urlResponse `json:"deletedUrl"`
}

// urlStatsResponse is the analytics view of a record. It carries no id.
type urlStatsResponse struct {
	URLCode      string     `json:"urlCode"`
	OriginalURL  string     `json:"originalUrl"`
	ShortURL     string     `json:"shortUrl"`
	Clicks       int64      `json:"clicks"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastAccessed *time.Time `json:"lastAccessed,omitempty"`
}

func toURLStatsResponse(url *entity.URL) urlStatsResponse {
	return urlStatsResponse{
		URLCode:      url.URLCode,
		OriginalURL:  url.OriginalURL,
		ShortURL:     url.ShortURL,
		Clicks:       url.Clicks,
		CreatedAt:    url.CreatedAt,
		LastAccessed: url.LastAccessed,
	}
}

type validationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// errorResponse repeats Message under "error" for clients of the original API.
type errorResponse struct {
	Status  string            `json:"status"`
	Message string            `json:"message"`
	Error   string            `json:"error"`
	Details string            `json:"details,omitempty"`
	Errors  []validationError `json:"errors,omitempty"`
}

func newErrorResponse(message string) errorResponse {
	return errorResponse{
		Status:  statusError,
		Message: message,
		Error:   message,
	}
}

var (
	emptyRequestBodyResponse = newErrorResponse("empty request body")

	invalidRequestBodyResponse = newErrorResponse("invalid request body")

	invalidIDResponse = newErrorResponse("invalid id format")

	invalidURLResponse = newErrorResponse("invalid url format")

	invalidAliasResponse = newErrorResponse("custom url may only contain letters, digits, '-' and '_'")

	urlNotFoundResponse = newErrorResponse("url not found")

	reservedAliasResponse = newErrorResponse("custom url is reserved")

	urlConflictResponse = newErrorResponse("short url or url code already in use")

	tooManyRequestsResponse = newErrorResponse("too many requests")

	serverErrorResponse = newErrorResponse("server error occurred")
)

func upstreamErrorResponse(details string) errorResponse {
	resp := newErrorResponse("shortening provider error")
	resp.Details = details
	return resp
}

func messageForTag(tag string) string {
	switch tag {
	case "required":
		return "this field is required"
	case "alias":
		return "may only contain letters, digits, '-' and '_'"
	default:
		return "invalid value"
	}
}

func getValidationErrors(err error) []validationError {
	var validationErrs []validationError

	var errs validator.ValidationErrors
	if errors.As(err, &errs) {
		for _, e := range errs {
			validationErrs = append(validationErrs, validationError{
				Field:   e.Field(),
				Message: messageForTag(e.Tag()),
			})
		}
	}

	return validationErrs
}

func validationErrorResponse(err error) errorResponse {
	resp := newErrorResponse("validation error")
	resp.Errors = getValidationErrors(err)
	return resp
}
