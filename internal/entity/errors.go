package entity

import "errors"

var (
	// ErrURLNotFound is returned when no record matches the given id or url code.
	ErrURLNotFound = errors.New("url not found")
	// ErrInvalidID is returned when an identifier does not have the store's key format.
	ErrInvalidID = errors.New("invalid id format")
	// ErrInvalidURL is returned when a URL is empty or not absolute.
	ErrInvalidURL = errors.New("invalid url")
	// ErrInvalidAlias is returned when an alias does not match [A-Za-z0-9_-]+.
	ErrInvalidAlias = errors.New("invalid alias")
	// ErrReservedAlias is returned when an alias collides with a fixed route.
	ErrReservedAlias = errors.New("alias is reserved")

	// ErrURLCodeExists is returned when another record already uses the url code.
	ErrURLCodeExists = errors.New("url code exists")
	// ErrShortURLExists is returned when another record already uses the short url.
	ErrShortURLExists = errors.New("short url exists")
	// ErrOriginalURLExists is returned when the original url has already been shortened.
	ErrOriginalURLExists = errors.New("original url exists")

	// ErrUpstream wraps failures of the shortening provider.
	ErrUpstream = errors.New("shortening provider error")
	// ErrMaxRetriesExceeded is returned when no free url code was found.
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded for generating url code")
)
