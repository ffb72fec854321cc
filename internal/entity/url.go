// Package entity defines the URL mapping record kept by the service, the
// partial update applied to it and the errors shared by every layer.
package entity

import (
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/google/uuid"
)

// URL is a stored mapping from an original URL to the short URL minted by the provider.
type URL struct {
	ID           uuid.UUID  // ID is assigned by the store on creation and never changes.
	OriginalURL  string     // OriginalURL is the destination; it is not editable.
	ShortURL     string     // ShortURL is the full short link returned by the provider.
	URLCode      string     // URLCode is the unique path segment used by the local redirect.
	Clicks       int64      // Clicks counts dereferences of the link and only grows.
	CreatedAt    time.Time  // CreatedAt is set once when the record is stored.
	LastAccessed *time.Time // LastAccessed is nil until the first click or alias edit.
}

// Validate checks the fields a store requires before inserting the record.
func (u *URL) Validate() error {
	if !IsAbsoluteURL(u.OriginalURL) {
		return fmt.Errorf("original url: %w", ErrInvalidURL)
	}
	if !IsAbsoluteURL(u.ShortURL) {
		return fmt.Errorf("short url: %w", ErrInvalidURL)
	}
	if !IsValidAlias(u.URLCode) {
		return fmt.Errorf("url code: %w", ErrInvalidAlias)
	}
	return nil
}

// URLPatch lists the fields of a URL that may be replaced after creation.
// Nil fields are left untouched.
type URLPatch struct {
	ShortURL *string
	URLCode  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p URLPatch) IsEmpty() bool {
	return p.ShortURL == nil && p.URLCode == nil
}

// Apply copies the set fields of the patch onto u.
func (p URLPatch) Apply(u *URL) {
	if p.ShortURL != nil {
		u.ShortURL = *p.ShortURL
	}
	if p.URLCode != nil {
		u.URLCode = *p.URLCode
	}
}

var aliasPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// IsValidAlias reports whether s can be used as a url code.
func IsValidAlias(s string) bool {
	return aliasPattern.MatchString(s)
}

// reservedAliases are the first path segments owned by fixed HTTP routes. A
// url code equal to one of them could never be reached by the redirect route.
var reservedAliases = map[string]bool{
	"api":     true,
	"docs":    true,
	"swagger": true,
}

func IsReservedAlias(s string) bool {
	return reservedAliases[s]
}

// IsAbsoluteURL reports whether s parses as a URL with both a scheme and a host.
func IsAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}
