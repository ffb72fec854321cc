package entity

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a change in the lifecycle of a URL record.
type EventType string

const (
	EventURLCreated      EventType = "url.created"
	EventURLAliasUpdated EventType = "url.alias_updated"
	EventURLClicked      EventType = "url.clicked"
	EventURLDeleted      EventType = "url.deleted"
)

// Event is a snapshot of a URL record taken when it changed.
type Event struct {
	Type        EventType `json:"type"`
	URLID       uuid.UUID `json:"url_id"`
	URLCode     string    `json:"url_code"`
	OriginalURL string    `json:"original_url"`
	ShortURL    string    `json:"short_url"`
	Clicks      int64     `json:"clicks"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewEvent(typ EventType, url *URL, at time.Time) Event {
	return Event{
		Type:        typ,
		URLID:       url.ID,
		URLCode:     url.URLCode,
		OriginalURL: url.OriginalURL,
		ShortURL:    url.ShortURL,
		Clicks:      url.Clicks,
		OccurredAt:  at,
	}
}
