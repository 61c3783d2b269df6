package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// EventStatusUpcoming is the default event status
const EventStatusUpcoming = "upcoming"

// EventRecord is a calendar-style item collected from event providers
type EventRecord struct {
	UniqueHash  string
	Title       string
	Category    string
	Subcategory string
	StartsAt    time.Time
	EndsAt      *time.Time
	Source      string
	Link        string
	Importance  float64
	Description string
	Location    string
	Organizer   string
	Status      string
	Metadata    map[string]any
}

// EventHash computes SHA-256(lower(title) | isoformat(starts_at) | lower(source)).
// starts_at is normalised to UTC so equivalent instants in different zones hash the same.
func EventHash(title string, startsAt time.Time, source string) string {
	key := strings.ToLower(strings.TrimSpace(title)) + "|" + ISOFormat(startsAt) + "|" + strings.ToLower(strings.TrimSpace(source))
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// ISOFormat renders t in UTC as "YYYY-MM-DDTHH:MM:SS[.ffffff]+00:00"
func ISOFormat(t time.Time) string {
	t = t.UTC()
	if t.Nanosecond()/1000 != 0 {
		return t.Format("2006-01-02T15:04:05.000000") + "+00:00"
	}
	return t.Format("2006-01-02T15:04:05") + "+00:00"
}
