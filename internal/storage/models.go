// Package storage provides database operations and data models.
package storage

import (
	"database/sql"
	"time"
)

// Earthquake represents one seismic event as normalized from the feed.
type Earthquake struct {
	ID        string        `db:"id"`
	Location  string        `db:"location"`
	Magnitude float64       `db:"magnitude"`
	EventTime time.Time     `db:"event_time"`
	URL       string        `db:"url"`
	Radius    sql.NullInt64 `db:"radius"` // reserved, never set by ingestion
	Notified  bool          `db:"notified"`
}

// Subscriber represents a chat that has opted into notifications.
type Subscriber struct {
	ChatID       int64        `db:"chat_id"`
	Username     string       `db:"username"`
	LastNotified sql.NullTime `db:"last_notified"` // reserved
}

// Stats aggregates the recorded earthquakes for the /stats command.
type Stats struct {
	Total        int64   `db:"total"`
	MaxMagnitude float64 `db:"max_mag"`
	AvgMagnitude float64 `db:"avg_mag"`
}
