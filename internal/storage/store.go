package storage

import (
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrSubscriberNotFound is returned when deleting a subscriber that does
// not exist.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// Store handles earthquake and subscriber database operations.
type Store struct {
	db *Database
}

// NewStore creates a new store.
func NewStore(db *Database) *Store {
	return &Store{db: db}
}

// InsertIfAbsent inserts the given earthquakes, skipping ids that already
// exist. Existing rows are never updated, so a re-fetch of the same event
// cannot reset its notified flag. The whole batch runs in one transaction.
func (s *Store) InsertIfAbsent(quakes []Earthquake) error {
	if len(quakes) == 0 {
		return nil
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO earthquakes (id, location, magnitude, event_time, url)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`
	for _, q := range quakes {
		if _, err := tx.Exec(query, q.ID, q.Location, q.Magnitude, q.EventTime, q.URL); err != nil {
			return fmt.Errorf("failed to insert earthquake %s: %w", q.ID, err)
		}
	}

	return tx.Commit()
}

// Unnotified returns every earthquake that has not been announced yet.
func (s *Store) Unnotified() ([]Earthquake, error) {
	var quakes []Earthquake
	query := `SELECT * FROM earthquakes WHERE notified = 0 ORDER BY event_time`
	err := s.db.Select(&quakes, query)
	return quakes, err
}

// MarkNotified sets the notified flag for exactly the given ids. Ids not
// present in the table are silently ignored.
func (s *Store) MarkNotified(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	query, args, err := sqlx.In(`UPDATE earthquakes SET notified = 1 WHERE id IN (?)`, ids)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(s.db.Rebind(query), args...)
	return err
}

// AllChatIDs returns the chat id of every current subscriber.
func (s *Store) AllChatIDs() ([]int64, error) {
	var ids []int64
	err := s.db.Select(&ids, `SELECT chat_id FROM users`)
	return ids, err
}

// UpsertSubscriber creates a subscriber or updates its username in place.
func (s *Store) UpsertSubscriber(chatID int64, username string) error {
	query := `
		INSERT INTO users (chat_id, username)
		VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET username = excluded.username
	`
	_, err := s.db.Exec(query, chatID, username)
	return err
}

// DeleteSubscriber removes a subscriber.
func (s *Store) DeleteSubscriber(chatID int64) error {
	result, err := s.db.Exec(`DELETE FROM users WHERE chat_id = ?`, chatID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSubscriberNotFound
	}
	return nil
}

// Stats returns count, max and average magnitude over all earthquakes.
func (s *Store) Stats() (Stats, error) {
	var st Stats
	query := `
		SELECT COUNT(*) AS total,
		       COALESCE(MAX(magnitude), 0) AS max_mag,
		       COALESCE(AVG(magnitude), 0) AS avg_mag
		FROM earthquakes
	`
	err := s.db.Get(&st, query)
	return st, err
}
