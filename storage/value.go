package storage

import "time"

// Entry is one stored value with its expiration metadata
type Entry struct {
	Value     string
	TTL       time.Duration // 0 means no expiration
	CreatedAt time.Time

	// Generation changes on every Set so stale expiration
	// registrations can be told apart from the current entry.
	Generation uint64
}

// ExpiredAt reports whether the entry is past its TTL at now
func (e *Entry) ExpiredAt(now time.Time) bool {
	return e.TTL > 0 && now.Sub(e.CreatedAt) > e.TTL
}

// Deadline returns the instant after which the entry is expired
func (e *Entry) Deadline() time.Time {
	return e.CreatedAt.Add(e.TTL)
}
