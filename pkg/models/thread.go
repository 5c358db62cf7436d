package models

type Thread struct {
	ID string `json:"id"`
	// Title is user-supplied at creation and immutable afterwards.
	Title string `json:"title"`
	// LastUpdatedAt is a millisecond epoch timestamp, bumped whenever a
	// message is added to or removed from the thread.
	LastUpdatedAt int64 `json:"last_updated_at"`
}
