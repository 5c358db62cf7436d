package models

type Message struct {
	ID     string `json:"id"`
	Thread string `json:"thread"`
	// CreatedAt is a millisecond epoch timestamp, set once at creation.
	// It is the sole ordering key within a thread.
	CreatedAt int64 `json:"created_at"`
	Blob      Blob  `json:"blob"`
}
