package models

// Blob is one finalized recording: an opaque byte buffer plus the media-type
// tag chosen at capture-finalize time.
type Blob struct {
	MediaType string `json:"media_type"`
	Data      []byte `json:"data"`
}

// Size returns the byte length of the audio payload.
func (b Blob) Size() int64 { return int64(len(b.Data)) }

// Empty reports whether the blob carries no audio at all.
func (b Blob) Empty() bool { return len(b.Data) == 0 }
