package venues

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("resource not found")
	QueryTimeoutDuration = time.Second * 5
)

// Venue is a place users review. Rating is derived from the venue's reviews
// and is only ever written through SetRating; clients never set it directly.
type Venue struct {
	ID          int64     `json:"id"`
	CreatorID   int64     `json:"creator_id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	ImageURLs   []string  `json:"image_urls,omitempty"`
	Rating      float64   `json:"rating"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Joined fields
	CreatorName string `json:"creator_name,omitempty"`
}
