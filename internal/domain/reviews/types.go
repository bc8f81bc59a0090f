package reviews

import (
	"errors"
	"time"
)

var (
	ErrNotFound          = errors.New("resource not found")
	ErrForbidden         = errors.New("not allowed to modify this review")
	ErrDuplicateReview   = errors.New("venue already reviewed by this user")
	ErrRatingOutOfRange  = errors.New("rating must be between 1 and 5")
	ErrCommentRequired   = errors.New("comment must not be empty")
	QueryTimeoutDuration = time.Second * 5
)

type Review struct {
	ID        int64     `json:"id"`
	VenueID   int64     `json:"venue_id"`
	AuthorID  int64     `json:"author_id"`
	Rating    int       `json:"rating"` // 1-5
	Comment   string    `json:"comment"`
	LikedBy   []int64   `json:"liked_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Joined fields
	AuthorName string `json:"author_name,omitempty"`
}

// Likes is the number of distinct users who liked the review. There is no
// separate counter; membership in LikedBy is the only state.
func (r *Review) Likes() int {
	return len(r.LikedBy)
}

func (r *Review) LikedByUser(userID int64) bool {
	for _, id := range r.LikedBy {
		if id == userID {
			return true
		}
	}
	return false
}

// Actor identifies who is performing a mutation. Elevated actors (admins) may
// edit or delete reviews they did not write.
type Actor struct {
	ID       int64
	Elevated bool
}

// EditPayload carries the mutable review fields; nil means "leave unchanged".
type EditPayload struct {
	Rating  *int
	Comment *string
}
