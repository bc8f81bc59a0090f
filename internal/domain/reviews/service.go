package reviews

import (
	"context"
	"errors"
	"strings"

	"crave/internal/domain/venues"
	"crave/internal/venuelock"

	"go.uber.org/zap"
)

// Service owns every rating-affecting review mutation. Each one runs inside
// the venue's exclusive section, writes the review store, re-reads the full
// review set and stores the fresh mean on the venue, so the materialized
// rating can never drift from the reviews it is derived from.
type Service struct {
	store  Store
	venues venues.Store
	locks  *venuelock.Map
	logger *zap.SugaredLogger
}

func NewService(store Store, venueStore venues.Store, locks *venuelock.Map, logger *zap.SugaredLogger) *Service {
	return &Service{
		store:  store,
		venues: venueStore,
		locks:  locks,
		logger: logger,
	}
}

// Submit creates the actor's review for a venue. A user gets one review per
// venue: the duplicate check and the insert happen inside the venue lock so
// two racing submissions cannot both pass the check.
func (s *Service) Submit(ctx context.Context, venueID int64, actor Actor, rating int, comment string) (*Review, error) {
	if err := validateRating(rating); err != nil {
		return nil, err
	}
	if err := validateComment(comment); err != nil {
		return nil, err
	}

	review := &Review{
		VenueID:  venueID,
		AuthorID: actor.ID,
		Rating:   rating,
		Comment:  comment,
	}

	err := s.locks.WithLock(ctx, venueID, func(ctx context.Context) error {
		exists, err := s.venues.Exists(ctx, venueID)
		if err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}

		_, err = s.store.GetByVenueAndAuthor(ctx, venueID, actor.ID)
		if err == nil {
			return ErrDuplicateReview
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		if err := s.store.Create(ctx, review); err != nil {
			return err
		}

		return s.recomputeRating(ctx, venueID)
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}

// Edit updates the review's rating and/or comment. Only the author (or an
// elevated actor) may edit; the check runs inside the venue lock together
// with the write and the recompute.
func (s *Service) Edit(ctx context.Context, reviewID int64, actor Actor, payload EditPayload) (*Review, error) {
	if payload.Rating != nil {
		if err := validateRating(*payload.Rating); err != nil {
			return nil, err
		}
	}
	if payload.Comment != nil {
		if err := validateComment(*payload.Comment); err != nil {
			return nil, err
		}
	}

	// First fetch only resolves which venue to lock; every check is redone
	// inside the section.
	current, err := s.store.GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	venueID := current.VenueID

	var review *Review
	err = s.locks.WithLock(ctx, venueID, func(ctx context.Context) error {
		review, err = s.store.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if err := authorize(review, actor); err != nil {
			return err
		}

		if payload.Rating != nil {
			review.Rating = *payload.Rating
		}
		if payload.Comment != nil {
			review.Comment = *payload.Comment
		}

		if err := s.store.Update(ctx, review); err != nil {
			return err
		}

		return s.recomputeRating(ctx, venueID)
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}

// Delete removes the review and recomputes the venue's rating; deleting the
// last review resets the rating to zero.
func (s *Service) Delete(ctx context.Context, reviewID int64, actor Actor) error {
	current, err := s.store.GetByID(ctx, reviewID)
	if err != nil {
		return err
	}
	venueID := current.VenueID

	return s.locks.WithLock(ctx, venueID, func(ctx context.Context) error {
		review, err := s.store.GetByID(ctx, reviewID)
		if err != nil {
			return err
		}
		if err := authorize(review, actor); err != nil {
			return err
		}

		if err := s.store.Delete(ctx, reviewID); err != nil {
			return err
		}

		return s.recomputeRating(ctx, venueID)
	})
}

// ToggleLike flips the user's like on a review. Likes don't touch the mean,
// so this skips the venue lock entirely; the store toggle is atomic and a
// same-user race is last-write-wins.
func (s *Service) ToggleLike(ctx context.Context, reviewID, userID int64) (*Review, error) {
	if _, err := s.store.GetByID(ctx, reviewID); err != nil {
		return nil, err
	}
	return s.store.ToggleLike(ctx, reviewID, userID)
}

// ListByVenue returns all reviews for a venue, newest first.
func (s *Service) ListByVenue(ctx context.Context, venueID int64) ([]Review, error) {
	exists, err := s.venues.Exists(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.store.ListByVenue(ctx, venueID)
}

// recomputeRating derives the venue's rating from the full current review
// set. Always from scratch, never incrementally, so repeated mutations cannot
// accumulate drift. Must be called inside the venue's lock.
func (s *Service) recomputeRating(ctx context.Context, venueID int64) error {
	list, err := s.store.ListByVenue(ctx, venueID)
	if err != nil {
		return err
	}

	var mean float64
	if len(list) > 0 {
		sum := 0
		for _, rv := range list {
			sum += rv.Rating
		}
		mean = float64(sum) / float64(len(list))
	}

	if err := s.venues.SetRating(ctx, venueID, mean); err != nil {
		return err
	}

	s.logger.Debugw("venue rating recomputed", "venue_id", venueID, "reviews", len(list), "rating", mean)
	return nil
}

func authorize(review *Review, actor Actor) error {
	if review.AuthorID != actor.ID && !actor.Elevated {
		return ErrForbidden
	}
	return nil
}

func validateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return ErrRatingOutOfRange
	}
	return nil
}

func validateComment(comment string) error {
	if strings.TrimSpace(comment) == "" {
		return ErrCommentRequired
	}
	return nil
}
