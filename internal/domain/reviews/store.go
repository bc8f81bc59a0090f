package reviews

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, review *Review) error
	GetByID(ctx context.Context, reviewID int64) (*Review, error)
	ListByVenue(ctx context.Context, venueID int64) ([]Review, error)
	GetByVenueAndAuthor(ctx context.Context, venueID, authorID int64) (*Review, error)
	Update(ctx context.Context, review *Review) error
	Delete(ctx context.Context, reviewID int64) error
	ToggleLike(ctx context.Context, reviewID, userID int64) (*Review, error)
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, review *Review) error {
	query := `
		INSERT INTO reviews (venue_id, author_id, rating, comment)
		VALUES ($1, $2, $3, $4)
		RETURNING id, liked_by, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.db.QueryRow(ctx, query,
		review.VenueID,
		review.AuthorID,
		review.Rating,
		review.Comment,
	).Scan(&review.ID, &review.LikedBy, &review.CreatedAt, &review.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, reviewID int64) (*Review, error) {
	query := `
		SELECT id, venue_id, author_id, rating, comment, liked_by, created_at, updated_at
		FROM reviews
		WHERE id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := r.db.QueryRow(ctx, query, reviewID).Scan(
		&review.ID,
		&review.VenueID,
		&review.AuthorID,
		&review.Rating,
		&review.Comment,
		&review.LikedBy,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (r *Repository) ListByVenue(ctx context.Context, venueID int64) ([]Review, error) {
	query := `
		SELECT rv.id, rv.venue_id, rv.author_id, rv.rating, rv.comment,
		       rv.liked_by, rv.created_at, rv.updated_at, u.name
		FROM reviews rv
		JOIN users u ON u.id = rv.author_id
		WHERE rv.venue_id = $1
		ORDER BY rv.created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query, venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var review Review
		err := rows.Scan(
			&review.ID,
			&review.VenueID,
			&review.AuthorID,
			&review.Rating,
			&review.Comment,
			&review.LikedBy,
			&review.CreatedAt,
			&review.UpdatedAt,
			&review.AuthorName,
		)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *Repository) GetByVenueAndAuthor(ctx context.Context, venueID, authorID int64) (*Review, error) {
	query := `
		SELECT id, venue_id, author_id, rating, comment, liked_by, created_at, updated_at
		FROM reviews
		WHERE venue_id = $1 AND author_id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := r.db.QueryRow(ctx, query, venueID, authorID).Scan(
		&review.ID,
		&review.VenueID,
		&review.AuthorID,
		&review.Rating,
		&review.Comment,
		&review.LikedBy,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}

func (r *Repository) Update(ctx context.Context, review *Review) error {
	query := `
		UPDATE reviews
		SET rating = $1, comment = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	err := r.db.QueryRow(ctx, query, review.Rating, review.Comment, review.ID).Scan(&review.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// Delete removes the review. Deleting an already absent review is not an
// error.
func (r *Repository) Delete(ctx context.Context, reviewID int64) error {
	query := `DELETE FROM reviews WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, reviewID)
	return err
}

// ToggleLike flips the user's membership in the review's liked_by set in a
// single statement, so concurrent toggles can never corrupt the set. When the
// same user races their own toggle, the last write wins.
func (r *Repository) ToggleLike(ctx context.Context, reviewID, userID int64) (*Review, error) {
	query := `
		UPDATE reviews
		SET liked_by = CASE
		        WHEN $2::bigint = ANY(liked_by) THEN array_remove(liked_by, $2::bigint)
		        ELSE array_append(liked_by, $2::bigint)
		    END
		WHERE id = $1
		RETURNING id, venue_id, author_id, rating, comment, liked_by, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var review Review
	err := r.db.QueryRow(ctx, query, reviewID, userID).Scan(
		&review.ID,
		&review.VenueID,
		&review.AuthorID,
		&review.Rating,
		&review.Comment,
		&review.LikedBy,
		&review.CreatedAt,
		&review.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &review, nil
}
