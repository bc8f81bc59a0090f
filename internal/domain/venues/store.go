package venues

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store interface {
	Create(ctx context.Context, venue *Venue) error
	GetByID(ctx context.Context, venueID int64) (*Venue, error)
	List(ctx context.Context) ([]Venue, error)
	Update(ctx context.Context, venueID int64, updateData map[string]interface{}) error
	Delete(ctx context.Context, venueID int64) error
	Exists(ctx context.Context, venueID int64) (bool, error)
	SetRating(ctx context.Context, venueID int64, rating float64) error
	IsCreator(ctx context.Context, venueID, userID int64) (bool, error)
	AddPhotoURL(ctx context.Context, venueID int64, photoURL string) error
	RemovePhotoURL(ctx context.Context, venueID int64, photoURL string) error
}

type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Store {
	return &Repository{db: db}
}

func (r *Repository) Create(ctx context.Context, venue *Venue) error {
	query := `
		INSERT INTO venues (creator_id, name, location, description, image_urls)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, rating, created_at, updated_at
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	return r.db.QueryRow(
		ctx, query,
		venue.CreatorID,
		venue.Name,
		venue.Location,
		venue.Description,
		venue.ImageURLs,
	).Scan(&venue.ID, &venue.Rating, &venue.CreatedAt, &venue.UpdatedAt)
}

func (r *Repository) GetByID(ctx context.Context, venueID int64) (*Venue, error) {
	query := `
		SELECT v.id, v.creator_id, v.name, v.location, v.description,
		       v.image_urls, v.rating, v.created_at, v.updated_at, u.name
		FROM venues v
		JOIN users u ON u.id = v.creator_id
		WHERE v.id = $1
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var v Venue
	err := r.db.QueryRow(ctx, query, venueID).Scan(
		&v.ID,
		&v.CreatorID,
		&v.Name,
		&v.Location,
		&v.Description,
		&v.ImageURLs,
		&v.Rating,
		&v.CreatedAt,
		&v.UpdatedAt,
		&v.CreatorName,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &v, nil
}

func (r *Repository) List(ctx context.Context) ([]Venue, error) {
	query := `
		SELECT v.id, v.creator_id, v.name, v.location, v.description,
		       v.image_urls, v.rating, v.created_at, v.updated_at, u.name
		FROM venues v
		JOIN users u ON u.id = v.creator_id
		ORDER BY v.created_at DESC
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var venues []Venue
	for rows.Next() {
		var v Venue
		err := rows.Scan(
			&v.ID,
			&v.CreatorID,
			&v.Name,
			&v.Location,
			&v.Description,
			&v.ImageURLs,
			&v.Rating,
			&v.CreatedAt,
			&v.UpdatedAt,
			&v.CreatorName,
		)
		if err != nil {
			return nil, err
		}
		venues = append(venues, v)
	}
	return venues, rows.Err()
}

// Update patches the updatable venue fields. Rating is deliberately not an
// accepted key here; it only changes through SetRating.
func (r *Repository) Update(ctx context.Context, venueID int64, updateData map[string]interface{}) error {
	query := "UPDATE venues SET "
	args := []interface{}{}
	argCounter := 1

	for key, value := range updateData {
		switch key {
		case "name", "location", "description":
			query += fmt.Sprintf("%s = $%d, ", key, argCounter)
			args = append(args, value)
			argCounter++
		default:
			return fmt.Errorf("unsupported field: %s", key)
		}
	}

	query += fmt.Sprintf("updated_at = now() WHERE id = $%d", argCounter)
	args = append(args, venueID)

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update venue: %w", err)
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Delete(ctx context.Context, venueID int64) error {
	query := `DELETE FROM venues WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.db.Exec(ctx, query, venueID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Exists(ctx context.Context, venueID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM venues WHERE id = $1)`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var exists bool
	err := r.db.QueryRow(ctx, query, venueID).Scan(&exists)
	return exists, err
}

// SetRating persists the recomputed average rating for a venue. No rounding
// is applied at storage time.
func (r *Repository) SetRating(ctx context.Context, venueID int64, rating float64) error {
	query := `UPDATE venues SET rating = $1, updated_at = now() WHERE id = $2`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	res, err := r.db.Exec(ctx, query, rating, venueID)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IsCreator checks if the user created the given venue.
func (r *Repository) IsCreator(ctx context.Context, venueID, userID int64) (bool, error) {
	query := `SELECT creator_id FROM venues WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	var creatorID int64
	err := r.db.QueryRow(ctx, query, venueID).Scan(&creatorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, err
	}
	return creatorID == userID, nil
}

// AddPhotoURL adds a new photo URL to a venue's image_urls array
func (r *Repository) AddPhotoURL(ctx context.Context, venueID int64, photoURL string) error {
	query := `
		UPDATE venues
		SET image_urls = array_append(image_urls, $1)
		WHERE id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, photoURL, venueID)
	if err != nil {
		return fmt.Errorf("failed to add photo URL: %w", err)
	}
	return nil
}

// RemovePhotoURL removes a specific photo URL from a venue's image_urls array
func (r *Repository) RemovePhotoURL(ctx context.Context, venueID int64, photoURL string) error {
	query := `
		UPDATE venues
		SET image_urls = array_remove(image_urls, $1)
		WHERE id = $2
	`

	ctx, cancel := context.WithTimeout(ctx, QueryTimeoutDuration)
	defer cancel()

	_, err := r.db.Exec(ctx, query, photoURL, venueID)
	if err != nil {
		return fmt.Errorf("failed to remove photo URL: %w", err)
	}
	return nil
}
