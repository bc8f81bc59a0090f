package main

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"crave/internal/domain/reviews"
	"crave/internal/domain/venues"

	"github.com/go-chi/chi/v5"
)

type createReviewPayload struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"required,max=500"`
}

func (app *application) createVenueReviewHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload createReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	actor := actorFromContext(r)

	review, err := app.reviews.Submit(r.Context(), vID, actor, payload.Rating, payload.Comment)
	if err != nil {
		app.reviewServiceError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getVenueReviewsHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	list, err := app.reviews.ListByVenue(r.Context(), vID)
	if err != nil {
		app.reviewServiceError(w, r, err)
		return
	}

	venue, err := app.venues.GetByID(r.Context(), vID)
	if err != nil {
		switch {
		case errors.Is(err, venues.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	response := map[string]interface{}{
		"reviews":       list,
		"total_reviews": len(list),
		// rounding is presentation only; the stored rating is exact
		"average": math.Round(venue.Rating*10) / 10,
	}

	if err := app.jsonResponse(w, http.StatusOK, response); err != nil {
		app.internalServerError(w, r, err)
	}
}

type updateReviewPayload struct {
	Rating  *int    `json:"rating" validate:"omitempty,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

func (app *application) updateReviewHandler(w http.ResponseWriter, r *http.Request) {
	rID, err := reviewIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload updateReviewPayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	actor := actorFromContext(r)

	review, err := app.reviews.Edit(r.Context(), rID, actor, reviews.EditPayload{
		Rating:  payload.Rating,
		Comment: payload.Comment,
	})
	if err != nil {
		app.reviewServiceError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteReviewHandler(w http.ResponseWriter, r *http.Request) {
	rID, err := reviewIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	actor := actorFromContext(r)

	if err := app.reviews.Delete(r.Context(), rID, actor); err != nil {
		app.reviewServiceError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "review deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) toggleReviewLikeHandler(w http.ResponseWriter, r *http.Request) {
	rID, err := reviewIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	review, err := app.reviews.ToggleLike(r.Context(), rID, user.ID)
	if err != nil {
		app.reviewServiceError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, review); err != nil {
		app.internalServerError(w, r, err)
	}
}

// reviewServiceError maps the review service's error taxonomy onto response
// codes.
func (app *application) reviewServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, reviews.ErrNotFound):
		app.notFoundResponse(w, r, err)
	case errors.Is(err, reviews.ErrForbidden):
		app.forbiddenResponse(w, r, err)
	case errors.Is(err, reviews.ErrDuplicateReview),
		errors.Is(err, reviews.ErrRatingOutOfRange),
		errors.Is(err, reviews.ErrCommentRequired):
		app.badRequestResponse(w, r, err)
	default:
		app.internalServerError(w, r, err)
	}
}

func actorFromContext(r *http.Request) reviews.Actor {
	user := getUserFromContext(r)
	return reviews.Actor{
		ID:       user.ID,
		Elevated: user.IsAdmin(),
	}
}

func reviewIDParam(r *http.Request) (int64, error) {
	rID, err := strconv.ParseInt(chi.URLParam(r, "reviewID"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid review ID")
	}
	return rID, nil
}
