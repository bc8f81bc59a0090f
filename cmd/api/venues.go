package main

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"crave/internal/domain/venues"

	"github.com/go-chi/chi/v5"
)

type createVenuePayload struct {
	Name        string `json:"name" validate:"required,max=200"`
	Location    string `json:"location" validate:"required,max=255"`
	Description string `json:"description" validate:"required,max=2000"`
}

func (app *application) createVenueHandler(w http.ResponseWriter, r *http.Request) {
	var payload createVenuePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	user := getUserFromContext(r)

	venue := &venues.Venue{
		CreatorID:   user.ID,
		Name:        payload.Name,
		Location:    payload.Location,
		Description: payload.Description,
	}

	if err := app.venues.Create(r.Context(), venue); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusCreated, venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) listVenuesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := app.venues.List(r.Context())
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, list); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) getVenueHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
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

	if err := app.jsonResponse(w, http.StatusOK, venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

type updateVenuePayload struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (app *application) updateVenueHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var payload updateVenuePayload
	if err := readJSON(w, r, &payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if err := Validate.Struct(payload); err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if ok := app.requireVenueManager(w, r, vID); !ok {
		return
	}

	updateData := map[string]interface{}{}
	if payload.Name != nil {
		updateData["name"] = *payload.Name
	}
	if payload.Location != nil {
		updateData["location"] = *payload.Location
	}
	if payload.Description != nil {
		updateData["description"] = *payload.Description
	}

	if len(updateData) == 0 {
		app.badRequestResponse(w, r, errors.New("no fields to update"))
		return
	}

	if err := app.venues.Update(r.Context(), vID, updateData); err != nil {
		switch {
		case errors.Is(err, venues.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	venue, err := app.venues.GetByID(r.Context(), vID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, venue); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteVenueHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if ok := app.requireVenueManager(w, r, vID); !ok {
		return
	}

	if err := app.venues.Delete(r.Context(), vID); err != nil {
		switch {
		case errors.Is(err, venues.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "venue deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) uploadVenuePhotoHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	if ok := app.requireVenueManager(w, r, vID); !ok {
		return
	}

	const maxBytes = 5 << 20 // 5 MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("unable to parse form, file size limit is 5MB"))
		return
	}

	file, _, err := r.FormFile("photo")
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("unable to retrieve file"))
		return
	}
	defer file.Close()

	url, err := app.uploadVenuePhotoToCloudinary(file, vID)
	if err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.venues.AddPhotoURL(r.Context(), vID, url); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"photo_url": url}); err != nil {
		app.internalServerError(w, r, err)
	}
}

func (app *application) deleteVenuePhotoHandler(w http.ResponseWriter, r *http.Request) {
	vID, err := venueIDParam(r)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	photoURL := r.URL.Query().Get("photo_url")
	if photoURL == "" {
		app.badRequestResponse(w, r, errors.New("photo_url query parameter is required"))
		return
	}

	if ok := app.requireVenueManager(w, r, vID); !ok {
		return
	}

	if err := app.deletePhotoFromCloudinary(photoURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.venues.RemovePhotoURL(r.Context(), vID, photoURL); err != nil {
		app.internalServerError(w, r, err)
		return
	}

	if err := app.jsonResponse(w, http.StatusOK, map[string]string{"message": "photo deleted"}); err != nil {
		app.internalServerError(w, r, err)
	}
}

// requireVenueManager writes the error response and returns false unless the
// current user created the venue or carries the admin capability.
func (app *application) requireVenueManager(w http.ResponseWriter, r *http.Request, venueID int64) bool {
	user := getUserFromContext(r)

	if user.IsAdmin() {
		return true
	}

	isCreator, err := app.venues.IsCreator(r.Context(), venueID, user.ID)
	if err != nil {
		switch {
		case errors.Is(err, venues.ErrNotFound):
			app.notFoundResponse(w, r, err)
		default:
			app.internalServerError(w, r, err)
		}
		return false
	}
	if !isCreator {
		app.forbiddenResponse(w, r, fmt.Errorf("user %d does not manage venue %d", user.ID, venueID))
		return false
	}
	return true
}

func venueIDParam(r *http.Request) (int64, error) {
	vID, err := strconv.ParseInt(chi.URLParam(r, "venueID"), 10, 64)
	if err != nil {
		return 0, errors.New("invalid venue ID")
	}
	return vID, nil
}
