package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/mentor-match/internal/apperror"
	"github.com/sakif/mentor-match/internal/imagestore"
	"github.com/sakif/mentor-match/internal/model"
	"github.com/sakif/mentor-match/internal/service"
)

// multipartOverhead is the slack allowed on top of the image itself for the
// multipart framing and any other small form fields.
const multipartOverhead = 1 << 20

// ProfileHandler serves the caller's profile, profile images and the mentor
// directory. All routes require a bearer token.
type ProfileHandler struct {
	profiles *service.ProfileService
	errs     errorWriter
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger, development bool) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, errs: newErrorWriter(logger, development)}
}

// HandleMe returns the caller's profile.
//
// HTTP: GET /api/me
func (h *ProfileHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	p, err := h.profiles.Me(r.Context(), caller)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUpdate applies a partial profile update, optionally with an inline
// base64 image.
//
// HTTP: PUT /api/profile
func (h *ProfileHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		h.errs.write(w, r, err)
		return
	}

	p, err := h.profiles.Update(r.Context(), caller, service.ProfileUpdate{
		Name:       req.Name,
		Bio:        req.Bio,
		Skills:     req.Skills,
		Experience: req.Experience,
		HourlyRate: req.HourlyRate,
		Image:      req.Image,
	})
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleUploadImage replaces the caller's image from a multipart upload.
//
// HTTP: POST /api/profile/image (multipart/form-data, field "image")
func (h *ProfileHandler) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	caller, err := callerFrom(r)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	maxBytes := int64(imagestore.UploadLimits.MaxBytes)
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(maxBytes + multipartOverhead); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.errs.write(w, r, apperror.ValidationFailed("image", "image must be at most 5 MB"))
			return
		}
		h.errs.write(w, r, apperror.ValidationFailed("image", "expected a multipart form with an image field"))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, _, err := r.FormFile("image")
	if err != nil {
		h.errs.write(w, r, apperror.ValidationFailed("image", "image file is required"))
		return
	}
	defer file.Close()

	// Read one byte past the cap so the store can tell "exactly 5 MB" from "more".
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}

	p, err := h.profiles.UploadImage(r.Context(), caller, data)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// HandleImage serves a stored profile image, or redirects to the placeholder
// for users without one.
//
// HTTP: GET /api/images/{role}/{id}
func (h *ProfileHandler) HandleImage(w http.ResponseWriter, r *http.Request) {
	role := model.Role(chi.URLParam(r, "role"))
	id := chi.URLParam(r, "id")

	path, err := h.profiles.ImagePath(r.Context(), role, id)
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	if path == "" {
		http.Redirect(w, r, service.PlaceholderImageURL(role), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "private, max-age=300")
	http.ServeFile(w, r, path)
}

// HandleListMentors lists active mentors.
//
// HTTP: GET /api/mentors?skill=Go&order_by=name|skill
func (h *ProfileHandler) HandleListMentors(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mentors, err := h.profiles.ListMentors(r.Context(), q.Get("skill"), q.Get("order_by"))
	if err != nil {
		h.errs.write(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mentors)
}
