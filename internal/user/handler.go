package user

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/redmonkez12/users-auth-api/internal/avatar"
	"github.com/redmonkez12/users-auth-api/internal/httputil"
)

const avatarField = "avatar"

// SubscriptionRequest represents the subscription update body
type SubscriptionRequest struct {
	Subscription Subscription `json:"subscription"`
}

func (r SubscriptionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(
			&r.Subscription,
			validation.Required,
			validation.In(SubscriptionStarter, SubscriptionPro, SubscriptionBusiness),
		),
	)
}

// AvatarResponse is returned after a successful avatar upload
type AvatarResponse struct {
	AvatarURL string `json:"avatarURL"`
}

// Handler contains HTTP handlers for profile endpoints
type Handler struct {
	service        *Service
	tempDir        string
	maxUploadBytes int64
}

func NewHandler(service *Service, tempDir string, maxUploadBytes int64) *Handler {
	return &Handler{
		service:        service,
		tempDir:        tempDir,
		maxUploadBytes: maxUploadBytes,
	}
}

// UpdateSubscription changes the plan of the current user
// @Summary      Update subscription
// @Tags         users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body SubscriptionRequest true "New subscription"
// @Success      200 {object} Profile
// @Failure      400 {object} httputil.ErrorResponse "Validation error"
// @Failure      401 {object} httputil.ErrorResponse "Not authorized"
// @Failure      404 {object} httputil.ErrorResponse "Not found"
// @Router       /users [patch]
func (h *Handler) UpdateSubscription(w http.ResponseWriter, r *http.Request) error {
	current, ok := FromContext(r.Context())
	if !ok {
		return httputil.NewError(http.StatusUnauthorized, "Not authorized")
	}

	var req SubscriptionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		return err
	}

	updated, err := h.service.UpdateSubscription(r.Context(), current.ID, req.Subscription)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return httputil.WrapError(http.StatusNotFound, "Not found", err)
		}
		return err
	}

	httputil.RespondJSON(w, updated.ToProfile(), http.StatusOK)
	return nil
}

// UpdateAvatar replaces the avatar of the current user
// @Summary      Upload avatar
// @Description  The image is resized to 250x250 and served under /avatars.
// @Tags         users
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        avatar formData file true "Avatar image"
// @Success      200 {object} AvatarResponse
// @Failure      400 {object} httputil.ErrorResponse "Missing or invalid file"
// @Failure      401 {object} httputil.ErrorResponse "Not authorized"
// @Failure      413 {object} httputil.ErrorResponse "File too large"
// @Failure      500 {object} httputil.ErrorResponse "Server error"
// @Router       /users/avatars [patch]
func (h *Handler) UpdateAvatar(w http.ResponseWriter, r *http.Request) error {
	current, ok := FromContext(r.Context())
	if !ok {
		return httputil.NewError(http.StatusUnauthorized, "Not authorized")
	}

	if h.maxUploadBytes > 0 {
		if r.ContentLength > h.maxUploadBytes {
			return httputil.NewError(http.StatusRequestEntityTooLarge, "File too large")
		}
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	}

	file, header, err := r.FormFile(avatarField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httputil.WrapError(http.StatusRequestEntityTooLarge, "File too large", err)
		}
		return httputil.WrapError(http.StatusBadRequest, "avatar file is required", err)
	}
	defer file.Close()
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	tempPath, err := h.stage(file)
	if err != nil {
		return err
	}

	avatarURL, err := h.service.UpdateAvatar(r.Context(), current.ID, tempPath, header.Filename)
	if err != nil {
		if errors.Is(err, avatar.ErrInvalidFilename) {
			return httputil.WrapError(http.StatusBadRequest, "invalid file name", err)
		}
		return err
	}

	httputil.RespondJSON(w, AvatarResponse{AvatarURL: avatarURL}, http.StatusOK)
	return nil
}

// stage copies the upload into the temp directory
func (h *Handler) stage(src io.Reader) (string, error) {
	f, err := os.CreateTemp(h.tempDir, "upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}

	if _, err := io.Copy(f, src); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to stage upload: %w", err)
	}

	return f.Name(), nil
}
