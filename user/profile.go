package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"socialhub/auth"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/media"
)

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetByUsername(r.Context(), mux.Vars(r)["username"])
	h.writeProfile(w, r, u, err)
}

func (h *Handler) GetProfileByID(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.PathID(w, r, "id")
	if !ok {
		return
	}
	u, err := h.store.GetByID(r.Context(), id)
	h.writeProfile(w, r, u, err)
}

func (h *Handler) writeProfile(w http.ResponseWriter, r *http.Request, u *User, err error) {
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "User not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.writeUser(w, r, http.StatusOK, u)
}

type updateRequest struct {
	Fullname        string `json:"fullname"`
	Email           string `json:"email"`
	Username        string `json:"username"`
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
	Bio             string `json:"bio"`
	Link            string `json:"link"`
	ProfileImg      string `json:"profileImg"`
	CoverImg        string `json:"coverImg"`
}

// UpdateProfile applies the non-empty fields of the request. Images replace
// the previous ones in the media store.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	u, err := h.store.GetByID(ctx, auth.UserID(ctx))
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "User not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	if (req.CurrentPassword == "") != (req.NewPassword == "") {
		httputil.BadRequest(w, "Please enter both current and new password")
		return
	}
	if req.CurrentPassword != "" {
		if !CheckPassword(u.Password, req.CurrentPassword) {
			httputil.BadRequest(w, "Current password is incorrect")
			return
		}
		if len(req.NewPassword) < MinPasswordLength {
			httputil.BadRequest(w, "Password must be at least 6 characters long")
			return
		}
		hashed, err := HashPassword(req.NewPassword)
		if err != nil {
			httputil.InternalError(w, h.log, err)
			return
		}
		u.Password = hashed
	}

	email := normalizeEmail(req.Email)
	username := strings.TrimSpace(req.Username)
	if email != "" && !ValidEmail(email) {
		httputil.BadRequest(w, "Invalid email address")
		return
	}
	usernameTaken, emailTaken, err := h.store.Taken(ctx, username, email, u.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if usernameTaken {
		httputil.BadRequest(w, "Username already exists")
		return
	}
	if emailTaken {
		httputil.BadRequest(w, "Email already in use")
		return
	}

	var oldImages, uploaded []string
	resolve := func(img, current string) (string, bool) {
		url, err := media.Resolve(ctx, h.media, img, current)
		if err != nil {
			return "", false
		}
		if url != current {
			uploaded = append(uploaded, url)
			if current != "" {
				oldImages = append(oldImages, current)
			}
		}
		return url, true
	}
	if req.ProfileImg != "" {
		url, ok := resolve(req.ProfileImg, u.ProfileImg)
		if !ok {
			httputil.BadRequest(w, "Invalid profile image")
			return
		}
		u.ProfileImg = url
	}
	if req.CoverImg != "" {
		url, ok := resolve(req.CoverImg, u.CoverImg)
		if !ok {
			h.deleteImages(r, uploaded...)
			httputil.BadRequest(w, "Invalid cover image")
			return
		}
		u.CoverImg = url
	}

	u.Fullname = firstNonEmpty(strings.TrimSpace(req.Fullname), u.Fullname)
	u.Email = firstNonEmpty(email, u.Email)
	u.Username = firstNonEmpty(username, u.Username)
	u.Bio = firstNonEmpty(req.Bio, u.Bio)
	u.Link = firstNonEmpty(req.Link, u.Link)

	if err := h.store.Update(ctx, u); err != nil {
		h.deleteImages(r, uploaded...)
		if errors.Is(err, db.ErrConflict) {
			httputil.BadRequest(w, "Username or email already in use")
			return
		}
		httputil.InternalError(w, h.log, err)
		return
	}
	h.deleteImages(r, oldImages...)

	h.log.WithField("user_id", u.ID).Info("[UpdateProfile] profile updated")
	h.writeUser(w, r, http.StatusOK, u)
}

type deleteAccountRequest struct {
	Password string `json:"password"`
}

// DeleteAccount removes the caller and everything they own once the
// password is confirmed.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	var req deleteAccountRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	ctx := r.Context()

	u, err := h.store.GetByID(ctx, auth.UserID(ctx))
	if errors.Is(err, db.ErrNotFound) {
		httputil.NotFound(w, "User not found")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if !CheckPassword(u.Password, req.Password) {
		httputil.BadRequest(w, "Incorrect password")
		return
	}

	images, err := h.store.OwnedImages(ctx, u.ID)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.Delete(ctx, u.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.deleteImages(r, append(images, u.ProfileImg, u.CoverImg)...)

	h.tokens.ClearCookie(w)
	h.log.WithField("user_id", u.ID).Info("[DeleteAccount] account deleted")
	httputil.Message(w, http.StatusOK, "Account deleted successfully")
}

func (h *Handler) deleteImages(r *http.Request, urls ...string) {
	for _, url := range urls {
		if url == "" {
			continue
		}
		if err := h.media.Delete(r.Context(), url); err != nil {
			h.log.WithError(err).WithField("url", url).Warn("failed to delete image")
		}
	}
}

func firstNonEmpty(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
