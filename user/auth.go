package user

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/db"
	"socialhub/httputil"
	"socialhub/mail"
)

type signupRequest struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Signup stages an unverified account and mails its OTP.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.Fullname = strings.TrimSpace(req.Fullname)

	if req.Fullname == "" || req.Username == "" || req.Email == "" || req.Password == "" {
		httputil.BadRequest(w, "All fields are required")
		return
	}
	if !ValidEmail(req.Email) {
		httputil.BadRequest(w, "Invalid email address")
		return
	}
	if len(req.Password) < MinPasswordLength {
		httputil.BadRequest(w, "Password must be at least 6 characters long")
		return
	}

	usernameTaken, emailTaken, err := h.store.Taken(r.Context(), req.Username, req.Email, 0)
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

	hashed, err := HashPassword(req.Password)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	otp, err := GenerateOTP()
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	pending := &PendingUser{
		Fullname:   req.Fullname,
		Username:   req.Username,
		Email:      req.Email,
		Password:   hashed,
		OTP:        otp,
		OTPExpires: h.now().Add(h.cfg.OTPTTL),
	}
	if err := h.store.SavePending(r.Context(), pending); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	subject, body := mail.OTPEmail(otp, h.cfg.OTPTTL)
	if err := h.sendMail(r.Context(), req.Email, subject, body); err != nil {
		h.log.WithError(err).WithField("email", req.Email).Error("[Signup] failed to send OTP")
		httputil.Error(w, http.StatusInternalServerError, "Failed to send verification email")
		return
	}

	h.log.WithField("email", req.Email).Info("[Signup] OTP sent")
	httputil.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "OTP sent to your email",
		"email":   req.Email,
	})
}

type otpRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP promotes a pending signup and logs the new user in.
func (h *Handler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	req.Email = normalizeEmail(req.Email)
	if req.Email == "" || req.OTP == "" {
		httputil.BadRequest(w, "Email and OTP are required")
		return
	}

	pending, err := h.store.GetPendingByEmail(r.Context(), req.Email)
	if errors.Is(err, db.ErrNotFound) {
		httputil.BadRequest(w, "No pending signup found for this email")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if !h.now().Before(pending.OTPExpires) {
		httputil.BadRequest(w, "OTP has expired")
		return
	}
	if pending.OTP != strings.TrimSpace(req.OTP) {
		httputil.BadRequest(w, "Invalid OTP")
		return
	}

	usernameTaken, emailTaken, err := h.store.Taken(r.Context(), pending.Username, pending.Email, 0)
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

	u, err := h.store.Promote(r.Context(), pending)
	if errors.Is(err, db.ErrConflict) {
		httputil.BadRequest(w, "Username or email already in use")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.tokens.SetCookie(w, u.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	h.log.WithField("user_id", u.ID).Info("[VerifyOTP] user created")
	h.writeUser(w, r, http.StatusCreated, u)
}

func (h *Handler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	email := normalizeEmail(req.Email)

	pending, err := h.store.GetPendingByEmail(r.Context(), email)
	if errors.Is(err, db.ErrNotFound) {
		httputil.BadRequest(w, "No pending signup found for this email")
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	otp, err := GenerateOTP()
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.SetPendingOTP(r.Context(), pending.ID, otp, h.now().Add(h.cfg.OTPTTL)); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	subject, body := mail.OTPEmail(otp, h.cfg.OTPTTL)
	if err := h.sendMail(r.Context(), email, subject, body); err != nil {
		h.log.WithError(err).Error("[ResendOTP] failed to send OTP")
		httputil.Error(w, http.StatusInternalServerError, "Failed to send verification email")
		return
	}
	httputil.Message(w, http.StatusOK, "OTP resent to your email")
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	u, err := h.store.GetByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		httputil.InternalError(w, h.log, err)
		return
	}
	if u == nil || !CheckPassword(u.Password, req.Password) {
		h.log.WithField("username", req.Username).Info("[Login] invalid credentials")
		httputil.BadRequest(w, "Invalid username or password")
		return
	}

	if err := h.tokens.SetCookie(w, u.ID); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.log.WithField("user_id", u.ID).Info("[Login] user logged in")
	h.writeUser(w, r, http.StatusOK, u)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.ClearCookie(w)
	httputil.Message(w, http.StatusOK, "Logged out successfully")
}

// Me returns the authenticated user.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.GetByID(r.Context(), auth.UserID(r.Context()))
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

const forgotPasswordReply = "If that email is registered, password reset instructions have been sent"

// ForgotPassword mails a reset link. The reply never reveals whether the
// email is registered.
func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	u, err := h.store.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		httputil.Message(w, http.StatusOK, forgotPasswordReply)
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	token, err := GenerateResetToken()
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.SetResetToken(r.Context(), u.ID, token, h.now().Add(h.cfg.ResetTokenTTL)); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	subject, body := mail.PasswordResetLinkEmail(h.baseURL, token, h.cfg.ResetTokenTTL)
	if err := h.sendMail(r.Context(), u.Email, subject, body); err != nil {
		h.log.WithError(err).WithField("user_id", u.ID).Error("[ForgotPassword] failed to send reset link")
	}
	httputil.Message(w, http.StatusOK, forgotPasswordReply)
}

type resetRequest struct {
	Token           string `json:"token"`
	Email           string `json:"email"`
	OTP             string `json:"otp"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (req resetRequest) validate(w http.ResponseWriter) bool {
	if req.Password == "" || req.ConfirmPassword == "" {
		httputil.BadRequest(w, "Password and confirmation are required")
		return false
	}
	if req.Password != req.ConfirmPassword {
		httputil.BadRequest(w, "Passwords do not match")
		return false
	}
	if len(req.Password) < MinPasswordLength {
		httputil.BadRequest(w, "Password must be at least 6 characters long")
		return false
	}
	return true
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Token == "" {
		httputil.BadRequest(w, "Reset token is required")
		return
	}
	if !req.validate(w) {
		return
	}

	u, err := h.store.GetByResetToken(r.Context(), req.Token)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		httputil.InternalError(w, h.log, err)
		return
	}
	if u == nil || !Valid(u.ResetExpires, h.now()) {
		httputil.BadRequest(w, "Invalid or expired reset token")
		return
	}

	h.setPassword(w, r, u, req.Password)
}

// ForgotPasswordOTP mails a reset code instead of a link.
func (h *Handler) ForgotPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	u, err := h.store.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if errors.Is(err, db.ErrNotFound) {
		httputil.Message(w, http.StatusOK, forgotPasswordReply)
		return
	}
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	otp, err := GenerateOTP()
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.SetOTP(r.Context(), u.ID, otp, h.now().Add(h.cfg.OTPTTL)); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}

	subject, body := mail.PasswordResetOTPEmail(otp, h.cfg.OTPTTL)
	if err := h.sendMail(r.Context(), u.Email, subject, body); err != nil {
		h.log.WithError(err).WithField("user_id", u.ID).Error("[ForgotPasswordOTP] failed to send code")
	}
	httputil.Message(w, http.StatusOK, forgotPasswordReply)
}

func (h *Handler) ResetPasswordOTP(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	if req.Email == "" || req.OTP == "" {
		httputil.BadRequest(w, "Email and OTP are required")
		return
	}
	if !req.validate(w) {
		return
	}

	u, err := h.store.GetByEmail(r.Context(), normalizeEmail(req.Email))
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		httputil.InternalError(w, h.log, err)
		return
	}
	if u == nil || !u.OTP.Valid || u.OTP.String != strings.TrimSpace(req.OTP) || !Valid(u.OTPExpires, h.now()) {
		httputil.BadRequest(w, "Invalid or expired OTP")
		return
	}

	h.setPassword(w, r, u, req.Password)
}

func (h *Handler) setPassword(w http.ResponseWriter, r *http.Request, u *User, password string) {
	hashed, err := HashPassword(password)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	if err := h.store.SetPassword(r.Context(), u.ID, hashed); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.log.WithFields(logrus.Fields{"user_id": u.ID}).Info("[ResetPassword] password changed")
	httputil.Message(w, http.StatusOK, "Password has been reset successfully")
}
