// Package feedback collects free-form feedback from visitors.
package feedback

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"socialhub/httputil"
	"socialhub/mail"
)

const minLength = 5

type Feedback struct {
	ID        int64     `db:"id" json:"id"`
	Message   string    `db:"message" json:"message"`
	Email     string    `db:"email" json:"email"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Store struct {
	db *sqlx.DB
}

func NewStore(conn *sqlx.DB) *Store {
	return &Store{db: conn}
}

func (s *Store) Insert(ctx context.Context, message, email string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO feedback (message, email) VALUES (?, ?)`, message, email)
	if err != nil {
		return 0, fmt.Errorf("insert feedback: %w", err)
	}
	return res.LastInsertId()
}

type Handler struct {
	store  *Store
	mailer mail.Mailer
	to     string
	log    *logrus.Entry
}

// NewHandler mails each submission to `to`. An empty address only stores it.
func NewHandler(store *Store, mailer mail.Mailer, to string, log *logrus.Entry) *Handler {
	return &Handler{store: store, mailer: mailer, to: to, log: log}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
		Email   string `json:"email"`
	}
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}
	msg := strings.TrimSpace(req.Message)
	if len([]rune(msg)) < minLength {
		httputil.BadRequest(w, "Feedback message is too short.")
		return
	}
	email := strings.TrimSpace(req.Email)

	id, err := h.store.Insert(r.Context(), msg, email)
	if err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	h.notify(r.Context(), id, msg, email)
	httputil.Message(w, http.StatusCreated, "Feedback submitted successfully.")
}

// notify mails the feedback. Failures are logged; the submission is
// already stored.
func (h *Handler) notify(ctx context.Context, id int64, msg, email string) {
	if h.to == "" {
		h.log.WithField("feedback_id", id).Debug("[Feedback] no recipient configured")
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	subject, body := mail.FeedbackEmail(msg, email)
	if err := h.mailer.Send(ctx, h.to, subject, body); err != nil {
		h.log.WithError(err).WithField("feedback_id", id).Warn("[Feedback] mail failed")
	}
}
