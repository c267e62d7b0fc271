package user

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/config"
	"socialhub/httputil"
	"socialhub/mail"
	"socialhub/media"
)

// Handler serves the auth and profile endpoints.
type Handler struct {
	store   *Store
	tokens  *auth.TokenService
	mailer  mail.Mailer
	media   media.Store
	cfg     config.AuthConfig
	baseURL string
	log     *logrus.Entry
	now     func() time.Time
}

func NewHandler(store *Store, tokens *auth.TokenService, mailer mail.Mailer, mediaStore media.Store,
	cfg config.AuthConfig, baseURL string, log *logrus.Entry) *Handler {
	return &Handler{
		store:   store,
		tokens:  tokens,
		mailer:  mailer,
		media:   mediaStore,
		cfg:     cfg,
		baseURL: baseURL,
		log:     log,
		now:     time.Now,
	}
}

// writeUser loads the follow, like and bookmark ids and writes the user.
func (h *Handler) writeUser(w http.ResponseWriter, r *http.Request, status int, u *User) {
	if err := h.store.LoadRelations(r.Context(), u); err != nil {
		httputil.InternalError(w, h.log, err)
		return
	}
	httputil.WriteJSON(w, status, u)
}

func (h *Handler) sendMail(ctx context.Context, to, subject, body string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return h.mailer.Send(ctx, to, subject, body)
}
