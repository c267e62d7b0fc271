package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"socialhub/auth"
	"socialhub/chat"
	"socialhub/comment"
	"socialhub/config"
	"socialhub/feedback"
	"socialhub/follower"
	"socialhub/httputil"
	"socialhub/mail"
	"socialhub/media"
	"socialhub/message"
	"socialhub/metrics"
	"socialhub/middleware"
	"socialhub/notification"
	"socialhub/pkg/logger"
	"socialhub/post"
	"socialhub/user"
)

type app struct {
	cfg     *config.Config
	log     *logrus.Logger
	tokens  *auth.TokenService
	limiter *middleware.RateLimiter
	uploads string

	users    *user.Store
	messages *message.Service

	chat         *chat.Handler
	user         *user.Handler
	follower     *follower.Handler
	post         *post.Handler
	comment      *comment.Handler
	notification *notification.Handler
	message      *message.Handler
	feedback     *feedback.Handler
}

func newApp(cfg *config.Config, conn *sqlx.DB, hub *chat.Hub, pub chat.Publisher, log *logrus.Logger) (*app, error) {
	component := func(name string) *logrus.Entry { return logger.Component(log, name) }

	mediaStore, err := media.NewDiskStore(cfg.Media.UploadDir, cfg.Media.UploadURL, component("media"))
	if err != nil {
		return nil, err
	}
	mailer := mail.New(cfg.Mail, component("mail"))
	tokens := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTTTL, cfg.Auth.CookieSecure)

	users := user.NewStore(conn)
	tokens.CheckUsers(users.Exists)
	notifications := notification.NewService(notification.NewStore(conn), pub, component("notification"))
	posts := post.NewStore(conn, users)
	postHandler := post.NewHandler(posts, users, notifications, mediaStore, component("post"))
	messages := message.NewStore(conn)
	messageService := message.NewService(messages, notifications, pub, cfg.Realtime.DeliveryDelay, component("message"))

	return &app{
		cfg:     cfg,
		log:     log,
		tokens:  tokens,
		limiter: middleware.NewRateLimiter(cfg.Auth.RateLimit, cfg.Auth.RateBurst, component("ratelimit")),
		uploads: cfg.Media.UploadDir,

		users:    users,
		messages: messageService,

		chat:         chat.NewHandler(hub, pub, tokens, cfg.Server.ClientURL, component("chat")),
		user:         user.NewHandler(users, tokens, mailer, mediaStore, cfg.Auth, cfg.Server.BaseURL, component("user")),
		follower:     follower.NewHandler(follower.NewStore(conn), users, notifications, component("follower")),
		post:         postHandler,
		comment:      comment.NewHandler(comment.NewStore(conn), posts, postHandler, component("comment")),
		notification: notification.NewHandler(notification.NewStore(conn), component("notification")),
		message:      message.NewHandler(messages, messageService, users, mediaStore, hub, component("message")),
		feedback:     feedback.NewHandler(feedback.NewStore(conn), mailer, cfg.Mail.FeedbackTo, component("feedback")),
	}, nil
}

func (a *app) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.Logging(logger.Component(a.log, "http")))
	r.Use(middleware.CORS(a.cfg.Server.ClientURL))
	r.Use(metrics.InstrumentHandler)

	protected := func(h http.HandlerFunc) http.Handler { return a.tokens.Middleware(h) }

	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.Handle("/ws", a.chat)
	r.PathPrefix(a.cfg.Media.UploadURL + "/").Handler(
		http.StripPrefix(a.cfg.Media.UploadURL+"/", http.FileServer(http.Dir(a.uploads))))

	authR := r.PathPrefix("/api/auth").Subrouter()
	authR.Use(a.limiter.Handler)
	authR.HandleFunc("/signup", a.user.Signup).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/verify-otp", a.user.VerifyOTP).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/resend-otp", a.user.ResendOTP).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/login", a.user.Login).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/logout", a.user.Logout).Methods(http.MethodPost, http.MethodOptions)
	authR.Handle("/me", protected(a.user.Me)).Methods(http.MethodGet, http.MethodOptions)
	authR.HandleFunc("/forgot-password", a.user.ForgotPassword).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/reset-password", a.user.ResetPassword).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/forgot-password-otp", a.user.ForgotPasswordOTP).Methods(http.MethodPost, http.MethodOptions)
	authR.HandleFunc("/reset-password-otp", a.user.ResetPasswordOTP).Methods(http.MethodPost, http.MethodOptions)

	users := r.PathPrefix("/api/users").Subrouter()
	users.Handle("/profile/{username}", protected(a.user.GetProfile)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/profile-id/{id:[0-9]+}", protected(a.user.GetProfileByID)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/suggested", protected(a.follower.Suggested)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/follow/{id:[0-9]+}", protected(a.follower.Toggle)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/following-users", protected(a.follower.FollowingUsers)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/update", protected(a.user.UpdateProfile)).Methods(http.MethodPut, http.MethodOptions)
	users.Handle("/account", protected(a.user.DeleteAccount)).Methods(http.MethodDelete, http.MethodOptions)
	users.HandleFunc("/feedback", a.feedback.Submit).Methods(http.MethodPost, http.MethodOptions)

	users.Handle("/send-message", protected(a.message.Send)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/messages/partners", protected(a.message.Partners)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/messages/unread", protected(a.message.Unread)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/messages/send-image", protected(a.message.SendImage)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/messages/{userId:[0-9]+}", protected(a.message.Conversation)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/messages/{messageId:[0-9]+}", protected(a.message.Delete)).Methods(http.MethodDelete, http.MethodOptions)
	users.Handle("/messages/{messageId:[0-9]+}", protected(a.message.Edit)).Methods(http.MethodPut, http.MethodOptions)
	users.Handle("/messages/{userId:[0-9]+}/read", protected(a.message.MarkRead)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/messages/{userId:[0-9]+}/clear", protected(a.message.Clear)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/messages/{userId:[0-9]+}/last-message", protected(a.message.LastMessageTime)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/messages/{userId:[0-9]+}/pinned", protected(a.message.Pinned)).Methods(http.MethodGet, http.MethodOptions)
	users.Handle("/messages/{messageId:[0-9]+}/reaction", protected(a.message.React)).Methods(http.MethodPost, http.MethodOptions)
	users.Handle("/messages/{messageId:[0-9]+}/pin", protected(a.message.Pin)).Methods(http.MethodPost, http.MethodOptions)

	posts := r.PathPrefix("/api/posts").Subrouter()
	posts.Handle("/all", protected(a.post.All)).Methods(http.MethodGet, http.MethodOptions)
	posts.Handle("/following", protected(a.post.Following)).Methods(http.MethodGet, http.MethodOptions)
	posts.Handle("/likes/{id:[0-9]+}", protected(a.post.Liked)).Methods(http.MethodGet, http.MethodOptions)
	posts.Handle("/user/{username}", protected(a.post.ByUsername)).Methods(http.MethodGet, http.MethodOptions)
	posts.Handle("/bookmarks", protected(a.post.Bookmarks)).Methods(http.MethodGet, http.MethodOptions)
	posts.Handle("/create", protected(a.post.Create)).Methods(http.MethodPost, http.MethodOptions)
	posts.Handle("/repost", protected(a.post.Repost)).Methods(http.MethodPost, http.MethodOptions)
	posts.Handle("/like/{id:[0-9]+}", protected(a.post.ToggleLike)).Methods(http.MethodPost, http.MethodOptions)
	posts.Handle("/bookmark/{id:[0-9]+}", protected(a.post.ToggleBookmark)).Methods(http.MethodPost, http.MethodOptions)
	posts.Handle("/comment/{id:[0-9]+}", protected(a.comment.Create)).Methods(http.MethodPost, http.MethodOptions)
	posts.Handle("/{postId:[0-9]+}/comment/{commentId:[0-9]+}", protected(a.comment.Delete)).Methods(http.MethodDelete, http.MethodOptions)
	posts.Handle("/{id:[0-9]+}", protected(a.post.Delete)).Methods(http.MethodDelete, http.MethodOptions)

	notifications := r.PathPrefix("/api/notifications").Subrouter()
	notifications.Handle("", protected(a.notification.List)).Methods(http.MethodGet, http.MethodOptions)
	notifications.Handle("/", protected(a.notification.List)).Methods(http.MethodGet, http.MethodOptions)
	notifications.Handle("", protected(a.notification.DeleteAll)).Methods(http.MethodDelete, http.MethodOptions)
	notifications.Handle("/", protected(a.notification.DeleteAll)).Methods(http.MethodDelete, http.MethodOptions)
	notifications.Handle("/unread-count", protected(a.notification.UnreadCount)).Methods(http.MethodGet, http.MethodOptions)
	notifications.Handle("/unread-count/{userId:[0-9]+}", protected(a.notification.UnreadCountFrom)).Methods(http.MethodGet, http.MethodOptions)
	notifications.Handle("/mark-read/{userId:[0-9]+}", protected(a.notification.MarkReadFrom)).Methods(http.MethodPost, http.MethodOptions)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.NotFound(w, "Not found")
	})
	return r
}
