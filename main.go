package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"socialhub/chat"
	"socialhub/config"
	"socialhub/db"
	"socialhub/housekeeping"
	"socialhub/pkg/db/sqlite"
	"socialhub/pkg/logger"
)

func main() {
	rollback := flag.Bool("rollback", false, "roll back the last migration and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		log.WithError(err).Fatal("open database")
	}
	defer conn.Close()

	if *rollback {
		if err := sqlite.RollbackLastMigration(conn.DB); err != nil {
			log.WithError(err).Fatal("rollback")
		}
		log.Info("[DB] rolled back last migration")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := chat.NewHub(logger.Component(log, "chat"))
	defer hub.Close()
	pub, err := publisher(ctx, cfg, hub, log)
	if err != nil {
		log.WithError(err).Fatal("event bus")
	}

	app, err := newApp(cfg, conn, hub, pub, log)
	if err != nil {
		log.WithError(err).Fatal("init")
	}
	defer app.messages.Stop()

	janitor := housekeeping.New(app.users, logger.Component(log, "housekeeping"))
	if err := janitor.Start(cfg.Housekeeping.Schedule); err != nil {
		log.WithError(err).Fatal("housekeeping")
	}
	defer janitor.Stop()

	go app.limiter.Run(ctx, 10*time.Minute)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("Server running")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("listen")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("shutdown")
	}
}

// publisher returns the local hub, or a Redis bus relaying events to every
// instance's hub when EVENT_BUS=redis.
func publisher(ctx context.Context, cfg *config.Config, hub *chat.Hub, log *logrus.Logger) (chat.Publisher, error) {
	if cfg.Realtime.EventBus != "redis" {
		return hub, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Realtime.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	bus := chat.NewRedisBus(client, cfg.Realtime.RedisChannel, hub, logger.Component(log, "eventbus"))
	go func() {
		defer client.Close()
		if err := bus.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("[EventBus] subscriber stopped")
		}
	}()
	return bus, nil
}
