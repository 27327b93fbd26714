// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/uno/internal/cache"
	"github.com/jason-s-yu/uno/internal/config"
	"github.com/jason-s-yu/uno/internal/database"
	"github.com/jason-s-yu/uno/internal/handlers"
	"github.com/jason-s-yu/uno/internal/notify"
	"github.com/jason-s-yu/uno/internal/room"
	"github.com/jason-s-yu/uno/internal/store"
	"github.com/jason-s-yu/uno/internal/turnwatch"
	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []room.ServiceOption{
		room.WithMaxAttempts(cfg.ApplyMaxAttempts),
		room.WithMaxPlayers(cfg.MaxPlayers),
	}

	var (
		st  store.Store
		bus notify.Bus = notify.NewHub()
		rdb *redis.Client
	)

	// Redis carries the action queue and cross-instance updates whenever it
	// is reachable, whichever backend holds the rooms.
	rdb, err = cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		if cfg.StoreBackend == config.BackendRedis {
			logger.Fatalf("redis store: %v", err)
		}
		logger.Warnf("running without redis: %v", err)
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
		bus = notify.NewRedisBus(rdb, logger)
		opts = append(opts,
			room.WithPublisher(cache.NewPublisher(rdb, cfg.Historian.Queue)),
			room.WithBus(bus),
		)
	} else {
		opts = append(opts, room.WithBus(bus))
	}

	switch cfg.StoreBackend {
	case config.BackendRedis:
		st = store.NewRedis(rdb, cfg.RoomTTL)
	case config.BackendPostgres:
		pool, err := database.Connect(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatalf("postgres store: %v", err)
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatalf("postgres store: %v", err)
		}
		st = store.NewPostgres(pool)
		opts = append(opts, room.WithResultRecorder(database.NewRecorder(pool)))
	default:
		st = store.NewMemory()
	}
	logger.WithField("backend", cfg.StoreBackend).Info("room store ready")

	svc := room.NewService(st, logger, opts...)
	watcher := turnwatch.New(svc, logger, cfg.TurnDuration, cfg.TurnSweepInterval)
	go watcher.Run(ctx)
	go cleanupRooms(ctx, svc, cfg.CleanupInterval, cfg.RoomTTL, logger)

	rs := handlers.NewRoomServer(svc, bus, watcher)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           rs.Routes(logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown: %v", err)
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	logger.Info("server stopped")
}

// cleanupRooms deletes rooms idle for longer than maxAge every interval.
func cleanupRooms(ctx context.Context, svc *room.Service, interval, maxAge time.Duration, logger *logrus.Logger) {
	if interval <= 0 || maxAge <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := svc.CleanupStale(ctx, maxAge); err != nil && ctx.Err() == nil {
				logger.Warnf("stale room cleanup failed: %v", err)
			}
		}
	}
}
