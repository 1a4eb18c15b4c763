// Package main runs a whiteboard session host: the encrypted session
// endpoint, the discovery service and the host's own board, with graceful
// shutdown.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/LF-108/BestNotes/config"
	"github.com/LF-108/BestNotes/internal/board"
	"github.com/LF-108/BestNotes/internal/discovery"
	"github.com/LF-108/BestNotes/internal/registry"
	"github.com/LF-108/BestNotes/internal/session"
	"github.com/LF-108/BestNotes/internal/users"
	"github.com/LF-108/BestNotes/pkg/database"
	"github.com/LF-108/BestNotes/pkg/redis"
	"github.com/LF-108/BestNotes/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Session.HostUsername == "" {
		logger.Fatal("HOST_USERNAME is required")
	}

	ctx := context.Background()

	// Credential store: PostgreSQL when configured, in-memory otherwise.
	var userStore users.Store = users.NewMemoryStore()
	if cfg.Database.URL != "" {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.URL, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		if err := database.Migrate(ctx, pool); err != nil {
			logger.Fatal("migrate", zap.Error(err))
		}
		userStore = users.NewRepository(pool)
	} else {
		logger.Info("DATABASE_URL not set, using in-memory credential store")
	}

	// Host registry: Redis when configured, in-memory otherwise.
	var reg registry.Registry = registry.NewMemory(cfg.Session.Port)
	if cfg.Redis.Addr != "" {
		rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
		if err != nil {
			logger.Fatal("redis", zap.Error(err))
		}
		defer rdb.Close()
		reg = registry.NewRedis(rdb.Client, cfg.Session.Port, logger)
	} else {
		logger.Info("REDIS_ADDR not set, using in-memory registry")
	}

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:          cfg.AWS.Region,
			AccessKeyID:     cfg.AWS.AccessKeyID,
			SecretAccessKey: cfg.AWS.SecretAccessKey,
			SnapshotsBucket: cfg.AWS.SnapshotsBucket,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	host := cfg.Session.HostUsername
	if err := userStore.Ensure(ctx, host); err != nil {
		logger.Fatal("ensure host user", zap.Error(err))
	}

	address := cfg.Session.PublicAddress
	if address == "" {
		address = localAddress()
	}
	port, err := reg.Register(ctx, host, address, cfg.Session.Port)
	if err != nil {
		logger.Fatal("register host", zap.String("username", host), zap.Error(err))
	}
	logger.Info("host registered",
		zap.String("username", host),
		zap.String("address", address),
		zap.Int("port", port))

	// The host's board. Remote events land here exactly like local strokes.
	scene := board.NewScene(board.NewMemorySurface())
	if s3Client != nil && cfg.AWS.SnapshotKey != "" {
		snapshot, err := s3Client.GetSnapshot(ctx, cfg.AWS.SnapshotKey)
		if err != nil {
			logger.Fatal("load snapshot", zap.String("key", cfg.AWS.SnapshotKey), zap.Error(err))
		}
		n, err := scene.Restore(snapshot)
		if err != nil {
			logger.Fatal("restore board", zap.String("key", cfg.AWS.SnapshotKey), zap.Error(err))
		}
		logger.Info("board restored", zap.String("key", cfg.AWS.SnapshotKey), zap.Int("items", n))
	}
	sync := board.NewSynchronizer(scene, logger)

	hub := session.NewHub(cfg.Session.MaxParticipants, logger)
	hub.SetPresenceHandlers(
		func(username string) { logger.Info("participant joined", zap.String("username", username)) },
		func(username string) { logger.Info("participant left", zap.String("username", username)) },
	)
	sync.AttachHost(hub, host)

	go func() {
		for ev := range hub.Events() {
			if _, err := sync.RemoteEvent(ev.Event); err != nil {
				logger.Warn("remote event rejected",
					zap.String("from", ev.From),
					zap.Error(err))
			}
		}
	}()

	sessionSrv := session.NewServer(session.ServerConfig{
		Port:             port,
		CertPath:         cfg.TLS.CertPath,
		KeyPath:          cfg.TLS.KeyPath,
		HostUsername:     host,
		HandshakeTimeout: time.Duration(cfg.Session.HandshakeTimeoutSec) * time.Second,
	}, hub, userStore, logger)

	discoverySrv := discovery.NewServer(cfg.Discovery.Port, reg, userStore, logger)
	if s3Client != nil {
		discoverySrv.SetSnapshotFunc(func(ctx context.Context, _ string) (string, error) {
			snapshot, err := scene.Snapshot()
			if err != nil {
				return "", err
			}
			return s3Client.PutSnapshot(ctx, host, snapshot)
		})
	}

	go func() {
		if err := discoverySrv.Start(); err != nil {
			logger.Fatal("discovery", zap.Error(err))
		}
	}()
	go func() {
		if err := sessionSrv.Start(); err != nil {
			logger.Fatal("session", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := reg.Unregister(shutdownCtx, host); err != nil {
		logger.Error("unregister host", zap.Error(err))
	}
	if s3Client != nil {
		if snapshot, err := scene.Snapshot(); err == nil {
			if _, err := s3Client.PutSnapshot(shutdownCtx, host, snapshot); err != nil {
				logger.Error("final snapshot", zap.Error(err))
			}
		}
	}
	if err := sessionSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("session shutdown", zap.Error(err))
	}
	if err := discoverySrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("discovery shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

// localAddress finds the outbound interface address to advertise in the
// registry. No packet is sent; the dial just resolves a route.
func localAddress() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
