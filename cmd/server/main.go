package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/IsmaHaa12/smp-announcement/internal/config"
	schoolgrpc "github.com/IsmaHaa12/smp-announcement/internal/grpc"
	internalhttp "github.com/IsmaHaa12/smp-announcement/internal/http"
	"github.com/IsmaHaa12/smp-announcement/internal/identity"
	"github.com/IsmaHaa12/smp-announcement/internal/kv"
	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/logging"
	"github.com/IsmaHaa12/smp-announcement/internal/notify"
	"github.com/IsmaHaa12/smp-announcement/internal/profile"
	"github.com/IsmaHaa12/smp-announcement/internal/session"
	"github.com/IsmaHaa12/smp-announcement/internal/store/local"
	"github.com/IsmaHaa12/smp-announcement/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := connectRedis(ctx, cfg, logger)
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.WithError(err).Warn("redis close error")
			}
		}()
	}

	broker := livelist.NewBroker(logger)
	if redisClient != nil {
		relay := livelist.NewRedisRelay(redisClient, livelist.DefaultRelayChannel, broker, logger)
		broker.SetRelay(relay)
		go func() {
			if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.WithError(err).Error("change relay stopped")
			}
		}()
	}

	var (
		feeds        livelist.Feeds
		sessionStore kv.Store
		provider     identity.Provider
	)
	if cfg.Remote() {
		pool := connectPostgres(ctx, cfg, logger)
		defer pool.Close()

		store := postgres.NewStore(pool)
		feeds = livelist.NewFeeds(store.Announcements(), store.Events(), store.Messages(), broker, logger)
		provider = identity.NewDirectory(pool, logger)
		if redisClient != nil {
			sessionStore = kv.NewRedis(redisClient, "schoolinfo:")
		} else {
			logger.Warn("no redis configured, sessions are kept in memory only")
			sessionStore = kv.NewMemory()
		}
	} else {
		db, err := local.Open(cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("sqlite open failed")
		}
		defer db.Close()

		store := local.NewKV(db)
		announcements, err := local.NewAnnouncements(store, logger)
		if err != nil {
			logger.WithError(err).Fatal("default announcements unavailable")
		}
		events, err := local.NewEvents(store, logger)
		if err != nil {
			logger.WithError(err).Fatal("default events unavailable")
		}
		feeds = livelist.NewFeeds(announcements, events, local.NewMessages(store, logger), broker, logger)
		sessionStore = store
	}

	sessions := session.New(session.Options{
		AdminEmail:        cfg.AdminEmail,
		AdminPassword:     cfg.AdminPassword,
		AdminPasswordHash: cfg.AdminPasswordHash,
		IdleTimeout:       cfg.SessionIdleTTL,
		CacheTTL:          cfg.SessionCacheTTL,
	}, sessionStore, provider, logger)

	schoolProfile, err := profile.Load()
	if err != nil {
		logger.WithError(err).Fatal("school profile unavailable")
	}

	server, err := internalhttp.NewServer(cfg, sessions, feeds, mailer(cfg, schoolProfile.Name, logger), schoolProfile, logger)
	if err != nil {
		logger.WithError(err).Fatal("server init failed")
	}
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := sessionService(cfg, sessions, logger)

	go func() {
		logger.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "backend": cfg.StorageBackend}).Info("http listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("http server error")
		}
	}()

	if grpcServer != nil {
		go func() {
			listener, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				logger.WithError(err).Fatal("grpc listen error")
			}
			logger.WithField("addr", cfg.GRPCAddr).Info("grpc listening")
			if err := grpcServer.Serve(listener); err != nil {
				logger.WithError(err).Fatal("grpc server error")
			}
		}()
	}

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("shutdown error")
	}
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}
}

func connectPostgres(ctx context.Context, cfg config.Config, logger *logrus.Logger) *pgxpool.Pool {
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required for the remote backend")
	}
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("db connection failed")
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		logger.WithError(err).Fatal("db migration failed")
	}
	return pool
}

// connectRedis returns nil when Redis is not configured, or when it is
// unreachable and not required.
func connectRedis(ctx context.Context, cfg config.Config, logger *logrus.Logger) *redis.Client {
	if cfg.RedisAddr == "" {
		if cfg.RedisRequired {
			logger.Fatal("REDIS_ADDR is required")
		}
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		if cfg.RedisRequired {
			logger.WithError(err).Fatal("redis ping failed")
		}
		logger.WithError(err).Warn("redis unreachable, continuing without it")
		_ = client.Close()
		return nil
	}
	return client
}

func mailer(cfg config.Config, appName string, logger *logrus.Logger) notify.Mailer {
	if cfg.SendgridAPIKey == "" {
		return notify.NewConsole(logger)
	}
	return notify.NewSendGrid(cfg.SendgridAPIKey, appName, cfg.MailFrom)
}

// sessionService is nil when no service token is configured; sibling
// services cannot authenticate without one.
func sessionService(cfg config.Config, sessions *session.Manager, logger *logrus.Logger) *grpc.Server {
	if cfg.ServiceAuthToken == "" {
		logger.Info("SERVICE_AUTH_TOKEN not set, grpc session service disabled")
		return nil
	}
	interceptor, err := schoolgrpc.NewServiceAuthUnaryInterceptor(cfg.ServiceAuthToken, logger.WithField("component", "grpc"))
	if err != nil {
		logger.WithError(err).Fatal("grpc service auth init failed")
	}
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(interceptor))
	schoolgrpc.RegisterSessionQueryServer(grpcServer, schoolgrpc.NewSessionServer(sessions, cfg.JWTSecret, cfg.JWTIssuer))
	return grpcServer
}
