package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SARVESHVARADKAR123/marketchat/internal/config"
	"github.com/SARVESHVARADKAR123/marketchat/internal/dispatcher"
	"github.com/SARVESHVARADKAR123/marketchat/internal/httpapi"
	"github.com/SARVESHVARADKAR123/marketchat/internal/kafka"
	"github.com/SARVESHVARADKAR123/marketchat/internal/observability"
	"github.com/SARVESHVARADKAR123/marketchat/internal/outbox"
	"github.com/SARVESHVARADKAR123/marketchat/internal/presence"
	"github.com/SARVESHVARADKAR123/marketchat/internal/relay"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository/badger"
	"github.com/SARVESHVARADKAR123/marketchat/internal/repository/postgres"
	"github.com/SARVESHVARADKAR123/marketchat/internal/security"
	"github.com/SARVESHVARADKAR123/marketchat/internal/server"
	"github.com/SARVESHVARADKAR123/marketchat/internal/websocket"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.InitLogger("chat-service", "info")
		observability.Log.Fatal("failed to load config", zap.Error(err))
	}

	// Observability
	observability.InitLogger(cfg.ServiceName, cfg.LogLevel)
	log := observability.Log
	defer log.Sync()

	if cfg.TracingEnabled {
		tp, err := observability.InitTracer(cfg.ServiceName, cfg.JaegerURL)
		if err != nil {
			log.Fatal("failed to initialize tracer", zap.Error(err))
		}
		defer tp.Shutdown(context.Background())
	}

	ctx, cancel := setupSignalHandler(log)
	defer cancel()

	instanceID := getOrGenerateInstanceID(cfg.InstanceID)
	log = log.With(zap.String("instance_id", instanceID))

	store, pgRepo := initStore(ctx, cfg, log)
	defer store.Close()

	reg := websocket.NewRegistry(cfg.SendQueueSize)
	disp := dispatcher.New(reg, store, instanceID)
	ready := []observability.Pinger{store}

	var wsOpts []websocket.Option
	if cfg.RedisEnabled() {
		redisClient := initRedis(ctx, cfg.RedisAddr, log)
		defer redisClient.Close()

		pres := presence.New(redisClient, instanceID)
		rly := relay.New(redisClient, instanceID)
		disp.WithRemote(pres, rly)
		rly.Subscribe(ctx, disp.DeliverRemote)
		wsOpts = append(wsOpts, websocket.WithPresence(pres))
		ready = append(ready, redisPinger{redisClient})
	}
	if cfg.JWTSecret != "" {
		wsOpts = append(wsOpts, websocket.WithAuthenticator(security.TokenAuthenticator{Secret: cfg.JWTSecret}))
	} else {
		log.Warn("JWT_SECRET not set, identities are trusted as presented")
	}

	if pgRepo != nil && cfg.KafkaEnabled() {
		producer := initKafka(cfg, log)
		defer producer.Close()

		worker := outbox.NewWorker(pgRepo.DB, producer, cfg.OutboxBatchSize, cfg.OutboxPollDelay)
		go worker.Start(ctx)
		ready = append(ready, producer)
	}

	wsHandler := websocket.NewHandler(reg, disp, wsOpts...)
	mainRouter := httpapi.NewRouter(wsHandler, httpapi.NewHistoryHandler(store), httpapi.RouterConfig{
		ServiceName:       cfg.ServiceName,
		JWTSecret:         cfg.JWTSecret,
		RateLimitRequests: cfg.RateLimitRequests,
		RateLimitWindow:   cfg.RateLimitWindow,
	})

	// Servers
	obsSrv := server.New(cfg.ObsHTTPAddr, httpapi.NewObservabilityRouter(promhttp.Handler(), ready...))
	mainSrv := server.New(cfg.HTTPAddr, mainRouter)

	startServers(obsSrv, mainSrv, log)

	<-ctx.Done()
	performGracefulShutdown(obsSrv, mainSrv, reg, log)
}

func setupSignalHandler(log *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, initiating shutdown", zap.String("signal", sig.String()))
		cancel()
	}()
	return ctx, cancel
}

func getOrGenerateInstanceID(id string) string {
	if id == "" {
		return uuid.NewString()
	}
	return id
}

// initStore opens the configured message store. The postgres repository is
// also returned so the outbox relay can share its pool.
func initStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (repository.Repository, *postgres.Repository) {
	switch cfg.StoreDriver {
	case "postgres":
		openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		repo, err := postgres.Open(openCtx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to open postgres", zap.Error(err))
		}
		log.Info("message store ready", zap.String("driver", "postgres"))
		return repo, repo
	case "badger":
		store, err := badger.Open(cfg.BadgerPath)
		if err != nil {
			log.Fatal("failed to open badger", zap.String("path", cfg.BadgerPath), zap.Error(err))
		}
		log.Info("message store ready", zap.String("driver", "badger"), zap.String("path", cfg.BadgerPath))
		return store, nil
	default:
		log.Fatal("unknown store driver", zap.String("driver", cfg.StoreDriver))
		return nil, nil
	}
}

func initRedis(ctx context.Context, addr string, log *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	return client
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func initKafka(cfg *config.Config, log *zap.Logger) *kafka.Producer {
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		log.Fatal("failed to create kafka producer", zap.Error(err))
	}
	return producer
}

func startServers(obsSrv, mainSrv *server.Server, log *zap.Logger) {
	go func() {
		if err := obsSrv.Start(); err != nil && err != http.ErrServerClosed {
			log.Error("observability server error", zap.Error(err))
		}
	}()
	go func() {
		if err := mainSrv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()
}

func performGracefulShutdown(obs, mainSrv *server.Server, reg *websocket.Registry, log *zap.Logger) {
	log.Info("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := mainSrv.Shutdown(ctx); err != nil {
		log.Error("error during main server shutdown", zap.Error(err))
	}
	if err := obs.Shutdown(ctx); err != nil {
		log.Error("error during observability server shutdown", zap.Error(err))
	}
	reg.CloseAll()
	log.Info("shutdown complete, exiting")
}
