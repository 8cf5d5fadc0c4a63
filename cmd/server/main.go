package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus_ticket/internal/config"
	"bus_ticket/internal/handler"
	"bus_ticket/internal/logger"
	"bus_ticket/internal/mail"
	"bus_ticket/internal/middleware"
	"bus_ticket/internal/repository"
	"bus_ticket/internal/service"
	"bus_ticket/internal/utils"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// stores bundles the repositories of the selected STORE_DRIVER with its
// health check and shutdown hook
type stores struct {
	users repository.UserRepository
	buses repository.BusRepository
	ping  handler.Pinger
	close func()
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := config.ConnectDB(ctx, cfg.DB, log)
		if err != nil {
			return nil, err
		}
		if err := config.AutoMigrate(ctx, pool, log); err != nil {
			pool.Close()
			return nil, err
		}
		return &stores{
			users: repository.NewUserRepository(pool),
			buses: repository.NewBusRepository(pool),
			ping:  pool.Ping,
			close: pool.Close,
		}, nil

	case config.DriverMongo:
		client, err := config.ConnectMongo(ctx, cfg.MongoURI, log)
		if err != nil {
			return nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := repository.EnsureUserIndexes(ctx, db); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			users: repository.NewMongoUserRepository(db),
			buses: repository.NewMongoBusRepository(db),
			ping:  func(ctx context.Context) error { return client.Ping(ctx, nil) },
			close: func() {
				if err := client.Disconnect(context.Background()); err != nil {
					log.Error("failed to disconnect from mongo", zap.Error(err))
				}
			},
		}, nil

	default:
		log.Warn("using in-memory store, data is lost on restart")
		return &stores{
			users: repository.NewMemoryUserRepository(),
			buses: repository.NewMemoryBusRepository(),
			close: func() {},
		}, nil
	}
}

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()
	if envErr != nil {
		log.Info("no .env file found, relying on environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Stores ---
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to open store", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer st.close()

	var consumed repository.ConsumedTokenRepository
	if cfg.Redis.Addr != "" {
		rdb, err := config.ConnectRedis(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("failed to connect to redis", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		defer rdb.Close()
		consumed = repository.NewRedisConsumedTokenRepository(rdb)
	} else {
		log.Warn("REDIS_ADDR not set, reset tokens are tracked per process")
		consumed = repository.NewMemoryConsumedTokenRepository()
	}

	// --- Mail ---
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger.NewWatermillAdapter(log))
	var mailer mail.Mailer
	if cfg.Mail.Host != "" {
		mailer = mail.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
	} else {
		log.Warn("MAIL_HOST not set, outbound mail is logged instead of sent")
		mailer = mail.NewLogMailer(log)
	}
	dispatcher := mail.NewDispatcher(pubSub, mailer, log)
	// Not tied to the signal context: requests drained by srv.Shutdown may
	// still queue mail. pubSub.Close ends the subscription.
	if err := dispatcher.Start(context.Background()); err != nil {
		log.Fatal("failed to start mail dispatcher", zap.Error(err))
	}

	// --- Services ---
	jwtUtil := utils.NewJWTUtil(cfg.JWTSecret, cfg.SessionTTL, cfg.ResetTTL)
	authService := service.NewAuthService(st.users, jwtUtil, cfg.InitialAdminPhone, log)
	resetService := service.NewPasswordResetService(st.users, consumed, jwtUtil, mail.NewQueue(pubSub), cfg.ResetURLBase, log)
	userService := service.NewUserService(st.users)
	busService := service.NewBusService(st.buses)

	// --- Router ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(log), middleware.CORS())

	jwtAuthMW := middleware.JWTAuthMiddleware(jwtUtil)
	adminMW := middleware.AdminMiddleware(st.users, log)

	handler.NewHealthHandler(st.ping, log).RegisterHealthRoutes(router)
	handler.NewAuthHandler(authService, resetService, log).RegisterAuthRoutes(router, jwtAuthMW)
	handler.NewUserHandler(authService, userService, log).RegisterUserRoutes(router, jwtAuthMW, adminMW)
	handler.NewBusHandler(busService, log).RegisterBusRoutes(router, jwtAuthMW, adminMW, cfg.RouteEditPublic)
	if cfg.RouteEditPublic {
		log.Warn("ROUTE_EDIT_PUBLIC enabled, route edits need no token")
	}

	// --- Start Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.ServerPort), zap.String("store", cfg.StoreDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen failed", zap.Error(err))
			stop()
		}
	}()

	// --- Graceful Shutdown ---
	<-ctx.Done()
	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	if err := pubSub.Close(); err != nil {
		log.Error("failed to close mail queue", zap.Error(err))
	}
	dispatcher.Wait()

	log.Info("server exiting")
}
