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

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/weiawesome/wes-io-chat/chat-service/internal/config"
	chatgrpc "github.com/weiawesome/wes-io-chat/chat-service/internal/grpc"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/handler"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/hub"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/presence"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/readstate"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/registry"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/relay"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/repository"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/router"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/service"
	"github.com/weiawesome/wes-io-chat/chat-service/internal/unread"
	"github.com/weiawesome/wes-io-chat/pkg/database"
	"github.com/weiawesome/wes-io-chat/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-chat/pkg/log"
	"github.com/weiawesome/wes-io-chat/pkg/middleware"
	"github.com/weiawesome/wes-io-chat/pkg/pubsub"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	pkglog.Init(cfg.LogOptions("chat-service"))
	l := pkglog.L()

	if err := run(cfg); err != nil {
		l.Fatal().Err(err).Msg("chat service exited with error")
	}
	l.Info().Msg("chat service stopped")
}

func run(cfg *config.Config) error {
	l := pkglog.L()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := database.New(cfg.DatabaseOptions())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer closeDB(db)
	if err := database.AutoMigrate(db, repository.Models()...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	l.Info().Str("driver", cfg.Database.Driver).Msg("database ready")

	messageRepo := repository.NewGormMessageRepository(db)
	groupRepo := repository.NewGormGroupRepository(db)
	userRepo := repository.NewGormUserRepository(db)
	readStateRepo := repository.NewGormReadStateRepository(db)

	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("create token manager: %w", err)
	}

	// Optional Redis session directory
	var directory registry.Directory
	if cfg.Redis.Enabled {
		dir, err := registry.NewRedisDirectory(cfg.Redis, cfg.InstanceID)
		if err != nil {
			return fmt.Errorf("connect session directory: %w", err)
		}
		defer dir.Close()
		if err := dir.StartHeartbeat(ctx); err != nil {
			return fmt.Errorf("start directory heartbeat: %w", err)
		}
		directory = dir
		l.Info().Str("address", cfg.Redis.Address).Msg("session directory enabled")
	}

	// Optional event bus
	var bus pubsub.PubSub
	if cfg.PubSub.Enabled {
		bus, err = pubsub.NewPubSub(cfg.PubSubOptions())
		if err != nil {
			return fmt.Errorf("connect event bus: %w", err)
		}
		defer bus.Close()
		l.Info().Str("driver", cfg.PubSub.Driver).Msg("event bus enabled")
	}

	// Realtime core
	reg := registry.NewMemoryRegistry()
	wsHub := hub.NewHub(reg, cfg.Chat.HeartbeatInterval)

	presenceOpts := []presence.Option{}
	routerOpts := []router.Option{router.WithSignalScope(router.Scope(cfg.Chat.GroupSignalScope))}
	groupOpts := []service.GroupOption{}
	if directory != nil {
		presenceOpts = append(presenceOpts, presence.WithDirectory(directory))
	}
	if bus != nil {
		presenceOpts = append(presenceOpts, presence.WithPublisher(bus, cfg.InstanceID))
		routerOpts = append(routerOpts, router.WithPublisher(bus, cfg.InstanceID))
		groupOpts = append(groupOpts, service.WithGroupPublisher(bus, cfg.InstanceID))
	}

	broadcaster := presence.NewBroadcaster(reg, userRepo, wsHub, presenceOpts...)
	msgRouter := router.New(messageRepo, groupRepo, userRepo, reg, routerOpts...)
	tracker := readstate.NewTracker(readStateRepo)
	aggregator := unread.NewAggregator(messageRepo, groupRepo, tracker)

	chatSvc := service.NewChatService(tokens, broadcaster, msgRouter, tracker)
	authSvc := service.NewAuthService(userRepo, tokens, wsHub)
	userSvc := service.NewUserService(userRepo, aggregator)
	groupSvc := service.NewGroupService(groupRepo, messageRepo, userRepo, aggregator, wsHub, groupOpts...)
	messageSvc := service.NewMessageService(messageRepo, groupRepo, userRepo, aggregator, tracker, service.PageLimits{
		Default: cfg.Chat.HistoryPageSize,
		Max:     cfg.Chat.MaxPageSize,
	})

	// Realtime listener
	wsHandler := handler.NewWSHandler(chatSvc, cfg.WebSocket)
	realtimeRouter := mux.NewRouter()
	realtimeRouter.Use(pkglog.HTTPMiddleware(l))
	wsHandler.RegisterRoutes(realtimeRouter)
	handler.NewPresenceHandler(reg, directory, cfg.InstanceID).RegisterRoutes(realtimeRouter)

	realtimeServer := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:     realtimeRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// REST listener
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), pkglog.GinMiddleware(l))
	handler.NewHandler(authSvc, userSvc, groupSvc, messageSvc, middleware.NewAuthMiddleware(tokens)).RegisterRoutes(engine)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var grpcServer *chatgrpc.Server
	if cfg.GRPC.Enabled {
		grpcServer = chatgrpc.NewServer(l)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				tokens.CleanupExpiredRevocations()
			}
		}
	})

	var bridge *relay.Relay
	if bus != nil {
		bridge = relay.New(bus, wsHub, cfg.InstanceID)
		g.Go(func() error {
			if err := bridge.Run(gctx); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		l.Info().Str("address", realtimeServer.Addr).Msg("realtime listener started")
		if err := realtimeServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("realtime listener: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		l.Info().Str("address", apiServer.Addr).Msg("api listener started")
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api listener: %w", err)
		}
		return nil
	})

	if grpcServer != nil {
		g.Go(func() error {
			return grpcServer.ListenAndServe(fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port))
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		l.Info().Msg("shutting down chat service")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if grpcServer != nil {
			grpcServer.MarkNotServing()
		}

		if err := realtimeServer.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("realtime listener forced to shutdown")
		}
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Msg("api listener forced to shutdown")
		}

		wsHub.Stop()
		if err := wsHandler.Shutdown(shutdownCtx); err != nil {
			l.Warn().Err(err).Int("sessions", reg.Len()).Msg("sessions still open at shutdown")
		}

		if directory != nil {
			directory.StopHeartbeat()
		}
		if bridge != nil {
			select {
			case <-bridge.Done():
			case <-shutdownCtx.Done():
			}
		}
		if grpcServer != nil {
			grpcServer.Stop()
		}
		return nil
	})

	return g.Wait()
}

func closeDB(db *gorm.DB) {
	if err := database.Close(db); err != nil {
		l := pkglog.L()
		l.Warn().Err(err).Msg("failed to close database")
	}
}
