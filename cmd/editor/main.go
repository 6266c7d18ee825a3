package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/XXUCHAN/gapboard/internal/config"
	cronrunner "github.com/XXUCHAN/gapboard/internal/cron"
	"github.com/XXUCHAN/gapboard/internal/handler"
	"github.com/XXUCHAN/gapboard/internal/logger"
	"github.com/XXUCHAN/gapboard/internal/price"
	"github.com/XXUCHAN/gapboard/internal/session"
	"github.com/XXUCHAN/gapboard/internal/sim"
	"github.com/XXUCHAN/gapboard/internal/stream"
)

func main() {
	cfgPath := os.Getenv("GB_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("GB_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var prices price.Source
	if cfg.Price.Seed != 0 {
		prices = price.NewMockSourceSeeded(cfg.Price.Seed)
	} else {
		prices = price.NewMockSource()
	}

	hub := stream.NewHub(logger)
	sessions := session.NewManager(prices, logger)
	simulator := sim.New(hub, logger, cfg.Simulator.CapitalBase)

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())

	healthHandler := &handler.HealthHandler{Started: time.Now()}
	healthHandler.Register(engine)
	strategyHandler := &handler.StrategyHandler{Sessions: sessions}
	strategyHandler.Register(engine)
	blockHandler := &handler.BlockHandler{Sessions: sessions, Hub: hub, Logger: logger}
	blockHandler.Register(engine)
	execHandler := &handler.ExecutionHandler{Sessions: sessions, Simulator: simulator}
	execHandler.Register(engine)
	streamHandler := &handler.StreamHandler{Hub: hub, Logger: logger, Buffer: cfg.Stream.SubscriberBuffer}
	streamHandler.Register(engine)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		_, err := cronRunner.Add("gap refresh", cfg.Cron.GapRefresh, func(ctx context.Context) error {
			for _, s := range sessions.List() {
				if err := s.Engine.RefreshAllGaps(ctx); err != nil {
					return err
				}
				s.Touch()
				hub.EmitBlocks(s.ID, s.Engine.Blocks())
			}
			return nil
		})
		if err != nil {
			logger.Warn("cron register gap refresh failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
