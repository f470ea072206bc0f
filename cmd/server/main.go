package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/library-lending/internal/adapter/handler"
	"github.com/rl1809/library-lending/internal/adapter/storage"
	"github.com/rl1809/library-lending/internal/config"
	"github.com/rl1809/library-lending/internal/core/service"
	"github.com/rl1809/library-lending/internal/port"
)

const shutdownTimeout = 5 * time.Second

type store interface {
	port.BookRepository
	port.BorrowerRepository
	port.LoanRepository
	port.Pinger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize store
	db, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize rate limiter
	var limiter port.RateLimiter
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			PoolSize: 100,
		})
		defer rdb.Close()

		redisLimiter := storage.NewRedisAdapter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)
		if err := redisLimiter.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, requests pass until it recovers", "addr", cfg.RedisAddr, "error", err)
		} else {
			logger.Info("connected to redis", "addr", cfg.RedisAddr)
		}
		limiter = redisLimiter
	} else {
		logger.Info("rate limiting disabled")
	}

	// Initialize services
	bookService := service.NewBookService(db)
	borrowerService := service.NewBorrowerService(db)
	lendingService := service.NewLendingService(db, db,
		service.WithLoanPeriod(cfg.LoanPeriod),
		service.WithLogger(logger),
	)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	grpcHealth := handler.NewGRPCHealth(db, logger)
	grpcHealth.Register(grpcServer)
	go grpcHealth.Watch(ctx, cfg.HealthInterval)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	go func() {
		logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	httpHandler := handler.NewHTTPHandler(bookService, borrowerService, lendingService, db, logger)
	httpServer := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpHandler.Router(handler.RouterOptions{
			Limiter:     limiter,
			CORSOrigins: cfg.CORSOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	grpcHealth.Shutdown()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	return nil
}

func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (store, func(), error) {
	if cfg.DBDriver == config.DriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return storage.NewMemoryAdapter(), func() {}, nil
	}

	db, err := storage.OpenSQL(ctx, cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("connected to database", "driver", cfg.DBDriver)

	adapter := storage.NewSQLAdapter(db)
	if cfg.DBMigrate {
		if err := adapter.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, err
		}
		logger.Info("schema migrated")
	}

	return adapter, func() {
		db.Close()
		logger.Info("database connection closed")
	}, nil
}
