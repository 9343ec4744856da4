package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"github.com/rl1809/asset-custody/internal/adapter/handler"
	"github.com/rl1809/asset-custody/internal/adapter/handler/rpc"
	"github.com/rl1809/asset-custody/internal/adapter/storage"
	"github.com/rl1809/asset-custody/internal/adapter/token"
	"github.com/rl1809/asset-custody/internal/core/domain"
	"github.com/rl1809/asset-custody/internal/core/service"
	"github.com/rl1809/asset-custody/internal/infra"
	"github.com/rl1809/asset-custody/internal/port"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	metrics := infra.NewMetrics(registry)

	// Initialize Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect redis", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to redis", "addr", cfg.Redis.Addr)

	// Initialize store
	var (
		store    port.Store
		receipts port.ReceiptRepository
	)
	switch cfg.Storage.Backend {
	case "mysql":
		db, err := sql.Open("mysql", cfg.Storage.MySQLDSN)
		if err != nil {
			logger.Error("failed to connect mysql", "error", err)
			os.Exit(1)
		}
		db.SetMaxOpenConns(50)
		db.SetMaxIdleConns(25)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(ctx); err != nil {
			logger.Error("failed to ping mysql", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		logger.Info("connected to mysql")

		mysqlAdapter := storage.NewMySQLAdapter(db)
		store = mysqlAdapter
		receipts = mysqlAdapter
	case "memory":
		store = storage.NewMemoryStore()
	}

	// The in-process bank stands in for the external transfer primitive.
	bank := token.NewBank()

	settlement := service.NewSettlementService(
		store,
		bank,
		storage.NewRedisAdapter(rdb),
		service.Config{
			QuoteAsset:     cfg.Settlement.QuoteAsset,
			CustodyAccount: cfg.Settlement.CustodyAccount,
			FeeRecipient:   cfg.Settlement.FeeRecipient,
			FeeBps:         cfg.Settlement.FeeBps,
			QueueSize:      cfg.Settlement.QueueSize,
		},
		logger,
		metrics,
	)

	// Start receipt workers
	var wg sync.WaitGroup
	for i := 0; i < cfg.Settlement.WorkerCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			workerLoop(id, settlement.GetReceiptQueue(), receipts, logger)
		}(i)
	}
	logger.Info("started receipt workers", "count", cfg.Settlement.WorkerCount)

	// Initialize gRPC server
	grpcServer := grpc.NewServer()
	rpc.RegisterCustodyServer(grpcServer, handler.NewGRPCHandler(settlement))

	lis, err := net.Listen("tcp", cfg.Server.GRPCPort)
	if err != nil {
		logger.Error("failed to listen", "port", cfg.Server.GRPCPort, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("gRPC server listening", "port", cfg.Server.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC server error", "error", err)
		}
	}()

	// Initialize HTTP server
	mux := http.NewServeMux()
	handler.NewHTTPHandler(settlement).Register(mux)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPPort,
		Handler: mux,
	}
	go func() {
		logger.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("HTTP server stopped")

	grpcServer.GracefulStop()
	logger.Info("gRPC server stopped")

	settlement.Close()
	wg.Wait()
	logger.Info("receipt workers stopped")

	rdb.Close()
	logger.Info("connections closed")
}

func workerLoop(id int, queue <-chan domain.Receipt, receipts port.ReceiptRepository, logger *slog.Logger) {
	for receipt := range queue {
		if receipts == nil {
			logger.Debug("receipt drained", "worker", id, "receipt", receipt.ID)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := receipts.SaveReceipt(ctx, receipt); err != nil {
			logger.Error("failed to save receipt", "worker", id, "receipt", receipt.ID, "error", err)
		} else {
			logger.Debug("receipt saved", "worker", id, "receipt", receipt.ID)
		}
		cancel()
	}
}
