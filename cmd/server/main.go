package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	webAdapter "stockcost/internal/adapters/web"
	"stockcost/internal/app"
	"stockcost/internal/cache"
	"stockcost/internal/config"
	"stockcost/internal/core"
	"stockcost/internal/db"
	"stockcost/internal/logger"
	"stockcost/internal/metrics"
)

func main() {
	log := logger.Must(logger.New())
	defer log.Sync()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	ttls := cache.DefaultTTLs
	if cfg.Cache.StockTTL > 0 {
		ttls[cache.CategoryStock] = cfg.Cache.StockTTL
	}
	if cfg.Cache.PeriodPricesTTL > 0 {
		ttls[cache.CategoryPeriodPrices] = cfg.Cache.PeriodPricesTTL
	}
	if cfg.Cache.NCRsTTL > 0 {
		ttls[cache.CategoryNCRs] = cfg.Cache.NCRsTTL
	}
	c := cache.New(ttls)

	m := metrics.New(prometheus.DefaultRegisterer)

	periodSvc := core.NewPeriodService(pool, c)
	ncrSvc := core.NewNCRService(pool, c)
	receiptSvc := core.NewReceiptService(pool, periodSvc, ncrSvc, c)
	stockSvc := core.NewStockService(pool, c)

	svc := app.NewAppService(receiptSvc, stockSvc, periodSvc, ncrSvc, m, logger.Named(log, "app"))
	handler := webAdapter.NewHandler(svc, cfg.Server, logger.Named(log, "http"), m)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", zap.Error(err))
	}
}
