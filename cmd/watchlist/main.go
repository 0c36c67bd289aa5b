package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/app"
	"stockwatch/internal/config"
	"stockwatch/internal/finnhub"
	"stockwatch/internal/httpx"
	"stockwatch/internal/kis"
	"stockwatch/internal/ratelimit"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
	"stockwatch/internal/symdir"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Finnhub.Token == "" {
		log.Warn("FINNHUB_TOKEN not set; global quotes will be rejected upstream")
	}
	if cfg.KIS.AppKey == "" || cfg.KIS.AppSecret == "" {
		log.Warn("KIS credentials not set; domestic quotes stay locked")
	}

	settings, err := store.Open(cfg.Watch.SettingsPath)
	if err != nil {
		log.Fatal("settings", zap.Error(err))
	}

	httpClient := httpx.New(time.Duration(cfg.Watch.RequestTimeoutSec) * time.Second)
	dir := symdir.New(log)

	a := app.New(cfg, dir, settings, log)

	global := finnhub.New(cfg.Finnhub.Token, a.Events(), dir, log,
		finnhub.WithBaseURL(cfg.Finnhub.BaseURL),
		finnhub.WithHTTPClient(httpClient),
		finnhub.WithLimiter(ratelimit.PerMinute(cfg.Finnhub.MaxRequestsPerMinute, cfg.Finnhub.Burst)),
	)
	domestic := kis.New(cfg.KIS.AppKey, cfg.KIS.AppSecret, kis.NewTokenStore(settings), a.Events(), dir, log,
		kis.WithBaseURL(cfg.KIS.BaseURL),
		kis.WithLogoBaseURL(cfg.KIS.LogoBaseURL),
		kis.WithHTTPClient(httpClient),
	)
	a.SetSources(global, domestic)

	searcher := search.NewController(dir, global, domestic,
		time.Duration(cfg.Watch.DebounceMs)*time.Millisecond, cfg.Watch.SearchLimit,
		func(results []string) {
			log.Debug("suggestions", zap.Strings("results", results))
		}, log)
	a.SetSearcher(searcher)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("watchlist engine starting",
		zap.Int("refresh_sec", cfg.Watch.RefreshSec),
		zap.Strings("master_files", cfg.Watch.MasterFiles))
	if err := a.Run(ctx); err != nil {
		log.Fatal("run", zap.Error(err))
	}
	searcher.Stop()
	log.Info("watchlist engine stopped")
}

func newLogger() (*zap.Logger, error) {
	if os.Getenv("APP_ENV") == "local" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
