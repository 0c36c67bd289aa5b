// One-shot fetch: resolve each requested symbol to its provider, fetch the
// quotes concurrently and print them as JSON lines. Useful for smoke
// testing credentials without running the engine.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stockwatch/internal/config"
	"stockwatch/internal/finnhub"
	"stockwatch/internal/httpx"
	"stockwatch/internal/kis"
	"stockwatch/internal/quote"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
	"stockwatch/internal/symdir"
)

type row struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Current   float64 `json:"current"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prev_close"`
	Source    string  `json:"source"`
}

func main() {
	var symbolsCSV string
	var configPath string
	var timeoutSec int
	flag.StringVar(&symbolsCSV, "symbols", "AAPL,005930", "comma-separated symbols (six digits = domestic)")
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.json (optional)")
	flag.IntVar(&timeoutSec, "timeout", 15, "overall timeout in seconds")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	httpClient := httpx.New(time.Duration(timeoutSec) * time.Second)
	dir := symdir.New(log)
	dir.LoadMasterFiles(cfg.Watch.MasterFiles...)

	// Only the sync Quote paths are used here; nothing emits events.
	global := finnhub.New(cfg.Finnhub.Token, nil, dir, log,
		finnhub.WithBaseURL(cfg.Finnhub.BaseURL),
		finnhub.WithHTTPClient(httpClient),
	)

	var domestic *kis.Client
	if cfg.KIS.AppKey != "" && cfg.KIS.AppSecret != "" {
		settings, err := store.Open(cfg.Watch.SettingsPath)
		if err != nil {
			log.Fatal("settings", zap.Error(err))
		}
		domestic = kis.New(cfg.KIS.AppKey, cfg.KIS.AppSecret, kis.NewTokenStore(settings), nil, dir, log,
			kis.WithBaseURL(cfg.KIS.BaseURL),
			kis.WithLogoBaseURL(cfg.KIS.LogoBaseURL),
			kis.WithHTTPClient(httpClient),
		)
		if err := domestic.EnsureToken(ctx); err != nil {
			log.Warn("domestic auth failed; domestic symbols skipped", zap.Error(err))
			domestic = nil
		}
	}

	symbols := splitCSV(symbolsCSV)
	results := make([]quote.Quote, len(symbols))
	sources := make([]string, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, sym := range symbols {
		i, sym := i, sym
		g.Go(func() error {
			var q quote.Quote
			var err error
			if search.Classify(sym) == search.MarketDomestic {
				if domestic == nil {
					log.Warn("domestic symbol skipped: no credentials", zap.String("symbol", sym))
					return nil
				}
				q, err = domestic.Quote(gctx, sym)
				sources[i] = domestic.Name()
			} else {
				q, err = global.Quote(gctx, sym)
				sources[i] = global.Name()
			}
			if err != nil {
				log.Warn("fetch failed", zap.String("symbol", sym), zap.Error(err))
				return nil
			}
			results[i] = q
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal("fetch", zap.Error(err))
	}

	enc := json.NewEncoder(os.Stdout)
	for i, q := range results {
		if q.Symbol == "" {
			continue
		}
		enc.Encode(row{
			Symbol:    q.Symbol,
			Name:      q.Name,
			Current:   q.Current,
			Open:      q.Open,
			High:      q.High,
			Low:       q.Low,
			PrevClose: q.PrevClose,
			Source:    sources[i],
		})
	}
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
