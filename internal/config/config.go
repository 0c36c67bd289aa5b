package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Finnhub struct {
	BaseURL              string `json:"base_url"`
	Token                string `json:"token"`
	MaxRequestsPerMinute int    `json:"max_requests_per_minute"`
	Burst                int    `json:"burst"`
}

type KIS struct {
	BaseURL     string `json:"base_url"`
	LogoBaseURL string `json:"logo_base_url"`
	AppKey      string `json:"app_key"`
	AppSecret   string `json:"app_secret"`
}

type Watch struct {
	RefreshSec        int      `json:"refresh_sec"`
	DebounceMs        int      `json:"debounce_ms"`
	SearchLimit       int      `json:"search_limit"`
	RequestTimeoutSec int      `json:"request_timeout_sec"`
	MasterFiles       []string `json:"master_files"`
	DefaultSymbols    []string `json:"default_symbols"`
	SettingsPath      string   `json:"settings_path"`
}

type Config struct {
	Finnhub Finnhub `json:"finnhub"`
	KIS     KIS     `json:"kis"`
	Watch   Watch   `json:"watch"`
}

func Default() Config {
	return Config{
		Finnhub: Finnhub{
			BaseURL:              "https://finnhub.io/api/v1",
			MaxRequestsPerMinute: 60,
			Burst:                10,
		},
		KIS: KIS{
			BaseURL:     "https://openapi.koreainvestment.com:9443",
			LogoBaseURL: "https://file.alphasquare.co.kr",
		},
		Watch: Watch{
			RefreshSec:        10,
			DebounceMs:        300,
			SearchLimit:       25,
			RequestTimeoutSec: 15,
			MasterFiles:       []string{"kospi_code.mst", "kosdaq_code.mst"},
			DefaultSymbols:    []string{"AAPL", "GOOGL", "NVDA", "005930", "000660", "005380"},
			SettingsPath:      "stockwatch.json",
		},
	}
}

// Load reads JSON config from path. If path is empty or the file does not
// exist, it returns defaults. A .env file (if present) and environment
// variables override select fields, so API secrets stay out of the file.
func Load(path string) (Config, error) {
	cfg := Default()
	_ = godotenv.Load()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FINNHUB_TOKEN"); v != "" {
		cfg.Finnhub.Token = v
	}
	if v := os.Getenv("FINNHUB_BASE_URL"); v != "" {
		cfg.Finnhub.BaseURL = v
	}
	if v := os.Getenv("KIS_APP_KEY"); v != "" {
		cfg.KIS.AppKey = v
	}
	if v := os.Getenv("KIS_APP_SECRET"); v != "" {
		cfg.KIS.AppSecret = v
	}
	if v := os.Getenv("KIS_BASE_URL"); v != "" {
		cfg.KIS.BaseURL = v
	}
	if v := os.Getenv("KIS_LOGO_BASE_URL"); v != "" {
		cfg.KIS.LogoBaseURL = v
	}
	if v := os.Getenv("REFRESH_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Watch.RefreshSec = x
		}
	}
	if v := os.Getenv("DEBOUNCE_MS"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Watch.DebounceMs = x
		}
	}
	if v := os.Getenv("SEARCH_LIMIT"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Watch.SearchLimit = x
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		if x := atoi(v); x > 0 {
			cfg.Watch.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MASTER_FILES"); v != "" {
		cfg.Watch.MasterFiles = splitCSV(v)
	}
	if v := os.Getenv("DEFAULT_SYMBOLS"); v != "" {
		cfg.Watch.DefaultSymbols = splitCSV(v)
	}
	if v := os.Getenv("SETTINGS_PATH"); v != "" {
		cfg.Watch.SettingsPath = v
	}
}

func atoi(s string) int {
	var x int
	fmt.Sscanf(s, "%d", &x)
	return x
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
