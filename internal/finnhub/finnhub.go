// Package finnhub is the global-exchange quote source. Quote and logo
// fetches are asynchronous and tagged with their symbol; the full US symbol
// catalog is bootstrapped with indefinite fixed-delay retries because
// search cannot work without it.
package finnhub

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/event"
	"stockwatch/internal/imaging"
	"stockwatch/internal/quote"
	"stockwatch/internal/ratelimit"
	"stockwatch/internal/symdir"
)

// HTTPClient describes the outbound HTTP capability.
//
//go:generate mockgen -package=finnhub_test -destination=mock_http_client_test.go -source=finnhub.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

const (
	quoteTimeout      = 5 * time.Second
	logoTimeout       = 10 * time.Second
	catalogRetryDelay = 2 * time.Second
)

type Client struct {
	baseURL string
	token   string
	http    HTTPClient
	limiter *ratelimit.Limiter
	events  chan<- event.Event
	dir     *symdir.Directory
	decoder imaging.Decoder
	log     *zap.Logger
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLimiter gates outbound requests with a rate limiter.
func WithLimiter(l *ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithDecoder overrides the logo image decoder.
func WithDecoder(dec imaging.Decoder) Option {
	return func(c *Client) {
		c.decoder = dec
	}
}

func New(token string, events chan<- event.Event, dir *symdir.Directory, log *zap.Logger, options ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL: "https://finnhub.io/api/v1",
		token:   token,
		http:    defaultHTTPClient{},
		events:  events,
		dir:     dir,
		decoder: imaging.StdDecoder{},
		log:     log.Named("finnhub"),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

type defaultHTTPClient struct{}

func (defaultHTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return http.DefaultClient.Do(req.WithContext(ctx))
}

func (c *Client) Name() string { return "finnhub" }

// FetchQuote requests a quote for symbol and emits a QuoteReceived event on
// success. Transport errors and malformed bodies are logged and dropped;
// the next refresh tick retries naturally.
func (c *Client) FetchQuote(ctx context.Context, symbol string) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
		defer cancel()
		q, err := c.Quote(ctx, symbol)
		if err != nil {
			c.log.Warn("quote fetch dropped", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		c.emit(ctx, event.QuoteReceived{Quote: q})
	}()
}

// Quote fetches a single quote synchronously.
func (c *Client) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	if err := c.wait(ctx); err != nil {
		return quote.Quote{}, err
	}
	q := url.Values{"symbol": {symbol}, "token": {c.token}}
	resp, err := c.get(ctx, "/quote", q)
	if err != nil {
		return quote.Quote{}, err
	}
	defer resp.Body.Close()

	// c is the only field every valid quote body carries; its absence
	// marks the response malformed regardless of HTTP status.
	var body struct {
		C  *float64 `json:"c"`
		H  float64  `json:"h"`
		L  float64  `json:"l"`
		O  float64  `json:"o"`
		Pc float64  `json:"pc"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return quote.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if body.C == nil {
		return quote.Quote{}, fmt.Errorf("quote %s: missing field c", symbol)
	}
	out := quote.Quote{
		Symbol:    symbol,
		Name:      c.dir.NameFor(symbol),
		Current:   *body.C,
		Open:      body.O,
		High:      body.H,
		Low:       body.L,
		PrevClose: body.Pc,
	}
	out.Previous = out.Current
	return out, nil
}

// FetchLogo looks up the company profile for its logo URL, downloads the
// image and emits a LogoReceived event. A missing URL or a decode failure
// drops the logo silently.
func (c *Client) FetchLogo(ctx context.Context, symbol string) {
	go func() {
		logoURL, err := c.profileLogoURL(ctx, symbol)
		if err != nil {
			c.log.Warn("profile fetch dropped", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		if logoURL == "" {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, logoTimeout)
		defer cancel()
		img, err := imaging.FetchLogo(ctx, c.http, logoURL, c.decoder)
		if err != nil {
			c.log.Debug("logo dropped", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		c.emit(ctx, event.LogoReceived{Symbol: symbol, Logo: img})
	}()
}

func (c *Client) profileLogoURL(ctx context.Context, symbol string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	q := url.Values{"symbol": {symbol}, "token": {c.token}}
	resp, err := c.get(ctx, "/stock/profile2", q)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	var body struct {
		Logo string `json:"logo"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode profile: %w", err)
	}
	return body.Logo, nil
}

// FetchCatalog loads the full US symbol list into the directory and emits
// CatalogReady once done. Transport failures reschedule after a fixed delay
// forever; a malformed body is logged and abandoned.
func (c *Client) FetchCatalog(ctx context.Context) {
	go func() {
		for {
			n, retryable, err := c.catalog(ctx)
			if err == nil {
				c.log.Info("symbol catalog loaded", zap.Int("count", n))
				c.emit(ctx, event.CatalogReady{Source: c.Name(), Count: n})
				return
			}
			if !retryable {
				c.log.Warn("symbol catalog malformed, giving up", zap.Error(err))
				return
			}
			c.log.Warn("symbol catalog fetch failed, retrying", zap.Error(err))
			select {
			case <-time.After(catalogRetryDelay):
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Client) catalog(ctx context.Context) (int, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()
	if err := c.wait(ctx); err != nil {
		return 0, false, err
	}
	q := url.Values{"exchange": {"US"}, "token": {c.token}}
	resp, err := c.get(ctx, "/stock/symbol", q)
	if err != nil {
		return 0, true, err
	}
	defer resp.Body.Close()

	var entries []struct {
		Symbol      string `json:"symbol"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return 0, false, fmt.Errorf("decode catalog: %w", err)
	}
	for _, e := range entries {
		name := e.Description
		if name == "" {
			name = e.Symbol
		}
		c.dir.AddOrUpdate(e.Symbol, name)
	}
	return len(entries), false, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.URL.RawQuery = query.Encode()
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s -> %d", path, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

func (c *Client) emit(ctx context.Context, ev event.Event) {
	// A client built without an event channel only serves the sync paths.
	if c.events == nil {
		return
	}
	select {
	case c.events <- ev:
	case <-ctx.Done():
	}
}
