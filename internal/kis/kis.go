// Package kis is the domestic brokerage quote source. Every data call needs
// a bearer token; authentication runs once up front and the token persists
// across restarts with an expiry safety margin.
package kis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/event"
	"stockwatch/internal/imaging"
	"stockwatch/internal/quote"
	"stockwatch/internal/symdir"
)

// HTTPClient describes the outbound HTTP capability.
//
//go:generate mockgen -package=kis_test -destination=mock_http_client_test.go -source=kis.go HTTPClient
type HTTPClient interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

const (
	quoteTimeout = 5 * time.Second
	logoTimeout  = 10 * time.Second

	// Transaction ID for the current-price inquiry, identical for paper
	// and live trading.
	quoteTrID = "FHKST01010100"
)

type Client struct {
	baseURL     string
	logoBaseURL string
	appKey      string
	appSecret   string
	http        HTTPClient
	events      chan<- event.Event
	dir         *symdir.Directory
	tokens      *TokenStore
	decoder     imaging.Decoder
	log         *zap.Logger

	mu    sync.Mutex
	token Token
}

// Option is a configuration option for the client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithLogoBaseURL overrides the logo host.
func WithLogoBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.logoBaseURL = baseURL
	}
}

// WithHTTPClient sets the HTTP client used for all requests.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithDecoder overrides the logo image decoder.
func WithDecoder(dec imaging.Decoder) Option {
	return func(c *Client) {
		c.decoder = dec
	}
}

func New(appKey, appSecret string, tokens *TokenStore, events chan<- event.Event, dir *symdir.Directory, log *zap.Logger, options ...Option) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		baseURL:     "https://openapi.koreainvestment.com:9443",
		logoBaseURL: "https://file.alphasquare.co.kr",
		appKey:      appKey,
		appSecret:   appSecret,
		http:        defaultHTTPClient{},
		events:      events,
		dir:         dir,
		tokens:      tokens,
		decoder:     imaging.StdDecoder{},
		log:         log.Named("kis"),
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

func (c *Client) Name() string { return "kis" }

// Authenticate adopts a persisted token when one is still valid, otherwise
// requests a fresh one asynchronously. Either path emits Authenticated on
// success. A failed request is logged; retrying is the caller's decision.
func (c *Client) Authenticate(ctx context.Context) {
	if tok, ok := c.tokens.Load(time.Now()); ok {
		c.setToken(tok)
		c.log.Info("persisted token adopted", zap.Time("expiry", tok.Expiry))
		c.emit(ctx, event.Authenticated{Source: c.Name()})
		return
	}
	go func() {
		if err := c.EnsureToken(ctx); err != nil {
			c.log.Warn("authentication failed", zap.Error(err))
			return
		}
		c.emit(ctx, event.Authenticated{Source: c.Name()})
	}()
}

// EnsureToken makes the client ready for data calls, requesting and
// persisting a new token unless a valid one is already held.
func (c *Client) EnsureToken(ctx context.Context) error {
	if _, ok := c.currentToken(); ok {
		return nil
	}
	if tok, ok := c.tokens.Load(time.Now()); ok {
		c.setToken(tok)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, quoteTimeout)
	defer cancel()

	payload, _ := json.Marshal(map[string]string{
		"grant_type": "client_credentials",
		"appkey":     c.appKey,
		"appsecret":  c.appSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth2/tokenP", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("token request -> %d", resp.StatusCode)
	}

	var body struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("decode token: %w", err)
	}
	if body.AccessToken == "" {
		return fmt.Errorf("token response: missing access_token")
	}

	tok := Token{Access: body.AccessToken, Expiry: time.Now().Add(time.Duration(body.ExpiresIn) * time.Second)}
	if err := c.tokens.Save(tok); err != nil {
		c.log.Warn("token not persisted", zap.Error(err))
	}
	c.setToken(tok)
	c.log.Info("token acquired", zap.Time("expiry", tok.Expiry))
	return nil
}

func (c *Client) setToken(t Token) {
	c.mu.Lock()
	c.token = t
	c.mu.Unlock()
}

func (c *Client) currentToken() (Token, bool) {
	c.mu.Lock()
	t := c.token
	c.mu.Unlock()
	if !t.Valid(time.Now()) {
		return Token{}, false
	}
	return t, true
}

// FetchQuote requests the current price for a six-digit symbol and emits a
// QuoteReceived event. Without a valid token the call is refused before any
// network I/O: a diagnostic, not a crash.
func (c *Client) FetchQuote(ctx context.Context, symbol string) {
	if _, ok := c.currentToken(); !ok {
		c.log.Warn("quote fetch refused: not authenticated", zap.String("symbol", symbol))
		return
	}
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

// Quote fetches a single quote synchronously. All price fields arrive as
// numeric strings; the previous close is not supplied directly and is
// derived from the day-change amount.
func (c *Client) Quote(ctx context.Context, symbol string) (quote.Quote, error) {
	tok, ok := c.currentToken()
	if !ok {
		return quote.Quote{}, fmt.Errorf("quote %s: not authenticated", symbol)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/uapi/domestic-stock/v1/quotations/inquire-price", nil)
	if err != nil {
		return quote.Quote{}, err
	}
	req.URL.RawQuery = url.Values{
		"fid_cond_mrkt_div_code": {"J"},
		"fid_input_iscd":         {symbol},
	}.Encode()
	req.Header.Set("Authorization", "Bearer "+tok.Access)
	req.Header.Set("appkey", c.appKey)
	req.Header.Set("appsecret", c.appSecret)
	req.Header.Set("tr_id", quoteTrID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return quote.Quote{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return quote.Quote{}, fmt.Errorf("quote %s -> %d", symbol, resp.StatusCode)
	}

	var body struct {
		Output struct {
			Price  string `json:"stck_prpr"`
			High   string `json:"stck_hgpr"`
			Low    string `json:"stck_lwpr"`
			Open   string `json:"stck_oprc"`
			Change string `json:"prdy_vrss"`
		} `json:"output"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return quote.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if body.Output.Price == "" {
		return quote.Quote{}, fmt.Errorf("quote %s: empty output", symbol)
	}

	current := parsePrice(body.Output.Price)
	change := parsePrice(body.Output.Change)
	out := quote.Quote{
		Symbol:    symbol,
		Name:      c.dir.NameFor(symbol),
		Current:   current,
		Open:      parsePrice(body.Output.Open),
		High:      parsePrice(body.Output.High),
		Low:       parsePrice(body.Output.Low),
		PrevClose: current - change,
	}
	out.Previous = out.Current
	return out, nil
}

// FetchLogo downloads the logo from its deterministic per-symbol URL and
// emits a LogoReceived event. Decode failures drop silently.
func (c *Client) FetchLogo(ctx context.Context, symbol string) {
	go func() {
		ctx, cancel := context.WithTimeout(ctx, logoTimeout)
		defer cancel()
		logoURL := fmt.Sprintf("%s/media/images/stock_logo/kr/%s.png", c.logoBaseURL, symbol)
		img, err := imaging.FetchLogo(ctx, c.http, logoURL, c.decoder)
		if err != nil {
			c.log.Debug("logo dropped", zap.String("symbol", symbol), zap.Error(err))
			return
		}
		c.emit(ctx, event.LogoReceived{Symbol: symbol, Logo: img})
	}()
}

func parsePrice(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
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
