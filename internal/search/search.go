// Package search turns raw user input into dispatched quote requests:
// debounced incremental suggestions while typing, then resolution of the
// chosen text to a canonical symbol routed to the right provider.
package search

import (
	"context"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/quote"
	"stockwatch/internal/symdir"
)

// Market classifies a canonical symbol by provider.
type Market int

const (
	MarketGlobal Market = iota
	MarketDomestic
)

var (
	domesticPattern   = regexp.MustCompile(`^[0-9]{6}$`)
	codeSuffixPattern = regexp.MustCompile(`\(([^)]+)\)$`)
)

// Classify routes a symbol by shape: exactly six ASCII digits is a domestic
// ticker, everything else is global.
func Classify(symbol string) Market {
	if domesticPattern.MatchString(symbol) {
		return MarketDomestic
	}
	return MarketGlobal
}

// Controller debounces keystrokes, produces ranked suggestions and
// dispatches resolved symbols. Keystroke bursts, including IME composition
// updates, coalesce into one directory search per pause.
type Controller struct {
	dir      *symdir.Directory
	global   quote.Source
	domestic quote.Source
	interval time.Duration
	limit    int
	suggest  func([]string)
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	pending string
}

// NewController wires the controller. suggest receives the ranked "name
// (code)" list each time the debounce window closes; it runs on the timer
// goroutine.
func NewController(dir *symdir.Directory, global, domestic quote.Source, interval time.Duration, limit int, suggest func([]string), log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = 300 * time.Millisecond
	}
	if limit <= 0 {
		limit = 25
	}
	return &Controller{
		dir:      dir,
		global:   global,
		domestic: domestic,
		interval: interval,
		limit:    limit,
		suggest:  suggest,
		log:      log.Named("search"),
	}
}

// TextEdited records committed text and restarts the debounce timer.
func (c *Controller) TextEdited(text string) {
	c.restart(text)
}

// Composing records in-progress IME input: the committed text combined with
// the current composition fragment, tracked separately by the input widget.
func (c *Controller) Composing(committed, preedit string) {
	c.restart(committed + preedit)
}

func (c *Controller) restart(pending string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = pending
	if c.timer == nil {
		c.timer = time.AfterFunc(c.interval, c.fire)
		return
	}
	c.timer.Stop()
	c.timer.Reset(c.interval)
}

func (c *Controller) fire() {
	c.mu.Lock()
	pending := c.pending
	c.mu.Unlock()
	if strings.TrimSpace(pending) == "" {
		return
	}
	results := c.dir.Search(pending, c.limit)
	if c.suggest != nil {
		c.suggest(results)
	}
}

// Stop cancels any pending debounce.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
}

// Resolve maps raw input to a canonical symbol. A trailing parenthesized
// suffix ("Samsung Electronics (005930)") extracts the code directly.
// Otherwise the input is treated as a name or code and resolved through the
// directory; an unknown name reports ok=false and nothing is dispatched.
func (c *Controller) Resolve(input string) (string, bool) {
	input = strings.ToUpper(strings.TrimSpace(input))
	if input == "" {
		return "", false
	}
	if m := codeSuffixPattern.FindStringSubmatch(input); m != nil {
		return m[1], true
	}
	target := input
	name := c.dir.NameFor(target)
	code, ok := c.dir.CodeFor(name)
	if code != target {
		if !ok {
			return "", false
		}
		if code != "" {
			target = code
		}
	}
	return target, true
}

// Submit resolves input and dispatches quote and logo fetches to the
// matching provider. Unresolvable input is a logged no-op.
func (c *Controller) Submit(ctx context.Context, input string) {
	symbol, ok := c.Resolve(input)
	if !ok {
		c.log.Info("lookup discarded", zap.String("input", input))
		return
	}
	src := c.global
	if Classify(symbol) == MarketDomestic {
		src = c.domestic
	}
	c.log.Debug("lookup dispatched", zap.String("symbol", symbol), zap.String("source", src.Name()))
	src.FetchQuote(ctx, symbol)
	src.FetchLogo(ctx, symbol)
}
