// Package app runs the reconciliation loop: one goroutine owns the
// watchlist, the symbol directory and the credential state, consuming
// tagged completion events from both providers alongside the refresh timer
// and intents forwarded by the external shell.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"stockwatch/internal/config"
	"stockwatch/internal/event"
	"stockwatch/internal/quote"
	"stockwatch/internal/search"
	"stockwatch/internal/store"
	"stockwatch/internal/symdir"
	"stockwatch/internal/watchlist"
)

const favoritesKey = "favorites"

// GlobalSource is the global provider surface the loop needs.
type GlobalSource interface {
	quote.Source
	FetchCatalog(ctx context.Context)
}

// DomesticSource is the domestic provider surface the loop needs.
type DomesticSource interface {
	quote.Source
	Authenticate(ctx context.Context)
}

type intent interface {
	isIntent()
}

type refreshIntent struct{}

type removeRowIntent struct {
	row int
}

type lookupIntent struct {
	input string
}

func (refreshIntent) isIntent()   {}
func (removeRowIntent) isIntent() {}
func (lookupIntent) isIntent()    {}

type App struct {
	cfg      config.Config
	log      *zap.Logger
	dir      *symdir.Directory
	list     *watchlist.Watchlist
	settings *store.Settings
	global   GlobalSource
	domestic DomesticSource
	searcher *search.Controller

	events  chan event.Event
	intents chan intent

	// OnRows, when set, receives a snapshot after every state change; the
	// external view renders from it. Runs on the loop goroutine.
	OnRows func([]quote.Quote)
	// OnCatalogReady fires once when search can be unlocked.
	OnCatalogReady func()
}

func New(cfg config.Config, dir *symdir.Directory, settings *store.Settings, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		cfg:      cfg,
		log:      log.Named("app"),
		dir:      dir,
		list:     watchlist.New(),
		settings: settings,
		events:   make(chan event.Event, 256),
		intents:  make(chan intent, 64),
	}
}

// Events is the channel both providers emit into. Pass it to the source
// constructors before Run.
func (a *App) Events() chan event.Event {
	return a.events
}

// SetSources attaches the two providers. Must be called before Run.
func (a *App) SetSources(global GlobalSource, domestic DomesticSource) {
	a.global = global
	a.domestic = domestic
}

// SetSearcher attaches the search controller used for lookup intents.
func (a *App) SetSearcher(s *search.Controller) {
	a.searcher = s
}

// RequestRefresh, RequestRemoveRow and RequestLookup forward user intents
// from the external shell into the loop.
func (a *App) RequestRefresh() {
	a.intents <- refreshIntent{}
}

func (a *App) RequestRemoveRow(row int) {
	a.intents <- removeRowIntent{row: row}
}

func (a *App) RequestLookup(input string) {
	a.intents <- lookupIntent{input: input}
}

// Run drives the loop until ctx is canceled, then persists the favorites
// list. The directory load is local and synchronous; catalog fetch and
// authentication start in the background and report back as events.
func (a *App) Run(ctx context.Context) error {
	a.dir.LoadMasterFiles(a.cfg.Watch.MasterFiles...)
	a.log.Info("symbol directory ready", zap.Int("entries", a.dir.Len()))

	a.global.FetchCatalog(ctx)
	a.domestic.Authenticate(ctx)
	a.refresh(ctx)

	interval := time.Duration(a.cfg.Watch.RefreshSec) * time.Second
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.saveFavorites()
			return nil
		case ev := <-a.events:
			a.handleEvent(ctx, ev)
		case in := <-a.intents:
			a.handleIntent(ctx, in)
		case <-ticker.C:
			a.log.Debug("auto refresh")
			a.refresh(ctx)
		}
	}
}

func (a *App) handleEvent(ctx context.Context, ev event.Event) {
	switch e := ev.(type) {
	case event.QuoteReceived:
		a.list.Merge(e.Quote)
		a.notifyRows()
	case event.LogoReceived:
		a.list.UpdateLogo(e.Symbol, e.Logo)
		a.notifyRows()
	case event.Authenticated:
		a.log.Info("provider authenticated", zap.String("source", e.Source))
		a.refresh(ctx)
	case event.CatalogReady:
		a.log.Info("search unlocked", zap.String("source", e.Source), zap.Int("count", e.Count))
		if a.OnCatalogReady != nil {
			a.OnCatalogReady()
		}
	}
}

func (a *App) handleIntent(ctx context.Context, in intent) {
	switch i := in.(type) {
	case refreshIntent:
		a.refresh(ctx)
	case removeRowIntent:
		if a.list.RemoveAt(i.row) {
			a.notifyRows()
		}
	case lookupIntent:
		if a.searcher != nil {
			a.searcher.Submit(ctx, i.input)
		}
	}
}

// refresh dispatches quote and logo fetches for every watched symbol. An
// empty watchlist falls back to persisted favorites, then to the built-in
// defaults. Requests still in flight from a previous cycle are not
// deduplicated; late responses merge by symbol tag either way.
func (a *App) refresh(ctx context.Context) {
	symbols := a.list.Symbols()
	if len(symbols) == 0 {
		if favs, ok := a.settings.GetStrings(favoritesKey); ok && len(favs) > 0 {
			symbols = favs
		} else {
			symbols = a.cfg.Watch.DefaultSymbols
		}
	}
	for _, sym := range symbols {
		var src quote.Source = a.global
		if search.Classify(sym) == search.MarketDomestic {
			src = a.domestic
		}
		src.FetchQuote(ctx, sym)
		src.FetchLogo(ctx, sym)
	}
}

func (a *App) saveFavorites() {
	a.settings.SetStrings(favoritesKey, a.list.Symbols())
	if err := a.settings.Save(); err != nil {
		a.log.Warn("favorites not persisted", zap.Error(err))
		return
	}
	a.log.Info("favorites persisted", zap.Int("count", a.list.Len()))
}

func (a *App) notifyRows() {
	if a.OnRows != nil {
		a.OnRows(a.list.Rows())
	}
}
