package event

import (
	"image"

	"stockwatch/internal/quote"
)

// Event is a tagged completion delivered to the reconciliation loop.
// All state mutation happens on the loop goroutine; sources only emit.
type Event interface {
	isEvent()
}

// QuoteReceived carries a parsed quote. The symbol inside the quote is the
// tag of the request that produced it.
type QuoteReceived struct {
	Quote quote.Quote
}

// LogoReceived carries a decoded logo image for a symbol.
type LogoReceived struct {
	Symbol string
	Logo   image.Image
}

// CatalogReady signals that the full tradable-symbol catalog has been
// ingested into the directory. Emitted once per successful bootstrap.
type CatalogReady struct {
	Source string
	Count  int
}

// Authenticated signals that a provider acquired a usable token.
type Authenticated struct {
	Source string
}

func (QuoteReceived) isEvent() {}
func (LogoReceived) isEvent()  {}
func (CatalogReady) isEvent()  {}
func (Authenticated) isEvent() {}
