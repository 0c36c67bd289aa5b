package quote

import (
	"context"
	"image"
)

// Quote is the normalized per-symbol snapshot merged into the watchlist.
// Symbol is the merge key and is never empty after creation.
type Quote struct {
	Symbol    string
	Name      string
	Current   float64
	Open      float64
	High      float64
	Low       float64
	PrevClose float64
	// Previous is the current price observed immediately before the latest
	// merge for this symbol. It drives change highlighting, not valuation.
	Previous float64
	Logo     image.Image
}

// ChangePercent is the day change relative to the previous close.
func (q Quote) ChangePercent() float64 {
	if q.PrevClose == 0 {
		return 0
	}
	return (q.Current - q.PrevClose) / q.PrevClose * 100
}

// Source is the capability contract shared by both market-data providers.
// Fetch calls are asynchronous: they return immediately and deliver their
// result as a tagged event. Responses may complete out of issuance order;
// consumers must attribute results by the event's symbol tag.
type Source interface {
	Name() string
	FetchQuote(ctx context.Context, symbol string)
	FetchLogo(ctx context.Context, symbol string)
}
