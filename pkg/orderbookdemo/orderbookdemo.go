// Package orderbookdemo is a thin best-bid/best-ask tracker, built only
// to give a consumer of pkg/tick ticks somewhere to go in example
// binaries. It is explicitly not an order book: it keeps exactly the
// best level on each side and discards everything else, whereas a real
// book maintains every price level and the aggregated size at each.
package orderbookdemo

import (
	"fmt"

	"github.com/govalues/decimal"

	"github.com/kvenkit/fixfeed/pkg/tick"
)

// priceScaleDigits is the number of fractional digits fixed.DefaultScale
// represents, used only to format a price for display.
const priceScaleDigits = 4

// Level is one side's best price and the quantity resting there.
type Level struct {
	Price int64 // fixed-point, scale fixed.DefaultScale
	Qty   int32
}

// Tracker keeps the best bid and best ask observed for a single symbol.
// It is not safe for concurrent use.
type Tracker struct {
	symbol string

	bestBid Level
	bestAsk Level
	hasBid  bool
	hasAsk  bool
}

// New constructs a Tracker for symbol.
func New(symbol string) *Tracker {
	return &Tracker{symbol: symbol}
}

// Consume updates the tracker from one tick. Ticks for a different
// symbol than the tracker was constructed with are ignored. Trade-side
// ticks (from repeating-group MDEntryType 2) never update either best
// level — a trade print isn't a resting quote.
func (t *Tracker) Consume(tk tick.Tick) {
	if tk.Symbol() != t.symbol {
		return
	}
	switch tk.Side {
	case tick.SideBuy:
		if !t.hasBid || tk.Price > t.bestBid.Price {
			t.bestBid = Level{Price: tk.Price, Qty: tk.Qty}
			t.hasBid = true
		}
	case tick.SideSell:
		if !t.hasAsk || tk.Price < t.bestAsk.Price {
			t.bestAsk = Level{Price: tk.Price, Qty: tk.Qty}
			t.hasAsk = true
		}
	}
}

// BestBid returns the current best bid and whether one has been observed.
func (t *Tracker) BestBid() (Level, bool) { return t.bestBid, t.hasBid }

// BestAsk returns the current best ask and whether one has been observed.
func (t *Tracker) BestAsk() (Level, bool) { return t.bestAsk, t.hasAsk }

// Spread returns the best-ask-minus-best-bid spread as a display string,
// or "" if either side hasn't been observed yet. Spread and String are
// the only places in the module a decimal type touches a price — the
// parse and tracking hot paths stay on plain int64 throughout.
func (t *Tracker) Spread() string {
	if !t.hasBid || !t.hasAsk {
		return ""
	}
	bid, err := decimal.New(t.bestBid.Price, priceScaleDigits)
	if err != nil {
		return ""
	}
	ask, err := decimal.New(t.bestAsk.Price, priceScaleDigits)
	if err != nil {
		return ""
	}
	spread, err := ask.Sub(bid)
	if err != nil {
		return ""
	}
	return spread.String()
}

// String formats the tracker's current best bid/ask for display.
func (t *Tracker) String() string {
	bidStr, askStr := "-", "-"
	if t.hasBid {
		if d, err := decimal.New(t.bestBid.Price, priceScaleDigits); err == nil {
			bidStr = d.String()
		}
	}
	if t.hasAsk {
		if d, err := decimal.New(t.bestAsk.Price, priceScaleDigits); err == nil {
			askStr = d.String()
		}
	}
	return fmt.Sprintf("%s bid=%s(%d) ask=%s(%d)", t.symbol, bidStr, t.bestBid.Qty, askStr, t.bestAsk.Qty)
}
