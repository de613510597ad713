// Package tick defines the market-data event emitted by the feed handler,
// in its two ownership variants: an owning Tick whose symbol is copied
// into an inline buffer, and a Flyweight whose symbol is a borrowed view
// into a caller-owned byte region.
package tick

// Side identifies which side of the book (or trade direction) a tick
// belongs to.
type Side byte

const (
	// SideInvalid is the zero value: no valid side was observed.
	SideInvalid Side = 0
	SideBuy     Side = 'B'
	SideSell    Side = 'S'
	// SideTrade is only produced by repeating-group (market-depth)
	// decoding; the single-message FSM never emits it.
	SideTrade Side = 'T'
)

// maxSymbolLen bounds the inline symbol storage carried by an owning Tick.
const maxSymbolLen = 64

// Consumer receives completed, valid ticks. Implementations must not call
// back into the pipeline that invoked them (see pkg/pipeline).
type Consumer func(Tick)

// Tick is the owning variant: symbolBuf holds a copy of the symbol, so a
// Tick may outlive the transport bytes it was parsed from.
type Tick struct {
	symbolBuf [maxSymbolLen]byte
	symbolLen uint8

	Price     int64 // fixed-point, scale fixed.DefaultScale
	Qty       int32
	Side      Side
	TimeStamp uint64 // unix nanoseconds, filled at emission
}

// SetSymbol copies up to maxSymbolLen bytes of sym into the tick's inline
// buffer, silently truncating anything beyond that — the same truncation
// policy the FSM's value scratch uses.
func (t *Tick) SetSymbol(sym []byte) {
	n := copy(t.symbolBuf[:], sym)
	t.symbolLen = uint8(n)
}

// Symbol returns the tick's symbol as a string backed by the tick's own
// inline array; it is always safe to retain.
func (t *Tick) Symbol() string {
	return string(t.symbolBuf[:t.symbolLen])
}

// Reset clears the tick back to its zero value so a pooled slot can be
// reused without leaking the previous occupant's symbol bytes into a
// shorter subsequent write (SetSymbol alone would leave stale trailing
// bytes if symbolLen shrinks, but Symbol() never reads past symbolLen so
// this is only needed for hygiene, not correctness).
func (t *Tick) Reset() {
	*t = Tick{}
}

// Valid reports whether t satisfies the tick validity predicate: non-empty
// symbol, positive price, positive quantity, and a known side.
func (t *Tick) Valid() bool {
	return t.symbolLen > 0 && t.Price > 0 && t.Qty > 0 && (t.Side == SideBuy || t.Side == SideSell || t.Side == SideTrade)
}

// Flyweight is the borrowed variant, for callers that can statically
// guarantee the source buffer outlives the tick batch. pkg/mdgroup does
// not produce Flyweights: its Decode returns owning Ticks. Consumers must
// not retain a Flyweight past the next recycle of the buffer it points
// into.
type Flyweight struct {
	Symbol    []byte
	Price     int64
	Qty       int32
	Side      Side
	TimeStamp uint64
}

// Valid mirrors Tick.Valid for the borrowed representation.
func (f Flyweight) Valid() bool {
	return len(f.Symbol) > 0 && f.Price > 0 && f.Qty > 0 && (f.Side == SideBuy || f.Side == SideSell || f.Side == SideTrade)
}

// ToOwning copies a Flyweight into a fresh owning Tick, severing the
// dependency on the source buffer.
func (f Flyweight) ToOwning() Tick {
	var t Tick
	t.SetSymbol(f.Symbol)
	t.Price = f.Price
	t.Qty = f.Qty
	t.Side = f.Side
	t.TimeStamp = f.TimeStamp
	return t
}

// FixSideToSide maps the FIX Side(54) integer encoding (1=buy, 2=sell) to
// Side. Any other value yields SideInvalid.
func FixSideToSide(v int32) Side {
	switch v {
	case 1:
		return SideBuy
	case 2:
		return SideSell
	default:
		return SideInvalid
	}
}

// MDEntryTypeToSide maps the FIX MDEntryType(269) encoding used by
// repeating groups (0=bid, 1=offer, 2=trade) to Side.
func MDEntryTypeToSide(v int32) Side {
	switch v {
	case 0:
		return SideBuy
	case 1:
		return SideSell
	case 2:
		return SideTrade
	default:
		return SideInvalid
	}
}
