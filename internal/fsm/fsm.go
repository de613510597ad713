// Package fsm implements the resumable byte-oriented FIX parser described
// in the feed-handler design: a per-byte finite state machine that
// preserves all state across arbitrary input boundaries, so that feeding
// it a message in one call or byte-by-byte across many calls yields the
// identical sequence of emitted ticks.
//
// The alphabet is raw octets; the delimiter set is '|', SOH (0x01), '\n'
// and '\r'. Production FIX uses SOH exclusively; '|' is the test corpus's
// human-readable stand-in, and both are accepted unconditionally.
//
// '\n' additionally terminates a message when the in-progress tick is
// already valid, mirroring the upstream source this parser is modelled
// on. That is non-standard FIX — a strict deployment should rely on tag
// 10 (checksum) alone — but it is the behaviour this package implements.
package fsm

import (
	"time"

	"github.com/kvenkit/fixfeed/pkg/fixed"
	"github.com/kvenkit/fixfeed/pkg/tick"
)

const (
	maxTagDigits  = 15
	maxValueBytes = 255
	maxSymbolLen  = 64
)

type state uint8

const (
	stateWaitTag state = iota
	stateReadTag
	stateReadValue
	stateComplete
)

// Recognized FIX tags. Every other tag is parsed into the value scratch
// and then silently ignored at commit time.
const (
	tagSymbol    = 55
	tagPrice     = 44
	tagOrderQty  = 38
	tagSide      = 54
	tagChecksum  = 10
)

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isDelimiter(c byte) bool {
	return c == '|' || c == 0x01 || c == '\n' || c == '\r'
}

// builder accumulates the four required fields of an in-progress tick. It
// is reset after every finalized message, valid or not.
type builder struct {
	symbol    [maxSymbolLen]byte
	symbolLen uint8

	price int64
	qty   int32
	side  tick.Side

	hasSymbol, hasPrice, hasQty, hasSide bool
}

func (b *builder) reset() { *b = builder{} }

func (b *builder) valid() bool {
	return b.hasSymbol && b.hasPrice && b.hasQty && b.hasSide &&
		b.symbolLen > 0 && b.price > 0 && b.qty > 0 &&
		(b.side == tick.SideBuy || b.side == tick.SideSell)
}

// FSM is a per-connection resumable FIX parser. An FSM owns all of its
// scratch storage — no pointer into caller-supplied input is retained
// once Parse/ParseChunk returns, satisfying the resumability contract for
// arbitrarily fragmented input.
type FSM struct {
	st state

	tagBuf [maxTagDigits + 1]byte
	tagLen int
	tag    int32

	valueBuf [maxValueBytes + 1]byte
	valueLen int

	tb        builder
	inMessage bool // a field has been committed since the last finalize or Reset
}

// New constructs a fresh FSM in WAIT_TAG.
func New() *FSM {
	return &FSM{}
}

// Reset returns the FSM to its initial state, discarding any in-progress
// field or tick. Used after a connection reset or after a garbage
// recovery realignment, where any partially-accumulated state is
// untrustworthy.
func (f *FSM) Reset() {
	f.st = stateWaitTag
	f.tagLen = 0
	f.tag = 0
	f.valueLen = 0
	f.tb.reset()
	f.inMessage = false
}

// IsParsing reports whether the FSM is currently mid-field — i.e. not
// sitting at a clean field boundary. It also reports true in the COMPLETE
// state, right after a message was finalized and before the next byte.
// Used by the garbage-recovery policy to decide whether recovery may
// safely run, and exposed as a test hook.
func (f *FSM) IsParsing() bool {
	return f.st != stateWaitTag || f.tagLen != 0
}

// Parse feeds input through the FSM, invoking sink for every completed,
// valid tick. Parse may be called repeatedly with disjoint slices that
// form a concatenated stream; the sequence of emitted ticks is identical
// to calling Parse once on the concatenation (fragmentation equivalence).
func (f *FSM) Parse(input []byte, sink tick.Consumer) {
	for _, c := range input {
		if f.step(c) {
			f.finalize(sink)
		}
	}
}

// step advances the FSM by one byte and reports whether a message just
// completed (checksum committed, or '\n' arrived while the builder was
// already valid).
func (f *FSM) step(c byte) bool {
	switch f.st {
	case stateWaitTag:
		if isDigit(c) {
			f.tagBuf[0] = c
			f.tagLen = 1
			f.st = stateReadTag
		}
		// Any other byte (whitespace, a stray delimiter) is tolerated.

	case stateReadTag:
		switch {
		case isDigit(c):
			if f.tagLen < maxTagDigits {
				f.tagBuf[f.tagLen] = c
				f.tagLen++
			}
			// Overflow beyond maxTagDigits is silently dropped; the next
			// '=' still ends the tag correctly using what fit.
		case c == '=':
			f.tag = fixed.ScanInt32(f.tagBuf[:f.tagLen])
			f.valueLen = 0
			f.st = stateReadValue
		default:
			f.tagLen = 0
			f.st = stateWaitTag
		}

	case stateReadValue:
		if isDelimiter(c) {
			checksumSeen := f.commitField()
			f.valueLen = 0
			f.tagLen = 0
			f.st = stateWaitTag

			if checksumSeen {
				f.st = stateComplete
				return true
			}
			if c == '\n' && f.tb.valid() {
				f.st = stateComplete
				return true
			}
		} else if f.valueLen < maxValueBytes {
			f.valueBuf[f.valueLen] = c
			f.valueLen++
		}
		// Overflow beyond maxValueBytes truncates; the next delimiter
		// still resynchronises on whatever fit.

	case stateComplete:
		f.st = stateWaitTag
		if isDigit(c) {
			f.tagBuf[0] = c
			f.tagLen = 1
			f.st = stateReadTag
		}
	}

	return false
}

// commitField dispatches the just-completed tag=value pair into the
// builder. It reports whether tag 10 (checksum) was just committed,
// which always marks the message complete regardless of builder validity.
func (f *FSM) commitField() (checksumSeen bool) {
	value := f.valueBuf[:f.valueLen]
	f.inMessage = true

	switch f.tag {
	case tagSymbol:
		n := copy(f.tb.symbol[:], value)
		f.tb.symbolLen = uint8(n)
		f.tb.hasSymbol = true
	case tagPrice:
		f.tb.price = fixed.ScanFixed(value, fixed.DefaultScale)
		f.tb.hasPrice = true
	case tagOrderQty:
		f.tb.qty = fixed.ScanInt32(value)
		f.tb.hasQty = true
	case tagSide:
		f.tb.side = tick.FixSideToSide(fixed.ScanInt32(value))
		f.tb.hasSide = true
	case tagChecksum:
		return true
	}
	return false
}

// finalize emits the current tick if it is valid and always resets the
// builder afterward. An invalid builder at this point is silently
// dropped — the FSM never synthesizes a partial tick.
func (f *FSM) finalize(sink tick.Consumer) {
	if f.tb.valid() {
		var t tick.Tick
		t.SetSymbol(f.tb.symbol[:f.tb.symbolLen])
		t.Price = f.tb.price
		t.Qty = f.tb.qty
		t.Side = f.tb.side
		t.TimeStamp = uint64(time.Now().UnixNano())
		sink(t)
	}
	f.tb.reset()
	f.inMessage = false
}

// ParseChunk is Parse extended with the garbage-recovery policy: recovery
// is attempted only when the FSM sits between messages (at a clean field
// boundary with no field of the current message committed yet) and the
// next byte doesn't already look like the start of a FIX message. When
// recovery finds the "8=FIX" anchor, the FSM is reset (discarding
// whatever was accumulated before realignment) and the anchor bytes are
// fed back through it, so parsing resumes at the anchor even when the
// anchor straddled two calls. When recovery is nil, ParseChunk behaves exactly like
// Parse — corrupted bytes simply flow through WAIT_TAG harmlessly.
//
// unresolved reports whether recovery was engaged but failed to find the
// anchor anywhere in data — i.e. this call's input was entirely
// undecodable garbage. Pipeline uses this to count parse errors; it is
// never true when recovery is nil, and it is never true for a message
// that is merely split across a chunk boundary (that is ordinary
// fragmentation, not an error).
func (f *FSM) ParseChunk(data []byte, recovery *Recovery, sink tick.Consumer) (unresolved bool) {
	for len(data) > 0 {
		if recovery != nil && !f.IsParsing() && !f.inMessage && data[0] != anchor[0] {
			garbage, recovered, matchEnd := recovery.Scan(data)
			if !recovered {
				_ = garbage
				return true
			}
			f.Reset()
			for _, c := range anchor {
				f.step(c)
			}
			data = data[matchEnd:]
			continue
		}

		c := data[0]
		data = data[1:]
		if f.step(c) {
			f.finalize(sink)
		}
	}
	return false
}
