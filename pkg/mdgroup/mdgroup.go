// Package mdgroup decodes a single FIX market-data message that may carry
// a repeating group of price levels, into one Tick per level. It is a
// separate code path from internal/fsm: where the FSM streams arbitrary
// fragments and emits at most one tick per message, mdgroup is handed a
// complete, already-delimited message and returns every tick it contains
// in one call.
package mdgroup

import (
	"github.com/kvenkit/fixfeed/pkg/fixed"
	"github.com/kvenkit/fixfeed/pkg/tick"
)

const (
	maxFields  = 128
	maxIndices = 32
)

const (
	tagSymbol      = 55
	tagPrice       = 44
	tagOrderQty    = 38
	tagSide        = 54
	tagNoMDEntries = 268
	tagMDEntryType = 269
	tagMDEntryPx   = 270
	tagMDEntrySize = 271
)

// field is one decoded tag=value pair. value aliases the input message.
type field struct {
	tag   int32
	value []byte
}

// Decode parses message — a single FIX message using '|' or SOH as the
// field delimiter, with no trailing delimiter required on the last field
// — into zero or more ticks. The returned ticks' Symbol bytes are copied
// (via tick.Tick.SetSymbol), so the caller may reuse or discard message
// immediately after Decode returns.
//
// If the message carries a repeating group (a non-zero tag 268, or at
// least one occurrence of tag 269), one tick is produced per entry by
// zipping the i-th occurrence of 269/270/271 together; entries are dropped
// individually if invalid. Otherwise Decode falls back to a single tick
// built from 44-or-270 (price), 38-or-271 (quantity), and 54 (side).
func Decode(message []byte) []tick.Tick {
	var fields [maxFields]field
	fieldCount := extractFields(message, fields[:])

	var symbol []byte
	if f := findFirst(fields[:fieldCount], tagSymbol); f != nil {
		symbol = f.value
	}

	numEntries := 0
	if f := findFirst(fields[:fieldCount], tagNoMDEntries); f != nil {
		numEntries = int(fixed.ScanInt32(f.value))
	}
	if numEntries == 0 {
		var idx [maxIndices]int
		numEntries = findAll(fields[:fieldCount], tagMDEntryType, idx[:])
	}

	if numEntries == 0 {
		return decodeSingleTick(fields[:fieldCount], symbol)
	}
	return decodeGroups(fields[:fieldCount], symbol)
}

func decodeSingleTick(fields []field, symbol []byte) []tick.Tick {
	var t tick.Tick
	if symbol != nil {
		t.SetSymbol(symbol)
	}

	if f := findFirst(fields, tagPrice); f != nil {
		t.Price = fixed.ScanFixed(f.value, fixed.DefaultScale)
	} else if f := findFirst(fields, tagMDEntryPx); f != nil {
		t.Price = fixed.ScanFixed(f.value, fixed.DefaultScale)
	}

	if f := findFirst(fields, tagOrderQty); f != nil {
		t.Qty = fixed.ScanInt32(f.value)
	} else if f := findFirst(fields, tagMDEntrySize); f != nil {
		t.Qty = fixed.ScanInt32(f.value)
	}

	if f := findFirst(fields, tagSide); f != nil {
		t.Side = tick.FixSideToSide(fixed.ScanInt32(f.value))
	} else if f := findFirst(fields, tagMDEntryType); f != nil {
		t.Side = tick.MDEntryTypeToSide(fixed.ScanInt32(f.value))
	}

	if !t.Valid() {
		return nil
	}
	return []tick.Tick{t}
}

func decodeGroups(fields []field, symbol []byte) []tick.Tick {
	var typeIdx, priceIdx, sizeIdx [maxIndices]int

	typeCount := findAll(fields, tagMDEntryType, typeIdx[:])
	priceCount := findAll(fields, tagMDEntryPx, priceIdx[:])
	sizeCount := findAll(fields, tagMDEntrySize, sizeIdx[:])

	entryCount := min(typeCount, min(priceCount, sizeCount))

	ticks := make([]tick.Tick, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		var t tick.Tick
		if symbol != nil {
			t.SetSymbol(symbol)
		}

		entryType := fixed.ScanInt32(fields[typeIdx[i]].value)
		t.Side = tick.MDEntryTypeToSide(entryType)
		t.Price = fixed.ScanFixed(fields[priceIdx[i]].value, fixed.DefaultScale)
		t.Qty = fixed.ScanInt32(fields[sizeIdx[i]].value)

		if t.Valid() {
			ticks = append(ticks, t)
		}
	}
	return ticks
}

// extractFields splits message on '|'/SOH into tag=value pairs, writing
// up to len(out) fields and returning how many were written. Malformed
// segments (no '=', a non-numeric or non-positive tag) are skipped.
func extractFields(message []byte, out []field) int {
	n := 0
	start := 0
	for start < len(message) && n < len(out) {
		end := start
		for end < len(message) && !isDelimiter(message[end]) {
			end++
		}

		segment := message[start:end]
		if eq := indexByte(segment, '='); eq > 0 {
			tag := fixed.ScanInt32(segment[:eq])
			if tag > 0 {
				out[n] = field{tag: tag, value: segment[eq+1:]}
				n++
			}
		}
		start = end + 1
	}
	return n
}

func isDelimiter(c byte) bool {
	return c == '|' || c == 0x01 || c == '\n' || c == '\r'
}

func indexByte(b []byte, c byte) int {
	for i, v := range b {
		if v == c {
			return i
		}
	}
	return -1
}

func findFirst(fields []field, tag int32) *field {
	for i := range fields {
		if fields[i].tag == tag {
			return &fields[i]
		}
	}
	return nil
}

func findAll(fields []field, tag int32, indices []int) int {
	n := 0
	for i := range fields {
		if n >= len(indices) {
			break
		}
		if fields[i].tag == tag {
			indices[n] = i
			n++
		}
	}
	return n
}
