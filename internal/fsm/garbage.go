package fsm

// anchor is the literal byte sequence a corrupted stream must be
// realigned against: the start of every FIX message's BeginString field.
var anchor = [5]byte{'8', '=', 'F', 'I', 'X'}

// RecoveryStats holds the counters a GarbageRecovery sub-FSM accumulates
// over its lifetime.
type RecoveryStats struct {
	ErrorCount    uint64 // bytes that did not extend a candidate match, plus the carried-in prefix of a candidate that dies in a later Scan call
	RecoveryCount uint64 // times the anchor was found and realignment succeeded
	BytesSkipped  uint64 // total garbage bytes discarded
}

// Recovery is the garbage-recovery sub-FSM: a small automaton that scans
// for the literal "8=FIX" anchor in an otherwise-corrupted stream. Its
// state persists across calls to Scan, so a candidate match that begins
// near the end of one chunk and completes in the next is still found —
// the sub-FSM is itself resumable, for the same reason the main parser
// is.
//
// The one behavioral wrinkle worth calling out: a byte that fails to
// extend the current candidate but is itself '8' does not fall back to
// the empty SCAN state — it restarts the candidate at that byte (SAW_8),
// since it may be the first byte of the next anchor. Falling all the way
// back to SCAN would silently skip over a genuine anchor start whenever
// two candidates overlap on '8'.
type Recovery struct {
	matched int // number of leading anchor bytes matched by the current candidate
	Stats   RecoveryStats
}

// NewRecovery constructs a Recovery sub-FSM in its initial SCAN state.
func NewRecovery() *Recovery {
	return &Recovery{}
}

// Reset returns the sub-FSM to SCAN, discarding any in-progress candidate.
func (r *Recovery) Reset() {
	r.matched = 0
}

// Scan advances the sub-FSM over data and reports how many leading bytes
// of data are confirmed garbage (garbage), whether the anchor fully
// matched during this call (recovered), and, if so, the index one past
// the anchor's last byte (matchEnd) — the offset the main FSM should
// resume parsing from.
//
// When recovered is false, garbage is the number of data's leading bytes
// confirmed to not be part of any candidate anchor; it is len(data) only
// when no candidate survives to the end of the call, and 0 when the
// entire call was spent extending a still-alive candidate. Either way
// the caller should discard data and call Scan again once more bytes
// arrive — any partial candidate match carries over internally for the
// next call.
func (r *Recovery) Scan(data []byte) (garbage int, recovered bool, matchEnd int) {
	// carriedLen is how many bytes of the current candidate were already
	// matched in a previous call, before this call ever saw a byte of it.
	// Those bytes aren't part of data, so they never appear in a
	// candidateStart/len(data) computation below — if this candidate
	// dies in this call, carriedLen has to be folded into the stats by
	// hand, or it vanishes from the accounting entirely.
	carriedLen := r.matched
	candidateStart := -1 // index into data where the current candidate began, -1 if it began before this call

	for i, c := range data {
		want := anchor[r.matched]
		if c == want {
			if r.matched == 0 {
				candidateStart = i
			}
			r.matched++
			if r.matched == len(anchor) {
				skipped := 0
				if candidateStart >= 0 {
					skipped = candidateStart
				}
				r.Stats.BytesSkipped += uint64(skipped)
				r.Stats.RecoveryCount++
				r.matched = 0
				return skipped, true, i + 1
			}
			continue
		}

		r.Stats.ErrorCount++
		if carriedLen > 0 && candidateStart == -1 {
			// The candidate alive when this call began just died. Count
			// its carried-over prefix now, since it was deferred across
			// the call boundary pending completion and this is the only
			// point at which we learn it never completed.
			r.Stats.ErrorCount += uint64(carriedLen)
			r.Stats.BytesSkipped += uint64(carriedLen)
			carriedLen = 0
		}
		if c == anchor[0] {
			r.matched = 1
			candidateStart = i
		} else {
			r.matched = 0
			candidateStart = -1
		}
	}

	switch {
	case candidateStart >= 0:
		// A candidate born in this call is still pending; only the
		// bytes strictly before it are confirmed garbage.
		garbage = candidateStart
	case r.matched > 0:
		// A candidate carried in from a previous call is still pending
		// and was never broken this call — none of this call's bytes
		// are garbage, they all extended the live candidate.
		garbage = 0
	default:
		garbage = len(data)
	}
	r.Stats.BytesSkipped += uint64(garbage)
	return garbage, false, 0
}
