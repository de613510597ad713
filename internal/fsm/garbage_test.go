package fsm

import (
	"testing"

	"github.com/kvenkit/fixfeed/pkg/tick"
)

func TestRecovery_FindsAnchorAfterGarbage(t *testing.T) {
	r := NewRecovery()
	msg := sampleMessage()
	data := []byte("GARBAGE_" + msg)

	garbage, recovered, matchEnd := r.Scan(data)
	if !recovered {
		t.Fatal("Scan() did not find the anchor")
	}
	if garbage < 8 {
		t.Errorf("garbage = %d; want at least 8 (len(\"GARBAGE_\"))", garbage)
	}
	if string(data[matchEnd-5:matchEnd]) != "8=FIX" {
		t.Errorf("matchEnd does not point past the anchor: %q", data[:matchEnd])
	}
	if r.Stats.RecoveryCount != 1 {
		t.Errorf("RecoveryCount = %d; want 1", r.Stats.RecoveryCount)
	}
}

func TestRecovery_CanonicalPrefixRestart(t *testing.T) {
	r := NewRecovery()
	// Two near-misses that each break on a byte other than '8', followed
	// by a genuine anchor.
	data := []byte("GARBAGE_8=FI_NOT_COMPLETE_8=F_ALSO_NOT_8=FIXrest")

	garbage, recovered, matchEnd := r.Scan(data)
	if !recovered {
		t.Fatal("Scan() failed to recover past repeated near-miss anchors")
	}
	if string(data[matchEnd-5 : matchEnd]) != "8=FIX" {
		t.Errorf("matchEnd landed wrong: %q", data[:matchEnd])
	}
	_ = garbage
}

func TestRecovery_MismatchedEightStaysCandidate(t *testing.T) {
	r := NewRecovery()
	// "88=FIX": the first '8' starts a candidate; the second '8' mismatches
	// anchor[1] ('=') but must restart the candidate at itself rather than
	// falling back to SCAN, since it's itself a valid anchor start.
	data := []byte("88=FIX")

	garbage, recovered, matchEnd := r.Scan(data)
	if !recovered {
		t.Fatal("Scan() did not recover on \"88=FIX\"")
	}
	if garbage != 1 {
		t.Errorf("garbage = %d; want 1 (the leading stray '8')", garbage)
	}
	if matchEnd != len(data) {
		t.Errorf("matchEnd = %d; want %d", matchEnd, len(data))
	}
}

func TestRecovery_NoAnchorConsumesEverythingAsGarbage(t *testing.T) {
	r := NewRecovery()
	data := []byte("no anchor in this chunk at all")

	garbage, recovered, _ := r.Scan(data)
	if recovered {
		t.Fatal("Scan() falsely reported recovery")
	}
	if garbage != len(data) {
		t.Errorf("garbage = %d; want %d", garbage, len(data))
	}
}

func TestRecovery_PartialCandidateCarriesAcrossCalls(t *testing.T) {
	r := NewRecovery()

	garbage1, recovered1, _ := r.Scan([]byte("junk8=F"))
	if recovered1 {
		t.Fatal("Scan() falsely reported recovery on a partial anchor")
	}
	if garbage1 != 4 {
		t.Errorf("garbage1 = %d; want 4 (len(\"junk\"))", garbage1)
	}

	garbage2, recovered2, matchEnd2 := r.Scan([]byte("IXrest"))
	if !recovered2 {
		t.Fatal("Scan() did not complete the anchor split across calls")
	}
	if garbage2 != 0 {
		t.Errorf("garbage2 = %d; want 0 (the candidate began in the previous call)", garbage2)
	}
	if matchEnd2 != 2 {
		t.Errorf("matchEnd2 = %d; want 2", matchEnd2)
	}
}

func TestRecovery_CandidateDyingAcrossCallsCountsCarriedPrefix(t *testing.T) {
	r := NewRecovery()

	// Call 1 leaves a 3-byte candidate ("8=F") pending; call 2 breaks it
	// immediately on a byte that isn't '8'. Those 3 carried bytes must
	// show up in ErrorCount/BytesSkipped once the candidate is known
	// dead — they were never reported as garbage by either call's
	// return value, since they sit before data entirely in call 2.
	garbage1, recovered1, _ := r.Scan([]byte("XX8=F"))
	if recovered1 {
		t.Fatal("Scan() falsely reported recovery on a partial anchor")
	}
	if garbage1 != 2 {
		t.Fatalf("garbage1 = %d; want 2 (len(\"XX\"))", garbage1)
	}

	skippedBefore := r.Stats.BytesSkipped
	errorsBefore := r.Stats.ErrorCount

	garbage2, recovered2, _ := r.Scan([]byte("Q"))
	if recovered2 {
		t.Fatal("Scan() falsely reported recovery")
	}
	if garbage2 != 1 {
		t.Errorf("garbage2 = %d; want 1 (the breaking byte itself)", garbage2)
	}

	if got, want := r.Stats.BytesSkipped-skippedBefore, uint64(3+1); got != want {
		t.Errorf("BytesSkipped grew by %d; want %d (3 carried + 1 this call)", got, want)
	}
	if got, want := r.Stats.ErrorCount-errorsBefore, uint64(3+1); got != want {
		t.Errorf("ErrorCount grew by %d; want %d (3 carried + 1 this call)", got, want)
	}
}

func TestRecovery_LiveCarriedCandidateNotCountedAsGarbage(t *testing.T) {
	r := NewRecovery()

	if _, recovered, _ := r.Scan([]byte("junk8")); recovered {
		t.Fatal("Scan() falsely reported recovery")
	}

	// The candidate carries into this call and is still alive (pending)
	// at the end of it, having neither completed nor broken — none of
	// this call's bytes are garbage, they all extended the live
	// candidate.
	garbage, recovered, _ := r.Scan([]byte("=F"))
	if recovered {
		t.Fatal("Scan() falsely reported recovery")
	}
	if garbage != 0 {
		t.Errorf("garbage = %d; want 0 (candidate still pending, not dead)", garbage)
	}
}

func TestFSM_ParseChunkRecoversFromGarbagePrefix(t *testing.T) {
	f := New()
	r := NewRecovery()
	data := []byte("GARBAGE_" + sampleMessage())

	var got []tick.Tick
	f.ParseChunk(data, r, collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks; want 1", len(got))
	}
	if got[0].Symbol() != "AAPL" {
		t.Errorf("Symbol() = %q; want AAPL", got[0].Symbol())
	}
	if r.Stats.BytesSkipped < 8 {
		t.Errorf("BytesSkipped = %d; want at least 8", r.Stats.BytesSkipped)
	}
}

func TestFSM_ParseChunkWithoutRecoveryLeavesGarbageInert(t *testing.T) {
	f := New()
	data := []byte("GARBAGE" + sampleMessage())

	var got []tick.Tick
	// Garbage bytes that never look like digits are simply ignored by
	// WAIT_TAG; no recovery is involved because recovery is nil.
	f.ParseChunk(data, nil, collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks; want 1", len(got))
	}
}
