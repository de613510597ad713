package fsm

import (
	"strings"
	"testing"

	"github.com/kvenkit/fixfeed/pkg/tick"
)

func sampleMessage() string {
	return "8=FIX.4.4|9=50|35=X|55=AAPL|44=150.25|38=100|54=1|10=128|\n"
}

func collect(ticks *[]tick.Tick) tick.Consumer {
	return func(t tick.Tick) { *ticks = append(*ticks, t) }
}

func TestFSM_SingleMessageBatch(t *testing.T) {
	var got []tick.Tick
	f := New()
	f.Parse([]byte(sampleMessage()), collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks; want 1", len(got))
	}
	tk := got[0]
	if tk.Symbol() != "AAPL" {
		t.Errorf("Symbol() = %q; want AAPL", tk.Symbol())
	}
	if tk.Price != 1502500 {
		t.Errorf("Price = %d; want 1502500", tk.Price)
	}
	if tk.Qty != 100 {
		t.Errorf("Qty = %d; want 100", tk.Qty)
	}
	if tk.Side != tick.SideBuy {
		t.Errorf("Side = %v; want SideBuy", tk.Side)
	}
}

func TestFSM_FragmentationEquivalence(t *testing.T) {
	msg := sampleMessage()

	var whole []tick.Tick
	New().Parse([]byte(msg), collect(&whole))

	var fragmented []tick.Tick
	f := New()
	for i := 0; i < len(msg); i++ {
		f.Parse([]byte{msg[i]}, collect(&fragmented))
	}

	if len(whole) != 1 || len(fragmented) != 1 {
		t.Fatalf("whole=%d fragmented=%d ticks; want 1 and 1", len(whole), len(fragmented))
	}
	if whole[0].Symbol() != fragmented[0].Symbol() ||
		whole[0].Price != fragmented[0].Price ||
		whole[0].Qty != fragmented[0].Qty ||
		whole[0].Side != fragmented[0].Side {
		t.Errorf("fragmented parse diverged from whole parse: %+v vs %+v", whole[0], fragmented[0])
	}
}

func TestFSM_FragmentationAtEveryOffset(t *testing.T) {
	msg := sampleMessage()

	var want []tick.Tick
	New().Parse([]byte(msg), collect(&want))

	for split := 1; split < len(msg); split++ {
		var got []tick.Tick
		f := New()
		f.Parse([]byte(msg[:split]), collect(&got))
		f.Parse([]byte(msg[split:]), collect(&got))

		if len(got) != len(want) {
			t.Fatalf("split at %d: got %d ticks; want %d", split, len(got), len(want))
		}
		if got[0].Symbol() != want[0].Symbol() || got[0].Price != want[0].Price {
			t.Errorf("split at %d: %+v vs %+v", split, got[0], want[0])
		}
	}
}

func TestFSM_BatchOfMultipleMessages(t *testing.T) {
	msg := sampleMessage()
	batch := strings.Repeat(msg, 5)

	var got []tick.Tick
	New().Parse([]byte(batch), collect(&got))

	if len(got) != 5 {
		t.Fatalf("got %d ticks; want 5", len(got))
	}
	for _, tk := range got {
		if tk.Symbol() != "AAPL" || tk.Price != 1502500 {
			t.Errorf("tick diverged in batch: %+v", tk)
		}
	}
}

func TestFSM_InvalidTickDroppedSilently(t *testing.T) {
	msg := "8=FIX.4.4|9=50|35=X|55=AAPL|44=150.25|38=0|54=1|10=128|\n"

	var got []tick.Tick
	New().Parse([]byte(msg), collect(&got))

	if len(got) != 0 {
		t.Errorf("got %d ticks for a zero-quantity message; want 0", len(got))
	}
}

func TestFSM_MissingRequiredFieldDropped(t *testing.T) {
	msg := "8=FIX.4.4|9=50|35=X|44=150.25|38=100|54=1|10=128|\n" // no tag 55

	var got []tick.Tick
	New().Parse([]byte(msg), collect(&got))

	if len(got) != 0 {
		t.Errorf("got %d ticks for a message missing symbol; want 0", len(got))
	}
}

func TestFSM_OverlongUnknownFieldToleratesTruncation(t *testing.T) {
	junk := strings.Repeat("z", 400)
	msg := "8=FIX.4.4|9=50|58=" + junk + "|55=AAPL|44=150.25|38=100|54=1|10=128|\n"

	var got []tick.Tick
	New().Parse([]byte(msg), collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks after an oversized unknown field; want 1", len(got))
	}
	if got[0].Symbol() != "AAPL" {
		t.Errorf("Symbol() = %q; want AAPL", got[0].Symbol())
	}
}

func TestFSM_OverlongSymbolTruncatedButValid(t *testing.T) {
	longSymbol := strings.Repeat("A", 100)
	msg := "8=FIX.4.4|9=50|55=" + longSymbol + "|44=150.25|38=100|54=1|10=128|\n"

	var got []tick.Tick
	New().Parse([]byte(msg), collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks; want 1", len(got))
	}
	if len(got[0].Symbol()) != maxSymbolLen {
		t.Errorf("Symbol() length = %d; want %d", len(got[0].Symbol()), maxSymbolLen)
	}
}

func TestFSM_IsParsingTracksFieldBoundaries(t *testing.T) {
	f := New()
	if f.IsParsing() {
		t.Fatal("fresh FSM reports IsParsing() = true")
	}
	f.Parse([]byte("55"), nil)
	if !f.IsParsing() {
		t.Error("IsParsing() = false mid-tag")
	}
	f.Parse([]byte("=AAPL"), nil)
	if !f.IsParsing() {
		t.Error("IsParsing() = false mid-value")
	}
	f.Parse([]byte("|"), nil)
	if f.IsParsing() {
		t.Error("IsParsing() = true at a clean field boundary")
	}
}

func TestFSM_NewlineTerminatesValidTickWithoutChecksum(t *testing.T) {
	msg := "8=FIX.4.4|55=AAPL|44=150.25|38=100|54=1\n"

	var got []tick.Tick
	New().Parse([]byte(msg), collect(&got))

	if len(got) != 1 {
		t.Fatalf("got %d ticks; want 1", len(got))
	}
}

func BenchmarkFSM_Parse(b *testing.B) {
	msg := []byte(sampleMessage())
	f := New()
	sink := func(tick.Tick) {}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.Parse(msg, sink)
	}
}
