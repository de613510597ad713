// Command feedsim drives a Pipeline from a synthetic byte generator
// instead of a real socket, so the whole transport/parser/consumer chain
// can be exercised without a counterparty FIX feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kvenkit/fixfeed/internal/obs"
	"github.com/kvenkit/fixfeed/pkg/orderbookdemo"
	"github.com/kvenkit/fixfeed/pkg/pipeline"
	"github.com/kvenkit/fixfeed/pkg/tick"
)

// syntheticSource generates a stream of well-formed FIX market-data
// messages for a fixed symbol, with occasional injected garbage, to
// exercise the pipeline's garbage-recovery path end to end.
type syntheticSource struct {
	symbol string
	rnd    *rand.Rand
}

func (s *syntheticSource) next() []byte {
	price := 150.0 + s.rnd.Float64()*2
	qty := 100 + s.rnd.Intn(900)
	side := 1
	if s.rnd.Intn(2) == 1 {
		side = 2
	}

	msg := fmt.Sprintf("8=FIX.4.4|9=0|35=X|55=%s|44=%.4f|38=%d|54=%d|10=000|\n",
		s.symbol, price, qty, side)

	if s.rnd.Intn(20) == 0 {
		return append([]byte("NOISE_BEFORE_ANCHOR_"), msg...)
	}
	return []byte(msg)
}

func main() {
	symbol := flag.String("symbol", "AAPL", "symbol to simulate")
	interval := flag.Duration("interval", 50*time.Millisecond, "delay between synthetic messages")
	dev := flag.Bool("dev", true, "use the human-readable development logger")
	flag.Parse()

	var logger *zap.Logger
	if *dev {
		logger = obs.NewDevLogger()
	} else {
		logger = obs.NewProdLogger()
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	book := orderbookdemo.New(*symbol)

	cfg := pipeline.DefaultConfig()
	consumer := func(t tick.Tick) {
		book.Consume(t)
		logger.Info("tick",
			zap.String("symbol", t.Symbol()),
			zap.Int64("price_raw", t.Price),
			zap.Int32("qty", t.Qty),
			zap.Uint8("side", uint8(t.Side)))
	}

	p := pipeline.New(cfg, nil, consumer, logger)
	p.Start(ctx)
	defer p.Stop()

	source := &syntheticSource{symbol: *symbol, rnd: rand.New(rand.NewSource(1))}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	logger.Info("feedsim running", zap.String("symbol", *symbol))

	for {
		select {
		case <-ctx.Done():
			logger.Info("feedsim stopping", zap.String("book", book.String()))
			return
		case <-ticker.C:
			p.Inject(source.next())
		}
	}
}
