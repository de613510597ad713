// Command wsfeed drives a Pipeline from a real websocket connection,
// for counterparties that publish FIX tag=value messages framed as
// individual websocket text/binary frames rather than over a raw TCP
// byte stream.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kvenkit/fixfeed/internal/obs"
	"github.com/kvenkit/fixfeed/pkg/orderbookdemo"
	"github.com/kvenkit/fixfeed/pkg/pipeline"
	"github.com/kvenkit/fixfeed/pkg/tick"
)

// wsReader adapts a *websocket.Conn's message-oriented ReadMessage into
// the byte-stream io.Reader Pipeline expects, buffering whatever is left
// of the last frame across short Read calls.
type wsReader struct {
	conn *websocket.Conn
	buf  []byte
}

func (r *wsReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		_, data, err := r.conn.ReadMessage()
		if err != nil {
			// A go/away or abnormal closure is an ordinary shutdown signal
			// to the caller either way — ReadMessage never returns io.EOF,
			// so this is the only way transportLoop learns the feed ended.
			return 0, err
		}
		r.buf = data
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func main() {
	url := flag.String("url", "ws://localhost:8080/fix", "websocket endpoint publishing FIX tag=value frames")
	symbol := flag.String("symbol", "AAPL", "symbol to track in the demo order book")
	dev := flag.Bool("dev", true, "use the human-readable development logger")
	dialTimeout := flag.Duration("dial-timeout", 5*time.Second, "websocket dial timeout")
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

	dialCtx, dialCancel := context.WithTimeout(ctx, *dialTimeout)
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, *url, nil)
	dialCancel()
	if err != nil {
		logger.Error("unable to dial websocket feed", zap.String("url", *url), zap.Error(err))
		os.Exit(1)
	}
	defer func() { _ = conn.Close() }()

	logger.Info("connected", zap.String("url", *url))

	book := orderbookdemo.New(*symbol)

	cfg := pipeline.DefaultConfig()
	consumer := func(t tick.Tick) {
		book.Consume(t)
		logger.Debug("tick",
			zap.String("symbol", t.Symbol()),
			zap.Int64("price_raw", t.Price),
			zap.Int32("qty", t.Qty),
			zap.Uint8("side", uint8(t.Side)))
	}

	transport := &wsReader{conn: conn}
	p := pipeline.New(cfg, transport, consumer, logger)
	p.Start(ctx)

	<-ctx.Done()

	logger.Info("wsfeed stopping", zap.String("book", book.String()))

	// Unblock the transport's blocking ReadMessage call before waiting
	// for the pipeline's goroutines to exit; closing the connection is
	// what gives transportLoop's Read a chance to return (see
	// pkg/pipeline's Stop() termination caveat).
	_ = conn.Close()
	p.Stop()

	stats := p.Stats.Snapshot()
	logger.Info("final statistics",
		zap.Uint64("bytes_received", stats.BytesReceived),
		zap.Uint64("messages_parsed", stats.MessagesParsed),
		zap.Uint64("parse_errors", stats.ParseErrors),
		zap.Uint64("queue_overflows", stats.QueueOverflows),
		zap.Uint64("recovery_error_count", stats.ErrorCount),
		zap.Uint64("recovery_count", stats.RecoveryCount),
		zap.Uint64("bytes_skipped", stats.BytesSkipped))
}
