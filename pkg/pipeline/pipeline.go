// Package pipeline wires a transport, a BoundedQueue and the FSM parser
// into the two-goroutine architecture the feed
// handler runs on: one goroutine reads raw bytes and pushes them onto
// the queue, a second pops them off and parses them into ticks.
//
// Splitting the roles this way means a slow consumer callback never
// stalls the socket read loop directly — backpressure shows up as queue
// overflows (counted in Stats), not as blocked reads.
package pipeline

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kvenkit/fixfeed/internal/fsm"
	"github.com/kvenkit/fixfeed/internal/obs"
	"github.com/kvenkit/fixfeed/pkg/queue"
	"github.com/kvenkit/fixfeed/pkg/tick"
)

// Config holds the tunables a Pipeline is constructed with.
type Config struct {
	QueueSize             int  // max buffered chunks between transport and parser roles
	BufferSize            int  // size of each transport read
	EnableGarbageRecovery bool // attempt "8=FIX" realignment on corrupted input
}

// DefaultConfig returns the Config this module ships with out of the
// box: a 1000-entry queue, 8 KiB reads, garbage recovery on.
func DefaultConfig() Config {
	return Config{
		QueueSize:             1000,
		BufferSize:            8192,
		EnableGarbageRecovery: true,
	}
}

// Stats holds a Pipeline's operation counters. Every field is updated
// with relaxed atomic increments from whichever goroutine (transport or
// parser) owns that count, and may be read concurrently with Snapshot.
//
// ErrorCount, RecoveryCount and BytesSkipped mirror GarbageRecovery's own
// RecoveryStats (internal/fsm's Recovery.Stats) — they stay zero when
// EnableGarbageRecovery is off, since there is no sub-FSM to mirror.
type Stats struct {
	BytesReceived  atomic.Uint64
	MessagesParsed atomic.Uint64
	ParseErrors    atomic.Uint64
	QueueOverflows atomic.Uint64
	NetworkReads   atomic.Uint64
	ParserCycles   atomic.Uint64
	ErrorCount     atomic.Uint64
	RecoveryCount  atomic.Uint64
	BytesSkipped   atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of Stats, safe to log or compare.
type StatsSnapshot struct {
	BytesReceived  uint64
	MessagesParsed uint64
	ParseErrors    uint64
	QueueOverflows uint64
	NetworkReads   uint64
	ParserCycles   uint64
	ErrorCount     uint64
	RecoveryCount  uint64
	BytesSkipped   uint64
}

// Snapshot copies the current counter values.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		BytesReceived:  s.BytesReceived.Load(),
		MessagesParsed: s.MessagesParsed.Load(),
		ParseErrors:    s.ParseErrors.Load(),
		QueueOverflows: s.QueueOverflows.Load(),
		NetworkReads:   s.NetworkReads.Load(),
		ParserCycles:   s.ParserCycles.Load(),
		ErrorCount:     s.ErrorCount.Load(),
		RecoveryCount:  s.RecoveryCount.Load(),
		BytesSkipped:   s.BytesSkipped.Load(),
	}
}

// Pipeline is a single connection's worth of transport-to-tick plumbing.
// A Pipeline is not reusable across Start/Stop cycles beyond the second
// Start being a no-op — construct a fresh Pipeline per connection.
type Pipeline struct {
	id uuid.UUID

	cfg       Config
	transport io.Reader
	consumer  tick.Consumer
	log       *zap.Logger

	q        *queue.BoundedQueue
	parser   *fsm.FSM
	recovery *fsm.Recovery

	Stats Stats

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Pipeline. transport may be nil for a pipeline that is
// only ever driven via Inject (the test/benchmark entry point); consumer
// may be nil to discard every parsed tick.
func New(cfg Config, transport io.Reader, consumer tick.Consumer, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}

	id := uuid.New()
	p := &Pipeline{
		id:        id,
		cfg:       cfg,
		transport: transport,
		consumer:  consumer,
		log:       obs.ForConnection(log, id.String()),
		q:         queue.New(cfg.QueueSize),
		parser:    fsm.New(),
	}
	if cfg.EnableGarbageRecovery {
		p.recovery = fsm.NewRecovery()
	}
	return p
}

// ID returns this Pipeline's connection identifier, assigned at
// construction.
func (p *Pipeline) ID() uuid.UUID { return p.id }

// IsRunning reports whether the pipeline's goroutines are active.
func (p *Pipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches the transport and parser goroutines. Start is
// idempotent: calling it again while already running is a no-op.
func (p *Pipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	p.wg.Add(2)
	go p.parserLoop(runCtx)
	go p.transportLoop(runCtx)

	p.log.Info("pipeline started")
}

// Stop signals both goroutines to exit and blocks until they have. Stop
// is idempotent. transportLoop checks for cancellation only between Read
// calls, so with a non-nil transport Stop returns only after the
// transport's current Read returns.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.q.Shutdown()
	p.wg.Wait()

	p.log.Info("pipeline stopped")
}

// Inject feeds data directly onto the queue, exactly as the transport
// goroutine would after a socket read. It is the pipeline's test and
// benchmark entry point, and also the only way to drive a Pipeline
// constructed with a nil transport.
func (p *Pipeline) Inject(data []byte) {
	p.Stats.BytesReceived.Add(uint64(len(data)))
	if !p.q.TryPush(data) {
		p.Stats.QueueOverflows.Add(1)
	}
}

func (p *Pipeline) transportLoop(ctx context.Context) {
	defer p.wg.Done()

	if p.transport == nil {
		<-ctx.Done()
		return
	}

	buf := make([]byte, p.cfg.BufferSize)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := p.transport.Read(buf)
		p.Stats.NetworkReads.Add(1)

		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			p.Stats.BytesReceived.Add(uint64(n))
			if !p.q.TryPush(chunk) {
				p.Stats.QueueOverflows.Add(1)
			}
		}

		if err != nil {
			if err != io.EOF {
				p.log.Warn("transport read failed", zap.Error(err))
			}
			return
		}
	}
}

func (p *Pipeline) parserLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		chunk, ok := p.q.PopBlocking(ctx)
		if !ok {
			if p.q.IsShutdown() {
				return
			}
			if ctx.Err() != nil {
				return
			}
			continue
		}

		p.Stats.ParserCycles.Add(1)

		sink := func(t tick.Tick) {
			p.Stats.MessagesParsed.Add(1)
			if p.consumer != nil {
				p.consumer(t)
			}
		}

		unresolved := p.parser.ParseChunk(chunk, p.recovery, sink)

		// p.recovery.Stats is only ever written from this goroutine, so
		// a plain Store from here is race-free; Snapshot's Load side is
		// what makes the copy safe to read from any other goroutine.
		if p.recovery != nil {
			p.Stats.ErrorCount.Store(p.recovery.Stats.ErrorCount)
			p.Stats.RecoveryCount.Store(p.recovery.Stats.RecoveryCount)
			p.Stats.BytesSkipped.Store(p.recovery.Stats.BytesSkipped)
		}

		if unresolved {
			p.Stats.ParseErrors.Add(1)
			p.log.Debug("unresolved garbage in chunk",
				zap.Int("bytes", len(chunk)),
				zap.Time("at", time.Now()))
		}
	}
}
