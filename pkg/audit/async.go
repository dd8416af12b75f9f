package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	sserr "github.com/StricklySoft/stricklysoft-authcutover/pkg/errors"
)

// AsyncConfig tunes an [AsyncSink]. Zero fields take the defaults below.
type AsyncConfig struct {
	// Capacity is the number of events buffered before new ones are dropped.
	Capacity int `env:"AUDIT_BUFFER_SIZE" envDefault:"1024" yaml:"buffer_size" json:"buffer_size"`

	// WriteTimeout bounds each write to the wrapped sink.
	WriteTimeout time.Duration `env:"AUDIT_WRITE_TIMEOUT" envDefault:"2s" yaml:"write_timeout" json:"write_timeout"`

	// DropLogInterval is the minimum gap between "events dropped" warnings.
	DropLogInterval time.Duration `env:"AUDIT_DROP_LOG_INTERVAL" envDefault:"10s" yaml:"drop_log_interval" json:"drop_log_interval"`
}

const (
	DefaultAsyncCapacity     = 1024
	DefaultAsyncWriteTimeout = 2 * time.Second
	DefaultDropLogInterval   = 10 * time.Second
)

func (c AsyncConfig) withDefaults() AsyncConfig {
	if c.Capacity <= 0 {
		c.Capacity = DefaultAsyncCapacity
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultAsyncWriteTimeout
	}
	if c.DropLogInterval <= 0 {
		c.DropLogInterval = DefaultDropLogInterval
	}
	return c
}

type queued struct {
	ctx   context.Context
	event Event
}

// ---------------------------------------------------------------------------
// AsyncSink: bounded, non-blocking delivery
// ---------------------------------------------------------------------------

// AsyncSink decouples callers from a slow sink such as a database or a
// Redis stream. Emit never blocks: it enqueues onto a buffer of
// [AsyncConfig] Capacity events, or drops the event when the buffer is
// full.
//
// A single worker drains the buffer into the wrapped sink, so the wrapped
// sink sees events in Emit order. Each delivery gets its own
// [AsyncConfig] WriteTimeout.
//
// Losses are counted rather than hidden:
//   - [AsyncSink.Dropped] counts events rejected because the buffer was
//     full, and a WARN record is logged at most once per DropLogInterval;
//   - [AsyncSink.Failed] counts events the wrapped sink returned an error
//     for, each logged at WARN.
//
// [AsyncSink.Close] drains what is buffered before returning. AsyncSink
// is safe for concurrent use by multiple goroutines.
type AsyncSink struct {
	next   Sink
	cfg    AsyncConfig
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	done   chan struct{}

	dropped  atomic.Uint64
	failed   atomic.Uint64
	dropWarn rate.Sometimes
}

// NewAsyncSink starts the worker. Call [AsyncSink.Close] to stop it.
func NewAsyncSink(next Sink, cfg AsyncConfig, logger *slog.Logger) *AsyncSink {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := &AsyncSink{
		next:     next,
		cfg:      cfg,
		logger:   logger,
		queue:    make(chan queued, cfg.Capacity),
		done:     make(chan struct{}),
		dropWarn: rate.Sometimes{Interval: cfg.DropLogInterval},
	}
	go s.run()
	return s
}

// Emit enqueues e. It returns [sserr.CodeUnavailableOverloaded] when the
// buffer is full and [sserr.CodeUnavailable] after Close. The event is
// delivered with ctx's values but not its cancellation, since request
// contexts usually end before the worker gets to the event.
func (s *AsyncSink) Emit(ctx context.Context, e Event) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return sserr.New(sserr.CodeUnavailable, "audit: sink is closed")
	}

	select {
	case s.queue <- queued{ctx: context.WithoutCancel(ctx), event: e}:
		return nil
	default:
		n := s.dropped.Add(1)
		s.dropWarn.Do(func() {
			s.logger.WarnContext(ctx, "audit: buffer full, dropping events",
				"dropped_total", n,
				"capacity", s.cfg.Capacity,
			)
		})
		return sserr.New(sserr.CodeUnavailableOverloaded, "audit: buffer full")
	}
}

func (s *AsyncSink) run() {
	defer close(s.done)
	for item := range s.queue {
		ctx, cancel := context.WithTimeout(item.ctx, s.cfg.WriteTimeout)
		err := s.next.Emit(ctx, item.event)
		cancel()
		if err != nil {
			s.failed.Add(1)
			s.logger.WarnContext(item.ctx, "audit: sink write failed",
				"error", err,
				"event_id", item.event.ID,
			)
		}
	}
}

// Close stops accepting events and waits for the buffered ones to be
// written, or for ctx to end. Events still buffered when ctx ends are
// written in the background but Close no longer waits for them. Close is
// safe to call more than once.
func (s *AsyncSink) Close(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return sserr.Wrapf(ctx.Err(), sserr.CodeTimeout,
			"audit: %d events still pending at close", len(s.queue))
	}
}

// Dropped returns the number of events dropped because the buffer was full.
func (s *AsyncSink) Dropped() uint64 { return s.dropped.Load() }

// Failed returns the number of events the wrapped sink rejected.
func (s *AsyncSink) Failed() uint64 { return s.failed.Load() }

// Pending returns the number of buffered events.
func (s *AsyncSink) Pending() int { return len(s.queue) }
