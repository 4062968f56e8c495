package outbox

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/googleapis/gax-go/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/examchat/pkg/domain/interfaces"
	"github.com/secmon-lab/examchat/pkg/domain/model/errs"
	"github.com/secmon-lab/examchat/pkg/utils/async"
	"github.com/secmon-lab/examchat/pkg/utils/errutil"
	"github.com/secmon-lab/examchat/pkg/utils/logging"
)

type Config struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	QueueSize      int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		QueueSize:      256,
	}
}

// Stats counts operations since the outbox started.
type Stats struct {
	Enqueued  int `json:"enqueued"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
	Pending   int `json:"pending"`
}

type operation struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) error
}

// Outbox runs durability operations one at a time in enqueue order. A failed
// operation is retried with exponential backoff before the next one starts;
// once MaxAttempts is spent it is reported through errs.Handle and dropped.
type Outbox struct {
	cfg   Config
	queue chan *operation
	done  chan struct{}

	// sendMu is held for reading while sending to queue and for writing
	// while closing it.
	sendMu sync.RWMutex

	mu     sync.Mutex
	closed bool
	idle   chan struct{}
	stats  Stats
}

var _ interfaces.Outbox = &Outbox{}

func New(cfg Config) *Outbox {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.InitialBackoff)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	idle := make(chan struct{})
	close(idle)

	x := &Outbox{
		cfg:   cfg,
		queue: make(chan *operation, cfg.QueueSize),
		done:  make(chan struct{}),
		idle:  idle,
	}
	go x.run()
	return x
}

// Enqueue schedules fn. The operation runs with a context detached from ctx
// so it survives the request that produced it. Enqueue blocks while the
// queue is full.
func (x *Outbox) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	x.sendMu.RLock()
	defer x.sendMu.RUnlock()

	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return goerr.Wrap(errs.ErrOutboxClosed, "failed to enqueue",
			goerr.TV(errutil.OperationKey, name), goerr.T(errs.TagInvalidState))
	}
	if x.stats.Pending == 0 {
		x.idle = make(chan struct{})
	}
	x.stats.Pending++
	x.stats.Enqueued++
	x.mu.Unlock()

	op := &operation{ctx: async.Detach(ctx), name: name, fn: fn}
	select {
	case x.queue <- op:
		return nil
	case <-ctx.Done():
		x.settle(func(s *Stats) { s.Failed++ })
		return goerr.Wrap(ctx.Err(), "failed to enqueue",
			goerr.TV(errutil.OperationKey, name), goerr.T(errs.TagTimeout))
	}
}

func (x *Outbox) run() {
	defer close(x.done)
	for op := range x.queue {
		x.execute(op)
	}
}

func retryable(err error) bool {
	return !goerr.HasTag(err, errs.TagValidation) &&
		!goerr.HasTag(err, errs.TagNotFound) &&
		!goerr.HasTag(err, errs.TagUnauthenticated)
}

func (x *Outbox) execute(op *operation) {
	logger := logging.From(op.ctx).With(slog.String("operation", op.name))
	backoff := gax.Backoff{
		Initial:    x.cfg.InitialBackoff,
		Max:        x.cfg.MaxBackoff,
		Multiplier: 2,
	}

	for attempt := 1; ; attempt++ {
		err := x.call(op)
		if err == nil {
			x.settle(func(s *Stats) { s.Succeeded++ })
			return
		}

		if attempt >= x.cfg.MaxAttempts || !retryable(err) {
			x.settle(func(s *Stats) { s.Failed++ })
			errs.Handle(op.ctx, goerr.Wrap(err, "outbox operation gave up",
				goerr.TV(errutil.OperationKey, op.name),
				goerr.TV(errutil.AttemptKey, attempt)))
			return
		}

		pause := backoff.Pause()
		x.mu.Lock()
		x.stats.Retried++
		x.mu.Unlock()
		logger.Warn("outbox operation failed, retrying",
			logging.ErrAttr(err),
			slog.Int("attempt", attempt),
			slog.Duration("pause", pause),
		)
		_ = gax.Sleep(op.ctx, pause)
	}
}

func (x *Outbox) call(op *operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in outbox operation", goerr.V("recover", r), goerr.T(errs.TagInternal))
		}
	}()
	return op.fn(op.ctx)
}

func (x *Outbox) settle(update func(s *Stats)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	update(&x.stats)
	x.stats.Pending--
	if x.stats.Pending == 0 {
		close(x.idle)
	}
}

// Flush blocks until every operation enqueued so far has succeeded or given up.
func (x *Outbox) Flush(ctx context.Context) error {
	x.mu.Lock()
	idle := x.idle
	x.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "outbox flush interrupted", goerr.T(errs.TagTimeout))
	}
}

func (x *Outbox) Stats() Stats {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.stats
}

// Close rejects new operations, drains the queue and stops the worker.
func (x *Outbox) Close(ctx context.Context) error {
	x.mu.Lock()
	alreadyClosed := x.closed
	x.closed = true
	x.mu.Unlock()

	if !alreadyClosed {
		x.sendMu.Lock()
		close(x.queue)
		x.sendMu.Unlock()
	}

	select {
	case <-x.done:
		return nil
	case <-ctx.Done():
		return goerr.Wrap(ctx.Err(), "outbox close interrupted", goerr.T(errs.TagTimeout))
	}
}
