package linker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/echolog/internal/models"
)

// TaskKind identifies what a queued task does.
type TaskKind string

const (
	KindRelink  TaskKind = "relink"
	KindCleanup TaskKind = "cleanup"
)

// Task is a unit of background linking work.
type Task struct {
	Kind TaskKind
	Memo models.Memo // KindRelink
	ID   string      // KindCleanup; mirrors Memo.ID for KindRelink
}

// Observer is notified about task lifecycle. Implementations must be safe for
// concurrent use and must not block.
type Observer interface {
	TaskQueued(kind TaskKind)
	TaskDropped(kind TaskKind, id string)
	TaskDone(t Task, neighbors []Neighbor, took time.Duration, err error)
}

// Observers fans events out to every non-nil observer.
func Observers(obs ...Observer) Observer {
	var out multiObserver
	for _, o := range obs {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) TaskQueued(kind TaskKind) {
	for _, o := range m {
		o.TaskQueued(kind)
	}
}

func (m multiObserver) TaskDropped(kind TaskKind, id string) {
	for _, o := range m {
		o.TaskDropped(kind, id)
	}
}

func (m multiObserver) TaskDone(t Task, neighbors []Neighbor, took time.Duration, err error) {
	for _, o := range m {
		o.TaskDone(t, neighbors, took, err)
	}
}

// DispatcherConfig sizes the worker pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	TaskTimeout time.Duration // 0 means no deadline
}

// Dispatcher runs linking work off the request path. Each task runs once on a
// context detached from the submitter; failures are logged and reported to the
// observer but never returned to the caller.
type Dispatcher struct {
	linker  *Linker
	cfg     DispatcherConfig
	obs     Observer
	logger  *slog.Logger
	queue   chan Task
	mu      sync.RWMutex
	closed  bool
	running sync.WaitGroup
}

// NewDispatcher creates a Dispatcher. Tasks submitted before Run are buffered.
func NewDispatcher(l *Linker, cfg DispatcherConfig, obs Observer, logger *slog.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if obs == nil {
		obs = Observers()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		linker: l,
		cfg:    cfg,
		obs:    obs,
		logger: logger,
		queue:  make(chan Task, cfg.QueueSize),
	}
}

// OnItemCreatedOrReembedded schedules a relink of m and returns immediately.
func (d *Dispatcher) OnItemCreatedOrReembedded(m models.Memo) {
	if !m.HasEmbedding() {
		return
	}
	d.submit(Task{Kind: KindRelink, Memo: m, ID: m.ID})
}

// OnItemDeleted schedules removal of id from every related list.
func (d *Dispatcher) OnItemDeleted(id string) {
	d.submit(Task{Kind: KindCleanup, ID: id})
}

// Pending returns the number of queued tasks not yet picked up by a worker.
func (d *Dispatcher) Pending() int {
	return len(d.queue)
}

func (d *Dispatcher) submit(t Task) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("linker: dispatcher closed, dropping task",
			slog.String("kind", string(t.Kind)),
			slog.String("memo", t.ID))
		d.obs.TaskDropped(t.Kind, t.ID)
		return
	}

	select {
	case d.queue <- t:
		d.obs.TaskQueued(t.Kind)
	default:
		d.logger.Warn("linker: queue full, dropping task",
			slog.String("kind", string(t.Kind)),
			slog.String("memo", t.ID))
		d.obs.TaskDropped(t.Kind, t.ID)
	}
}

// Run starts the workers and blocks until ctx is cancelled. It then stops
// accepting tasks, lets the workers drain what is already queued, and returns.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.cfg.Workers; i++ {
		d.running.Add(1)
		go d.worker()
	}
	d.logger.Info("linker: dispatcher started", slog.Int("workers", d.cfg.Workers))

	<-ctx.Done()

	d.mu.Lock()
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	d.running.Wait()
	d.logger.Info("linker: dispatcher stopped")
	return nil
}

func (d *Dispatcher) worker() {
	defer d.running.Done()
	for t := range d.queue {
		d.execute(t)
	}
}

func (d *Dispatcher) execute(t Task) {
	ctx := context.Background()
	if d.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.TaskTimeout)
		defer cancel()
	}

	start := time.Now()
	var (
		neighbors []Neighbor
		err       error
	)
	switch t.Kind {
	case KindRelink:
		neighbors, err = d.linker.Relink(ctx, t.Memo)
	case KindCleanup:
		err = d.linker.Cleanup(ctx, t.ID)
	}
	took := time.Since(start)

	if err != nil {
		d.logger.Error("linker: task failed",
			slog.String("kind", string(t.Kind)),
			slog.String("memo", t.ID),
			slog.String("error", err.Error()))
	}
	d.obs.TaskDone(t, neighbors, took, err)
}
