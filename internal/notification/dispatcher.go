package notification

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options tunes the dispatcher worker pool.
type Options struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.Backoff < 0 {
		o.Backoff = 0
	}
	return o
}

// Stats counts dispatcher outcomes since start.
type Stats struct {
	Delivered int64
	Failed    int64
	Dropped   int64
}

// Dispatcher delivers transfer alerts on its own worker pool. Delivery is
// best effort and at most once: a full queue or an exhausted retry budget
// drops the alert and logs it.
type Dispatcher struct {
	queue     chan Event
	directory Directory
	channels  []Channel
	opts      Options
	logger    *slog.Logger

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
}

// NewDispatcher builds a dispatcher. Run must be started for queued events
// to be delivered.
func NewDispatcher(directory Directory, channels []Channel, opts Options, logger *slog.Logger) *Dispatcher {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		queue:     make(chan Event, opts.QueueSize),
		directory: directory,
		channels:  channels,
		opts:      opts,
		logger:    logger,
	}
}

// Dispatch enqueues event without blocking.
func (d *Dispatcher) Dispatch(event Event) {
	select {
	case d.queue <- event:
	default:
		d.dropped.Add(1)
		d.logger.Warn("notification queue full, event dropped", "reference", event.Reference)
	}
}

// Run drains the queue with the configured number of workers until ctx is
// done. Events still queued at that point are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < d.opts.Workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case event := <-d.queue:
					d.deliver(ctx, event)
				}
			}
		})
	}
	err := g.Wait()
	if left := len(d.queue); left > 0 {
		d.logger.Warn("dispatcher stopped with queued events", "dropped", left)
		d.dropped.Add(int64(left))
	}
	return err
}

// Stats returns a snapshot of delivery counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Delivered: d.delivered.Load(),
		Failed:    d.failed.Load(),
		Dropped:   d.dropped.Load(),
	}
}

// deliver fans event out to every channel. A panic in a directory lookup
// or a notifier is recovered and counted as a failed delivery.
func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	defer d.recoverPanic(event.Reference)
	for _, a := range alertsFor(event) {
		contact, err := d.directory.Contact(ctx, a.userID)
		if err != nil {
			d.failed.Add(1)
			d.logger.Error("resolve notification contact", "user_id", a.userID, "reference", event.Reference, "error", err)
			continue
		}
		for _, ch := range d.channels {
			to := ch.Medium.Address(contact)
			if to == "" {
				continue
			}
			msg := Message{
				Kind:        a.kind,
				Medium:      ch.Medium,
				Destination: to,
				Subject:     a.subject,
				Body:        a.body,
				Reference:   event.Reference,
				OccurredAt:  event.OccurredAt,
			}
			d.send(ctx, ch.Notifier, msg)
		}
	}
}

// send retries a single channel delivery. A failing channel never affects
// the others.
func (d *Dispatcher) send(ctx context.Context, n Notifier, msg Message) {
	defer d.recoverPanic(msg.Reference)
	var err error
	for attempt := 1; attempt <= d.opts.MaxAttempts; attempt++ {
		if err = n.Send(ctx, msg); err == nil {
			d.delivered.Add(1)
			return
		}
		d.logger.Warn("notification attempt failed",
			"medium", msg.Medium, "kind", msg.Kind, "reference", msg.Reference,
			"attempt", attempt, "error", err)
		if attempt == d.opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			d.failed.Add(1)
			return
		case <-time.After(time.Duration(attempt) * d.opts.Backoff):
		}
	}
	d.failed.Add(1)
	d.logger.Error("notification dropped after max attempts",
		"medium", msg.Medium, "kind", msg.Kind, "reference", msg.Reference, "error", err)
}

func (d *Dispatcher) recoverPanic(reference string) {
	if r := recover(); r != nil {
		d.failed.Add(1)
		d.logger.Error("notification delivery panicked", "reference", reference, "panic", r)
	}
}
