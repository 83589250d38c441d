package events

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config controls dispatcher buffering behavior. With Async false events are
// delivered on the caller's goroutine.
type Config struct {
	Async      bool
	BufferSize int
	DropIfFull bool
}

// FailureFunc is called for every sink error.
type FailureFunc func(event Event, err error)

// Dispatcher forwards events to a sink, synchronously or through a buffered
// worker. Sink errors go to the failure hook and are counted.
type Dispatcher struct {
	cfg       Config
	sink      Sink
	onFailure FailureFunc
	ch        chan Event
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	failed    atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher returns a dispatcher over sink. A nil sink returns nil, and
// a nil *Dispatcher drops everything.
func NewDispatcher(cfg Config, sink Sink, onFailure FailureFunc) *Dispatcher {
	if sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}

	d := &Dispatcher{
		cfg:       cfg,
		sink:      sink,
		onFailure: onFailure,
		done:      make(chan struct{}),
	}

	if cfg.Async {
		d.ch = make(chan Event, cfg.BufferSize)
		d.wg.Add(1)
		go d.run()
	}

	return d
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.deliver(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.deliver(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) {
	err := d.safeSend(ctx, event)
	if err == nil {
		return
	}
	d.failed.Add(1)
	if d.onFailure != nil {
		d.onFailure(event, err)
	}
}

func (d *Dispatcher) safeSend(ctx context.Context, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError{value: r}
		}
	}()
	return d.sink.Send(ctx, event)
}

// Emit delivers or enqueues event. It never returns a sink error.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if !d.cfg.Async {
		d.deliver(ctx, event)
		return
	}

	if d.cfg.DropIfFull {
		select {
		case d.ch <- event:
		case <-d.done:
		default:
			d.dropped.Add(1)
		}
		return
	}

	select {
	case d.ch <- event:
	case <-ctx.Done():
	case <-d.done:
	}
}

// Close drains buffered events and stops the worker.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}

func (d *Dispatcher) Failed() uint64 {
	if d == nil {
		return 0
	}
	return d.failed.Load()
}

type panicError struct {
	value any
}

func (e panicError) Error() string {
	return "event sink panicked"
}
