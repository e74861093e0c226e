package livelist

import (
	"context"
	"sync"
	"sync/atomic"
)

type State int32

const (
	Unsubscribed State = iota
	Subscribing
	Active
)

func (s State) String() string {
	switch s {
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	default:
		return "unsubscribed"
	}
}

// Snapshot is one delivery: the full ordered sequence. Err is set when the
// reload failed; Items then holds the last good sequence.
type Snapshot[T any] struct {
	Items []T
	Err   error
}

type Subscription[T any] struct {
	updates chan Snapshot[T]
	state   atomic.Int32
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

func (s *Subscription[T]) State() State {
	return State(s.state.Load())
}

// Unsubscribe stops delivery and waits for the subscription to release its
// broker registration. Calling it again is a no-op.
func (s *Subscription[T]) Unsubscribe() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}

// Subscribe loads the first snapshot and then re-delivers the full sequence
// after every change published for the collection. The subscription ends
// when ctx is cancelled or Unsubscribe is called; Updates is closed then.
func (f *Feed[T, P]) Subscribe(ctx context.Context, filter func(T) bool) (*Subscription[T], error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sub := &Subscription[T]{
		updates: make(chan Snapshot[T], 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	sub.state.Store(int32(Subscribing))

	var (
		notify  <-chan struct{}
		release = func() {}
	)
	if f.broker != nil {
		notify, release = f.broker.Subscribe(f.opts.Name)
	}

	first := f.load(ctx, filter, nil)
	sub.updates <- first
	sub.state.Store(int32(Active))
	subscriptions.WithLabelValues(f.opts.Name).Inc()

	go func() {
		defer func() {
			release()
			sub.state.Store(int32(Unsubscribed))
			subscriptions.WithLabelValues(f.opts.Name).Dec()
			close(sub.updates)
			close(sub.done)
		}()
		last := first.Items
		for {
			select {
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			case <-notify:
			}
			snap := f.load(ctx, filter, last)
			if snap.Err == nil {
				last = snap.Items
			}
			select {
			case sub.updates <- snap:
			case <-ctx.Done():
				return
			case <-sub.stop:
				return
			}
		}
	}()
	return sub, nil
}

func (f *Feed[T, P]) load(ctx context.Context, filter func(T) bool, last []T) Snapshot[T] {
	items, err := f.List(ctx, filter)
	if err != nil {
		f.log.WithError(err).Error("collection reload failed")
		return Snapshot[T]{Items: last, Err: err}
	}
	return Snapshot[T]{Items: items}
}
