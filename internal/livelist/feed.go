// Package livelist keeps ordered, typed views of a content collection in
// sync with the backing store and gates writes by role.
package livelist

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrNotFound  = errors.New("not_found")
	ErrInvalid   = errors.New("invalid")
)

// Record is what a content type provides to be listed and edited.
type Record[T any, P any] interface {
	Key() string
	WithID(id string) T
	Apply(patch P) T
	Normalize() T
	Valid() bool
}

// Collection is a backing store for one content type. List keeps ties in
// insertion order. Update hands the stored record to mutate and writes back
// what it returns; Update and Delete report ErrNotFound for unknown ids.
type Collection[T any] interface {
	List(ctx context.Context) ([]T, error)
	Create(ctx context.Context, item T) error
	Update(ctx context.Context, id string, mutate func(T) (T, error)) error
	Delete(ctx context.Context, id string) error
}

type Options[T any] struct {
	// Name is the broker topic and the metrics label.
	Name string
	Less func(a, b T) bool
	// Prepare runs on new records before validation, e.g. to stamp them.
	Prepare func(T) T
}

type Feed[T Record[T, P], P any] struct {
	coll   Collection[T]
	broker *Broker
	opts   Options[T]
	log    logrus.FieldLogger
}

func NewFeed[T Record[T, P], P any](coll Collection[T], broker *Broker, opts Options[T], log logrus.FieldLogger) *Feed[T, P] {
	return &Feed[T, P]{
		coll:   coll,
		broker: broker,
		opts:   opts,
		log:    log.WithField("collection", opts.Name),
	}
}

func (f *Feed[T, P]) Name() string {
	return f.opts.Name
}

// List loads the collection once, ordered and filtered. A nil filter keeps
// every record.
func (f *Feed[T, P]) List(ctx context.Context, filter func(T) bool) ([]T, error) {
	items, err := f.coll.List(ctx)
	if err != nil {
		return nil, err
	}
	return f.arrange(items, filter), nil
}

func (f *Feed[T, P]) arrange(items []T, filter func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if filter == nil || filter(item) {
			out = append(out, item)
		}
	}
	if f.opts.Less != nil {
		sort.SliceStable(out, func(i, j int) bool { return f.opts.Less(out[i], out[j]) })
	}
	return out
}

func (f *Feed[T, P]) Create(ctx context.Context, role model.Role, item T) (string, error) {
	if role != model.RoleAdmin {
		return "", f.done("create", ErrForbidden)
	}
	item = item.Normalize()
	if f.opts.Prepare != nil {
		item = f.opts.Prepare(item)
	}
	if !item.Valid() {
		return "", f.done("create", ErrInvalid)
	}
	id := uuid.NewString()
	if err := f.coll.Create(ctx, item.WithID(id)); err != nil {
		return "", f.done("create", err)
	}
	f.changed(ctx)
	return id, f.done("create", nil)
}

func (f *Feed[T, P]) Update(ctx context.Context, role model.Role, id string, patch P) error {
	if role != model.RoleAdmin {
		return f.done("update", ErrForbidden)
	}
	err := f.coll.Update(ctx, id, func(current T) (T, error) {
		next := current.Apply(patch).Normalize()
		if !next.Valid() {
			return current, ErrInvalid
		}
		return next.WithID(id), nil
	})
	if err != nil {
		return f.done("update", err)
	}
	f.changed(ctx)
	return f.done("update", nil)
}

func (f *Feed[T, P]) Delete(ctx context.Context, role model.Role, id string) error {
	if role != model.RoleAdmin {
		return f.done("delete", ErrForbidden)
	}
	if err := f.coll.Delete(ctx, id); err != nil {
		return f.done("delete", err)
	}
	f.changed(ctx)
	return f.done("delete", nil)
}

func (f *Feed[T, P]) changed(ctx context.Context) {
	if f.broker != nil {
		f.broker.Publish(ctx, f.opts.Name)
	}
}

func (f *Feed[T, P]) done(op string, err error) error {
	writesTotal.WithLabelValues(f.opts.Name, op, resultOf(err)).Inc()
	if err != nil && resultOf(err) == "error" {
		f.log.WithError(err).WithField("op", op).Error("write failed")
	}
	return err
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalid):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
