package local

import (
	"context"
	"embed"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/kv"
	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

// Storage keys of the collections.
const (
	KeyAnnouncements = "announcements"
	KeyEvents        = "events"
	KeyMessages      = "studentMessages"
)

//go:embed data/*.json
var dataFS embed.FS

type keyed interface {
	Key() string
}

// Collection stores a whole collection as one JSON array under a key. A
// missing key is seeded with the bundled defaults; unreadable JSON falls
// back to them.
type Collection[T keyed] struct {
	mu       sync.Mutex
	store    kv.Store
	key      string
	defaults []T
	log      logrus.FieldLogger
}

func NewCollection[T keyed](store kv.Store, key string, defaults []T, log logrus.FieldLogger) *Collection[T] {
	return &Collection[T]{
		store:    store,
		key:      key,
		defaults: defaults,
		log:      log.WithField("collection", key),
	}
}

func NewAnnouncements(store kv.Store, log logrus.FieldLogger) (*Collection[model.Announcement], error) {
	defaults, err := loadDefaults[model.Announcement]("data/announcements.json")
	if err != nil {
		return nil, err
	}
	return NewCollection(store, KeyAnnouncements, defaults, log), nil
}

func NewEvents(store kv.Store, log logrus.FieldLogger) (*Collection[model.Event], error) {
	defaults, err := loadDefaults[model.Event]("data/events.json")
	if err != nil {
		return nil, err
	}
	return NewCollection(store, KeyEvents, defaults, log), nil
}

func NewMessages(store kv.Store, log logrus.FieldLogger) *Collection[model.StudentMessage] {
	return NewCollection[model.StudentMessage](store, KeyMessages, nil, log)
}

func loadDefaults[T any](name string) ([]T, error) {
	raw, err := dataFS.ReadFile(name)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, errors.Wrapf(err, "bundled %s", name)
	}
	return items, nil
}

func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

func (c *Collection[T]) Create(ctx context.Context, item T) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	return c.save(ctx, append(items, item))
}

func (c *Collection[T]) Update(ctx context.Context, id string, mutate func(T) (T, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	for i, item := range items {
		if item.Key() != id {
			continue
		}
		next, err := mutate(item)
		if err != nil {
			return err
		}
		items[i] = next
		return c.save(ctx, items)
	}
	return livelist.ErrNotFound
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	items, err := c.load(ctx)
	if err != nil {
		return err
	}
	for i, item := range items {
		if item.Key() == id {
			return c.save(ctx, append(items[:i], items[i+1:]...))
		}
	}
	return livelist.ErrNotFound
}

func (c *Collection[T]) load(ctx context.Context) ([]T, error) {
	raw, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		return nil, err
	}
	if !ok {
		items := c.seed()
		if err := c.save(ctx, items); err != nil {
			c.log.WithError(err).Warn("saving default dataset failed")
		}
		return items, nil
	}
	var items []T
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		c.log.WithError(err).Warn("stored collection unreadable, using defaults")
		return c.seed(), nil
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func (c *Collection[T]) seed() []T {
	return append([]T{}, c.defaults...)
}

func (c *Collection[T]) save(ctx context.Context, items []T) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return errors.Wrapf(err, "encode %s", c.key)
	}
	return c.store.Set(ctx, c.key, string(raw))
}
