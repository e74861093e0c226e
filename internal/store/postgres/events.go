package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

type Events struct {
	store *Store
}

func (e *Events) List(ctx context.Context) ([]model.Event, error) {
	rows, err := e.store.Pool.Query(ctx, `
    SELECT id::text, title, date
    FROM events
    ORDER BY seq ASC
  `)
	if err != nil {
		return nil, errors.Wrap(err, "list events")
	}
	defer rows.Close()

	items := []model.Event{}
	for rows.Next() {
		var item model.Event
		if err := rows.Scan(&item.ID, &item.Title, &item.Date); err != nil {
			return nil, errors.Wrap(err, "scan event")
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "list events")
}

func (e *Events) Create(ctx context.Context, item model.Event) error {
	_, err := e.store.Pool.Exec(ctx, `
    INSERT INTO events (id, title, date)
    VALUES ($1, $2, $3)
  `, item.ID, item.Title, item.Date)
	return errors.Wrap(err, "insert event")
}

func (e *Events) Update(ctx context.Context, id string, mutate func(model.Event) (model.Event, error)) error {
	if !validID(id) {
		return livelist.ErrNotFound
	}
	return e.store.WithTx(ctx, func(tx pgx.Tx) error {
		var item model.Event
		row := tx.QueryRow(ctx, `SELECT id::text, title, date FROM events WHERE id = $1 FOR UPDATE`, id)
		if err := row.Scan(&item.ID, &item.Title, &item.Date); err != nil {
			return notFound(err, "load event")
		}
		next, err := mutate(item)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE events SET title = $2, date = $3 WHERE id = $1`, id, next.Title, next.Date)
		return errors.Wrap(err, "update event")
	})
}

func (e *Events) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, e.store, "events", id)
}
