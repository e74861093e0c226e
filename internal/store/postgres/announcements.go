package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

type Announcements struct {
	store *Store
}

func (a *Announcements) List(ctx context.Context) ([]model.Announcement, error) {
	rows, err := a.store.Pool.Query(ctx, `
    SELECT id::text, title, display_date, category, content
    FROM announcements
    ORDER BY display_date DESC, seq ASC
  `)
	if err != nil {
		return nil, errors.Wrap(err, "list announcements")
	}
	defer rows.Close()

	items := []model.Announcement{}
	for rows.Next() {
		var item model.Announcement
		if err := rows.Scan(&item.ID, &item.Title, &item.DisplayDate, &item.Category, &item.Content); err != nil {
			return nil, errors.Wrap(err, "scan announcement")
		}
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "list announcements")
}

func (a *Announcements) Create(ctx context.Context, item model.Announcement) error {
	_, err := a.store.Pool.Exec(ctx, `
    INSERT INTO announcements (id, title, display_date, category, content)
    VALUES ($1, $2, $3, $4, $5)
  `, item.ID, item.Title, item.DisplayDate, item.Category, item.Content)
	return errors.Wrap(err, "insert announcement")
}

func (a *Announcements) Update(ctx context.Context, id string, mutate func(model.Announcement) (model.Announcement, error)) error {
	if !validID(id) {
		return livelist.ErrNotFound
	}
	return a.store.WithTx(ctx, func(tx pgx.Tx) error {
		var item model.Announcement
		row := tx.QueryRow(ctx, `
      SELECT id::text, title, display_date, category, content
      FROM announcements
      WHERE id = $1
      FOR UPDATE
    `, id)
		if err := row.Scan(&item.ID, &item.Title, &item.DisplayDate, &item.Category, &item.Content); err != nil {
			return notFound(err, "load announcement")
		}
		next, err := mutate(item)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
      UPDATE announcements
      SET title = $2, display_date = $3, category = $4, content = $5
      WHERE id = $1
    `, id, next.Title, next.DisplayDate, next.Category, next.Content)
		return errors.Wrap(err, "update announcement")
	})
}

func (a *Announcements) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, a.store, "announcements", id)
}
