package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

type Messages struct {
	store *Store
}

func (m *Messages) List(ctx context.Context) ([]model.StudentMessage, error) {
	rows, err := m.store.Pool.Query(ctx, `
    SELECT id::text, recipient, title, body, created_at
    FROM student_messages
    ORDER BY created_at DESC, seq ASC
  `)
	if err != nil {
		return nil, errors.Wrap(err, "list student messages")
	}
	defer rows.Close()

	items := []model.StudentMessage{}
	for rows.Next() {
		var item model.StudentMessage
		if err := rows.Scan(&item.ID, &item.Recipient, &item.Title, &item.Body, &item.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan student message")
		}
		item.CreatedAt = item.CreatedAt.UTC()
		items = append(items, item)
	}
	return items, errors.Wrap(rows.Err(), "list student messages")
}

func (m *Messages) Create(ctx context.Context, item model.StudentMessage) error {
	_, err := m.store.Pool.Exec(ctx, `
    INSERT INTO student_messages (id, recipient, title, body, created_at)
    VALUES ($1, $2, $3, $4, $5)
  `, item.ID, item.Recipient, item.Title, item.Body, item.CreatedAt)
	return errors.Wrap(err, "insert student message")
}

func (m *Messages) Update(ctx context.Context, id string, mutate func(model.StudentMessage) (model.StudentMessage, error)) error {
	if !validID(id) {
		return livelist.ErrNotFound
	}
	return m.store.WithTx(ctx, func(tx pgx.Tx) error {
		var item model.StudentMessage
		row := tx.QueryRow(ctx, `
      SELECT id::text, recipient, title, body, created_at
      FROM student_messages
      WHERE id = $1
      FOR UPDATE
    `, id)
		if err := row.Scan(&item.ID, &item.Recipient, &item.Title, &item.Body, &item.CreatedAt); err != nil {
			return notFound(err, "load student message")
		}
		next, err := mutate(item)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE student_messages SET title = $2, body = $3 WHERE id = $1`, id, next.Title, next.Body)
		return errors.Wrap(err, "update student message")
	})
}

func (m *Messages) Delete(ctx context.Context, id string) error {
	return deleteByID(ctx, m.store, "student_messages", id)
}
