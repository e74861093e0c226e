package postgres

import (
	"context"
	stderrors "errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
)

// validID filters ids that cannot exist before they reach a uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func notFound(err error, msg string) error {
	if stderrors.Is(err, pgx.ErrNoRows) {
		return livelist.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

// table is one of the fixed collection tables, never user input.
func deleteByID(ctx context.Context, s *Store, table, id string) error {
	if !validID(id) {
		return livelist.ErrNotFound
	}
	tag, err := s.Pool.Exec(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if err != nil {
		return errors.Wrapf(err, "delete from %s", table)
	}
	if tag.RowsAffected() == 0 {
		return livelist.ErrNotFound
	}
	return nil
}
