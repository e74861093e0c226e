package local

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/logging"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

func openTestDB(t *testing.T, name string) *sqlx.DB {
	t.Helper()
	db, err := Open("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenIsIdempotent(t *testing.T) {
	db := openTestDB(t, "migrations")
	require.NoError(t, migrate(db))

	var versions []int
	require.NoError(t, db.Select(&versions, `SELECT version FROM schema_migrations`))
	require.Equal(t, []int{1}, versions)
}

func TestKV(t *testing.T) {
	ctx := context.Background()
	store := NewKV(openTestDB(t, "kv"))

	_, ok, err := store.Get(ctx, "session:a:role")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Set(ctx, "session:a:role", "student"))
	require.NoError(t, store.Set(ctx, "session:a:role", "admin"))
	require.NoError(t, store.Set(ctx, "session:a:email", "admin@smp2ayah.sch.id"))
	value, ok, err := store.Get(ctx, "session:a:role")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin", value)

	require.NoError(t, store.Delete(ctx, "session:a:role", "session:a:email"))
	require.NoError(t, store.Delete(ctx))
	_, ok, err = store.Get(ctx, "session:a:email")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVReportsDatabaseErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	store := NewKV(sqlx.NewDb(db, "sqlite3"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv WHERE key = ?`)).
		WithArgs("session:a:role").
		WillReturnError(errors.New("disk I/O error"))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv`)).
		WillReturnError(errors.New("database is locked"))

	_, _, err = store.Get(context.Background(), "session:a:role")
	require.ErrorContains(t, err, "disk I/O error")
	err = store.Set(context.Background(), "session:a:role", "admin")
	require.ErrorContains(t, err, "database is locked")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCollectionSeedsDefaults(t *testing.T) {
	ctx := context.Background()
	store := NewKV(openTestDB(t, "seed"))
	events, err := NewEvents(store, logging.Discard())
	require.NoError(t, err)

	items, err := events.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, items)

	raw, ok, err := store.Get(ctx, KeyEvents)
	require.NoError(t, err)
	require.True(t, ok)
	require.Contains(t, raw, items[0].Title)
}

func TestCollectionFallsBackOnMalformedJSON(t *testing.T) {
	ctx := context.Background()
	store := NewKV(openTestDB(t, "malformed"))
	require.NoError(t, store.Set(ctx, KeyAnnouncements, "{not json"))

	coll, err := NewAnnouncements(store, logging.Discard())
	require.NoError(t, err)
	items, err := coll.List(ctx)
	require.NoError(t, err)
	require.Equal(t, coll.defaults, items)
}

func TestCollectionWrites(t *testing.T) {
	ctx := context.Background()
	store := NewKV(openTestDB(t, "writes"))
	coll := NewMessages(store, logging.Discard())

	items, err := coll.List(ctx)
	require.NoError(t, err)
	require.Empty(t, items)

	for _, id := range []string{"m1", "m2", "m3"} {
		require.NoError(t, coll.Create(ctx, model.StudentMessage{ID: id, Recipient: "siswa@smp2ayah.sch.id", Title: id, Body: "isi"}))
	}
	err = coll.Update(ctx, "m2", func(m model.StudentMessage) (model.StudentMessage, error) {
		m.Title = "diubah"
		return m, nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, coll.Update(ctx, "m9", func(m model.StudentMessage) (model.StudentMessage, error) { return m, nil }), livelist.ErrNotFound)

	require.NoError(t, coll.Delete(ctx, "m1"))
	require.ErrorIs(t, coll.Delete(ctx, "m1"), livelist.ErrNotFound)

	// a second handle on the same storage sees the persisted array
	reopened := NewMessages(store, logging.Discard())
	items, err = reopened.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "diubah", items[0].Title)
	require.Equal(t, "m3", items[1].ID)
}
