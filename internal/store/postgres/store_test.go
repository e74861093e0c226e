package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("SCHOOLINFO_TEST_DB")
	if url == "" {
		t.Skip("SCHOOLINFO_TEST_DB not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE announcements, events, student_messages`)
	require.NoError(t, err)
	return NewStore(pool)
}

func TestAnnouncementsRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	coll := store.Announcements()

	first := model.Announcement{ID: uuid.NewString(), Title: "Ujian Akhir", DisplayDate: "2024-06-01", Category: "Akademik"}
	second := model.Announcement{ID: uuid.NewString(), Title: "Libur Semester", DisplayDate: "2024-06-01", Category: "Umum", Content: "**Libur** dua minggu"}
	require.NoError(t, coll.Create(ctx, first))
	require.NoError(t, coll.Create(ctx, second))

	items, err := coll.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Announcement{first, second}, items)

	err = coll.Update(ctx, first.ID, func(a model.Announcement) (model.Announcement, error) {
		a.Title = "Ujian Akhir Semester"
		return a, nil
	})
	require.NoError(t, err)
	items, err = coll.List(ctx)
	require.NoError(t, err)
	require.Equal(t, "Ujian Akhir Semester", items[0].Title)

	require.NoError(t, coll.Delete(ctx, second.ID))
	require.ErrorIs(t, coll.Delete(ctx, second.ID), livelist.ErrNotFound)
	require.ErrorIs(t, coll.Delete(ctx, "not-a-uuid"), livelist.ErrNotFound)
	items, err = coll.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
}

func TestUpdateRollsBackOnMutateError(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	coll := store.Events()

	event := model.Event{ID: uuid.NewString(), Title: "Upacara", Date: "2024-08-17"}
	require.NoError(t, coll.Create(ctx, event))
	err := coll.Update(ctx, event.ID, func(e model.Event) (model.Event, error) {
		return e, livelist.ErrInvalid
	})
	require.ErrorIs(t, err, livelist.ErrInvalid)
	require.ErrorIs(t, coll.Update(ctx, uuid.NewString(), func(e model.Event) (model.Event, error) { return e, nil }), livelist.ErrNotFound)

	items, err := coll.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []model.Event{event}, items)
}

func TestMessagesKeepTimestamps(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	coll := store.Messages()

	created := time.Date(2024, 5, 2, 7, 30, 0, 0, time.UTC)
	msg := model.StudentMessage{ID: uuid.NewString(), Recipient: "siswa@smp2ayah.sch.id", Title: "Nilai", Body: "Sudah keluar", CreatedAt: created}
	require.NoError(t, coll.Create(ctx, msg))

	items, err := coll.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.True(t, items[0].CreatedAt.Equal(created))
}
