package livelist

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/IsmaHaa12/smp-announcement/internal/logging"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

func newAnnouncementFeed(coll Collection[model.Announcement], broker *Broker) *AnnouncementFeed {
	return NewFeed[model.Announcement, model.AnnouncementPatch](coll, broker, Options[model.Announcement]{
		Name: TopicAnnouncements,
		Less: model.AnnouncementNewerFirst,
	}, logging.Discard())
}

func seedAnnouncements() *Memory[model.Announcement] {
	return NewMemory(
		model.Announcement{ID: "a1", Title: "Libur Semester", DisplayDate: "2024-06-20", Category: "Umum"},
		model.Announcement{ID: "a2", Title: "Ujian Akhir", DisplayDate: "2024-06-01", Category: "Akademik"},
	)
}

func next[T any](t *testing.T, sub *Subscription[T]) Snapshot[T] {
	t.Helper()
	select {
	case snap, ok := <-sub.Updates():
		require.True(t, ok, "updates closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatalf("no snapshot delivered")
	}
	return Snapshot[T]{}
}

func titles(items []model.Announcement) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, item.Title)
	}
	return out
}

func TestSearchMatchesTitleCaseInsensitive(t *testing.T) {
	items := []model.Announcement{{Title: "Ujian Akhir"}, {Title: "Libur Semester"}}
	title := func(a model.Announcement) string { return a.Title }

	require.Equal(t, []string{"Ujian Akhir"}, titles(Search(items, "uji", title)))
	require.Equal(t, []string{"Ujian Akhir", "Libur Semester"}, titles(Search(items, "", title)))
	require.Empty(t, Search(items, "rapat", title))
	require.Equal(t, "Ujian Akhir", items[0].Title)
}

func TestSubscribeDeliversOrderedSnapshots(t *testing.T) {
	ctx := context.Background()
	feed := newAnnouncementFeed(seedAnnouncements(), NewBroker(logging.Discard()))

	sub, err := feed.Subscribe(ctx, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.Equal(t, Active, sub.State())
	require.Equal(t, []string{"Libur Semester", "Ujian Akhir"}, titles(next(t, sub).Items))

	created := model.Announcement{Title: "Rapat Orang Tua", DisplayDate: "2024-07-01 09:00", Content: "Di aula"}
	id, err := feed.Create(ctx, model.RoleAdmin, created)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap := next(t, sub)
	require.NoError(t, snap.Err)
	require.Len(t, snap.Items, 3)
	got := snap.Items[0]
	require.Equal(t, id, got.ID)
	got.ID = ""
	created.Category = model.DefaultCategory
	require.Equal(t, created, got)

	title := "Ujian Akhir Semester"
	date := "2024-08-01"
	require.NoError(t, feed.Update(ctx, model.RoleAdmin, "a2", model.AnnouncementPatch{Title: &title, DisplayDate: &date}))
	require.Equal(t, []string{"Ujian Akhir Semester", "Rapat Orang Tua", "Libur Semester"}, titles(next(t, sub).Items))

	require.NoError(t, feed.Delete(ctx, model.RoleAdmin, "a1"))
	require.Equal(t, []string{"Ujian Akhir Semester", "Rapat Orang Tua"}, titles(next(t, sub).Items))
}

func TestNonAdminWritesAreRejected(t *testing.T) {
	ctx := context.Background()
	coll := seedAnnouncements()
	feed := newAnnouncementFeed(coll, NewBroker(logging.Discard()))

	sub, err := feed.Subscribe(ctx, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	before := next(t, sub).Items

	for _, role := range []model.Role{model.RoleGuest, model.RoleStudent} {
		_, err := feed.Create(ctx, role, model.Announcement{Title: "x", DisplayDate: "2024-01-01"})
		require.ErrorIs(t, err, ErrForbidden)
		title := "x"
		require.ErrorIs(t, feed.Update(ctx, role, "a1", model.AnnouncementPatch{Title: &title}), ErrForbidden)
		require.ErrorIs(t, feed.Delete(ctx, role, "a1"), ErrForbidden)
	}

	select {
	case snap := <-sub.Updates():
		t.Fatalf("unexpected snapshot %v", snap)
	case <-time.After(50 * time.Millisecond):
	}
	after, err := feed.List(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestWriteValidation(t *testing.T) {
	ctx := context.Background()
	feed := newAnnouncementFeed(seedAnnouncements(), nil)

	_, err := feed.Create(ctx, model.RoleAdmin, model.Announcement{Title: "  ", DisplayDate: "2024-01-01"})
	require.ErrorIs(t, err, ErrInvalid)
	_, err = feed.Create(ctx, model.RoleAdmin, model.Announcement{Title: "Tanpa tanggal"})
	require.ErrorIs(t, err, ErrInvalid)

	empty := ""
	require.ErrorIs(t, feed.Update(ctx, model.RoleAdmin, "a1", model.AnnouncementPatch{Title: &empty}), ErrInvalid)
	blank := "    "
	require.ErrorIs(t, feed.Update(ctx, model.RoleAdmin, "a1", model.AnnouncementPatch{Title: &blank}), ErrInvalid)
	badDate := "  "
	require.ErrorIs(t, feed.Update(ctx, model.RoleAdmin, "a1", model.AnnouncementPatch{DisplayDate: &badDate}), ErrInvalid)
	require.ErrorIs(t, feed.Update(ctx, model.RoleAdmin, "missing", model.AnnouncementPatch{}), ErrNotFound)
	require.ErrorIs(t, feed.Delete(ctx, model.RoleAdmin, "missing"), ErrNotFound)

	items, err := feed.List(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, []string{"Libur Semester", "Ujian Akhir"}, titles(items))

	padded := "  Rapat  "
	require.NoError(t, feed.Update(ctx, model.RoleAdmin, "a1", model.AnnouncementPatch{Title: &padded}))
	id, err := feed.Create(ctx, model.RoleAdmin, model.Announcement{Title: padded, DisplayDate: " 2024-01-01 "})
	require.NoError(t, err)
	items, err = feed.List(ctx, nil)
	require.NoError(t, err)
	for _, item := range items {
		if item.ID == "a1" || item.ID == id {
			require.Equal(t, "Rapat", item.Title)
		}
	}
}

type flakyCollection struct {
	*Memory[model.Announcement]
	fail atomic.Bool
}

func (f *flakyCollection) List(ctx context.Context) ([]model.Announcement, error) {
	if f.fail.Load() {
		return nil, errors.New("document store unavailable")
	}
	return f.Memory.List(ctx)
}

func TestReadFailureIsSurfaced(t *testing.T) {
	ctx := context.Background()
	coll := &flakyCollection{Memory: seedAnnouncements()}
	broker := NewBroker(logging.Discard())
	feed := newAnnouncementFeed(coll, broker)

	sub, err := feed.Subscribe(ctx, nil)
	require.NoError(t, err)
	defer sub.Unsubscribe()
	good := next(t, sub).Items

	coll.fail.Store(true)
	broker.Publish(ctx, "announcements")
	snap := next(t, sub)
	require.Error(t, snap.Err)
	require.Equal(t, good, snap.Items)

	coll.fail.Store(false)
	broker.Publish(ctx, "announcements")
	require.NoError(t, next(t, sub).Err)
}

func TestFilterAppliesToEverySnapshot(t *testing.T) {
	ctx := context.Background()
	feed := NewFeeds(
		NewMemory[model.Announcement](),
		NewMemory[model.Event](),
		NewMemory[model.StudentMessage](),
		NewBroker(logging.Discard()),
		logging.Discard(),
	).Messages

	student := model.Session{Role: model.RoleStudent, Identity: model.Identity{Email: "siswa@smp2ayah.sch.id"}}
	sub, err := feed.Subscribe(ctx, func(m model.StudentMessage) bool { return m.VisibleTo(student) })
	require.NoError(t, err)
	defer sub.Unsubscribe()
	require.Empty(t, next(t, sub).Items)

	_, err = feed.Create(ctx, model.RoleAdmin, model.StudentMessage{Recipient: "lain@smp2ayah.sch.id", Title: "Info", Body: "Bukan untukmu"})
	require.NoError(t, err)
	require.Empty(t, next(t, sub).Items)

	_, err = feed.Create(ctx, model.RoleAdmin, model.StudentMessage{Recipient: "Siswa@smp2ayah.sch.id ", Title: "Nilai", Body: "Nilai sudah keluar"})
	require.NoError(t, err)
	items := next(t, sub).Items
	require.Len(t, items, 1)
	require.Equal(t, "Nilai", items[0].Title)
	require.False(t, items[0].CreatedAt.IsZero())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	broker := NewBroker(logging.Discard())
	feed := newAnnouncementFeed(seedAnnouncements(), broker)

	sub, err := feed.Subscribe(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, broker.Subscribers("announcements"))

	sub.Unsubscribe()
	sub.Unsubscribe()
	require.Equal(t, Unsubscribed, sub.State())
	require.Equal(t, 0, broker.Subscribers("announcements"))

	// the pending first snapshot drains, then the channel is closed
	for range sub.Updates() {
	}
}

func TestContextCancelEndsSubscription(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := NewBroker(logging.Discard())
	feed := newAnnouncementFeed(seedAnnouncements(), broker)

	sub, err := feed.Subscribe(ctx, nil)
	require.NoError(t, err)
	next(t, sub)
	cancel()
	require.Eventually(t, func() bool { return sub.State() == Unsubscribed }, time.Second, 5*time.Millisecond)
	require.Equal(t, 0, broker.Subscribers("announcements"))

	_, err = feed.Subscribe(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRedisRelaySharesChanges(t *testing.T) {
	server := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: server.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	local := NewBroker(logging.Discard())
	remote := NewBroker(logging.Discard())
	localRelay := NewRedisRelay(newClient(), "", local, logging.Discard())
	remoteRelay := NewRedisRelay(newClient(), "", remote, logging.Discard())
	local.SetRelay(localRelay)
	go func() { _ = remoteRelay.Run(ctx) }()

	notify, release := remote.Subscribe("events")
	defer release()

	require.Eventually(t, func() bool {
		local.Publish(ctx, "events")
		select {
		case <-notify:
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
