package store

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/models"
)

type storeFactory func(t *testing.T, publisher events.Publisher) Store

func storeFactories() map[string]storeFactory {
	return map[string]storeFactory{
		"memory": func(t *testing.T, publisher events.Publisher) Store {
			return NewMemoryStore(WithPublisher(publisher))
		},
		"sqlite": func(t *testing.T, publisher events.Publisher) Store {
			t.Helper()
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "posts.db"), 1000, WithPublisher(publisher))
			require.NoError(t, err)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.Migrate(context.Background()))
			return s
		},
	}
}

func samplePosts() []models.Post {
	base := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	return []models.Post{
		{ID: "1", Platform: models.PlatformTwitter, AuthorID: "alice", Text: "root", ConversationID: "1", CreatedAt: base},
		{ID: "2", Platform: models.PlatformTwitter, AuthorID: "bob", Text: "r1", ReplyToID: "1", ConversationID: "1", CreatedAt: base.Add(time.Minute)},
		{ID: "3", Platform: models.PlatformTwitter, AuthorID: "carol", Text: "r2", ReplyToID: "1", ConversationID: "1", CreatedAt: base.Add(2 * time.Minute), LikeCount: 4},
	}
}

func TestStoreSaveAndLookup(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, nil)

			require.NoError(t, s.SavePosts(ctx, samplePosts()))

			post, err := s.LookupPost(ctx, "3")
			require.NoError(t, err)
			require.Equal(t, "carol", post.AuthorID)
			require.Equal(t, "1", post.ReplyToID)
			require.Equal(t, 4, post.LikeCount)
			require.True(t, post.CreatedAt.Equal(samplePosts()[2].CreatedAt))

			root, err := s.LookupPost(ctx, "1")
			require.NoError(t, err)
			require.Empty(t, root.ReplyToID)

			_, err = s.LookupPost(ctx, "missing")
			require.ErrorIs(t, err, ErrPostNotFound)
		})
	}
}

func TestStoreSaveUpdatesExisting(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, nil)
			posts := samplePosts()
			require.NoError(t, s.SavePosts(ctx, posts))

			posts[1].LikeCount = 9
			require.NoError(t, s.SavePosts(ctx, posts[1:2]))

			post, err := s.LookupPost(ctx, "2")
			require.NoError(t, err)
			require.Equal(t, 9, post.LikeCount)
		})
	}
}

func TestStoreSaveKeepsKnownLinks(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, nil)
			require.NoError(t, s.SavePosts(ctx, samplePosts()))

			// A status lookup that carries no conversation or parent.
			refetched := samplePosts()[1]
			refetched.ConversationID = ""
			refetched.ReplyToID = ""
			refetched.Text = "r1 edited"
			require.NoError(t, s.SavePosts(ctx, []models.Post{refetched}))

			post, err := s.LookupPost(ctx, "2")
			require.NoError(t, err)
			require.Equal(t, "r1 edited", post.Text)
			require.Equal(t, "1", post.ConversationID)
			require.Equal(t, "1", post.ReplyToID)
		})
	}
}

func TestStoreRejectsInvalidPosts(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := factory(t, nil)
			err := s.SavePosts(context.Background(), []models.Post{{ID: "x"}})
			require.ErrorIs(t, err, ErrInvalidPost)
		})
	}
}

func TestStoreListReplies(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t, nil)
			require.NoError(t, s.SavePosts(ctx, samplePosts()))

			replies, err := s.ListReplies(ctx, "1")
			require.NoError(t, err)
			require.Len(t, replies, 2)
			require.Equal(t, "2", replies[0].ID)
			require.Equal(t, "3", replies[1].ID)
		})
	}
}

func TestStoreDeletedSetPublishesChanges(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			pub := events.NewInMemoryPublisher()

			var mu sync.Mutex
			var got []models.EventType
			require.NoError(t, pub.Subscribe("watch", events.Filter{}, func(event *models.Event) {
				mu.Lock()
				got = append(got, event.Type)
				mu.Unlock()
			}))

			s := factory(t, pub)
			require.NoError(t, s.SavePosts(ctx, samplePosts()))

			deleted, err := s.IsDeleted(ctx, "2")
			require.NoError(t, err)
			require.False(t, deleted)

			require.NoError(t, s.MarkDeleted(ctx, "2"))
			require.NoError(t, s.MarkDeleted(ctx, "2"))
			deleted, err = s.IsDeleted(ctx, "2")
			require.NoError(t, err)
			require.True(t, deleted)

			// Posts not stored locally can still be flagged.
			require.NoError(t, s.MarkDeleted(ctx, "remote-only"))

			require.NoError(t, s.Restore(ctx, "2"))
			require.NoError(t, s.Restore(ctx, "2"))
			deleted, err = s.IsDeleted(ctx, "2")
			require.NoError(t, err)
			require.False(t, deleted)

			require.ErrorIs(t, s.MarkDeleted(ctx, "  "), models.ErrInvalidPostID)

			mu.Lock()
			defer mu.Unlock()
			require.Equal(t, []models.EventType{
				models.EventTypePostDeleted,
				models.EventTypePostDeleted,
				models.EventTypePostRestored,
			}, got)
		})
	}
}

func TestOpenSQLiteInMemoryIsolated(t *testing.T) {
	ctx := context.Background()
	first, err := OpenSQLiteInMemory()
	require.NoError(t, err)
	defer first.Close()
	require.NoError(t, first.Migrate(ctx))

	second, err := OpenSQLiteInMemory()
	require.NoError(t, err)
	defer second.Close()
	require.NoError(t, second.Migrate(ctx))

	require.NoError(t, first.SavePosts(ctx, samplePosts()))
	_, err = second.LookupPost(ctx, "1")
	require.ErrorIs(t, err, ErrPostNotFound)
}
