package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tOgg1/threadline/internal/models"
)

// MemoryStore is a goroutine-safe in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	posts   map[string]models.Post
	deleted map[string]struct{}
	opts    options
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	return &MemoryStore{
		posts:   make(map[string]models.Post),
		deleted: make(map[string]struct{}),
		opts:    buildOptions(opts),
	}
}

// Put stores posts without validation. Intended for fixtures.
func (s *MemoryStore) Put(posts ...models.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range posts {
		s.posts[post.ID] = post
	}
}

func (s *MemoryStore) LookupPost(_ context.Context, id string) (*models.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	post, ok := s.posts[id]
	if !ok {
		return nil, ErrPostNotFound
	}
	return clonePost(post), nil
}

func (s *MemoryStore) IsDeleted(_ context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleted[id]
	return ok, nil
}

func (s *MemoryStore) SavePosts(_ context.Context, posts []models.Post) error {
	if err := models.ValidatePosts(posts); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPost, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, post := range posts {
		if known, ok := s.posts[post.ID]; ok {
			if post.ReplyToID == "" {
				post.ReplyToID = known.ReplyToID
			}
			if post.ConversationID == "" {
				post.ConversationID = known.ConversationID
			}
		}
		s.posts[post.ID] = post
	}
	return nil
}

func (s *MemoryStore) MarkDeleted(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, already := s.deleted[id]
	s.deleted[id] = struct{}{}
	s.mu.Unlock()

	if !already {
		s.opts.publish(ctx, models.EventTypePostDeleted, id)
	}
	return nil
}

func (s *MemoryStore) Restore(ctx context.Context, id string) error {
	id, err := normalizeID(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	_, was := s.deleted[id]
	delete(s.deleted, id)
	s.mu.Unlock()

	if was {
		s.opts.publish(ctx, models.EventTypePostRestored, id)
	}
	return nil
}

func (s *MemoryStore) ListReplies(_ context.Context, replyToID string) ([]*models.Post, error) {
	s.mu.RLock()
	out := make([]*models.Post, 0)
	for _, post := range s.posts {
		if post.ReplyToID == replyToID {
			out = append(out, clonePost(post))
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}
