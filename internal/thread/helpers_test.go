package thread

import (
	"context"
	"sync"
	"time"

	"github.com/tOgg1/threadline/internal/models"
	"github.com/tOgg1/threadline/internal/store"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func post(id, replyTo string, age time.Duration) models.Post {
	return models.Post{
		ID:             id,
		Platform:       models.PlatformTwitter,
		AuthorID:       "author-" + id,
		Text:           "post " + id,
		ReplyToID:      replyTo,
		ConversationID: "conv",
		CreatedAt:      testNow.Add(-age),
	}
}

func memoryLookup(posts ...models.Post) *store.MemoryStore {
	s := store.NewMemoryStore()
	s.Put(posts...)
	return s
}

type fakePlatform struct {
	mu sync.Mutex

	posts         map[string]models.Post
	fetchErr      error
	fetchCalls    int
	conversation  string
	resolveErrs   []error
	resolveCalls  int
	pages         []*models.SearchPage
	pageErr       error
	queries       []models.SearchQuery
	searchStarted chan struct{}
}

func newFakePlatform(posts ...models.Post) *fakePlatform {
	f := &fakePlatform{posts: make(map[string]models.Post), conversation: "conv"}
	for _, p := range posts {
		f.posts[p.ID] = p
	}
	return f
}

func (f *fakePlatform) FetchPost(ctx context.Context, id string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, models.NewFetchError(models.FetchErrorNotFound, "fetch post", nil)
	}
	return &p, nil
}

func (f *fakePlatform) ResolveConversationID(ctx context.Context, postID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	if len(f.resolveErrs) > 0 {
		err := f.resolveErrs[0]
		f.resolveErrs = f.resolveErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return f.conversation, nil
}

func (f *fakePlatform) SearchConversation(ctx context.Context, query models.SearchQuery) (*models.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	if len(f.pages) == 0 {
		return &models.SearchPage{}, nil
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func (f *fakePlatform) counts() (fetch, resolve, search int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls, f.resolveCalls, len(f.queries)
}

func leafIDs(items []models.Item) []string {
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if item.Kind == models.ItemKindLeaf {
			ids = append(ids, item.PostID)
		}
	}
	return ids
}

func itemKeys(items []models.Item) []string {
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key())
	}
	return keys
}
