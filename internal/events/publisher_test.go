package events

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/models"
)

func TestFilterMatches(t *testing.T) {
	deletion := &models.Event{Type: models.EventTypePostDeleted, PostID: "1"}
	update := &models.Event{Type: models.EventTypeThreadUpdated, ThreadID: "t1", PostID: "9"}

	tests := []struct {
		name   string
		filter Filter
		event  *models.Event
		want   bool
	}{
		{name: "empty filter", filter: Filter{}, event: deletion, want: true},
		{name: "nil event", filter: Filter{}, event: nil, want: false},
		{
			name:   "type match",
			filter: Filter{EventTypes: []models.EventType{models.EventTypePostRestored, models.EventTypePostDeleted}},
			event:  deletion,
			want:   true,
		},
		{
			name:   "type mismatch",
			filter: Filter{EventTypes: []models.EventType{models.EventTypePostDeleted}},
			event:  update,
			want:   false,
		},
		{name: "thread match", filter: Filter{ThreadID: "t1"}, event: update, want: true},
		{name: "thread mismatch", filter: Filter{ThreadID: "t2"}, event: update, want: false},
		{name: "store events carry no thread", filter: Filter{ThreadID: "t1"}, event: deletion, want: false},
		{name: "post match", filter: Filter{PostIDs: []string{"3", "1"}}, event: deletion, want: true},
		{name: "post mismatch", filter: Filter{PostIDs: []string{"3"}}, event: deletion, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.filter.Matches(tt.event))
		})
	}
}

func TestSubscribeErrors(t *testing.T) {
	p := NewInMemoryPublisher()
	handler := func(*models.Event) {}

	require.ErrorIs(t, p.Subscribe("", Filter{}, handler), ErrInvalidSubscriptionID)
	require.ErrorIs(t, p.Subscribe("a", Filter{}, nil), ErrNilHandler)
	require.NoError(t, p.Subscribe("a", Filter{}, handler))
	require.ErrorIs(t, p.Subscribe("a", Filter{}, handler), ErrSubscriptionExists)
	require.Equal(t, 1, p.SubscriberCount())

	require.NoError(t, p.Unsubscribe("a"))
	require.ErrorIs(t, p.Unsubscribe("a"), ErrSubscriptionNotFound)
	require.Zero(t, p.SubscriberCount())
}

func TestPublishStampsAndOrders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := NewInMemoryPublisher(WithClock(func() time.Time { return now }))

	var got []string
	for _, id := range []string{"first", "second", "third"} {
		require.NoError(t, p.Subscribe(id, Filter{}, func(ev *models.Event) {
			got = append(got, id)
			require.NotEmpty(t, ev.ID)
			require.Equal(t, now, ev.Timestamp)
		}))
	}
	require.NoError(t, p.Unsubscribe("second"))

	p.Publish(context.Background(), &models.Event{Type: models.EventTypePostDeleted, PostID: "1"})
	p.Publish(context.Background(), nil)
	require.Equal(t, []string{"first", "third"}, got)
}

func TestPublishKeepsExistingStamp(t *testing.T) {
	p := NewInMemoryPublisher()
	stamp := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	var seen *models.Event
	require.NoError(t, p.Subscribe("s", Filter{}, func(ev *models.Event) { seen = ev }))

	p.Publish(context.Background(), &models.Event{ID: "evt", Timestamp: stamp, Type: models.EventTypePostRestored})
	require.Equal(t, "evt", seen.ID)
	require.Equal(t, stamp, seen.Timestamp)
}

func TestPublishStopsOnCancelledContext(t *testing.T) {
	p := NewInMemoryPublisher()
	calls := 0
	require.NoError(t, p.Subscribe("s", Filter{}, func(*models.Event) { calls++ }))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.Publish(ctx, &models.Event{Type: models.EventTypePostDeleted})
	require.Zero(t, calls)
}

func TestHandlerMayUnsubscribe(t *testing.T) {
	p := NewInMemoryPublisher()
	calls := 0
	require.NoError(t, p.Subscribe("once", Filter{}, func(*models.Event) {
		calls++
		require.NoError(t, p.Unsubscribe("once"))
	}))

	p.Publish(context.Background(), &models.Event{Type: models.EventTypePostDeleted})
	p.Publish(context.Background(), &models.Event{Type: models.EventTypePostDeleted})
	require.Equal(t, 1, calls)
}

func TestClose(t *testing.T) {
	p := NewInMemoryPublisher()
	require.NoError(t, p.Subscribe("a", Filter{}, func(*models.Event) {}))
	p.Close()
	require.Zero(t, p.SubscriberCount())
	require.NoError(t, p.Subscribe("a", Filter{}, func(*models.Event) {}))
}

func TestConcurrentPublishAndSubscribe(t *testing.T) {
	p := NewInMemoryPublisher()
	var mu sync.Mutex
	delivered := 0

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = p.Subscribe(fmt.Sprintf("sub-%d", i), Filter{}, func(*models.Event) {
				mu.Lock()
				delivered++
				mu.Unlock()
			})
		}(i)
		go func() {
			defer wg.Done()
			p.Publish(context.Background(), &models.Event{Type: models.EventTypeThreadUpdated})
		}()
	}
	wg.Wait()

	require.Equal(t, 20, p.SubscriberCount())
	mu.Lock()
	defer mu.Unlock()
	require.LessOrEqual(t, delivered, 20*20)
}
