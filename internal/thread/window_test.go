package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/models"
)

func TestBuildQueryWindowSelection(t *testing.T) {
	policy := DefaultConversationPolicy()
	boundary := testNow.Add(-7 * 24 * time.Hour).Add(5 * time.Minute)

	tests := []struct {
		name      string
		age       time.Duration
		wantSince bool
	}{
		{name: "ten days old", age: 10 * 24 * time.Hour},
		{name: "one hour old", age: time.Hour, wantSince: true},
		{name: "inside the safety margin", age: 7*24*time.Hour - 2*time.Minute},
		{name: "just inside the window", age: 7*24*time.Hour - 10*time.Minute, wantSince: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := &models.ConversationMeta{
				FocalPostID:    "42",
				FocalAuthorID:  "alice",
				ConversationID: "40",
				FocalCreatedAt: testNow.Add(-tt.age),
			}
			query := BuildQuery(meta, "", testNow, policy)

			require.Equal(t, "40", query.ConversationID)
			require.Equal(t, "alice", query.AuthorID)
			require.Equal(t, policy.PageSize, query.MaxResults)
			if tt.wantSince {
				require.Equal(t, "42", query.SinceID)
				require.Nil(t, query.StartTime)
				return
			}
			require.Empty(t, query.SinceID)
			require.NotNil(t, query.StartTime)
			require.True(t, query.StartTime.Equal(boundary))
		})
	}
}

func TestBuildQueryCarriesContinuation(t *testing.T) {
	meta := &models.ConversationMeta{FocalPostID: "1", ConversationID: "1", FocalCreatedAt: testNow}
	query := BuildQuery(meta, "cursor", testNow, DefaultConversationPolicy())
	require.Equal(t, "cursor", query.Continuation)
}
