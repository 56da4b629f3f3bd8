package thread

import (
	"time"

	"github.com/tOgg1/threadline/internal/models"
)

// WindowBoundary is the oldest instant a recent search can still reach.
func WindowBoundary(now time.Time, window, margin time.Duration) time.Time {
	return now.Add(-window).Add(margin)
}

// BuildQuery builds the next page request for meta.
//
// A focal post older than the search window must be searched by start time:
// since_id against an expired post returns nothing even when replies exist.
func BuildQuery(meta *models.ConversationMeta, continuation string, now time.Time, policy ConversationPolicy) models.SearchQuery {
	query := models.SearchQuery{
		ConversationID: meta.ConversationID,
		AuthorID:       meta.FocalAuthorID,
		Continuation:   continuation,
		MaxResults:     policy.PageSize,
	}

	boundary := WindowBoundary(now, policy.SearchWindow, policy.WindowMargin)
	if meta.FocalCreatedAt.Before(boundary) {
		start := boundary.UTC()
		query.StartTime = &start
	} else {
		query.SinceID = meta.FocalPostID
	}
	return query
}
