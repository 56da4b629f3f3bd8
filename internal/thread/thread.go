// Package thread reconstructs a two-tier conversation around a focal post.
//
// Two independent load machines drive the work: ReplyState walks the ancestor
// chain upward and ConversationState pages through the platform search for
// descendants. Both are plain values advanced by Apply, which returns the side
// effects the Engine must run. The Engine runs those effects, feeds results
// back, and assembles the ordered item sequence after every change.
package thread

import (
	"context"
	"time"

	"github.com/tOgg1/threadline/internal/models"
)

// PostLookup reads locally known posts. A missing post is reported as an
// error or a nil post.
type PostLookup interface {
	LookupPost(ctx context.Context, id string) (*models.Post, error)
}

// DeletionSource reports whether a post has been externally deleted.
type DeletionSource interface {
	IsDeleted(ctx context.Context, id string) (bool, error)
}

// Platform is the remote backend for one conversation.
type Platform interface {
	ResolveConversationID(ctx context.Context, postID string) (string, error)
	SearchConversation(ctx context.Context, query models.SearchQuery) (*models.SearchPage, error)
	FetchPost(ctx context.Context, id string) (*models.Post, error)
}

// PostSink receives every post fetched remotely. Optional.
type PostSink interface {
	SavePosts(ctx context.Context, posts []models.Post) error
}

// Effect is a side effect requested by a state transition.
type Effect interface {
	isEffect()
}

// WalkAncestors asks for a local walk up the reply chain.
type WalkAncestors struct {
	Seq uint64
}

// FetchAncestor asks for a remote lookup of one missing ancestor.
type FetchAncestor struct {
	Seq    uint64
	PostID string
}

// ResolveConversation asks for the focal post's conversation ID.
type ResolveConversation struct {
	Seq    uint64
	PostID string
}

// FetchPage asks for one page of conversation search results.
type FetchPage struct {
	Seq   uint64
	Query models.SearchQuery
}

// ScheduleRetry asks for a RetryPrepare event after Delay.
type ScheduleRetry struct {
	Seq     uint64
	Attempt int
	Delay   time.Duration
}

func (WalkAncestors) isEffect()       {}
func (FetchAncestor) isEffect()       {}
func (ResolveConversation) isEffect() {}
func (FetchPage) isEffect()           {}
func (ScheduleRetry) isEffect()       {}
