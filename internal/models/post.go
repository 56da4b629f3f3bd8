// Package models defines the core domain types for threadline.
package models

import (
	"errors"
	"strings"
	"time"
)

// Platform identifies the backend a post was fetched from.
type Platform string

const (
	PlatformTwitter  Platform = "twitter"
	PlatformMastodon Platform = "mastodon"
)

// Post validation errors.
var (
	ErrInvalidPostID   = errors.New("post id is required")
	ErrInvalidAuthorID = errors.New("author id is required")
	ErrSelfReply       = errors.New("post cannot reply to itself")
)

// Post is a read-only snapshot of a single post as known locally or as
// returned by a platform.
type Post struct {
	// ID is the platform-assigned post identifier.
	ID string `json:"id"`

	// Platform is the backend this post belongs to.
	Platform Platform `json:"platform,omitempty"`

	// AuthorID is the platform user ID of the author.
	AuthorID string `json:"author_id"`

	// Text is the post body.
	Text string `json:"text,omitempty"`

	// ReplyToID is the post this one replies to (empty = none).
	ReplyToID string `json:"reply_to_id,omitempty"`

	// ConversationID groups all posts of one thread (empty = unknown).
	ConversationID string `json:"conversation_id,omitempty"`

	// CreatedAt is when the post was published.
	CreatedAt time.Time `json:"created_at"`

	ReplyCount  int `json:"reply_count,omitempty"`
	RepostCount int `json:"repost_count,omitempty"`
	LikeCount   int `json:"like_count,omitempty"`
}

// IsReply reports whether the post points at a parent.
func (p *Post) IsReply() bool {
	return strings.TrimSpace(p.ReplyToID) != ""
}

// Validate checks the fields the reconstruction engine relies on.
func (p *Post) Validate() error {
	validation := &ValidationErrors{}
	if strings.TrimSpace(p.ID) == "" {
		validation.Add("id", ErrInvalidPostID)
	}
	if strings.TrimSpace(p.AuthorID) == "" {
		validation.Add("author_id", ErrInvalidAuthorID)
	}
	if p.ReplyToID != "" && p.ReplyToID == p.ID {
		validation.Add("reply_to_id", ErrSelfReply)
	}
	if p.CreatedAt.IsZero() {
		validation.AddMessage("created_at", "created_at is required")
	}
	return validation.Err()
}

// ConversationMeta is resolved once per focal post and is required before any
// descendant page can be fetched.
type ConversationMeta struct {
	FocalPostID    string    `json:"focal_post_id"`
	FocalAuthorID  string    `json:"focal_author_id"`
	ConversationID string    `json:"conversation_id"`
	FocalCreatedAt time.Time `json:"focal_created_at"`
}

// NewConversationMeta builds meta for a focal post whose conversation ID is
// already known. conversationID overrides the post's own value when set.
func NewConversationMeta(focal *Post, conversationID string) *ConversationMeta {
	if focal == nil {
		return nil
	}
	if conversationID == "" {
		conversationID = focal.ConversationID
	}
	if conversationID == "" {
		return nil
	}
	return &ConversationMeta{
		FocalPostID:    focal.ID,
		FocalAuthorID:  focal.AuthorID,
		ConversationID: conversationID,
		FocalCreatedAt: focal.CreatedAt,
	}
}

// ConversationNode is a transient tree node built from one merge pass.
type ConversationNode struct {
	Post     *Post
	Children []*ConversationNode
}

// SearchQuery is a single page request against a platform conversation search.
type SearchQuery struct {
	ConversationID string
	AuthorID       string

	// Exactly one of SinceID or StartTime is set by the engine.
	SinceID   string
	StartTime *time.Time

	// Continuation is the opaque token from the previous page.
	Continuation string
	MaxResults   int
}

// SearchPage is one page of flat search results.
type SearchPage struct {
	Posts        []Post
	Continuation string
	ResultCount  int
}

// Empty reports whether the page carries no results. A page is empty when the
// backend reports zero results or returns no posts.
func (p *SearchPage) Empty() bool {
	return p == nil || p.ResultCount == 0 || len(p.Posts) == 0
}
