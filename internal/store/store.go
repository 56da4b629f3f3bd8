// Package store provides the local post lookup the reconstruction engine
// reads through, plus the externally managed deleted-post set.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/models"
)

// Store errors.
var (
	ErrPostNotFound = errors.New("post not found")
	ErrInvalidPost  = errors.New("invalid post")
	ErrClosed       = errors.New("store closed")
)

// Store is a local post lookup with a reactive deleted set.
type Store interface {
	LookupPost(ctx context.Context, id string) (*models.Post, error)
	IsDeleted(ctx context.Context, id string) (bool, error)
	SavePosts(ctx context.Context, posts []models.Post) error
	MarkDeleted(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
	ListReplies(ctx context.Context, replyToID string) ([]*models.Post, error)
}

// Option configures a store.
type Option func(*options)

type options struct {
	publisher events.Publisher
}

// WithPublisher makes deletion changes observable.
func WithPublisher(publisher events.Publisher) Option {
	return func(o *options) {
		o.publisher = publisher
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func (o options) publish(ctx context.Context, eventType models.EventType, postID string) {
	if o.publisher == nil {
		return
	}
	o.publisher.Publish(ctx, &models.Event{Type: eventType, PostID: postID})
}

func normalizeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", models.ErrInvalidPostID
	}
	return trimmed, nil
}

func clonePost(post models.Post) *models.Post {
	clone := post
	return &clone
}
