package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestValidationErrorsUnwrap(t *testing.T) {
	validation := &ValidationErrors{}
	require.NoError(t, validation.Err())

	validation.Add("id", ErrInvalidPostID)
	validation.AddMessage("created_at", "created_at is required")

	err := validation.Err()
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidPostID))
	require.False(t, errors.Is(err, ErrSelfReply))
	require.Equal(t, "id: post id is required; created_at: created_at is required", err.Error())
}

func TestValidatePosts(t *testing.T) {
	created := time.Date(2026, 2, 9, 8, 0, 0, 0, time.UTC)
	posts := []Post{
		{ID: "1", AuthorID: "alice", CreatedAt: created},
		{ID: "2", CreatedAt: created},
		{AuthorID: "bob", CreatedAt: created},
	}

	err := ValidatePosts(posts)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidAuthorID)
	require.ErrorIs(t, err, ErrInvalidPostID)

	var list *ValidationErrors
	require.True(t, errors.As(err, &list))
	require.Len(t, list.Errors, 2)
	require.Equal(t, "posts[1](2).author_id", list.Errors[0].Field)
	require.Equal(t, "posts[2].id", list.Errors[1].Field)

	require.NoError(t, ValidatePosts(posts[:1]))
}
