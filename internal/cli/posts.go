package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/logging"
	"github.com/tOgg1/threadline/internal/models"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Load posts from a JSON array into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var posts []models.Post
			if err := json.Unmarshal(data, &posts); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}
			if err := models.ValidatePosts(posts); err != nil {
				return err
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.SavePosts(ctx, posts); err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, map[string]any{"imported": len(posts)})
			}
			fmt.Fprintf(a.out, "imported %d posts\n", len(posts))
			return nil
		},
	}
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <post-id>",
		Short: "Mark a post as deleted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setDeleted(cmd.Context(), args[0], true)
		},
	}
}

func newRestoreCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <post-id>",
		Short: "Clear the deleted mark of a post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.setDeleted(cmd.Context(), args[0], false)
		},
	}
}

func (a *app) setDeleted(ctx context.Context, postID string, deleted bool) error {
	postID = strings.TrimSpace(postID)

	publisher := events.NewInMemoryPublisher()
	defer publisher.Close()
	logger := logging.FromContext(ctx)
	_ = publisher.Subscribe("cli-deletions", events.Filter{}, func(event *models.Event) {
		logger.Info().Str("post_id", event.PostID).Str("event", string(event.Type)).Msg("deleted set changed")
	})

	st, err := a.openStore(ctx, publisher)
	if err != nil {
		return err
	}
	defer st.Close()

	if deleted {
		err = st.MarkDeleted(ctx, postID)
	} else {
		err = st.Restore(ctx, postID)
	}
	if err != nil {
		return err
	}

	if a.jsonOutput {
		return writeJSON(a.out, map[string]any{"post_id": postID, "deleted": deleted})
	}
	fmt.Fprintln(a.out, "ok")
	return nil
}

func newShowPostCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show-post <post-id>",
		Short: "Print a stored post and its stored direct replies",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.openStore(ctx, nil)
			if err != nil {
				return err
			}
			defer st.Close()

			post, err := st.LookupPost(ctx, strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			deleted, err := st.IsDeleted(ctx, post.ID)
			if err != nil {
				return err
			}
			replies, err := st.ListReplies(ctx, post.ID)
			if err != nil {
				return err
			}
			replyIDs := make([]string, 0, len(replies))
			for _, reply := range replies {
				replyIDs = append(replyIDs, reply.ID)
			}

			if a.jsonOutput {
				return writeJSON(a.out, struct {
					*models.Post
					Deleted       bool     `json:"deleted"`
					StoredReplies []string `json:"stored_replies"`
				}{post, deleted, replyIDs})
			}
			rows := [][]string{
				{"id", post.ID},
				{"platform", string(post.Platform)},
				{"author", post.AuthorID},
				{"reply_to", post.ReplyToID},
				{"conversation", post.ConversationID},
				{"created", post.CreatedAt.UTC().Format(time.RFC3339)},
				{"replies", strconv.Itoa(post.ReplyCount)},
				{"deleted", strconv.FormatBool(deleted)},
				{"stored replies", strings.Join(replyIDs, ", ")},
				{"text", truncate(post.Text, 0)},
			}
			return writeTable(a.out, nil, rows)
		},
	}
}
