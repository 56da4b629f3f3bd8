package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/logging"
	"github.com/tOgg1/threadline/internal/models"
	"github.com/tOgg1/threadline/internal/store"
	"github.com/tOgg1/threadline/internal/thread"
)

type threadOptions struct {
	pages   int
	replies int
	timeout time.Duration
}

func newThreadCmd(a *app) *cobra.Command {
	opts := threadOptions{pages: 3, replies: 10, timeout: 2 * time.Minute}
	cmd := &cobra.Command{
		Use:   "thread <post-id>",
		Short: "Reconstruct the thread around a post",
		Long: "Walk the ancestors of a post and page through its replies, then print " +
			"the ancestors, the post and its two-tier reply view.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.pages < 1 {
				return errors.New("--pages must be at least 1")
			}
			if opts.replies < 0 {
				return errors.New("--replies must not be negative")
			}
			return a.runThread(cmd.Context(), strings.TrimSpace(args[0]), opts)
		},
	}
	cmd.Flags().IntVar(&opts.pages, "pages", opts.pages, "maximum number of reply pages to load")
	cmd.Flags().IntVar(&opts.replies, "replies", opts.replies, "maximum number of remote ancestor fetches")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", opts.timeout, "overall deadline")
	return cmd
}

func (a *app) runThread(ctx context.Context, postID string, opts threadOptions) error {
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	publisher := events.NewInMemoryPublisher()
	defer publisher.Close()

	st, err := a.openStore(ctx, publisher)
	if err != nil {
		return err
	}
	defer st.Close()

	remote, err := a.platform()
	if err != nil {
		return err
	}

	focal, err := focalPost(ctx, st, remote, postID)
	if err != nil {
		return err
	}

	engine, err := thread.New(*focal, thread.Deps{
		Lookup:    st,
		Deleted:   st,
		Platform:  remote,
		Publisher: publisher,
		Sink:      st,
	}, thread.WithConfig(a.cfg.Engine))
	if err != nil {
		return err
	}
	defer engine.Close()

	logger := logging.FromContext(ctx)
	logger.Debug().Str("post_id", focal.ID).Str("engine_id", engine.ID()).Msg("reconstructing thread")

	if err := engine.Start(ctx); err != nil {
		return err
	}
	if err := drive(ctx, engine, opts); err != nil {
		return err
	}

	view := buildThreadView(ctx, engine, st)
	if a.jsonOutput {
		return writeJSON(a.out, view)
	}
	width, tty := terminalWidth(a.out)
	return renderThread(a.out, view, newStyles(tty && !a.noColor), width)
}

// focalPost reads the post locally, fetching and storing it when unknown.
func focalPost(ctx context.Context, st store.Store, remote thread.Platform, id string) (*models.Post, error) {
	post, err := st.LookupPost(ctx, id)
	if err == nil {
		return post, nil
	}
	if !errors.Is(err, store.ErrPostNotFound) {
		return nil, err
	}

	post, err = remote.FetchPost(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, err)
	}
	if post == nil {
		return nil, fmt.Errorf("fetch post %s: %w", id, models.ErrNotFound)
	}
	if err := st.SavePosts(ctx, []models.Post{*post}); err != nil {
		return nil, err
	}
	return post, nil
}

// drive advances both machines concurrently until they stop on their own or
// reach the limits. The first reply page loads automatically.
func drive(ctx context.Context, engine *thread.Engine, opts threadOptions) error {
	if err := engine.Wait(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for i := 0; i < opts.replies && engine.ReplyPhase() == thread.ReplyIdle; i++ {
			engine.LoadMoreReplies()
			if err := engine.Wait(gctx); err != nil {
				return err
			}
		}
		return nil
	})
	g.Go(func() error {
		for page := 1; page < opts.pages && engine.ConversationPhase() == thread.ConversationIdle; page++ {
			engine.LoadMoreConversation()
			if err := engine.Wait(gctx); err != nil {
				return err
			}
		}
		return nil
	})
	return g.Wait()
}

type threadItem struct {
	Kind   models.ItemKind  `json:"kind"`
	PostID string           `json:"post_id,omitempty"`
	Leaf   *models.LeafInfo `json:"leaf,omitempty"`
	Post   *models.Post     `json:"post,omitempty"`
}

type threadView struct {
	FocalID           string                   `json:"focal_id"`
	ConversationID    string                   `json:"conversation_id,omitempty"`
	ReplyPhase        thread.ReplyPhase        `json:"reply_phase"`
	ConversationPhase thread.ConversationPhase `json:"conversation_phase"`
	Items             []threadItem             `json:"items"`
}

func buildThreadView(ctx context.Context, engine *thread.Engine, st store.Store) threadView {
	view := threadView{
		FocalID:           engine.Focal().ID,
		ReplyPhase:        engine.ReplyPhase(),
		ConversationPhase: engine.ConversationPhase(),
	}
	if meta := engine.Meta(); meta != nil {
		view.ConversationID = meta.ConversationID
	}

	for _, item := range engine.Items() {
		entry := threadItem{Kind: item.Kind, PostID: item.PostID, Leaf: item.Leaf}
		if item.PostID != "" {
			if post, ok := engine.Post(item.PostID); ok {
				entry.Post = post
			} else if post, err := st.LookupPost(ctx, item.PostID); err == nil {
				entry.Post = post
			}
		}
		view.Items = append(view.Items, entry)
	}
	return view
}

// textColumnWidth is the room left for post text after lead and the gap.
// Zero means unlimited.
func textColumnWidth(width int, lead string) int {
	if width <= 0 {
		return 0
	}
	return max(width-runewidth.StringWidth(lead)-2, minTextColumn)
}

func renderThread(out io.Writer, view threadView, st styles, width int) error {
	var b strings.Builder
	for _, item := range view.Items {
		var prefix string
		style := st.reply
		switch item.Kind {
		case models.ItemKindTopLoader:
			b.WriteString(st.loader.Render("  ⋯ earlier posts not loaded") + "\n")
			continue
		case models.ItemKindBottomLoader:
			b.WriteString(st.loader.Render("  ⋯ more replies not loaded") + "\n")
			continue
		case models.ItemKindReply:
			prefix = "  "
		case models.ItemKindRoot:
			prefix = "▶ "
			style = st.root
		case models.ItemKindLeaf:
			if item.Leaf != nil && item.Leaf.Tier == models.TierSubReply {
				prefix = "  │ └ "
				style = st.sub
			} else {
				prefix = "  ├ "
				style = st.leaf
			}
		}

		if item.Post == nil {
			b.WriteString(style.Render(prefix+"?") + "  " + st.muted.Render("(unavailable)") + "\n")
			continue
		}
		author := item.Post.AuthorID
		textWidth := 0
		if width > 0 {
			textWidth = max(width-len([]rune(prefix+author))-2, minTextColumn)
		}
		b.WriteString(style.Render(prefix+author) + "  " + truncate(item.Post.Text, textWidth) + "\n")
	}
	_, err := io.WriteString(out, b.String())
	return err
}
