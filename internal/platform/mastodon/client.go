// Package mastodon binds the reconstruction engine to the Mastodon statuses
// API. Mastodon has no conversation search, so the thread root stands in for
// the conversation ID and the context endpoint is paged client-side by a
// min_id style cursor.
package mastodon

import (
	"context"
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/tOgg1/threadline/internal/models"
	"github.com/tOgg1/threadline/internal/platform/httpx"
)

const defaultPageSize = 40

// Client implements thread.Platform.
type Client struct {
	http *httpx.Client
}

// New creates a client. BaseURL is the instance root, e.g. https://mastodon.social.
func New(cfg httpx.Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("mastodon base url is required")
	}
	cfg.Platform = string(models.PlatformMastodon)
	return &Client{http: httpx.New(cfg)}, nil
}

type status struct {
	ID              string    `json:"id"`
	InReplyToID     *string   `json:"in_reply_to_id"`
	CreatedAt       time.Time `json:"created_at"`
	Content         string    `json:"content"`
	RepliesCount    int       `json:"replies_count"`
	ReblogsCount    int       `json:"reblogs_count"`
	FavouritesCount int       `json:"favourites_count"`
	Account         struct {
		ID string `json:"id"`
	} `json:"account"`
}

type statusContext struct {
	Ancestors   []status `json:"ancestors"`
	Descendants []status `json:"descendants"`
}

// FetchPost looks up a single status. The conversation ID is left empty; it
// is resolved separately through the context endpoint.
func (c *Client) FetchPost(ctx context.Context, id string) (*models.Post, error) {
	const op = "mastodon fetch status"

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewFetchError(models.FetchErrorNotFound, op, models.ErrInvalidPostID)
	}

	var st status
	if err := c.http.GetJSON(ctx, op, "/api/v1/statuses/"+url.PathEscape(id), nil, &st); err != nil {
		return nil, err
	}
	if st.ID == "" {
		return nil, models.NewFetchError(models.FetchErrorDecode, op, errors.New("status has no id"))
	}
	post := st.toPost("")
	return &post, nil
}

// ResolveConversationID returns the ID of the thread root: the oldest
// ancestor, or the status itself when it is not a reply.
func (c *Client) ResolveConversationID(ctx context.Context, postID string) (string, error) {
	sc, err := c.context(ctx, "mastodon resolve conversation", postID)
	if err != nil {
		return "", err
	}
	if len(sc.Ancestors) == 0 {
		return strings.TrimSpace(postID), nil
	}
	return sc.Ancestors[0].ID, nil
}

// SearchConversation returns the next page of descendants of the thread root,
// ordered by ID. Continuation is the last ID of the previous page. StartTime
// is ignored: the context endpoint has no retention window.
func (c *Client) SearchConversation(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error) {
	const op = "mastodon search conversation"

	sc, err := c.context(ctx, op, q.ConversationID)
	if err != nil {
		return nil, err
	}

	descendants := sc.Descendants
	sort.SliceStable(descendants, func(i, j int) bool {
		return compareIDs(descendants[i].ID, descendants[j].ID) < 0
	})

	cursor := q.Continuation
	if cursor == "" {
		cursor = q.SinceID
	}
	limit := q.MaxResults
	if limit <= 0 {
		limit = defaultPageSize
	}

	page := &models.SearchPage{}
	remaining := 0
	for i := range descendants {
		st := &descendants[i]
		if cursor != "" && compareIDs(st.ID, cursor) <= 0 {
			continue
		}
		if len(page.Posts) == limit {
			remaining++
			break
		}
		page.Posts = append(page.Posts, st.toPost(q.ConversationID))
	}
	page.ResultCount = len(page.Posts)
	if remaining > 0 && len(page.Posts) > 0 {
		page.Continuation = page.Posts[len(page.Posts)-1].ID
	}
	return page, nil
}

func (c *Client) context(ctx context.Context, op, id string) (*statusContext, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewFetchError(models.FetchErrorNotFound, op, models.ErrInvalidPostID)
	}
	var sc statusContext
	if err := c.http.GetJSON(ctx, op, "/api/v1/statuses/"+url.PathEscape(id)+"/context", nil, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (s *status) toPost(conversationID string) models.Post {
	post := models.Post{
		ID:             s.ID,
		Platform:       models.PlatformMastodon,
		AuthorID:       s.Account.ID,
		Text:           plainText(s.Content),
		ConversationID: conversationID,
		CreatedAt:      s.CreatedAt,
		ReplyCount:     s.RepliesCount,
		RepostCount:    s.ReblogsCount,
		LikeCount:      s.FavouritesCount,
	}
	if s.InReplyToID != nil {
		post.ReplyToID = *s.InReplyToID
	}
	return post
}

// plainText flattens status HTML. Paragraphs and line breaks become newlines.
func plainText(content string) string {
	if !strings.Contains(content, "<") {
		return html.UnescapeString(content)
	}

	var b strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(content))
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(b.String())
		case html.TextToken:
			b.Write(tokenizer.Text())
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if string(name) == "p" {
				b.WriteString("\n\n")
			}
		}
	}
}

// compareIDs orders Mastodon snowflake IDs numerically.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}
