// Package twitter binds the reconstruction engine to the v2 recent search API,
// which only reaches back seven days and pages with next_token.
package twitter

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tOgg1/threadline/internal/models"
	"github.com/tOgg1/threadline/internal/platform/httpx"
)

// DefaultBaseURL is the public API root.
const DefaultBaseURL = "https://api.twitter.com"

const (
	tweetFields   = "author_id,conversation_id,created_at,public_metrics,referenced_tweets"
	minMaxResults = 10
	maxMaxResults = 100
)

// Client implements thread.Platform.
type Client struct {
	http *httpx.Client
}

// New creates a client. An empty BaseURL uses DefaultBaseURL.
func New(cfg httpx.Config) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.Platform = string(models.PlatformTwitter)
	return &Client{http: httpx.New(cfg)}
}

type tweet struct {
	ID             string    `json:"id"`
	Text           string    `json:"text"`
	AuthorID       string    `json:"author_id"`
	ConversationID string    `json:"conversation_id"`
	CreatedAt      time.Time `json:"created_at"`
	PublicMetrics  struct {
		ReplyCount   int `json:"reply_count"`
		RetweetCount int `json:"retweet_count"`
		LikeCount    int `json:"like_count"`
	} `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type apiError struct {
	Title      string `json:"title"`
	Detail     string `json:"detail"`
	Type       string `json:"type"`
	ResourceID string `json:"resource_id"`
}

type tweetResponse struct {
	Data   *tweet     `json:"data"`
	Errors []apiError `json:"errors"`
}

type searchResponse struct {
	Data []tweet `json:"data"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
	Errors []apiError `json:"errors"`
}

// FetchPost looks up a single tweet.
func (c *Client) FetchPost(ctx context.Context, id string) (*models.Post, error) {
	const op = "twitter fetch tweet"

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, models.NewFetchError(models.FetchErrorNotFound, op, models.ErrInvalidPostID)
	}

	var resp tweetResponse
	query := url.Values{"tweet.fields": {tweetFields}}
	if err := c.http.GetJSON(ctx, op, "/2/tweets/"+url.PathEscape(id), query, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		return nil, responseError(op, resp.Errors)
	}
	post := resp.Data.toPost()
	return &post, nil
}

// ResolveConversationID returns the conversation_id of a tweet.
func (c *Client) ResolveConversationID(ctx context.Context, postID string) (string, error) {
	post, err := c.FetchPost(ctx, postID)
	if err != nil {
		return "", err
	}
	if post.ConversationID == "" {
		return "", models.NewFetchError(models.FetchErrorNotFound, "twitter resolve conversation", errors.New("tweet has no conversation_id"))
	}
	return post.ConversationID, nil
}

// SearchConversation fetches one page of the conversation from recent search.
func (c *Client) SearchConversation(ctx context.Context, q models.SearchQuery) (*models.SearchPage, error) {
	const op = "twitter search conversation"

	if strings.TrimSpace(q.ConversationID) == "" {
		return nil, models.NewFetchError(models.FetchErrorNotFound, op, errors.New("conversation id is required"))
	}

	var resp searchResponse
	if err := c.http.GetJSON(ctx, op, "/2/tweets/search/recent", searchParams(q), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		return nil, responseError(op, resp.Errors)
	}

	page := &models.SearchPage{
		Posts:        make([]models.Post, 0, len(resp.Data)),
		Continuation: resp.Meta.NextToken,
		ResultCount:  resp.Meta.ResultCount,
	}
	for i := range resp.Data {
		page.Posts = append(page.Posts, resp.Data[i].toPost())
	}
	return page, nil
}

func searchParams(q models.SearchQuery) url.Values {
	params := url.Values{}
	params.Set("query", "conversation_id:"+q.ConversationID)
	params.Set("tweet.fields", tweetFields)

	maxResults := q.MaxResults
	if maxResults < minMaxResults {
		maxResults = minMaxResults
	}
	if maxResults > maxMaxResults {
		maxResults = maxMaxResults
	}
	params.Set("max_results", strconv.Itoa(maxResults))

	if q.StartTime != nil {
		params.Set("start_time", q.StartTime.UTC().Format(time.RFC3339))
	} else if q.SinceID != "" {
		params.Set("since_id", q.SinceID)
	}
	if q.Continuation != "" {
		params.Set("next_token", q.Continuation)
	}
	return params
}

func (t *tweet) toPost() models.Post {
	post := models.Post{
		ID:             t.ID,
		Platform:       models.PlatformTwitter,
		AuthorID:       t.AuthorID,
		Text:           t.Text,
		ConversationID: t.ConversationID,
		CreatedAt:      t.CreatedAt,
		ReplyCount:     t.PublicMetrics.ReplyCount,
		RepostCount:    t.PublicMetrics.RetweetCount,
		LikeCount:      t.PublicMetrics.LikeCount,
	}
	for _, ref := range t.ReferencedTweets {
		if ref.Type == "replied_to" {
			post.ReplyToID = ref.ID
			break
		}
	}
	return post
}

// responseError classifies the errors array of a 200 response.
func responseError(op string, apiErrors []apiError) error {
	if len(apiErrors) == 0 {
		return models.NewFetchError(models.FetchErrorDecode, op, errors.New("response has no data"))
	}
	first := apiErrors[0]
	cause := errors.New(strings.TrimSpace(first.Title + ": " + first.Detail))
	switch {
	case first.Title == "Not Found Error", strings.HasSuffix(first.Type, "/resource-not-found"):
		return models.NewFetchError(models.FetchErrorNotFound, op, cause)
	case strings.Contains(first.Type, "usage-capped"), strings.Contains(first.Title, "Too Many Requests"):
		return models.NewFetchError(models.FetchErrorRateLimited, op, cause)
	default:
		return models.NewFetchError(models.FetchErrorNetwork, op, cause)
	}
}
