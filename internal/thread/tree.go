package thread

import (
	"strings"

	"github.com/tOgg1/threadline/internal/models"
)

// AppendCorpus adds a page of posts to the accumulated corpus. Posts are
// deduplicated by ID: a re-fetched post replaces its snapshot but keeps its
// first arrival position. The focal post is never part of the corpus.
func AppendCorpus(corpus []models.Post, page []models.Post, focalID string) []models.Post {
	out := make([]models.Post, 0, len(corpus)+len(page))
	index := make(map[string]int, len(corpus)+len(page))
	add := func(post models.Post) {
		id := strings.TrimSpace(post.ID)
		if id == "" || id == focalID {
			return
		}
		if i, ok := index[id]; ok {
			out[i] = post
			return
		}
		index[id] = len(out)
		out = append(out, post)
	}
	for _, post := range corpus {
		add(post)
	}
	for _, post := range page {
		add(post)
	}
	return out
}

// replyEdges maps reply_to_id to the direct replies in arrival order.
func replyEdges(corpus []models.Post) map[string][]*models.Post {
	edges := make(map[string][]*models.Post)
	seen := make(map[string]struct{}, len(corpus))
	for i := range corpus {
		post := &corpus[i]
		if post.ReplyToID == "" {
			continue
		}
		if _, ok := seen[post.ID]; ok {
			continue
		}
		seen[post.ID] = struct{}{}
		edges[post.ReplyToID] = append(edges[post.ReplyToID], post)
	}
	return edges
}

// BuildForest returns the two-tier forest under focalID: one node per direct
// reply in arrival order, each with at most one child, its latest reply.
func BuildForest(corpus []models.Post, focalID string) []*models.ConversationNode {
	edges := replyEdges(corpus)
	direct := edges[focalID]
	forest := make([]*models.ConversationNode, 0, len(direct))
	for _, post := range direct {
		forest = append(forest, forestNode(edges, post))
	}
	return forest
}

func forestNode(edges map[string][]*models.Post, post *models.Post) *models.ConversationNode {
	node := &models.ConversationNode{Post: post}
	if latest := latestReply(edges[post.ID]); latest != nil {
		node.Children = []*models.ConversationNode{{Post: latest}}
	}
	return node
}

// latestReply picks the reply with the latest CreatedAt, ties going to the
// larger ID.
func latestReply(replies []*models.Post) *models.Post {
	var best *models.Post
	for _, reply := range replies {
		if best == nil {
			best = reply
			continue
		}
		switch {
		case reply.CreatedAt.After(best.CreatedAt):
			best = reply
		case reply.CreatedAt.Equal(best.CreatedAt) && compareIDs(reply.ID, best.ID) > 0:
			best = reply
		}
	}
	return best
}

// compareIDs orders numeric snowflake-style IDs by value and falls back to
// lexical order for equal lengths.
func compareIDs(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// Merge rebuilds the leaf items for focalID from the full corpus.
//
// Tier-0 leaves already in existing keep their position; new direct replies
// are appended in arrival order. Every tier-0 leaf is followed by its latest
// reply as a tier-1 leaf, or carries HasReplyAttached=false when it has none.
// A tier-1 leaf is recomputed on every merge, so a newer reply replaces the
// older one. Merging the same corpus twice yields the same sequence.
func Merge(existing []models.Item, corpus []models.Post, focalID string) []models.Item {
	edges := replyEdges(corpus)

	order := make([]string, 0, len(existing)+len(edges[focalID]))
	known := make(map[string]struct{}, len(existing))
	for _, item := range existing {
		if item.Tier() != models.TierReply {
			continue
		}
		if _, ok := known[item.PostID]; ok {
			continue
		}
		known[item.PostID] = struct{}{}
		order = append(order, item.PostID)
	}
	for _, post := range edges[focalID] {
		if _, ok := known[post.ID]; ok {
			continue
		}
		known[post.ID] = struct{}{}
		order = append(order, post.ID)
	}

	byID := make(map[string]*models.Post, len(corpus))
	for i := range corpus {
		byID[corpus[i].ID] = &corpus[i]
	}

	out := make([]models.Item, 0, len(order)*2)
	emitted := make(map[string]struct{}, len(order)*2)
	for _, id := range order {
		if _, ok := emitted[id]; ok {
			continue
		}
		emitted[id] = struct{}{}

		post := byID[id]
		if post == nil {
			post = &models.Post{ID: id}
		}
		var child *models.Post
		if node := forestNode(edges, post); len(node.Children) > 0 {
			child = node.Children[0].Post
		}
		if child != nil {
			if _, ok := emitted[child.ID]; ok || isTierZero(known, child.ID) {
				child = nil
			}
		}
		if child == nil {
			out = append(out, models.LeafItem(id, id, models.TierReply, false))
			continue
		}
		emitted[child.ID] = struct{}{}
		out = append(out,
			models.LeafItem(id, id, models.TierReply, true),
			models.LeafItem(child.ID, id, models.TierSubReply, false),
		)
	}
	return out
}

func isTierZero(tierZero map[string]struct{}, id string) bool {
	_, ok := tierZero[id]
	return ok
}
