package thread

import (
	"context"
	"strings"

	"github.com/tOgg1/threadline/internal/models"
)

// WalkResult is the outcome of one local ancestor walk.
type WalkResult struct {
	// Nodes are ordered nearest parent first. When Unresolved is set the last
	// node is its NotDetermined placeholder.
	Nodes []models.ReplyNode

	// Unresolved is the ID of the first ancestor not known locally.
	Unresolved string

	// Truncated is set when the walk stopped on a cycle or the depth limit.
	Truncated bool
}

// Resolved returns the Success nodes only.
func (r WalkResult) Resolved() []models.ReplyNode {
	out := make([]models.ReplyNode, 0, len(r.Nodes))
	for _, node := range r.Nodes {
		if node.IsResolved() {
			out = append(out, node)
		}
	}
	return out
}

// Walk follows ReplyToID upward from focal while the parent is known
// to lookup. maxDepth <= 0 means unlimited.
func Walk(ctx context.Context, lookup PostLookup, focal *models.Post, maxDepth int) WalkResult {
	var result WalkResult
	if focal == nil {
		return result
	}

	seen := map[string]struct{}{focal.ID: {}}
	current := focal
	for {
		parentID := strings.TrimSpace(current.ReplyToID)
		if parentID == "" {
			return result
		}
		if _, ok := seen[parentID]; ok {
			result.Truncated = true
			return result
		}
		if maxDepth > 0 && len(result.Nodes) >= maxDepth {
			result.Truncated = true
			return result
		}
		seen[parentID] = struct{}{}

		parent := lookupLocal(ctx, lookup, parentID)
		if parent == nil {
			result.Unresolved = parentID
			result.Nodes = append(result.Nodes, models.UnresolvedReply(parentID))
			return result
		}
		result.Nodes = append(result.Nodes, models.ResolvedReply(parent))
		current = parent
	}
}

func lookupLocal(ctx context.Context, lookup PostLookup, id string) *models.Post {
	if lookup == nil {
		return nil
	}
	post, err := lookup.LookupPost(ctx, id)
	if err != nil || post == nil {
		return nil
	}
	return post
}
