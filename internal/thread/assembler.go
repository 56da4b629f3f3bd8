package thread

import (
	"github.com/tOgg1/threadline/internal/models"
)

// Snapshot is everything the assembler reads. Callers copy it out of the two
// machines; Assemble has no side effects and may run redundantly.
type Snapshot struct {
	RootID string
	Reply  ReplyState
	Conv   ConversationState
}

// PostIDs returns every post ID the snapshot can emit.
func (s Snapshot) PostIDs() []string {
	ids := make([]string, 0, 1+len(s.Reply.Nodes)+len(s.Conv.Leaves))
	ids = append(ids, s.RootID)
	for _, node := range s.Reply.Nodes {
		if node.IsResolved() {
			ids = append(ids, node.PostID)
		}
	}
	for _, leaf := range s.Conv.Leaves {
		ids = append(ids, leaf.PostID)
	}
	return ids
}

// Assemble builds
//
//	[TopLoader] + Reply items + Root + Leaf items + [BottomLoader]
//
// dropping every item whose post is in deleted. A tier-0 leaf whose tier-1
// reply is deleted is emitted with HasReplyAttached=false; a tier-1 leaf
// whose tier-0 source is deleted goes with it. Loaders depend only on the
// machine phases.
func Assemble(snap Snapshot, deleted map[string]bool) []models.Item {
	replies := snap.Reply.Items()
	items := make([]models.Item, 0, len(replies)+len(snap.Conv.Leaves)+3)

	if snap.Reply.HasMore() {
		items = append(items, models.TopLoaderItem())
	}
	for _, item := range replies {
		if !deleted[item.PostID] {
			items = append(items, item)
		}
	}
	if snap.RootID != "" && !deleted[snap.RootID] {
		items = append(items, models.RootItem(snap.RootID))
	}
	items = append(items, filterLeaves(snap.Conv.Leaves, deleted)...)
	if snap.Conv.HasMore() {
		items = append(items, models.BottomLoaderItem())
	}
	return items
}

func filterLeaves(leaves []models.Item, deleted map[string]bool) []models.Item {
	out := make([]models.Item, 0, len(leaves))
	for i := 0; i < len(leaves); i++ {
		leaf := leaves[i]
		if leaf.Tier() != models.TierReply {
			// Tier-1 leaves are consumed together with their source below.
			continue
		}
		if deleted[leaf.PostID] {
			continue
		}

		var child *models.Item
		if i+1 < len(leaves) && leaves[i+1].Tier() == models.TierSubReply &&
			leaves[i+1].Leaf.SourcePostID == leaf.PostID {
			child = &leaves[i+1]
		}
		if child != nil && deleted[child.PostID] {
			child = nil
		}
		if child == nil {
			if leaf.Leaf.HasReplyAttached {
				leaf = leaf.WithReplyAttached(false)
			}
			out = append(out, leaf)
			continue
		}
		out = append(out, leaf, *child)
	}
	return out
}
