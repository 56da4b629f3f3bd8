package models

import "fmt"

// ItemKind discriminates presentation items.
type ItemKind string

const (
	ItemKindRoot         ItemKind = "root"
	ItemKindReply        ItemKind = "reply"
	ItemKindLeaf         ItemKind = "leaf"
	ItemKindTopLoader    ItemKind = "top_loader"
	ItemKindBottomLoader ItemKind = "bottom_loader"
)

// Leaf tiers.
const (
	TierReply    = 0 // direct reply to the focal post
	TierSubReply = 1 // most recent reply to a tier-0 post
)

// LeafInfo carries the attributes of a conversation leaf.
type LeafInfo struct {
	// SourcePostID is the tier-0 post this leaf belongs to.
	SourcePostID     string `json:"source_post_id"`
	Tier             int    `json:"tier"`
	HasReplyAttached bool   `json:"has_reply_attached"`
}

// Item is one row of the presentation sequence. Items are values: a changed
// attribute is a new Item, never an in-place edit.
type Item struct {
	Kind   ItemKind  `json:"kind"`
	PostID string    `json:"post_id,omitempty"`
	Leaf   *LeafInfo `json:"leaf,omitempty"`
}

func RootItem(postID string) Item  { return Item{Kind: ItemKindRoot, PostID: postID} }
func ReplyItem(postID string) Item { return Item{Kind: ItemKindReply, PostID: postID} }
func TopLoaderItem() Item          { return Item{Kind: ItemKindTopLoader} }
func BottomLoaderItem() Item       { return Item{Kind: ItemKindBottomLoader} }

// LeafItem builds a conversation leaf.
func LeafItem(postID, sourcePostID string, tier int, hasReplyAttached bool) Item {
	return Item{
		Kind:   ItemKindLeaf,
		PostID: postID,
		Leaf: &LeafInfo{
			SourcePostID:     sourcePostID,
			Tier:             tier,
			HasReplyAttached: hasReplyAttached,
		},
	}
}

// IsLoader reports whether the item is a loading sentinel.
func (i Item) IsLoader() bool {
	return i.Kind == ItemKindTopLoader || i.Kind == ItemKindBottomLoader
}

// Tier returns the leaf tier, or -1 for non-leaf items.
func (i Item) Tier() int {
	if i.Kind != ItemKindLeaf || i.Leaf == nil {
		return -1
	}
	return i.Leaf.Tier
}

// Key identifies an item across rebuilds independent of its attributes.
func (i Item) Key() string {
	if i.IsLoader() {
		return string(i.Kind)
	}
	return fmt.Sprintf("%s:%s", i.Kind, i.PostID)
}

// Equal compares kind, post and leaf attributes.
func (i Item) Equal(other Item) bool {
	if i.Kind != other.Kind || i.PostID != other.PostID {
		return false
	}
	if i.Leaf == nil || other.Leaf == nil {
		return i.Leaf == nil && other.Leaf == nil
	}
	return *i.Leaf == *other.Leaf
}

// WithReplyAttached returns a copy of a leaf item with the flag replaced.
func (i Item) WithReplyAttached(attached bool) Item {
	if i.Leaf == nil {
		return i
	}
	leaf := *i.Leaf
	leaf.HasReplyAttached = attached
	i.Leaf = &leaf
	return i
}

func (i Item) String() string {
	switch i.Kind {
	case ItemKindLeaf:
		if i.Leaf != nil {
			return fmt.Sprintf("leaf(%s, tier=%d)", i.PostID, i.Leaf.Tier)
		}
		return fmt.Sprintf("leaf(%s)", i.PostID)
	case ItemKindTopLoader, ItemKindBottomLoader:
		return string(i.Kind)
	default:
		return fmt.Sprintf("%s(%s)", i.Kind, i.PostID)
	}
}
