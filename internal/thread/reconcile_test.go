package thread

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/models"
)

func TestReconcileKeepsRootAnchored(t *testing.T) {
	old := []models.Item{
		models.TopLoaderItem(),
		models.RootItem("3"),
		models.BottomLoaderItem(),
	}
	next := []models.Item{
		models.TopLoaderItem(),
		models.ReplyItem("1"),
		models.ReplyItem("2"),
		models.RootItem("3"),
		models.LeafItem("11", "11", models.TierReply, false),
		models.BottomLoaderItem(),
	}

	anchor, ok := Reconcile(old, next)
	require.True(t, ok)
	require.Equal(t, models.RootItem("3"), anchor.Item)
	require.Equal(t, 1, anchor.OldIndex)
	require.Equal(t, 3, anchor.NewIndex)
	require.Equal(t, 2, anchor.Shift())
}

func TestReconcileMatchesChangedAttributes(t *testing.T) {
	old := []models.Item{models.LeafItem("11", "11", models.TierReply, false)}
	next := []models.Item{
		models.LeafItem("11", "11", models.TierReply, true),
		models.LeafItem("12", "11", models.TierSubReply, false),
	}

	anchor, ok := Reconcile(old, next)
	require.True(t, ok)
	require.True(t, anchor.Item.Leaf.HasReplyAttached, "anchor carries the new value")
	require.Equal(t, 0, anchor.Shift())
}

func TestReconcileNoCommonItem(t *testing.T) {
	tests := []struct {
		name string
		old  []models.Item
		next []models.Item
	}{
		{name: "empty old", next: []models.Item{models.RootItem("1")}},
		{name: "empty next", old: []models.Item{models.RootItem("1")}},
		{
			name: "loaders only",
			old:  []models.Item{models.TopLoaderItem(), models.BottomLoaderItem()},
			next: []models.Item{models.TopLoaderItem(), models.RootItem("1"), models.BottomLoaderItem()},
		},
		{
			name: "deleted root",
			old:  []models.Item{models.RootItem("1")},
			next: []models.Item{models.ReplyItem("0")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Reconcile(tt.old, tt.next)
			require.False(t, ok)
		})
	}
}

func TestReconcileFromFirstVisible(t *testing.T) {
	old := []models.Item{
		models.ReplyItem("1"),
		models.RootItem("3"),
		models.LeafItem("11", "11", models.TierReply, false),
		models.LeafItem("12", "12", models.TierReply, false),
	}
	next := []models.Item{
		models.ReplyItem("0"),
		models.ReplyItem("1"),
		models.RootItem("3"),
		models.LeafItem("12", "12", models.TierReply, false),
	}

	anchor, ok := ReconcileFrom(old, next, 2)
	require.True(t, ok)
	require.Equal(t, "12", anchor.Item.PostID)
	require.Equal(t, 3, anchor.OldIndex)
	require.Equal(t, 3, anchor.NewIndex)

	// Nothing at or after the visible row survives: fall back upward.
	anchor, ok = ReconcileFrom(old[:3], next[:3], 2)
	require.True(t, ok)
	require.Equal(t, "3", anchor.Item.PostID)

	anchor, ok = ReconcileFrom(old, next, 99)
	require.True(t, ok)
	require.Equal(t, "12", anchor.Item.PostID)
}
