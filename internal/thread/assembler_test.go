package thread

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/models"
)

func assemblerSnapshot(replyPhase ReplyPhase, convPhase ConversationPhase) Snapshot {
	grand := post("1", "", 3*time.Hour)
	parent := post("2", "1", 2*time.Hour)
	return Snapshot{
		RootID: "3",
		Reply: ReplyState{
			Phase: replyPhase,
			Nodes: []models.ReplyNode{models.ResolvedReply(&parent), models.ResolvedReply(&grand)},
		},
		Conv: ConversationState{
			Phase: convPhase,
			Leaves: []models.Item{
				models.LeafItem("11", "11", models.TierReply, true),
				models.LeafItem("12", "11", models.TierSubReply, false),
				models.LeafItem("13", "13", models.TierReply, false),
			},
		},
	}
}

func TestAssembleOrder(t *testing.T) {
	items := Assemble(assemblerSnapshot(ReplyIdle, ConversationIdle), nil)

	require.Equal(t, []string{
		"top_loader",
		"reply:1",
		"reply:2",
		"root:3",
		"leaf:11",
		"leaf:12",
		"leaf:13",
		"bottom_loader",
	}, itemKeys(items))
}

func TestAssembleLoaders(t *testing.T) {
	tests := []struct {
		reply  ReplyPhase
		conv   ConversationPhase
		top    bool
		bottom bool
	}{
		{reply: ReplyInitial, conv: ConversationInitial, top: true},
		{reply: ReplyPrepare, conv: ConversationPrepare, top: true, bottom: true},
		{reply: ReplyLoading, conv: ConversationLoading, top: true, bottom: true},
		{reply: ReplyFail, conv: ConversationPrepareFail, top: true},
		{reply: ReplyNoMore, conv: ConversationFail},
		{reply: ReplyNoMore, conv: ConversationNoMore},
	}

	for _, tt := range tests {
		t.Run(string(tt.reply)+"/"+string(tt.conv), func(t *testing.T) {
			items := Assemble(assemblerSnapshot(tt.reply, tt.conv), nil)
			require.Equal(t, tt.top, items[0].Kind == models.ItemKindTopLoader)
			require.Equal(t, tt.bottom, items[len(items)-1].Kind == models.ItemKindBottomLoader)
		})
	}
}

func TestAssembleExcludesDeletedPosts(t *testing.T) {
	snap := assemblerSnapshot(ReplyIdle, ConversationIdle)
	before := Assemble(snap, nil)

	after := Assemble(snap, map[string]bool{"2": true, "13": true})

	require.Equal(t, []string{
		"top_loader",
		"reply:1",
		"root:3",
		"leaf:11",
		"leaf:12",
		"bottom_loader",
	}, itemKeys(after))
	require.Equal(t, before[0], after[0])
	require.Equal(t, before[len(before)-1], after[len(after)-1])
}

func TestAssembleDeletedSubReplyDetaches(t *testing.T) {
	items := Assemble(assemblerSnapshot(ReplyNoMore, ConversationNoMore), map[string]bool{"12": true})

	require.Equal(t, []string{"reply:1", "reply:2", "root:3", "leaf:11", "leaf:13"}, itemKeys(items))
	require.False(t, items[3].Leaf.HasReplyAttached)
}

func TestAssembleDeletedReplyTakesSubReply(t *testing.T) {
	items := Assemble(assemblerSnapshot(ReplyNoMore, ConversationNoMore), map[string]bool{"11": true})
	require.Equal(t, []string{"reply:1", "reply:2", "root:3", "leaf:13"}, itemKeys(items))
}

func TestAssembleSkipsUnresolvedReplies(t *testing.T) {
	snap := assemblerSnapshot(ReplyLoading, ConversationNoMore)
	snap.Reply.Nodes = append(snap.Reply.Nodes, models.UnresolvedReply("0"))

	items := Assemble(snap, nil)
	require.Equal(t, []string{"top_loader", "reply:1", "reply:2", "root:3"}, itemKeys(items)[:4])
}

func TestSnapshotPostIDs(t *testing.T) {
	ids := assemblerSnapshot(ReplyIdle, ConversationIdle).PostIDs()
	require.ElementsMatch(t, []string{"3", "2", "1", "11", "12", "13"}, ids)
}
