package thread

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tOgg1/threadline/internal/models"
)

func TestReplyStateLocalChainReachesNoMore(t *testing.T) {
	grand := post("1", "", 3*time.Hour)
	parent := post("2", "1", 2*time.Hour)
	focal := post("3", "2", time.Hour)

	s, effects := NewReplyState().Apply(ReplyStart{})
	require.Equal(t, ReplyPrepare, s.Phase)
	require.Equal(t, []Effect{WalkAncestors{Seq: 1}}, effects)

	walk := Walk(context.Background(), memoryLookup(grand, parent), &focal, 0)
	s, effects = s.Apply(ReplyWalked{Seq: 1, Result: walk})

	require.Equal(t, ReplyNoMore, s.Phase)
	require.Empty(t, effects, "no remote call for a fully local chain")
	require.Len(t, s.Nodes, 2)
	require.False(t, s.HasMore())
	require.Equal(t, []models.Item{models.ReplyItem("1"), models.ReplyItem("2")}, s.Items())
}

func TestReplyStateFetchesMissingAncestor(t *testing.T) {
	parent := post("2", "1", 2*time.Hour)
	focal := post("3", "2", time.Hour)
	grand := post("1", "0", 3*time.Hour)

	s, _ := NewReplyState().Apply(ReplyStart{})
	walk := Walk(context.Background(), memoryLookup(parent), &focal, 0)
	s, effects := s.Apply(ReplyWalked{Seq: s.Seq, Result: walk})

	require.Equal(t, ReplyLoading, s.Phase)
	require.Equal(t, []Effect{FetchAncestor{Seq: 2, PostID: "1"}}, effects)
	require.Equal(t, []models.Item{models.ReplyItem("2")}, s.Items())

	s, effects = s.Apply(ReplyFetched{Seq: 2, Post: &grand})
	require.Equal(t, ReplyIdle, s.Phase, "fetched ancestor still has a parent")
	require.Empty(t, effects)
	require.Len(t, s.Nodes, 2)
	require.Equal(t, models.ReplyStatusSuccess, s.Nodes[1].Status)
	require.Equal(t, []models.Item{models.ReplyItem("1"), models.ReplyItem("2")}, s.Items())

	s, effects = s.Apply(ReplyLoadMore{})
	require.Equal(t, ReplyPrepare, s.Phase)
	require.Equal(t, []Effect{WalkAncestors{Seq: 3}}, effects)
}

func TestReplyStateFetchedRootEndsChain(t *testing.T) {
	focal := post("2", "1", time.Hour)
	root := post("1", "", 2*time.Hour)

	s, _ := NewReplyState().Apply(ReplyStart{})
	s, _ = s.Apply(ReplyWalked{Seq: s.Seq, Result: Walk(context.Background(), nil, &focal, 0)})
	s, _ = s.Apply(ReplyFetched{Seq: s.Seq, Post: &root})

	require.Equal(t, ReplyNoMore, s.Phase)
	require.Equal(t, []models.Item{models.ReplyItem("1")}, s.Items())
}

func TestReplyStateFailureIsRetriable(t *testing.T) {
	focal := post("2", "1", time.Hour)
	fetchErr := models.NewFetchError(models.FetchErrorRateLimited, "fetch post", nil)

	s, _ := NewReplyState().Apply(ReplyStart{})
	s, _ = s.Apply(ReplyWalked{Seq: s.Seq, Result: Walk(context.Background(), nil, &focal, 0)})
	s, effects := s.Apply(ReplyFetchFailed{Seq: s.Seq, Err: fetchErr})

	require.Equal(t, ReplyFail, s.Phase)
	require.Empty(t, effects, "failures never retry on their own")
	require.ErrorIs(t, s.Err, models.ErrRateLimited)
	require.Len(t, s.Nodes, 1)
	require.Equal(t, models.ReplyStatusFail, s.Nodes[0].Status)
	require.True(t, s.HasMore())
	require.Empty(t, s.Items())

	s, effects = s.Apply(ReplyLoadMore{})
	require.Equal(t, ReplyLoading, s.Phase)
	require.Equal(t, []Effect{FetchAncestor{Seq: s.Seq, PostID: "1"}}, effects)
	require.Len(t, s.Nodes, 1)
	require.Equal(t, models.ReplyStatusNotDetermined, s.Nodes[0].Status)
}

func TestReplyStateIgnoresUndefinedAndStaleEvents(t *testing.T) {
	focal := post("2", "1", time.Hour)
	root := post("1", "", 2*time.Hour)

	initial := NewReplyState()
	s, effects := initial.Apply(ReplyLoadMore{})
	require.Equal(t, initial, s)
	require.Empty(t, effects)

	s, _ = s.Apply(ReplyStart{})
	again, effects := s.Apply(ReplyStart{})
	require.Equal(t, s, again)
	require.Empty(t, effects)

	s, _ = s.Apply(ReplyWalked{Seq: s.Seq, Result: Walk(context.Background(), nil, &focal, 0)})
	require.Equal(t, ReplyLoading, s.Phase)

	loading, effects := s.Apply(ReplyLoadMore{})
	require.Equal(t, s, loading, "no second request while loading")
	require.Empty(t, effects)

	stale, _ := s.Apply(ReplyFetched{Seq: s.Seq - 1, Post: &root})
	require.Equal(t, ReplyLoading, stale.Phase)
}

func TestReplyStateApplyDoesNotAliasNodes(t *testing.T) {
	parent := post("2", "1", 2*time.Hour)
	focal := post("3", "2", time.Hour)
	grand := post("1", "", 3*time.Hour)

	s, _ := NewReplyState().Apply(ReplyStart{})
	s, _ = s.Apply(ReplyWalked{Seq: s.Seq, Result: Walk(context.Background(), memoryLookup(parent), &focal, 0)})
	before := s.Nodes

	next, _ := s.Apply(ReplyFetched{Seq: s.Seq, Post: &grand})
	require.Equal(t, models.ReplyStatusNotDetermined, before[1].Status)
	require.Equal(t, models.ReplyStatusSuccess, next.Nodes[1].Status)
}
