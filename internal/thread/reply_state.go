package thread

import (
	"github.com/tOgg1/threadline/internal/models"
)

// ReplyPhase is the state tag of the ancestor machine.
type ReplyPhase string

const (
	ReplyInitial ReplyPhase = "initial"
	ReplyPrepare ReplyPhase = "prepare"
	ReplyIdle    ReplyPhase = "idle"
	ReplyLoading ReplyPhase = "loading"
	ReplyFail    ReplyPhase = "fail"
	ReplyNoMore  ReplyPhase = "no_more"
)

// ReplyEvent drives ReplyState.
type ReplyEvent interface {
	isReplyEvent()
}

// ReplyStart leaves Initial and walks the local chain.
type ReplyStart struct{}

// ReplyLoadMore is the externally triggered transition. From Idle it walks
// again; from Fail it retries the ancestor fetch.
type ReplyLoadMore struct{}

// ReplyWalked delivers a local walk.
type ReplyWalked struct {
	Seq    uint64
	Result WalkResult
}

// ReplyFetched delivers a remotely resolved ancestor.
type ReplyFetched struct {
	Seq  uint64
	Post *models.Post
}

// ReplyFetchFailed delivers a failed ancestor lookup.
type ReplyFetchFailed struct {
	Seq uint64
	Err error
}

func (ReplyStart) isReplyEvent()       {}
func (ReplyLoadMore) isReplyEvent()    {}
func (ReplyWalked) isReplyEvent()      {}
func (ReplyFetched) isReplyEvent()     {}
func (ReplyFetchFailed) isReplyEvent() {}

// ReplyState is the ancestor chain machine. It is a value; Apply never
// modifies the receiver.
type ReplyState struct {
	Phase ReplyPhase

	// Nodes are ordered nearest parent first and replaced wholesale on each
	// step.
	Nodes []models.ReplyNode

	// Pending is the ancestor being fetched while Loading or after Fail.
	Pending string

	// Seq identifies the outstanding effect; stale results are dropped.
	Seq uint64

	Err error
}

// NewReplyState returns a machine in Initial.
func NewReplyState() ReplyState {
	return ReplyState{Phase: ReplyInitial}
}

// Apply returns the next state and the effects to run. Events that are not
// defined for the current phase, and results carrying a stale Seq, leave the
// state unchanged.
func (s ReplyState) Apply(event ReplyEvent) (ReplyState, []Effect) {
	switch ev := event.(type) {
	case ReplyStart:
		if s.Phase != ReplyInitial {
			return s, nil
		}
		return s.walk()

	case ReplyLoadMore:
		switch s.Phase {
		case ReplyIdle:
			return s.walk()
		case ReplyFail:
			if s.Pending == "" {
				return s, nil
			}
			return s.fetch(s.Pending, s.withPendingNode(models.UnresolvedReply(s.Pending)))
		}
		return s, nil

	case ReplyWalked:
		if s.Phase != ReplyPrepare || ev.Seq != s.Seq {
			return s, nil
		}
		nodes := cloneReplyNodes(ev.Result.Nodes)
		if ev.Result.Unresolved == "" {
			next := s
			next.Phase = ReplyNoMore
			next.Nodes = nodes
			next.Pending = ""
			next.Err = nil
			return next, nil
		}
		return s.fetch(ev.Result.Unresolved, nodes)

	case ReplyFetched:
		if s.Phase != ReplyLoading || ev.Seq != s.Seq || ev.Post == nil {
			return s, nil
		}
		next := s
		next.Nodes = s.withPendingNode(models.ResolvedReply(ev.Post))
		next.Pending = ""
		next.Err = nil
		if ev.Post.IsReply() {
			next.Phase = ReplyIdle
		} else {
			next.Phase = ReplyNoMore
		}
		return next, nil

	case ReplyFetchFailed:
		if s.Phase != ReplyLoading || ev.Seq != s.Seq {
			return s, nil
		}
		next := s
		next.Phase = ReplyFail
		next.Nodes = s.withPendingNode(models.FailedReply(s.Pending, ev.Err))
		next.Err = ev.Err
		return next, nil
	}
	return s, nil
}

func (s ReplyState) walk() (ReplyState, []Effect) {
	next := s
	next.Phase = ReplyPrepare
	next.Seq++
	next.Err = nil
	return next, []Effect{WalkAncestors{Seq: next.Seq}}
}

func (s ReplyState) fetch(postID string, nodes []models.ReplyNode) (ReplyState, []Effect) {
	next := s
	next.Phase = ReplyLoading
	next.Nodes = nodes
	next.Pending = postID
	next.Seq++
	next.Err = nil
	return next, []Effect{FetchAncestor{Seq: next.Seq, PostID: postID}}
}

// withPendingNode returns a copy of Nodes with the trailing pending node
// replaced by node.
func (s ReplyState) withPendingNode(node models.ReplyNode) []models.ReplyNode {
	nodes := cloneReplyNodes(s.Nodes)
	if n := len(nodes); n > 0 && nodes[n-1].PostID == node.PostID {
		nodes[n-1] = node
		return nodes
	}
	return append(nodes, node)
}

// HasMore reports whether the top loader should be shown.
func (s ReplyState) HasMore() bool {
	return s.Phase != ReplyNoMore
}

// Items projects the resolved nodes as Reply items, oldest ancestor first.
func (s ReplyState) Items() []models.Item {
	items := make([]models.Item, 0, len(s.Nodes))
	for i := len(s.Nodes) - 1; i >= 0; i-- {
		if s.Nodes[i].IsResolved() {
			items = append(items, models.ReplyItem(s.Nodes[i].PostID))
		}
	}
	return items
}

func cloneReplyNodes(nodes []models.ReplyNode) []models.ReplyNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]models.ReplyNode, len(nodes))
	copy(out, nodes)
	return out
}
