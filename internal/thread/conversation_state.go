package thread

import (
	"time"

	"github.com/tOgg1/threadline/internal/config"
	"github.com/tOgg1/threadline/internal/models"
)

// ConversationPhase is the state tag of the descendant machine.
type ConversationPhase string

const (
	ConversationInitial     ConversationPhase = "initial"
	ConversationPrepare     ConversationPhase = "prepare"
	ConversationPrepareFail ConversationPhase = "prepare_fail"
	ConversationIdle        ConversationPhase = "idle"
	ConversationLoading     ConversationPhase = "loading"
	ConversationFail        ConversationPhase = "fail"
	ConversationNoMore      ConversationPhase = "no_more"
)

// ConversationPolicy holds the paging and retry limits.
type ConversationPolicy struct {
	SearchWindow      time.Duration
	WindowMargin      time.Duration
	MaxPrepareRetries int
	PrepareRetryDelay time.Duration
	PageSize          int
}

// PolicyFromConfig converts engine configuration.
func PolicyFromConfig(cfg config.EngineConfig) ConversationPolicy {
	return ConversationPolicy{
		SearchWindow:      cfg.SearchWindow,
		WindowMargin:      cfg.WindowMargin,
		MaxPrepareRetries: cfg.MaxPrepareRetries,
		PrepareRetryDelay: cfg.PrepareRetryDelay,
		PageSize:          cfg.PageSize,
	}
}

// DefaultConversationPolicy returns the policy for the default engine config.
func DefaultConversationPolicy() ConversationPolicy {
	return PolicyFromConfig(config.DefaultEngineConfig())
}

// ConversationEvent drives ConversationState.
type ConversationEvent interface {
	isConversationEvent()
}

// ConversationStart leaves Initial and prepares the conversation meta.
type ConversationStart struct{}

// ConversationLoadMore is the externally triggered page request. Now anchors
// the search window.
type ConversationLoadMore struct {
	Now time.Time
}

// ConversationResolved delivers the remotely resolved conversation ID.
type ConversationResolved struct {
	Seq            uint64
	ConversationID string
}

// ConversationResolveFailed delivers a failed preparation.
type ConversationResolveFailed struct {
	Seq uint64
	Err error
}

// RetryPrepare fires after a ScheduleRetry delay.
type RetryPrepare struct {
	Seq uint64
}

// PageLoaded delivers a search page.
type PageLoaded struct {
	Seq  uint64
	Page *models.SearchPage
}

// PageFailed delivers a failed search request.
type PageFailed struct {
	Seq uint64
	Err error
}

func (ConversationStart) isConversationEvent()         {}
func (ConversationLoadMore) isConversationEvent()      {}
func (ConversationResolved) isConversationEvent()      {}
func (ConversationResolveFailed) isConversationEvent() {}
func (RetryPrepare) isConversationEvent()              {}
func (PageLoaded) isConversationEvent()                {}
func (PageFailed) isConversationEvent()                {}

// ConversationState is the descendant machine. It is a value; Apply never
// modifies the receiver or the slices it shares.
type ConversationState struct {
	Phase  ConversationPhase
	Policy ConversationPolicy

	Focal models.Post
	Meta  *models.ConversationMeta

	// Failures counts consecutive preparation failures.
	Failures int

	// Continuation is the token of the last non-empty page.
	Continuation string

	// Corpus is every post seen so far, deduplicated, in arrival order.
	Corpus []models.Post

	// Leaves is the merged leaf sequence.
	Leaves []models.Item

	Pages int
	Seq   uint64
	Err   error
}

// NewConversationState returns a machine in Initial for focal.
func NewConversationState(focal models.Post, policy ConversationPolicy) ConversationState {
	return ConversationState{
		Phase:  ConversationInitial,
		Policy: policy,
		Focal:  focal,
	}
}

// Apply returns the next state and the effects to run. Undefined events and
// stale results leave the state unchanged.
func (s ConversationState) Apply(event ConversationEvent) (ConversationState, []Effect) {
	switch ev := event.(type) {
	case ConversationStart:
		if s.Phase != ConversationInitial {
			return s, nil
		}
		if meta := models.NewConversationMeta(&s.Focal, ""); meta != nil {
			next := s
			next.Phase = ConversationIdle
			next.Meta = meta
			return next, nil
		}
		return s.prepare()

	case RetryPrepare:
		if s.Phase != ConversationPrepareFail || ev.Seq != s.Seq {
			return s, nil
		}
		return s.prepare()

	case ConversationResolved:
		if s.Phase != ConversationPrepare || ev.Seq != s.Seq {
			return s, nil
		}
		meta := models.NewConversationMeta(&s.Focal, ev.ConversationID)
		if meta == nil {
			return s.prepareFailed(models.NewFetchError(models.FetchErrorNotFound, "resolve conversation", nil))
		}
		next := s
		next.Phase = ConversationIdle
		next.Meta = meta
		next.Failures = 0
		next.Err = nil
		return next, nil

	case ConversationResolveFailed:
		if s.Phase != ConversationPrepare || ev.Seq != s.Seq {
			return s, nil
		}
		return s.prepareFailed(ev.Err)

	case ConversationLoadMore:
		switch s.Phase {
		case ConversationIdle:
		case ConversationFail:
			if s.Meta == nil {
				return s, nil
			}
		default:
			return s, nil
		}
		next := s
		next.Phase = ConversationLoading
		next.Seq++
		next.Err = nil
		query := BuildQuery(s.Meta, s.Continuation, ev.Now, s.Policy)
		return next, []Effect{FetchPage{Seq: next.Seq, Query: query}}

	case PageLoaded:
		if s.Phase != ConversationLoading || ev.Seq != s.Seq {
			return s, nil
		}
		next := s
		next.Pages++
		if ev.Page.Empty() {
			next.Phase = ConversationNoMore
			return next, nil
		}
		next.Corpus = AppendCorpus(s.Corpus, ev.Page.Posts, s.Focal.ID)
		next.Leaves = Merge(s.Leaves, next.Corpus, s.Focal.ID)
		next.Continuation = ev.Page.Continuation
		if ev.Page.Continuation != "" {
			next.Phase = ConversationIdle
		} else {
			next.Phase = ConversationNoMore
		}
		return next, nil

	case PageFailed:
		if s.Phase != ConversationLoading || ev.Seq != s.Seq {
			return s, nil
		}
		next := s
		next.Phase = ConversationFail
		next.Err = ev.Err
		return next, nil
	}
	return s, nil
}

func (s ConversationState) prepare() (ConversationState, []Effect) {
	next := s
	next.Phase = ConversationPrepare
	next.Seq++
	return next, []Effect{ResolveConversation{Seq: next.Seq, PostID: s.Focal.ID}}
}

// prepareFailed retries up to MaxPrepareRetries times, then freezes in Fail
// without meta, which no later event can leave.
func (s ConversationState) prepareFailed(err error) (ConversationState, []Effect) {
	next := s
	next.Failures++
	next.Err = err
	if next.Failures > s.Policy.MaxPrepareRetries {
		next.Phase = ConversationFail
		return next, nil
	}
	next.Phase = ConversationPrepareFail
	return next, []Effect{ScheduleRetry{
		Seq:     next.Seq,
		Attempt: next.Failures,
		Delay:   s.Policy.PrepareRetryDelay,
	}}
}

// HasMore reports whether the bottom loader should be shown.
func (s ConversationState) HasMore() bool {
	switch s.Phase {
	case ConversationPrepare, ConversationIdle, ConversationLoading:
		return true
	}
	return false
}

// Terminal reports whether no event can make further progress.
func (s ConversationState) Terminal() bool {
	return s.Phase == ConversationNoMore || (s.Phase == ConversationFail && s.Meta == nil)
}
