package thread

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tOgg1/threadline/internal/config"
	"github.com/tOgg1/threadline/internal/events"
	"github.com/tOgg1/threadline/internal/logging"
	"github.com/tOgg1/threadline/internal/models"
)

// Engine errors.
var (
	ErrNoPlatform     = errors.New("platform is required")
	ErrAlreadyStarted = errors.New("engine already started")
	ErrEngineClosed   = errors.New("engine closed")
)

// Update reasons.
const (
	ReasonReply        = "reply"
	ReasonConversation = "conversation"
	ReasonDeleted      = "post_deleted"
	ReasonRestored     = "post_restored"
)

// Update is the payload of a thread.updated event.
type Update struct {
	Items  []models.Item `json:"items"`
	Anchor *Anchor       `json:"anchor,omitempty"`
	Reason string        `json:"reason"`
}

// PhaseChange is the payload of the phase change events.
type PhaseChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Deps are the collaborators an Engine reads and calls.
type Deps struct {
	Lookup    PostLookup
	Deleted   DeletionSource
	Platform  Platform
	Publisher events.Publisher
	Sink      PostSink
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides the engine limits. Zero fields keep their defaults.
func WithConfig(cfg config.EngineConfig) Option {
	return func(e *Engine) {
		defaults := config.DefaultEngineConfig()
		if cfg.SearchWindow <= 0 {
			cfg.SearchWindow = defaults.SearchWindow
		}
		if cfg.WindowMargin < 0 {
			cfg.WindowMargin = defaults.WindowMargin
		}
		if cfg.MaxPrepareRetries < 0 {
			cfg.MaxPrepareRetries = defaults.MaxPrepareRetries
		}
		if cfg.PrepareRetryDelay < 0 {
			cfg.PrepareRetryDelay = defaults.PrepareRetryDelay
		}
		if cfg.MaxAncestorDepth <= 0 {
			cfg.MaxAncestorDepth = defaults.MaxAncestorDepth
		}
		if cfg.PageSize <= 0 {
			cfg.PageSize = defaults.PageSize
		}
		e.cfg = cfg
	}
}

// WithClock overrides the time source used for the search window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithID sets the engine instance ID instead of a random one.
func WithID(id string) Option {
	return func(e *Engine) {
		if strings.TrimSpace(id) != "" {
			e.id = id
		}
	}
}

// Engine runs the two load machines for one focal post and keeps the
// assembled item sequence current.
type Engine struct {
	id     string
	focal  models.Post
	deps   Deps
	cfg    config.EngineConfig
	now    func() time.Time
	logger zerolog.Logger

	lifecycleMu sync.Mutex
	started     bool
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc

	inflightMu sync.Mutex
	inflight   int
	idle       chan struct{}

	replyMu sync.Mutex
	reply   ReplyState

	convMu sync.Mutex
	conv   ConversationState

	overlayMu sync.RWMutex
	overlay   map[string]*models.Post

	refreshMu  sync.Mutex
	generation uint64
	itemsMu    sync.RWMutex
	items      []models.Item

	// Delivery state. Only one goroutine publishes at a time; the others
	// leave their sequence in pending for it.
	deliverMu  sync.Mutex
	delivering bool
	pending    *assembled
	delivered  assembled
}

// assembled is an item sequence stamped with the refresh that produced it.
type assembled struct {
	generation uint64
	items      []models.Item
	reason     string
}

// New creates an engine for focal. Nothing is fetched until Start.
func New(focal models.Post, deps Deps, opts ...Option) (*Engine, error) {
	focal.ID = strings.TrimSpace(focal.ID)
	if focal.ID == "" {
		return nil, models.ErrInvalidPostID
	}
	if deps.Platform == nil {
		return nil, ErrNoPlatform
	}

	e := &Engine{
		id:      uuid.New().String(),
		focal:   focal,
		deps:    deps,
		cfg:     config.DefaultEngineConfig(),
		now:     time.Now,
		overlay: make(map[string]*models.Post),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.WithThread(e.id, focal.ID).With().Str("component", "thread").Logger()
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.reply = NewReplyState()
	e.conv = NewConversationState(focal, PolicyFromConfig(e.cfg))
	e.items = Assemble(e.snapshot(), nil)
	e.delivered = assembled{items: e.items}
	return e, nil
}

// ID returns the engine instance ID carried on published events.
func (e *Engine) ID() string {
	return e.id
}

// Focal returns the focal post.
func (e *Engine) Focal() models.Post {
	return e.focal
}

// Start leaves Initial on both machines. It does not block; progress is
// published as thread.updated events.
func (e *Engine) Start(ctx context.Context) error {
	e.lifecycleMu.Lock()
	if e.closed {
		e.lifecycleMu.Unlock()
		return ErrEngineClosed
	}
	if e.started {
		e.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	e.started = true
	e.cancel()
	e.ctx, e.cancel = context.WithCancel(ctx)
	e.lifecycleMu.Unlock()

	if e.deps.Publisher != nil {
		filter := events.Filter{EventTypes: []models.EventType{
			models.EventTypePostDeleted,
			models.EventTypePostRestored,
		}}
		if err := e.deps.Publisher.Subscribe(e.subscriptionID(), filter, e.handleDeletion); err != nil {
			return err
		}
	}

	e.logger.Debug().Msg("engine started")
	e.applyReply(ReplyStart{})
	e.applyConversation(ConversationStart{})
	return nil
}

// Close cancels in-flight work and waits for it to finish. Results that
// arrive afterwards are dropped.
func (e *Engine) Close() {
	e.lifecycleMu.Lock()
	if e.closed {
		e.lifecycleMu.Unlock()
		return
	}
	e.closed = true
	started := e.started
	e.cancel()
	e.lifecycleMu.Unlock()

	if started && e.deps.Publisher != nil {
		_ = e.deps.Publisher.Unsubscribe(e.subscriptionID())
	}
	_ = e.Wait(context.Background())
}

// Wait blocks until no effect is in flight or ctx is done.
func (e *Engine) Wait(ctx context.Context) error {
	e.inflightMu.Lock()
	if e.inflight == 0 {
		e.inflightMu.Unlock()
		return nil
	}
	idle := e.idle
	e.inflightMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) track() {
	e.inflightMu.Lock()
	if e.inflight == 0 {
		e.idle = make(chan struct{})
	}
	e.inflight++
	e.inflightMu.Unlock()
}

func (e *Engine) untrack() {
	e.inflightMu.Lock()
	e.inflight--
	if e.inflight == 0 {
		close(e.idle)
	}
	e.inflightMu.Unlock()
}

// Items returns the current ordered item sequence.
func (e *Engine) Items() []models.Item {
	e.itemsMu.RLock()
	defer e.itemsMu.RUnlock()
	return cloneItems(e.items)
}

// ReplyPhase returns the ancestor machine phase.
func (e *Engine) ReplyPhase() ReplyPhase {
	e.replyMu.Lock()
	defer e.replyMu.Unlock()
	return e.reply.Phase
}

// ConversationPhase returns the descendant machine phase.
func (e *Engine) ConversationPhase() ConversationPhase {
	e.convMu.Lock()
	defer e.convMu.Unlock()
	return e.conv.Phase
}

// ReplyNodes returns the current ancestor chain, nearest parent first.
func (e *Engine) ReplyNodes() []models.ReplyNode {
	e.replyMu.Lock()
	defer e.replyMu.Unlock()
	return cloneReplyNodes(e.reply.Nodes)
}

// Meta returns the conversation meta once prepared.
func (e *Engine) Meta() *models.ConversationMeta {
	e.convMu.Lock()
	defer e.convMu.Unlock()
	if e.conv.Meta == nil {
		return nil
	}
	meta := *e.conv.Meta
	return &meta
}

// Post returns a post the engine has seen: the focal post, an ancestor, or a
// search result.
func (e *Engine) Post(id string) (*models.Post, bool) {
	if id == e.focal.ID {
		focal := e.focal
		return &focal, true
	}
	e.overlayMu.RLock()
	post, ok := e.overlay[id]
	e.overlayMu.RUnlock()
	if ok {
		clone := *post
		return &clone, true
	}
	e.replyMu.Lock()
	for _, node := range e.reply.Nodes {
		if node.PostID == id && node.IsResolved() {
			clone := *node.Post
			e.replyMu.Unlock()
			return &clone, true
		}
	}
	e.replyMu.Unlock()
	e.convMu.Lock()
	defer e.convMu.Unlock()
	for i := range e.conv.Corpus {
		if e.conv.Corpus[i].ID == id {
			clone := e.conv.Corpus[i]
			return &clone, true
		}
	}
	return nil, false
}

// LoadMoreReplies walks further up the chain, or retries a failed ancestor
// fetch. Ignored in any other phase.
func (e *Engine) LoadMoreReplies() {
	e.applyReply(ReplyLoadMore{})
}

// LoadMoreConversation requests the next search page, or retries a failed
// one. Ignored in any other phase.
func (e *Engine) LoadMoreConversation() {
	e.applyConversation(ConversationLoadMore{Now: e.now()})
}

func (e *Engine) applyReply(event ReplyEvent) {
	if e.stopped() {
		return
	}
	e.replyMu.Lock()
	prev := e.reply
	next, effects := prev.Apply(event)
	e.reply = next
	e.replyMu.Unlock()

	if next.Phase != prev.Phase {
		e.logger.Debug().
			Str("from", string(prev.Phase)).
			Str("to", string(next.Phase)).
			Int("nodes", len(next.Nodes)).
			Msg("reply phase changed")
		e.publish(models.EventTypeReplyPhaseChanged, PhaseChange{From: string(prev.Phase), To: string(next.Phase)})
	}
	for _, effect := range effects {
		e.run(effect)
	}
	e.refresh(ReasonReply)
}

func (e *Engine) applyConversation(event ConversationEvent) {
	if e.stopped() {
		return
	}
	e.convMu.Lock()
	prev := e.conv
	next, effects := prev.Apply(event)
	e.conv = next
	e.convMu.Unlock()

	if next.Phase != prev.Phase {
		logEvent := e.logger.Debug()
		if next.Phase == ConversationPrepareFail || next.Phase == ConversationFail {
			logEvent = e.logger.Warn().Err(next.Err).Int("failures", next.Failures)
		}
		logEvent.
			Str("from", string(prev.Phase)).
			Str("to", string(next.Phase)).
			Int("leaves", len(next.Leaves)).
			Msg("conversation phase changed")
		e.publish(models.EventTypeConversationPhaseChanged, PhaseChange{From: string(prev.Phase), To: string(next.Phase)})
	}
	for _, effect := range effects {
		e.run(effect)
	}
	e.refresh(ReasonConversation)

	// The first page is loaded as soon as the meta is known.
	if next.Phase == ConversationIdle && prev.Meta == nil && next.Meta != nil {
		e.LoadMoreConversation()
	}
}

func (e *Engine) run(effect Effect) {
	e.track()
	go func() {
		defer e.untrack()
		ctx := e.context()

		switch eff := effect.(type) {
		case WalkAncestors:
			result := Walk(ctx, lookupFunc(e.lookupPost), &e.focal, e.cfg.MaxAncestorDepth)
			e.applyReply(ReplyWalked{Seq: eff.Seq, Result: result})

		case FetchAncestor:
			post, err := e.deps.Platform.FetchPost(ctx, eff.PostID)
			if err == nil && post == nil {
				err = models.NewFetchError(models.FetchErrorNotFound, "fetch post", nil)
			}
			if err != nil {
				e.logger.Warn().Err(err).Str("ancestor_id", eff.PostID).Msg("ancestor fetch failed")
				e.applyReply(ReplyFetchFailed{Seq: eff.Seq, Err: err})
				return
			}
			e.remember(ctx, *post)
			e.applyReply(ReplyFetched{Seq: eff.Seq, Post: post})

		case ResolveConversation:
			conversationID, err := e.deps.Platform.ResolveConversationID(ctx, eff.PostID)
			if err == nil && strings.TrimSpace(conversationID) == "" {
				err = models.NewFetchError(models.FetchErrorNotFound, "resolve conversation", nil)
			}
			if err != nil {
				e.applyConversation(ConversationResolveFailed{Seq: eff.Seq, Err: err})
				return
			}
			e.applyConversation(ConversationResolved{Seq: eff.Seq, ConversationID: conversationID})

		case ScheduleRetry:
			timer := time.NewTimer(eff.Delay)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}
			e.applyConversation(RetryPrepare{Seq: eff.Seq})

		case FetchPage:
			page, err := e.deps.Platform.SearchConversation(ctx, eff.Query)
			if err != nil {
				e.logger.Warn().Err(err).Str("conversation_id", eff.Query.ConversationID).Msg("search page failed")
				e.applyConversation(PageFailed{Seq: eff.Seq, Err: err})
				return
			}
			if page != nil {
				e.save(ctx, page.Posts)
			}
			e.applyConversation(PageLoaded{Seq: eff.Seq, Page: page})
		}
	}()
}

// refresh reassembles the item sequence and publishes it when it changed.
// Updates reach subscribers in generation order and a superseded sequence is
// never delivered after a newer one. Publishing happens outside refreshMu so
// handlers may call back in.
func (e *Engine) refresh(reason string) {
	next, changed := e.reassemble(reason)
	if changed {
		e.deliver(next)
	}
}

func (e *Engine) reassemble(reason string) (assembled, bool) {
	e.refreshMu.Lock()
	defer e.refreshMu.Unlock()

	snap := e.snapshot()
	next := Assemble(snap, e.deletedSet(snap.PostIDs()))

	e.itemsMu.Lock()
	defer e.itemsMu.Unlock()
	if itemsEqual(e.items, next) {
		return assembled{}, false
	}
	e.items = next
	e.generation++
	return assembled{generation: e.generation, items: next, reason: reason}, true
}

// deliver queues next and, unless another goroutine is already delivering,
// drains the queue. Intermediate sequences may be coalesced; the anchor is
// always computed against the sequence subscribers saw last.
func (e *Engine) deliver(next assembled) {
	e.deliverMu.Lock()
	if next.generation <= e.delivered.generation ||
		(e.pending != nil && next.generation <= e.pending.generation) {
		e.deliverMu.Unlock()
		return
	}
	e.pending = &next
	if e.delivering {
		e.deliverMu.Unlock()
		return
	}
	e.delivering = true
	for e.pending != nil {
		current := *e.pending
		e.pending = nil
		update := Update{Items: cloneItems(current.items), Reason: current.reason}
		if anchor, ok := Reconcile(e.delivered.items, current.items); ok {
			update.Anchor = &anchor
		}
		e.delivered = current
		e.deliverMu.Unlock()

		e.publish(models.EventTypeThreadUpdated, update)

		e.deliverMu.Lock()
	}
	e.delivering = false
	e.deliverMu.Unlock()
}

func (e *Engine) snapshot() Snapshot {
	e.replyMu.Lock()
	reply := e.reply
	e.replyMu.Unlock()

	e.convMu.Lock()
	conv := e.conv
	e.convMu.Unlock()

	return Snapshot{RootID: e.focal.ID, Reply: reply, Conv: conv}
}

func (e *Engine) deletedSet(ids []string) map[string]bool {
	if e.deps.Deleted == nil {
		return nil
	}
	ctx := e.context()
	deleted := make(map[string]bool)
	for _, id := range ids {
		ok, err := e.deps.Deleted.IsDeleted(ctx, id)
		if err != nil {
			e.logger.Warn().Err(err).Str("lookup_id", id).Msg("deleted lookup failed")
			continue
		}
		if ok {
			deleted[id] = true
		}
	}
	return deleted
}

func (e *Engine) handleDeletion(event *models.Event) {
	reason := ReasonDeleted
	if event.Type == models.EventTypePostRestored {
		reason = ReasonRestored
	}
	e.refresh(reason)
}

func (e *Engine) lookupPost(ctx context.Context, id string) (*models.Post, error) {
	e.overlayMu.RLock()
	post, ok := e.overlay[id]
	e.overlayMu.RUnlock()
	if ok {
		return post, nil
	}
	if e.deps.Lookup == nil {
		return nil, nil
	}
	post, err := e.deps.Lookup.LookupPost(ctx, id)
	if err != nil {
		e.logger.Debug().Err(err).Str("lookup_id", id).Msg("post not known locally")
		return nil, nil
	}
	return post, nil
}

// remember keeps a fetched ancestor so the next walk can pass it.
func (e *Engine) remember(ctx context.Context, post models.Post) {
	e.overlayMu.Lock()
	clone := post
	e.overlay[post.ID] = &clone
	e.overlayMu.Unlock()
	e.save(ctx, []models.Post{post})
}

func (e *Engine) save(ctx context.Context, posts []models.Post) {
	if e.deps.Sink == nil || len(posts) == 0 {
		return
	}
	if err := e.deps.Sink.SavePosts(ctx, posts); err != nil {
		e.logger.Warn().Err(err).Int("posts", len(posts)).Msg("failed to persist fetched posts")
	}
}

func (e *Engine) publish(eventType models.EventType, payload any) {
	if e.deps.Publisher == nil {
		return
	}
	e.deps.Publisher.Publish(e.context(), &models.Event{
		Type:     eventType,
		ThreadID: e.id,
		PostID:   e.focal.ID,
		Payload:  payload,
	})
}

func (e *Engine) context() context.Context {
	e.lifecycleMu.Lock()
	defer e.lifecycleMu.Unlock()
	return e.ctx
}

func (e *Engine) stopped() bool {
	return e.context().Err() != nil
}

func (e *Engine) subscriptionID() string {
	return "thread-" + e.id
}

type lookupFunc func(ctx context.Context, id string) (*models.Post, error)

func (f lookupFunc) LookupPost(ctx context.Context, id string) (*models.Post, error) {
	return f(ctx, id)
}

func itemsEqual(a, b []models.Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneItems(items []models.Item) []models.Item {
	out := make([]models.Item, len(items))
	copy(out, items)
	return out
}
