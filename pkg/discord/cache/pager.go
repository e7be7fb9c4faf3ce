package cache

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/discord/snapshot"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// DefaultPageSize is the number of messages requested per page.
const DefaultPageSize = 20

// Conversation identifies the channel a pager shows. Forum channels list their active
// threads instead of messages.
type Conversation struct {
	ID      string
	GuildID string
	Forum   bool
}

// Item is one visible row: either a message or a forum thread.
type Item struct {
	Message *snapshot.CachedMessage
	Thread  *snapshot.ThreadSummary
}

// ID returns the message or thread id.
func (i Item) ID() string {
	switch {
	case i.Message != nil:
		return i.Message.ID
	case i.Thread != nil:
		return i.Thread.ID
	}
	return ""
}

// View is a copy of a pager's visible state.
type View struct {
	Items   []Item
	Cursor  string
	HasMore bool
	Loading bool
	// FromCache is true while only the cached page is shown.
	FromCache bool
	Err       error
}

type PagerOptions struct {
	PageSize int
	// OnUpdate receives a copy of the view after every change. It is called without
	// the pager lock held.
	OnUpdate func(View)
}

// Pager keeps one conversation's newest-first message list, pages older history on
// demand and folds pushed messages in without duplicates.
type Pager struct {
	engine *Engine
	live   LiveSession
	conv   Conversation
	opts   PagerOptions

	mu        sync.Mutex
	items     []Item
	seen      map[string]struct{}
	cursor    string
	hasMore   bool
	loading   bool
	fromCache bool
	err       error
	// gen increments on every LoadInitial; results from older generations are dropped.
	gen uint64
	// livePending holds ids pushed while the initial fetch is in flight.
	livePending map[string]struct{}

	releaseOnce sync.Once
	release     func()
}

// NewPager creates a pager for conv. Call LoadInitial to populate it.
func NewPager(engine *Engine, live LiveSession, conv Conversation, opts PagerOptions) *Pager {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	return &Pager{
		engine: engine,
		live:   live,
		conv:   conv,
		opts:   opts,
		seen:   make(map[string]struct{}),
	}
}

// Conversation returns the conversation this pager shows.
func (p *Pager) Conversation() Conversation {
	return p.conv
}

// Attach subscribes the pager to pushed messages. Close releases the subscription.
func (p *Pager) Attach() {
	release := p.live.OnMessageCreate(func(m *discordgo.Message) {
		p.OnLiveEvent(m)
	})
	p.mu.Lock()
	p.release = release
	p.mu.Unlock()
}

// Close detaches the live subscription. Safe to call more than once.
func (p *Pager) Close() {
	p.releaseOnce.Do(func() {
		p.mu.Lock()
		release := p.release
		p.release = nil
		p.mu.Unlock()
		if release != nil {
			release()
		}
	})
}

// View returns a copy of the current state.
func (p *Pager) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// LoadInitial resets the view, shows the cached first page if any, then replaces it with
// the live newest page and persists that page.
func (p *Pager) LoadInitial(ctx context.Context) (View, error) {
	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.items = nil
	p.seen = make(map[string]struct{})
	p.cursor = ""
	p.hasMore = false
	p.err = nil
	p.loading = true
	p.fromCache = false
	p.livePending = make(map[string]struct{})
	p.mu.Unlock()

	if !p.conv.Forum {
		if cached, ok := p.engine.Messages(ctx, p.conv.ID); ok && len(cached) > 0 {
			p.mu.Lock()
			if p.gen == gen {
				for i := range cached {
					p.appendLocked(Item{Message: &cached[i]})
				}
				p.fromCache = true
			}
			view := p.viewLocked()
			p.mu.Unlock()
			p.emit(view)
			log.DiscordLogger().Debug("Showing cached messages", "conversation", p.conv.ID, "count", len(cached))
		}
	}

	if !p.live.IsReady() {
		return p.fail(gen, errors.NewFetchError("pager", "load_initial", p.conv.ID, errors.ErrNotConnected))
	}

	if p.conv.Forum {
		return p.loadThreads(ctx, gen)
	}

	msgs, err := p.live.ChannelMessages(ctx, p.conv.ID, p.opts.PageSize, "")
	if err != nil {
		return p.fail(gen, p.wrapFetch("load_initial", err))
	}
	fresh := snapshot.MessagesFromDiscord(msgs)

	p.mu.Lock()
	if p.gen != gen {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, nil
	}
	var head []Item
	freshIDs := make(map[string]struct{}, len(fresh))
	for _, m := range fresh {
		freshIDs[m.ID] = struct{}{}
	}
	for _, it := range p.items {
		id := it.ID()
		if _, pushed := p.livePending[id]; !pushed {
			continue
		}
		if _, dup := freshIDs[id]; dup {
			continue
		}
		head = append(head, it)
	}
	p.items = nil
	p.seen = make(map[string]struct{}, len(head)+len(fresh))
	for _, it := range head {
		p.appendLocked(it)
	}
	for i := range fresh {
		p.appendLocked(Item{Message: &fresh[i]})
	}
	p.updateCursorLocked(fresh, len(msgs))
	p.loading = false
	p.fromCache = false
	p.livePending = nil
	view := p.viewLocked()
	p.mu.Unlock()
	p.emit(view)

	if _, err := p.engine.SaveMessageSnapshots(ctx, p.conv.ID, fresh); err != nil {
		log.DatabaseLogger().Warn("Failed to persist first page", "conversation", p.conv.ID, "error", err)
	}
	return view, nil
}

// LoadMore appends the next older page. It is a no-op when there is nothing more to load
// or a load is already in flight. Older pages are never persisted.
func (p *Pager) LoadMore(ctx context.Context) (View, error) {
	p.mu.Lock()
	if !p.hasMore || p.loading || p.cursor == "" || p.conv.Forum {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, nil
	}
	gen := p.gen
	before := p.cursor
	p.loading = true
	p.mu.Unlock()

	if !p.live.IsReady() {
		return p.fail(gen, errors.NewFetchError("pager", "load_more", p.conv.ID, errors.ErrNotConnected))
	}

	msgs, err := p.live.ChannelMessages(ctx, p.conv.ID, p.opts.PageSize, before)
	if err != nil {
		return p.fail(gen, p.wrapFetch("load_more", err))
	}
	older := snapshot.MessagesFromDiscord(msgs)

	p.mu.Lock()
	if p.gen != gen {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, nil
	}
	for i := range older {
		p.appendLocked(Item{Message: &older[i]})
	}
	p.updateCursorLocked(older, len(msgs))
	p.loading = false
	view := p.viewLocked()
	p.mu.Unlock()
	p.emit(view)
	return view, nil
}

// OnLiveEvent prepends a pushed message for this conversation unless its id is already
// shown. It reports whether the view changed. It never fetches.
func (p *Pager) OnLiveEvent(m *discordgo.Message) bool {
	if m == nil || m.ID == "" || m.ChannelID != p.conv.ID || p.conv.Forum {
		return false
	}
	cm := snapshot.MessageFromDiscord(m)

	p.mu.Lock()
	if _, dup := p.seen[cm.ID]; dup {
		p.mu.Unlock()
		return false
	}
	p.items = append([]Item{{Message: &cm}}, p.items...)
	p.seen[cm.ID] = struct{}{}
	if p.livePending != nil {
		p.livePending[cm.ID] = struct{}{}
	}
	view := p.viewLocked()
	p.mu.Unlock()
	p.emit(view)
	return true
}

// Send posts content to the conversation and folds the created message into the view.
func (p *Pager) Send(ctx context.Context, content string) (snapshot.CachedMessage, error) {
	if !p.live.IsReady() {
		return snapshot.CachedMessage{}, errors.NewFetchError("pager", "send", p.conv.ID, errors.ErrNotConnected)
	}
	m, err := p.live.SendMessage(ctx, p.conv.ID, content)
	if err != nil {
		return snapshot.CachedMessage{}, p.wrapFetch("send", err)
	}
	p.OnLiveEvent(m)
	if _, err := p.engine.SaveLastMessage(ctx, m); err != nil {
		log.DatabaseLogger().Warn("Failed to index sent message", "conversation", p.conv.ID, "error", err)
	}
	return snapshot.MessageFromDiscord(m), nil
}

func (p *Pager) loadThreads(ctx context.Context, gen uint64) (View, error) {
	threads, err := p.live.ActiveThreads(ctx, p.conv.GuildID, p.conv.ID)
	if err != nil {
		return p.fail(gen, p.wrapFetch("load_threads", err))
	}

	p.mu.Lock()
	if p.gen != gen {
		view := p.viewLocked()
		p.mu.Unlock()
		return view, nil
	}
	for _, ch := range threads {
		if ch == nil {
			continue
		}
		ts := snapshot.ThreadFromChannel(ch)
		p.appendLocked(Item{Thread: &ts})
	}
	p.hasMore = false
	p.cursor = ""
	p.loading = false
	view := p.viewLocked()
	p.mu.Unlock()
	p.emit(view)
	return view, nil
}

// fail records err for generation gen, keeps items and stops further paging.
func (p *Pager) fail(gen uint64, err error) (View, error) {
	p.mu.Lock()
	if p.gen == gen {
		p.err = err
		p.hasMore = false
		p.loading = false
		p.livePending = nil
	}
	view := p.viewLocked()
	p.mu.Unlock()
	p.emit(view)
	return view, err
}

func (p *Pager) wrapFetch(operation string, err error) error {
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.DiscordLogger().Warn("Message fetch failed", "operation", operation, "conversation", p.conv.ID, "error", err)
	return errors.NewFetchError("pager", operation, p.conv.ID, err)
}

// appendLocked adds it at the tail unless its id is already present.
func (p *Pager) appendLocked(it Item) bool {
	id := it.ID()
	if id == "" {
		return false
	}
	if _, dup := p.seen[id]; dup {
		return false
	}
	p.seen[id] = struct{}{}
	p.items = append(p.items, it)
	return true
}

func (p *Pager) updateCursorLocked(page []snapshot.CachedMessage, fetched int) {
	if len(page) > 0 {
		p.cursor = page[len(page)-1].ID
	}
	p.hasMore = fetched == p.opts.PageSize
}

func (p *Pager) viewLocked() View {
	return View{
		Items:     append([]Item(nil), p.items...),
		Cursor:    p.cursor,
		HasMore:   p.hasMore,
		Loading:   p.loading,
		FromCache: p.fromCache,
		Err:       p.err,
	}
}

func (p *Pager) emit(v View) {
	if p.opts.OnUpdate != nil {
		p.opts.OnUpdate(v)
	}
}
