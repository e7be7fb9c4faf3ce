package cache

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/small-frappuccino/discorddeck/pkg/errors"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"golang.org/x/sync/errgroup"
)

var errNoUser = stderrors.New("session returned no user")

// RefreshState is the lifecycle of a Refresher run.
type RefreshState string

const (
	RefreshIdle      RefreshState = "idle"
	RefreshRunning   RefreshState = "running"
	RefreshCompleted RefreshState = "completed"
	RefreshCancelled RefreshState = "cancelled"
	RefreshFailed    RefreshState = "failed"
)

// Refresh stages, in run order.
const (
	StageReady    = "ready"
	StageProfile  = "profile"
	StageGuilds   = "guilds"
	StageMessages = "messages"
)

// RefreshOptions configures a Refresher. Zero values take the defaults.
type RefreshOptions struct {
	// GuildConcurrency is the number of guild detail fetches in flight per window.
	GuildConcurrency int
	// MessageConcurrency is the number of conversation fetches in flight per window.
	MessageConcurrency int
	// MessageLimit is the page size fetched per conversation.
	MessageLimit int
	// ReadyTimeout bounds the readiness wait. Zero waits until ctx is done.
	ReadyTimeout time.Duration
	// OnProgress is called after every finished item.
	OnProgress func(Progress)
}

// DefaultRefreshOptions returns the stock window sizes.
func DefaultRefreshOptions() RefreshOptions {
	return RefreshOptions{
		GuildConcurrency:   2,
		MessageConcurrency: 5,
		MessageLimit:       50,
		ReadyTimeout:       30 * time.Second,
	}
}

// Progress reports a run's position. Overall only ever grows within a run; Total is fixed
// when a stage starts.
type Progress struct {
	Stage     string
	Completed int
	Total     int
	Overall   int
}

// ItemFailure is a non-fatal per-item error recorded during a run.
type ItemFailure struct {
	Stage string
	ID    string
	Err   error
}

// Report summarizes one run.
type Report struct {
	State                  RefreshState
	ProfileUpdated         bool
	GuildsUpdated          bool
	Guilds                 int
	ConversationsProcessed int
	ConversationsUpdated   int
	MessagesSaved          int
	Failures               []ItemFailure
	Duration               time.Duration
}

// Refresher repopulates the cache for the profile, every guild and every DM
// conversation in bounded concurrent windows.
type Refresher struct {
	engine *Engine
	live   LiveSession
	opts   RefreshOptions

	mu        sync.Mutex
	state     RefreshState
	overall   int
	stage     string
	stageDone int
	stageSize int
	report    Report

	// progressMu keeps OnProgress calls in counter order.
	progressMu sync.Mutex
}

// NewRefresher creates an idle refresher.
func NewRefresher(engine *Engine, live LiveSession, opts RefreshOptions) *Refresher {
	def := DefaultRefreshOptions()
	if opts.GuildConcurrency <= 0 {
		opts.GuildConcurrency = def.GuildConcurrency
	}
	if opts.MessageConcurrency <= 0 {
		opts.MessageConcurrency = def.MessageConcurrency
	}
	if opts.MessageLimit <= 0 {
		opts.MessageLimit = def.MessageLimit
	}
	return &Refresher{engine: engine, live: live, opts: opts, state: RefreshIdle}
}

// State returns the current lifecycle state.
func (r *Refresher) State() RefreshState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Run performs one full refresh. Cancelling ctx stops the run between windows: work
// already in flight finishes, nothing new starts, and the run ends cancelled with a nil
// error. Only a failed readiness wait returns an error.
func (r *Refresher) Run(ctx context.Context) (Report, error) {
	r.mu.Lock()
	if r.state == RefreshRunning {
		r.mu.Unlock()
		return Report{}, fmt.Errorf("refresh already running")
	}
	r.state = RefreshRunning
	r.overall = 0
	r.report = Report{State: RefreshRunning}
	r.mu.Unlock()

	start := time.Now()
	logger := log.ApplicationLogger()
	logger.Info("Starting cache refresh")

	state, err := r.run(ctx)

	r.mu.Lock()
	r.state = state
	r.report.State = state
	r.report.Duration = time.Since(start)
	report := r.report
	report.Failures = append([]ItemFailure(nil), r.report.Failures...)
	r.mu.Unlock()

	switch state {
	case RefreshFailed:
		log.ErrorLoggerRaw().Error("Cache refresh failed", "error", err)
	case RefreshCancelled:
		logger.Info("Cache refresh cancelled", "duration", report.Duration.Round(time.Millisecond))
	default:
		logger.Info("Cache refresh completed",
			"duration", report.Duration.Round(time.Millisecond),
			"profileUpdated", report.ProfileUpdated,
			"guildsUpdated", report.GuildsUpdated,
			"conversations", report.ConversationsProcessed,
			"messagesSaved", report.MessagesSaved,
			"failures", len(report.Failures),
		)
	}
	return report, err
}

func (r *Refresher) run(ctx context.Context) (RefreshState, error) {
	if ctx.Err() != nil {
		return RefreshCancelled, nil
	}

	waitCtx := ctx
	if r.opts.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, r.opts.ReadyTimeout)
		defer cancel()
	}
	if err := r.live.Ready(waitCtx); err != nil {
		if ctx.Err() != nil {
			return RefreshCancelled, nil
		}
		return RefreshFailed, errors.NewFetchError("refresher", StageReady, "", fmt.Errorf("%w: %v", errors.ErrNotConnected, err))
	}
	r.beginStage(StageReady, 1)
	r.itemDone()
	if ctx.Err() != nil {
		return RefreshCancelled, nil
	}

	r.refreshProfile(ctx)
	if ctx.Err() != nil {
		return RefreshCancelled, nil
	}

	if cancelled := r.refreshGuilds(ctx); cancelled {
		return RefreshCancelled, nil
	}
	if ctx.Err() != nil {
		return RefreshCancelled, nil
	}

	if cancelled := r.refreshConversations(ctx); cancelled {
		return RefreshCancelled, nil
	}
	return RefreshCompleted, nil
}

func (r *Refresher) refreshProfile(ctx context.Context) {
	r.beginStage(StageProfile, 1)
	defer r.itemDone()

	u, err := r.live.CurrentUser(ctx)
	if err != nil {
		r.failUnlessCancelled(ctx, StageProfile, "@me", err)
		return
	}
	if u == nil {
		r.fail(StageProfile, "@me", errors.NewFetchError("refresher", StageProfile, "@me", errNoUser))
		return
	}
	changed, err := r.engine.SaveUserProfile(ctx, u)
	if err != nil {
		r.fail(StageProfile, u.ID, err)
	}
	r.mu.Lock()
	r.report.ProfileUpdated = changed
	r.mu.Unlock()
}

// refreshGuilds fetches each guild's details in windows and saves the collection once.
// A guild whose detail fetch fails keeps its listing entry.
func (r *Refresher) refreshGuilds(ctx context.Context) (cancelled bool) {
	listing, err := r.live.Guilds(ctx)
	if err != nil {
		r.failUnlessCancelled(ctx, StageGuilds, "", err)
		return ctx.Err() != nil
	}

	total := len(listing)
	detailed := make([]*discordgo.Guild, total)
	copy(detailed, listing)
	r.beginStage(StageGuilds, total)

	for start := 0; start < total; start += r.opts.GuildConcurrency {
		if ctx.Err() != nil {
			return true
		}
		end := min(start+r.opts.GuildConcurrency, total)

		// In-flight fetches are not aborted by cancellation.
		wctx := context.WithoutCancel(ctx)
		var g errgroup.Group
		for i := start; i < end; i++ {
			if listing[i] == nil {
				r.itemDone()
				continue
			}
			i := i
			g.Go(func() error {
				defer r.itemDone()
				guild, err := r.live.Guild(wctx, listing[i].ID)
				if err != nil {
					r.fail(StageGuilds, listing[i].ID, err)
					return nil
				}
				detailed[i] = guild
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return true
		}
	}

	changed, err := r.engine.SaveGuilds(ctx, detailed)
	if err != nil {
		r.fail(StageGuilds, KeyGuilds, err)
	}
	r.mu.Lock()
	r.report.GuildsUpdated = changed
	r.report.Guilds = total
	r.mu.Unlock()
	return false
}

// refreshConversations saves a recent page for every DM conversation.
func (r *Refresher) refreshConversations(ctx context.Context) (cancelled bool) {
	channels, err := r.live.DirectMessageChannels(ctx)
	if err != nil {
		r.failUnlessCancelled(ctx, StageMessages, "", err)
		return ctx.Err() != nil
	}

	total := len(channels)
	r.beginStage(StageMessages, total)
	for start := 0; start < total; start += r.opts.MessageConcurrency {
		if ctx.Err() != nil {
			return true
		}
		end := min(start+r.opts.MessageConcurrency, total)

		wctx := context.WithoutCancel(ctx)
		var g errgroup.Group
		for _, ch := range channels[start:end] {
			if ch == nil {
				r.itemDone()
				continue
			}
			ch := ch
			g.Go(func() error {
				defer r.itemDone()
				r.refreshConversation(wctx, ch.ID)
				return nil
			})
		}
		_ = g.Wait()

		if ctx.Err() != nil {
			return true
		}
	}
	return false
}

func (r *Refresher) refreshConversation(ctx context.Context, channelID string) {
	msgs, err := r.live.ChannelMessages(ctx, channelID, r.opts.MessageLimit, "")
	if err != nil {
		r.fail(StageMessages, channelID, err)
		return
	}
	changed, err := r.engine.SaveMessages(ctx, channelID, msgs)
	if err != nil {
		r.fail(StageMessages, channelID, err)
		return
	}

	r.mu.Lock()
	r.report.ConversationsProcessed++
	if changed {
		r.report.ConversationsUpdated++
		r.report.MessagesSaved += len(msgs)
	}
	r.mu.Unlock()
}

func (r *Refresher) fail(stage, id string, err error) {
	log.DiscordLogger().Warn("Refresh item failed", "stage", stage, "id", id, "error", err)
	r.mu.Lock()
	r.report.Failures = append(r.report.Failures, ItemFailure{Stage: stage, ID: id, Err: err})
	r.mu.Unlock()
}

// failUnlessCancelled records err unless it was caused by ctx being cancelled.
func (r *Refresher) failUnlessCancelled(ctx context.Context, stage, id string, err error) {
	if ctx.Err() != nil {
		log.DiscordLogger().Debug("Refresh item interrupted", "stage", stage, "id", id, "error", err)
		return
	}
	r.fail(stage, id, err)
}

// beginStage fixes the stage total. It is not revised while the stage runs.
func (r *Refresher) beginStage(stage string, total int) {
	r.mu.Lock()
	r.stage = stage
	r.stageDone = 0
	r.stageSize = total
	r.mu.Unlock()
	log.ApplicationLogger().Debug("Refresh stage started", "stage", stage, "total", total)
}

// itemDone advances the stage and overall counters and reports progress.
func (r *Refresher) itemDone() {
	r.progressMu.Lock()
	defer r.progressMu.Unlock()

	r.mu.Lock()
	r.stageDone++
	r.overall++
	p := Progress{Stage: r.stage, Completed: r.stageDone, Total: r.stageSize, Overall: r.overall}
	r.mu.Unlock()
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(p)
	}
}
