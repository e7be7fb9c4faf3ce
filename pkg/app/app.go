package app

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/small-frappuccino/discorddeck/pkg/config"
	"github.com/small-frappuccino/discorddeck/pkg/discord/cache"
	"github.com/small-frappuccino/discorddeck/pkg/discord/perf"
	"github.com/small-frappuccino/discorddeck/pkg/discord/session"
	"github.com/small-frappuccino/discorddeck/pkg/log"
	"github.com/small-frappuccino/discorddeck/pkg/preferences"
	"github.com/small-frappuccino/discorddeck/pkg/storage"
	"github.com/small-frappuccino/discorddeck/pkg/util"
)

// liveConn is a connected live session that must be closed when the command ends.
type liveConn interface {
	cache.LiveSession
	Close() error
}

// Overridden in tests.
var (
	loadConfig  = config.Load
	setupLogger = log.SetupLogger
	connectLive = func(token string, bot bool) (liveConn, error) {
		live, err := session.Connect(token, bot)
		if err != nil {
			return nil, err
		}
		return live, nil
	}
)

// runtime holds everything a command needs. The store is opened for every command; the
// live session only for commands that ask for it.
type runtime struct {
	appName string
	verbose bool
	out     io.Writer

	cfg    config.Config
	kv     storage.KV
	engine *cache.Engine
	prefs  *preferences.Store

	liveMu sync.Mutex
	live   liveConn
}

// open loads config, sets up logging and opens the store.
func (rt *runtime) open() error {
	// App name first (affects paths)
	util.SetAppName(rt.appName)

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	rt.cfg = cfg

	if err := setupLogger(log.Options{
		Dir:        cfg.LogDir,
		Level:      cfg.LogLevel,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Quiet:      !rt.verbose,
	}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	if cfg.Store != storage.BackendMemory && cfg.StorePath == util.GetStorePath(cfg.Store) {
		if err := util.EnsureCacheDirs(); err != nil {
			log.ApplicationLogger().Warn("Failed to create cache directories", "error", err)
		}
	}
	perf.SetThreshold(cfg.GatewayPerfThreshold)

	kv, err := storage.Open(cfg.Store, cfg.StorePath, cfg.MemoryCacheSize)
	if err != nil {
		return err
	}
	rt.kv = kv
	rt.engine = cache.NewEngine(kv)
	rt.prefs = preferences.New(kv)
	log.ApplicationLogger().Debug("Runtime ready", "store", cfg.Store, "path", cfg.StorePath)
	return nil
}

// connect opens the live session once and waits for it to become ready.
func (rt *runtime) connect(ctx context.Context) (cache.LiveSession, error) {
	rt.liveMu.Lock()
	defer rt.liveMu.Unlock()
	if rt.live != nil {
		return rt.live, nil
	}

	token, err := rt.cfg.RequireToken()
	if err != nil {
		return nil, err
	}
	live, err := connectLive(token, rt.cfg.BotToken)
	if err != nil {
		return nil, err
	}
	rt.live = live

	waitCtx := ctx
	if rt.cfg.ReadyTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, rt.cfg.ReadyTimeout)
		defer cancel()
	}
	if err := live.Ready(waitCtx); err != nil {
		return nil, fmt.Errorf("wait for ready: %w", err)
	}
	return live, nil
}

// close releases the live session, the store and the log files, in that order.
func (rt *runtime) close() error {
	var firstErr error
	rt.liveMu.Lock()
	if rt.live != nil {
		if err := rt.live.Close(); err != nil {
			firstErr = err
		}
		rt.live = nil
	}
	rt.liveMu.Unlock()

	if rt.kv != nil {
		if err := rt.kv.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		rt.kv = nil
	}
	if log.GlobalLogger != nil {
		_ = log.GlobalLogger.Sync()
	}
	return firstErr
}

func (rt *runtime) printf(format string, args ...any) {
	fmt.Fprintf(rt.out, format, args...)
}
