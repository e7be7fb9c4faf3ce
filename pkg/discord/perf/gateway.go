// Package perf times gateway event handlers and logs the slow ones.
package perf

import (
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/small-frappuccino/discorddeck/pkg/log"
)

// DefaultThreshold is the handler duration above which a warning is logged.
const DefaultThreshold = 200 * time.Millisecond

var threshold atomic.Int64

func init() {
	threshold.Store(int64(DefaultThreshold))
}

// SetThreshold changes the slow-handler threshold. Zero or less disables timing.
func SetThreshold(d time.Duration) {
	threshold.Store(int64(d))
}

// Threshold returns the current slow-handler threshold.
func Threshold() time.Duration {
	return time.Duration(threshold.Load())
}

// StartGatewayEvent starts timing a handler. Call the returned func when it finishes;
// it logs only when the handler took at least the threshold.
func StartGatewayEvent(event string, attrs ...slog.Attr) func() {
	limit := Threshold()
	if limit <= 0 {
		return func() {}
	}

	start := time.Now()
	return func() {
		duration := time.Since(start)
		if duration < limit {
			return
		}
		name := strings.TrimSpace(event)
		if name == "" {
			name = "unknown"
		}
		args := make([]any, 0, len(attrs)+2)
		args = append(args, slog.String("event", name), slog.Int64("durationMs", duration.Milliseconds()))
		for _, a := range attrs {
			args = append(args, a)
		}
		log.DiscordLogger().Warn("Slow gateway event handler", args...)
	}
}
