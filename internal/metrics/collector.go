package metrics

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// StatsSource provides functions to retrieve current counts for gauge metrics.
// A nil function leaves its gauge untouched.
type StatsSource struct {
	BlacklistCount  func() int
	WarnedUserCount func() int
	AdminGroupCount func() int
}

// StartCollector launches a goroutine that periodically updates gauge metrics.
// It runs every interval until the context is cancelled.
func StartCollector(ctx context.Context, src StatsSource, interval time.Duration) {
	collect(src)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect(src)
			}
		}
	}()

	log.Info().Dur("interval", interval).Msg("Metrics collector started")
}

func collect(src StatsSource) {
	if src.BlacklistCount != nil {
		BlacklistedUsersTotal.Set(float64(src.BlacklistCount()))
	}
	if src.WarnedUserCount != nil {
		WarnedUsersTotal.Set(float64(src.WarnedUserCount()))
	}
	if src.AdminGroupCount != nil {
		AdminGroupsTotal.Set(float64(src.AdminGroupCount()))
	}
}
