package cli

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// startPruner schedules cache.Prune on cache.prune_schedule for long-running
// commands. It is a no-op when the cache is disabled, memory-only, or never
// expires.
func startPruner(s *session) (stop func(), err error) {
	noop := func() {}
	if s.store == nil || s.store.Dir() == "" || s.cfg.Cache.MaxAge <= 0 || s.cfg.Cache.PruneSchedule == "" {
		return noop, nil
	}

	c := cron.New()
	_, err = c.AddFunc(s.cfg.Cache.PruneSchedule, func() {
		removed, err := s.store.Prune(s.cfg.Cache.MaxAge)
		if err != nil {
			s.logger.Warn("pruning cache", "dir", s.store.Dir(), "error", err)
			return
		}
		if removed > 0 {
			s.logger.Info("pruned cache", "removed", removed)
		}
	})
	if err != nil {
		return noop, fmt.Errorf("scheduling cache pruning: %w", err)
	}
	c.Start()
	return func() { <-c.Stop().Done() }, nil
}
