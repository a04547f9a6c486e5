package history

// retention.go deletes expired comparison history in the background.
//
// The job runs once on start and then every PruneInterval until its context
// is cancelled. A failed run is logged and retried on the next tick.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/tablematch/internal/config"
)

const pruneQuery = `DELETE FROM comparison_history WHERE created_at < $1`

// Prune deletes entries created more than olderThan ago and returns how many
// were removed.
func (s *Store) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s == nil {
		return 0, ErrHistoryDisabled
	}
	cutoff := s.now().UTC().Add(-olderThan)
	tag, err := s.db.Exec(ctx, pruneQuery, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return tag.RowsAffected(), nil
}

// StartRetention prunes entries older than cfg.RetentionDays every
// cfg.PruneInterval. It returns immediately when retention is disabled and
// otherwise blocks until ctx is cancelled.
func (s *Store) StartRetention(ctx context.Context, cfg config.HistoryConfig) {
	if s == nil || cfg.RetentionDays <= 0 || cfg.PruneInterval <= 0 {
		return
	}
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	slog.Info("history retention started",
		"retention_days", cfg.RetentionDays,
		"interval", cfg.PruneInterval,
	)

	s.runPrune(ctx, retention)

	ticker := time.NewTicker(cfg.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("history retention stopped")
			return
		case <-ticker.C:
			s.runPrune(ctx, retention)
		}
	}
}

func (s *Store) runPrune(ctx context.Context, retention time.Duration) {
	start := time.Now()
	n, err := s.Prune(ctx, retention)
	if err != nil {
		slog.Error("history prune failed", "error", err)
		return
	}
	slog.Info("pruned comparison history",
		"entries_deleted", n,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}
