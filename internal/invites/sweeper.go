package invites

import (
	"context"
	"log/slog"
	"time"

	"github.com/pantryware/homestock/internal/logutil"
)

// Sweeper periodically transitions pending invitations past their expiry
// to the expired status, so listings stay cheap to compute.
type Sweeper struct {
	log      *slog.Logger
	repo     Repo
	interval time.Duration
}

func NewSweeper(log *slog.Logger, repo Repo, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{log: logutil.NoopIfNil(log), repo: repo, interval: interval}
}

// Run sweeps until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.repo.ExpirePending(ctx, time.Now())
			if err != nil {
				s.log.Error("invitation expiry sweep", "error", err)
				continue
			}
			if n > 0 {
				s.log.Info("invitations expired", "count", n)
			}
		}
	}
}
