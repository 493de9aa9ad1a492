package job

import (
	"context"
	"time"
)

// RunJanitor calls CleanupCompleted(maxAge) every interval until ctx is
// done. It blocks, so run it on its own goroutine. It always returns nil.
func (p *Processor) RunJanitor(ctx context.Context, interval, maxAge time.Duration) error {
	if interval <= 0 {
		interval = 15 * time.Minute
		p.logger.Warn("invalid janitor interval specified, using default",
			"default_interval", interval)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.logger.Info("starting job janitor", "interval", interval, "max_age", maxAge)

	for {
		select {
		case <-ctx.Done():
			p.logger.Debug("stopping job janitor")
			return nil

		case <-ticker.C:
			if removed := p.CleanupCompleted(maxAge); removed > 0 {
				p.logger.Debug("janitor pass finished", "removed", removed)
			}
		}
	}
}
