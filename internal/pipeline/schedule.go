package pipeline

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Schedule calls Refresh on the standard cron spec until ctx is done.
func (p *Pipeline) Schedule(ctx context.Context, spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if _, err := p.Refresh(); err != nil {
			p.logger.Warn("scheduled refresh skipped", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("parse refresh schedule %q: %w", spec, err)
	}

	c.Start()
	p.logger.Info("refresh scheduled", "schedule", spec)
	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
	return nil
}
