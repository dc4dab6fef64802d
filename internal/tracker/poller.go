package tracker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Poller drives the engine on a schedule: a plain ticker by default, or
// a cron expression when one is configured. It skips cycles while the
// engine is paused and stops cleanly when its context is cancelled;
// in-flight item processing finishes on its own.
type Poller struct {
	Logger   *zap.Logger
	Engine   *Engine
	Interval time.Duration
	CronSpec string
}

func NewPoller(logger *zap.Logger, engine *Engine, interval time.Duration, cronSpec string) *Poller {
	if interval < 0 {
		interval = 0
	}
	return &Poller{
		Logger:   logger,
		Engine:   engine,
		Interval: interval,
		CronSpec: cronSpec,
	}
}

// Run blocks until ctx is cancelled. With a ticker it does an immediate
// pass first, then runs each tick.
func (p *Poller) Run(ctx context.Context) {
	if p.CronSpec != "" {
		p.runCron(ctx)
		return
	}
	if p.Interval == 0 {
		p.Logger.Info("poller_disabled")
		return
	}

	t := time.NewTicker(p.Interval)
	defer t.Stop()

	p.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			p.Logger.Info("poller_stopped")
			return
		case <-t.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) runCron(ctx context.Context) {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(p.CronSpec, func() { p.tick(ctx) }); err != nil {
		p.Logger.Error("poller_cron_invalid",
			zap.String("spec", p.CronSpec),
			zap.Error(err),
		)
		return
	}
	c.Start()
	p.Logger.Info("poller_cron_started", zap.String("spec", p.CronSpec))

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	p.Logger.Info("poller_stopped")
}

func (p *Poller) tick(ctx context.Context) {
	if p.Engine.Paused() {
		p.Logger.Debug("poller_skipped_paused")
		return
	}
	p.Engine.PollOnce(ctx)
}
