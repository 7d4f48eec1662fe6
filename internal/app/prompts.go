package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"telebutton/internal/config"
	"telebutton/internal/transport"
	"telebutton/pkg/logx"
)

// promptScheduler pushes configured menus to a chat on a cron schedule,
// without waiting for a /menu command.
type promptScheduler struct {
	app *App

	mu sync.Mutex
	c  *cron.Cron
}

func newPromptScheduler(a *App) *promptScheduler {
	return &promptScheduler{app: a}
}

func (p *promptScheduler) start(ctx context.Context, cfg *config.Config) error {
	if len(cfg.Prompts) == 0 {
		return nil
	}

	c := cron.New()
	for i, pc := range cfg.Prompts {
		if _, err := c.AddFunc(pc.Schedule, p.jobFor(ctx, pc, cfg)); err != nil {
			return fmt.Errorf("prompts[%d]: bad schedule %q: %w", i, pc.Schedule, err)
		}
		p.app.log.Info("prompt scheduled",
			logx.String("schedule", pc.Schedule),
			logx.String("file", pc.File))
	}
	c.Start()

	p.mu.Lock()
	p.c = c
	p.mu.Unlock()
	return nil
}

// jobFor builds the cron job for one prompt: push the prompt's own menu
// file to its chat, falling back to the default chat when none is set.
func (p *promptScheduler) jobFor(ctx context.Context, pc config.PromptConfig, cfg *config.Config) func() {
	chatID := pc.ChatID
	if chatID == 0 {
		chatID = cfg.Telegram.ChatID
	}
	to := transport.ChatTarget{ChatID: chatID}
	return func() {
		p.app.runFlow(ctx, to, pc.File)
	}
}

func (p *promptScheduler) stop() {
	p.mu.Lock()
	c := p.c
	p.c = nil
	p.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
}
