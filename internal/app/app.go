package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"telebutton/internal/adapters/telegram"
	"telebutton/internal/config"
	"telebutton/internal/session"
	"telebutton/internal/transport"
	"telebutton/pkg/logx"
	"telebutton/pkg/menu"
	"telebutton/pkg/selector"
)

const updateBuffer = 64

// App wires config, logging, the Telegram adapter and the session manager
// into a runnable bot: it serves the configured menu command and pushes
// scheduled prompts.
type App struct {
	cfgm     *config.Manager
	log      logx.Logger
	logClose func() error

	ad       transport.Adapter
	reg      *selector.Registry
	sessions *session.Manager
	prompts  *promptScheduler

	updates chan transport.Update
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, logClose, err := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.ConsoleLogging(),
		File:    logx.FileConfig{Enabled: cfg.Logging.File.Enabled, Path: cfg.Logging.File.Path},
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	cfgm.SetLogger(log.With(logx.String("component", "config")))

	pollTimeout, _ := cfg.PollTimeout()
	ad, err := telegram.New(telegram.Config{
		Token:          cfg.Telegram.Token,
		PollTimeout:    pollTimeout,
		SendRatePerSec: cfg.Telegram.SendRatePerSec,
	}, log.With(logx.String("component", "telegram")))
	if err != nil {
		_ = logClose()
		return nil, err
	}

	reg := selector.NewRegistry()
	if ttl, _ := cfg.RegistrationTTL(); ttl > 0 {
		reg.WithTTL(ttl)
	}
	if cfg.Menu.MaxInvalid > 0 {
		reg.WithMaxInvalid(cfg.Menu.MaxInvalid)
	}

	sessions := session.New(ad, reg, log.With(logx.String("component", "session"))).
		WithDeleteOnSelect(cfg.Menu.DeleteOnSelect)

	a := &App{
		cfgm:     cfgm,
		log:      log,
		logClose: logClose,
		ad:       ad,
		reg:      reg,
		sessions: sessions,
		updates:  make(chan transport.Update, updateBuffer),
	}
	a.prompts = newPromptScheduler(a)
	return a, nil
}

func (a *App) Start(ctx context.Context) error {
	rctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.ad.Start(rctx, a.updates); err != nil {
		cancel()
		return err
	}

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.consume(rctx)
	}()
	go func() {
		defer a.wg.Done()
		_ = a.cfgm.Watch(rctx)
	}()

	if err := a.prompts.start(rctx, a.cfgm.Get()); err != nil {
		a.log.Warn("scheduled prompts disabled", logx.Err(err))
	}

	a.log.Info("started", logx.String("command", "/"+a.cfgm.Get().MenuCommand()))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}
	a.prompts.stop()
	err := a.ad.Stop(ctx)

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}

	a.reg.ClearAll()
	if a.logClose != nil {
		_ = a.logClose()
	}
	return err
}

func (a *App) consume(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case up := <-a.updates:
			switch up.Kind {
			case transport.UpdateCallback:
				a.sessions.HandleUpdate(ctx, up)
			case transport.UpdateMessage:
				if up.Message == nil {
					continue
				}
				if a.isMenuCommand(up.Message.Text) {
					to := transport.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}
					file := a.cfgm.Get().Menu.File
					a.wg.Add(1)
					go func() {
						defer a.wg.Done()
						a.runFlow(ctx, to, file)
					}()
				}
			}
		}
	}
}

func (a *App) isMenuCommand(text string) bool {
	cmd := "/" + a.cfgm.Get().MenuCommand()
	text = strings.TrimSpace(text)
	if text == cmd {
		return true
	}
	// "/menu@botname" form used in groups.
	return strings.HasPrefix(text, cmd+"@")
}

// runFlow loads the menu from file, shows it in the target chat and reports
// the outcome back. The file is re-read on every run, so edits apply without
// a restart. Scheduled prompts pass their own file here, the menu command
// passes the main one.
func (a *App) runFlow(ctx context.Context, to transport.ChatTarget, file string) {
	m, err := menu.LoadFile(file)
	if err != nil {
		a.log.Error("menu load failed", logx.String("file", file), logx.Err(err))
		a.reply(ctx, to, "Menu unavailable, check the bot logs.")
		return
	}

	deadline, _ := a.cfgm.Get().SelectTimeout()
	res, err := a.sessions.Navigate(ctx, to, m, deadline)
	switch {
	case err == nil:
		a.reply(ctx, to, fmt.Sprintf("Selected: %s (%s)", res.Text, strings.Join(res.Path, " > ")))
	case errors.Is(err, selector.ErrTimedOut):
		a.reply(ctx, to, "Selection timed out.")
	case errors.Is(err, selector.ErrProtocol):
		a.log.Warn("selection aborted", logx.Int64("chat", to.ChatID), logx.Err(err))
		a.reply(ctx, to, "Too many invalid taps, giving up.")
	case errors.Is(err, context.Canceled):
		// shutdown; nothing to report
	default:
		a.log.Error("selection flow failed", logx.Int64("chat", to.ChatID), logx.Err(err))
	}
}

func (a *App) reply(ctx context.Context, to transport.ChatTarget, text string) {
	sctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if _, err := a.ad.SendText(sctx, to, text, nil); err != nil {
		a.log.Warn("reply failed", logx.Int64("chat", to.ChatID), logx.Err(err))
	}
}
