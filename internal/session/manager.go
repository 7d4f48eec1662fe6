package session

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"sync"
	"time"

	"telebutton/internal/transport"
	"telebutton/pkg/logx"
	"telebutton/pkg/menu"
	"telebutton/pkg/selector"
)

// Manager drives interactive menu flows over a transport adapter: it
// registers menus, renders and sends keyboards, feeds callback payloads to
// the selector registry, and retracts messages once a selection lands.
//
// One flow is active per scope (chat) at a time; starting a new flow in a
// scope supersedes the previous one.
type Manager struct {
	ad  transport.Adapter
	reg *selector.Registry
	log logx.Logger

	deleteOnSelect bool

	mu    sync.Mutex
	shown map[string]shownMenu
}

type shownMenu struct {
	reg *selector.Registration
	ref transport.MessageRef
	to  transport.ChatTarget
}

func New(ad transport.Adapter, reg *selector.Registry, log logx.Logger) *Manager {
	return &Manager{ad: ad, reg: reg, log: log, shown: map[string]shownMenu{}}
}

// WithDeleteOnSelect makes Navigate retract the keyboard message after a
// leaf selection. Retraction is best-effort: failures are logged, never
// propagated.
func (s *Manager) WithDeleteOnSelect(v bool) *Manager {
	s.deleteOnSelect = v
	return s
}

// Scope derives the correlation scope for a chat target. Forum topics get
// their own scope so threads don't steal each other's selections.
func Scope(to transport.ChatTarget) string {
	if to.ThreadID != 0 {
		return strconv.FormatInt(to.ChatID, 10) + "/" + strconv.Itoa(to.ThreadID)
	}
	return strconv.FormatInt(to.ChatID, 10)
}

// Show registers m for the target's scope and sends its keyboard. The
// previous flow in that scope, if any, is superseded.
func (s *Manager) Show(ctx context.Context, to transport.ChatTarget, m *menu.Menu) (*selector.Registration, error) {
	reg, err := s.reg.Register(Scope(to), m)
	if err != nil {
		return nil, err
	}
	kb, err := selector.Keyboard(reg, m)
	if err != nil {
		return nil, err
	}
	ref, err := s.ad.SendText(ctx, to, titleHTML(m.Title), &transport.SendOptions{
		ParseMode:          "HTML",
		ReplyMarkupAdapter: kb,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.shown[reg.Scope] = shownMenu{reg: reg, ref: ref, to: to}
	s.mu.Unlock()

	s.log.Debug("menu shown",
		logx.String("scope", reg.Scope),
		logx.String("menu_id", reg.MenuID),
		logx.Int("options", len(m.Options)))
	return reg, nil
}

// HandleUpdate routes a transport update into the selector. Non-callback
// updates are ignored. The callback is answered (spinner cleared) whether or
// not anyone is awaiting in that scope.
func (s *Manager) HandleUpdate(ctx context.Context, up transport.Update) {
	if up.Kind != transport.UpdateCallback || up.Callback == nil {
		return
	}
	cb := up.Callback
	if err := s.ad.AnswerCallback(ctx, cb.ID, ""); err != nil {
		s.log.Debug("answer callback failed", logx.Err(err))
	}
	scope := Scope(transport.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID})
	if !s.reg.Deliver(scope, cb.Data) {
		s.log.Debug("callback payload dropped (no waiter)",
			logx.String("scope", scope), logx.String("data", cb.Data))
	}
}

// Await waits for a selection in the target's scope. See Registry.Await for
// the outcome contract (ErrTimedOut / ErrProtocol / ctx errors).
func (s *Manager) Await(ctx context.Context, to transport.ChatTarget, deadline time.Duration) (*selector.Result, error) {
	return s.reg.Await(ctx, Scope(to), deadline)
}

// Navigate runs a full selection flow: show m, await, and when the picked
// option carries a sub-menu, swap the keyboard in place and keep awaiting
// until a leaf is picked. Each await cycle gets its own deadline. The
// returned result's Path runs from the menu root to the leaf.
//
// On a leaf selection the scope's registration is cleared, and the keyboard
// message is retracted when delete-on-select is enabled.
func (s *Manager) Navigate(ctx context.Context, to transport.ChatTarget, m *menu.Menu, deadline time.Duration) (*selector.Result, error) {
	reg, err := s.Show(ctx, to, m)
	if err != nil {
		return nil, err
	}
	scope := reg.Scope

	for {
		res, err := s.reg.Await(ctx, scope, deadline)
		if err != nil {
			if errors.Is(err, selector.ErrTimedOut) {
				s.log.Info("selection timed out", logx.String("scope", scope), logx.Duration("deadline", deadline))
			}
			return nil, err
		}
		if res.SubMenu == nil {
			s.finish(ctx, scope)
			s.log.Info("selection resolved",
				logx.String("scope", scope),
				logx.String("callback", res.Callback),
				logx.Any("path", res.Path))
			return res, nil
		}
		// Descend: same registration, new keyboard.
		if err := s.swapKeyboard(ctx, scope, res.SubMenu); err != nil {
			return nil, err
		}
	}
}

func (s *Manager) swapKeyboard(ctx context.Context, scope string, sub *menu.Menu) error {
	s.mu.Lock()
	sh, ok := s.shown[scope]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("session: no shown menu for scope %s", scope)
	}
	kb, err := selector.Keyboard(sh.reg, sub)
	if err != nil {
		return err
	}
	return s.ad.EditText(ctx, sh.ref, titleHTML(sub.Title), &transport.SendOptions{
		ParseMode:          "HTML",
		ReplyMarkupAdapter: kb,
	})
}

// finish clears the scope's registration and retracts the keyboard message
// if configured to.
func (s *Manager) finish(ctx context.Context, scope string) {
	s.mu.Lock()
	sh, ok := s.shown[scope]
	delete(s.shown, scope)
	s.mu.Unlock()

	s.reg.ClearScope(scope)

	if !ok || !s.deleteOnSelect {
		return
	}
	if err := s.ad.DeleteMessage(ctx, sh.ref); err != nil {
		s.log.Warn("retract failed", logx.String("scope", scope), logx.Err(err))
	}
}

// Confirm shows a two-button yes/no menu and reports the answer.
func (s *Manager) Confirm(ctx context.Context, to transport.ChatTarget, question, yesText, noText string, deadline time.Duration) (bool, error) {
	if yesText == "" {
		yesText = "Yes"
	}
	if noText == "" {
		noText = "No"
	}
	m, err := menu.New(question, []menu.Option{
		{Text: yesText, Callback: "yes"},
		{Text: noText, Callback: "no"},
	}, 2)
	if err != nil {
		return false, err
	}
	res, err := s.Navigate(ctx, to, m, deadline)
	if err != nil {
		return false, err
	}
	return res.Callback == "yes", nil
}

func titleHTML(title string) string {
	return "<b>" + html.EscapeString(title) + "</b>"
}
