package selector

import (
	"context"
	"fmt"
	"time"

	"telebutton/pkg/menu"
)

// Result is a resolved selection. Path runs from the root-level option down
// to the picked one, so its length equals the option's nesting depth. When
// the picked option carries a sub-menu, SubMenu is set so the caller can
// render it next; the result itself is not retained by the registry.
type Result struct {
	Callback string
	Text     string
	Path     []string
	MenuID   string
	SubMenu  *menu.Menu
}

// Await blocks until a payload delivered to scope resolves against the
// currently active registration, or the deadline elapses, whichever comes
// first. The wait is a single race:
//
//	awaiting -> resolved   payload matched an active token: (*Result, nil)
//	awaiting -> timed out  deadline elapsed: (nil, ErrTimedOut)
//	awaiting -> invalid    too many unmatched payloads: (nil, ErrProtocol)
//
// Unmatched or stale payloads (unknown tokens, tokens of a superseded
// registration, payloads for another scope) do not end the wait on their
// own; the wait continues until the invalid budget set by WithMaxInvalid is
// spent. ctx cancellation ends the wait with ctx.Err().
//
// Awaiting again after a timeout, with the registration still active,
// resolves later payloads normally.
func (r *Registry) Await(ctx context.Context, scope string, deadline time.Duration) (*Result, error) {
	r.mu.Lock()
	w := r.waiters[scope]
	if w == nil {
		w = &waiter{ch: make(chan string, deliveryBuffer)}
		r.waiters[scope] = w
	}
	w.refs++
	ch := w.ch
	maxInvalid := r.maxInvalid
	r.mu.Unlock()
	defer r.releaseWaiter(scope, w)

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	invalid := 0
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrTimedOut
		case payload := <-ch:
			res, err := r.resolvePayload(scope, payload)
			if err == nil {
				return res, nil
			}
			invalid++
			if invalid >= maxInvalid {
				return nil, fmt.Errorf("%w: gave up after %d", ErrProtocol, invalid)
			}
		}
	}
}

// releaseWaiter drops the scope's waiter entry once the last Await returns
// and no registration remains that could still deliver into it.
func (r *Registry) releaseWaiter(scope string, w *waiter) {
	r.mu.Lock()
	w.refs--
	if w.refs == 0 && r.waiters[scope] == w && r.scopes[scope] == nil {
		delete(r.waiters, scope)
	}
	r.mu.Unlock()
}

func (r *Registry) resolvePayload(scope, payload string) (*Result, error) {
	e, err := r.Resolve(payload)
	if err != nil {
		return nil, err
	}
	// A token can only be honored by the scope it was registered for.
	if e.Scope != scope {
		return nil, fmt.Errorf("%w: token %q belongs to another scope", ErrNotFound, payload)
	}
	return &Result{
		Callback: e.Option.Callback,
		Text:     e.Option.Text,
		Path:     append([]string(nil), e.Path...),
		MenuID:   e.MenuID,
		SubMenu:  e.Option.SubMenu,
	}, nil
}
