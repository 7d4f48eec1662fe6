package selector

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"telebutton/pkg/menu"
)

// MaxTokenLen is Telegram's callback_data size limit in bytes.
const MaxTokenLen = 64

// deliveryBuffer holds payloads that arrive before Await is called (a user
// can tap faster than the caller gets around to waiting).
const deliveryBuffer = 8

// Entry is what a token resolves to: the option, the registration that owns
// it, and the option's path from the menu root.
type Entry struct {
	Scope  string
	MenuID string
	Menu   *menu.Menu
	Option *menu.Option
	Path   []string
}

// Registration is the live handle returned by Register. It maps options of
// the registered tree to their tokens, which the keyboard renderer needs.
type Registration struct {
	Scope  string
	MenuID string
	Menu   *menu.Menu

	tokens map[*menu.Option]string
	exp    time.Time
}

// Token returns the encoded token for an option of this registration's tree.
func (r *Registration) Token(o *menu.Option) (string, bool) {
	tok, ok := r.tokens[o]
	return tok, ok
}

// Registry tracks active menu registrations and their tokens. All methods
// are safe for concurrent use; registrations and clears are atomic with
// respect to Resolve, so a resolve never observes a half-written entry.
//
// The zero value is not usable; call NewRegistry.
type Registry struct {
	mu sync.RWMutex

	ttl        time.Duration
	maxInvalid int

	// sweeping is lazy, piggybacked on Register, to keep Resolve cheap.
	sweepEvery time.Duration
	nextSweep  time.Time

	tokens  map[string]*Entry
	scopes  map[string]*Registration
	menus   map[string]*Registration
	waiters map[string]*waiter
}

// waiter is a scope's delivery channel plus the number of Await calls
// currently receiving from it. The entry lives while the scope has an
// active registration or a pending Await and is dropped when both are
// gone, so a long-lived process does not keep one channel per chat it
// has ever talked to.
type waiter struct {
	ch   chan string
	refs int
}

// NewRegistry creates an empty Registry.
// Defaults: no TTL (registrations live until cleared or superseded),
// maxInvalid=5.
func NewRegistry() *Registry {
	return &Registry{
		maxInvalid: 5,
		sweepEvery: time.Minute,
		tokens:     map[string]*Entry{},
		scopes:     map[string]*Registration{},
		menus:      map[string]*Registration{},
		waiters:    map[string]*waiter{},
	}
}

// WithTTL bounds how long a registration stays resolvable. Expired
// registrations behave exactly like cleared ones. ttl <= 0 disables expiry.
func (r *Registry) WithTTL(ttl time.Duration) *Registry {
	r.mu.Lock()
	r.ttl = ttl
	r.mu.Unlock()
	return r
}

// WithMaxInvalid sets how many invalid payloads one Await tolerates before
// failing with ErrProtocol.
func (r *Registry) WithMaxInvalid(n int) *Registry {
	if n < 1 {
		n = 1
	}
	r.mu.Lock()
	r.maxInvalid = n
	r.mu.Unlock()
	return r
}

// Register walks the whole menu tree and assigns each option a token of the
// form "<menuID>:<index>", where the index is registration-local base36.
// Tokens therefore stay a dozen bytes regardless of nesting depth; raw
// concatenation of nested callback ids could blow the 64-byte budget, an
// index cannot.
//
// Only one registration is active per scope. Registering into an occupied
// scope supersedes the previous registration: its tokens resolve to
// ErrNotFound from that point on. Re-registering a menu that is still active
// elsewhere likewise supersedes the old registration, keeping the token
// space collision-free.
func (r *Registry) Register(scope string, m *menu.Menu) (*Registration, error) {
	// Build everything up front so shared state mutates in one step.
	reg := &Registration{
		Scope:  scope,
		MenuID: m.ID,
		Menu:   m,
		tokens: map[*menu.Option]string{},
	}
	entries := map[string]*Entry{}

	idx := 0
	var encodeErr error
	m.Walk(func(path []string, o *menu.Option) bool {
		tok := m.ID + ":" + strconv.FormatInt(int64(idx), 36)
		idx++
		if len(tok) > MaxTokenLen {
			encodeErr = fmt.Errorf("%w: %q is %d bytes (limit %d)", ErrEncoding, tok, len(tok), MaxTokenLen)
			return false
		}
		reg.tokens[o] = tok
		entries[tok] = &Entry{
			Scope:  scope,
			MenuID: m.ID,
			Menu:   m,
			Option: o,
			Path:   append([]string(nil), path...),
		}
		return true
	})
	if encodeErr != nil {
		return nil, encodeErr
	}

	now := time.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ttl > 0 {
		reg.exp = now.Add(r.ttl)
	}
	r.sweepLocked(now)

	if old := r.scopes[scope]; old != nil {
		r.dropLocked(old)
	}
	if old := r.menus[m.ID]; old != nil {
		r.dropLocked(old)
	}

	for tok, e := range entries {
		r.tokens[tok] = e
	}
	r.scopes[scope] = reg
	r.menus[m.ID] = reg
	if r.waiters[scope] == nil {
		r.waiters[scope] = &waiter{ch: make(chan string, deliveryBuffer)}
	}
	return reg, nil
}

// Resolve looks a token up. Cleared, superseded and expired tokens return
// ErrNotFound, never stale data.
func (r *Registry) Resolve(token string) (*Entry, error) {
	now := time.Now()
	r.mu.RLock()
	e := r.tokens[token]
	var exp time.Time
	if e != nil {
		if reg := r.menus[e.MenuID]; reg != nil {
			exp = reg.exp
		}
	}
	r.mu.RUnlock()

	if e == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
	}
	if !exp.IsZero() && now.After(exp) {
		// Expired: drop the whole registration so later resolves are O(1)
		// misses again.
		r.Clear(e.MenuID)
		return nil, fmt.Errorf("%w: %q", ErrNotFound, token)
	}
	return e, nil
}

// Deliver hands a raw callback payload to whoever awaits on scope. It never
// blocks: when the scope has no waiter channel the payload is dropped, and a
// full buffer drops the oldest pending payload to make room for the newest.
// It reports whether the payload was queued.
func (r *Registry) Deliver(scope, payload string) bool {
	r.mu.RLock()
	w := r.waiters[scope]
	r.mu.RUnlock()
	if w == nil {
		return false
	}
	ch := w.ch
	select {
	case ch <- payload:
		return true
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- payload:
		return true
	default:
		return false
	}
}

// Clear removes the registration owning menuID. Its tokens resolve to
// ErrNotFound afterwards.
func (r *Registry) Clear(menuID string) {
	r.mu.Lock()
	if reg := r.menus[menuID]; reg != nil {
		r.dropLocked(reg)
	}
	r.mu.Unlock()
}

// ClearScope removes whatever registration is active in scope.
func (r *Registry) ClearScope(scope string) {
	r.mu.Lock()
	if reg := r.scopes[scope]; reg != nil {
		r.dropLocked(reg)
	}
	r.mu.Unlock()
}

// ClearAll removes every registration and all pending deliveries.
func (r *Registry) ClearAll() {
	r.mu.Lock()
	r.tokens = map[string]*Entry{}
	r.scopes = map[string]*Registration{}
	r.menus = map[string]*Registration{}
	for scope, w := range r.waiters {
	drain:
		for {
			select {
			case <-w.ch:
			default:
				break drain
			}
		}
		// Channels with an Await still receiving stay until it returns.
		if w.refs == 0 {
			delete(r.waiters, scope)
		}
	}
	r.mu.Unlock()
}

func (r *Registry) dropLocked(reg *Registration) {
	for _, tok := range reg.tokens {
		delete(r.tokens, tok)
	}
	if r.scopes[reg.Scope] == reg {
		delete(r.scopes, reg.Scope)
	}
	if r.menus[reg.MenuID] == reg {
		delete(r.menus, reg.MenuID)
	}
	if w := r.waiters[reg.Scope]; w != nil && w.refs == 0 && r.scopes[reg.Scope] == nil {
		delete(r.waiters, reg.Scope)
	}
}

func (r *Registry) sweepLocked(now time.Time) {
	if r.ttl <= 0 {
		return
	}
	if !r.nextSweep.IsZero() && now.Before(r.nextSweep) {
		return
	}
	r.nextSweep = now.Add(r.sweepEvery)
	for _, reg := range r.menus {
		if !reg.exp.IsZero() && now.After(reg.exp) {
			r.dropLocked(reg)
		}
	}
}
