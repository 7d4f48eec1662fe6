package selector

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestAwaitTimeout(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, err := r.Register("chat1", pickMenu(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	const deadline = 50 * time.Millisecond
	start := time.Now()
	_, err := r.Await(context.Background(), "chat1", deadline)
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("Await error = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed < deadline {
		t.Fatalf("Await returned after %v, before the %v deadline", elapsed, deadline)
	}
}

func TestAwaitResolves(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	reg, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	tok := tokenFor(t, reg, "c")

	go func() {
		time.Sleep(10 * time.Millisecond)
		r.Deliver("chat1", tok)
	}()

	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Callback != "c" || res.Text != "C" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if want := []string{"b", "c"}; !reflect.DeepEqual(res.Path, want) {
		t.Fatalf("Path = %v, want %v", res.Path, want)
	}
	if res.SubMenu != nil {
		t.Fatal("leaf selection should carry no sub-menu")
	}
}

func TestAwaitCarriesSubMenu(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	reg, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Deliver("chat1", tokenFor(t, reg, "b"))

	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.SubMenu == nil || res.SubMenu.Title != "Sub" {
		t.Fatalf("expected sub-menu in result, got %+v", res)
	}
}

func TestDeliverBeforeAwait(t *testing.T) {
	t.Parallel()
	// A tap can land before the caller gets around to awaiting; it must not
	// be lost.
	r := NewRegistry()
	reg, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !r.Deliver("chat1", tokenFor(t, reg, "a")) {
		t.Fatal("Deliver should queue for a registered scope")
	}

	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Callback != "a" {
		t.Fatalf("Callback = %q, want a", res.Callback)
	}
}

func TestInvalidPayloadDoesNotAbort(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	reg, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Deliver("chat1", "bogus:payload")
	r.Deliver("chat1", tokenFor(t, reg, "a"))

	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.Callback != "a" {
		t.Fatalf("Callback = %q, want a", res.Callback)
	}
}

func TestTooManyInvalidPayloads(t *testing.T) {
	t.Parallel()
	r := NewRegistry().WithMaxInvalid(2)
	if _, err := r.Register("chat1", pickMenu(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	r.Deliver("chat1", "junk1")
	r.Deliver("chat1", "junk2")

	_, err := r.Await(context.Background(), "chat1", time.Second)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("Await error = %v, want ErrProtocol", err)
	}
	if errors.Is(err, ErrTimedOut) {
		t.Fatal("protocol failure must not look like a timeout")
	}
}

func TestSupersededTokenIsInvalid(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	old, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register(old): %v", err)
	}
	staleTok := tokenFor(t, old, "a")

	fresh, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register(new): %v", err)
	}

	// A tap on the stale keyboard arrives first, then a valid one.
	r.Deliver("chat1", staleTok)
	r.Deliver("chat1", tokenFor(t, fresh, "a"))

	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if res.MenuID != fresh.MenuID {
		t.Fatalf("resolved against menu %s, want %s", res.MenuID, fresh.MenuID)
	}
}

func TestCrossScopeTokenIsInvalid(t *testing.T) {
	t.Parallel()
	r := NewRegistry().WithMaxInvalid(1)
	other, err := r.Register("chat2", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := r.Register("chat1", pickMenu(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// chat2's token delivered into chat1 must not resolve there.
	r.Deliver("chat1", tokenFor(t, other, "a"))
	if _, err := r.Await(context.Background(), "chat1", time.Second); !errors.Is(err, ErrProtocol) {
		t.Fatalf("Await error = %v, want ErrProtocol", err)
	}
}

func TestRetryAfterTimeout(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	reg, err := r.Register("chat1", pickMenu(t))
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, err := r.Await(context.Background(), "chat1", 10*time.Millisecond); !errors.Is(err, ErrTimedOut) {
		t.Fatalf("first Await = %v, want ErrTimedOut", err)
	}

	// Registration is still active; a later payload resolves on retry.
	r.Deliver("chat1", tokenFor(t, reg, "a"))
	res, err := r.Await(context.Background(), "chat1", time.Second)
	if err != nil {
		t.Fatalf("second Await: %v", err)
	}
	if res.Callback != "a" {
		t.Fatalf("Callback = %q, want a", res.Callback)
	}
}

func TestAwaitContextCancel(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if _, err := r.Register("chat1", pickMenu(t)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	if _, err := r.Await(ctx, "chat1", time.Minute); !errors.Is(err, context.Canceled) {
		t.Fatalf("Await error = %v, want context.Canceled", err)
	}
}

func TestDeliverUnknownScope(t *testing.T) {
	t.Parallel()
	r := NewRegistry()
	if r.Deliver("nobody-home", "payload") {
		t.Fatal("Deliver should report false for a scope with no waiter channel")
	}
}
