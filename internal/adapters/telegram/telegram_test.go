package telegram

import (
	"testing"

	tele "gopkg.in/telebot.v4"

	kit "telebutton/internal/transport"
)

func TestCallbackUpdate(t *testing.T) {
	t.Parallel()
	msg := &tele.Message{
		ID:       7,
		ThreadID: 3,
		Chat:     &tele.Chat{ID: 42},
	}
	cb := &tele.Callback{
		ID:     "cb-1",
		Sender: &tele.User{ID: 1001},
		Data:   "\fabc123:0",
	}

	up, ok := callbackUpdate(cb, msg)
	if !ok {
		t.Fatal("callbackUpdate skipped a complete callback")
	}
	want := kit.Callback{
		ID:        "cb-1",
		FromID:    1001,
		ChatID:    42,
		ThreadID:  3,
		MessageID: 7,
		Data:      "abc123:0",
	}
	if up.Kind != kit.UpdateCallback {
		t.Fatalf("Kind = %q, want %q", up.Kind, kit.UpdateCallback)
	}
	if *up.Callback != want {
		t.Fatalf("Callback = %+v, want %+v", *up.Callback, want)
	}
}

// Telegram can deliver callbacks with pieces missing (inline-mode queries
// have no message, some clients omit the sender). None of them may panic.
func TestCallbackUpdateSkipsPartial(t *testing.T) {
	t.Parallel()
	msg := &tele.Message{ID: 7, Chat: &tele.Chat{ID: 42}}
	sender := &tele.User{ID: 1001}

	cases := []struct {
		name string
		cb   *tele.Callback
		msg  *tele.Message
	}{
		{name: "nil callback", cb: nil, msg: msg},
		{name: "nil message", cb: &tele.Callback{ID: "x", Sender: sender}, msg: nil},
		{name: "no sender", cb: &tele.Callback{ID: "x"}, msg: msg},
		{name: "no chat", cb: &tele.Callback{ID: "x", Sender: sender}, msg: &tele.Message{ID: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, ok := callbackUpdate(tc.cb, tc.msg); ok {
				t.Fatal("partial callback was not skipped")
			}
		})
	}
}

func TestMessageUpdate(t *testing.T) {
	t.Parallel()
	up, ok := messageUpdate(&tele.Message{
		ID:     9,
		Chat:   &tele.Chat{ID: 42},
		Sender: &tele.User{ID: 1001, Username: "ops"},
		Text:   "/menu",
	})
	if !ok {
		t.Fatal("messageUpdate skipped a complete message")
	}
	if up.Message.FromUsername != "ops" || up.Message.Text != "/menu" {
		t.Fatalf("Message = %+v", *up.Message)
	}

	if _, ok := messageUpdate(&tele.Message{ID: 9, Chat: &tele.Chat{ID: 42}}); ok {
		t.Fatal("sender-less message was not skipped")
	}
	if _, ok := messageUpdate(nil); ok {
		t.Fatal("nil message was not skipped")
	}
}
