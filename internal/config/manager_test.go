package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validYAML = `
telegram:
  token: "123:abc"
  chat_id: 42
menu:
  file: "./menu.yaml"
  select_timeout: "90s"
  delete_on_select: true
`

func TestParseYAML(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || cfg.Telegram.ChatID != 42 {
		t.Fatalf("unexpected telegram config: %+v", cfg.Telegram)
	}
	if !cfg.Menu.DeleteOnSelect {
		t.Fatal("delete_on_select not parsed")
	}
	if d, err := cfg.SelectTimeout(); err != nil || d != 90*time.Second {
		t.Fatalf("SelectTimeout = %v, %v", d, err)
	}
	if cfg.MenuCommand() != "menu" {
		t.Fatalf("MenuCommand = %q, want default menu", cfg.MenuCommand())
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestParseJSON(t *testing.T) {
	t.Parallel()
	m := NewManager(writeConfig(t, "config.json",
		`{"telegram":{"token":"t"},"menu":{"file":"m.yaml","command":"/pick"}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MenuCommand() != "pick" {
		t.Fatalf("MenuCommand = %q, want pick", cfg.MenuCommand())
	}
}

func TestParseRejects(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{name: "unknown field", file: "c.yaml", content: validYAML + "\nsurprise: 1\n"},
		{name: "missing token", file: "c.yaml", content: "menu:\n  file: m.yaml\n"},
		{name: "missing menu file", file: "c.yaml", content: "telegram:\n  token: t\n"},
		{name: "bad duration", file: "c.yaml", content: "telegram:\n  token: t\nmenu:\n  file: m.yaml\n  select_timeout: soon\n"},
		{name: "prompt without schedule", file: "c.yaml", content: validYAML + "prompts:\n  - file: m.yaml\n"},
		{name: "trailing data", file: "c.json", content: `{"telegram":{"token":"t"},"menu":{"file":"m"}}{}`},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager(writeConfig(t, tt.file, tt.content))
			if _, err := m.Load(); err == nil {
				t.Fatal("expected parse/validate error")
			}
		})
	}
}

func TestPromptValidation(t *testing.T) {
	t.Parallel()
	// chat_id can come from either the prompt or the telegram default.
	m := NewManager(writeConfig(t, "c.yaml", validYAML+`prompts:
  - schedule: "@daily"
    file: "daily.yaml"
`))
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}

	noDefault := `
telegram:
  token: t
menu:
  file: m.yaml
prompts:
  - schedule: "@daily"
    file: daily.yaml
`
	m2 := NewManager(writeConfig(t, "c2.yaml", noDefault))
	if _, err := m2.Load(); err == nil {
		t.Fatal("prompt without any chat_id should be rejected")
	}
}

func TestDurationFields(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		raw  string
		def  time.Duration
		want time.Duration
		ok   bool
	}{
		{name: "empty uses default", raw: "", def: 10 * time.Second, want: 10 * time.Second, ok: true},
		{name: "explicit wins", raw: "250ms", def: time.Minute, want: 250 * time.Millisecond, ok: true},
		{name: "zero uses default", raw: "0s", def: time.Minute, want: time.Minute, ok: true},
		{name: "garbage", raw: "soon", def: time.Minute, ok: false},
		{name: "negative", raw: "-5s", def: time.Minute, ok: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := durationOr("menu.select_timeout", tc.raw, tc.def)
			if tc.ok != (err == nil) {
				t.Fatalf("err = %v, want ok=%v", err, tc.ok)
			}
			if tc.ok && got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}

	if d, err := duration("menu.registration_ttl", " "); err != nil || d != 0 {
		t.Fatalf("blank ttl: got %v, %v; want 0, nil", d, err)
	}
}
