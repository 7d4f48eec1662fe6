package config

import (
	"fmt"
	"strings"
	"time"
)

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Menu     MenuConfig     `json:"menu"`

	// Prompts are optional cron-scheduled menus pushed to a chat without a
	// user asking first.
	Prompts []PromptConfig `json:"prompts,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID is the default destination for scheduled prompts.
	ChatID int64 `json:"chat_id,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
	// SendRatePerSec paces outbound API calls. 0 disables pacing.
	SendRatePerSec int `json:"send_rate_per_sec,omitempty"`
}

type LoggingConfig struct {
	Level   string        `json:"level,omitempty"`
	Console *bool         `json:"console,omitempty"` // nil means true
	File    LogFileConfig `json:"file,omitempty"`
}

type LogFileConfig struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

// MenuConfig controls the interactive /menu flow and selection semantics.
//
// All durations are Go duration strings (e.g. "30s", "5m").
type MenuConfig struct {
	// File is the YAML/JSON menu definition shown on /menu.
	File string `json:"file"`
	// Command that triggers the menu, without the slash. Default "menu".
	Command string `json:"command,omitempty"`
	// SelectTimeout bounds one await cycle. Default "5m".
	SelectTimeout string `json:"select_timeout,omitempty"`
	// DeleteOnSelect retracts the keyboard message after a leaf selection.
	DeleteOnSelect bool `json:"delete_on_select,omitempty"`
	// MaxInvalid is how many unmatched callback payloads one await tolerates
	// before giving up. Default 5.
	MaxInvalid int `json:"max_invalid,omitempty"`
	// RegistrationTTL expires abandoned registrations. "0s" disables expiry.
	RegistrationTTL string `json:"registration_ttl,omitempty"`
}

type PromptConfig struct {
	// Schedule is a cron expression ("*/30 * * * *" or "@daily").
	Schedule string `json:"schedule"`
	// File is the menu definition to push.
	File string `json:"file"`
	// ChatID overrides telegram.chat_id for this prompt.
	ChatID int64 `json:"chat_id,omitempty"`
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return fmt.Errorf("config: telegram.token is required")
	}
	if strings.TrimSpace(c.Menu.File) == "" {
		return fmt.Errorf("config: menu.file is required")
	}
	if c.Menu.MaxInvalid < 0 {
		return fmt.Errorf("config: menu.max_invalid must be >= 0")
	}
	for i, p := range c.Prompts {
		if strings.TrimSpace(p.Schedule) == "" {
			return fmt.Errorf("config: prompts[%d].schedule is required", i)
		}
		if strings.TrimSpace(p.File) == "" {
			return fmt.Errorf("config: prompts[%d].file is required", i)
		}
		if p.ChatID == 0 && c.Telegram.ChatID == 0 {
			return fmt.Errorf("config: prompts[%d] needs chat_id (or telegram.chat_id)", i)
		}
	}
	if _, err := c.PollTimeout(); err != nil {
		return err
	}
	if _, err := c.SelectTimeout(); err != nil {
		return err
	}
	if _, err := c.RegistrationTTL(); err != nil {
		return err
	}
	return nil
}

func (c *Config) PollTimeout() (time.Duration, error) {
	return durationOr("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
}

func (c *Config) SelectTimeout() (time.Duration, error) {
	return durationOr("menu.select_timeout", c.Menu.SelectTimeout, 5*time.Minute)
}

func (c *Config) RegistrationTTL() (time.Duration, error) {
	return duration("menu.registration_ttl", c.Menu.RegistrationTTL)
}

// duration parses a config duration string. Empty means zero (the caller's
// "disabled"); negative values are rejected.
func duration(field, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	switch {
	case err != nil:
		return 0, fmt.Errorf("config: %s: bad duration %q: %w", field, raw, err)
	case d < 0:
		return 0, fmt.Errorf("config: %s: negative duration %q", field, raw)
	}
	return d, nil
}

// durationOr is duration with a default for empty or zero values.
func durationOr(field, raw string, def time.Duration) (time.Duration, error) {
	d, err := duration(field, raw)
	if err != nil {
		return 0, err
	}
	if d == 0 {
		return def, nil
	}
	return d, nil
}

func (c *Config) MenuCommand() string {
	cmd := strings.TrimSpace(strings.TrimPrefix(c.Menu.Command, "/"))
	if cmd == "" {
		return "menu"
	}
	return cmd
}

func (c *Config) ConsoleLogging() bool {
	return c.Logging.Console == nil || *c.Logging.Console
}
