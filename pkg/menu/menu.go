package menu

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"unicode/utf8"
)

// MaxLabelRunes is Telegram's inline button label budget. Longer labels are
// clipped by clients, so we reject them at construction instead.
const MaxLabelRunes = 64

// DefaultColumns is how many buttons share a keyboard row unless the menu
// says otherwise.
const DefaultColumns = 2

// ErrValidation marks a malformed menu definition. Match with errors.Is.
var ErrValidation = errors.New("menu: invalid definition")

// Option is one selectable entry. Callback identifies the option among its
// direct siblings; it does not have to be unique across the whole tree.
// SubMenu, when set, is shown after the option is picked.
type Option struct {
	Text     string
	Callback string
	SubMenu  *Menu
}

// Menu is a titled, ordered set of options. Option order is display order.
// ID is generated at construction and identifies the menu for the lifetime
// of the process.
type Menu struct {
	Title   string
	Options []Option
	Columns int
	ID      string
}

// New builds a validated Menu. It fails when options is empty, columns < 1,
// two direct siblings share a callback id, a label is empty or longer than
// MaxLabelRunes, or a callback id is empty or non-ASCII. Nested sub-menus
// are validated with the same rules.
func New(title string, options []Option, columns int) (*Menu, error) {
	m := &Menu{Title: title, Options: options, Columns: columns, ID: newID()}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Menu) validate() error {
	if len(m.Options) == 0 {
		return fmt.Errorf("%w: menu %q has no options", ErrValidation, m.Title)
	}
	if m.Columns < 1 {
		return fmt.Errorf("%w: menu %q: columns must be >= 1, got %d", ErrValidation, m.Title, m.Columns)
	}
	seen := make(map[string]struct{}, len(m.Options))
	for i := range m.Options {
		o := &m.Options[i]
		if err := o.validate(); err != nil {
			return err
		}
		if _, dup := seen[o.Callback]; dup {
			return fmt.Errorf("%w: menu %q: duplicate sibling callback %q", ErrValidation, m.Title, o.Callback)
		}
		seen[o.Callback] = struct{}{}
		if o.SubMenu != nil {
			if err := o.SubMenu.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *Option) validate() error {
	if o.Text == "" {
		return fmt.Errorf("%w: option %q has empty text", ErrValidation, o.Callback)
	}
	if utf8.RuneCountInString(o.Text) > MaxLabelRunes {
		return fmt.Errorf("%w: option %q: label exceeds %d characters", ErrValidation, o.Callback, MaxLabelRunes)
	}
	if o.Callback == "" {
		return fmt.Errorf("%w: option %q has empty callback id", ErrValidation, o.Text)
	}
	for i := 0; i < len(o.Callback); i++ {
		if o.Callback[i] < 0x21 || o.Callback[i] > 0x7e {
			return fmt.Errorf("%w: option %q: callback id must be printable ASCII", ErrValidation, o.Text)
		}
	}
	return nil
}

// newID returns an 8-char hex menu id. crypto/rand never fails on supported
// platforms; if it somehow does, the zero bytes still produce a valid id and
// registration-level collision checks catch the rest.
func newID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
