package selector

import (
	"fmt"

	tele "gopkg.in/telebot.v4"

	"telebutton/pkg/menu"
)

// Keyboard renders m as an inline keyboard whose buttons carry this
// registration's tokens. m may be the registered root or any sub-menu inside
// it (sub-menus reuse the tokens assigned when the root was registered, so
// navigating deeper needs no re-registration). Buttons are laid out in rows
// of at most m.Columns, in option order.
func Keyboard(reg *Registration, m *menu.Menu) (*tele.ReplyMarkup, error) {
	rm := &tele.ReplyMarkup{}

	var rows []tele.Row
	row := make([]tele.Btn, 0, m.Columns)
	for i := range m.Options {
		o := &m.Options[i]
		tok, ok := reg.Token(o)
		if !ok {
			return nil, fmt.Errorf("%w: option %q is not part of registration %s", ErrNotFound, o.Callback, reg.MenuID)
		}
		row = append(row, tele.Btn{Text: o.Text, Data: tok})
		if len(row) == m.Columns {
			rows = append(rows, rm.Row(row...))
			row = make([]tele.Btn, 0, m.Columns)
		}
	}
	if len(row) > 0 {
		rows = append(rows, rm.Row(row...))
	}

	rm.Inline(rows...)
	return rm, nil
}
