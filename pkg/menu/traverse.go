package menu

// Walk visits every option of the tree in pre-order (an option before its
// sub-menu, siblings in display order). The path passed to fn runs from the
// root-level option down to and including the visited one; it is only valid
// for the duration of the call. Returning false stops the walk.
func (m *Menu) Walk(fn func(path []string, o *Option) bool) {
	m.walk(nil, fn)
}

func (m *Menu) walk(prefix []string, fn func(path []string, o *Option) bool) bool {
	for i := range m.Options {
		o := &m.Options[i]
		path := append(prefix, o.Callback)
		if !fn(path, o) {
			return false
		}
		if o.SubMenu != nil {
			if !o.SubMenu.walk(path, fn) {
				return false
			}
		}
	}
	return true
}

// FindOption returns the first option anywhere in the tree whose callback id
// matches, searching depth-first in pre-order. Because callback ids only have
// to be unique among direct siblings, the same id may appear on different
// branches; in that case the pre-order-first match wins. Callers that need
// unambiguous resolution should use registration tokens instead.
func (m *Menu) FindOption(callback string) *Option {
	var found *Option
	m.Walk(func(_ []string, o *Option) bool {
		if o.Callback == callback {
			found = o
			return false
		}
		return true
	})
	return found
}

// CallbackIDs returns every callback id in the tree in pre-order, sub-menus
// included. Useful for collision checks before registration.
func (m *Menu) CallbackIDs() []string {
	var ids []string
	m.Walk(func(_ []string, o *Option) bool {
		ids = append(ids, o.Callback)
		return true
	})
	return ids
}
