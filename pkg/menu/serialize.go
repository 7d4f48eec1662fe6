package menu

import "fmt"

// Wire keys. These match the historical config format, so existing menu
// files keep loading unchanged.
const (
	keyTitle    = "question"
	keyOptions  = "options"
	keyColumns  = "max_per_row"
	keyMenuID   = "menu_id"
	keyText     = "text"
	keyCallback = "callback"
	keySubMenu  = "sub_menu"
)

// Serialize converts the menu into a plain nested map, sub-menus included.
// The result only contains strings, ints, maps and slices, so it marshals
// cleanly to both JSON and YAML.
func (m *Menu) Serialize() map[string]any {
	opts := make([]any, 0, len(m.Options))
	for i := range m.Options {
		o := &m.Options[i]
		od := map[string]any{
			keyText:     o.Text,
			keyCallback: o.Callback,
		}
		if o.SubMenu != nil {
			od[keySubMenu] = o.SubMenu.Serialize()
		}
		opts = append(opts, od)
	}
	return map[string]any{
		keyTitle:   m.Title,
		keyOptions: opts,
		keyColumns: m.Columns,
		keyMenuID:  m.ID,
	}
}

// Deserialize is the inverse of Serialize. A missing max_per_row defaults to
// DefaultColumns; a missing menu_id gets a freshly generated one. The
// resulting tree is validated with the same rules as New.
func Deserialize(data map[string]any) (*Menu, error) {
	m, err := decodeMenu(data)
	if err != nil {
		return nil, err
	}
	if err := m.validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func decodeMenu(data map[string]any) (*Menu, error) {
	title, err := stringField(data, keyTitle, true)
	if err != nil {
		return nil, err
	}

	rawOpts, ok := data[keyOptions].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: menu %q: %q must be a list", ErrValidation, title, keyOptions)
	}
	opts := make([]Option, 0, len(rawOpts))
	for i, raw := range rawOpts {
		om, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: menu %q: option #%d is not a mapping", ErrValidation, title, i+1)
		}
		o, err := decodeOption(om)
		if err != nil {
			return nil, err
		}
		opts = append(opts, o)
	}

	cols, err := intField(data, keyColumns, DefaultColumns)
	if err != nil {
		return nil, fmt.Errorf("%w: menu %q: %v", ErrValidation, title, err)
	}

	id, err := stringField(data, keyMenuID, false)
	if err != nil {
		return nil, err
	}
	if id == "" {
		id = newID()
	}

	return &Menu{Title: title, Options: opts, Columns: cols, ID: id}, nil
}

func decodeOption(data map[string]any) (Option, error) {
	text, err := stringField(data, keyText, true)
	if err != nil {
		return Option{}, err
	}
	callback, err := stringField(data, keyCallback, true)
	if err != nil {
		return Option{}, err
	}
	o := Option{Text: text, Callback: callback}

	if raw, ok := data[keySubMenu]; ok {
		sm, ok := raw.(map[string]any)
		if !ok {
			return Option{}, fmt.Errorf("%w: option %q: %q must be a mapping", ErrValidation, callback, keySubMenu)
		}
		sub, err := decodeMenu(sm)
		if err != nil {
			return Option{}, err
		}
		o.SubMenu = sub
	}
	return o, nil
}

func stringField(data map[string]any, key string, required bool) (string, error) {
	raw, ok := data[key]
	if !ok {
		if required {
			return "", fmt.Errorf("%w: missing field %q", ErrValidation, key)
		}
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: field %q must be a string", ErrValidation, key)
	}
	return s, nil
}

// intField tolerates the numeric types both decoders produce: YAML yields
// int, JSON yields float64.
func intField(data map[string]any, key string, def int) (int, error) {
	raw, ok := data[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		n := int(v)
		if float64(n) != v {
			return 0, fmt.Errorf("field %q must be an integer", key)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("field %q must be an integer", key)
	}
}
