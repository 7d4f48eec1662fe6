// Package menu models hierarchical button menus:
//   - Menu: a titled, ordered list of options rendered as inline buttons
//   - Option: one selectable entry, optionally expanding into a sub-menu
//
// Menus are immutable after construction and validated up front, so a Menu
// that exists is always renderable. Serialization round-trips losslessly
// through plain maps, YAML and JSON files.
package menu
