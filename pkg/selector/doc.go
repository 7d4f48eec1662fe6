// Package selector correlates inline keyboard taps with the menu that
// produced them.
//
// Registering a menu assigns every option in its tree a compact token that
// fits Telegram's callback_data budget. The transport layer feeds raw
// callback payloads back in via Deliver, and Await resolves them into a
// structured selection carrying the full path from the menu root.
//
// One registration is active per scope (conversation) at a time; registering
// a new menu into a scope invalidates the previous one, so a tap on a stale
// keyboard can never resolve against the wrong menu.
package selector
