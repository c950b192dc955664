package input

import (
	"fmt"
	"strings"
)

// Key is a named key with its scancode. The zero Key is invalid.
type Key struct {
	name   string
	scan   Scan
	mapped bool
}

func key(name string, code uint16, extended bool) Key {
	return Key{name: name, scan: Scan{Code: code, Extended: extended}, mapped: true}
}

// Custom returns a key for a raw scancode not covered by the named keys.
func Custom(code uint16, extended bool) Key {
	return Key{name: fmt.Sprintf("custom(0x%02X,%t)", code, extended), scan: Scan{Code: code, Extended: extended}, mapped: true}
}

// Scan returns the key's scancode. Keys that need multi-byte sequences,
// such as PrintScreen and PauseBreak, have none.
func (k Key) Scan() (Scan, bool) { return k.scan, k.mapped }

// String returns the key's canonical token.
func (k Key) String() string { return k.name }

// IsModifier reports whether k is a shift, control, alt or windows key.
func (k Key) IsModifier() bool {
	switch k {
	case LShift, RShift, LCtrl, RCtrl, LAlt, RAlt, LWin, RWin:
		return true
	}

	return false
}

var (
	A              = key("a", 0x1e, false)
	B              = key("b", 0x30, false)
	C              = key("c", 0x2e, false)
	D              = key("d", 0x20, false)
	E              = key("e", 0x12, false)
	F              = key("f", 0x21, false)
	G              = key("g", 0x22, false)
	H              = key("h", 0x23, false)
	I              = key("i", 0x17, false)
	J              = key("j", 0x24, false)
	K              = key("k", 0x25, false)
	L              = key("l", 0x26, false)
	M              = key("m", 0x32, false)
	N              = key("n", 0x31, false)
	O              = key("o", 0x18, false)
	P              = key("p", 0x19, false)
	Q              = key("q", 0x10, false)
	R              = key("r", 0x13, false)
	S              = key("s", 0x1f, false)
	T              = key("t", 0x14, false)
	U              = key("u", 0x16, false)
	V              = key("v", 0x2f, false)
	W              = key("w", 0x11, false)
	X              = key("x", 0x2d, false)
	Y              = key("y", 0x15, false)
	Z              = key("z", 0x2c, false)
	Digit0         = key("0", 0x0b, false)
	Digit1         = key("1", 0x02, false)
	Digit2         = key("2", 0x03, false)
	Digit3         = key("3", 0x04, false)
	Digit4         = key("4", 0x05, false)
	Digit5         = key("5", 0x06, false)
	Digit6         = key("6", 0x07, false)
	Digit7         = key("7", 0x08, false)
	Digit8         = key("8", 0x09, false)
	Digit9         = key("9", 0x0a, false)
	F1             = key("f1", 0x3b, false)
	F2             = key("f2", 0x3c, false)
	F3             = key("f3", 0x3d, false)
	F4             = key("f4", 0x3e, false)
	F5             = key("f5", 0x3f, false)
	F6             = key("f6", 0x40, false)
	F7             = key("f7", 0x41, false)
	F8             = key("f8", 0x42, false)
	F9             = key("f9", 0x43, false)
	F10            = key("f10", 0x44, false)
	F11            = key("f11", 0x57, false)
	F12            = key("f12", 0x58, false)
	LShift         = key("lshift", 0x2a, false)
	RShift         = key("rshift", 0x36, false)
	LCtrl          = key("lctrl", 0x1d, false)
	RCtrl          = key("rctrl", 0x1d, true)
	LAlt           = key("lalt", 0x38, false)
	RAlt           = key("ralt", 0x38, true)
	LWin           = key("lwin", 0x5b, true)
	RWin           = key("rwin", 0x5c, true)
	Space          = key("space", 0x39, false)
	Tab            = key("tab", 0x0f, false)
	Enter          = key("enter", 0x1c, false)
	Escape         = key("escape", 0x01, false)
	Backspace      = key("backspace", 0x0e, false)
	Minus          = key("minus", 0x0c, false)
	Equal          = key("equal", 0x0d, false)
	LBracket       = key("lbracket", 0x1a, false)
	RBracket       = key("rbracket", 0x1b, false)
	Semicolon      = key("semicolon", 0x27, false)
	Apostrophe     = key("apostrophe", 0x28, false)
	Comma          = key("comma", 0x33, false)
	Period         = key("period", 0x34, false)
	Slash          = key("slash", 0x35, false)
	Backslash      = key("backslash", 0x2b, false)
	Grave          = key("grave", 0x29, false)
	CapsLock       = key("caps_lock", 0x3a, false)
	Insert         = key("insert", 0x52, true)
	Delete         = key("delete", 0x53, true)
	Home           = key("home", 0x47, true)
	End            = key("end", 0x4f, true)
	PageUp         = key("page_up", 0x49, true)
	PageDown       = key("page_down", 0x51, true)
	ArrowUp        = key("arrow_up", 0x48, true)
	ArrowDown      = key("arrow_down", 0x50, true)
	ArrowLeft      = key("arrow_left", 0x4b, true)
	ArrowRight     = key("arrow_right", 0x4d, true)
	Numpad0        = key("np_0", 0x52, false)
	Numpad1        = key("np_1", 0x4f, false)
	Numpad2        = key("np_2", 0x50, false)
	Numpad3        = key("np_3", 0x51, false)
	Numpad4        = key("np_4", 0x4b, false)
	Numpad5        = key("np_5", 0x4c, false)
	Numpad6        = key("np_6", 0x4d, false)
	Numpad7        = key("np_7", 0x47, false)
	Numpad8        = key("np_8", 0x48, false)
	Numpad9        = key("np_9", 0x49, false)
	NumpadAdd      = key("np_add", 0x4e, false)
	NumpadSubtract = key("np_subtract", 0x4a, false)
	NumpadMultiply = key("np_multiply", 0x37, false)
	NumpadDivide   = key("np_divide", 0x35, true)
	NumpadEnter    = key("np_enter", 0x1c, true)
	NumpadDecimal  = key("np_decimal", 0x53, false)
	NumLock        = key("num_lock", 0x45, false)
	Menu           = key("menu", 0x5d, true)
	PrintScreen    = Key{name: "print_screen"}
	PauseBreak     = Key{name: "pause"}
)

var allKeys = []Key{
	A, B, C, D, E, F, G, H, I, J, K, L, M, N, O, P, Q, R, S, T, U, V, W, X, Y, Z, Digit0, Digit1,
	Digit2, Digit3, Digit4, Digit5, Digit6, Digit7, Digit8, Digit9, F1, F2, F3, F4, F5, F6, F7, F8,
	F9, F10, F11, F12, LShift, RShift, LCtrl, RCtrl, LAlt, RAlt, LWin, RWin, Space, Tab, Enter,
	Escape, Backspace, Minus, Equal, LBracket, RBracket, Semicolon, Apostrophe, Comma, Period, Slash,
	Backslash, Grave, CapsLock, Insert, Delete, Home, End, PageUp, PageDown, ArrowUp, ArrowDown,
	ArrowLeft, ArrowRight, Numpad0, Numpad1, Numpad2, Numpad3, Numpad4, Numpad5, Numpad6, Numpad7,
	Numpad8, Numpad9, NumpadAdd, NumpadSubtract, NumpadMultiply, NumpadDivide, NumpadEnter,
	NumpadDecimal, NumLock, Menu, PrintScreen, PauseBreak,
}

// aliases maps alternative spellings to keys.
var aliases = func() map[string]Key {
	pairs := []struct {
		name string
		key  Key
	}{
		{"left_shift", LShift},
		{"right_shift", RShift},
		{"left_ctrl", LCtrl},
		{"right_ctrl", RCtrl},
		{"left_alt", LAlt},
		{"right_alt", RAlt},
		{"left_win", LWin},
		{"lmeta", LWin},
		{"super", LWin},
		{"meta", LWin},
		{"win", LWin},
		{"right_win", RWin},
		{"rmeta", RWin},
		{"return", Enter},
		{"esc", Escape},
		{"-", Minus},
		{"=", Equal},
		{"[", LBracket},
		{"]", RBracket},
		{";", Semicolon},
		{"'", Apostrophe},
		{"quote", Apostrophe},
		{",", Comma},
		{".", Period},
		{"dot", Period},
		{"/", Slash},
		{"\\", Backslash},
		{"`", Grave},
		{"tilde", Grave},
		{"capslock", CapsLock},
		{"ins", Insert},
		{"del", Delete},
		{"pgup", PageUp},
		{"pageup", PageUp},
		{"pgdn", PageDown},
		{"pagedown", PageDown},
		{"up", ArrowUp},
		{"down", ArrowDown},
		{"left", ArrowLeft},
		{"right", ArrowRight},
		{"numpad0", Numpad0},
		{"numpad1", Numpad1},
		{"numpad2", Numpad2},
		{"numpad3", Numpad3},
		{"numpad4", Numpad4},
		{"numpad5", Numpad5},
		{"numpad6", Numpad6},
		{"numpad7", Numpad7},
		{"numpad8", Numpad8},
		{"numpad9", Numpad9},
		{"numpad_add", NumpadAdd},
		{"numpad_subtract", NumpadSubtract},
		{"numpad_multiply", NumpadMultiply},
		{"numpad_divide", NumpadDivide},
		{"numpad_enter", NumpadEnter},
		{"numpad_decimal", NumpadDecimal},
		{"np_period", NumpadDecimal},
		{"numlock", NumLock},
		{"np_lock", NumLock},
		{"apps", Menu},
		{"context", Menu},
		{"print", PrintScreen},
		{"prtsc", PrintScreen},
		{"break", PauseBreak},
	}

	m := make(map[string]Key, len(pairs))
	for _, p := range pairs {
		m[p.name] = p.key
	}

	return m
}()

// Keys returns every named key.
func Keys() []Key {
	return append([]Key(nil), allKeys...)
}

// ParseKey resolves a key name case-insensitively. Canonical tokens such as
// "a", "f5", "lctrl", "np_1" and "arrow_left" are accepted, as are common
// aliases like "esc", "left" and "numpad1". Dashes count as underscores.
func ParseKey(name string) (Key, bool) {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return Key{}, false
	}

	if k, ok := aliases[s]; ok {
		return k, true
	}

	s = strings.ReplaceAll(s, "-", "_")
	if k, ok := aliases[s]; ok {
		return k, true
	}

	for _, k := range allKeys {
		if k.name == s {
			return k, true
		}
	}

	return Key{}, false
}

// ParseCombo parses a key combination such as "lctrl+lshift+esc". Every key
// but the last is treated as a held modifier.
func ParseCombo(spec string) (mods []Key, main Key, err error) {
	parts := strings.Split(spec, "+")
	keys := make([]Key, 0, len(parts))

	for _, p := range parts {
		k, ok := ParseKey(p)
		if !ok {
			return nil, Key{}, fmt.Errorf("input: unknown key %q in %q", strings.TrimSpace(p), spec)
		}
		keys = append(keys, k)
	}

	return keys[:len(keys)-1], keys[len(keys)-1], nil
}
