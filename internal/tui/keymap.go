package tui

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"charm.land/bubbles/v2/key"
)

// KeyConfig overrides a subset of the default key bindings.
type KeyConfig struct {
	MoveTaskLeft  string
	MoveTaskRight string
	ActivityLog   string
	CopyID        string
}

// keyMap represents key map data used by this package.
type keyMap struct {
	quit          key.Binding
	reload        key.Binding
	toggleHelp    key.Binding
	moveLeft      key.Binding
	moveRight     key.Binding
	moveUp        key.Binding
	moveDown      key.Binding
	moveTaskLeft  key.Binding
	moveTaskRight key.Binding
	moveTaskUp    key.Binding
	moveTaskDown  key.Binding
	taskInfo      key.Binding
	activityLog   key.Binding
	copyID        key.Binding
	nextProject   key.Binding
	cancel        key.Binding
}

// newKeyMap constructs key map.
func newKeyMap() keyMap {
	return keyMap{
		quit:          key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		reload:        key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		toggleHelp:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		moveLeft:      key.NewBinding(key.WithKeys("h", "left"), key.WithHelp("h/←", "lane left")),
		moveRight:     key.NewBinding(key.WithKeys("l", "right"), key.WithHelp("l/→", "lane right")),
		moveUp:        key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k/↑", "task up")),
		moveDown:      key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j/↓", "task down")),
		moveTaskLeft:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "move task left")),
		moveTaskRight: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "move task right")),
		moveTaskUp:    key.NewBinding(key.WithKeys("{"), key.WithHelp("{", "reorder up")),
		moveTaskDown:  key.NewBinding(key.WithKeys("}"), key.WithHelp("}", "reorder down")),
		taskInfo:      key.NewBinding(key.WithKeys("i", "enter"), key.WithHelp("i/enter", "task info")),
		activityLog:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "activity log")),
		copyID:        key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "copy task id")),
		nextProject:   key.NewBinding(key.WithKeys("p", "tab"), key.WithHelp("p/tab", "next project")),
		cancel:        key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "cancel drag / close")),
	}
}

// applyConfig applies configured binding overrides.
func (k *keyMap) applyConfig(cfg KeyConfig) {
	configureBinding(&k.moveTaskLeft, cfg.MoveTaskLeft, "[", "move task left")
	configureBinding(&k.moveTaskRight, cfg.MoveTaskRight, "]", "move task right")
	configureBinding(&k.activityLog, cfg.ActivityLog, "g", "activity log")
	configureBinding(&k.copyID, cfg.CopyID, "y", "copy task id")
}

// configureBinding replaces the keys and help of one binding.
func configureBinding(binding *key.Binding, raw, fallback, desc string) {
	keys, help := parseBindingKeys(raw, fallback)
	binding.SetKeys(keys...)
	binding.SetHelp(help, desc)
}

// parseBindingKeys turns one configured key into matcher keys and help text.
func parseBindingKeys(raw, fallback string) ([]string, string) {
	value := raw
	if strings.TrimSpace(value) == "" && value != " " {
		value = fallback
	}
	if value == " " || strings.EqualFold(strings.TrimSpace(value), "space") {
		return []string{" ", "space"}, "space"
	}
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) == 1 {
		r, _ := utf8.DecodeRuneInString(value)
		if unicode.IsUpper(r) {
			return []string{value, "shift+" + strings.ToLower(value)}, value
		}
		return []string{value}, value
	}
	return []string{strings.ToLower(value)}, value
}

// ShortHelp handles short help.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.moveTaskLeft, k.moveTaskRight, k.taskInfo, k.activityLog, k.toggleHelp, k.quit,
	}
}

// FullHelp handles full help.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.moveLeft, k.moveRight, k.moveUp, k.moveDown, k.nextProject},
		{k.moveTaskLeft, k.moveTaskRight, k.moveTaskUp, k.moveTaskDown, k.cancel},
		{k.taskInfo, k.activityLog, k.copyID, k.reload, k.toggleHelp, k.quit},
	}
}
