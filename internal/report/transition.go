package report

import (
	"fmt"
	"time"

	"registrybot/internal/registry"
	"registrybot/pkg/tgui"
)

func transitionEmoji(to registry.State) string {
	switch to {
	case registry.StateAlive:
		return "✅"
	case registry.StateDown, registry.StateDead:
		return "❌"
	default:
		return "❓"
	}
}

// Transition renders one state change as "emoji from → to (rel)", with the
// optional alert message on an indented continuation line.
func Transition(t registry.Transition, now time.Time) string {
	line := fmt.Sprintf("%s %s → %s (%s)",
		transitionEmoji(t.ToState), t.FromState, t.ToState, Relative(now, t.Timestamp.Time))
	if t.AlertMessage != "" {
		line += "\n    " + tgui.Esc(t.AlertMessage).String()
	}
	return line
}
