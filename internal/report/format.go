// Package report renders registry records into Telegram-ready HTML lines.
// Everything here is a pure function of its inputs (time is injected), so
// reports are fully testable without a live registry.
package report

import (
	"fmt"
	"sort"
	"strings"

	"registrybot/internal/registry"
	"registrybot/pkg/tgui"
)

// Options controls report shape.
type Options struct {
	IncludeDead    bool // render the "dead" bucket
	IncludeDetails bool // append heartbeat counts, intervals, metadata
}

var statusEmoji = map[registry.State]string{
	registry.StateDown:    "➖",
	registry.StateUnknown: "❓",
	registry.StateDead:    "⚫️",
	registry.StateAlive:   "➕",
}

const ungrouped = "Ungrouped"

// Services formats a status mapping grouped by status, then by service group.
// Buckets come out in fixed order (down, unknown, [dead], alive): problems
// surface before successes. Output is a line slice; the caller joins and
// handles message-length splitting.
func Services(services map[string]registry.ServiceStatus, opt Options) []string {
	type entry struct {
		key string
		rec registry.ServiceStatus
	}

	byStatusGroup := map[registry.State]map[string][]entry{}
	for key, rec := range services {
		group := strings.TrimSpace(rec.ServiceGroup)
		if group == "" {
			group = ungrouped
		}
		groups := byStatusGroup[rec.Status]
		if groups == nil {
			groups = map[string][]entry{}
			byStatusGroup[rec.Status] = groups
		}
		groups[group] = append(groups[group], entry{key: key, rec: rec})
	}

	order := []registry.State{registry.StateDown, registry.StateUnknown}
	if opt.IncludeDead {
		order = append(order, registry.StateDead)
	}
	order = append(order, registry.StateAlive)

	lines := []string{tgui.B("Services Status:").String(), ""}

	for _, status := range order {
		groups := byStatusGroup[status]
		if len(groups) == 0 {
			continue
		}
		lines = append(lines, statusEmoji[status]+" "+tgui.B(titleState(status)+":").String())

		groupNames := make([]string, 0, len(groups))
		for g := range groups {
			groupNames = append(groupNames, g)
		}
		sort.Strings(groupNames)
		multiGroup := len(groupNames) > 1

		for _, g := range groupNames {
			if multiGroup {
				lines = append(lines, "  📁 "+tgui.B(g+":").String())
			}
			members := groups[g]
			sort.Slice(members, func(i, j int) bool { return members[i].key < members[j].key })
			for _, e := range members {
				line := serviceLine(e.key, e.rec, opt.IncludeDetails)
				if multiGroup {
					line = "    " + line
				}
				lines = append(lines, line)
			}
			if multiGroup {
				lines = append(lines, "")
			}
		}
		lines = append(lines, "")
	}

	return lines
}

func serviceLine(key string, rec registry.ServiceStatus, details bool) string {
	name := rec.Name(key)
	line := tgui.Codef("%-25s", name).String() + "  " + recency(rec.TimeSinceReadable)

	if details {
		interval := ""
		if rec.MedianInterval != nil {
			interval = fmt.Sprintf(", interval: %.1fs", *rec.MedianInterval)
		}
		line += fmt.Sprintf("\n    Heartbeats: %d%s", rec.HeartbeatCount, interval)

		if meta := metadataLine(rec.Metadata); meta != "" {
			line += "\n    Metadata: " + meta
		}
	}
	return line
}

func recency(readable string) string {
	if strings.TrimSpace(readable) == "" {
		return "(never)"
	}
	return "(" + tgui.Esc(readable).String() + " ago)"
}

// metadataLine renders metadata entries except display_name (shown as the
// service label already), keys sorted for deterministic output.
func metadataLine(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		if k == "display_name" {
			continue
		}
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, tgui.Esc(fmt.Sprintf("%s: %v", k, meta[k])).String())
	}
	return strings.Join(parts, ", ")
}

func titleState(s registry.State) string {
	str := string(s)
	if str == "" {
		return ""
	}
	return strings.ToUpper(str[:1]) + str[1:]
}
