package report

import (
	"reflect"
	"strings"
	"testing"

	"registrybot/internal/registry"
)

func statusRec(status registry.State, group string) registry.ServiceStatus {
	return registry.ServiceStatus{
		Service: registry.Service{ServiceGroup: group},
		Status:  status,
	}
}

func headerLines(lines []string) []string {
	var out []string
	for _, l := range lines {
		if strings.Contains(l, "<b>") && strings.HasSuffix(l, ":</b>") {
			out = append(out, l)
		}
	}
	return out
}

func TestServicesBucketOrder(t *testing.T) {
	t.Parallel()
	services := map[string]registry.ServiceStatus{
		"a-alive":   statusRec(registry.StateAlive, ""),
		"b-down":    statusRec(registry.StateDown, ""),
		"c-unknown": statusRec(registry.StateUnknown, ""),
		"d-dead":    statusRec(registry.StateDead, ""),
	}

	lines := Services(services, Options{IncludeDead: true})
	headers := headerLines(lines)
	want := []string{
		"<b>Services Status:</b>",
		"➖ <b>Down:</b>",
		"❓ <b>Unknown:</b>",
		"⚫️ <b>Dead:</b>",
		"➕ <b>Alive:</b>",
	}
	if !reflect.DeepEqual(headers, want) {
		t.Fatalf("headers = %q, want %q", headers, want)
	}

	// Without IncludeDead the dead bucket disappears entirely.
	lines = Services(services, Options{})
	joined := strings.Join(lines, "\n")
	if strings.Contains(joined, "Dead:") || strings.Contains(joined, "d-dead") {
		t.Fatalf("dead bucket rendered in compact mode:\n%s", joined)
	}
}

func TestServicesCompactScenario(t *testing.T) {
	t.Parallel()
	services := map[string]registry.ServiceStatus{
		"svc-a": statusRec(registry.StateDown, ""),
		"svc-b": statusRec(registry.StateAlive, ""),
	}

	lines := Services(services, Options{})
	joined := strings.Join(lines, "\n")

	downAt := strings.Index(joined, "Down:")
	aAt := strings.Index(joined, "svc-a")
	aliveAt := strings.Index(joined, "Alive:")
	bAt := strings.Index(joined, "svc-b")
	if downAt < 0 || aAt < 0 || aliveAt < 0 || bAt < 0 {
		t.Fatalf("missing sections:\n%s", joined)
	}
	if !(downAt < aAt && aAt < aliveAt && aliveAt < bAt) {
		t.Fatalf("unexpected ordering:\n%s", joined)
	}
	if strings.Contains(joined, "📁") {
		t.Fatalf("group sub-header rendered for a single group:\n%s", joined)
	}
}

func TestServicesSortedWithinGroup(t *testing.T) {
	t.Parallel()
	services := map[string]registry.ServiceStatus{
		"zeta":  statusRec(registry.StateAlive, ""),
		"alpha": statusRec(registry.StateAlive, ""),
		"mid":   statusRec(registry.StateAlive, ""),
	}

	lines := Services(services, Options{})
	joined := strings.Join(lines, "\n")
	if !(strings.Index(joined, "alpha") < strings.Index(joined, "mid") &&
		strings.Index(joined, "mid") < strings.Index(joined, "zeta")) {
		t.Fatalf("services not sorted by key:\n%s", joined)
	}
}

func TestServicesGroupingCollapse(t *testing.T) {
	t.Parallel()

	// Single shared group: flat list, no sub-header, no indent.
	one := map[string]registry.ServiceStatus{
		"a": statusRec(registry.StateAlive, "core"),
		"b": statusRec(registry.StateAlive, "core"),
	}
	lines := Services(one, Options{})
	for _, l := range lines {
		if strings.Contains(l, "📁") {
			t.Fatalf("unexpected group sub-header: %q", l)
		}
		if strings.HasPrefix(l, "    <code>") {
			t.Fatalf("unexpected indent: %q", l)
		}
	}

	// Two groups in one bucket: sub-headers and indented members, groups
	// sorted lexicographically.
	two := map[string]registry.ServiceStatus{
		"a": statusRec(registry.StateAlive, "web"),
		"b": statusRec(registry.StateAlive, "batch"),
	}
	lines = Services(two, Options{})
	joined := strings.Join(lines, "\n")
	if strings.Count(joined, "📁") != 2 {
		t.Fatalf("expected 2 group sub-headers:\n%s", joined)
	}
	if strings.Index(joined, "batch") > strings.Index(joined, "web") {
		t.Fatalf("groups not sorted:\n%s", joined)
	}
	indented := 0
	for _, l := range lines {
		if strings.HasPrefix(l, "    <code>") {
			indented++
		}
	}
	if indented != 2 {
		t.Fatalf("expected 2 indented member lines, got %d:\n%s", indented, joined)
	}
}

func TestServicesUngroupedDefault(t *testing.T) {
	t.Parallel()
	services := map[string]registry.ServiceStatus{
		"a": statusRec(registry.StateAlive, ""),
		"b": statusRec(registry.StateAlive, "core"),
	}
	joined := strings.Join(Services(services, Options{}), "\n")
	if !strings.Contains(joined, "Ungrouped") {
		t.Fatalf("missing Ungrouped default group:\n%s", joined)
	}
}

func TestServicesDetails(t *testing.T) {
	t.Parallel()
	interval := 42.5
	services := map[string]registry.ServiceStatus{
		"svc": {
			Service: registry.Service{
				Metadata: map[string]any{
					"display_name": "My Service",
					"version":      "1.2",
					"env":          "prod",
				},
			},
			Status:            registry.StateAlive,
			TimeSinceReadable: "3 minutes",
			HeartbeatCount:    17,
			MedianInterval:    &interval,
		},
	}

	joined := strings.Join(Services(services, Options{IncludeDetails: true}), "\n")
	if !strings.Contains(joined, "My Service") {
		t.Fatalf("display_name fallback not used:\n%s", joined)
	}
	if !strings.Contains(joined, "(3 minutes ago)") {
		t.Fatalf("missing recency:\n%s", joined)
	}
	if !strings.Contains(joined, "Heartbeats: 17, interval: 42.5s") {
		t.Fatalf("missing details line:\n%s", joined)
	}
	// Metadata sorted, display_name excluded.
	if !strings.Contains(joined, "Metadata: env: prod, version: 1.2") {
		t.Fatalf("unexpected metadata rendering:\n%s", joined)
	}

	// Interval omitted when absent; "never" when no heartbeat seen.
	services["svc"] = registry.ServiceStatus{Status: registry.StateAlive, HeartbeatCount: 0}
	joined = strings.Join(Services(services, Options{IncludeDetails: true}), "\n")
	if !strings.Contains(joined, "(never)") {
		t.Fatalf("missing never marker:\n%s", joined)
	}
	if strings.Contains(joined, "interval:") {
		t.Fatalf("interval rendered despite being absent:\n%s", joined)
	}
}

func TestServicesPure(t *testing.T) {
	t.Parallel()
	services := map[string]registry.ServiceStatus{
		"a": statusRec(registry.StateDown, "web"),
		"b": statusRec(registry.StateAlive, "batch"),
		"c": statusRec(registry.StateUnknown, ""),
	}
	opt := Options{IncludeDead: true, IncludeDetails: true}
	first := Services(services, opt)
	for i := 0; i < 5; i++ {
		if got := Services(services, opt); !reflect.DeepEqual(got, first) {
			t.Fatalf("output changed between calls:\n%q\nvs\n%q", first, got)
		}
	}
}
