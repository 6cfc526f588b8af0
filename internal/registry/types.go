package registry

import (
	"fmt"
	"strings"
	"time"
)

// State is the liveness classification assigned by the registry.
type State string

const (
	StateAlive   State = "alive"
	StateDown    State = "down"
	StateUnknown State = "unknown"
	StateDead    State = "dead"
)

// Service is one registered service as returned by GET /services.
//
// DisplayName is the canonical field; older registries nest it under
// metadata["display_name"], which Name() still honors on the read path.
type Service struct {
	ServiceKey     string         `json:"service_key"`
	DisplayName    string         `json:"display_name,omitempty"`
	ServiceGroup   string         `json:"service_group,omitempty"`
	ServiceType    string         `json:"service_type,omitempty"`
	AlertsEnabled  *bool          `json:"alerts_enabled,omitempty"`
	ExpectedPeriod *float64       `json:"expected_period,omitempty"` // seconds
	DeadAfter      *float64       `json:"dead_after,omitempty"`      // seconds
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// Name returns the human label for the service, falling back to key.
func (s Service) Name(key string) string {
	if n := strings.TrimSpace(s.DisplayName); n != "" {
		return n
	}
	if v, ok := s.Metadata["display_name"]; ok {
		if n, ok := v.(string); ok && strings.TrimSpace(n) != "" {
			return strings.TrimSpace(n)
		}
	}
	return key
}

// AlertsOn reports whether alerts are enabled (default true when omitted).
func (s Service) AlertsOn() bool {
	return s.AlertsEnabled == nil || *s.AlertsEnabled
}

// ServiceStatus is a status-augmented record from GET /status.
type ServiceStatus struct {
	Service
	Status            State    `json:"status"`
	TimeSinceReadable string   `json:"time_since_last_heartbeat_readable,omitempty"`
	HeartbeatCount    int      `json:"heartbeat_count"`
	MedianInterval    *float64 `json:"median_interval,omitempty"` // seconds
}

// Transition is one recorded state change.
type Transition struct {
	ID           string    `json:"id,omitempty"`
	ServiceKey   string    `json:"service_key"`
	FromState    State     `json:"from_state"`
	ToState      State     `json:"to_state"`
	Timestamp    Timestamp `json:"timestamp"`
	AlertMessage string    `json:"alert_message,omitempty"`
	Alerted      bool      `json:"alerted"`
}

// ConfigureRequest is the body of POST /configure-service.
// Nil/empty fields are omitted so the registry only touches what is set.
type ConfigureRequest struct {
	ServiceKey    string         `json:"service_key"`
	AlertsEnabled *bool          `json:"alerts_enabled,omitempty"`
	DisplayName   string         `json:"display_name,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// Timestamp parses the registry's ISO-8601 timestamps, which may or may not
// carry a timezone offset.
type Timestamp struct {
	time.Time
}

var tsLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range tsLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("registry: invalid timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + t.Time.Format(time.RFC3339Nano) + `"`), nil
}
