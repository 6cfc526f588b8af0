package bot

import (
	"context"
	"errors"
	"testing"

	"registrybot/internal/registry"
)

type fakeRegistry struct {
	services map[string]registry.Service
	err      error
	calls    int
}

func (f *fakeRegistry) Services(context.Context) (map[string]registry.Service, error) {
	f.calls++
	return f.services, f.err
}

func (f *fakeRegistry) Status(context.Context) (map[string]registry.ServiceStatus, error) {
	return nil, errors.New("not used")
}

func (f *fakeRegistry) History(context.Context, string, int) ([]registry.Transition, error) {
	return nil, errors.New("not used")
}

func (f *fakeRegistry) Configure(context.Context, registry.ConfigureRequest) error {
	return errors.New("not used")
}

func TestLookupServiceUnknownKey(t *testing.T) {
	t.Parallel()
	reg := &fakeRegistry{services: map[string]registry.Service{
		"svc-a": {ServiceKey: "svc-a"},
	}}
	b := &Bot{reg: reg}

	_, err := b.lookupService(context.Background(), "nope")
	var nf *registry.NotFoundError
	if !errors.As(err, &nf) || nf.ServiceKey != "nope" {
		t.Fatalf("expected NotFoundError for %q, got %v", "nope", err)
	}

	svc, err := b.lookupService(context.Background(), "svc-a")
	if err != nil || svc.ServiceKey != "svc-a" {
		t.Fatalf("lookup known key: %v, %+v", err, svc)
	}
}

func TestLookupServicePropagatesListError(t *testing.T) {
	t.Parallel()
	reg := &fakeRegistry{err: errors.New("boom")}
	b := &Bot{reg: reg}

	_, err := b.lookupService(context.Background(), "svc-a")
	var nf *registry.NotFoundError
	if err == nil || errors.As(err, &nf) {
		t.Fatalf("list failure must not masquerade as not-found: %v", err)
	}
}

func TestDisplayNameOf(t *testing.T) {
	t.Parallel()
	if got := displayNameOf(registry.Service{DisplayName: "First Class"}); got != "First Class" {
		t.Fatalf("got %q", got)
	}
	if got := displayNameOf(registry.Service{Metadata: map[string]any{"display_name": "Meta Name"}}); got != "Meta Name" {
		t.Fatalf("got %q", got)
	}
	if got := displayNameOf(registry.Service{}); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestSettingsPlaceholders(t *testing.T) {
	t.Parallel()
	if got := orNotSet(""); got != "Not set" {
		t.Fatalf("orNotSet(\"\") = %q", got)
	}
	if got := orNotSet("a <b>"); got != "a &lt;b&gt;" {
		t.Fatalf("orNotSet must escape: %q", got)
	}
	if got := secondsOrNotSet(nil); got != "Not set" {
		t.Fatalf("secondsOrNotSet(nil) = %q", got)
	}
	v := 60.0
	if got := secondsOrNotSet(&v); got != "60 seconds" {
		t.Fatalf("secondsOrNotSet(60) = %q", got)
	}
}
