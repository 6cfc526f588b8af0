// Package alert polls the registry for unacknowledged state transitions and
// relays them to the configured chat as a single combined message per cycle.
package alert

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"registrybot/internal/registry"
	"registrybot/internal/report"
	"registrybot/pkg/logx"
	"registrybot/pkg/tgui"
)

// Registry is the slice of the registry client the dispatcher needs.
type Registry interface {
	PendingTransitions(ctx context.Context) ([]registry.Transition, error)
	Status(ctx context.Context) (map[string]registry.ServiceStatus, error)
	MarkAlerted(ctx context.Context, t registry.Transition) error
}

// Sender delivers one HTML message to a chat.
type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

type Dispatcher struct {
	reg    Registry
	send   Sender
	chatID int64
	log    logx.Logger
	now    func() time.Time
}

func New(reg Registry, send Sender, chatID int64, log logx.Logger) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{reg: reg, send: send, chatID: chatID, log: log, now: time.Now}
}

// Run executes one poll cycle and reports failures to the chat so operators
// know monitoring itself is degraded. A failure to deliver that notice is
// logged only, never retried.
func (d *Dispatcher) Run(ctx context.Context) {
	if err := d.RunOnce(ctx); err != nil {
		d.log.Error("alert poll failed", logx.Err(err))
		notice := "❌ " + tgui.Esc("Failed to check service transitions: "+err.Error()).String()
		if serr := d.send.SendHTML(ctx, d.chatID, notice); serr != nil {
			d.log.Error("failure notice undeliverable", logx.Err(serr))
		}
	}
}

// RunOnce fetches pending transitions, sends one combined alert, then marks
// each included transition alerted. Acknowledgment strictly follows a
// successful send: if delivery fails, nothing is acknowledged and the next
// cycle re-sends. MarkAlerted is idempotent on the registry side, so the
// crash-between-send-and-ack retry is harmless.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	pending, err := d.reg.PendingTransitions(ctx)
	if err != nil {
		return fmt.Errorf("fetch transitions: %w", err)
	}
	if len(pending) == 0 {
		d.log.Debug("no pending transitions")
		return nil
	}

	// Display names and the "needing attention" tail both come from /status;
	// a failed fetch degrades to a transitions-only alert.
	statuses, err := d.reg.Status(ctx)
	if err != nil {
		d.log.Warn("status fetch failed; sending transitions only", logx.Err(err))
		statuses = nil
	}

	msg := d.compose(pending, statuses)
	if err := d.send.SendHTML(ctx, d.chatID, msg); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}

	acked := 0
	for _, t := range pending {
		if err := d.reg.MarkAlerted(ctx, t); err != nil {
			if alreadyAcked(err) {
				d.log.Debug("transition already acknowledged",
					logx.String("service", t.ServiceKey))
				continue
			}
			// Leave it for the next cycle; the registry may re-surface it.
			d.log.Error("mark-alerted failed",
				logx.String("service", t.ServiceKey), logx.Err(err))
			continue
		}
		acked++
	}

	d.log.Info("alert sent",
		logx.Int("transitions", len(pending)), logx.Int("acked", acked))
	return nil
}

func (d *Dispatcher) compose(pending []registry.Transition, statuses map[string]registry.ServiceStatus) string {
	now := d.now()

	byService := map[string][]registry.Transition{}
	for _, t := range pending {
		byService[t.ServiceKey] = append(byService[t.ServiceKey], t)
	}
	keys := make([]string, 0, len(byService))
	for k := range byService {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := []string{"🚨 " + tgui.B("Service state changes:").String(), ""}
	for _, key := range keys {
		name := key
		if rec, ok := statuses[key]; ok {
			name = rec.Name(key)
		}
		lines = append(lines, tgui.B(name).String())
		for _, t := range byService[key] {
			lines = append(lines, report.Transition(t, now))
		}
		lines = append(lines, "")
	}

	if troubled := troubledOnly(statuses); len(troubled) > 0 {
		lines = append(lines, report.Services(troubled, report.Options{IncludeDetails: true})...)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// troubledOnly keeps the services currently needing attention (down/unknown).
func troubledOnly(statuses map[string]registry.ServiceStatus) map[string]registry.ServiceStatus {
	out := map[string]registry.ServiceStatus{}
	for key, rec := range statuses {
		if rec.Status == registry.StateDown || rec.Status == registry.StateUnknown {
			out[key] = rec
		}
	}
	return out
}

// alreadyAcked treats 404/409 from mark-alerted as "acknowledged elsewhere".
// The endpoint is documented idempotent, but this keeps a crash-retry from
// wedging the cycle if the registry rejects a duplicate instead.
func alreadyAcked(err error) bool {
	var he *registry.HTTPError
	if errors.As(err, &he) {
		return he.Status == http.StatusNotFound || he.Status == http.StatusConflict
	}
	return false
}
