// Package digest sends the daily full-status summary, changed or not.
package digest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"registrybot/internal/registry"
	"registrybot/internal/report"
	"registrybot/pkg/logx"
	"registrybot/pkg/tgui"
)

type Registry interface {
	Status(ctx context.Context) (map[string]registry.ServiceStatus, error)
}

type Sender interface {
	SendHTML(ctx context.Context, chatID int64, text string) error
}

type Digest struct {
	reg    Registry
	send   Sender
	chatID int64
	log    logx.Logger
	now    func() time.Time
}

func New(reg Registry, send Sender, chatID int64, log logx.Logger) *Digest {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Digest{reg: reg, send: send, chatID: chatID, log: log, now: time.Now}
}

// Run executes the daily job, forwarding failures to the chat (notice
// delivery failures are logged only).
func (d *Digest) Run(ctx context.Context) {
	if err := d.RunOnce(ctx); err != nil {
		d.log.Error("daily summary failed", logx.Err(err))
		notice := "❌ " + tgui.Esc("Failed to generate daily summary: "+err.Error()).String()
		if serr := d.send.SendHTML(ctx, d.chatID, notice); serr != nil {
			d.log.Error("failure notice undeliverable", logx.Err(serr))
		}
	}
}

func (d *Digest) RunOnce(ctx context.Context) error {
	services, err := d.reg.Status(ctx)
	if err != nil {
		return fmt.Errorf("fetch status: %w", err)
	}
	if len(services) == 0 {
		d.log.Debug("no services registered; skipping summary")
		return nil
	}

	header := fmt.Sprintf("Daily Services Status Summary (%s)", d.now().Format("2006-01-02 15:04:05"))
	lines := []string{"📊 " + tgui.B(header).String(), ""}
	lines = append(lines, report.Services(services, report.Options{IncludeDead: true, IncludeDetails: true})...)

	msg := strings.TrimRight(strings.Join(lines, "\n"), "\n")
	if err := d.send.SendHTML(ctx, d.chatID, msg); err != nil {
		return fmt.Errorf("send summary: %w", err)
	}
	d.log.Info("daily summary sent", logx.Int("services", len(services)))
	return nil
}
