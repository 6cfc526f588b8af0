package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"registrybot/internal/registry"
	"registrybot/internal/report"
	"registrybot/pkg/tgui"
)

const defaultHistoryLimit = 10

func (b *Bot) handleStart(c tele.Context) error {
	name := "there"
	if s := c.Sender(); s != nil {
		name = strings.TrimSpace(s.FirstName + " " + s.LastName)
	}
	return b.reply(c, fmt.Sprintf("Hello, %s!\nWelcome to %s!\nUse /help to see available commands.",
		tgui.B(name), appName))
}

func (b *Bot) handleHelp(c tele.Context) error {
	return b.reply(c, tgui.Esc(fmt.Sprintf(
		"This is %s.\n"+
			"Available commands:\n"+
			"/start - Start the bot\n"+
			"/help - Show this help message\n"+
			"\nStatus Commands:\n"+
			"/status - Quick status check (grouped by status and service group)\n"+
			"/status_full - Detailed status with all services and groups\n"+
			"/history <service_key> [limit] - View service state transition history\n"+
			"\nSettings Commands:\n"+
			"/settings [service_key] - Show service settings\n"+
			"/toggle_alerts [service_key] - Enable/disable alerts\n"+
			"/set_service_name [service_key] [name] - Set service display name\n"+
			"\nOther Commands:\n"+
			"/cancel - Abort an in-progress selection",
		appName)).String())
}

func (b *Bot) handleStatus(c tele.Context) error {
	return b.sendStatus(c, report.Options{})
}

func (b *Bot) handleStatusFull(c tele.Context) error {
	return b.sendStatus(c, report.Options{IncludeDead: true, IncludeDetails: true})
}

func (b *Bot) sendStatus(c tele.Context, opt report.Options) error {
	ctx, cancel := reqCtx()
	defer cancel()

	services, err := b.reg.Status(ctx)
	if err != nil {
		return b.fail(c, "get services status", err)
	}
	if len(services) == 0 {
		return b.reply(c, "No services registered yet.")
	}
	return b.reply(c, strings.Join(report.Services(services, opt), "\n"))
}

func (b *Bot) handleHistory(c tele.Context) error {
	args := c.Args()

	limit := defaultHistoryLimit
	if len(args) >= 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			if rerr := b.reply(c, "❌ Invalid limit value. Using default (10)."); rerr != nil {
				return rerr
			}
		} else {
			limit = n
		}
	}

	if len(args) == 0 {
		return b.askService(c, flowHistory, limit,
			"Which service would you like to see the history for?")
	}
	return b.runHistory(c, args[0], limit)
}

func (b *Bot) runHistory(c tele.Context, serviceKey string, limit int) error {
	ctx, cancel := reqCtx()
	defer cancel()

	svc, err := b.lookupService(ctx, serviceKey)
	if err != nil {
		return b.fail(c, "get service history", err)
	}
	name := svc.Name(serviceKey)

	transitions, err := b.reg.History(ctx, serviceKey, limit)
	if err != nil {
		return b.fail(c, "get service history", err)
	}
	if len(transitions) == 0 {
		return b.reply(c, tgui.Esc(fmt.Sprintf("No state transitions found for service '%s'.", name)).String())
	}

	now := b.now()
	lines := []string{tgui.B("State History for " + name + ":").String(), ""}
	for _, t := range transitions {
		lines = append(lines, report.Transition(t, now))
	}
	return b.reply(c, strings.Join(lines, "\n"))
}

func (b *Bot) handleSettings(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return b.askService(c, flowSettings, 0,
			"Which service would you like to see the settings for?")
	}
	return b.runSettings(c, args[0])
}

func (b *Bot) runSettings(c tele.Context, serviceKey string) error {
	ctx, cancel := reqCtx()
	defer cancel()

	svc, err := b.lookupService(ctx, serviceKey)
	if err != nil {
		return b.fail(c, "get service settings", err)
	}

	alerts := "Disabled"
	if svc.AlertsOn() {
		alerts = "Enabled"
	}
	lines := []string{
		tgui.B("Settings for " + serviceKey + ":").String(),
		"",
		"• Display Name: " + orNotSet(displayNameOf(svc)),
		"• Alerts: " + alerts,
		"• Service Type: " + orNotSet(svc.ServiceType),
		"• Service Group: " + orNotSet(svc.ServiceGroup),
		"• Expected Period: " + secondsOrNotSet(svc.ExpectedPeriod),
		"• Dead After: " + secondsOrNotSet(svc.DeadAfter),
	}
	return b.reply(c, strings.Join(lines, "\n"))
}

func (b *Bot) handleToggleAlerts(c tele.Context) error {
	args := c.Args()
	if len(args) == 0 {
		return b.askService(c, flowToggle, 0,
			"Which service would you like to toggle alerts for?")
	}
	return b.runToggleAlerts(c, args[0])
}

func (b *Bot) runToggleAlerts(c tele.Context, serviceKey string) error {
	ctx, cancel := reqCtx()
	defer cancel()

	svc, err := b.lookupService(ctx, serviceKey)
	if err != nil {
		return b.fail(c, "toggle alerts", err)
	}

	enable := !svc.AlertsOn()
	err = b.reg.Configure(ctx, registry.ConfigureRequest{
		ServiceKey:    serviceKey,
		AlertsEnabled: &enable,
	})
	if err != nil {
		return b.fail(c, "toggle alerts", err)
	}

	state := "disabled 🔕"
	if enable {
		state = "enabled 🔔"
	}
	return b.reply(c, "✅ "+tgui.Esc(fmt.Sprintf("Alerts %s for service '%s'", state, svc.Name(serviceKey))).String())
}

func (b *Bot) handleSetServiceName(c tele.Context) error {
	args := c.Args()
	switch len(args) {
	case 0:
		return b.askService(c, flowSetName, 0,
			"Which service would you like to rename?")
	case 1:
		return b.askNewName(c, args[0])
	default:
		return b.runSetName(c, args[0], strings.Join(args[1:], " "))
	}
}

// askNewName is the second step of the rename flow: the next plain-text
// message from this user is consumed as the display name.
func (b *Bot) askNewName(c tele.Context, serviceKey string) error {
	b.sessions.put(sessKeyOf(c), &session{
		kind:       flowSetName,
		stage:      stageName,
		serviceKey: serviceKey,
	})
	return b.reply(c, fmt.Sprintf("Reply with the new display name for %s (or /cancel).",
		tgui.Code(serviceKey)))
}

func (b *Bot) runSetName(c tele.Context, serviceKey, name string) error {
	ctx, cancel := reqCtx()
	defer cancel()

	if _, err := b.lookupService(ctx, serviceKey); err != nil {
		return b.fail(c, "set service name", err)
	}
	err := b.reg.Configure(ctx, registry.ConfigureRequest{
		ServiceKey:  serviceKey,
		DisplayName: name,
	})
	if err != nil {
		return b.fail(c, "set service name", err)
	}
	return b.reply(c, "✅ "+tgui.Esc(fmt.Sprintf("Display name for service '%s' set to '%s'", serviceKey, name)).String())
}

func (b *Bot) handleCancel(c tele.Context) error {
	key := sessKeyOf(c)
	if _, ok := b.sessions.get(key); !ok {
		return b.reply(c, "Nothing to cancel.")
	}
	b.sessions.delete(key)
	return b.reply(c, "Operation cancelled.")
}

// handleText only matters while a rename session awaits its second argument;
// all other plain text is ignored.
func (b *Bot) handleText(c tele.Context) error {
	key := sessKeyOf(c)
	s, ok := b.sessions.get(key)
	if !ok || s.stage != stageName {
		return nil
	}
	name := strings.TrimSpace(c.Text())
	if name == "" {
		return b.reply(c, "❌ Display name cannot be empty. Try again or /cancel.")
	}
	b.sessions.delete(key)
	return b.runSetName(c, s.serviceKey, name)
}

// lookupService resolves one service from the registry's current set,
// translating a missing key into NotFoundError so no further calls are made.
func (b *Bot) lookupService(ctx context.Context, serviceKey string) (registry.Service, error) {
	services, err := b.reg.Services(ctx)
	if err != nil {
		return registry.Service{}, err
	}
	svc, ok := services[serviceKey]
	if !ok {
		return registry.Service{}, &registry.NotFoundError{ServiceKey: serviceKey}
	}
	return svc, nil
}

func displayNameOf(svc registry.Service) string {
	if strings.TrimSpace(svc.DisplayName) != "" {
		return svc.DisplayName
	}
	if v, ok := svc.Metadata["display_name"].(string); ok {
		return v
	}
	return ""
}

func orNotSet(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not set"
	}
	return tgui.Esc(s).String()
}

func secondsOrNotSet(v *float64) string {
	if v == nil {
		return "Not set"
	}
	return fmt.Sprintf("%g seconds", *v)
}
