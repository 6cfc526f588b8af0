// Package bot wires the Telegram transport to the registry client: command
// handlers, interactive service selection, and rate-limited delivery.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"registrybot/internal/registry"
	"registrybot/pkg/logx"
	"registrybot/pkg/tgui"
)

// Registry is the slice of the registry client the handlers need.
type Registry interface {
	Services(ctx context.Context) (map[string]registry.Service, error)
	Status(ctx context.Context) (map[string]registry.ServiceStatus, error)
	History(ctx context.Context, serviceKey string, limit int) ([]registry.Transition, error)
	Configure(ctx context.Context, req registry.ConfigureRequest) error
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	SessionTTL  time.Duration // interactive prompt expiry (default 5m)
}

type Bot struct {
	tb       *tele.Bot
	reg      Registry
	log      logx.Logger
	sessions *sessionStore
	limiter  *rate.Limiter
	now      func() time.Time
}

const appName = "Service Registry Bot"

const handlerTimeout = 30 * time.Second

func New(cfg Config, reg Registry, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("bot: telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tb, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("bot: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	b := &Bot{
		tb:       tb,
		reg:      reg,
		log:      log,
		sessions: newSessionStore(cfg.SessionTTL),
		// Telegram tolerates short bursts; sustained sends are paced.
		limiter: rate.NewLimiter(rate.Every(50*time.Millisecond), 10),
		now:     time.Now,
	}
	b.registerHandlers()
	return b, nil
}

var menuCommands = []tele.Command{
	{Text: "status", Description: "Quick status check"},
	{Text: "status_full", Description: "Detailed status with all services"},
	{Text: "history", Description: "View service state transition history"},
	{Text: "settings", Description: "Show current settings for a service"},
	{Text: "toggle_alerts", Description: "Enable/disable alerts for a service"},
	{Text: "set_service_name", Description: "Set a display name for a service"},
	{Text: "help", Description: "Show help"},
}

// Start launches long polling and the session janitor. It returns
// immediately; cancel ctx to stop.
func (b *Bot) Start(ctx context.Context) {
	if err := b.tb.SetCommands(menuCommands); err != nil {
		b.log.Warn("set menu commands failed", logx.Err(err))
	}

	go b.janitor(ctx)

	go func() {
		<-ctx.Done()
		b.tb.Stop()
	}()
	go func() {
		b.log.Info("polling started")
		b.tb.Start()
		b.log.Info("polling stopped")
	}()
}

func (b *Bot) registerHandlers() {
	b.tb.Handle("/start", b.handleStart)
	b.tb.Handle("/help", b.handleHelp)
	b.tb.Handle("/status", b.handleStatus)
	b.tb.Handle("/status_full", b.handleStatusFull)
	b.tb.Handle("/history", b.handleHistory)
	b.tb.Handle("/settings", b.handleSettings)
	b.tb.Handle("/toggle_alerts", b.handleToggleAlerts)
	b.tb.Handle("/set_service_name", b.handleSetServiceName)
	b.tb.Handle("/cancel", b.handleCancel)
	b.tb.Handle(tele.OnCallback, b.handleCallback)
	b.tb.Handle(tele.OnText, b.handleText)
}

func reqCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), handlerTimeout)
}

func (b *Bot) reply(c tele.Context, html string) error {
	ctx, cancel := reqCtx()
	defer cancel()
	return b.SendHTML(ctx, c.Chat().ID, html)
}

// fail renders a handler error to the user. Nothing on the interactive path
// is silently swallowed.
func (b *Bot) fail(c tele.Context, action string, err error) error {
	var nf *registry.NotFoundError
	if errors.As(err, &nf) {
		return b.reply(c, "❌ "+tgui.Esc(fmt.Sprintf("Service '%s' not found.", nf.ServiceKey)).String())
	}
	b.log.Error(action+" failed", logx.Err(err), logx.Int64("chat", c.Chat().ID))
	return b.reply(c, "❌ "+tgui.Esc(fmt.Sprintf("Failed to %s: %v", action, err)).String())
}

func sessKeyOf(c tele.Context) sessionKey {
	k := sessionKey{chat: c.Chat().ID}
	if c.Sender() != nil {
		k.user = c.Sender().ID
	}
	return k
}
