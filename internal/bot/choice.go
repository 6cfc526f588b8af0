package bot

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"registrybot/pkg/logx"
	"registrybot/pkg/tgui"
)

const (
	askScope       = "ask"
	maxButtonLabel = 48
)

// askService presents an inline-keyboard service picker and parks the flow in
// a session until the user answers, cancels, or the prompt times out.
func (b *Bot) askService(c tele.Context, kind flowKind, limit int, question string) error {
	ctx, cancel := reqCtx()
	defer cancel()

	keys, labels, err := b.serviceChoices(ctx, kind)
	if err != nil {
		return b.fail(c, "list services", err)
	}
	if len(keys) == 0 {
		return b.reply(c, "No services registered yet.")
	}

	nonce := newNonce()
	kb := tgui.NewInline()
	for i, label := range labels {
		kb.Row(tgui.Btn(tgui.TruncRunes(label, maxButtonLabel),
			tgui.Data(askScope, "pick", nonce+":"+strconv.Itoa(i))))
	}
	kb.Row(tgui.Btn("✖ Cancel", tgui.Data(askScope, "cancel", nonce)))

	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	msg, err := b.tb.Send(c.Chat(), question, kb.Markup())
	if err != nil {
		return err
	}

	b.sessions.put(sessKeyOf(c), &session{
		kind:       kind,
		stage:      stageChoice,
		nonce:      nonce,
		keys:       keys,
		limit:      limit,
		promptChat: msg.Chat.ID,
		promptMsg:  msg.ID,
	})
	return nil
}

// serviceChoices builds the picker entries, sorted by service key. Status-ish
// flows label entries with the current state; the toggle flow shows the alert
// flag instead.
func (b *Bot) serviceChoices(ctx context.Context, kind flowKind) (keys, labels []string, err error) {
	if kind == flowToggle {
		services, err := b.reg.Services(ctx)
		if err != nil {
			return nil, nil, err
		}
		for key := range services {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			svc := services[key]
			flag := "🔕 Disabled"
			if svc.AlertsOn() {
				flag = "🔔 Enabled"
			}
			labels = append(labels, fmt.Sprintf("%s (%s)", svc.Name(key), flag))
		}
		return keys, labels, nil
	}

	statuses, err := b.reg.Status(ctx)
	if err != nil {
		return nil, nil, err
	}
	for key := range statuses {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		rec := statuses[key]
		state := rec.Status
		if state == "" {
			state = "unknown"
		}
		labels = append(labels, fmt.Sprintf("%s (%s)", rec.Name(key), state))
	}
	return keys, labels, nil
}

func (b *Bot) handleCallback(c tele.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}
	data := strings.TrimPrefix(strings.TrimSpace(cb.Data), "\f")
	scope, action, payload := tgui.SplitData(data)
	if scope != askScope {
		return c.Respond(&tele.CallbackResponse{})
	}

	key := sessKeyOf(c)
	s, ok := b.sessions.get(key)
	if !ok || s.stage != stageChoice || !strings.HasPrefix(payload, s.nonce) {
		return c.Respond(&tele.CallbackResponse{Text: "This prompt has expired."})
	}

	switch action {
	case "cancel":
		b.sessions.delete(key)
		if err := c.Edit("Operation cancelled."); err != nil {
			b.log.Debug("edit prompt failed", logx.Err(err))
		}
		return c.Respond(&tele.CallbackResponse{})

	case "pick":
		idxRaw := strings.TrimPrefix(payload, s.nonce+":")
		idx, err := strconv.Atoi(idxRaw)
		if err != nil || idx < 0 || idx >= len(s.keys) {
			return c.Respond(&tele.CallbackResponse{Text: "This prompt has expired."})
		}
		serviceKey := s.keys[idx]
		b.sessions.delete(key)

		if err := c.Edit("✅ Selected "+tgui.Code(serviceKey).String(), tele.ModeHTML); err != nil {
			b.log.Debug("edit prompt failed", logx.Err(err))
		}
		if err := c.Respond(&tele.CallbackResponse{}); err != nil {
			b.log.Debug("answer callback failed", logx.Err(err))
		}

		switch s.kind {
		case flowHistory:
			return b.runHistory(c, serviceKey, s.limit)
		case flowSettings:
			return b.runSettings(c, serviceKey)
		case flowToggle:
			return b.runToggleAlerts(c, serviceKey)
		case flowSetName:
			return b.askNewName(c, serviceKey)
		}
		return nil

	default:
		return c.Respond(&tele.CallbackResponse{})
	}
}

// janitor expires abandoned interactive prompts: the flow auto-cancels and
// the prompt message is rewritten so stale keyboards don't linger.
func (b *Bot) janitor(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			for _, exp := range b.sessions.sweep(now) {
				b.expirePrompt(ctx, exp)
			}
		}
	}
}

func (b *Bot) expirePrompt(ctx context.Context, exp expiredSession) {
	b.log.Debug("interactive prompt expired",
		logx.Int64("chat", exp.key.chat), logx.Int64("user", exp.key.user))

	if exp.s.promptMsg != 0 {
		ref := &tele.StoredMessage{
			MessageID: strconv.Itoa(exp.s.promptMsg),
			ChatID:    exp.s.promptChat,
		}
		if _, err := b.tb.Edit(ref, "⌛ Selection timed out."); err != nil {
			b.log.Debug("edit expired prompt failed", logx.Err(err))
		}
		return
	}

	// Rename sessions have no keyboard to clean up; tell the user instead.
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := b.SendHTML(sendCtx, exp.key.chat, "⌛ Operation timed out."); err != nil {
		b.log.Debug("expiry notice failed", logx.Err(err))
	}
}
