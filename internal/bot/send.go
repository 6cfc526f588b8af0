package bot

import (
	"context"
	"strings"

	tele "gopkg.in/telebot.v4"
)

const telegramTextLimit = 4000

// SendHTML delivers text (ParseMode=HTML) to a chat, splitting messages that
// exceed Telegram's length limit. Sends go through the shared rate limiter.
func (b *Bot) SendHTML(ctx context.Context, chatID int64, text string) error {
	chat := &tele.Chat{ID: chatID}
	for _, chunk := range splitText(text, telegramTextLimit) {
		if err := b.limiter.Wait(ctx); err != nil {
			return err
		}
		if _, err := b.tb.Send(chat, chunk, tele.ModeHTML, tele.NoPreview); err != nil {
			return err
		}
	}
	return nil
}

// splitText splits long messages into Telegram-safe chunks. It prefers
// newline boundaries and avoids (best-effort) cutting inside an HTML tag.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := start + limit
		if end > len(rs) {
			end = len(rs)
		}

		// Prefer splitting on a newline near the end of the window, but not
		// so early that chunks get tiny.
		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		// Don't leave a dangling "<b" style fragment at the cut point.
		if end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		chunk := strings.TrimRight(string(rs[start:end]), "\n")
		out = append(out, chunk)

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
