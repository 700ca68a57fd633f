// Package telegram adapts telebot to the one thing the publisher
// needs: send a post's text to the configured channel. Delivery errors
// come back as plain errors; the publish loop decides what to do.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"latentfm/pkg/logx"
)

// Telegram rejects messages beyond ~4096 chars; stay under with room
// for entity expansion.
const textLimit = 4000

// Config configures the channel sender.
type Config struct {
	Token   string
	Channel string // numeric chat id or @username
	Offline bool   // skip the getMe probe (tests)
}

// Sender delivers channel posts.
type Sender struct {
	log     logx.Logger
	bot     *tele.Bot
	to      tele.Recipient
	http    *http.Client
	limiter *rate.Limiter
}

// chatRecipient addresses a channel by raw id string or @username.
type chatRecipient string

func (c chatRecipient) Recipient() string { return string(c) }

// NormalizeChannel turns a configured channel value into a telebot
// recipient: integer strings (with optional leading -) address chats by
// id, everything else is treated as a public @username.
func NormalizeChannel(value string) (tele.Recipient, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, errors.New("telegram: channel is empty")
	}
	if _, err := strconv.ParseInt(value, 10, 64); err == nil {
		return chatRecipient(value), nil
	}
	if !strings.HasPrefix(value, "@") {
		value = "@" + value
	}
	return chatRecipient(value), nil
}

// New validates the token against the Bot API and builds the sender.
func New(cfg Config, log logx.Logger) (*Sender, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram: token is empty")
	}
	to, err := NormalizeChannel(cfg.Channel)
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	hc := &http.Client{Timeout: 30 * time.Second}
	bot, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Client:  hc,
		Offline: cfg.Offline,
	})
	if err != nil {
		return nil, err
	}

	return &Sender{
		log:  log,
		bot:  bot,
		to:   to,
		http: hc,
		// Channels allow roughly 20 messages per minute.
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
	}, nil
}

// SendText delivers one post to the channel, splitting long texts into
// multiple messages. Parse mode is HTML to match the queued content.
func (s *Sender) SendText(ctx context.Context, text string) error {
	chunks := splitText(text, textLimit)
	for _, chunk := range chunks {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		opts := &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		}
		if _, err := s.bot.Send(s.to, chunk, opts); err != nil {
			return err
		}
	}
	return nil
}

// Stop releases network resources. The sender never long-polls, so
// there is no update loop to unwind.
func (s *Sender) Stop() {
	if s.http != nil {
		s.http.CloseIdleConnections()
	}
}

// splitText splits long messages into chunks that are safe to send.
// It prefers newline boundaries and (best-effort) avoids splitting
// inside an HTML tag.
func splitText(s string, limit int) []string {
	if limit <= 0 {
		limit = textLimit
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

		// Prefer splitting on a newline near the end of the window.
		if end < len(rs) {
			cut := -1
			for i := end - 1; i > start; i-- {
				if rs[i] == '\n' {
					// Avoid extremely small chunks.
					if i-start >= limit/3 {
						cut = i + 1
						break
					}
				}
			}
			if cut != -1 {
				end = cut
			}
		}

		// Don't leave a dangling open tag at the end of a chunk.
		if end < len(rs) {
			lastOpen := -1
			lastClose := -1
			for i := start; i < end; i++ {
				if rs[i] == '<' {
					lastOpen = i
				} else if rs[i] == '>' {
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		// An all-newline window trims to nothing; the Bot API rejects
		// empty messages.
		if chunk := strings.TrimRight(string(rs[start:end]), "\n"); chunk != "" {
			out = append(out, chunk)
		}

		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
