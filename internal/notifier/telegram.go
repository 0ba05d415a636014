package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

const (
	// DefaultAPIBase is the Telegram Bot API host.
	DefaultAPIBase = "https://api.telegram.org"
	// MaxMessageLen is Telegram's limit for one message.
	MaxMessageLen = 4096
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	// Backoff is the first retry delay; it doubles per attempt.
	Backoff time.Duration

	client *resty.Client
	log    zerolog.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support. An
// empty apiBase uses the public Bot API.
func NewTelegramNotifier(botToken, chatID, apiBase, proxyURL string, log zerolog.Logger) *TelegramNotifier {
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(apiBase, "/"))
	client.SetTimeout(35 * time.Second)
	if proxyURL != "" {
		client.SetProxy(proxyURL)
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		Backoff:  time.Second,
		client:   client,
		log:      log.With().Str("component", "telegram").Logger(),
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send sends a message to the configured chat, split into several messages
// when it exceeds MaxMessageLen.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, chunk := range SplitMessage(text, MaxMessageLen) {
		if err := t.sendOne(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (t *TelegramNotifier) sendOne(ctx context.Context, text string) error {
	var result apiResponse
	resp, err := t.client.R().
		SetContext(ctx).
		SetPathParam("token", t.BotToken).
		SetBody(map[string]string{
			"chat_id":    t.ChatID,
			"text":       text,
			"parse_mode": "HTML",
		}).
		Post("/bot{token}/sendMessage")
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	_ = json.Unmarshal(resp.Body(), &result)
	if resp.IsError() || !result.OK {
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// SendWithRetry sends a message with exponential backoff retry.
func (t *TelegramNotifier) SendWithRetry(ctx context.Context, text string, maxRetries int) error {
	var lastErr error
	for i := 0; i <= maxRetries; i++ {
		if err := t.Send(ctx, text); err != nil {
			lastErr = err
			if i == maxRetries {
				break
			}
			backoff := t.Backoff * time.Duration(1<<uint(i))
			t.log.Warn().Err(err).
				Int("attempt", i+1).
				Int("max", maxRetries+1).
				Dur("backoff", backoff).
				Msg("telegram send failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
				continue
			}
		}
		return nil
	}
	return fmt.Errorf("all %d retries exhausted: %w", maxRetries+1, lastErr)
}

// SplitMessage cuts text into pieces of at most limit bytes, preferring line
// boundaries. A single line longer than limit is cut at a rune boundary.
func SplitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var b strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			if b.Len() > 0 {
				chunks = append(chunks, b.String())
				b.Reset()
			}
			cut := limit
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			if cut == 0 {
				cut = limit
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		if b.Len()+len(line) > limit {
			chunks = append(chunks, b.String())
			b.Reset()
		}
		b.WriteString(line)
	}
	if b.Len() > 0 {
		chunks = append(chunks, b.String())
	}
	return chunks
}
