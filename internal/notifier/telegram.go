// Package notifier delivers valuation and performance reports to a chat.
package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
)

const defaultTelegramBaseURL = "https://api.telegram.org"

// Sender delivers a formatted message.
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	BotToken string
	ChatID   string
	BaseURL  string
	Client   *http.Client
	log      zerolog.Logger
}

// NewTelegramNotifier creates a notifier with optional proxy support.
func NewTelegramNotifier(botToken, chatID, proxyURL string, log zerolog.Logger) *TelegramNotifier {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &TelegramNotifier{
		BotToken: botToken,
		ChatID:   chatID,
		BaseURL:  defaultTelegramBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: log.With().Str("component", "notifier").Logger(),
	}
}

type sendMessageRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text to the configured chat as HTML.
func (t *TelegramNotifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: t.ChatID, Text: text, ParseMode: "HTML"})
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	endpoint := t.BaseURL + "/bot" + t.BotToken + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.Client.Do(req)
	if err != nil {
		return fmt.Errorf("post sendMessage: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusOK {
		t.log.Debug().Int("chars", len(text)).Msg("Telegram message sent")
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	reason := string(raw)
	var ar apiResponse
	if json.Unmarshal(raw, &ar) == nil && ar.Description != "" {
		reason = ar.Description
	}
	return fmt.Errorf("sendMessage rejected with status %d: %s", resp.StatusCode, reason)
}

// Retry is a Sender that retries Next with exponential backoff.
type Retry struct {
	Next     Sender
	Attempts int
	Delay    time.Duration // before the second attempt; doubles afterwards
	log      zerolog.Logger
}

// NewRetry wraps next so that each message gets up to attempts tries.
func NewRetry(next Sender, attempts int, delay time.Duration, log zerolog.Logger) *Retry {
	return &Retry{Next: next, Attempts: attempts, Delay: delay, log: log.With().Str("component", "notifier").Logger()}
}

func (r *Retry) Send(ctx context.Context, text string) error {
	attempts := max(r.Attempts, 1)
	delay := r.Delay

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = r.Next.Send(ctx, text); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		r.log.Warn().Err(err).Int("attempt", attempt).Int("of", attempts).Dur("wait", delay).Msg("Notification failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}
