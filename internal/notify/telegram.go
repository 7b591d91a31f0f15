// Package notify delivers found-slot messages through the Telegram Bot API.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/example/tock-watcher/internal/internaltypes"
)

const DefaultAPIURL = "https://api.telegram.org"

type Options struct {
	APIURL string
	Token  string
	ChatID string // looked up from recent updates when empty

	// retry policy: Attempts tries, first wait InitialDelay, each wait multiplied by Multiplier
	Attempts     int
	InitialDelay time.Duration
	Multiplier   float64

	Logger *zap.Logger
}

// Telegram sends plain-text messages to one chat.
type Telegram struct {
	http  *resty.Client
	token string
	log   *zap.Logger

	attempts     int
	initialDelay time.Duration
	multiplier   float64

	mu     sync.Mutex
	chatID string
}

func New(opts Options) *Telegram {
	if strings.TrimSpace(opts.APIURL) == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Attempts < 1 {
		opts.Attempts = 5
	}
	if opts.InitialDelay <= 0 {
		opts.InitialDelay = 5 * time.Second
	}
	if opts.Multiplier < 1 {
		opts.Multiplier = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(opts.APIURL, "/"))
	client.SetTimeout(20 * time.Second)
	client.SetHeader("content-type", "application/json")

	return &Telegram{
		http:         client,
		token:        opts.Token,
		log:          opts.Logger,
		attempts:     opts.Attempts,
		initialDelay: opts.InitialDelay,
		multiplier:   opts.Multiplier,
		chatID:       strings.TrimSpace(opts.ChatID),
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *message `json:"message"`
	ChannelPost *message `json:"channel_post"`
}

type message struct {
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
}

// Send delivers text, retrying transient failures with exponential backoff.
func (t *Telegram) Send(ctx context.Context, text string) error {
	chatID, err := t.destination(ctx)
	if err != nil {
		return err
	}

	attempt := 0
	op := func() error {
		attempt++
		return t.sendOnce(ctx, chatID, text)
	}
	notify := func(err error, wait time.Duration) {
		t.log.Warn("telegram send failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, t.backOff(ctx), notify); err != nil {
		return err
	}
	t.log.Info("telegram message sent", zap.String("chat_id", chatID), zap.Int("attempts", attempt))
	return nil
}

func (t *Telegram) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.initialDelay
	b.Multiplier = t.multiplier
	b.RandomizationFactor = 0
	b.MaxInterval = time.Hour
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.attempts-1)), ctx)
}

func (t *Telegram) sendOnce(ctx context.Context, chatID, text string) error {
	body := map[string]any{"chat_id": chatID, "text": text}
	_, status, err := t.call(ctx, http.MethodPost, "sendMessage", body)
	if err != nil && (ctx.Err() != nil || !retryable(status)) {
		return backoff.Permanent(err)
	}
	return err
}

// LookupChatID returns the chat of the most recent update the bot received.
// Someone has to have messaged the bot recently for this to work.
func (t *Telegram) LookupChatID(ctx context.Context) (string, error) {
	raw, _, err := t.call(ctx, http.MethodGet, "getUpdates", nil)
	if err != nil {
		return "", err
	}
	var updates []update
	if err := json.Unmarshal(raw, &updates); err != nil {
		return "", fmt.Errorf("telegram parse updates: %w", err)
	}
	for i := len(updates) - 1; i >= 0; i-- {
		u := updates[i]
		switch {
		case u.Message != nil:
			return strconv.FormatInt(u.Message.Chat.ID, 10), nil
		case u.ChannelPost != nil:
			return strconv.FormatInt(u.ChannelPost.Chat.ID, 10), nil
		}
	}
	return "", fmt.Errorf("telegram: no recent updates with a chat: %w", internaltypes.ErrNotFound)
}

func (t *Telegram) destination(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.chatID != "" {
		return t.chatID, nil
	}
	id, err := t.LookupChatID(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: resolve chat id: %v", internaltypes.ErrDelivery, err)
	}
	t.chatID = id
	return id, nil
}

// call performs one Bot API request. status is 0 when no response arrived.
func (t *Telegram) call(ctx context.Context, method, endpoint string, body any) (json.RawMessage, int, error) {
	req := t.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, "/bot"+t.token+"/"+endpoint)
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		return nil, 0, fmt.Errorf("%w: %s", internaltypes.ErrDelivery, t.redact(err.Error()))
	}

	var r apiResponse
	_ = json.Unmarshal(resp.Body(), &r)
	status := resp.StatusCode()
	if status < 200 || status >= 300 || !r.OK {
		return nil, status, fmt.Errorf("%w: telegram %s http %d: %s", internaltypes.ErrDelivery, endpoint, status, r.Description)
	}
	return r.Result, status, nil
}

// retryable reports whether a failed request is worth another attempt.
func retryable(status int) bool {
	return status == 0 || status == http.StatusTooManyRequests || status >= 500
}

func (t *Telegram) redact(s string) string {
	if t.token == "" {
		return s
	}
	return strings.ReplaceAll(s, t.token, "***")
}
