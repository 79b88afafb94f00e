package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/containrrr/shoutrrr"
	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/version"
)

// Notifier delivers one message.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

// New picks a notifier for target: an http(s) URL is treated as a Slack
// incoming webhook, any other URL is handed to shoutrrr and an empty target
// only logs.
func New(target string, log *logrus.Logger) (Notifier, error) {
	target = strings.TrimSpace(target)
	switch {
	case target == "":
		return NewLogNotifier(log), nil
	case strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://"):
		return NewSlackWebhookNotifier(target)
	default:
		return NewShoutrrrNotifier(target), nil
	}
}

// SlackWebhookNotifier posts block kit payloads to an incoming webhook.
type SlackWebhookNotifier struct {
	url    string
	client *http.Client
}

func NewSlackWebhookNotifier(rawURL string) (*SlackWebhookNotifier, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid webhook url")
	}
	return &SlackWebhookNotifier{
		url: u.String(),
		client: &http.Client{
			Timeout: 10 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

func (n *SlackWebhookNotifier) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status: %d", resp.StatusCode)
	}
	return nil
}

// ShoutrrrNotifier sends the text rendering through any shoutrrr service URL.
type ShoutrrrNotifier struct {
	url  string
	send func(url, message string) error
}

func NewShoutrrrNotifier(serviceURL string) *ShoutrrrNotifier {
	return &ShoutrrrNotifier{url: serviceURL, send: shoutrrr.Send}
}

func (n *ShoutrrrNotifier) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := n.send(n.url, msg.Text()); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	return nil
}

// LogNotifier writes messages to the log when no destination is configured.
type LogNotifier struct {
	log *logrus.Entry
}

func NewLogNotifier(log *logrus.Logger) *LogNotifier {
	return &LogNotifier{log: logger.For(log, "notify")}
}

func (n *LogNotifier) Send(ctx context.Context, msg Message) error {
	n.log.WithField("blocks", len(msg.Blocks)).Info(msg.Text())
	return nil
}

// SendAll delivers msgs in order. A failed message does not stop the rest;
// the failures are joined into the returned error.
func SendAll(ctx context.Context, n Notifier, msgs []Message, log *logrus.Logger) error {
	entry := logger.For(log, "notify")
	var errs []error
	for i, msg := range msgs {
		if msg.Empty() {
			continue
		}
		if err := n.Send(ctx, msg); err != nil {
			entry.WithError(err).WithField("message", i).Error("failed to deliver notification")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
