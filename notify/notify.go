// Package notify pushes watcher alerts to external channels.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Notifier delivers a single human-readable message.
type Notifier interface {
	Send(ctx context.Context, text string) error
}

var _ Notifier = (*Slack)(nil)

// Slack posts messages to a Slack incoming webhook.
type Slack struct {
	client  *resty.Client
	webhook string
}

type slackPayload struct {
	Text string `json:"text"`
}

func NewSlack(webhook string, timeout time.Duration) *Slack {
	return &Slack{
		client:  resty.New().SetTimeout(timeout),
		webhook: webhook,
	}
}

func (s *Slack) Send(ctx context.Context, text string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(slackPayload{Text: text}).
		Post(s.webhook)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}
