// Package alert posts chat failure notices to a Slack channel.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/slack-go/slack"
	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between two posted alerts.
const DefaultInterval = time.Minute

// Failure describes one chat exchange that ended on the failure fallback.
type Failure struct {
	VisitID  string
	Err      error
	InputLen int
	Duration time.Duration
	Occurred time.Time
}

type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Slack posts failure alerts, dropping any that arrive faster than the
// configured interval.
type Slack struct {
	api     poster
	channel string
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewSlack creates an alerter for the given bot token and channel.
func NewSlack(botToken, channel string, logger *slog.Logger) *Slack {
	return newSlack(slack.New(botToken), channel, DefaultInterval, logger)
}

func newSlack(api poster, channel string, interval time.Duration, logger *slog.Logger) *Slack {
	if logger == nil {
		logger = slog.Default()
	}
	return &Slack{
		api:     api,
		channel: channel,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		logger:  logger,
	}
}

// ChatFailure posts a notice for f. It returns false when the alert was
// dropped by the rate limit. A nil receiver is a disabled alerter.
func (s *Slack) ChatFailure(ctx context.Context, f Failure) (bool, error) {
	if s == nil {
		return false, nil
	}
	if !s.limiter.Allow() {
		s.logger.Debug("slack alert suppressed", "visit_id", f.VisitID)
		return false, nil
	}

	header := slack.NewTextBlockObject(slack.MarkdownType,
		":warning: *Chat fell back to the failure reply*", false, false)
	detail := slack.NewTextBlockObject(slack.MarkdownType,
		fmt.Sprintf("```%v```", f.Err), false, false)
	ctxBlock := slack.NewContextBlock("",
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("Visit `%s` | input %d chars | %s | %s",
				f.VisitID, f.InputLen, f.Duration.Round(time.Millisecond), f.Occurred.UTC().Format(time.RFC3339)),
			false, false),
	)

	_, _, err := s.api.PostMessageContext(ctx, s.channel,
		slack.MsgOptionBlocks(slack.NewSectionBlock(header, nil, nil), slack.NewSectionBlock(detail, nil, nil), ctxBlock),
		slack.MsgOptionText(fmt.Sprintf("Chat failure on visit %s: %v", f.VisitID, f.Err), false),
	)
	if err != nil {
		return false, fmt.Errorf("posting slack alert: %w", err)
	}
	return true, nil
}
