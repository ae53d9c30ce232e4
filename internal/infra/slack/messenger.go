package slack

import (
	"context"
	"errors"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"

	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/domain"
	"github.com/petruhinmaxim/motivation-bot-sub000/internal/core/port"
)

// Slack error strings that mean the channel is permanently unreachable.
var blockedErrors = map[string]struct{}{
	"channel_not_found": {},
	"is_archived":       {},
	"account_inactive":  {},
	"user_not_found":    {},
	"not_in_channel":    {},
}

// Messenger delivers notifications through the Slack Web API, implementing
// port.Messenger. The user's ChatID is the Slack channel or DM conversation ID.
type Messenger struct {
	client *slack.Client
	logger *zap.Logger
}

// NewMessenger constructs a Slack-backed messenger.
func NewMessenger(botToken string, logger *zap.Logger) *Messenger {
	return &Messenger{
		client: slack.New(botToken),
		logger: logger,
	}
}

// SendText posts a plain text message.
func (m *Messenger) SendText(ctx context.Context, chatID, text string) error {
	_, _, err := m.client.PostMessageContext(ctx, chatID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionAsUser(false),
	)
	if err != nil {
		return m.translate(chatID, err)
	}
	return nil
}

// SendPhoto posts an image block with a caption and action buttons.
func (m *Messenger) SendPhoto(ctx context.Context, payload domain.NotificationPayload) error {
	blocks := []slack.Block{
		slack.NewImageBlock(payload.ImageURL, payload.Caption, "", nil),
		slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, payload.Caption, false, false),
			nil, nil,
		),
	}

	if len(payload.Actions) > 0 {
		elements := make([]slack.BlockElement, 0, len(payload.Actions))
		for _, action := range payload.Actions {
			elements = append(elements, slack.NewButtonBlockElement(
				action.Value,
				action.Value,
				slack.NewTextBlockObject(slack.PlainTextType, action.Label, false, false),
			))
		}
		blocks = append(blocks, slack.NewActionBlock("notification_actions", elements...))
	}

	_, _, err := m.client.PostMessageContext(ctx, payload.ChatID,
		slack.MsgOptionText(payload.Caption, false),
		slack.MsgOptionBlocks(blocks...),
		slack.MsgOptionAsUser(false),
	)
	if err != nil {
		return m.translate(payload.ChatID, err)
	}
	return nil
}

// translate maps Slack API errors onto the transport error taxonomy.
func (m *Messenger) translate(chatID string, err error) error {
	var rateLimited *slack.RateLimitedError
	if errors.As(err, &rateLimited) {
		m.logger.Warn("slack rate limited",
			zap.String("chat_id", chatID),
			zap.Duration("retry_after", rateLimited.RetryAfter),
		)
		return fmt.Errorf("%w: retry after %s", port.ErrRateLimited, rateLimited.RetryAfter)
	}

	if _, blocked := blockedErrors[err.Error()]; blocked {
		return fmt.Errorf("%w: %s", port.ErrChannelBlocked, err.Error())
	}

	return fmt.Errorf("post message to %s: %w", chatID, err)
}

var _ port.Messenger = (*Messenger)(nil)
