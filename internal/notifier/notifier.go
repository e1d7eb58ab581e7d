package notifier

import (
	"context"
	"fmt"

	"github.com/hostwatch/hostwatch/internal/types"
	"github.com/rs/zerolog"
)

// Renderer turns an event into the JSON body one chat platform expects
type Renderer interface {
	Name() string
	Render(event types.AlertEvent) ([]byte, error)
}

// Deliverer sends a rendered payload to a webhook endpoint
type Deliverer interface {
	Deliver(ctx context.Context, url string, payload []byte) error
}

// Channel is one configured notification destination
type Channel struct {
	Name     string
	URL      string
	Renderer Renderer
}

// DeliveryResult is the outcome for a single channel
type DeliveryResult struct {
	Channel string
	Success bool
	DryRun  bool
	Err     error
	Payload []byte
}

// Notifier renders and delivers events to every configured channel
type Notifier struct {
	channels  []Channel
	deliverer Deliverer
	dryRun    bool
	logger    zerolog.Logger
}

// NewNotifier creates a notifier. Channels with an empty URL are dropped.
func NewNotifier(channels []Channel, deliverer Deliverer, logger zerolog.Logger) *Notifier {
	enabled := make([]Channel, 0, len(channels))
	for _, ch := range channels {
		if ch.URL == "" || ch.Renderer == nil {
			continue
		}
		enabled = append(enabled, ch)
	}
	return &Notifier{
		channels:  enabled,
		deliverer: deliverer,
		logger:    logger.With().Str("component", "notifier").Logger(),
	}
}

// NewChannels builds the standard channel set from webhook URLs; an empty URL
// disables that platform.
func NewChannels(feishuURL, slackURL, mattermostURL string) []Channel {
	return []Channel{
		{Name: "feishu", URL: feishuURL, Renderer: FeishuRenderer{}},
		{Name: "slack", URL: slackURL, Renderer: SlackRenderer{}},
		{Name: "mattermost", URL: mattermostURL, Renderer: MattermostRenderer{}},
	}
}

// SetDryRun toggles delivery suppression. Rendering still happens.
func (n *Notifier) SetDryRun(dryRun bool) {
	n.dryRun = dryRun
}

// Channels returns the names of enabled channels
func (n *Notifier) Channels() []string {
	names := make([]string, 0, len(n.channels))
	for _, ch := range n.channels {
		names = append(names, ch.Name)
	}
	return names
}

// Notify sends event to all channels. A failing channel never stops delivery
// to the others, and failures are reported in the results rather than
// returned.
func (n *Notifier) Notify(ctx context.Context, event types.AlertEvent) []DeliveryResult {
	if len(n.channels) == 0 {
		n.logger.Warn().
			Str("phase", string(event.Phase)).
			Msg("No notification channels enabled, skipping")
		return []DeliveryResult{}
	}

	results := make([]DeliveryResult, 0, len(n.channels))
	for _, ch := range n.channels {
		res := n.notifyChannel(ctx, ch, event)
		results = append(results, res)

		if res.Err != nil {
			n.logger.Error().
				Err(res.Err).
				Str("channel", ch.Name).
				Str("event_id", event.ID).
				Str("phase", string(event.Phase)).
				Msg("Failed to send notification")
			continue
		}
		if res.DryRun {
			n.logger.Info().
				Str("channel", ch.Name).
				Str("phase", string(event.Phase)).
				Msg("Dry run, notification rendered but not sent")
			n.logger.Debug().
				Str("channel", ch.Name).
				RawJSON("payload", res.Payload).
				Msg("Rendered payload")
			continue
		}
		n.logger.Info().
			Str("channel", ch.Name).
			Str("event_id", event.ID).
			Str("phase", string(event.Phase)).
			Msg("Notification sent")
	}
	return results
}

func (n *Notifier) notifyChannel(ctx context.Context, ch Channel, event types.AlertEvent) (res DeliveryResult) {
	res.Channel = ch.Name

	defer func() {
		if r := recover(); r != nil {
			res.Success = false
			res.Err = fmt.Errorf("%s: panic during delivery: %v", ch.Name, r)
		}
	}()

	payload, err := ch.Renderer.Render(event)
	if err != nil {
		res.Err = fmt.Errorf("render %s payload: %w", ch.Renderer.Name(), err)
		return res
	}
	res.Payload = payload

	if n.dryRun {
		res.Success = true
		res.DryRun = true
		return res
	}

	if err := n.deliverer.Deliver(ctx, ch.URL, payload); err != nil {
		res.Err = err
		return res
	}
	res.Success = true
	return res
}
