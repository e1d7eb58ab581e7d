package notifier

import (
	"encoding/json"

	"github.com/hostwatch/hostwatch/internal/types"
)

// SlackRenderer renders a Block Kit message with one section per resource line
type SlackRenderer struct{}

func (SlackRenderer) Name() string { return "slack" }

func (SlackRenderer) Render(event types.AlertEvent) ([]byte, error) {
	c := buildContent(event)

	blocks := []map[string]interface{}{
		slackSection(emoji(c.Severity) + " *" + c.Title + "*"),
		slackSection(c.Intro),
	}
	for _, line := range c.Lines {
		blocks = append(blocks, slackSection("• "+line))
	}
	if len(c.Processes) > 0 {
		blocks = append(blocks, slackSection("*Top Memory Processes:*\n"+bulletList(c.Processes, "• ")))
	}
	if len(c.Stats) > 0 {
		blocks = append(blocks, slackSection("*Current System Stats:*\n"+bulletList(c.Stats, "• ")))
	}
	blocks = append(blocks, map[string]interface{}{
		"type": "context",
		"elements": []map[string]string{
			{"type": "mrkdwn", "text": "_" + c.Footer + "_"},
		},
	})

	return json.Marshal(map[string]interface{}{
		"text":   c.Title,
		"blocks": blocks,
	})
}

func slackSection(text string) map[string]interface{} {
	return map[string]interface{}{
		"type": "section",
		"text": map[string]string{
			"type": "mrkdwn",
			"text": text,
		},
	}
}
