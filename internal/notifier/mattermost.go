package notifier

import (
	"encoding/json"
	"strings"

	"github.com/hostwatch/hostwatch/internal/types"
)

// MattermostRenderer renders a single markdown text message
type MattermostRenderer struct{}

func (MattermostRenderer) Name() string { return "mattermost" }

func (MattermostRenderer) Render(event types.AlertEvent) ([]byte, error) {
	c := buildContent(event)

	var b strings.Builder
	b.WriteString("#### " + shortcode(c.Severity) + " " + c.Title + "\n\n")
	b.WriteString(c.Intro + "\n")
	b.WriteString(bulletList(c.Lines, "* "))
	if len(c.Processes) > 0 {
		b.WriteString("\n\n**Top Memory Processes:**\n")
		b.WriteString(bulletList(c.Processes, "* "))
	}
	if len(c.Stats) > 0 {
		b.WriteString("\n\n**Current System Stats:**\n")
		b.WriteString(bulletList(c.Stats, "* "))
	}
	b.WriteString("\n\n*" + c.Footer + "*")

	return json.Marshal(map[string]string{"text": b.String()})
}

func shortcode(s types.Severity) string {
	switch s {
	case types.SeveritySuccess:
		return ":white_check_mark:"
	case types.SeverityDanger:
		return ":x:"
	default:
		return ":warning:"
	}
}
