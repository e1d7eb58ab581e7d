package notifier

import (
	"encoding/json"
	"strings"

	"github.com/hostwatch/hostwatch/internal/types"
)

// FeishuRenderer renders an interactive card message
type FeishuRenderer struct{}

type feishuText struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type feishuElement struct {
	Tag      string       `json:"tag"`
	Text     *feishuText  `json:"text,omitempty"`
	Elements []feishuText `json:"elements,omitempty"`
}

type feishuCard struct {
	Config struct {
		WideScreenMode bool `json:"wide_screen_mode"`
	} `json:"config"`
	Header struct {
		Title    feishuText `json:"title"`
		Template string     `json:"template"`
	} `json:"header"`
	Elements []feishuElement `json:"elements"`
}

type feishuMessage struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

func (FeishuRenderer) Name() string { return "feishu" }

func (FeishuRenderer) Render(event types.AlertEvent) ([]byte, error) {
	c := buildContent(event)

	var card feishuCard
	card.Config.WideScreenMode = true
	card.Header.Title = feishuText{Tag: "plain_text", Content: emoji(c.Severity) + " " + c.Title}
	card.Header.Template = feishuTemplate(c.Severity)

	body := c.Intro + "\n\n" + bulletList(c.Lines, "• ")
	if len(c.Processes) > 0 {
		body += "\n\n**Top Memory Processes:**\n" + bulletList(c.Processes, "• ")
	}
	card.Elements = append(card.Elements, feishuElement{
		Tag:  "div",
		Text: &feishuText{Tag: "lark_md", Content: body},
	})

	if len(c.Stats) > 0 {
		card.Elements = append(card.Elements,
			feishuElement{Tag: "hr"},
			feishuElement{
				Tag:  "div",
				Text: &feishuText{Tag: "lark_md", Content: "**Current System Stats:**\n" + bulletList(c.Stats, "• ")},
			},
		)
	}

	card.Elements = append(card.Elements, feishuElement{
		Tag:      "note",
		Elements: []feishuText{{Tag: "plain_text", Content: c.Footer}},
	})

	return json.Marshal(feishuMessage{MsgType: "interactive", Card: card})
}

// feishuTemplate maps severity onto the card header palette
func feishuTemplate(s types.Severity) string {
	switch s {
	case types.SeveritySuccess:
		return "green"
	case types.SeverityDanger:
		return "red"
	default:
		return "orange"
	}
}

func bulletList(lines []string, bullet string) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(bullet)
		b.WriteString(l)
	}
	return b.String()
}
