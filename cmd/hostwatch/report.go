package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hostwatch/hostwatch/internal/notifier"
	"github.com/hostwatch/hostwatch/internal/recovery"
	"github.com/hostwatch/hostwatch/internal/types"
)

var (
	colorPrimary = lipgloss.Color("#7C3AED")
	colorGreen   = lipgloss.Color("#10B981")
	colorRed     = lipgloss.Color("#EF4444")
	colorYellow  = lipgloss.Color("#F59E0B")
	colorDim     = lipgloss.Color("#6B7280")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary).MarginBottom(1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Foreground(colorPrimary)
	keyStyle     = lipgloss.NewStyle().Foreground(colorDim).Width(14)
	dimStyle     = lipgloss.NewStyle().Foreground(colorDim)
	okStyle      = lipgloss.NewStyle().Foreground(colorGreen).Bold(true)
	badStyle     = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(colorYellow)

	payloadStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#374151")).
			Padding(0, 1)

	errorBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorRed).
			Foreground(colorRed).
			Padding(0, 1).
			MarginTop(1)

	successBox = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGreen).
			Foreground(colorGreen).
			Padding(0, 1).
			MarginTop(1)
)

func kv(b *strings.Builder, key, val string) {
	b.WriteString("  ")
	b.WriteString(keyStyle.Render(key))
	b.WriteString(val)
	b.WriteString("\n")
}

func section(b *strings.Builder, name string) {
	b.WriteString("\n")
	b.WriteString(sectionStyle.Render(name))
	b.WriteString("\n")
}

func reportHeader(b *strings.Builder, a *app, what string) {
	b.WriteString(titleStyle.Render("hostwatch test run: " + what))
	b.WriteString("\n")
	configFile := a.configFile
	if configFile == "" {
		configFile = dimStyle.Render("(none, defaults and environment)")
	}
	kv(b, "Hostname", a.hostname)
	kv(b, "Config", configFile)
	kv(b, "Channels", strings.Join(a.notifier.Channels(), ", "))
	kv(b, "State dir", a.store.Dir()+dimStyle.Render(" (not written)"))
}

func printResourceReport(w io.Writer, a *app, rep resourceReport, cycleErr error) {
	var b strings.Builder
	reportHeader(&b, a, "resources")

	if cycleErr != nil {
		b.WriteString(errorBox.Render("Sampling failed: " + cycleErr.Error()))
		b.WriteString("\n")
		writeWarnings(&b, a)
		fmt.Fprintln(w, b.String())
		return
	}

	section(&b, "Readings")
	for _, c := range rep.Checks {
		val := dimStyle.Render("unavailable")
		if !c.Skipped {
			val = fmt.Sprintf("%.1f%% / %.1f%%", c.Value, c.Threshold)
			if c.Breaching {
				val = badStyle.Render(val)
			} else {
				val = okStyle.Render(val)
			}
		}
		counter := dimStyle.Render(fmt.Sprintf("  counter %d/%d", rep.Counters[c.Kind], a.cfg.CheckCount))
		kv(&b, c.Kind.Label(), val+counter)
	}

	if len(rep.Fired) == 0 {
		b.WriteString("\n  ")
		b.WriteString(okStyle.Render("No sustained breach this cycle."))
		b.WriteString("\n")
		section(&b, "Preview alert")
		writeDeliveries(&b, rep.Preview)
	} else {
		writeRecovery(&b, a, rep.Recovery)
	}

	writeWarnings(&b, a)
	b.WriteString(successBox.Render("Dry run complete. Nothing was sent, executed or saved."))
	fmt.Fprintln(w, b.String())
}

func writeRecovery(b *strings.Builder, a *app, res *recovery.Result) {
	section(b, "Sustained breach")
	states := make([]string, 0, len(res.States))
	for _, st := range res.States {
		states = append(states, string(st))
	}
	kv(b, "Incident", res.IncidentID)
	kv(b, "States", strings.Join(states, " > "))
	kv(b, "Outcome", outcomeText(res.Outcome))
	for _, r := range res.Readings {
		kv(b, r.Kind.Label(), readingText(r))
	}

	if a.cfg.Recovery.Enabled {
		section(b, "Recovery commands (not executed)")
		if len(res.Commands) == 0 {
			b.WriteString("  " + dimStyle.Render("none configured") + "\n")
		}
		for i, c := range res.Commands {
			fmt.Fprintf(b, "  %d. %s\n", i+1, c.Command)
		}
		kv(b, "Wait", a.cfg.Recovery.WaitTime.String()+dimStyle.Render(" (skipped)"))
	}

	section(b, "Initial alert")
	writeDeliveries(b, res.Initial)
	if len(res.Final) > 0 {
		section(b, "Post-recovery alert")
		writeDeliveries(b, res.Final)
	}
}

func outcomeText(o recovery.Outcome) string {
	switch o {
	case recovery.Recovered:
		return okStyle.Render(string(o))
	case recovery.StillBreaching:
		return badStyle.Render(string(o))
	default:
		return warnStyle.Render(string(o))
	}
}

func printNetworkReport(w io.Writer, a *app, rep networkReport) {
	var b strings.Builder
	reportHeader(&b, a, "network")

	section(&b, "Check")
	status := okStyle.Render("reachable")
	if !rep.Result.Reachable {
		status = badStyle.Render("unreachable")
	}
	kv(&b, "Target", a.cfg.Network.Target)
	kv(&b, "Status", status)
	kv(&b, "Detail", rep.Result.Detail)
	kv(&b, "Attempts", fmt.Sprintf("%d/%d", rep.Result.Attempts, a.cfg.Network.MaxRetry))
	kv(&b, "Failures", fmt.Sprintf("%d (threshold %d)", rep.Next.ConsecutiveFailures, a.cfg.Network.FailureThreshold))
	kv(&b, "Transition", rep.Result.Transition.String())

	if len(rep.Result.Deliveries) > 0 {
		section(&b, "Alert")
		writeDeliveries(&b, rep.Result.Deliveries)
	} else {
		section(&b, "Preview alert")
		writeDeliveries(&b, rep.Preview)
	}

	writeWarnings(&b, a)
	b.WriteString(successBox.Render("Dry run complete. Nothing was sent or saved."))
	fmt.Fprintln(w, b.String())
}

func writeDeliveries(b *strings.Builder, results []notifier.DeliveryResult) {
	if len(results) == 0 {
		b.WriteString("  " + dimStyle.Render("no channels") + "\n")
		return
	}
	for _, r := range results {
		b.WriteString("  ")
		if r.Err != nil {
			b.WriteString(badStyle.Render(r.Channel + ": " + r.Err.Error()))
			b.WriteString("\n")
			continue
		}
		b.WriteString(okStyle.Render(r.Channel))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" (%d bytes, would POST)", len(r.Payload))))
		b.WriteString("\n")
		b.WriteString(indent(payloadStyle.Render(prettyJSON(r.Payload)), "  "))
		b.WriteString("\n")
	}
}

func writeWarnings(b *strings.Builder, a *app) {
	if a.capture == nil {
		return
	}
	entries := a.capture.Entries()
	if len(entries) == 0 {
		return
	}
	section(b, "Warnings")
	for _, e := range entries {
		line := fmt.Sprintf("%s %s", strings.ToUpper(e.Level.String()), e.Message)
		if e.Component != "" {
			line += dimStyle.Render(" [" + e.Component + "]")
		}
		if e.Error != "" {
			line += ": " + e.Error
		}
		b.WriteString("  " + warnStyle.Render(line) + "\n")
	}
}

func prettyJSON(payload []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, payload, "", "  "); err != nil {
		return string(payload)
	}
	return out.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func readingText(r types.ResourceReading) string {
	val := "unavailable"
	if r.Value != types.Unavailable {
		val = fmt.Sprintf("%.1f%%", r.Value)
	}
	line := fmt.Sprintf("%s after check (threshold %.1f%%)", val, r.Threshold)
	if r.Status == types.StatusRecovered {
		return okStyle.Render(line)
	}
	return badStyle.Render(line)
}
