package notifier

import (
	"fmt"
	"time"

	"github.com/hostwatch/hostwatch/internal/types"
)

const timeLayout = "2006-01-02 15:04:05"

// content is the platform-neutral body shared by every renderer
type content struct {
	Severity  types.Severity
	Title     string // "<phase title> - <hostname>", no icon
	Intro     string
	Lines     []string
	Stats     []string
	Processes []string
	Footer    string
}

func buildContent(e types.AlertEvent) content {
	c := content{
		Severity: e.Severity(),
		Title:    fmt.Sprintf("%s - %s", e.Title(), e.Hostname),
	}

	switch e.Phase {
	case types.PhaseInitial:
		c.Intro = fmt.Sprintf("The following resources have exceeded thresholds for %d consecutive checks:", e.CheckCount)
	case types.PhasePostRecovery:
		c.Intro = "Resource status after recovery actions:"
	case types.PhaseNetworkDown:
		c.Intro = "Network connectivity issue detected:"
	case types.PhaseNetworkRestored:
		c.Intro = fmt.Sprintf("Network connectivity restored after %s:", e.DownDuration.Round(time.Second))
	}

	for _, r := range e.Resources {
		c.Lines = append(c.Lines, resourceLine(r, e.Phase))
	}
	if e.Target != "" {
		c.Lines = append(c.Lines, "Target: "+e.Target)
	}
	if e.Detail != "" {
		c.Lines = append(c.Lines, e.Detail)
	}

	if e.Snapshot != nil {
		for _, kind := range []types.ResourceKind{types.Memory, types.CPU, types.Swap, types.Disk} {
			c.Stats = append(c.Stats, fmt.Sprintf("%s: %s", shortLabel(kind), formatPercent(e.Snapshot.Value(kind))))
		}
	}

	for _, p := range e.TopProcesses {
		c.Processes = append(c.Processes, fmt.Sprintf("%s (PID %d): Memory %.1f%%, CPU %.1f%%",
			p.Name, p.PID, p.MemoryPercent, p.CPUPercent))
	}

	label := "Alert Time"
	if e.Phase == types.PhaseNetworkDown || e.Phase == types.PhaseNetworkRestored {
		label = "Check Time"
	}
	c.Footer = fmt.Sprintf("%s: %s", label, e.Timestamp.Format(timeLayout))
	if e.ID != "" {
		c.Footer += " | Incident: " + e.ID
	}
	return c
}

// resourceLine formats "<label>: <value>% (threshold: <threshold>%)", with the
// verdict appended after recovery.
func resourceLine(r types.ResourceReading, phase types.Phase) string {
	line := fmt.Sprintf("%s: %s (threshold: %.1f%%)", r.Kind.Label(), formatPercent(r.Value), r.Threshold)
	if phase == types.PhasePostRecovery {
		line += fmt.Sprintf(" [%s]", r.Status)
	}
	return line
}

func formatPercent(v float64) string {
	if v < 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}

func shortLabel(kind types.ResourceKind) string {
	switch kind {
	case types.CPU:
		return "CPU"
	case types.Memory:
		return "Memory"
	case types.Swap:
		return "Swap"
	case types.Disk:
		return "Disk"
	default:
		return kind.Key()
	}
}

func emoji(s types.Severity) string {
	switch s {
	case types.SeveritySuccess:
		return "✅"
	case types.SeverityDanger:
		return "❌"
	default:
		return "⚠️"
	}
}
