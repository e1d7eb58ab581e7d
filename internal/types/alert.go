package types

import "time"

// Phase is the stage of an incident an AlertEvent reports on
type Phase string

const (
	PhaseInitial         Phase = "initial"
	PhasePostRecovery    Phase = "post_recovery"
	PhaseNetworkDown     Phase = "network_down"
	PhaseNetworkRestored Phase = "network_restored"
)

// ReadingStatus is the per-resource verdict carried in an event
type ReadingStatus string

const (
	StatusBreaching      ReadingStatus = "breaching"
	StatusRecovered      ReadingStatus = "recovered"
	StatusStillBreaching ReadingStatus = "still breaching"
)

// Severity drives the color and icon of a rendered notification
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeveritySuccess Severity = "success"
	SeverityDanger  Severity = "danger"
)

// ResourceReading is one (kind, value, threshold) triple with its verdict.
type ResourceReading struct {
	Kind      ResourceKind
	Value     float64
	Threshold float64
	Status    ReadingStatus
}

// AlertEvent is an immutable notification payload consumed by the notifier.
type AlertEvent struct {
	ID           string // shared by the Initial and PostRecovery events of one incident
	Phase        Phase
	Hostname     string
	Timestamp    time.Time
	Resources    []ResourceReading
	Snapshot     *ResourceSnapshot
	CheckCount   int
	TopProcesses []ProcessInfo

	// Network events only
	Target       string
	Detail       string
	DownDuration time.Duration
}

// Severity derives the severity cue from the phase and readings
func (e AlertEvent) Severity() Severity {
	switch e.Phase {
	case PhaseInitial:
		return SeverityWarning
	case PhasePostRecovery:
		for _, r := range e.Resources {
			if r.Status != StatusRecovered {
				return SeverityDanger
			}
		}
		return SeveritySuccess
	case PhaseNetworkDown:
		return SeverityDanger
	case PhaseNetworkRestored:
		return SeveritySuccess
	default:
		return SeverityWarning
	}
}

// Title is the phase headline without icon or hostname
func (e AlertEvent) Title() string {
	switch e.Phase {
	case PhaseInitial:
		return "Server Resource Alert"
	case PhasePostRecovery:
		if e.Severity() == SeveritySuccess {
			return "Resources Recovered"
		}
		return "Resources Still Breaching"
	case PhaseNetworkDown:
		return "Network Down"
	case PhaseNetworkRestored:
		return "Network Restored"
	default:
		return "hostwatch Alert"
	}
}

// NetworkState is the persisted reachability tracker state.
type NetworkState struct {
	ConsecutiveFailures int       `yaml:"consecutive_failures"`
	TargetURL           string    `yaml:"target_url"`
	Alerted             bool      `yaml:"alerted"`
	LastError           string    `yaml:"last_error,omitempty"`
	Since               time.Time `yaml:"since,omitempty"`
}
