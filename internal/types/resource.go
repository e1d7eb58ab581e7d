package types

import (
	"fmt"
	"time"
)

// Unavailable marks a snapshot field that could not be sampled this cycle.
const Unavailable = -1.0

// ResourceKind identifies one monitored host resource
type ResourceKind int

const (
	CPU ResourceKind = iota
	Memory
	Swap
	Disk
)

// AllKinds lists every resource kind in evaluation and display order.
var AllKinds = []ResourceKind{CPU, Memory, Swap, Disk}

// Key returns the stable identifier used in config and state files
func (k ResourceKind) Key() string {
	switch k {
	case CPU:
		return "cpu"
	case Memory:
		return "memory"
	case Swap:
		return "swap"
	case Disk:
		return "disk"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Label returns the human readable name shown in notifications
func (k ResourceKind) Label() string {
	switch k {
	case CPU:
		return "CPU Usage"
	case Memory:
		return "Memory Usage"
	case Swap:
		return "Swap Usage"
	case Disk:
		return "Disk Usage"
	default:
		return k.Key()
	}
}

// Unit is the same for every kind; all values are percentages.
func (k ResourceKind) Unit() string {
	return "%"
}

func (k ResourceKind) String() string {
	return k.Key()
}

// ParseKind maps a config/state key back to its kind.
func ParseKind(key string) (ResourceKind, error) {
	for _, k := range AllKinds {
		if k.Key() == key {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown resource kind %q", key)
}

// ResourceSnapshot is one point-in-time sample of host utilization.
// A field equal to Unavailable could not be read.
type ResourceSnapshot struct {
	CPU       float64
	Memory    float64
	Swap      float64
	Disk      float64
	Timestamp time.Time
}

// Value returns the sampled percentage for kind
func (s ResourceSnapshot) Value(kind ResourceKind) float64 {
	switch kind {
	case CPU:
		return s.CPU
	case Memory:
		return s.Memory
	case Swap:
		return s.Swap
	case Disk:
		return s.Disk
	default:
		return Unavailable
	}
}

// Available reports whether the value for kind was sampled successfully.
func (s ResourceSnapshot) Available(kind ResourceKind) bool {
	return s.Value(kind) >= 0
}

// Empty reports whether no metric at all could be read.
func (s ResourceSnapshot) Empty() bool {
	for _, k := range AllKinds {
		if s.Available(k) {
			return false
		}
	}
	return true
}

// Thresholds maps each kind to the percentage at or above which it breaches.
type Thresholds map[ResourceKind]float64

// BreachState holds the consecutive-breach counter per kind.
type BreachState map[ResourceKind]int

// Clone returns an independent copy
func (b BreachState) Clone() BreachState {
	out := make(BreachState, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// ProcessInfo describes one process in the top-memory listing
type ProcessInfo struct {
	PID           int32
	Name          string
	MemoryPercent float32
	CPUPercent    float64
}
