// Package setup tracks the backend's startup phases and derives the single
// phase the UI should display.
package setup

import (
	"math"
	"strings"
)

// Phase identifies a stage of the backend's startup sequence.
type Phase string

const (
	PhaseCore     Phase = "Core"
	PhaseNode     Phase = "Node"
	PhaseHardware Phase = "Hardware"
	PhaseMining   Phase = "Mining"
	PhaseWallet   Phase = "Wallet"
	PhaseUnknown  Phase = "Unknown"
)

// Phases lists every known phase in startup order.
var Phases = []Phase{PhaseCore, PhaseNode, PhaseHardware, PhaseMining, PhaseWallet, PhaseUnknown}

// RequiredPhases must all complete before setup is finished.
var RequiredPhases = []Phase{PhaseCore, PhaseNode, PhaseHardware, PhaseMining, PhaseWallet}

// ParsePhase maps a backend tag to a Phase. Matching ignores case;
// unrecognized or empty tags map to PhaseUnknown.
func ParsePhase(s string) Phase {
	for _, p := range Phases {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p
		}
	}
	return PhaseUnknown
}

// Progress is the latest known progress of one phase.
type Progress struct {
	PhaseTitle  Phase             `json:"phase_title"`
	Title       string            `json:"title"`
	Progress    float64           `json:"progress"`
	TitleParams map[string]string `json:"title_params,omitempty"`
	IsComplete  bool              `json:"is_complete"`
}

// Update is the payload of a progress_tracker_update event.
type Update struct {
	EventType string   `json:"event_type"`
	Payload   Progress `json:"payload"`
}

// Phase returns the phase the update belongs to. The event type wins; the
// payload's phase title is used when the event type is missing.
func (u Update) Phase() Phase {
	if strings.TrimSpace(u.EventType) != "" {
		return ParsePhase(u.EventType)
	}
	return ParsePhase(string(u.Payload.PhaseTitle))
}

// MaxProgress is the upper bound of a progress value.
const MaxProgress = 100

func clampProgress(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > MaxProgress:
		return MaxProgress
	}
	return v
}

func cloneParams(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
