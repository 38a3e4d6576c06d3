// Package signal - resolves detected bulbs into which movements are currently allowed.
package signal

import (
	"fmt"

	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
)

// State says whether each movement is allowed.
type State struct {
	Left     bool `json:"left"`
	Straight bool `json:"straight"`
	Right    bool `json:"right"`
}

func (s State) String() string {
	return fmt.Sprintf("left=%t straight=%t right=%t", s.Left, s.Straight, s.Right)
}

// Policy holds the assumptions the resolver makes where the bulbs are silent.
type Policy struct {
	// ForwardImpliesLeft makes a green forward bulb (F1) allow left as well as straight.
	ForwardImpliesLeft bool `json:"forward_implies_left" yaml:"forward-implies-left"`
	// DefaultRight is the right turn state when no right bulb is seen.
	DefaultRight bool `json:"default_right" yaml:"default-right"`
	// DedupeLabels lets only the highest scoring bulb of each family take part in overrides.
	DedupeLabels bool `json:"dedupe_labels" yaml:"dedupe-labels"`
}

// DefaultPolicy returns the policy the detector has always used.
func DefaultPolicy() Policy {
	return Policy{ForwardImpliesLeft: true, DefaultRight: true}
}

// Resolve derives the legality state with DefaultPolicy.
func Resolve(detections []trafficlight.Detection) State {
	return DefaultPolicy().Resolve(detections)
}

// Resolve derives the legality state from the detections in two passes.
//
// The first pass lets any F1 open left (when ForwardImpliesLeft) and straight. The second
// pass then applies every directional bulb in order, so L*, S* and R* always override
// what the forward bulb implied and the last bulb of a family wins. F0 changes nothing.
//
// Arguments:
//   - detections: The detections in assembler order.
//
// Returns:
//   - State: The legality state. An empty input gives the policy defaults.
func (p Policy) Resolve(detections []trafficlight.Detection) State {
	state := State{Right: p.DefaultRight}

	for _, d := range detections {
		if d.Label == trafficlight.F1 {
			state.Straight = true
			if p.ForwardImpliesLeft {
				state.Left = true
			}
		}
	}

	if p.DedupeLabels {
		detections = strongestPerFamily(detections)
	}

	for _, d := range detections {
		switch d.Label.Family() {
		case trafficlight.FamilyLeft:
			state.Left = d.Label.On()
		case trafficlight.FamilyStraight:
			state.Straight = d.Label.On()
		case trafficlight.FamilyRight:
			state.Right = d.Label.On()
		}
	}

	return state
}

// strongestPerFamily keeps the first highest scoring detection of each family, in input order.
func strongestPerFamily(detections []trafficlight.Detection) []trafficlight.Detection {
	best := make(map[trafficlight.Family]int)
	for i, d := range detections {
		j, ok := best[d.Label.Family()]
		if !ok || d.Score > detections[j].Score {
			best[d.Label.Family()] = i
		}
	}

	out := make([]trafficlight.Detection, 0, len(best))
	for i, d := range detections {
		if best[d.Label.Family()] == i {
			out = append(out, d)
		}
	}
	return out
}
