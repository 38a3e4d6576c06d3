// Package postprocess - provides Non-Maximum Suppression for detection results.
package postprocess

import (
	"sort"

	"github.com/nvr-ai/go-trafficlight/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	ScoreThreshold float32 // Candidates scoring at or below this are ignored.
	IoUThreshold   float32 // Overlap above which a candidate is suppressed.
	Eta            float32 // Adaptive decay of IoUThreshold; values outside (0,1) disable it.
	TopK           int     // Only the TopK best scoring candidates are considered; 0 keeps all.
}

// DefaultNMSConfig returns the parameters the traffic light pipeline runs with.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		ScoreThreshold: 0.25,
		IoUThreshold:   0.45,
		Eta:            0.5,
	}
}

// Suppress performs class-agnostic greedy Non-Maximum Suppression.
//
// Candidates with a score at or below the score threshold are dropped. The rest are
// visited in descending score order; ties keep their input order. A candidate is kept
// when its IoU with every previously kept box is at or below the current threshold.
// After each keep, while the threshold is above 0.5, it is multiplied by Eta.
// With TopK > 0 the sorted list is cut to TopK before suppression, as OpenCV NMSBoxes
// does, so fewer than TopK candidates may survive.
//
// Arguments:
//   - candidates: The decoded candidates; the slice is not modified.
//   - config: NMS configuration.
//
// Returns:
//   - []int: Indices into candidates of the survivors, in keep order. Never nil.
//
// @example
// keep := Suppress(cands, NMSConfig{ScoreThreshold: 0.25, IoUThreshold: 0.45, Eta: 0.5})
//
//	for _, i := range keep {
//		fmt.Println(cands[i].Box, cands[i].Score)
//	}
func Suppress(candidates []Candidate, config NMSConfig) []int {
	order := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if c.Score > config.ScoreThreshold {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return candidates[order[a]].Score > candidates[order[b]].Score
	})
	if config.TopK > 0 && len(order) > config.TopK {
		order = order[:config.TopK]
	}

	keep := make([]int, 0, len(order))
	threshold := config.IoUThreshold
	adaptive := config.Eta > 0 && config.Eta < 1

	for _, idx := range order {
		box := candidates[idx].Box

		suppressed := false
		for _, k := range keep {
			if images.CalculateIoU(box, candidates[k].Box) > threshold {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}

		keep = append(keep, idx)
		if adaptive && threshold > 0.5 {
			threshold *= config.Eta
		}
	}

	return keep
}

// Select returns the candidates at the given indices.
func Select(candidates []Candidate, indices []int) []Candidate {
	out := make([]Candidate, 0, len(indices))
	for _, i := range indices {
		out = append(out, candidates[i])
	}
	return out
}
