// Package trafficlight - decodes YOLO traffic light detector outputs into labelled bulbs.
package trafficlight

import (
	"github.com/pkg/errors"
)

// ClassLabel is one of the eight bulb classes the detector was trained on.
//
// The first letter is the movement family (F forward, L left, S straight, R right) and
// the digit says whether the bulb permits the movement (1) or not (0).
type ClassLabel string

const (
	F0 ClassLabel = "F0"
	F1 ClassLabel = "F1"
	L0 ClassLabel = "L0"
	L1 ClassLabel = "L1"
	S0 ClassLabel = "S0"
	S1 ClassLabel = "S1"
	R0 ClassLabel = "R0"
	R1 ClassLabel = "R1"
)

// Labels is the class table in model output order. Index i is the label of score column 4+i.
var Labels = []ClassLabel{F0, F1, L0, L1, S0, S1, R0, R1}

// Family identifies which movement a bulb controls.
type Family byte

const (
	FamilyForward  Family = 'F'
	FamilyLeft     Family = 'L'
	FamilyStraight Family = 'S'
	FamilyRight    Family = 'R'
)

func (f Family) String() string {
	return string(f)
}

// Family returns the movement family of the label.
func (l ClassLabel) Family() Family {
	if len(l) == 0 {
		return 0
	}
	return Family(l[0])
}

// On reports whether the bulb permits its movement.
func (l ClassLabel) On() bool {
	return len(l) == 2 && l[1] == '1'
}

// Valid reports whether the label is in the class table.
func (l ClassLabel) Valid() bool {
	for _, k := range Labels {
		if k == l {
			return true
		}
	}
	return false
}

func (l ClassLabel) String() string {
	return string(l)
}

// ParseLabel converts a label name to a ClassLabel.
//
// Arguments:
//   - s: The label name, for example "L1".
//
// Returns:
//   - ClassLabel: The parsed label.
//   - error: An error if s is not one of the known classes.
func ParseLabel(s string) (ClassLabel, error) {
	l := ClassLabel(s)
	if !l.Valid() {
		return "", errors.Errorf("unknown class label %q", s)
	}
	return l, nil
}

// LabelAt looks up the label for a class index in the given table.
func LabelAt(labels []ClassLabel, index int) (ClassLabel, error) {
	if index < 0 || index >= len(labels) {
		return "", &LabelLookupError{Index: index, Size: len(labels)}
	}
	return labels[index], nil
}
