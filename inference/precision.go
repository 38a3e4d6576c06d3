// Package inference - This file provides common utilities for inference tasks.
package inference

import (
	"strings"

	"github.com/pkg/errors"
)

// Precision represents the floating point precision of the exported model.
type Precision string

// Precision constants are the supported precisions for inference.
const (
	PrecisionFP32 Precision = "fp32"
	PrecisionFP16 Precision = "fp16"
)

// ParsePrecision accepts "fp32" or "fp16" in any case.
func ParsePrecision(s string) (Precision, error) {
	switch p := Precision(strings.ToLower(strings.TrimSpace(s))); p {
	case PrecisionFP32, PrecisionFP16:
		return p, nil
	case "":
		return PrecisionFP32, nil
	}
	return "", errors.Errorf("unsupported precision %q (want %q or %q)", s, PrecisionFP32, PrecisionFP16)
}
