// Package inference - Inference engine interface and input preparation.
package inference

import (
	"context"
)

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// Size returns the number of elements the shape describes.
func (t Tensor) Size() int64 {
	if len(t.Shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// Engine runs the network forward pass.
//
// Implementations must be safe for concurrent use.
type Engine interface {
	Predict(ctx context.Context, input Tensor) (Tensor, error)
	Close() error
}

// EngineFunc adapts a plain function to the Engine interface.
type EngineFunc func(ctx context.Context, input Tensor) (Tensor, error)

// Predict calls f.
func (f EngineFunc) Predict(ctx context.Context, input Tensor) (Tensor, error) {
	return f(ctx, input)
}

// Close is a no-op.
func (f EngineFunc) Close() error {
	return nil
}
