package depth

import (
	"context"
	"fmt"
)

// Model is a monocular depth network. Its inference graph is opaque to the estimator.
type Model interface {
	// Predict runs inference on one frame.
	//
	// Parameters:
	//   - ctx: cancels a long-running inference
	//   - input: size*size*3 float32 values in HWC order, RGB channels in [0, 255]
	//   - size: the square input edge length
	//
	// Returns:
	//   - []float32: size*size relative inverse depth values, larger meaning nearer; any range
	//   - error: an error if inference failed
	Predict(ctx context.Context, input []float32, size int) ([]float32, error)
}

// Loader is implemented by models that must load weights before the first prediction.
type Loader interface {
	// Load prepares the model.
	//
	// Parameters:
	//   - ctx: cancels loading
	//
	// Returns:
	//   - error: an error if the model cannot be used
	Load(ctx context.Context) error
}

// LuminanceModel treats brighter pixels as nearer. It needs no weights, which lets the depth merge
// mode run on any machine.
type LuminanceModel struct{}

var _ Model = LuminanceModel{}

func (LuminanceModel) Predict(ctx context.Context, input []float32, size int) ([]float32, error) {
	if len(input) != size*size*3 {
		return nil, fmt.Errorf("luminance model: input has %d values, want %d", len(input), size*size*3)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float32, size*size)
	for i := range out {
		r, g, b := input[i*3], input[i*3+1], input[i*3+2]
		out[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return out, nil
}
