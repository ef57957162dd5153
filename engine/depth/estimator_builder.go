package depth

// EstimatorBuilderOption is a functional option used to configure an Estimator during construction.
type EstimatorBuilderOption func(*estimator)

// WithWorkers sets how many row bands the estimator processes in parallel. Values below 1 are ignored.
//
// Parameters:
//   - n: the worker count
//
// Returns:
//   - EstimatorBuilderOption: a function that sets the worker count
func WithWorkers(n int) EstimatorBuilderOption {
	return func(e *estimator) {
		if n > 0 {
			e.workers = n
		}
	}
}

// WithInputSize overrides the square model input size. Values below 1 are ignored.
//
// Parameters:
//   - size: the edge length in pixels
//
// Returns:
//   - EstimatorBuilderOption: a function that sets the input size
func WithInputSize(size int) EstimatorBuilderOption {
	return func(e *estimator) {
		if size > 0 {
			e.inputSize = size
		}
	}
}
