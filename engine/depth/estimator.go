// Package depth turns video frames into normalized gray depth maps for the depth merge mode.
package depth

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-canvas/common"
	xdraw "golang.org/x/image/draw"
)

// ModelInputSize is the square edge length frames are resized to before inference, and the size of
// the depth map Estimate writes.
const ModelInputSize = 256

// ErrNoFiniteDepth is returned by Estimate when every value the model produced is NaN or infinite.
var ErrNoFiniteDepth = errors.New("depth inference returned no finite values")

// estimator is the implementation of the Estimator interface.
type estimator struct {
	mu sync.Mutex

	model     Model
	inputSize int
	workers   int
	pool      worker.DynamicWorkerPool

	ready atomic.Bool

	// resized and tensor are reused between calls
	resized *image.RGBA
	tensor  []float32
}

// Estimator produces a depth map for a frame. Init must succeed before Estimate does anything.
type Estimator interface {
	// Init prepares the model.
	//
	// Parameters:
	//   - ctx: cancels model loading
	//
	// Returns:
	//   - bool: true if the estimator can be used
	Init(ctx context.Context) bool

	// Ready reports whether Init has succeeded.
	Ready() bool

	// Estimate resizes frame to the model input size, runs the model, min-max normalizes the result to
	// [0, 1] and writes it into out as opaque gray. A map with no range is written as all black.
	// NaN and infinite samples are left out of the range and written as black.
	//
	// Parameters:
	//   - ctx: cancels inference
	//   - frame: the source frame, any size
	//   - out: the destination, exactly ModelInputSize x ModelInputSize
	//
	// Returns:
	//   - error: common.ErrNotReady before Init succeeds, ErrNoFiniteDepth, or an error from the model
	Estimate(ctx context.Context, frame image.Image, out *image.RGBA) error

	// InputSize returns the edge length of the depth map Estimate writes.
	InputSize() int
}

var _ Estimator = &estimator{}

// NewEstimator creates an Estimator around a model.
//
// Parameters:
//   - model: the depth network
//   - opts: a variadic list of EstimatorBuilderOption functions
//
// Returns:
//   - Estimator: the estimator, not yet initialized
func NewEstimator(model Model, opts ...EstimatorBuilderOption) Estimator {
	e := &estimator{
		model:     model,
		inputSize: ModelInputSize,
		workers:   4,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.pool = worker.NewDynamicWorkerPool(e.workers, 256, 1*time.Second)
	e.resized = image.NewRGBA(image.Rect(0, 0, e.inputSize, e.inputSize))
	e.tensor = make([]float32, e.inputSize*e.inputSize*3)
	return e
}

// NewRGBA allocates an output image sized for an Estimator.
//
// Parameters:
//   - e: the estimator
//
// Returns:
//   - *image.RGBA: an InputSize x InputSize image
func NewRGBA(e Estimator) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, e.InputSize(), e.InputSize()))
}

func (e *estimator) Init(ctx context.Context) bool {
	if e.model == nil {
		common.Logger().Warn("depth estimator has no model")
		return false
	}
	if l, ok := e.model.(Loader); ok {
		if err := l.Load(ctx); err != nil {
			common.Logger().Warn("depth model failed to load", "error", err)
			return false
		}
	}
	e.ready.Store(true)
	common.Logger().Info("depth estimator ready", "input", e.inputSize, "workers", e.workers)
	return true
}

func (e *estimator) Ready() bool {
	return e.ready.Load()
}

func (e *estimator) InputSize() int {
	return e.inputSize
}

func (e *estimator) Estimate(ctx context.Context, frame image.Image, out *image.RGBA) error {
	if !e.ready.Load() || frame == nil {
		return common.ErrNotReady
	}
	size := e.inputSize
	if out == nil || out.Bounds() != image.Rect(0, 0, size, size) {
		return fmt.Errorf("depth output must be %dx%d at the origin", size, size)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	xdraw.BiLinear.Scale(e.resized, e.resized.Bounds(), frame, frame.Bounds(), xdraw.Src, nil)
	e.parallelRows(size, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := e.resized.Pix[y*e.resized.Stride:]
			for x := 0; x < size; x++ {
				i := (y*size + x) * 3
				e.tensor[i] = float32(row[x*4])
				e.tensor[i+1] = float32(row[x*4+1])
				e.tensor[i+2] = float32(row[x*4+2])
			}
		}
	})

	if err := ctx.Err(); err != nil {
		return err
	}
	depth, err := e.model.Predict(ctx, e.tensor, size)
	if err != nil {
		return fmt.Errorf("depth inference: %w", err)
	}
	if len(depth) != size*size {
		return fmt.Errorf("depth inference returned %d values, want %d", len(depth), size*size)
	}

	lo, hi := e.minMax(depth, size)
	if lo > hi {
		return ErrNoFiniteDepth
	}
	scale := float32(0)
	if hi > lo {
		scale = 1 / (hi - lo)
	}
	e.parallelRows(size, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			row := out.Pix[y*out.Stride:]
			for x := 0; x < size; x++ {
				var g uint8
				if d := depth[y*size+x]; finite(d) {
					g = uint8(common.Clamp((d-lo)*scale, 0, 1)*255 + 0.5)
				}
				row[x*4], row[x*4+1], row[x*4+2], row[x*4+3] = g, g, g, 255
			}
		}
	})
	return nil
}

// minMax scans row bands in parallel and reduces the per-band extremes of the finite values.
// When there are none it returns lo > hi.
func (e *estimator) minMax(values []float32, size int) (float32, float32) {
	bands := e.bandCount(size)
	los := make([]float32, bands)
	his := make([]float32, bands)
	for i := range los {
		los[i] = float32(math.Inf(1))
		his[i] = float32(math.Inf(-1))
	}
	e.parallelBands(size, bands, func(band, y0, y1 int) {
		lo, hi := los[band], his[band]
		for _, v := range values[y0*size : y1*size] {
			if !finite(v) {
				continue
			}
			lo = min(lo, v)
			hi = max(hi, v)
		}
		los[band], his[band] = lo, hi
	})

	lo, hi := los[0], his[0]
	for i := 1; i < bands; i++ {
		lo = min(lo, los[i])
		hi = max(hi, his[i])
	}
	return lo, hi
}

func finite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func (e *estimator) bandCount(rows int) int {
	return max(1, min(e.workers, rows))
}

func (e *estimator) parallelRows(rows int, fn func(y0, y1 int)) {
	e.parallelBands(rows, e.bandCount(rows), func(_, y0, y1 int) { fn(y0, y1) })
}

// parallelBands splits rows into contiguous bands and runs fn for each on the worker pool.
// A WaitGroup is the barrier; it returns only after every band has finished.
func (e *estimator) parallelBands(rows, bands int, fn func(band, y0, y1 int)) {
	step := (rows + bands - 1) / bands
	var wg sync.WaitGroup
	for band := 0; band < bands; band++ {
		y0 := band * step
		y1 := min(y0+step, rows)
		if y0 >= y1 {
			break
		}
		wg.Add(1)
		e.pool.SubmitTask(worker.Task{
			ID: band,
			Do: func() (any, error) {
				defer wg.Done()
				fn(band, y0, y1)
				return nil, nil
			},
		})
	}
	wg.Wait()
}
