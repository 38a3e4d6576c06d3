// Package detector - Traffic light detection pipeline from frame to legality state.
package detector

import (
	"context"
	"image"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/config"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/nvr-ai/go-trafficlight/inference/providers"
	"github.com/nvr-ai/go-trafficlight/models/postprocess"
	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
	"github.com/nvr-ai/go-trafficlight/profiler"
	"github.com/nvr-ai/go-trafficlight/signal"
	"github.com/pkg/errors"
)

// Result is the outcome of one frame.
type Result struct {
	Detections []trafficlight.Detection `json:"detections"`
	State      signal.State             `json:"state"`
}

// Frame is a Result together with the normalised image the boxes refer to.
type Frame struct {
	Result
	Image    *image.RGBA   `json:"-"`
	Duration time.Duration `json:"-"`
}

// Detector runs preprocessing, inference and postprocessing for one model.
//
// A Detector holds no per-frame state; Detect and Process may be called concurrently
// as long as the engine allows it.
type Detector struct {
	cfg      config.Config
	model    trafficlight.Options
	nms      postprocess.NMSConfig
	labels   []trafficlight.ClassLabel
	engine   inference.Engine
	log      logs.Log
	profiler *profiler.RuntimeProfiler
}

// Option customises a Detector.
type Option func(*Detector)

// WithProfiler records stage timings into p.
func WithProfiler(p *profiler.RuntimeProfiler) Option {
	return func(d *Detector) { d.profiler = p }
}

// WithLabels renames the classes. New rejects a table without one entry per model class.
func WithLabels(labels []trafficlight.ClassLabel) Option {
	return func(d *Detector) { d.labels = labels }
}

// New creates a detector around an existing engine.
//
// Arguments:
//   - cfg: A configuration; it is validated here.
//   - engine: The forward pass.
//   - log: The logger.
//   - opts: Optional settings.
//
// Returns:
//   - *Detector: The detector. Closing it closes the engine.
//   - error: An error if the configuration is invalid.
func New(cfg config.Config, engine inference.Engine, log logs.Log, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	if engine == nil {
		return nil, errors.New("engine is required")
	}
	d := &Detector{
		cfg:    cfg,
		model:  cfg.ModelOptions(),
		nms:    cfg.NMS(),
		labels: trafficlight.Labels,
		engine: engine,
		log:    log,
	}
	for _, opt := range opts {
		opt(d)
	}
	if len(d.labels) != d.model.ClassCount() {
		return nil, errors.Errorf("label table has %d entries, model has %d classes", len(d.labels), d.model.ClassCount())
	}
	return d, nil
}

// Open loads the configured ONNX model and returns a detector that owns it.
func Open(cfg config.Config, log logs.Log, opts ...Option) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	args, err := cfg.EngineArgs()
	if err != nil {
		return nil, err
	}
	engine, err := providers.NewEngine(args, log)
	if err != nil {
		return nil, errors.Wrap(err, "open model")
	}
	d, err := New(cfg, engine, log, opts...)
	if err != nil {
		engine.Close()
		return nil, err
	}
	return d, nil
}

// Config returns the configuration the detector was built with.
func (d *Detector) Config() config.Config {
	return d.cfg
}

// Close releases the engine.
func (d *Detector) Close() error {
	return d.engine.Close()
}

// Detect runs the full pipeline on one frame.
//
// Arguments:
//   - ctx: Checked before inference.
//   - img: The camera frame, any size.
//
// Returns:
//   - Frame: Detections in the coordinates of Frame.Image, plus the legality state.
//   - error: An error if preprocessing, inference or postprocessing fails.
func (d *Detector) Detect(ctx context.Context, img image.Image) (Frame, error) {
	start := time.Now()

	done := d.profiler.StartOperation(profiler.StagePreprocess)
	input, frame, err := inference.PrepareInput(img, d.cfg.Fit, d.model.Width, d.model.Height)
	done()
	if err != nil {
		return Frame{}, err
	}

	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	done = d.profiler.StartOperation(profiler.StageInference)
	output, err := d.engine.Predict(ctx, input)
	done()
	if err != nil {
		return Frame{}, errors.Wrap(err, "inference")
	}

	result, err := d.ProcessTensor(output)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Result: result, Image: frame, Duration: time.Since(start)}, nil
}

// ProcessTensor postprocesses a channels-first model output tensor.
func (d *Detector) ProcessTensor(output inference.Tensor) (Result, error) {
	raw, err := trafficlight.FromModelOutput(output.Shape, output.Data)
	if err != nil {
		return Result{}, errors.Wrap(err, "model output")
	}
	return d.Process(raw)
}

// Process decodes, suppresses, assembles and resolves one raw output.
//
// It is pure: the same input always yields the same Result.
func (d *Detector) Process(raw trafficlight.RawOutput) (Result, error) {
	done := d.profiler.StartOperation(profiler.StageDecode)
	candidates, err := trafficlight.DecodeClasses(raw, d.nms.ScoreThreshold, len(d.labels))
	done()
	if err != nil {
		return Result{}, errors.Wrap(err, "decode")
	}

	done = d.profiler.StartOperation(profiler.StageSuppress)
	keep := postprocess.Suppress(candidates, d.nms)
	done()

	detections, err := trafficlight.Assemble(candidates, keep, d.labels)
	if err != nil {
		return Result{}, errors.Wrap(err, "assemble")
	}

	done = d.profiler.StartOperation(profiler.StageResolve)
	state := d.cfg.Policy.Resolve(detections)
	done()

	if d.log != nil {
		d.log.Debugf("%d candidates, %d detections, %v", len(candidates), len(detections), state)
	}
	return Result{Detections: detections, State: state}, nil
}
