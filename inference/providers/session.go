package providers

import (
	"context"
	"encoding/binary"
	"os"
	"slices"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/pkg/errors"
	"github.com/x448/float16"
	ort "github.com/yalue/onnxruntime_go"
)

// envMu guards the process wide ONNX Runtime environment.
var envMu sync.Mutex

// NewEngineArgs represents the arguments for creating a new ONNX Runtime engine.
type NewEngineArgs struct {
	// The path to the ONNX model file.
	ModelPath string
	// The onnxruntime shared library; empty uses GetSharedLibPath defaults.
	LibraryPath string
	// Graph input and output names.
	InputName  string
	OutputName string
	// Fixed tensor shapes of the exported graph.
	InputShape  []int64
	OutputShape []int64
	// Element type of the graph's input and output.
	Precision inference.Precision
	// Execution provider selection.
	Providers Config
}

func (a NewEngineArgs) validate() error {
	if a.ModelPath == "" {
		return errors.New("model path is required")
	}
	if a.InputName == "" || a.OutputName == "" {
		return errors.New("input and output names are required")
	}
	if shapeSize(a.InputShape) <= 0 || shapeSize(a.OutputShape) <= 0 {
		return errors.Errorf("invalid tensor shapes %v -> %v", a.InputShape, a.OutputShape)
	}
	if _, err := inference.ParsePrecision(string(a.Precision)); err != nil {
		return err
	}
	return nil
}

// Engine runs an ONNX model with preallocated input and output tensors.
//
// The bound tensors are shared by every call, so Predict holds a lock for the whole
// copy-in, run, copy-out sequence.
type Engine struct {
	log       logs.Log
	args      NewEngineArgs
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     ort.ArbitraryTensor
	output    ort.ArbitraryTensor
	inputF32  *ort.Tensor[float32]
	outputF32 *ort.Tensor[float32]
	inputF16  *ort.CustomDataTensor
	outputF16 *ort.CustomDataTensor
}

// NewEngine creates a new ONNX Runtime engine.
//
// Order of operations:
//  1. Library path check: Ensures native runtime is accessible.
//  2. Environment setup: Once per process.
//  3. Tensor allocation: Fixed-shape buffers for input/output data.
//  4. Session options: Threading and execution providers.
//  5. Session creation: Loads the model and binds the tensors.
//
// Arguments:
//   - args: The arguments for the engine.
//   - log: The logger.
//
// Returns:
//   - *Engine: The engine. Close must be called to release native resources.
//   - error: An error if the engine creation fails.
func NewEngine(args NewEngineArgs, log logs.Log) (*Engine, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	if args.Precision == "" {
		args.Precision = inference.PrecisionFP32
	}
	if _, err := os.Stat(args.ModelPath); err != nil {
		return nil, errors.Wrap(err, "model not found")
	}
	if err := initEnvironment(args.LibraryPath); err != nil {
		return nil, err
	}

	e := &Engine{log: log, args: args}
	if err := e.allocate(); err != nil {
		e.destroyTensors()
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		e.destroyTensors()
		return nil, errors.Wrap(err, "error creating ORT session options")
	}
	defer options.Destroy()

	if args.Providers.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(args.Providers.IntraOpThreads); err != nil {
			e.destroyTensors()
			return nil, errors.Wrap(err, "error setting intra-op threads")
		}
	}
	if err := appendExecutionProviders(options, args.Providers); err != nil {
		e.destroyTensors()
		return nil, err
	}

	session, err := ort.NewAdvancedSession(
		args.ModelPath,
		[]string{args.InputName},
		[]string{args.OutputName},
		[]ort.ArbitraryTensor{e.input},
		[]ort.ArbitraryTensor{e.output},
		options,
	)
	if err != nil {
		e.destroyTensors()
		return nil, errors.Wrapf(err, "error creating ORT session for %s", args.ModelPath)
	}
	e.session = session

	log.Infof("Loaded %s (%s, input %v, output %v, providers %v)",
		args.ModelPath, args.Precision, args.InputShape, args.OutputShape, args.Providers.Backends)
	return e, nil
}

func initEnvironment(libraryPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	libPath, err := GetSharedLibPath(libraryPath)
	if err != nil {
		return err
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s or runtime-library)", libPath, LibraryPathEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

func (e *Engine) allocate() error {
	inShape := ort.NewShape(e.args.InputShape...)
	outShape := ort.NewShape(e.args.OutputShape...)

	switch e.args.Precision {
	case inference.PrecisionFP16:
		in, err := ort.NewCustomDataTensor(inShape, make([]byte, 2*inShape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return errors.Wrap(err, "error creating fp16 input tensor")
		}
		e.inputF16, e.input = in, in
		out, err := ort.NewCustomDataTensor(outShape, make([]byte, 2*outShape.FlattenedSize()), ort.TensorElementDataTypeFloat16)
		if err != nil {
			return errors.Wrap(err, "error creating fp16 output tensor")
		}
		e.outputF16, e.output = out, out
	default:
		in, err := ort.NewEmptyTensor[float32](inShape)
		if err != nil {
			return errors.Wrap(err, "error creating input tensor")
		}
		e.inputF32, e.input = in, in
		out, err := ort.NewEmptyTensor[float32](outShape)
		if err != nil {
			return errors.Wrap(err, "error creating output tensor")
		}
		e.outputF32, e.output = out, out
	}
	return nil
}

// Predict runs one forward pass.
//
// Arguments:
//   - ctx: Checked before the run starts; a started run is not interrupted.
//   - input: A tensor whose shape matches the model input.
//
// Returns:
//   - inference.Tensor: A fresh copy of the model output.
//   - error: An error if the input does not fit or the run fails.
func (e *Engine) Predict(ctx context.Context, input inference.Tensor) (inference.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return inference.Tensor{}, err
	}
	if want := shapeSize(e.args.InputShape); int64(len(input.Data)) != want {
		return inference.Tensor{}, errors.Errorf("input has %d values, model expects %d %v", len(input.Data), want, e.args.InputShape)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return inference.Tensor{}, errors.New("engine is closed")
	}

	if e.inputF16 != nil {
		encodeFloat16(e.inputF16.GetData(), input.Data)
	} else {
		copy(e.inputF32.GetData(), input.Data)
	}

	if err := e.session.Run(); err != nil {
		return inference.Tensor{}, errors.Wrap(err, "error running ORT session")
	}

	var data []float32
	if e.outputF16 != nil {
		data = decodeFloat16(e.outputF16.GetData())
	} else {
		data = slices.Clone(e.outputF32.GetData())
	}
	return inference.Tensor{Shape: slices.Clone(e.args.OutputShape), Data: data}, nil
}

// Close releases the session and its tensors.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var err error
	if e.session != nil {
		if derr := e.session.Destroy(); derr != nil {
			err = errors.Wrap(derr, "error destroying ORT session")
		}
		e.session = nil
	}
	e.destroyTensors()
	return err
}

func (e *Engine) destroyTensors() {
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
	e.inputF32, e.outputF32, e.inputF16, e.outputF16 = nil, nil, nil, nil
}

func shapeSize(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

// encodeFloat16 writes src as little-endian IEEE 754 half floats into dst.
func encodeFloat16(dst []byte, src []float32) {
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*2:], float16.Fromfloat32(v).Bits())
	}
}

// decodeFloat16 reads little-endian half floats.
func decodeFloat16(src []byte) []float32 {
	out := make([]float32, len(src)/2)
	for i := range out {
		out[i] = float16.Frombits(binary.LittleEndian.Uint16(src[i*2:])).Float32()
	}
	return out
}
