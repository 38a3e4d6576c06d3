package detector

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/google/go-cmp/cmp"
	"github.com/nvr-ai/go-trafficlight/config"
	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/nvr-ai/go-trafficlight/models/trafficlight"
	"github.com/nvr-ai/go-trafficlight/profiler"
	"github.com/nvr-ai/go-trafficlight/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// channelsFirst lays rows of 12 values out as a [1, 12, len(rows)] tensor.
func channelsFirst(rows ...[]float32) inference.Tensor {
	n := len(rows)
	data := make([]float32, 12*n)
	for a, r := range rows {
		for c, v := range r {
			data[c*n+a] = v
		}
	}
	return inference.Tensor{Shape: []int64{1, 12, int64(n)}, Data: data}
}

func row(cx, cy, w, h float32, label trafficlight.ClassLabel, score float32) []float32 {
	r := make([]float32, 12)
	r[0], r[1], r[2], r[3] = cx, cy, w, h
	for i, l := range trafficlight.Labels {
		if l == label {
			r[4+i] = score
		}
	}
	return r
}

// fakeEngine returns a fixed output and records the inputs it saw.
type fakeEngine struct {
	mu     sync.Mutex
	output inference.Tensor
	err    error
	inputs []inference.Tensor
	closed bool
}

func (f *fakeEngine) Predict(_ context.Context, in inference.Tensor) (inference.Tensor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs = append(f.inputs, in)
	return f.output, f.err
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func newDetector(t *testing.T, engine inference.Engine, opts ...Option) *Detector {
	t.Helper()
	d, err := New(config.Default(), engine, logs.NewTestingLog(t), opts...)
	require.NoError(t, err)
	return d
}

// TestDetect_EndToEnd runs small outputs through the whole pipeline.
func TestDetect_EndToEnd(t *testing.T) {
	tests := []struct {
		name  string
		rows  [][]float32
		want  []trafficlight.Detection
		state signal.State
	}{
		{
			name: "red right over forward off on the same box",
			rows: [][]float32{
				row(100, 100, 40, 40, trafficlight.R0, 0.9),
				row(100, 100, 40, 40, trafficlight.F0, 0.8),
			},
			want: []trafficlight.Detection{{
				Box:   images.Rect{X1: 80, Y1: 80, X2: 120, Y2: 120},
				Label: trafficlight.R0,
				Score: 0.9,
			}},
			state: signal.State{Left: false, Straight: false, Right: false},
		},
		{
			name: "shifted duplicate of another class",
			rows: [][]float32{
				row(100, 100, 40, 40, trafficlight.R0, 0.9),
				row(102, 100, 40, 40, trafficlight.R1, 0.6),
			},
			want: []trafficlight.Detection{{
				Box:   images.Rect{X1: 80, Y1: 80, X2: 120, Y2: 120},
				Label: trafficlight.R0,
				Score: 0.9,
			}},
			state: signal.State{Left: false, Straight: false, Right: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := &fakeEngine{output: channelsFirst(tt.rows...)}
			prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
			d := newDetector(t, engine, WithProfiler(prof))

			frame, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 1280, 720)))
			require.NoError(t, err)

			if diff := cmp.Diff(tt.want, frame.Detections); diff != "" {
				t.Errorf("detections mismatch (-want +got):\n%s", diff)
			}
			assert.Equal(t, tt.state, frame.State)
			assert.Equal(t, image.Rect(0, 0, 640, 480), frame.Image.Bounds())

			require.Len(t, engine.inputs, 1)
			assert.Equal(t, []int64{1, 3, 480, 640}, engine.inputs[0].Shape)
			assert.Len(t, engine.inputs[0].Data, 3*480*640)

			stages := map[string]bool{}
			for _, s := range prof.Summary() {
				stages[s.Name] = true
			}
			for _, s := range []string{profiler.StagePreprocess, profiler.StageInference, profiler.StageDecode, profiler.StageSuppress, profiler.StageResolve} {
				assert.True(t, stages[s], "missing stage %s", s)
			}

			require.NoError(t, d.Close())
			assert.True(t, engine.closed)
		})
	}
}

// TestProcess covers the pure postprocessing path.
func TestProcess(t *testing.T) {
	d := newDetector(t, &fakeEngine{})

	tests := []struct {
		name   string
		rows   [][]float32
		labels []trafficlight.ClassLabel
		state  signal.State
	}{
		{
			name:   "nothing detected",
			rows:   [][]float32{row(10, 10, 4, 4, trafficlight.L1, 0.1)},
			labels: []trafficlight.ClassLabel{},
			state:  signal.State{Right: true},
		},
		{
			name: "forward green with left red",
			rows: [][]float32{
				row(100, 100, 20, 40, trafficlight.F1, 0.8),
				row(200, 100, 20, 40, trafficlight.L0, 0.7),
			},
			labels: []trafficlight.ClassLabel{trafficlight.F1, trafficlight.L0},
			state:  signal.State{Left: false, Straight: true, Right: true},
		},
		{
			name: "below threshold rows are ignored",
			rows: [][]float32{
				row(100, 100, 20, 40, trafficlight.S1, 0.9),
				row(300, 100, 20, 40, trafficlight.S0, 0.25),
			},
			labels: []trafficlight.ClassLabel{trafficlight.S1},
			state:  signal.State{Straight: true, Right: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := d.ProcessTensor(channelsFirst(tt.rows...))
			require.NoError(t, err)
			assert.Equal(t, tt.labels, trafficlight.LabelsOf(result.Detections))
			assert.Equal(t, tt.state, result.State)
		})
	}
}

// TestProcess_Deterministic checks repeated calls give identical results.
func TestProcess_Deterministic(t *testing.T) {
	d := newDetector(t, &fakeEngine{})
	out := channelsFirst(
		row(100, 100, 40, 40, trafficlight.R0, 0.9),
		row(105, 100, 40, 40, trafficlight.R1, 0.9),
		row(300, 100, 40, 40, trafficlight.S1, 0.5),
	)

	first, err := d.ProcessTensor(out)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := d.ProcessTensor(out)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// Equal scores keep row order, so the first R0 wins.
	assert.Equal(t, []trafficlight.ClassLabel{trafficlight.R0, trafficlight.S1}, trafficlight.LabelsOf(first.Detections))
}

// TestDetect_Errors propagates typed errors through the wrapping.
func TestDetect_Errors(t *testing.T) {
	ctx := context.Background()
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))

	bad := &fakeEngine{output: inference.Tensor{Shape: []int64{1, 10, 1}, Data: make([]float32, 10)}}
	_, err := newDetector(t, bad).Detect(ctx, img)
	var shapeErr *trafficlight.ShapeError
	assert.True(t, errors.As(err, &shapeErr), "got %v", err)

	failing := &fakeEngine{err: errors.New("device lost")}
	_, err = newDetector(t, failing).Detect(ctx, img)
	assert.ErrorContains(t, err, "device lost")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	idle := &fakeEngine{}
	_, err = newDetector(t, idle).Detect(cancelled, img)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, idle.inputs)
}

// TestNew_Validation rejects bad configs and a missing engine.
func TestNew_Validation(t *testing.T) {
	cfg := config.Default()
	cfg.ConfThreshold = 2
	_, err := New(cfg, &fakeEngine{}, logs.NewTestingLog(t))
	assert.Error(t, err)

	_, err = New(config.Default(), nil, logs.NewTestingLog(t))
	assert.Error(t, err)
}

// TestNew_LabelTableSize rejects label tables that do not match the model classes.
func TestNew_LabelTableSize(t *testing.T) {
	engine := &fakeEngine{output: channelsFirst(row(100, 100, 40, 40, trafficlight.F1, 0.9))}

	tests := []struct {
		name   string
		labels []trafficlight.ClassLabel
	}{
		{"too short", trafficlight.Labels[:7]},
		{"too long", append(append([]trafficlight.ClassLabel{}, trafficlight.Labels...), trafficlight.F1)},
		{"empty", []trafficlight.ClassLabel{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(config.Default(), engine, logs.NewTestingLog(t), WithLabels(tt.labels))
			assert.ErrorContains(t, err, "label table")
		})
	}

	renamed := append([]trafficlight.ClassLabel{}, trafficlight.Labels...)
	d := newDetector(t, engine, WithLabels(renamed))
	frame, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 48)))
	require.NoError(t, err)
	assert.Equal(t, []trafficlight.ClassLabel{trafficlight.F1}, trafficlight.LabelsOf(frame.Detections))
}

// TestDetect_Concurrent runs frames in parallel against one detector.
func TestDetect_Concurrent(t *testing.T) {
	engine := &fakeEngine{output: channelsFirst(row(100, 100, 40, 40, trafficlight.L1, 0.9))}
	d := newDetector(t, engine)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			frame, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 64, 48)))
			assert.NoError(t, err)
			assert.True(t, frame.State.Left)
		}()
	}
	wg.Wait()
	assert.Len(t, engine.inputs, 8)
}
