// Command trafficlight detects traffic light bulbs and reports which movements are allowed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/config"
	"github.com/nvr-ai/go-trafficlight/detector"
	"github.com/nvr-ai/go-trafficlight/images"
	"github.com/nvr-ai/go-trafficlight/inference"
	"github.com/nvr-ai/go-trafficlight/profiler"
)

// commonFlags override values from the config file when set.
type commonFlags struct {
	config    *string
	model     *string
	library   *string
	conf      *float64
	iou       *float64
	precision *string
	providers *[]string
	fit       *string
	verbose   *bool
}

func main() {
	parser := argparse.NewParser("trafficlight", "Traffic light detection and movement legality")
	flags := commonFlags{
		config:    parser.String("c", "config", &argparse.Options{Help: "YAML config file"}),
		model:     parser.String("m", "model", &argparse.Options{Help: "ONNX model path (overrides model-path)"}),
		library:   parser.String("", "runtime-library", &argparse.Options{Help: "onnxruntime shared library"}),
		conf:      parser.Float("", "conf", &argparse.Options{Help: "Confidence threshold (overrides conf-threshold)", Default: 0.0}),
		iou:       parser.Float("", "iou", &argparse.Options{Help: "NMS IoU threshold (overrides iou-threshold)", Default: 0.0}),
		precision: parser.Selector("p", "precision", []string{"fp32", "fp16"}, &argparse.Options{Help: "Model precision"}),
		providers: parser.StringList("", "provider", &argparse.Options{Help: "Execution provider, repeatable (e.g. CUDAExecutionProvider)"}),
		fit:       parser.Selector("", "fit", []string{"crop-pad", "letterbox"}, &argparse.Options{Help: "How frames are fitted to the model input"}),
		verbose:   parser.Flag("v", "verbose", &argparse.Options{Help: "Log every detection"}),
	}

	detectCmd := parser.NewCommand("detect", "Run detection on an image or a directory of images")
	detectInput := detectCmd.String("i", "input", &argparse.Options{Help: "Image file or directory", Required: true})
	detectOutput := detectCmd.String("o", "output", &argparse.Options{Help: "Directory for annotated result_<name> images"})
	detectWorkers := detectCmd.Int("w", "workers", &argparse.Options{Help: "Images processed in parallel", Default: 1})
	detectShow := detectCmd.Flag("", "show", &argparse.Options{Help: "Show each annotated result in a window"})

	cameraCmd := parser.NewCommand("camera", "Run detection on a live capture device or video file")
	cameraDevice := cameraCmd.String("d", "device", &argparse.Options{Help: "Capture device ID or video file", Default: "0"})
	cameraHeadless := cameraCmd.Flag("", "headless", &argparse.Options{Help: "Do not open a window"})

	serveCmd := parser.NewCommand("serve", "Serve the detection HTTP API")
	serveAddr := serveCmd.String("a", "addr", &argparse.Options{Help: "Listen address", Default: "127.0.0.1:8080"})

	if err := parser.Parse(os.Args); err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()

	cfg, err := loadConfig(flags)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	prof := profiler.NewRuntimeProfiler(profiler.ProfilingOptions{})
	det, err := detector.Open(cfg, logger, detector.WithProfiler(prof))
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
	defer det.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case detectCmd.Happened():
		_, err = runDetect(ctx, det, logger, detectOptions{
			input:   *detectInput,
			output:  *detectOutput,
			workers: *detectWorkers,
			show:    *detectShow,
			verbose: *flags.verbose,
		})
	case cameraCmd.Happened():
		err = runCamera(ctx, det, logger, *cameraDevice, !*cameraHeadless)
	case serveCmd.Happened():
		err = runServe(ctx, det, logger, prof, *serveAddr)
	}

	prof.Report(logger)
	if err != nil {
		logger.Errorf("%v", err)
		det.Close()
		os.Exit(1)
	}
}

// loadConfig reads the config file, if any, and applies flag overrides.
func loadConfig(flags commonFlags) (config.Config, error) {
	cfg := config.Default()
	if *flags.config != "" {
		loaded, err := config.Load(*flags.config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if *flags.model != "" {
		cfg.ModelPath = *flags.model
	}
	if *flags.library != "" {
		cfg.RuntimeLibrary = *flags.library
	}
	if *flags.conf > 0 {
		cfg.ConfThreshold = float32(*flags.conf)
	}
	if *flags.iou > 0 {
		cfg.IoUThreshold = float32(*flags.iou)
	}
	if *flags.precision != "" {
		cfg.Precision = inference.Precision(*flags.precision)
	}
	if len(*flags.providers) > 0 {
		cfg.SessionProviders = *flags.providers
	}
	if *flags.fit != "" {
		cfg.Fit = images.Fit(*flags.fit)
	}

	return cfg, cfg.Validate()
}
