package main

import (
	"context"
	"sync"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/google/uuid"
	"github.com/nvr-ai/go-trafficlight/annotate"
	"github.com/nvr-ai/go-trafficlight/detector"
	"github.com/nvr-ai/go-trafficlight/util"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

type detectOptions struct {
	input   string
	output  string
	workers int
	show    bool
	verbose bool
}

type detectResult struct {
	file  util.ImageFile
	frame detector.Frame
	err   error
}

// detectSummary counts what a run did.
type detectSummary struct {
	processed int
	skipped   int
}

// runDetect processes a single image or every image in a directory.
//
// Results are handled as soon as a worker finishes them, so only about one frame per
// worker is held at a time. Unreadable images are logged and skipped. A single input that
// fails returns the error.
func runDetect(ctx context.Context, det *detector.Detector, log logs.Log, opts detectOptions) (detectSummary, error) {
	var summary detectSummary
	files, err := util.ListImageFiles(opts.input)
	if err != nil {
		return summary, err
	}
	if len(files) == 0 {
		return summary, errors.Errorf("no images found in %s", opts.input)
	}

	workers := max(opts.workers, 1)
	if opts.show {
		// highgui windows must be driven from one goroutine.
		workers = 1
	}
	runID := uuid.NewString()
	log.Infof("Run %v: %d image(s), %d worker(s)", runID, len(files), workers)

	var window *gocv.Window
	if opts.show {
		window = gocv.NewWindow("trafficlight")
		defer window.Close()
	}

	jobs := make(chan util.ImageFile)
	results := make(chan detectResult, workers)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				results <- detectOne(ctx, det, file)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, f := range files {
			select {
			case jobs <- f:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var firstErr error
	for res := range results {
		if res.err != nil {
			summary.skipped++
			if firstErr == nil {
				firstErr = res.err
			}
			log.Warnf("Skipping %v: %v", res.file.Name, res.err)
			continue
		}
		summary.processed++
		handleResult(log, window, opts, res)
	}
	log.Infof("Run %v: %d processed, %d skipped", runID, summary.processed, summary.skipped)

	if err := ctx.Err(); err != nil {
		return summary, errors.Wrap(err, "detection interrupted")
	}
	if len(files) == 1 && firstErr != nil {
		return summary, firstErr
	}
	if summary.processed == 0 {
		return summary, errors.Errorf("all %d image(s) failed", summary.skipped)
	}
	return summary, nil
}

// handleResult logs one frame and writes or shows it when asked to.
func handleResult(log logs.Log, window *gocv.Window, opts detectOptions, res detectResult) {
	log.Infof("Image: %v Time: %.3fs %v", res.file.Name, res.frame.Duration.Seconds(), res.frame.State)
	if opts.verbose {
		for _, d := range res.frame.Detections {
			log.Debugf("  %v %.3f %v", d.Label, d.Score, d.Box)
		}
	}

	if opts.output != "" {
		path, err := annotate.Save(opts.output, res.file.Name, res.frame.Image, res.frame.Detections, res.frame.State)
		if err != nil {
			log.Warnf("Failed to save result for %v: %v", res.file.Name, err)
		} else {
			log.Debugf("Saved %v", path)
		}
	}

	if window != nil {
		if err := show(window, res.frame); err != nil {
			log.Warnf("Failed to show %v: %v", res.file.Name, err)
		}
	}
}

func detectOne(ctx context.Context, det *detector.Detector, file util.ImageFile) detectResult {
	start := time.Now()
	img, err := util.LoadImage(file.Path)
	if err != nil {
		return detectResult{file: file, err: err}
	}
	frame, err := det.Detect(ctx, img)
	if err != nil {
		return detectResult{file: file, err: errors.Wrapf(err, "detect %s", file.Name)}
	}
	frame.Duration = time.Since(start)
	return detectResult{file: file, frame: frame}
}

// show displays the annotated frame until a key is pressed.
func show(window *gocv.Window, frame detector.Frame) error {
	mat, err := annotate.Render(frame.Image, frame.Detections, frame.State)
	if err != nil {
		return err
	}
	defer mat.Close()
	window.IMShow(mat)
	window.WaitKey(0)
	return nil
}
