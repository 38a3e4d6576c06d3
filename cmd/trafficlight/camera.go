package main

import (
	"context"
	"strconv"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/annotate"
	"github.com/nvr-ai/go-trafficlight/detector"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// runCamera reads frames from a capture device (or video file) until the context is
// cancelled, the stream ends or ESC is pressed in the window.
func runCamera(ctx context.Context, det *detector.Detector, log logs.Log, device string, display bool) error {
	var source any = device
	if id, err := strconv.Atoi(device); err == nil {
		source = id
	}
	capture, err := gocv.OpenVideoCapture(source)
	if err != nil {
		return errors.Wrapf(err, "open capture device %v", device)
	}
	defer capture.Close()

	var window *gocv.Window
	if display {
		window = gocv.NewWindow("trafficlight")
		defer window.Close()
	}

	mat := gocv.NewMat()
	defer mat.Close()

	frames := 0
	windowStart := time.Now()
	for ctx.Err() == nil {
		if ok := capture.Read(&mat); !ok {
			log.Infof("Capture %v ended after %d frame(s)", device, frames)
			return nil
		}
		if mat.Empty() {
			continue
		}

		img, err := mat.ToImage()
		if err != nil {
			log.Warnf("Failed to convert frame: %v", err)
			continue
		}
		frame, err := det.Detect(ctx, img)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Warnf("Frame %d: %v", frames, err)
			continue
		}
		frames++

		if elapsed := time.Since(windowStart); elapsed >= time.Second {
			log.Infof("FPS: %.1f %v", float64(frames)/elapsed.Seconds(), frame.State)
			frames = 0
			windowStart = time.Now()
		}

		if window != nil {
			if err := showLive(window, frame); err != nil {
				log.Warnf("Failed to render frame: %v", err)
			}
			if window.WaitKey(1) == 27 {
				return nil
			}
		}
	}
	return nil
}

func showLive(window *gocv.Window, frame detector.Frame) error {
	out, err := annotate.Render(frame.Image, frame.Detections, frame.State)
	if err != nil {
		return err
	}
	defer out.Close()
	window.IMShow(out)
	return nil
}
