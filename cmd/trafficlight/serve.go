package main

import (
	"context"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/nvr-ai/go-trafficlight/detector"
	"github.com/nvr-ai/go-trafficlight/profiler"
	"github.com/nvr-ai/go-trafficlight/server"
)

const profileInterval = time.Minute

func runServe(ctx context.Context, det *detector.Detector, log logs.Log, prof *profiler.RuntimeProfiler, addr string) error {
	prof.Start(log, profileInterval)
	defer prof.Stop()

	return server.New(det, log, prof).ListenAndServe(ctx, addr)
}
