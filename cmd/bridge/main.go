// Package main is the bridge process entry point: loads config, builds the
// IPC client and streaming performance layer, wires logging, and runs until
// signaled.
/*
 * Copyright (c) 2024-2026, the unity-mcp-bridge authors.
 */
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tsukushibito/unity-mcp-bridge/config"
	"github.com/tsukushibito/unity-mcp-bridge/hk"
	"github.com/tsukushibito/unity-mcp-bridge/ipc"
	"github.com/tsukushibito/unity-mcp-bridge/mcp"
	"github.com/tsukushibito/unity-mcp-bridge/nlog"
	"github.com/tsukushibito/unity-mcp-bridge/perf"
)

var (
	build     string
	buildtime string

	profile string
)

func init() {
	flag.StringVar(&profile, "profile", "balanced", "performance profile: balanced|high-performance|memory-efficient|development")
}

func main() {
	if len(os.Args) == 2 && os.Args[1] == "version" {
		printVersion()
		os.Exit(0)
	}
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ipcCfg := config.IpcFromEnv()
	perfCfg := perfProfile(profile)
	if err := perfCfg.Validate(); err != nil {
		nlog.Errorf("invalid performance config: %v", err)
		os.Exit(1)
	}

	go hk.DefaultHK.Run()
	hk.WaitStarted()

	client := ipc.NewClient(ipcCfg)
	defer client.Close()

	cache, err := perf.NewCache(perfCfg)
	if err != nil {
		nlog.Errorf("cache init: %v", err)
		os.Exit(1)
	}
	limiter := perf.NewRateLimiter(perfCfg.RateLimitPerSecond)
	validators := perf.NewValidatorPool(perfCfg)
	workers := perf.NewWorkerPool(perfCfg.WorkerCount, perfCfg.QueueCapacity)
	defer workers.Shutdown()

	dispatcher := mcp.NewBridgeDispatcher(client)
	stream := newHealthStream(dispatcher, ipcCfg, perfCfg, limiter, cache, validators, workers)
	defer stream.Close()
	go drainHealthStream(stream)
	startHealthProbe(ctx, stream)

	reg := prometheus.NewRegistry()
	metrics := perf.NewMetrics(reg)
	startMetricsSampler(cache, validators, workers, metrics)
	serveMetrics(reg)

	go client.Run(ctx)

	nlog.Infof("bridge started, endpoint=%s profile=%s", ipcCfg.Endpoint, profile)
	<-ctx.Done()
	nlog.Infof("bridge shutting down")
}

// startMetricsSampler registers a housekeeper job that copies cache/pool/
// worker-queue snapshots into the Prometheus gauges every 5s, keeping
// cache.go/pool.go/worker_pool.go's hot paths free of inline metric calls.
func startMetricsSampler(cache *perf.Cache, validators *perf.ValidatorPool, workers *perf.WorkerPool, metrics *perf.Metrics) {
	prevCache := cache.Stats()
	hk.Reg("metrics-sampler", func() time.Duration {
		cur := cache.Stats()
		metrics.SampleCache(prevCache, cur)
		prevCache = cur
		metrics.SampleValidatorPool(validators.Stats())
		metrics.SampleBufferPool(cache.BufferStats())
		metrics.SampleWorkerQueueDepth(workers.QueueDepth())
		return 5 * time.Second
	}, 5*time.Second)
}

// newHealthStream wires the BridgeDispatcher into a perf.Stream so calls
// flow through the full C8 pipeline (validate, rate-limit, cache-probe,
// worker dispatch, in-order delivery) instead of calling the dispatcher
// directly and bypassing it.
func newHealthStream(dispatcher *mcp.BridgeDispatcher, ipcCfg config.IpcConfig, perfCfg perf.Config, limiter *perf.RateLimiter, cache *perf.Cache, validators *perf.ValidatorPool, workers *perf.WorkerPool) *perf.Stream {
	handler := func(req perf.Request) ([]byte, error) {
		result, err := dispatcher.Dispatch(context.Background(), mcp.ToolCall{Name: req.OpKind, Timeout: ipcCfg.CallTimeout})
		if err != nil {
			return nil, err
		}
		return jsoniter.ConfigCompatibleWithStandardLibrary.Marshal(result)
	}
	return perf.NewStream("bridge-health", perfCfg, limiter, cache, validators, workers, handler)
}

// drainHealthStream reads every response the health stream produces and
// logs the failed ones. It must
// run for the stream's lifetime, since Stream's in-order delivery blocks
// once Outbound's buffer fills if nothing reads it.
func drainHealthStream(stream *perf.Stream) {
	for resp := range stream.Outbound() {
		if resp.Err != nil {
			nlog.Warnf("health probe failed: %v", resp.Err)
		}
	}
}

// startHealthProbe periodically submits a health check through the C8
// pipeline, so the dispatcher and streaming processor carry real traffic
// in the running process rather than sitting wired but unexercised.
func startHealthProbe(ctx context.Context, stream *perf.Stream) {
	var seq uint64
	hk.Reg("health-probe", func() time.Duration {
		select {
		case <-ctx.Done():
			return time.Hour
		default:
		}
		n := atomic.AddUint64(&seq, 1) - 1
		stream.Submit(perf.Request{ClientID: "bridge-health", Seq: n, OpKind: "health"})
		return 30 * time.Second
	}, time.Second)
}

func metricsAddr() string {
	if addr := os.Getenv("MCP_METRICS_ADDR"); addr != "" {
		return addr
	}
	return "127.0.0.1:9090"
}

func serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := metricsAddr()
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			nlog.Warnf("metrics server stopped: %v", err)
		}
	}()
	nlog.Infof("metrics listening on %s", addr)
}

func perfProfile(name string) perf.Config {
	switch name {
	case "high-performance":
		return perf.HighPerformance()
	case "memory-efficient":
		return perf.MemoryEfficient()
	case "development":
		return perf.Development()
	default:
		return perf.Default()
	}
}

func printVersion() {
	out := map[string]string{"build": build, "buildtime": buildtime}
	b, _ := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(out, "", "  ")
	os.Stdout.Write(b)
	os.Stdout.Write([]byte("\n"))
}
