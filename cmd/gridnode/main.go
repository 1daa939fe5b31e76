// Command gridnode runs a single node process: it hosts a local set of
// server-adapter -> endpoint bindings, samples its own load, and exposes
// both over gridlocatord's wire protocol for the resolver's
// serverhandle.TransportServerHandle to call into.
package main

import (
	"flag"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/metrics"
	"github.com/gridlocator/gridlocator/middleware"
	"github.com/gridlocator/gridlocator/nodeagent"
)

func main() {
	var (
		logLevel       = flag.String("log-level", "info", "log level: debug, info, warn, error")
		listenAddr     = flag.String("listen-addr", ":9000", "TCP listen address for the AdapterHost service")
		rateLimit      = flag.Float64("rate-limit", 500, "requests per second this node accepts")
		rateBurst      = flag.Int("rate-burst", 50, "burst size for the rate limiter")
		requestTimeout = flag.Duration("request-timeout", 2*time.Second, "per-request handling timeout")
		shutdownWait   = flag.Duration("shutdown-wait", 10*time.Second, "time to wait for in-flight requests on shutdown")
		metricsAddr    = flag.String("metrics-addr", ":9090", "Prometheus /metrics listen address")
	)
	flag.Parse()

	gridlog.Init(*logLevel)
	metrics.Register()

	host := nodeagent.NewHost()
	adapterHost := nodeagent.NewAdapterHost(host)

	server := nodeagent.NewServer()
	if err := server.Register(adapterHost); err != nil {
		gridlog.L().Fatalw("failed to register AdapterHost service", "error", err)
	}

	server.Use(middleware.LoggingMiddleware())
	server.Use(middleware.RateLimitMiddleware(*rateLimit, *rateBurst))
	server.Use(middleware.TimeOutMiddleware(*requestTimeout))
	server.Use(middleware.RetryMiddleware(2, 50*time.Millisecond))

	go sampleLoadPeriodically(host)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			gridlog.L().Fatalw("metrics server stopped", "error", err)
		}
	}()

	go func() {
		gridlog.L().Infow("gridnode listening", "addr", *listenAddr)
		if err := server.Serve("tcp", *listenAddr); err != nil {
			gridlog.L().Fatalw("server stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	gridlog.L().Infow("shutting down")
	if err := server.Shutdown(*shutdownWait); err != nil {
		gridlog.L().Warnw("graceful shutdown did not complete in time", "error", err)
	}
}

// sampleLoadPeriodically feeds the host's LoadSampler with a coarse
// process-load proxy (current goroutine count) every second, so GetLoad
// has something to average over the 1/5/15 minute windows. A real
// deployment would observe actual per-adapter request latency instead;
// this keeps the node self-contained without a request-timing hook into
// every registered service.
func sampleLoadPeriodically(host *nodeagent.Host) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		host.Observe(float64(runtime.NumGoroutine()))
	}
}
