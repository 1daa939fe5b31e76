// Command gridlocatord runs the adapter-cache / replica-group resolution
// process: an etcd-backed descriptorsync.Syncer feeding a cache.AdapterCache,
// fronted by adminapi's HTTP/WebSocket facade and instrumented with
// Prometheus metrics.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/gridlocator/gridlocator/adminapi"
	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/descriptorsync"
	"github.com/gridlocator/gridlocator/gridlog"
	"github.com/gridlocator/gridlocator/metrics"
	"github.com/gridlocator/gridlocator/serverhandle"
)

func main() {
	var (
		logLevel        = flag.String("log-level", "info", "log level: debug, info, warn, error")
		etcdEndpoints   = flag.String("etcd-endpoints", "127.0.0.1:2379", "comma-separated etcd endpoints")
		redisAddr       = flag.String("redis-addr", "", "redis address for change notifications (empty disables)")
		adminAddr       = flag.String("admin-addr", ":8081", "adminapi HTTP listen address")
		watchAddr       = flag.String("watch-addr", ":8082", "adminapi WebSocket listen address")
		metricsAddr     = flag.String("metrics-addr", ":8083", "Prometheus /metrics listen address")
		mutationsPerSec = flag.Float64("admin-mutations-per-sec", 20, "adminapi mutation-endpoint rate limit")
	)
	flag.Parse()

	gridlog.Init(*logLevel)
	metrics.Register()

	etcdClient, err := clientv3.New(clientv3.Config{
		Endpoints:   splitCSV(*etcdEndpoints),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		gridlog.L().Fatalw("failed to connect to etcd", "error", err)
	}
	defer etcdClient.Close()

	adapterCache := cache.New()
	handles := serverhandle.NewHandleSet()
	defer handles.CloseAll()

	resolve := descriptorsync.HandleResolver(func(_ context.Context, event descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		return handles.Get(event.NodeAddr), nil
	})

	var notifier descriptorsync.Notifier
	if *redisAddr != "" {
		notifier = descriptorsync.NewRedisNotifier(redis.NewClient(&redis.Options{Addr: *redisAddr}))
	}

	syncer := descriptorsync.New(etcdClient, adapterCache, resolve, notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := syncer.Bootstrap(ctx); err != nil {
		gridlog.L().Fatalw("bootstrap from etcd failed", "error", err)
	}

	go func() {
		if err := syncer.Run(ctx); err != nil && ctx.Err() == nil {
			gridlog.L().Errorw("descriptor watch stopped", "error", err)
		}
	}()

	admin := adminapi.New(adapterCache, resolve, *mutationsPerSec)
	watch := adminapi.NewWatchServer(admin.Broadcaster())

	go func() {
		if err := admin.ListenAndServe(*adminAddr); err != nil {
			gridlog.L().Fatalw("adminapi server stopped", "error", err)
		}
	}()
	go func() {
		if err := watch.ListenAndServe(*watchAddr); err != nil {
			gridlog.L().Fatalw("watch server stopped", "error", err)
		}
	}()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
			gridlog.L().Fatalw("metrics server stopped", "error", err)
		}
	}()

	gridlog.L().Infow("gridlocatord started", "admin_addr", *adminAddr, "watch_addr", *watchAddr, "metrics_addr", *metricsAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	gridlog.L().Infow("shutting down")
	cancel()
	if err := handles.CloseAll(); err != nil {
		gridlog.L().Warnw("errors closing node handles", "error", err)
	}
}

func splitCSV(s string) []string {
	var out []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == ',' {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}
