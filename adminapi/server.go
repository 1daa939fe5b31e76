// Package adminapi is a thin administrative facade over an
// AdapterCache: an HTTP surface for mutating descriptors directly
// (bypassing descriptorsync, for local testing or emergency repair), a
// bulk YAML import endpoint, and a WebSocket stream of live descriptor
// changes. None of this is consulted by the resolution path itself —
// cache.AdapterCache and its entries work the same with or without this
// package ever running.
package adminapi

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/descriptorsync"
	"github.com/gridlocator/gridlocator/gridlog"
)

// Server is the fasthttp-backed mutation/lookup surface. Construct one per
// process with the same *cache.AdapterCache the resolution path uses.
type Server struct {
	cache     *cache.AdapterCache
	resolve   descriptorsync.HandleResolver
	limiter   *rate.Limiter
	broadcast *Broadcaster
}

// New returns a Server over c. resolve builds the serverhandle.ServerHandle
// for a server-adapter added through the API or an import. mutationsPerSec
// caps the combined rate of add/remove/import requests this facade accepts;
// lookups are unthrottled.
func New(c *cache.AdapterCache, resolve descriptorsync.HandleResolver, mutationsPerSec float64) *Server {
	return &Server{
		cache:     c,
		resolve:   resolve,
		limiter:   rate.NewLimiter(rate.Limit(mutationsPerSec), int(mutationsPerSec)+1),
		broadcast: NewBroadcaster(),
	}
}

// Broadcaster returns the descriptorsync.Notifier this server feeds its
// WebSocket subscribers from. Wire it into a Syncer alongside (or instead
// of) a RedisNotifier.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcast
}

// ListenAndServe starts the fasthttp server on addr and blocks.
func (s *Server) ListenAndServe(addr string) error {
	srv := &fasthttp.Server{
		Handler: s.handle,
		Name:    "gridlocator-adminapi",
	}
	return srv.ListenAndServe(addr)
}

func (s *Server) handle(ctx *fasthttp.RequestCtx) {
	path := string(ctx.Path())
	method := string(ctx.Method())

	switch {
	case method == "POST" && path == "/adapters":
		s.throttled(ctx, s.handleAddAdapter)
	case method == "DELETE" && path == "/adapters":
		s.throttled(ctx, s.handleRemoveAdapter)
	case method == "POST" && path == "/replica-groups":
		s.throttled(ctx, s.handleAddReplicaGroup)
	case method == "DELETE" && path == "/replica-groups":
		s.throttled(ctx, s.handleRemoveReplicaGroup)
	case method == "POST" && path == "/import":
		s.throttled(ctx, s.handleImport)
	case method == "GET" && path == "/resolve":
		s.handleResolve(ctx)
	default:
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	}
}

func (s *Server) throttled(ctx *fasthttp.RequestCtx, fn func(*fasthttp.RequestCtx)) {
	if !s.limiter.Allow() {
		ctx.SetStatusCode(fasthttp.StatusTooManyRequests)
		ctx.SetBodyString(`{"error":"rate limit exceeded"}`)
		return
	}
	fn(ctx)
}

func (s *Server) handleAddAdapter(ctx *fasthttp.RequestCtx) {
	var req struct {
		Descriptor  cache.AdapterDescriptor `json:"descriptor"`
		Application string                  `json:"application"`
		NodeAddr    string                  `json:"node_addr"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}

	handle, err := s.resolve(context.Background(), descriptorsync.DescriptorEvent{
		Kind:        descriptorsync.EventAddServerAdapter,
		ID:          req.Descriptor.ID,
		Application: req.Application,
		NodeAddr:    req.NodeAddr,
		Adapter:     &req.Descriptor,
	})
	if err != nil {
		writeError(ctx, fasthttp.StatusBadGateway, err)
		return
	}

	if _, err := s.cache.AddServerAdapter(req.Descriptor, handle, req.Application); err != nil {
		writeError(ctx, fasthttp.StatusConflict, err)
		return
	}
	s.broadcast.Publish(context.Background(), descriptorsync.DescriptorEvent{
		Kind: descriptorsync.EventAddServerAdapter, ID: req.Descriptor.ID, Application: req.Application, Adapter: &req.Descriptor,
	})
	ctx.SetStatusCode(fasthttp.StatusCreated)
}

func (s *Server) handleRemoveAdapter(ctx *fasthttp.RequestCtx) {
	id := string(ctx.QueryArgs().Peek("id"))
	if err := s.cache.RemoveServerAdapter(id); err != nil {
		writeError(ctx, fasthttp.StatusNotFound, err)
		return
	}
	s.broadcast.Publish(context.Background(), descriptorsync.DescriptorEvent{Kind: descriptorsync.EventRemoveServerAdapter, ID: id})
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleAddReplicaGroup(ctx *fasthttp.RequestCtx) {
	var req struct {
		Descriptor  cache.ReplicaGroupDescriptor `json:"descriptor"`
		Application string                       `json:"application"`
	}
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}
	if _, err := s.cache.AddReplicaGroup(req.Descriptor, req.Application); err != nil {
		writeError(ctx, fasthttp.StatusConflict, err)
		return
	}
	s.broadcast.Publish(context.Background(), descriptorsync.DescriptorEvent{
		Kind: descriptorsync.EventAddReplicaGroup, ID: req.Descriptor.ID, Application: req.Application, Group: &req.Descriptor,
	})
	ctx.SetStatusCode(fasthttp.StatusCreated)
}

func (s *Server) handleRemoveReplicaGroup(ctx *fasthttp.RequestCtx) {
	id := string(ctx.QueryArgs().Peek("id"))
	if err := s.cache.RemoveReplicaGroup(id); err != nil {
		writeError(ctx, fasthttp.StatusNotFound, err)
		return
	}
	s.broadcast.Publish(context.Background(), descriptorsync.DescriptorEvent{Kind: descriptorsync.EventRemoveReplicaGroup, ID: id})
	ctx.SetStatusCode(fasthttp.StatusNoContent)
}

func (s *Server) handleImport(ctx *fasthttp.RequestCtx) {
	groups, adapters, err := Import(context.Background(), bytes.NewReader(ctx.PostBody()), s.cache, s.resolve)
	if err != nil {
		writeError(ctx, fasthttp.StatusBadRequest, err)
		return
	}
	body, _ := json.Marshal(struct {
		Groups   int `json:"groups"`
		Adapters int `json:"adapters"`
	}{Groups: groups, Adapters: adapters})
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func (s *Server) handleResolve(ctx *fasthttp.RequestCtx) {
	id := string(ctx.QueryArgs().Peek("id"))
	results, n, isGroup, err := s.cache.ResolveProxies(ctx, id)
	if err != nil {
		writeError(ctx, fasthttp.StatusNotFound, err)
		return
	}

	resp := struct {
		NReplicas      int                 `json:"n_replicas"`
		IsReplicaGroup bool                `json:"is_replica_group"`
		Proxies        []cache.ProxyResult `json:"proxies"`
	}{NReplicas: n, IsReplicaGroup: isGroup, Proxies: results}

	body, err := json.Marshal(resp)
	if err != nil {
		writeError(ctx, fasthttp.StatusInternalServerError, err)
		return
	}
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}

func writeError(ctx *fasthttp.RequestCtx, status int, err error) {
	gridlog.L().Warnw("adminapi request failed", "status", status, "error", err)
	ctx.SetStatusCode(status)
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{Error: err.Error()})
	ctx.SetBody(body)
}
