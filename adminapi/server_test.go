package adminapi

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/gridlocator/gridlocator/cache"
	"github.com/gridlocator/gridlocator/descriptorsync"
	"github.com/gridlocator/gridlocator/serverhandle"
)

func newTestServer(t *testing.T, resolve descriptorsync.HandleResolver) (*Server, *cache.AdapterCache) {
	t.Helper()
	c := cache.New()
	if resolve == nil {
		resolve = func(_ context.Context, _ descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
			return serverhandle.NewMock(), nil
		}
	}
	return New(c, resolve, 1000), c
}

func requestCtx(method, path string, body []byte) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestHandleAddAdapter_PropagatesNodeAddrToResolver(t *testing.T) {
	var seen descriptorsync.DescriptorEvent
	resolve := func(_ context.Context, event descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		seen = event
		return serverhandle.NewMock(), nil
	}
	s, c := newTestServer(t, resolve)

	body, _ := json.Marshal(map[string]any{
		"descriptor":  cache.AdapterDescriptor{ID: "A"},
		"application": "app",
		"node_addr":   "10.0.0.5:9000",
	})
	ctx := requestCtx("POST", "/adapters", body)
	s.handle(ctx)

	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())
	assert.Equal(t, "10.0.0.5:9000", seen.NodeAddr, "the node address parsed from the request must reach the resolver")

	_, err := c.GetServerAdapter("A")
	require.NoError(t, err)
}

func TestHandleAddAdapter_DuplicateReturnsConflict(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, _ := json.Marshal(map[string]any{
		"descriptor":  cache.AdapterDescriptor{ID: "A"},
		"application": "app",
	})
	s.handle(requestCtx("POST", "/adapters", body))

	ctx := requestCtx("POST", "/adapters", body)
	s.handle(ctx)
	assert.Equal(t, fasthttp.StatusConflict, ctx.Response.StatusCode())
}

func TestHandleAddAdapter_InvalidJSONReturnsBadRequest(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := requestCtx("POST", "/adapters", []byte("{not json"))
	s.handle(ctx)
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
}

func TestHandleRemoveAdapter_UnknownIDReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := requestCtx("DELETE", "/adapters?id=nope", nil)
	s.handle(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestHandleResolve_RoundTripsCacheContents(t *testing.T) {
	mock := serverhandle.NewMock()
	mock.Proxies["A"] = serverhandle.AdapterProxy{Endpoint: ":1"}
	s, c := newTestServer(t, func(_ context.Context, _ descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		return mock, nil
	})
	_, err := c.AddServerAdapter(cache.AdapterDescriptor{ID: "A"}, mock, "app")
	require.NoError(t, err)

	ctx := requestCtx("GET", "/resolve?id=A", nil)
	s.handle(ctx)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	var resp struct {
		NReplicas      int                 `json:"n_replicas"`
		IsReplicaGroup bool                `json:"is_replica_group"`
		Proxies        []cache.ProxyResult `json:"proxies"`
	}
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.False(t, resp.IsReplicaGroup)
	assert.Equal(t, 1, resp.NReplicas)
	require.Len(t, resp.Proxies, 1)
	assert.Equal(t, ":1", resp.Proxies[0].Proxy.Endpoint)
}

func TestHandleResolve_UnknownIDReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := requestCtx("GET", "/resolve?id=nope", nil)
	s.handle(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}

func TestThrottled_RejectsOverRateLimit(t *testing.T) {
	c := cache.New()
	resolve := func(_ context.Context, _ descriptorsync.DescriptorEvent) (serverhandle.ServerHandle, error) {
		return serverhandle.NewMock(), nil
	}
	s := New(c, resolve, 0.001)

	body, _ := json.Marshal(map[string]any{
		"descriptor":  cache.AdapterDescriptor{ID: "A"},
		"application": "app",
	})
	first := requestCtx("POST", "/adapters", body)
	s.handle(first)
	assert.Equal(t, fasthttp.StatusCreated, first.Response.StatusCode())

	body2, _ := json.Marshal(map[string]any{
		"descriptor":  cache.AdapterDescriptor{ID: "B"},
		"application": "app",
	})
	second := requestCtx("POST", "/adapters", body2)
	s.handle(second)
	assert.Equal(t, fasthttp.StatusTooManyRequests, second.Response.StatusCode())
}

func TestUnknownRoute_ReturnsNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	ctx := requestCtx("GET", "/nope", nil)
	s.handle(ctx)
	assert.Equal(t, fasthttp.StatusNotFound, ctx.Response.StatusCode())
}
