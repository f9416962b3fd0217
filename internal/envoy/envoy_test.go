package envoy

import (
	"testing"

	listener "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	route "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	hcm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	resource "github.com/envoyproxy/go-control-plane/pkg/resource/v3"
	"github.com/golang/protobuf/ptypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

var opts = Options{InvokerHost: "invoker", InvokerPort: 8080, ListenPort: 18000}

func itemsSet() routes.Set {
	return routes.Set{GatewayID: "api1", Routes: []internal.Route{
		{GatewayID: "api1", Method: "GET", Path: "/items/{id}", Function: "getItem"},
		{GatewayID: "api1", Method: "GET", Path: "/items", Function: "listItems"},
		{GatewayID: "api1", Method: "post", Path: "/items", Function: "createItem"},
	}}
}

func virtualHostRoutes(t *testing.T, snap cachev3.Snapshot) []*route.Route {
	t.Helper()
	listeners := snap.GetResources(resource.ListenerType)
	require.Len(t, listeners, 1)
	l := listeners[ListenerName].(*listener.Listener)

	var manager hcm.HttpConnectionManager
	require.NoError(t, ptypes.UnmarshalAny(l.FilterChains[0].Filters[0].GetTypedConfig(), &manager))
	hosts := manager.GetRouteConfig().GetVirtualHosts()
	require.Len(t, hosts, 1)
	return hosts[0].Routes
}

func TestSnapshot(t *testing.T) {
	snap, err := Snapshot("1", itemsSet(), opts)
	require.NoError(t, err)
	require.NoError(t, snap.Consistent())
	assert.Len(t, snap.GetResources(resource.ClusterType), 1)

	rs := virtualHostRoutes(t, snap)
	require.Len(t, rs, 3)

	// Literal paths come before templated ones.
	assert.Equal(t, "GET /items", rs[0].Name)
	assert.Equal(t, "/items", rs[0].Match.GetPath())
	assert.Equal(t, "GET", rs[0].Match.Headers[0].GetExactMatch())
	assert.Equal(t, "listItems", rs[0].RequestHeadersToAdd[0].Header.Value)

	assert.Equal(t, "POST /items", rs[1].Name)
	assert.Equal(t, "POST", rs[1].Match.Headers[0].GetExactMatch())

	assert.Equal(t, "GET /items/{id}", rs[2].Name)
	assert.Equal(t, `^/items/[^/]+$`, rs[2].Match.GetSafeRegex().Regex)
	assert.Equal(t, InvokerCluster, rs[2].GetRoute().GetCluster())
}

func TestSnapshot_LaterDeclarationWins(t *testing.T) {
	set := routes.Set{GatewayID: "api1", Routes: []internal.Route{
		{GatewayID: "api1", Method: "GET", Path: "/a", Function: "first"},
		{GatewayID: "api1", Method: "get", Path: "/a", Function: "second"},
	}}

	snap, err := Snapshot("1", set, opts)
	require.NoError(t, err)
	rs := virtualHostRoutes(t, snap)
	require.Len(t, rs, 1)
	assert.Equal(t, "second", rs[0].RequestHeadersToAdd[0].Header.Value)
}

func TestPathRegex(t *testing.T) {
	assert.Equal(t, `^/items/[^/]+/tags$`, PathRegex("/items/{id}/tags"))
	assert.Equal(t, `^/files/.+$`, PathRegex("/files/{proxy+}"))
	assert.Equal(t, `^/v1\.0/items$`, PathRegex("/v1.0/items"))
}

func TestPublisher(t *testing.T) {
	reg := prometheus.NewRegistry()
	snapshotCache := cachev3.NewSnapshotCache(false, cachev3.IDHash{}, internal.Logger{})
	p := &Publisher{Cache: snapshotCache, NodeID: "faas", Options: opts, Metrics: NewMetrics(reg)}

	require.NoError(t, p.Publish(itemsSet()))
	require.NoError(t, p.Publish(routes.Set{}))
	assert.Equal(t, 2, p.Version())

	snap, err := snapshotCache.GetSnapshot("faas")
	require.NoError(t, err)
	assert.Equal(t, "2", snap.GetVersion(resource.ListenerType))

	assert.Equal(t, float64(2), testutil.ToFloat64(p.Metrics.snapshots))
	assert.Equal(t, float64(0), testutil.ToFloat64(p.Metrics.routes))
}
