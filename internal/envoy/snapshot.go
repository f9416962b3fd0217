// Package envoy serves a route set to a local Envoy over xDS so functions can
// be exercised behind the same paths and methods the gateway will expose.
package envoy

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	cluster "github.com/envoyproxy/go-control-plane/envoy/config/cluster/v3"
	core "github.com/envoyproxy/go-control-plane/envoy/config/core/v3"
	endpoint "github.com/envoyproxy/go-control-plane/envoy/config/endpoint/v3"
	listener "github.com/envoyproxy/go-control-plane/envoy/config/listener/v3"
	route "github.com/envoyproxy/go-control-plane/envoy/config/route/v3"
	hcm "github.com/envoyproxy/go-control-plane/envoy/extensions/filters/network/http_connection_manager/v3"
	matcher "github.com/envoyproxy/go-control-plane/envoy/type/matcher/v3"
	"github.com/envoyproxy/go-control-plane/pkg/cache/types"
	cache "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	"github.com/envoyproxy/go-control-plane/pkg/wellknown"
	"github.com/golang/protobuf/ptypes"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

const (
	InvokerCluster = "invoker"
	ListenerName   = "ingress"
	FunctionHeader = "x-faas-function"
)

// Options locate the local function invoker and the Envoy listener.
type Options struct {
	InvokerHost string
	InvokerPort uint32
	ListenPort  uint32
}

// Snapshot renders set as one listener whose routes forward to the invoker
// cluster, tagging each request with the target function.
func Snapshot(version string, set routes.Set, opts Options) (cache.Snapshot, error) {
	var rs []*route.Route
	for _, r := range effectiveRoutes(set.Routes) {
		rs = append(rs, makeRoute(r))
	}

	l, err := makeListener(rs, opts.ListenPort)
	if err != nil {
		return cache.Snapshot{}, err
	}

	return cache.NewSnapshot(
		version,
		[]types.Resource{}, // endpoints
		[]types.Resource{
			makeCluster(InvokerCluster, opts.InvokerHost, opts.InvokerPort),
		}, // clusters
		[]types.Resource{},  // routes
		[]types.Resource{l}, // listeners
		[]types.Resource{},  // runtimes
		[]types.Resource{},  // secrets
	), nil
}

// effectiveRoutes keeps the last declaration of each method and path, and
// orders literal paths ahead of templated ones so Envoy's first match wins
// the same way API Gateway's most specific match does.
func effectiveRoutes(declared []internal.Route) []internal.Route {
	index := make(map[string]int)
	var out []internal.Route
	for _, r := range declared {
		key := r.InvokeMethod() + " " + r.Path
		if i, ok := index[key]; ok {
			out[i] = r
			continue
		}
		index[key] = len(out)
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return !isTemplate(out[i].Path) && isTemplate(out[j].Path)
	})
	return out
}

func isTemplate(path string) bool {
	return strings.Contains(path, "{")
}

// PathRegex translates an API Gateway path template to an RE2 pattern.
// {name} matches one segment and the greedy {name+} matches the rest.
func PathRegex(path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		switch {
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "+}"):
			segments[i] = ".+"
		case strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}"):
			segments[i] = "[^/]+"
		default:
			segments[i] = regexp.QuoteMeta(s)
		}
	}
	return "^" + strings.Join(segments, "/") + "$"
}

func makeCluster(name string, host string, port uint32) *cluster.Cluster {
	return &cluster.Cluster{
		Name:                 name,
		ConnectTimeout:       ptypes.DurationProto(1 * time.Second),
		ClusterDiscoveryType: &cluster.Cluster_Type{Type: cluster.Cluster_STRICT_DNS},
		LbPolicy:             cluster.Cluster_ROUND_ROBIN,
		LoadAssignment: &endpoint.ClusterLoadAssignment{
			ClusterName: name,
			Endpoints: []*endpoint.LocalityLbEndpoints{{
				LbEndpoints: []*endpoint.LbEndpoint{{
					HostIdentifier: &endpoint.LbEndpoint_Endpoint{
						Endpoint: &endpoint.Endpoint{
							Address: socketAddress(host, port),
						},
					},
				}},
			}},
		},
	}
}

func makeListener(rs []*route.Route, port uint32) (*listener.Listener, error) {
	managerAny, err := ptypes.MarshalAny(&hcm.HttpConnectionManager{
		CodecType:  hcm.HttpConnectionManager_AUTO,
		StatPrefix: "ingress_http",

		HttpFilters: []*hcm.HttpFilter{{Name: wellknown.Router}},

		RouteSpecifier: &hcm.HttpConnectionManager_RouteConfig{
			RouteConfig: &route.RouteConfiguration{
				Name: "local_route",
				VirtualHosts: []*route.VirtualHost{
					{
						Name:    "functions",
						Domains: []string{"*"},
						Routes:  rs,
					},
				},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal http connection manager: %w", err)
	}

	return &listener.Listener{
		Name:    ListenerName,
		Address: socketAddress("0.0.0.0", port),
		FilterChains: []*listener.FilterChain{{
			Filters: []*listener.Filter{{
				Name:       wellknown.HTTPConnectionManager,
				ConfigType: &listener.Filter_TypedConfig{TypedConfig: managerAny},
			}},
		}},
	}, nil
}

func makeRoute(r internal.Route) *route.Route {
	m := &route.RouteMatch{
		Headers: []*route.HeaderMatcher{{
			Name:                 ":method",
			HeaderMatchSpecifier: &route.HeaderMatcher_ExactMatch{ExactMatch: r.InvokeMethod()},
		}},
	}

	if isTemplate(r.Path) {
		m.PathSpecifier = &route.RouteMatch_SafeRegex{
			SafeRegex: &matcher.RegexMatcher{
				EngineType: &matcher.RegexMatcher_GoogleRe2{GoogleRe2: &matcher.RegexMatcher_GoogleRE2{}},
				Regex:      PathRegex(r.Path),
			},
		}
	} else {
		m.PathSpecifier = &route.RouteMatch_Path{Path: r.Path}
	}

	return &route.Route{
		Name:  r.InvokeMethod() + " " + r.Path,
		Match: m,
		Action: &route.Route_Route{
			Route: &route.RouteAction{
				ClusterSpecifier: &route.RouteAction_Cluster{Cluster: InvokerCluster},
			},
		},
		RequestHeadersToAdd: []*core.HeaderValueOption{{
			Header: &core.HeaderValue{Key: FunctionHeader, Value: r.Function},
		}},
	}
}

func socketAddress(host string, port uint32) *core.Address {
	return &core.Address{
		Address: &core.Address_SocketAddress{
			SocketAddress: &core.SocketAddress{
				Protocol: core.SocketAddress_TCP,
				Address:  host,
				PortSpecifier: &core.SocketAddress_PortValue{
					PortValue: port,
				},
			},
		},
	}
}
