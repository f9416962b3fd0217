// Package routes collects route directives from a deployment unit and checks
// that they all target one gateway.
package routes

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/directive"
)

var ErrMultipleGateways = errors.New("multiple API gateways specified")

// Set is the aggregated result of a deployment unit.
type Set struct {
	// GatewayID is empty when Routes is.
	GatewayID string
	Routes    []internal.Route
}

// Aggregate parses every source in order. Any malformed header aborts.
func Aggregate(parser directive.Parser, sources []Source) (Set, error) {
	var set Set
	for _, src := range sources {
		route, err := parse(parser, src)
		if err != nil {
			return Set{}, err
		}
		set.Routes = append(set.Routes, route)
	}

	ids := gatewayIDs(set.Routes)
	switch len(ids) {
	case 0:
	case 1:
		set.GatewayID = ids[0]
	default:
		return Set{}, fmt.Errorf("%w, which is not supported: gateways found: %s",
			ErrMultipleGateways, strings.Join(ids, ", "))
	}

	return set, nil
}

func parse(parser directive.Parser, src Source) (internal.Route, error) {
	rc, err := src.Open()
	if err != nil {
		return internal.Route{}, fmt.Errorf("open %s: %w", src.Name(), err)
	}
	defer rc.Close()

	return parser.Parse(src.Name(), rc)
}

func gatewayIDs(routes []internal.Route) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range routes {
		if !seen[r.GatewayID] {
			seen[r.GatewayID] = true
			ids = append(ids, r.GatewayID)
		}
	}
	sort.Strings(ids)
	return ids
}
