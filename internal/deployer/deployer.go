// Package deployer publishes a route set to its gateway and reconciles the
// function and invoke permission behind every route, one route at a time.
package deployer

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/gatewayspec"
	"github.com/kholmgren/faas-gateway-deployer/internal/packaging"
	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
	"github.com/kholmgren/faas-gateway-deployer/internal/reconcile"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

// Config is the per-run environment. It is resolved once by the caller.
type Config struct {
	Region    string
	AccountID string

	Role        string
	Runtime     string
	HandlerFunc string
	Stage       string
}

type Deployer struct {
	Gateway     provider.GatewayClient
	Specs       *gatewayspec.Builder
	Functions   *reconcile.FunctionReconciler
	Permissions *reconcile.PermissionReconciler

	// Package builds a route's code payload from its source file.
	// Nil means packaging.Archive.
	Package func(path string) ([]byte, error)

	Config Config
	Log    internal.Logger
}

// RouteResult records what happened to one route.
type RouteResult struct {
	Route     internal.Route
	Outcome   reconcile.Outcome
	SourceARN string
}

type Report struct {
	RunID     string
	GatewayID string
	Published bool
	Routes    []RouteResult
}

// Deploy publishes set and reconciles its routes in order. It stops at the
// first error; routes already reconciled keep their new state. The returned
// report is never nil and describes everything applied before a failure.
func (d *Deployer) Deploy(ctx context.Context, set routes.Set) (*Report, error) {
	report := &Report{RunID: uuid.NewString(), GatewayID: set.GatewayID}
	log := d.Log.With("run", report.RunID)

	if len(set.Routes) == 0 {
		log.Printf("no routes declared, nothing to deploy")
		return report, nil
	}

	if err := d.publish(ctx, set); err != nil {
		return report, err
	}
	report.Published = true
	log.Printf("published %d routes to %s, stage %s", len(set.Routes), set.GatewayID, d.stage())

	for _, r := range set.Routes {
		res, err := d.deployRoute(ctx, set.GatewayID, r)
		if err != nil {
			return report, fmt.Errorf("deploy %s: %w", r, err)
		}
		report.Routes = append(report.Routes, res)
		log.Printf("%s %s", res.Outcome, r)
	}

	return report, nil
}

func (d *Deployer) publish(ctx context.Context, set routes.Set) error {
	doc, err := d.Specs.Build(set)
	if err != nil {
		return err
	}
	body, err := gatewayspec.Marshal(doc)
	if err != nil {
		return err
	}
	d.Log.Debugf("routing document for %s: %s", set.GatewayID, body)

	if err := d.Gateway.PublishRoutingDocument(ctx, set.GatewayID, body); err != nil {
		return fmt.Errorf("publish routing document to %s: %w", set.GatewayID, err)
	}
	if err := d.Gateway.CreateDeploymentStage(ctx, set.GatewayID, d.stage()); err != nil {
		return fmt.Errorf("create deployment of %s to stage %s: %w", set.GatewayID, d.stage(), err)
	}
	return nil
}

func (d *Deployer) deployRoute(ctx context.Context, gatewayID string, r internal.Route) (RouteResult, error) {
	res := RouteResult{
		Route:     r,
		SourceARN: provider.SourceARN(d.Config.Region, d.Config.AccountID, gatewayID, r.InvokeMethod(), r.Path),
	}

	fn, err := d.functionSpec(r)
	if err != nil {
		return res, err
	}

	res.Outcome, err = d.Functions.Reconcile(ctx, fn)
	if err != nil {
		return res, err
	}

	grant := provider.NewGrant(r.Function, res.SourceARN)
	if d.Permissions.Force {
		return res, d.Permissions.Reconcile(ctx, grant)
	}
	if res.Outcome == reconcile.Created {
		return res, d.Permissions.Grant(ctx, grant)
	}
	return res, nil
}

func (d *Deployer) functionSpec(r internal.Route) (provider.FunctionSpec, error) {
	pkg := d.Package
	if pkg == nil {
		pkg = packaging.Archive
	}
	code, err := pkg(r.SourceFile)
	if err != nil {
		return provider.FunctionSpec{}, fmt.Errorf("package %s: %w", r.SourceFile, err)
	}

	return provider.FunctionSpec{
		Name:    r.Function,
		Role:    provider.RoleARN(d.Config.AccountID, d.Config.Role),
		Handler: packaging.Handler(r.SourceFile, d.Config.HandlerFunc),
		Runtime: d.Config.Runtime,
		Code:    code,
	}, nil
}

func (d *Deployer) stage() string {
	if d.Config.Stage == "" {
		return gatewayspec.DefaultStage
	}
	return d.Config.Stage
}
