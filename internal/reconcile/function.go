// Package reconcile drives a route's function and invoke permission to their
// declared state with create-or-update semantics.
package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

// Outcome is what the function reconciler did.
type Outcome int

const (
	Created Outcome = iota
	Updated
)

func (o Outcome) String() string {
	if o == Created {
		return "created"
	}
	return "updated"
}

// FunctionReconciler creates a function, falling back to an update when it
// already exists. With Force the configuration is updated as well as the code.
type FunctionReconciler struct {
	Client  provider.FunctionClient
	Settler Settler
	Force   bool
	Log     internal.Logger
}

func (r *FunctionReconciler) Reconcile(ctx context.Context, fn provider.FunctionSpec) (Outcome, error) {
	err := r.Client.CreateFunction(ctx, fn)
	if err == nil {
		r.Log.Debugf("created function %s", fn.Name)
		return Created, nil
	}
	if !errors.Is(err, provider.ErrConflict) {
		return 0, fmt.Errorf("create function %s: %w", fn.Name, err)
	}

	r.Log.Debugf("function %s exists, updating", fn.Name)
	if r.Force {
		if err := r.Client.UpdateFunctionConfig(ctx, fn); err != nil {
			return 0, fmt.Errorf("update configuration of %s: %w", fn.Name, err)
		}
		if err := settle(ctx, r.Settler, fn.Name); err != nil {
			return 0, err
		}
	}

	if err := r.Client.UpdateFunctionCode(ctx, fn.Name, fn.Code); err != nil {
		return 0, fmt.Errorf("update code of %s: %w", fn.Name, err)
	}
	return Updated, nil
}
