package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
)

// PermissionReconciler replaces a function's gateway invoke grant. It only
// acts with Force; otherwise existing grants are left as they are.
type PermissionReconciler struct {
	Client  provider.PermissionClient
	Settler Settler

	// Retry applies to AddPermission calls that fail with a conflict.
	Retry Retry
	Force bool
	Log   internal.Logger
}

// Reconcile revokes the grant's statement, waits for the revocation to
// settle and grants it again.
func (r *PermissionReconciler) Reconcile(ctx context.Context, g provider.Grant) error {
	if !r.Force {
		return nil
	}

	err := r.Client.RemovePermission(ctx, g.Function, g.StatementID)
	switch {
	case err == nil:
		r.Log.Debugf("removed statement %s from %s", g.StatementID, g.Function)
	case errors.Is(err, provider.ErrNotFound):
		r.Log.Debugf("no statement %s on %s", g.StatementID, g.Function)
	default:
		return fmt.Errorf("remove permission %s from %s: %w", g.StatementID, g.Function, err)
	}

	if err := settle(ctx, r.Settler, g.Function); err != nil {
		return err
	}
	return r.Grant(ctx, g)
}

// Grant adds the statement without revoking first.
func (r *PermissionReconciler) Grant(ctx context.Context, g provider.Grant) error {
	op := func() error {
		err := r.Client.AddPermission(ctx, g)
		if err == nil || errors.Is(err, provider.ErrConflict) {
			return err
		}
		return backoff.Permanent(err)
	}

	if err := backoff.Retry(op, r.Retry.backOff(ctx)); err != nil {
		return fmt.Errorf("add permission %s to %s: %w", g.StatementID, g.Function, err)
	}
	r.Log.Debugf("granted %s on %s for %s", g.Action, g.Function, g.SourceARN)
	return nil
}
