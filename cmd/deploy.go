package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/spf13/cobra"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/awsprovider"
	"github.com/kholmgren/faas-gateway-deployer/internal/config"
	"github.com/kholmgren/faas-gateway-deployer/internal/deployer"
	"github.com/kholmgren/faas-gateway-deployer/internal/gatewayspec"
	"github.com/kholmgren/faas-gateway-deployer/internal/provider"
	"github.com/kholmgren/faas-gateway-deployer/internal/reconcile"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

var (
	forceUpdates bool
	dryRun       bool
)

// deployCmd represents the deploy command
var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Publish the routes and reconcile every function behind them",
	Long: `Publishes the routing document built from every annotated source file as
a full overwrite of the gateway's definition, creates a deployment, then
creates or updates each route's Lambda function in order.

Without --force-updates an existing function only gets new code. With it, the
function's configuration is updated too and its invoke permission is revoked
and granted again.`,

	Args: cobra.NoArgs,
	RunE: deploy,
}

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().BoolVarP(
		&forceUpdates, "force-updates", "", false, "Also update function configuration and permissions")

	deployCmd.Flags().BoolVarP(
		&dryRun, "dry-run", "", false, "Print the routing document without calling AWS")
}

func deploy(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	set, err := aggregate(cfg)
	if err != nil {
		return err
	}

	if dryRun {
		return printDocument(cfg, l, set)
	}

	ctx := cmd.Context()
	awsCfg, err := awsprovider.LoadConfig(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return err
	}
	id, err := awsprovider.ResolveIdentity(ctx, sts.NewFromConfig(awsCfg), awsCfg.Region, cfg.AccountID)
	if err != nil {
		return err
	}
	l.Debugf("deploying as account %s in %s", id.AccountID, id.Region)

	lambdaClient := awsprovider.NewLambda(awsCfg)
	settler := newSettler(cfg, lambdaClient)

	d := &deployer.Deployer{
		Gateway: awsprovider.NewGateway(awsCfg),
		Specs:   newBuilder(cfg, id, l),
		Functions: &reconcile.FunctionReconciler{
			Client:  lambdaClient,
			Settler: settler,
			Force:   forceUpdates,
			Log:     l,
		},
		Permissions: &reconcile.PermissionReconciler{
			Client:  lambdaClient,
			Settler: settler,
			Retry:   retryPolicy(cfg),
			Force:   forceUpdates,
			Log:     l,
		},
		Config: deployer.Config{
			Region:      id.Region,
			AccountID:   id.AccountID,
			Role:        cfg.Function.Role,
			Runtime:     cfg.Function.Runtime,
			HandlerFunc: cfg.Function.Handler,
			Stage:       cfg.Gateway.Stage,
		},
		Log: l,
	}

	report, err := d.Deploy(ctx, set)
	if err != nil {
		return err
	}
	if report.Published {
		l.Printf("https://%s.execute-api.%s.amazonaws.com/%s", report.GatewayID, id.Region, cfg.Gateway.Stage)
	}
	return nil
}

func newBuilder(cfg config.Config, id provider.Identity, l internal.Logger) *gatewayspec.Builder {
	return &gatewayspec.Builder{
		Region:    id.Region,
		AccountID: id.AccountID,
		Title:     cfg.Gateway.Title,
		Stage:     cfg.Gateway.Stage,
		Strict:    cfg.Gateway.StrictRoutes,
		Log:       l,
	}
}

func newSettler(cfg config.Config, status provider.StatusReader) reconcile.Settler {
	if cfg.Settle.Mode == config.SettleDelay {
		return reconcile.Delay(cfg.Settle.Interval)
	}
	return &reconcile.Poller{Status: status, Retry: retryPolicy(cfg)}
}

func retryPolicy(cfg config.Config) reconcile.Retry {
	return reconcile.Retry{Interval: cfg.Settle.Interval, MaxAttempts: cfg.Settle.MaxAttempts}
}

// printDocument renders the routing document offline. Region and account
// fall back to placeholders when they are not configured.
func printDocument(cfg config.Config, l internal.Logger, set routes.Set) error {
	if len(set.Routes) == 0 {
		l.Printf("no routes declared")
		return nil
	}

	id := provider.Identity{Region: cfg.Region, AccountID: cfg.AccountID}
	if id.Region == "" {
		id.Region = "REGION"
	}
	if id.AccountID == "" {
		id.AccountID = "ACCOUNT_ID"
	}

	doc, err := newBuilder(cfg, id, l).Build(set)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode routing document: %w", err)
	}
	return nil
}
