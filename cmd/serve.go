package cmd

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	cachev3 "github.com/envoyproxy/go-control-plane/pkg/cache/v3"
	serverv3 "github.com/envoyproxy/go-control-plane/pkg/server/v3"
	testv3 "github.com/envoyproxy/go-control-plane/pkg/test/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kholmgren/faas-gateway-deployer/internal/envoy"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

const watchQuiet = 250 * time.Millisecond

var watch bool

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the declared routes to a local Envoy over xDS",
	Long: `Runs an xDS management server whose snapshot routes every declared
method and path to a local function invoker. The invoker learns the target
function from the x-faas-function request header.

With --watch the snapshot is rebuilt whenever a source file changes.`,

	Args: cobra.NoArgs,
	RunE: serve,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().UintP("port", "", 9000, "xDS management server port")
	serveCmd.Flags().StringP("nodeID", "", "faas", "Node ID")
	serveCmd.Flags().UintP("metrics-port", "", 0, "Prometheus metrics port, 0 to disable")
	serveCmd.Flags().BoolVarP(&watch, "watch", "", false, "Republish when source files change")

	viper.BindPFlag("serve.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("serve.node_id", serveCmd.Flags().Lookup("nodeID"))
	viper.BindPFlag("serve.metrics_port", serveCmd.Flags().Lookup("metrics-port"))
}

func serve(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	set, err := aggregate(cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()

	// Create a cache
	snapshotCache := cachev3.NewSnapshotCache(false, cachev3.IDHash{}, l)

	publisher := &envoy.Publisher{
		Cache:  snapshotCache,
		NodeID: cfg.Serve.NodeID,
		Options: envoy.Options{
			InvokerHost: cfg.Serve.InvokerHost,
			InvokerPort: cfg.Serve.InvokerPort,
			ListenPort:  cfg.Serve.ListenPort,
		},
		Metrics: envoy.NewMetrics(reg),
		Log:     l,
	}
	if err := publisher.Publish(set); err != nil {
		return err
	}
	l.Printf("published %d routes for gateway %s", len(set.Routes), set.GatewayID)

	ctx := cmd.Context()

	if watch {
		go func() {
			err := routes.Watch(ctx, cfg.Source.Dir, cfg.Source.Extension, watchQuiet, func() {
				set, err := aggregate(cfg)
				if err != nil {
					// Keep serving the last good snapshot.
					l.Errorf("reload routes: %v", err)
					return
				}
				if err := publisher.Publish(set); err != nil {
					l.Errorf("publish routes: %v", err)
					return
				}
				l.Printf("published snapshot %d with %d routes", publisher.Version(), len(set.Routes))
			})
			if err != nil {
				l.Errorf("%v", err)
			}
		}()
	}

	if cfg.Serve.MetricsPort > 0 {
		metricsServer := &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Serve.MetricsPort),
			Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				l.Errorf("metrics server: %v", err)
			}
		}()
		defer metricsServer.Close()
	}

	// Run the xDS server
	cb := &testv3.Callbacks{Debug: l.Debug}
	srv := serverv3.NewServer(ctx, snapshotCache, cb)

	l.Printf("xDS server listening on port %d", cfg.Serve.Port)

	return envoy.Serve(ctx, srv, cfg.Serve.Port)
}
