package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/kholmgren/faas-gateway-deployer/internal/config"
	"github.com/kholmgren/faas-gateway-deployer/internal/directive"
	"github.com/kholmgren/faas-gateway-deployer/internal/routes"
)

var output string

// routesCmd represents the routes command
var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "List the routes declared by the function sources",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		set, err := aggregate(cfg)
		if err != nil {
			return err
		}
		return printRoutes(set)
	},
}

func init() {
	rootCmd.AddCommand(routesCmd)

	routesCmd.Flags().StringVarP(
		&output, "output", "o", "yaml", "Output format: yaml or json")
}

// aggregate discovers the configured sources and parses their headers.
func aggregate(cfg config.Config) (routes.Set, error) {
	sources, err := routes.Discover(cfg.Source.Dir, cfg.Source.Extension, cfg.Source.Exclude)
	if err != nil {
		return routes.Set{}, err
	}
	return routes.Aggregate(directive.Parser{Marker: cfg.Source.Marker}, sources)
}

func printRoutes(set routes.Set) error {
	switch output {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(set.Routes)
	case "yaml":
		dump, err := yaml.Marshal(set.Routes)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(dump)
		return err
	default:
		return fmt.Errorf("unknown output format %q", output)
	}
}
