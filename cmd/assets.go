package cmd

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"

	"github.com/kholmgren/faas-gateway-deployer/internal/assets"
	"github.com/kholmgren/faas-gateway-deployer/internal/awsprovider"
)

// assetsCmd represents the assets command
var assetsCmd = &cobra.Command{
	Use:   "assets [manifest]",
	Short: "Upload static files to an S3 bucket",
	Long: `Reads a manifest whose first line names the bucket ("S3_BUCKET: <bucket>")
and whose remaining lines name files relative to the source directory. Each
file is uploaded as a public-read object. The URL of the file marked
#HOMEPAGE is printed.`,

	Args: cobra.MaximumNArgs(1),
	RunE: publishAssets,
}

func init() {
	rootCmd.AddCommand(assetsCmd)
}

func publishAssets(cmd *cobra.Command, args []string) error {
	cfg, l, err := loadConfig()
	if err != nil {
		return err
	}

	manifestFile := cfg.Assets.Manifest
	if len(args) > 0 {
		manifestFile = args[0]
	}
	m, err := assets.ParseManifestFile(manifestFile)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	awsCfg, err := awsprovider.LoadConfig(ctx, cfg.Region, cfg.Profile)
	if err != nil {
		return err
	}

	p := &assets.Publisher{
		API:    s3.NewFromConfig(awsCfg),
		Region: awsCfg.Region,
		Dir:    cfg.Source.Dir,
		Log:    l,
	}
	url, err := p.Publish(ctx, m)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}
