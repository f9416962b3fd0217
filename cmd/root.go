package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kholmgren/faas-gateway-deployer/internal"
	"github.com/kholmgren/faas-gateway-deployer/internal/config"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "faasdeploy",
	Short: "Deploy annotated function sources behind an API Gateway",
	Long: `faasdeploy reads the routing header at the top of every function source
file in a directory:

  # API_GATEWAY <gateway_id>
  # <METHOD> </path>
  # LAMBDA <lambda_name>

publishes the combined routes to the API Gateway REST API and creates or
updates each Lambda function and its invoke permission.`,

	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default is $HOME/.faasdeploy.yaml)")

	rootCmd.PersistentFlags().BoolP("debug", "", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringP("region", "", "", "AWS region (default from the AWS environment)")
	rootCmd.PersistentFlags().StringP("profile", "", "", "AWS shared config profile")
	rootCmd.PersistentFlags().StringP("dir", "", ".", "Directory holding the function sources")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("region", rootCmd.PersistentFlags().Lookup("region"))
	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("source.dir", rootCmd.PersistentFlags().Lookup("dir"))

	config.SetDefaults(viper.GetViper())
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}

		// Search config in the working directory, then home, with name ".faasdeploy" (without extension).
		viper.AddConfigPath(".")
		viper.AddConfigPath(home)
		viper.SetConfigName(".faasdeploy")
	}

	config.BindEnv(viper.GetViper())

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig decodes the merged configuration and returns it with a logger.
func loadConfig() (config.Config, internal.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return config.Config{}, internal.Logger{}, err
	}
	return cfg, internal.NewLogger(cfg.Debug), nil
}
