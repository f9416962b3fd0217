// Package config holds the settings for one faasdeploy run. Values come from
// viper, so a key can be set in the config file, as a FAASDEPLOY_ environment
// variable (dots become underscores) or through a bound flag.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const EnvPrefix = "FAASDEPLOY"

const (
	SettleDelay = "delay"
	SettlePoll  = "poll"
)

type Config struct {
	Region    string `mapstructure:"region"`
	Profile   string `mapstructure:"profile"`
	AccountID string `mapstructure:"account_id"`
	Debug     bool   `mapstructure:"debug"`

	Source   SourceConfig   `mapstructure:"source"`
	Function FunctionConfig `mapstructure:"function"`
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Settle   SettleConfig   `mapstructure:"settle"`
	Serve    ServeConfig    `mapstructure:"serve"`
	Assets   AssetsConfig   `mapstructure:"assets"`
}

// SourceConfig controls route discovery.
type SourceConfig struct {
	Dir       string   `mapstructure:"dir" validate:"required"`
	Extension string   `mapstructure:"extension" validate:"required"`
	Exclude   []string `mapstructure:"exclude"`
	Marker    string   `mapstructure:"marker" validate:"required"`
}

type FunctionConfig struct {
	// Role is an IAM role name or ARN.
	Role    string `mapstructure:"role" validate:"required"`
	Runtime string `mapstructure:"runtime" validate:"required"`
	Handler string `mapstructure:"handler" validate:"required"`
}

type GatewayConfig struct {
	Title        string `mapstructure:"title" validate:"required"`
	Stage        string `mapstructure:"stage" validate:"required"`
	StrictRoutes bool   `mapstructure:"strict_routes"`
}

// SettleConfig chooses how the deployer waits between two mutations of the
// same function.
type SettleConfig struct {
	Mode        string        `mapstructure:"mode" validate:"oneof=delay poll"`
	Interval    time.Duration `mapstructure:"interval" validate:"gt=0"`
	MaxAttempts int           `mapstructure:"max_attempts" validate:"gte=1"`
}

type ServeConfig struct {
	Port        uint   `mapstructure:"port" validate:"gt=0"`
	NodeID      string `mapstructure:"node_id" validate:"required"`
	ListenPort  uint32 `mapstructure:"listen_port" validate:"gt=0"`
	InvokerHost string `mapstructure:"invoker_host" validate:"required"`
	InvokerPort uint32 `mapstructure:"invoker_port" validate:"gt=0"`
	MetricsPort uint   `mapstructure:"metrics_port"`
}

type AssetsConfig struct {
	Manifest string `mapstructure:"manifest" validate:"required"`
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("region", "")
	v.SetDefault("profile", "")
	v.SetDefault("account_id", "")
	v.SetDefault("debug", false)

	v.SetDefault("source.dir", ".")
	v.SetDefault("source.extension", ".py")
	v.SetDefault("source.exclude", []string{"deploy.py"})
	v.SetDefault("source.marker", "#")

	v.SetDefault("function.role", "midway_lambda")
	v.SetDefault("function.runtime", "python3.9")
	v.SetDefault("function.handler", "lambda_handler")

	v.SetDefault("gateway.title", "faasdeploy-api")
	v.SetDefault("gateway.stage", "dev")
	v.SetDefault("gateway.strict_routes", false)

	v.SetDefault("settle.mode", SettlePoll)
	v.SetDefault("settle.interval", 1500*time.Millisecond)
	v.SetDefault("settle.max_attempts", 10)

	v.SetDefault("serve.port", 9000)
	v.SetDefault("serve.node_id", "faas")
	v.SetDefault("serve.listen_port", 18000)
	v.SetDefault("serve.invoker_host", "invoker")
	v.SetDefault("serve.invoker_port", 8080)
	v.SetDefault("serve.metrics_port", 0)

	v.SetDefault("assets.manifest", "s3_list.txt")
}

// BindEnv makes every key readable from FAASDEPLOY_ variables.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes and validates v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
