// Package config loads the server configuration from an optional YAML file
// and the environment.
//
// Every key maps to an AAP_MCP_ environment variable with dots replaced by
// underscores (spec.url → AAP_MCP_SPEC_URL). The plain AAP_GATEWAY_URL,
// OPENAPI_SPEC_URL, HOST and PORT variables are honored as well.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "AAP_MCP"

// Transports.
const (
	TransportSSE        = "sse"
	TransportStreamable = "streamable"
	TransportStdio      = "stdio"
)

// Validator names accepted in auth.validators.
const (
	ValidatorToken = "token"
	ValidatorJWT   = "jwt"
	ValidatorNop   = "nop"
)

// Tool name strategies.
const (
	ToolNamesShort = "short"
	ToolNamesPlain = "plain"
)

// Config is the resolved configuration of one server process.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Spec      SpecConfig        `mapstructure:"spec"`
	Services  map[string]string `mapstructure:"services"`
	Auth      AuthConfig        `mapstructure:"auth"`
	Rules     RulesConfig       `mapstructure:"rules"`
	Caller    CallerConfig      `mapstructure:"caller"`
	ToolNames string            `mapstructure:"tool_names"`
	Log       LogConfig         `mapstructure:"log"`
}

type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Transport   string `mapstructure:"transport"`
	BaseURL     string `mapstructure:"base_url"`
	SampleTools bool   `mapstructure:"sample_tools"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type SpecConfig struct {
	URL        string        `mapstructure:"url"`
	Service    string        `mapstructure:"service"`
	Retries    int           `mapstructure:"retries"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	VerifyCert bool          `mapstructure:"verify_cert"`
}

type AuthConfig struct {
	Validators  []string      `mapstructure:"validators"`
	GatewayURL  string        `mapstructure:"gateway_url"`
	VerifyCert  bool          `mapstructure:"verify_cert"`
	KeyCacheTTL time.Duration `mapstructure:"key_cache_ttl"`
	// StdioToken and StdioJWT are presented to the chain once when serving
	// over stdio, where there is no HTTP request to authenticate.
	StdioToken string `mapstructure:"stdio_token"`
	StdioJWT   string `mapstructure:"stdio_jwt"`
}

type RulesConfig struct {
	MethodBlacklist    []string `mapstructure:"method_blacklist"`
	OperationWhitelist []string `mapstructure:"operation_whitelist"`
	OperationBlacklist []string `mapstructure:"operation_blacklist"`
	PathBlacklist      []string `mapstructure:"path_blacklist"`
	RequireDescription bool     `mapstructure:"require_description"`
}

type CallerConfig struct {
	HTTPTimeout       time.Duration `mapstructure:"http_timeout"`
	StripArgs         []string      `mapstructure:"strip_args"`
	ValidateArguments bool          `mapstructure:"validate_arguments"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SetDefaults registers the default of every key on v. Keys without a
// default are invisible to AutomaticEnv, so every key gets one.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "openapi-mcp")
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8003)
	v.SetDefault("server.transport", TransportSSE)
	v.SetDefault("server.base_url", "")
	v.SetDefault("server.sample_tools", false)

	v.SetDefault("spec.url", "")
	v.SetDefault("spec.service", "gateway")
	v.SetDefault("spec.retries", 3)
	v.SetDefault("spec.retry_delay", time.Second)
	v.SetDefault("spec.verify_cert", false)

	v.SetDefault("services", map[string]string{})

	v.SetDefault("auth.validators", []string{ValidatorToken})
	v.SetDefault("auth.gateway_url", "")
	v.SetDefault("auth.verify_cert", false)
	v.SetDefault("auth.key_cache_ttl", 600*time.Second)
	v.SetDefault("auth.stdio_token", "")
	v.SetDefault("auth.stdio_jwt", "")

	v.SetDefault("rules.method_blacklist", []string{})
	v.SetDefault("rules.operation_whitelist", []string{})
	v.SetDefault("rules.operation_blacklist", []string{})
	v.SetDefault("rules.path_blacklist", []string{})
	v.SetDefault("rules.require_description", false)

	v.SetDefault("caller.http_timeout", 30*time.Second)
	v.SetDefault("caller.strip_args", []string{"session_id"})
	v.SetDefault("caller.validate_arguments", false)

	v.SetDefault("tool_names", ToolNamesShort)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// New returns a viper instance wired to the environment and, when
// configFile is not empty, to that file.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, legacy := range map[string]string{
		"auth.gateway_url": "AAP_GATEWAY_URL",
		"spec.url":         "OPENAPI_SPEC_URL",
		"server.host":      "HOST",
		"server.port":      "PORT",
	} {
		envName := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envName, legacy); err != nil {
			return nil, err
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", configFile, err)
		}
	}
	return v, nil
}

// Load reads, decodes and validates the configuration.
func Load(configFile string) (*Config, error) {
	v, err := New(configFile)
	if err != nil {
		return nil, err
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Server.Transport = strings.ToLower(c.Server.Transport)
	c.ToolNames = strings.ToLower(c.ToolNames)
	for i, name := range c.Auth.Validators {
		c.Auth.Validators[i] = strings.ToLower(strings.TrimSpace(name))
	}
	if c.Services == nil {
		c.Services = map[string]string{}
	}
	// The gateway URL doubles as the gateway service URL unless the
	// services map names one explicitly.
	if _, ok := c.Services["gateway"]; !ok && c.Auth.GatewayURL != "" {
		c.Services["gateway"] = c.Auth.GatewayURL
	}
}

// Validate reports every configuration problem found.
func (c *Config) Validate() error {
	var errs []error
	if c.Spec.URL == "" {
		errs = append(errs, errors.New("spec.url is required (set OPENAPI_SPEC_URL or AAP_MCP_SPEC_URL)"))
	}
	if c.Spec.Service == "" {
		errs = append(errs, errors.New("spec.service is required"))
	}
	switch c.Server.Transport {
	case TransportSSE, TransportStreamable, TransportStdio:
	default:
		errs = append(errs, fmt.Errorf("server.transport %q is not one of sse, streamable, stdio", c.Server.Transport))
	}
	if c.Server.Transport != TransportStdio && (c.Server.Port < 1 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port %d is out of range", c.Server.Port))
	}
	switch c.ToolNames {
	case ToolNamesShort, ToolNamesPlain:
	default:
		errs = append(errs, fmt.Errorf("tool_names %q is not one of short, plain", c.ToolNames))
	}
	if len(c.Auth.Validators) == 0 {
		errs = append(errs, errors.New("auth.validators must name at least one validator"))
	}
	for _, name := range c.Auth.Validators {
		switch name {
		case ValidatorToken, ValidatorJWT:
			if c.Auth.GatewayURL == "" {
				errs = append(errs, fmt.Errorf("auth.gateway_url is required by the %s validator (set AAP_GATEWAY_URL)", name))
			}
		case ValidatorNop:
		default:
			errs = append(errs, fmt.Errorf("auth.validators: unknown validator %q", name))
		}
	}
	if c.Auth.KeyCacheTTL <= 0 {
		errs = append(errs, errors.New("auth.key_cache_ttl must be positive"))
	}
	if c.Caller.HTTPTimeout <= 0 {
		errs = append(errs, errors.New("caller.http_timeout must be positive"))
	}
	for name, raw := range c.Services {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("services.%s: %q is not an absolute URL", name, raw))
		}
	}
	return errors.Join(errs...)
}
