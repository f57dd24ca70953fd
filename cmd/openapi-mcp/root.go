package main

import (
	"fmt"
	"runtime/debug"

	"github.com/aapmcp/openapi-mcp/internal/config"
	"github.com/aapmcp/openapi-mcp/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Version info injected via ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func resolvedVersion() string {
	if Version != "dev" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return Version
}

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	configFile string
	logLevel   string
	logFormat  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "openapi-mcp",
		Short: "Expose AAP OpenAPI operations as MCP tools",
		Long: `openapi-mcp turns every operation of an Ansible Automation Platform
OpenAPI description into an MCP tool and forwards tool calls to the
matching AAP service with the caller's credentials.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides log.level")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, console); overrides log.format")

	cmd.AddCommand(
		newServeCmd(opts),
		newToolsCmd(opts),
		newValidateCmd(opts),
		newShellCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// viper returns the configuration source with command-line overrides applied.
func (o *rootOptions) viper() (*viper.Viper, error) {
	v, err := config.New(o.configFile)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		v.Set("log.level", o.logLevel)
	}
	if o.logFormat != "" {
		v.Set("log.format", o.logFormat)
	}
	return v, nil
}

func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	v, err := o.viper()
	if err != nil {
		return nil, nil, err
	}
	return loadFrom(v)
}

func loadFrom(v *viper.Viper) (*config.Config, *zap.Logger, error) {
	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration:\n%w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
