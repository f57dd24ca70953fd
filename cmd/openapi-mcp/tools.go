package main

import (
	"fmt"
	"os"

	"github.com/aapmcp/openapi-mcp/internal/config"
	"github.com/aapmcp/openapi-mcp/pkg/openapi2mcp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// offlineConfig loads the configuration for commands that only read the
// spec. They never authenticate anyone, so the auth settings are ignored.
func offlineConfig(opts *rootOptions, specURL string) (*config.Config, *zap.Logger, error) {
	v, err := opts.viper()
	if err != nil {
		return nil, nil, err
	}
	offline(v, specURL)
	return loadFrom(v)
}

func offline(v *viper.Viper, specURL string) {
	if specURL != "" {
		v.Set("spec.url", specURL)
	}
	v.Set("auth.validators", []string{config.ValidatorNop})
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	var (
		specURL string
		summary bool
		docFile string
	)
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tools generated from the spec without serving them",
		Long: `Load the spec, apply the configured rules and naming strategy and print
the resulting tools as JSON. --summary prints counts instead; --doc writes
Markdown documentation to a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := offlineConfig(opts, specURL)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := newApp(cfg, logger)
			if err != nil {
				return err
			}
			doc, err := a.loader.Load(cmd.Context())
			if err != nil {
				return err
			}
			tools := openapi2mcp.NewToolParser(doc, cfg.Spec.Service, a.strategy, a.rules, logger).ParseTools()

			out := cmd.OutOrStdout()
			switch {
			case docFile != "":
				f, err := os.Create(docFile)
				if err != nil {
					return fmt.Errorf("creating doc file: %w", err)
				}
				if err := openapi2mcp.WriteMarkdownDoc(f, doc, tools); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(out, "Wrote documentation for %d tools to %s\n", tools.Len(), docFile)
				return nil
			case summary:
				openapi2mcp.WriteToolSummary(out, tools)
				return nil
			}
			return openapi2mcp.WriteToolsJSON(out, tools)
		},
	}
	cmd.Flags().StringVar(&specURL, "spec", "", "spec URL (file://, http:// or https://); overrides spec.url")
	cmd.Flags().BoolVar(&summary, "summary", false, "print tool counts per method")
	cmd.Flags().StringVar(&docFile, "doc", "", "write Markdown documentation to this file")
	return cmd
}
