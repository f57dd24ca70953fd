package main

import (
	"errors"
	"fmt"

	"github.com/aapmcp/openapi-mcp/pkg/openapi2mcp"
	"github.com/spf13/cobra"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var specURL string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the spec and check the tools generated from it",
		Long: `Run full OpenAPI structural validation over the spec, then generate the
tools and check that every name is legal and unique, every required argument
is in the schema and every tool dispatches back to its own operation.`,
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
			fetcher, ok := a.loader.(openapi2mcp.SpecFetcher)
			if !ok {
				return errors.New("spec loader cannot return the raw document")
			}
			data, err := fetcher.Fetch(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := openapi2mcp.ValidateSpec(cmd.Context(), data); err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}
			fmt.Fprintln(out, "OpenAPI spec loaded and validated successfully.")

			doc, err := openapi2mcp.LoadDocumentFromBytes(data)
			if err != nil {
				return err
			}
			tools := openapi2mcp.NewToolParser(doc, cfg.Spec.Service, a.strategy, a.rules, logger).ParseTools()
			if err := openapi2mcp.SelfTest(doc, cfg.Spec.Service, a.strategy, a.rules, tools); err != nil {
				return fmt.Errorf("MCP self-test failed: %w", err)
			}
			fmt.Fprintf(out, "MCP self-test passed: %d tools, all names legal and every tool dispatches to its operation.\n", tools.Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&specURL, "spec", "", "spec URL (file://, http:// or https://); overrides spec.url")
	return cmd
}
