package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/aapmcp/openapi-mcp/internal/config"
	"github.com/aapmcp/openapi-mcp/internal/metrics"
	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/aapmcp/openapi-mcp/pkg/openapi2mcp"
	"github.com/aapmcp/openapi-mcp/pkg/registry"
	"go.uber.org/zap"
)

// app holds the components of one configured server.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *metrics.Collector
	registry *registry.Registry
	loader   openapi2mcp.SpecLoader
	strategy openapi2mcp.ToolNameStrategy
	rules    []openapi2mcp.ToolRule
	chain    *auth.Chain
	server   *openapi2mcp.Server

	// closers shut down long-lived transports before the HTTP server.
	closers []func(context.Context) error
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	loader, err := openapi2mcp.NewSpecLoader(cfg.Spec.URL, openapi2mcp.URLLoaderOptions{
		Retries:    cfg.Spec.Retries,
		RetryDelay: cfg.Spec.RetryDelay,
		VerifyCert: cfg.Spec.VerifyCert,
	}, logger)
	if err != nil {
		return nil, err
	}
	collector := metrics.NewCollector()
	chain, err := newChain(cfg.Auth, logger, collector)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  collector,
		registry: newRegistry(cfg.Services),
		loader:   loader,
		strategy: newStrategy(cfg.ToolNames),
		rules:    newRules(cfg.Rules),
		chain:    chain,
	}
	a.server = openapi2mcp.NewServer(loader, a.registry, openapi2mcp.ServerOptions{
		Name:     cfg.Server.Name,
		Version:  resolvedVersion(),
		Service:  cfg.Spec.Service,
		Strategy: a.strategy,
		Rules:    a.rules,
		Caller: openapi2mcp.ToolCallerOptions{
			Timeout:           cfg.Caller.HTTPTimeout,
			StripArgs:         cfg.Caller.StripArgs,
			ValidateArguments: cfg.Caller.ValidateArguments,
			Observer:          collector,
		},
		SampleTools: cfg.Server.SampleTools,
		OnPublish:   collector.SetTools,
	}, logger)
	return a, nil
}

func newRegistry(services map[string]string) *registry.Registry {
	reg := registry.NewDefault()
	for name, serviceURL := range services {
		reg.RegisterURL(name, serviceURL)
	}
	return reg
}

func newStrategy(name string) openapi2mcp.ToolNameStrategy {
	if name == config.ToolNamesPlain {
		return openapi2mcp.PlainToolNameStrategy{}
	}
	return openapi2mcp.ShortToolNameStrategy{}
}

func newRules(cfg config.RulesConfig) []openapi2mcp.ToolRule {
	return openapi2mcp.BuildRules(openapi2mcp.RuleOptions{
		MethodBlacklist:      cfg.MethodBlacklist,
		OperationIDWhitelist: cfg.OperationWhitelist,
		OperationIDBlacklist: cfg.OperationBlacklist,
		PathBlacklist:        cfg.PathBlacklist,
		RequireDescription:   cfg.RequireDescription,
	})
}

func newChain(cfg config.AuthConfig, logger *zap.Logger, observer auth.Observer) (*auth.Chain, error) {
	keys := auth.NewKeyCache(cfg.KeyCacheTTL, auth.DefaultKeyCacheSize)
	validators := make([]auth.Validator, 0, len(cfg.Validators))
	for _, name := range cfg.Validators {
		switch name {
		case config.ValidatorToken:
			validators = append(validators, auth.NewTokenValidator(cfg.GatewayURL, cfg.VerifyCert))
		case config.ValidatorJWT:
			validators = append(validators, auth.NewJWTValidator(cfg.GatewayURL, cfg.VerifyCert,
				auth.WithKeyCache(keys),
				auth.WithLogger(logger),
				auth.WithObserver(observer),
			))
		case config.ValidatorNop:
			validators = append(validators, auth.NopValidator{})
		default:
			return nil, fmt.Errorf("unknown validator %q", name)
		}
	}
	return auth.NewChain(validators, logger, observer), nil
}

// warnNopValidator logs when the chain accepts requests without checking
// any credential.
func (a *app) warnNopValidator() {
	for _, name := range a.chain.Validators() {
		if name != config.ValidatorNop {
			continue
		}
		if len(a.chain.Validators()) == 1 {
			a.logger.Warn("nop is the only validator: every request is accepted unauthenticated; do not run this in production")
		} else {
			a.logger.Warn("nop validator enabled: requests rejected by the other validators are accepted unauthenticated",
				zap.Strings("validators", a.chain.Validators()))
		}
		return
	}
}

// stdioIdentity authenticates the configured stdio credentials once. There
// is no HTTP request on stdio, so the chain sees a synthetic one.
func (a *app) stdioIdentity(ctx context.Context) (*auth.Identity, error) {
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, "/stdio", nil)
	if err != nil {
		return nil, err
	}
	if a.cfg.Auth.StdioJWT != "" {
		r.Header.Set(auth.JWTHeaderName, a.cfg.Auth.StdioJWT)
	}
	if a.cfg.Auth.StdioToken != "" {
		r.Header.Set(auth.TokenHeaderName, "Bearer "+a.cfg.Auth.StdioToken)
	}
	return a.chain.Authenticate(ctx, r)
}
