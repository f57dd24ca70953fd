// Package registry maps logical AAP service names to their network location
// and to the two base paths a service can be reached under: directly, or
// fronted by the platform gateway.
package registry

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// GatewayContext selects the gateway-fronted base path in ResolveBasePath.
const GatewayContext = "gateway"

// GatewayServiceName is the service whose URL fronts every other service
// when a call is routed through the gateway.
const GatewayServiceName = "gateway"

// JWTHeaderName is the credential header set by the platform gateway when it
// forwards an already authenticated request. Callers carrying it talk to the
// services directly; every other credential goes through the gateway.
const JWTHeaderName = "X-DAB-JW-TOKEN"

// ServiceDescriptor describes where a service's API lives relative to its URL.
type ServiceDescriptor struct {
	Name            string
	DirectBasePath  string
	GatewayBasePath string
}

// Registry holds the service URL table and the service descriptors.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	urls     map[string]string
	services map[string]ServiceDescriptor
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		urls:     make(map[string]string),
		services: make(map[string]ServiceDescriptor),
	}
}

// NewDefault returns a registry with the default AAP services registered.
func NewDefault() *Registry {
	r := New()
	r.RegisterDefaultServices()
	return r
}

// RegisterURL records the base URL of a service, replacing any previous value.
func (r *Registry) RegisterURL(name, serviceURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.urls[name] = serviceURL
}

// RegisterService records a service descriptor, replacing any previous one
// with the same name.
func (r *Registry) RegisterService(svc ServiceDescriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.services[svc.Name] = svc
}

// RegisterDefaultServices registers the gateway, controller and lightspeed
// descriptors.
func (r *Registry) RegisterDefaultServices() {
	for _, svc := range DefaultServices() {
		r.RegisterService(svc)
	}
}

// DefaultServices returns the descriptors of the services shipped with AAP.
func DefaultServices() []ServiceDescriptor {
	return []ServiceDescriptor{
		{Name: "gateway", GatewayBasePath: "api/gateway", DirectBasePath: "api/gateway"},
		{Name: "controller", GatewayBasePath: "api/controller", DirectBasePath: "api"},
		{Name: "lightspeed", GatewayBasePath: "api/lightspeed", DirectBasePath: "api"},
	}
}

// URL returns the registered URL of a service.
func (r *Registry) URL(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.urls[name]
	return u, ok
}

// Service returns the descriptor registered under name.
func (r *Registry) Service(name string) (ServiceDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	svc, ok := r.services[name]
	return svc, ok
}

// Names returns the names of all services with a registered URL.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.urls))
	for name := range r.urls {
		names = append(names, name)
	}
	return names
}

// ResolveBasePath returns the absolute base URL for a service.
//
// With context == GatewayContext the gateway's URL is joined with the
// service's gateway base path; otherwise the service's own URL is joined with
// its direct base path. The second return value is false when the service, its
// URL or (in gateway context) the gateway URL is not registered; that is a
// configuration error, not something to retry.
func (r *Registry) ResolveBasePath(name, context string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	serviceURL, ok := r.urls[name]
	if !ok || serviceURL == "" {
		return "", false
	}
	svc, ok := r.services[name]
	if !ok {
		return "", false
	}
	basePath := svc.DirectBasePath
	if context == GatewayContext {
		serviceURL, ok = r.urls[GatewayServiceName]
		if !ok || serviceURL == "" {
			return "", false
		}
		basePath = svc.GatewayBasePath
	}
	joined, err := joinURL(serviceURL, basePath)
	if err != nil {
		return "", false
	}
	return joined, true
}

// ContextForHeader returns the resolution context implied by the credential
// header that authenticated a caller.
func ContextForHeader(authHeaderName string) string {
	if authHeaderName == JWTHeaderName {
		return ""
	}
	return GatewayContext
}

// ResolveURLPath builds the absolute URL of path on the named service, picking
// the direct or gateway base path from the credential header name.
func (r *Registry) ResolveURLPath(name, authHeaderName, path string) (string, error) {
	return r.ResolveURLPathInContext(name, ContextForHeader(authHeaderName), path)
}

// ResolveURLPathInContext is ResolveURLPath with an explicit context.
func (r *Registry) ResolveURLPathInContext(name, context, path string) (string, error) {
	base, ok := r.ResolveBasePath(name, context)
	if !ok {
		return "", fmt.Errorf("service %q is not registered or has no URL", name)
	}
	for _, prefix := range []string{"api/", "/api/"} {
		if strings.HasPrefix(path, prefix) {
			path = path[len(prefix):]
			break
		}
	}
	path = strings.TrimPrefix(path, "/")
	return base + "/" + path, nil
}

// joinURL resolves ref against base following RFC 3986.
func joinURL(base, ref string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	rel, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return b.ResolveReference(rel).String(), nil
}
