// Package dwidmapper registers the userName to userID resolver with the
// request simulator.
package dwidmapper

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/lllypuk/dwidmapper/internal/resolver"
	"github.com/lllypuk/dwidmapper/internal/simulator"
)

const (
	// Route is the route pattern served by the plugin.
	Route = "/:product/:platform/users/"

	// Template is the response template rendered for Route.
	Template = "userName_to_userID.template"
)

// ResolutionObserver is notified of every resolution.
type ResolutionObserver interface {
	ObserveResolution(fallback bool)
}

// Plugin resolves the userName of simulated user lookups.
type Plugin struct {
	resolver *resolver.Resolver
	logger   *slog.Logger
	observer ResolutionObserver
}

// Ensure Plugin implements simulator.Plugin.
var _ simulator.Plugin = (*Plugin)(nil)

// New creates the plugin. logger and observer may be nil.
func New(r *resolver.Resolver, logger *slog.Logger, observer ResolutionObserver) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		resolver: r,
		logger:   logger,
		observer: observer,
	}
}

// Register implements simulator.Plugin.
func (p *Plugin) Register(r simulator.Registrar) error {
	return r.Register(Route, Template, http.MethodGet, p.Handle)
}

// Handle resolves the request's userName in place.
func (p *Plugin) Handle(ctx context.Context, req simulator.Request) (simulator.Request, error) {
	res := p.resolver.Apply(req)

	if p.observer != nil {
		p.observer.ObserveResolution(res.Fallback)
	}

	p.logger.DebugContext(ctx, "user resolved",
		slog.String("user_name", resolver.UserNameOf(req)),
		slog.String("user_id", res.UserID.String()),
		slog.Bool("fallback", res.Fallback),
		slog.String("mapped_user_name", res.MappedUserName),
		slog.String("product", req.String("product")),
		slog.String("platform", req.String("platform")),
	)

	return req, nil
}
