package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/infrastructure/httpserver"
	"github.com/lllypuk/dwidmapper/internal/middleware"
)

// allowedMethods lists the HTTP methods a handler can be registered for.
var allowedMethods = map[string]struct{}{
	http.MethodGet:     {},
	http.MethodPost:    {},
	http.MethodPut:     {},
	http.MethodPatch:   {},
	http.MethodDelete:  {},
	http.MethodHead:    {},
	http.MethodOptions: {},
}

// Observer receives one call per served simulated request.
type Observer interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// RouteAdder is satisfied by *echo.Echo and *echo.Group.
type RouteAdder interface {
	Add(method, path string, h echo.HandlerFunc, m ...echo.MiddlewareFunc) *echo.Route
}

// HostConfig holds configuration for the simulator host.
type HostConfig struct {
	// Templates are the response templates handlers may reference.
	Templates *Templates

	// Logger is the structured logger for host events.
	Logger *slog.Logger

	// Observer, when set, is notified of every served request.
	Observer Observer
}

// Host keeps handler registrations and serves them over echo.
// Registration happens before Mount; afterwards the table is read-only.
type Host struct {
	templates *Templates
	logger    *slog.Logger
	observer  Observer

	mu      sync.Mutex
	routes  []Registration
	keys    map[string]struct{}
	mounted bool
}

// Ensure Host implements Registrar.
var _ Registrar = (*Host)(nil)

// NewHost creates a simulator host.
func NewHost(cfg HostConfig) *Host {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Host{
		templates: cfg.Templates,
		logger:    cfg.Logger,
		observer:  cfg.Observer,
		keys:      make(map[string]struct{}),
	}
}

// Register implements Registrar.
func (h *Host) Register(route, templateRef, method string, handler Handler) error {
	method = strings.ToUpper(strings.TrimSpace(method))

	if _, ok := allowedMethods[method]; !ok {
		return fmt.Errorf("%w: http method %q", errs.ErrInvalidInput, method)
	}
	if !strings.HasPrefix(route, "/") {
		return fmt.Errorf("%w: route %q must start with /", errs.ErrInvalidInput, route)
	}
	if handler == nil {
		return fmt.Errorf("%w: nil handler for %s %s", errs.ErrInvalidInput, method, route)
	}
	if h.templates == nil || !h.templates.Has(templateRef) {
		return fmt.Errorf("%w: template %q for %s %s", errs.ErrNotFound, templateRef, method, route)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.mounted {
		return fmt.Errorf("%w: host already mounted", errs.ErrInvalidState)
	}

	reg := Registration{Route: route, Template: templateRef, Method: method, Handler: handler}
	key := reg.Method + " " + routeKey(route)
	if _, exists := h.keys[key]; exists {
		return fmt.Errorf("%w: %s", errs.ErrAlreadyExists, reg)
	}
	h.keys[key] = struct{}{}
	h.routes = append(h.routes, reg)

	h.logger.Debug("simulator route registered",
		slog.String("method", reg.Method),
		slog.String("route", reg.Route),
		slog.String("template", reg.Template),
	)

	return nil
}

// Install registers every plugin, stopping at the first failure.
func (h *Host) Install(plugins ...Plugin) error {
	for _, p := range plugins {
		if err := p.Register(h); err != nil {
			return fmt.Errorf("install plugin %T: %w", p, err)
		}
	}
	return nil
}

// Routes returns a copy of the registrations in registration order.
func (h *Host) Routes() []Registration {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Registration, len(h.routes))
	copy(out, h.routes)
	return out
}

// Mount adds every registration to r. A route is served both with and
// without its trailing slash.
func (h *Host) Mount(r RouteAdder) {
	h.mu.Lock()
	h.mounted = true
	routes := make([]Registration, len(h.routes))
	copy(routes, h.routes)
	h.mu.Unlock()

	for _, reg := range routes {
		handler := h.serve(reg)
		for _, p := range routeVariants(reg.Route) {
			r.Add(reg.Method, p, handler)
		}
		h.logger.Info("simulator route mounted",
			slog.String("method", reg.Method),
			slog.String("route", reg.Route),
		)
	}
}

// serve adapts a registration to an echo handler.
func (h *Host) serve(reg Registration) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		status, err := h.handle(c, reg)
		if h.observer != nil {
			h.observer.ObserveRequest(reg.Route, reg.Method, status, time.Since(start))
		}
		return err
	}
}

func (h *Host) handle(c echo.Context, reg Registration) (int, error) {
	ctx := c.Request().Context()

	req, err := BuildRequest(c)
	if err != nil {
		return http.StatusBadRequest, httpserver.RespondError(c, err)
	}

	out, err := reg.Handler(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "simulator handler failed",
			slog.String("route", reg.Route),
			slog.String("request_id", middleware.GetRequestID(c)),
			slog.String("error", err.Error()),
		)
		status, _ := httpserver.MapError(err)
		return status, httpserver.RespondError(c, err)
	}
	if out == nil {
		out = req
	}

	body, contentType, err := h.templates.Render(reg.Template, out)
	if err != nil {
		h.logger.ErrorContext(ctx, "simulator template failed",
			slog.String("template", reg.Template),
			slog.String("error", err.Error()),
		)
		return http.StatusInternalServerError, httpserver.RespondError(c, err)
	}

	return http.StatusOK, c.Blob(http.StatusOK, contentType, body)
}

// BuildRequest collects the simulated request data: JSON body fields first,
// then query parameters, then path parameters, later sources winning.
func BuildRequest(c echo.Context) (Request, error) {
	req := make(Request)

	if err := mergeJSONBody(c, req); err != nil {
		return nil, err
	}

	for key, values := range c.QueryParams() {
		if len(values) > 0 {
			req[key] = values[0]
		}
	}

	for i, name := range c.ParamNames() {
		if i < len(c.ParamValues()) {
			req[name] = c.ParamValues()[i]
		}
	}

	return req, nil
}

func mergeJSONBody(c echo.Context, req Request) error {
	r := c.Request()
	if r.Body == nil || r.Method == http.MethodGet || r.Method == http.MethodHead {
		return nil
	}
	if !strings.HasPrefix(r.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		return nil
	}

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var body map[string]any
	if err := dec.Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: request body: %s", errs.ErrInvalidInput, err.Error())
	}
	for k, v := range body {
		req[k] = v
	}
	return nil
}

// routeKey normalizes a route for duplicate detection: the trailing slash and
// parameter names do not distinguish routes.
func routeKey(route string) string {
	segments := strings.Split(strings.TrimSuffix(route, "/"), "/")
	for i, s := range segments {
		if strings.HasPrefix(s, ":") {
			segments[i] = ":"
		}
	}
	return strings.Join(segments, "/")
}

// routeVariants returns the route with and without a trailing slash.
func routeVariants(route string) []string {
	if route == "/" {
		return []string{route}
	}
	trimmed := strings.TrimSuffix(route, "/")
	return []string{trimmed, trimmed + "/"}
}
