package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/dwidmapper/internal/infrastructure/httpserver"
	"github.com/lllypuk/dwidmapper/internal/middleware"
)

func TestDefaultRouterConfig(t *testing.T) {
	config := httpserver.DefaultRouterConfig()

	assert.NotNil(t, config.Logger)
	assert.Empty(t, config.SimulatorPrefix)
	assert.NotNil(t, config.LoggingConfig.SkipPaths)
	assert.NotNil(t, config.RecoveryConfig.Logger)
}

func TestNewRouter(t *testing.T) {
	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())

	assert.NotNil(t, router)
	assert.Equal(t, e, router.Echo())
	assert.NotNil(t, router.Simulator())
}

func TestNewRouter_NilLogger(t *testing.T) {
	config := httpserver.DefaultRouterConfig()
	config.Logger = nil

	router := httpserver.NewRouter(echo.New(), config)

	assert.NotNil(t, router)
}

func TestRouter_SimulatorPrefix(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		path   string
	}{
		{name: "root", prefix: "", path: "/game/users"},
		{name: "prefixed", prefix: "/sim", path: "/sim/game/users"},
		{name: "prefix with trailing slash", prefix: "/sim/", path: "/sim/game/users"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			config := httpserver.DefaultRouterConfig()
			config.SimulatorPrefix = tt.prefix
			router := httpserver.NewRouter(e, config)

			router.Simulator().GET("/:product/users", func(c echo.Context) error {
				return c.String(http.StatusOK, c.Param("product"))
			})

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "game", rec.Body.String())
		})
	}
}

func TestRouter_RecoveryMiddleware(t *testing.T) {
	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.RecoveryConfig = middleware.RecoveryConfig{
		Logger: slog.Default(),
	}
	router := httpserver.NewRouter(e, config)

	router.Simulator().GET("/panic", func(_ echo.Context) error {
		panic("test panic")
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRouter_LoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	e := echo.New()
	config := httpserver.DefaultRouterConfig()
	config.LoggingConfig = middleware.LoggingConfig{Logger: logger}
	router := httpserver.NewRouter(e, config)

	router.Simulator().GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
	assert.Contains(t, buf.String(), "simulated request")
}

func TestRouter_PrintRoutes(t *testing.T) {
	router := httpserver.NewRouter(echo.New(), httpserver.DefaultRouterConfig())

	router.Simulator().GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NotPanics(t, func() {
		router.PrintRoutes()
	})
}

func TestRouter_RegisterMetricsEndpoint(t *testing.T) {
	registry := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "router_test_total",
		Help: "Counter used by the router test.",
	})
	registry.MustRegister(counter)
	counter.Inc()

	e := echo.New()
	router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
	router.RegisterMetricsEndpoint("", registry)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, httpserver.DefaultMetricsPath, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "router_test_total 1")
}

type stubChecker struct {
	ready      bool
	components []httpserver.ComponentStatus
}

func (s stubChecker) IsReady(_ context.Context) bool { return s.ready }

func (s stubChecker) GetHealthStatus(_ context.Context) []httpserver.ComponentStatus {
	return s.components
}

type directoryChecker struct {
	stubChecker
	info httpserver.DirectoryInfo
}

func (d directoryChecker) DirectoryInfo() httpserver.DirectoryInfo { return d.info }

func TestRouter_HealthDetailsIncludeDirectory(t *testing.T) {
	info := httpserver.DirectoryInfo{Users: 3, Source: "file:users.json", FallbackMode: "legacy"}
	checker := directoryChecker{
		stubChecker: stubChecker{ready: true, components: []httpserver.ComponentStatus{
			{Name: "directory", Status: httpserver.StatusHealthy},
		}},
		info: info,
	}

	for _, path := range []string{"/health/details", "/ready"} {
		t.Run(path, func(t *testing.T) {
			e := echo.New()
			httpserver.NewRouter(e, httpserver.DefaultRouterConfig()).RegisterHealthEndpoints(checker)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
			require.Equal(t, http.StatusOK, rec.Code)

			var resp httpserver.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.NotNil(t, resp.Directory)
			assert.Equal(t, info, *resp.Directory)
		})
	}
}

func TestRouter_HealthWithoutDirectoryReporter(t *testing.T) {
	e := echo.New()
	httpserver.NewRouter(e, httpserver.DefaultRouterConfig()).RegisterHealthEndpoints(stubChecker{ready: true})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/details", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"directory"`)
}

func TestRouter_RegisterHealthEndpoints(t *testing.T) {
	tests := []struct {
		name          string
		checker       httpserver.HealthChecker
		path          string
		expectedCode  int
		expectedState string
	}{
		{
			name:          "liveness always healthy",
			checker:       stubChecker{ready: false},
			path:          "/health",
			expectedCode:  http.StatusOK,
			expectedState: httpserver.StatusHealthy,
		},
		{
			name:          "ready",
			checker:       stubChecker{ready: true},
			path:          "/ready",
			expectedCode:  http.StatusOK,
			expectedState: httpserver.StatusReady,
		},
		{
			name:          "not ready",
			checker:       stubChecker{ready: false},
			path:          "/ready",
			expectedCode:  http.StatusServiceUnavailable,
			expectedState: httpserver.StatusNotReady,
		},
		{
			name:          "nil checker is ready",
			checker:       nil,
			path:          "/ready",
			expectedCode:  http.StatusOK,
			expectedState: httpserver.StatusReady,
		},
		{
			name: "details degraded",
			checker: stubChecker{ready: true, components: []httpserver.ComponentStatus{
				{Name: "directory", Status: httpserver.StatusHealthy},
				{Name: "redis", Status: httpserver.StatusDegraded},
			}},
			path:          "/health/details",
			expectedCode:  http.StatusOK,
			expectedState: httpserver.StatusDegraded,
		},
		{
			name: "details unhealthy wins",
			checker: stubChecker{ready: false, components: []httpserver.ComponentStatus{
				{Name: "redis", Status: httpserver.StatusDegraded},
				{Name: "mongodb", Status: httpserver.StatusUnhealthy, Message: "ping failed"},
			}},
			path:          "/health/details",
			expectedCode:  http.StatusServiceUnavailable,
			expectedState: httpserver.StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			router := httpserver.NewRouter(e, httpserver.DefaultRouterConfig())
			router.RegisterHealthEndpoints(tt.checker)

			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, tt.expectedCode, rec.Code)

			var resp httpserver.HealthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.expectedState, resp.Status)
		})
	}
}
