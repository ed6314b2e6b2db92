package simulator_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/dwidmapper/internal/domain/errs"
	"github.com/lllypuk/dwidmapper/internal/simulator"
)

func echoHandler(_ context.Context, req simulator.Request) (simulator.Request, error) {
	return req, nil
}

func newHost(t *testing.T, observer simulator.Observer) *simulator.Host {
	t.Helper()
	return simulator.NewHost(simulator.HostConfig{
		Templates: testTemplates(t),
		Observer:  observer,
	})
}

func TestHost_Register(t *testing.T) {
	tests := []struct {
		name    string
		route   string
		tmpl    string
		method  string
		handler simulator.Handler
		wantErr error
	}{
		{
			name:    "valid",
			route:   "/:product/users/",
			tmpl:    "echo.template",
			method:  "get",
			handler: echoHandler,
		},
		{
			name:    "unknown method",
			route:   "/users",
			tmpl:    "echo.template",
			method:  "FETCH",
			handler: echoHandler,
			wantErr: errs.ErrInvalidInput,
		},
		{
			name:    "route without leading slash",
			route:   "users",
			tmpl:    "echo.template",
			method:  http.MethodGet,
			handler: echoHandler,
			wantErr: errs.ErrInvalidInput,
		},
		{
			name:    "nil handler",
			route:   "/users",
			tmpl:    "echo.template",
			method:  http.MethodGet,
			wantErr: errs.ErrInvalidInput,
		},
		{
			name:    "missing template",
			route:   "/users",
			tmpl:    "missing.template",
			method:  http.MethodGet,
			handler: echoHandler,
			wantErr: errs.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host := newHost(t, nil)

			err := host.Register(tt.route, tt.tmpl, tt.method, tt.handler)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, host.Routes())
				return
			}
			require.NoError(t, err)
			routes := host.Routes()
			require.Len(t, routes, 1)
			assert.Equal(t, http.MethodGet, routes[0].Method)
			assert.Equal(t, "GET /:product/users/", routes[0].String())
		})
	}
}

func TestHost_RegisterDuplicate(t *testing.T) {
	host := newHost(t, nil)
	require.NoError(t, host.Register("/:product/users/", "echo.template", http.MethodGet, echoHandler))

	tests := []struct {
		name   string
		route  string
		method string
	}{
		{name: "same route", route: "/:product/users/", method: http.MethodGet},
		{name: "without trailing slash", route: "/:product/users", method: http.MethodGet},
		{name: "renamed parameter", route: "/:game/users/", method: http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := host.Register(tt.route, "echo.template", tt.method, echoHandler)
			require.ErrorIs(t, err, errs.ErrAlreadyExists)
		})
	}

	require.NoError(t, host.Register("/:product/users/", "echo.template", http.MethodPost, echoHandler))
	assert.Len(t, host.Routes(), 2)
}

func TestHost_RegisterAfterMount(t *testing.T) {
	host := newHost(t, nil)
	host.Mount(echo.New())

	err := host.Register("/users", "echo.template", http.MethodGet, echoHandler)

	require.ErrorIs(t, err, errs.ErrInvalidState)
}

type pluginFunc func(r simulator.Registrar) error

func (f pluginFunc) Register(r simulator.Registrar) error { return f(r) }

func TestHost_Install(t *testing.T) {
	host := newHost(t, nil)
	good := pluginFunc(func(r simulator.Registrar) error {
		return r.Register("/a", "echo.template", http.MethodGet, echoHandler)
	})
	bad := pluginFunc(func(r simulator.Registrar) error {
		return r.Register("/a", "echo.template", http.MethodGet, echoHandler)
	})

	err := host.Install(good, bad)

	require.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.Len(t, host.Routes(), 1)
}

type recordedObservation struct {
	route, method string
	status        int
}

type recordingObserver struct {
	mu   sync.Mutex
	seen []recordedObservation
}

func (o *recordingObserver) ObserveRequest(route, method string, status int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, recordedObservation{route: route, method: method, status: status})
}

func serve(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHost_Serve(t *testing.T) {
	observer := &recordingObserver{}
	host := newHost(t, observer)

	require.NoError(t, host.Register("/:name/profile/", "echo.template", http.MethodGet,
		func(_ context.Context, req simulator.Request) (simulator.Request, error) {
			req["id"] = 42
			return req, nil
		}))

	e := echo.New()
	host.Mount(e)

	for _, path := range []string{"/alice/profile/", "/alice/profile"} {
		rec := serve(e, http.MethodGet, path, "")

		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, simulator.ContentTypeJSON, rec.Header().Get(echo.HeaderContentType))
		assert.JSONEq(t, `{"name":"alice","id":42}`, rec.Body.String())
	}

	require.Len(t, observer.seen, 2)
	assert.Equal(t, recordedObservation{route: "/:name/profile/", method: http.MethodGet, status: http.StatusOK}, observer.seen[0])
}

func TestHost_ServeNilResultRendersInput(t *testing.T) {
	host := newHost(t, nil)
	require.NoError(t, host.Register("/hello", "plain.template", http.MethodGet,
		func(_ context.Context, req simulator.Request) (simulator.Request, error) {
			req["name"] = "world"
			return nil, nil
		}))

	e := echo.New()
	host.Mount(e)

	rec := serve(e, http.MethodGet, "/hello", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello WORLD", rec.Body.String())
	assert.Equal(t, simulator.ContentTypeText, rec.Header().Get(echo.HeaderContentType))
}

func TestHost_ServeHandlerError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid input",
			err:        fmt.Errorf("%w: userName", errs.ErrInvalidInput),
			wantStatus: http.StatusBadRequest,
			wantCode:   "INVALID_INPUT",
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "INTERNAL_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			observer := &recordingObserver{}
			host := newHost(t, observer)
			require.NoError(t, host.Register("/fail", "echo.template", http.MethodGet,
				func(context.Context, simulator.Request) (simulator.Request, error) {
					return nil, tt.err
				}))

			e := echo.New()
			host.Mount(e)

			rec := serve(e, http.MethodGet, "/fail", "")

			require.Equal(t, tt.wantStatus, rec.Code)
			var resp map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, false, resp["success"])
			errorObj, ok := resp["error"].(map[string]any)
			require.True(t, ok)
			assert.Equal(t, tt.wantCode, errorObj["code"])

			require.Len(t, observer.seen, 1)
			assert.Equal(t, tt.wantStatus, observer.seen[0].status)
		})
	}
}

func TestHost_ServeInvalidBody(t *testing.T) {
	host := newHost(t, nil)
	require.NoError(t, host.Register("/users", "echo.template", http.MethodPost, echoHandler))

	e := echo.New()
	host.Mount(e)

	rec := serve(e, http.MethodPost, "/users", `{"name":`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildRequest_Precedence(t *testing.T) {
	e := echo.New()
	var got simulator.Request
	e.POST("/:name/users", func(c echo.Context) error {
		var err error
		got, err = simulator.BuildRequest(c)
		return err
	})

	rec := serve(e, http.MethodPost, "/path/users?name=query&q=1&multi=a&multi=b",
		`{"name":"body","b":"only-body","n":12345678901234567890}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "path", got["name"])
	assert.Equal(t, "1", got["q"])
	assert.Equal(t, "a", got["multi"])
	assert.Equal(t, "only-body", got["b"])
	assert.Equal(t, json.Number("12345678901234567890"), got["n"])
}

func TestBuildRequest_IgnoresBodyOnGet(t *testing.T) {
	e := echo.New()
	var got simulator.Request
	e.GET("/users", func(c echo.Context) error {
		var err error
		got, err = simulator.BuildRequest(c)
		return err
	})

	req := httptest.NewRequest(http.MethodGet, "/users?userName=alice", strings.NewReader(`{"userName":"bob"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, simulator.Request{"userName": "alice"}, got)
}

func TestRequest_StringAndClone(t *testing.T) {
	req := simulator.Request{"userName": "alice", "n": 1}

	assert.Equal(t, "alice", req.String("userName"))
	assert.Empty(t, req.String("n"))
	assert.Empty(t, req.String("missing"))

	clone := req.Clone()
	clone["userName"] = "bob"
	assert.Equal(t, "alice", req.String("userName"))
}
