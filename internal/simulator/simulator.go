// Package simulator is the request simulator host. Plugins register handlers
// for route patterns; each matching HTTP request is turned into a Request,
// passed through the handler and rendered with the registered template.
package simulator

import (
	"context"
)

// Request is the data of one simulated request: path parameters, query
// parameters and JSON body fields. Handlers add fields to it.
type Request map[string]any

// Handler processes a simulated request. Returning is the completion signal:
// the returned request is rendered exactly once. A nil request with a nil
// error renders the request that was passed in.
type Handler func(ctx context.Context, req Request) (Request, error)

// Registrar accepts handler registrations.
type Registrar interface {
	// Register binds h to method and route. route uses ":name" segments for
	// path parameters; templateRef names the template rendered with the result.
	Register(route, templateRef, method string, h Handler) error
}

// Plugin registers its handlers with a host.
type Plugin interface {
	Register(r Registrar) error
}

// Registration is a handler bound to a route.
type Registration struct {
	Route    string
	Template string
	Method   string
	Handler  Handler
}

// String returns a readable form of the registration key.
func (r Registration) String() string {
	return r.Method + " " + r.Route
}

// String returns the string value of key, or "" when absent or not a string.
func (r Request) String(key string) string {
	s, _ := r[key].(string)
	return s
}

// Clone returns a shallow copy of the request.
func (r Request) Clone() Request {
	out := make(Request, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
