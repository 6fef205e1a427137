// Package router is the storefront's thin layer over http.ServeMux: method
// helpers, middleware groups, a JSON catch-all and a route table. Route
// middleware runs inside the mux, so r.Pattern is set when it runs.
package router

import (
	"net/http"
	"slices"
	"strings"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Route is one registered method and pattern.
type Route struct {
	Method  string
	Pattern string
}

// Router registers routes on a shared mux. Groups made from it add to the
// same mux and route table with their own middleware.
type Router struct {
	mux    *http.ServeMux
	routes *[]Route
	chain  []Middleware
}

// New creates a Router whose routes all run through mw, outermost first.
func New(mw ...Middleware) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		routes: new([]Route),
		chain:  mw,
	}
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

func (r *Router) Get(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodGet, pattern, h, mw...)
}

func (r *Router) Post(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPost, pattern, h, mw...)
}

func (r *Router) Patch(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodPatch, pattern, h, mw...)
}

func (r *Router) Delete(pattern string, h http.HandlerFunc, mw ...Middleware) {
	r.Handle(http.MethodDelete, pattern, h, mw...)
}

// Handle registers h for method and pattern behind the group's middleware
// and then mw.
func (r *Router) Handle(method, pattern string, h http.Handler, mw ...Middleware) {
	r.mux.Handle(method+" "+pattern, r.wrap(h, mw))
	*r.routes = append(*r.routes, Route{Method: method, Pattern: pattern})
}

// Group returns a router on the same mux whose routes also run through mw.
func (r *Router) Group(mw ...Middleware) *Router {
	return &Router{
		mux:    r.mux,
		routes: r.routes,
		chain:  append(slices.Clone(r.chain), mw...),
	}
}

// NotFound answers every request no registered pattern matches, including
// a known path with the wrong method. ServeMux would answer those in plain
// text; the storefront's clients expect JSON.
func (r *Router) NotFound(h http.HandlerFunc) {
	r.mux.Handle("/", r.wrap(h, nil))
}

// Routes returns the registered routes ordered by pattern, then method.
func (r *Router) Routes() []Route {
	out := slices.Clone(*r.routes)
	slices.SortFunc(out, func(a, b Route) int {
		if c := strings.Compare(a.Pattern, b.Pattern); c != 0 {
			return c
		}
		return strings.Compare(a.Method, b.Method)
	})
	return out
}

func (r *Router) wrap(h http.Handler, mw []Middleware) http.Handler {
	all := append(slices.Clone(r.chain), mw...)
	for i := len(all) - 1; i >= 0; i-- {
		h = all[i](h)
	}
	return h
}
