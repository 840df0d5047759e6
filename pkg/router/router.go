// Package router is the fasthttp request mux. Patterns mix literal
// segments with :name captures; captured values land in ctx.UserValue.
package router

import (
	"sort"
	"strings"

	"github.com/valyala/fasthttp"
)

// Router dispatches requests path-first: the first pattern whose shape
// fits the path decides, and an unregistered method on a known path
// answers 405 with an Allow header instead of 404.
type Router struct {
	routes   []*route
	notFound fasthttp.RequestHandler
}

// route is one registered pattern with its per-method handler table.
type route struct {
	pattern  string
	parts    []string // param segments hold the name without ':'
	isParam  []bool
	handlers map[string]fasthttp.RequestHandler
}

// New returns an empty router.
func New() *Router { return &Router{} }

// Handle registers h for method on pattern. Registering the same
// method and pattern twice replaces the handler.
func (r *Router) Handle(method, pattern string, h fasthttp.RequestHandler) {
	for _, rt := range r.routes {
		if rt.pattern == pattern {
			rt.handlers[method] = h
			return
		}
	}
	parts := splitPath(pattern)
	rt := &route{
		pattern:  pattern,
		parts:    make([]string, len(parts)),
		isParam:  make([]bool, len(parts)),
		handlers: map[string]fasthttp.RequestHandler{method: h},
	}
	for i, p := range parts {
		if len(p) > 1 && p[0] == ':' {
			rt.parts[i] = p[1:]
			rt.isParam[i] = true
		} else {
			rt.parts[i] = p
		}
	}
	r.routes = append(r.routes, rt)
}

func (r *Router) GET(pattern string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodGet, pattern, h)
}

func (r *Router) POST(pattern string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodPost, pattern, h)
}

func (r *Router) PUT(pattern string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodPut, pattern, h)
}

func (r *Router) DELETE(pattern string, h fasthttp.RequestHandler) {
	r.Handle(fasthttp.MethodDelete, pattern, h)
}

// NotFound overrides the default 404 response.
func (r *Router) NotFound(h fasthttp.RequestHandler) { r.notFound = h }

// Handler satisfies the fasthttp.Server handler interface.
func (r *Router) Handler(ctx *fasthttp.RequestCtx) {
	parts := splitPath(string(ctx.Path()))
	for _, rt := range r.routes {
		if !rt.capture(parts, ctx) {
			continue
		}
		if h, ok := rt.handlers[string(ctx.Method())]; ok {
			h(ctx)
			return
		}
		ctx.Response.Header.Set(fasthttp.HeaderAllow, rt.allow())
		ctx.SetStatusCode(fasthttp.StatusMethodNotAllowed)
		return
	}
	if r.notFound != nil {
		r.notFound(ctx)
		return
	}
	ctx.SetStatusCode(fasthttp.StatusNotFound)
}

// capture reports whether parts fit the pattern; params are set on ctx
// only after the whole path has matched.
func (rt *route) capture(parts []string, ctx *fasthttp.RequestCtx) bool {
	if len(parts) != len(rt.parts) {
		return false
	}
	for i, p := range parts {
		if !rt.isParam[i] && rt.parts[i] != p {
			return false
		}
	}
	for i, p := range parts {
		if rt.isParam[i] {
			ctx.SetUserValue(rt.parts[i], p)
		}
	}
	return true
}

// allow lists the registered methods for the route, sorted for a
// stable header value.
func (rt *route) allow() string {
	ms := make([]string, 0, len(rt.handlers))
	for m := range rt.handlers {
		ms = append(ms, m)
	}
	sort.Strings(ms)
	return strings.Join(ms, ", ")
}

// splitPath normalizes a path into segments; the root path is the
// empty segment list.
func splitPath(p string) []string {
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
